package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyStackPopErrors(t *testing.T) {
	s := New()
	assert.True(t, s.Empty())

	_, err := s.Pop()
	require.Error(t, err)

	_, err = s.Top()
	require.Error(t, err)
}

func TestPushPopOrderingIsLIFO(t *testing.T) {
	s := New()
	s.Push(LoopLabels{Break: "L1_break", Continue: "L1_cont"})
	s.Push(LoopLabels{Break: "L2_break", Continue: "L2_cont"})

	top, err := s.Top()
	require.NoError(t, err)
	assert.Equal(t, "L2_break", top.Break)

	got, err := s.Pop()
	require.NoError(t, err)
	assert.Equal(t, "L2_cont", got.Continue)
	assert.False(t, s.Empty())

	got, err = s.Pop()
	require.NoError(t, err)
	assert.Equal(t, "L1_break", got.Break)
	assert.True(t, s.Empty())
}
