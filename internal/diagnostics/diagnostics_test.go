package diagnostics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ec-lang/ec/internal/ast"
)

func TestSinkHasErrors(t *testing.T) {
	s := NewSink("prog.en", "a.\n")
	require.False(t, s.HasErrors())

	s.Warn(StageAnalyze, ast.Position{Line: 1, Column: 1}, "", "unused variable %q", "x")
	require.False(t, s.HasErrors())

	s.Error(StageAnalyze, ast.Position{Line: 1, Column: 1}, "declare it first", "undefined variable %q", "y")
	require.True(t, s.HasErrors())
	require.Len(t, s.All(), 2)
}

func TestRenderIncludesSourceLineAndCaret(t *testing.T) {
	src := "Print x."
	s := NewSink("prog.en", src)
	s.Error(StageAnalyze, ast.Position{Line: 1, Column: 7}, "", "undefined variable %q", "x")

	out := s.Render(false)
	assert.Contains(t, out, "prog.en:1:7")
	assert.Contains(t, out, "Print x.")
	assert.Contains(t, out, "^")
	assert.Contains(t, out, `undefined variable "x"`)
}

func TestRenderJSON(t *testing.T) {
	s := NewSink("", "")
	s.Error(StageParse, ast.Position{Line: 2, Column: 3}, "add a period", "missing period")

	raw, err := s.RenderJSON()
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "error", out[0]["severity"])
	assert.Equal(t, "parse", out[0]["stage"])
	assert.Equal(t, float64(2), out[0]["line"])
}
