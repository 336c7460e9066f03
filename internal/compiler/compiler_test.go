package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileHelloWorldProducesRunnableShape(t *testing.T) {
	res := Compile(Options{File: "hello.ec", Source: `print "Hello, world!".`})
	require.False(t, res.Diags.HasErrors(), "unexpected diagnostics: %v", res.Diags.All())
	assert.Contains(t, res.Assembly, "_start:")
	assert.Contains(t, res.Assembly, ".global _start")
	assert.True(t, res.Features.IO)
	assert.False(t, res.Features.Floats)
}

func TestCompileStopsAfterParseErrors(t *testing.T) {
	res := Compile(Options{File: "broken.ec", Source: `A number called is.`})
	assert.True(t, res.Diags.HasErrors())
	assert.Empty(t, res.Assembly)
}

func TestCompileFizzBuzzPullsInRequiredModules(t *testing.T) {
	src := `Print each n from 1 to 15, but if n is divisible by 15 print "FizzBuzz", but if n is divisible by 3 print "Fizz", but if n is divisible by 5 print "Buzz".`
	res := Compile(Options{File: "fizzbuzz.ec", Source: src})
	require.False(t, res.Diags.HasErrors(), "unexpected diagnostics: %v", res.Diags.All())
	assert.True(t, res.Features.IO)
	assert.Contains(t, res.Assembly, "rt_print_int")
}

func TestCompileFloatExpressionPullsInFloatModule(t *testing.T) {
	res := Compile(Options{File: "avg.ec", Source: `A float called "total" is 1.5 add 2.5. Print total.`})
	require.False(t, res.Diags.HasErrors(), "unexpected diagnostics: %v", res.Diags.All())
	assert.True(t, res.Features.Floats)
	assert.True(t, strings.Contains(res.Assembly, "rt_float_add"))
}
