package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ec-lang/ec/internal/diagnostics"
	"github.com/ec-lang/ec/internal/lexer"
	"github.com/ec-lang/ec/internal/parser"
)

func analyzeSource(t *testing.T, src string) *diagnostics.Sink {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())

	sink := diagnostics.NewSink("test.en", src)
	New(sink).Analyze(prog)
	return sink
}

func errorMessages(s *diagnostics.Sink) []string {
	var out []string
	for _, d := range s.All() {
		if d.Severity == diagnostics.Error {
			out = append(out, d.Message)
		}
	}
	return out
}

func TestVarDeclAssignTypeMismatch(t *testing.T) {
	sink := analyzeSource(t, `A number called "x" is 5. The x is "oops".`)
	require.True(t, sink.HasErrors())
	assert.Contains(t, errorMessages(sink)[0], "cannot assign")
}

func TestVarDeclMatchingTypesNoErrors(t *testing.T) {
	sink := analyzeSource(t, `A number called "x" is 5. Print x.`)
	assert.False(t, sink.HasErrors())
}

func TestUndefinedVariableErrors(t *testing.T) {
	sink := analyzeSource(t, `Print y.`)
	require.True(t, sink.HasErrors())
	assert.Contains(t, errorMessages(sink)[0], `undefined variable "y"`)
}

func TestIntegerFloatWideningAllowedOnDecl(t *testing.T) {
	sink := analyzeSource(t, `A float called "f" is 5. Print f.`)
	assert.False(t, sink.HasErrors())
}

func TestFunctionArityMismatchErrors(t *testing.T) {
	src := `
To "add" with a number called "x" and a number called "y". Return a number, return x add y.
A number called "r" is "add" with 2.
`
	sink := analyzeSource(t, src)
	require.True(t, sink.HasErrors())
	assert.Contains(t, errorMessages(sink)[0], "expects 2 argument")
}

func TestFunctionReturnTypeMismatchErrors(t *testing.T) {
	src := `
To "greet" with a number called "x". Return a number, return "hi".
`
	sink := analyzeSource(t, src)
	require.True(t, sink.HasErrors())
}

func TestForwardFunctionReferenceResolves(t *testing.T) {
	src := `
A number called "r" is "square" with 4.
To "square" with a number called "x". Return a number, return x multiplied by x.
`
	sink := analyzeSource(t, src)
	assert.False(t, sink.HasErrors())
}

func TestBitwiseOperatorsRequireIntegers(t *testing.T) {
	sink := analyzeSource(t, `A float called "f" is 1. A number called "g" is f bitwise and 2.`)
	require.True(t, sink.HasErrors())
}

func TestUnusedVariableWarns(t *testing.T) {
	sink := analyzeSource(t, `A number called "x" is 5.`)
	assert.False(t, sink.HasErrors())
	var found bool
	for _, d := range sink.All() {
		if d.Severity == diagnostics.Warning {
			found = true
		}
	}
	assert.True(t, found, "expected an unused-variable warning")
}

func TestPropertyOnUnsupportedTypeErrors(t *testing.T) {
	sink := analyzeSource(t, `A number called "x" is 5. Print x's length.`)
	require.True(t, sink.HasErrors())
}

func TestForEachOverArgumentsAllSetsArgsFeature(t *testing.T) {
	p := parser.New(lexer.New(`For each arg from arguments's all, print arg.`))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())

	a := New(diagnostics.NewSink("", ""))
	a.Analyze(prog)
	assert.False(t, a.diags.HasErrors())
	assert.True(t, a.Features.Args)
}

func TestBreakOutsideLoopErrors(t *testing.T) {
	sink := analyzeSource(t, `If true, break.`)
	require.True(t, sink.HasErrors())
}

func TestFeatureFlagsAccumulateAcrossProgram(t *testing.T) {
	p := parser.New(lexer.New(`A float called "f" is 1.5. Print f bitwise and 1.`))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())

	a := New(diagnostics.NewSink("", ""))
	a.Analyze(prog)
	assert.True(t, a.Features.Floats)
	assert.True(t, a.Features.Binary)
	assert.True(t, a.Features.IO)
}

func TestReturnOutsideFunctionErrors(t *testing.T) {
	sink := analyzeSource(t, `Return 1.`)
	require.True(t, sink.HasErrors())
}

func TestDivisibleBySugarAnalyzesClean(t *testing.T) {
	sink := analyzeSource(t, `A number called "n" is 9. If n is divisible by 3, print "fizz".`)
	assert.False(t, sink.HasErrors())
}
