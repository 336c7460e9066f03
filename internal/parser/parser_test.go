package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/lexer"
	"github.com/ec-lang/ec/internal/types"
)

func parseProgram(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := New(lexer.New(src))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return prog
}

func TestVarDeclAndPrint(t *testing.T) {
	prog := parseProgram(t, `A number called "x" is 5. Print x.`)
	require.Len(t, prog.TopLevel, 2)

	decl, ok := prog.TopLevel[0].(*ast.VarDecl)
	require.True(t, ok)
	assert.Equal(t, "x", decl.Name)
	assert.True(t, types.Equal(types.TInteger, decl.Type))
	intLit, ok := decl.Init.(*ast.IntLit)
	require.True(t, ok)
	assert.EqualValues(t, 5, intLit.Value)

	pr, ok := prog.TopLevel[1].(*ast.Print)
	require.True(t, ok)
	ref, ok := pr.Value.(*ast.VarRef)
	require.True(t, ok)
	assert.Equal(t, "x", ref.Name)
}

func TestWhileAndAssignAndIncDec(t *testing.T) {
	prog := parseProgram(t, `
A number called "i" is 0.
While i is less than 3, print i, increment i.
`)
	require.Len(t, prog.TopLevel, 2)

	wh, ok := prog.TopLevel[1].(*ast.While)
	require.True(t, ok)
	cmp, ok := wh.Cond.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpLess, cmp.Op)
	require.Len(t, wh.Body, 2)
	_, ok = wh.Body[0].(*ast.Print)
	require.True(t, ok)
	inc, ok := wh.Body[1].(*ast.IncDec)
	require.True(t, ok)
	assert.Equal(t, ast.OpIncrement, inc.Op)
}

func TestIfOrIfOtherwise(t *testing.T) {
	prog := parseProgram(t, `
If x is greater than 0, print "pos".
Or-if x is less than 0, print "neg".
Otherwise, print "zero".
`)
	require.Len(t, prog.TopLevel, 1)
	ifStmt, ok := prog.TopLevel[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifStmt.ElseIfs, 1)
	require.Len(t, ifStmt.Else, 1)
}

func TestDivisibleBySugar(t *testing.T) {
	prog := parseProgram(t, `If n is divisible by 3, print "fizz".`)
	ifStmt := prog.TopLevel[0].(*ast.If)
	eq, ok := ifStmt.Cond.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpEq, eq.Op)
	mod, ok := eq.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpMod, mod.Op)
}

func TestPluralComparisonExpandsToConjunction(t *testing.T) {
	prog := parseProgram(t, `If p, q, and r are greater than 0, print "all positive".`)
	ifStmt := prog.TopLevel[0].(*ast.If)
	and2, ok := ifStmt.Cond.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpAnd, and2.Op)
	and1, ok := and2.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpAnd, and1.Op)
}

func TestForEachRangePrintSugarWithButIf(t *testing.T) {
	prog := parseProgram(t, `Print each n from 1 to 15, but if n is divisible by 3 print "fizz".`)
	require.Len(t, prog.TopLevel, 1)
	fe, ok := prog.TopLevel[0].(*ast.ForEach)
	require.True(t, ok)
	assert.Equal(t, "n", fe.Iterator)
	rng, ok := fe.Collection.(*ast.RangeExpr)
	require.True(t, ok)
	assert.EqualValues(t, 1, rng.From.(*ast.IntLit).Value)
	assert.EqualValues(t, 15, rng.To.(*ast.IntLit).Value)
	require.Len(t, fe.Body, 1)
	pr := fe.Body[0].(*ast.Print)
	require.Len(t, pr.ButIf, 1)
}

func TestDedicatedForEach(t *testing.T) {
	prog := parseProgram(t, `For each item from items, print item, increment total.`)
	fe, ok := prog.TopLevel[0].(*ast.ForEach)
	require.True(t, ok)
	assert.Equal(t, "item", fe.Iterator)
	require.Len(t, fe.Body, 2)
}

func TestFunctionDeclWithParamsAndReturn(t *testing.T) {
	prog := parseProgram(t, `
To "add" with a number called "x" and a number called "y". Return a number, return x add y.
`)
	require.Len(t, prog.Functions, 1)
	fn := prog.Functions[0]
	assert.Equal(t, "add", fn.Name)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "x", fn.Params[0].Name)
	assert.True(t, types.Equal(types.TInteger, fn.Params[0].Type))
	assert.True(t, types.Equal(types.TInteger, fn.ReturnType))
	require.Len(t, fn.Body, 1)
	ret, ok := fn.Body[0].(*ast.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, bin.Op)
}

func TestFunctionCallExpression(t *testing.T) {
	prog := parseProgram(t, `A number called "r" is "add" with 2 and 3.`)
	decl := prog.TopLevel[0].(*ast.VarDecl)
	call, ok := decl.Init.(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "add", call.Callee)
	require.Len(t, call.Args, 2)
}

func TestFormatStringHoles(t *testing.T) {
	prog := parseProgram(t, `Print "value is {x:.2}!".`)
	pr := prog.TopLevel[0].(*ast.Print)
	str, ok := pr.Value.(*ast.StringLit)
	require.True(t, ok)
	require.True(t, str.IsFormat())
	require.Len(t, str.Parts, 3)
	assert.Equal(t, "value is ", str.Parts[0].Literal)
	require.NotNil(t, str.Parts[1].Hole)
	ref, ok := str.Parts[1].Hole.(*ast.VarRef)
	require.True(t, ok)
	assert.Equal(t, "x", ref.Name)
	assert.Equal(t, ".2", str.Parts[1].Spec)
	assert.Equal(t, "!", str.Parts[2].Literal)
}

func TestPropertyAccessAndElementOf(t *testing.T) {
	prog := parseProgram(t, `Print items's length. Print element i of items.`)
	pr1 := prog.TopLevel[0].(*ast.Print)
	pa, ok := pr1.Value.(*ast.PropertyAccess)
	require.True(t, ok)
	assert.Equal(t, "length", pa.Property)

	pr2 := prog.TopLevel[1].(*ast.Print)
	idx, ok := pr2.Value.(*ast.IndexAccess)
	require.True(t, ok)
	assert.Equal(t, ast.IndexElement, idx.Kind)
}

func TestCastExpression(t *testing.T) {
	prog := parseProgram(t, `Print n as text padded to 3.`)
	pr := prog.TopLevel[0].(*ast.Print)
	cast, ok := pr.Value.(*ast.Cast)
	require.True(t, ok)
	assert.True(t, types.Equal(types.TString, cast.Target))
	require.NotNil(t, cast.PadTo)
}

func TestArgumentsAndEnvironmentQueries(t *testing.T) {
	prog := parseProgram(t, `Print arguments's count. Print environment's "HOME".`)
	pr1 := prog.TopLevel[0].(*ast.Print)
	q1, ok := pr1.Value.(*ast.ArgQuery)
	require.True(t, ok)
	assert.Equal(t, ast.ArgCount, q1.Kind)

	pr2 := prog.TopLevel[1].(*ast.Print)
	q2, ok := pr2.Value.(*ast.ArgQuery)
	require.True(t, ok)
	assert.Equal(t, ast.EnvLookup, q2.Kind)
}

func TestFileOpenClausesAnyOrder(t *testing.T) {
	prog := parseProgram(t, `Open a file called "f" for reading at "/tmp/x".`)
	open, ok := prog.TopLevel[0].(*ast.FileOpen)
	require.True(t, ok)
	assert.Equal(t, "f", open.Name)
	assert.Equal(t, ast.FileRead, open.Mode)
	require.NotNil(t, open.Path)
}

func TestOnErrorAttachesAfterStatement(t *testing.T) {
	prog := parseProgram(t, `Read from input into buf, on error, print "bounds error".`)
	require.Len(t, prog.TopLevel, 2)
	_, ok := prog.TopLevel[0].(*ast.FileReadInto)
	require.True(t, ok)
	onErr, ok := prog.TopLevel[1].(*ast.OnErrorStmt)
	require.True(t, ok)
	require.Len(t, onErr.Actions, 1)
}
