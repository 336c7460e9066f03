package semantic

import (
	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/types"
)

// analyzeExpr infers and validates the type of expr, recording feature
// flags and diagnostics along the way, and returns its result type.
// Unresolvable nodes return types.TUnknown after reporting an error, so
// callers can keep walking without a second nil check at every site.
func (a *Analyzer) analyzeExpr(expr ast.Expr, s *scope) types.Type {
	switch e := expr.(type) {
	case *ast.IntLit:
		return types.TInteger
	case *ast.FloatLit:
		a.Features.markFloats()
		return types.TFloat
	case *ast.BoolLit:
		return types.TBoolean
	case *ast.CharLit:
		return types.TInteger
	case *ast.StringLit:
		if e.IsFormat() {
			a.Features.markFormat()
		}
		a.Features.markStrings()
		for _, part := range e.Parts {
			if part.Hole != nil {
				a.analyzeExpr(part.Hole, s)
			}
		}
		return types.TString
	case *ast.VarRef:
		t, _ := a.lookupVar(e.Name, s, e.Position)
		return t
	case *ast.LoopVar:
		t, _ := a.lookupVar(e.Name, s, e.Position)
		return t
	case *ast.Binary:
		return a.analyzeBinary(e, s)
	case *ast.Unary:
		return a.analyzeUnary(e, s)
	case *ast.Call:
		return a.analyzeCall(e, s)
	case *ast.PropertyAccess:
		return a.analyzePropertyAccess(e, s)
	case *ast.IndexAccess:
		return a.analyzeIndexAccess(e, s)
	case *ast.Cast:
		return a.analyzeCast(e, s)
	case *ast.ArgQuery:
		return a.analyzeArgQuery(e, s)
	case *ast.CurrentTime:
		a.Features.markTime()
		return types.TTime
	case *ast.RangeExpr:
		from := a.analyzeExpr(e.From, s)
		to := a.analyzeExpr(e.To, s)
		if !types.IsNumeric(from) || !types.IsNumeric(to) {
			a.errorf(e.Position, "", "range bounds must be numbers, got %s to %s", from, to)
		}
		return types.TInteger
	default:
		a.errorf(expr.Pos(), "", "internal: unhandled expression %T", expr)
		return types.TUnknown
	}
}

func (a *Analyzer) analyzeBinary(e *ast.Binary, s *scope) types.Type {
	left := a.analyzeExpr(e.Left, s)
	right := a.analyzeExpr(e.Right, s)

	switch e.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if !types.IsNumeric(left) || !types.IsNumeric(right) {
			a.errorf(e.Position, "", "arithmetic requires numbers, got %s and %s", left, right)
			return types.TUnknown
		}
		return types.Widen(left, right)

	case ast.OpBitOr, ast.OpBitXor, ast.OpBitAnd, ast.OpShiftLeft, ast.OpShiftRight:
		a.Features.markBinary()
		if !types.Equal(left, types.TInteger) || !types.Equal(right, types.TInteger) {
			a.errorf(e.Position, "", "bitwise operators require whole numbers, got %s and %s", left, right)
			return types.TUnknown
		}
		return types.TInteger

	case ast.OpAnd, ast.OpOr:
		if !types.Equal(left, types.TBoolean) || !types.Equal(right, types.TBoolean) {
			a.errorf(e.Position, "", "\"and\"/\"or\" require booleans, got %s and %s", left, right)
			return types.TUnknown
		}
		return types.TBoolean

	case ast.OpEq, ast.OpNotEq, ast.OpGreater, ast.OpGreaterEq, ast.OpLess, ast.OpLessEq:
		if types.IsNumeric(left) && types.IsNumeric(right) {
			if left.Kind == types.Float || right.Kind == types.Float {
				a.Features.markFloats()
			}
			return types.TBoolean
		}
		if !types.Equal(left, right) {
			a.errorf(e.Position, "", "cannot compare %s with %s", left, right)
		}
		return types.TBoolean

	default:
		a.errorf(e.Position, "", "internal: unhandled binary operator")
		return types.TUnknown
	}
}

func (a *Analyzer) analyzeUnary(e *ast.Unary, s *scope) types.Type {
	operand := a.analyzeExpr(e.Operand, s)

	switch e.Op {
	case ast.OpNegate:
		if !types.IsNumeric(operand) {
			a.errorf(e.Position, "", "\"negative\" requires a number, got %s", operand)
			return types.TUnknown
		}
		return operand

	case ast.OpNot:
		if !types.Equal(operand, types.TBoolean) {
			a.errorf(e.Position, "", "\"not\" requires a boolean, got %s", operand)
			return types.TUnknown
		}
		return types.TBoolean

	case ast.OpBitNot:
		a.Features.markBinary()
		if !types.Equal(operand, types.TInteger) {
			a.errorf(e.Position, "", "bit-not requires a whole number, got %s", operand)
			return types.TUnknown
		}
		return types.TInteger

	case ast.OpAbs, ast.OpSign:
		a.Features.markMath()
		if !types.IsNumeric(operand) {
			a.errorf(e.Position, "", "requires a number, got %s", operand)
			return types.TUnknown
		}
		if operand.Kind == types.Float {
			a.Features.markFloats()
		}
		if e.Op == ast.OpSign {
			return types.TInteger
		}
		return operand

	default:
		a.errorf(e.Position, "", "internal: unhandled unary operator")
		return types.TUnknown
	}
}

func (a *Analyzer) analyzeCall(e *ast.Call, s *scope) types.Type {
	sig, ok := a.funcs[e.Callee]
	if !ok {
		a.errorf(e.Position, "", "undefined function %q", e.Callee)
		for _, arg := range e.Args {
			a.analyzeExpr(arg, s)
		}
		return types.TUnknown
	}
	sig.used = true

	if len(e.Args) != len(sig.Params) {
		a.errorf(e.Position, "", "%q expects %d argument(s), got %d", e.Callee, len(sig.Params), len(e.Args))
	}

	for i, arg := range e.Args {
		argType := a.analyzeExpr(arg, s)
		if i >= len(sig.Params) {
			continue
		}
		if !types.AssignableTo(argType, sig.Params[i]) {
			a.errorf(arg.Pos(), "", "argument %d of %q: expected %s, got %s", i+1, e.Callee, sig.Params[i], argType)
		}
	}

	return sig.ReturnType
}

func (a *Analyzer) analyzePropertyAccess(e *ast.PropertyAccess, s *scope) types.Type {
	objType := a.analyzeExpr(e.Object, s)

	switch objType.Kind {
	case types.List:
		a.Features.markLists()
	case types.Buffer:
		a.Features.markBuffers()
	case types.File:
		a.Features.markFiles()
	case types.Time, types.Timer:
		a.Features.markTime()
	case types.String:
		a.Features.markStrings()
	}

	prop, ok := types.LookupProperty(objType.Kind, e.Property)
	if !ok {
		a.errorf(e.Position, "", "%s has no property %q", objType, e.Property)
		return types.TUnknown
	}

	e.ResolvedType = prop.Result
	e.LoweredOp = prop.LoweredOp

	if prop.Result.Kind == types.Unknown && objType.Kind == types.List && objType.Elem != nil {
		e.ResolvedType = *objType.Elem
		return *objType.Elem
	}
	return prop.Result
}

func (a *Analyzer) analyzeIndexAccess(e *ast.IndexAccess, s *scope) types.Type {
	collType := a.analyzeExpr(e.Collection, s)
	idxType := a.analyzeExpr(e.Index, s)

	if !types.Equal(idxType, types.TInteger) {
		a.errorf(e.Index.Pos(), "", "index must be a number, got %s", idxType)
	}

	switch e.Kind {
	case ast.IndexElement:
		a.Features.markLists()
	case ast.IndexByte:
		a.Features.markBuffers()
	}

	elem, ok := types.Elementary(collType)
	if !ok {
		a.errorf(e.Position, "", "%s does not support element/byte access", collType)
		return types.TUnknown
	}
	return elem
}

func (a *Analyzer) analyzeCast(e *ast.Cast, s *scope) types.Type {
	valType := a.analyzeExpr(e.Value, s)

	if e.PadTo != nil {
		a.Features.markFormat()
		padType := a.analyzeExpr(e.PadTo, s)
		if !types.Equal(padType, types.TInteger) {
			a.errorf(e.PadTo.Pos(), "", "padding width must be a number, got %s", padType)
		}
	}

	if e.Unit != "" {
		switch e.Unit {
		case "hex", "binary", "octal":
			a.Features.markFormat()
			return types.TString
		}
		a.Features.markTime()
		return valType
	}

	if e.Target.Kind == types.Unknown {
		a.errorf(e.Position, "", "internal: cast with no target type or unit")
		return valType
	}

	if e.Target.Kind == types.String {
		a.Features.markFormat()
	}
	if e.Target.Kind == types.Float || valType.Kind == types.Float {
		a.Features.markFloats()
	}

	switch {
	case types.IsNumeric(valType) && types.IsNumeric(e.Target):
	case valType.Kind == types.String && types.IsNumeric(e.Target):
	case types.IsNumeric(valType) && e.Target.Kind == types.String:
	case valType.Kind == types.Boolean && e.Target.Kind == types.String:
	default:
		a.errorf(e.Position, "", "cannot cast %s to %s", valType, e.Target)
	}

	return e.Target
}

func (a *Analyzer) analyzeArgQuery(e *ast.ArgQuery, s *scope) types.Type {
	switch e.Kind {
	case ast.ArgCount:
		a.Features.markArgs()
		return types.TInteger
	case ast.ArgAll:
		a.Features.markArgs()
		return types.ListOf(types.TString)
	case ast.ArgProgramName:
		a.Features.markArgs()
		return types.TString
	case ast.ArgAt:
		a.Features.markArgs()
		if e.Index != nil {
			if t := a.analyzeExpr(e.Index, s); !types.Equal(t, types.TInteger) {
				a.errorf(e.Position, "", "argument index must be a number, got %s", t)
			}
		}
		return types.TString
	case ast.EnvLookup:
		a.Features.markEnv()
		if e.Name != nil {
			if t := a.analyzeExpr(e.Name, s); !types.Equal(t, types.TString) {
				a.errorf(e.Position, "", "environment lookup key must be text, got %s", t)
			}
		}
		return types.TString
	case ast.EnvAt:
		a.Features.markEnv()
		if e.Index != nil {
			if t := a.analyzeExpr(e.Index, s); !types.Equal(t, types.TInteger) {
				a.errorf(e.Position, "", "environment index must be a number, got %s", t)
			}
		}
		return types.TString
	case ast.EnvCount:
		a.Features.markEnv()
		return types.TInteger
	default:
		a.errorf(e.Position, "", "internal: unhandled argument query")
		return types.TUnknown
	}
}
