package semantic

import (
	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/types"
)

// analyzeStmt validates one statement and, for constructs that open a
// nested block, recurses into a child scope.
func (a *Analyzer) analyzeStmt(stmt ast.Stmt, s *scope) {
	switch n := stmt.(type) {
	case *ast.VarDecl:
		a.analyzeVarDecl(n, s)
	case *ast.Assign:
		a.analyzeAssign(n, s)
	case *ast.Print:
		a.analyzePrint(n, s)
	case *ast.If:
		a.analyzeIf(n, s)
	case *ast.While:
		a.analyzeWhile(n, s)
	case *ast.ForEach:
		a.analyzeForEach(n, s)
	case *ast.Return:
		a.analyzeReturn(n, s)
	case *ast.IncDec:
		a.analyzeIncDec(n, s)
	case *ast.Break:
		if a.loopDepth == 0 {
			a.errorf(n.Position, "", "\"break\" outside a loop")
		}
	case *ast.Continue:
		if a.loopDepth == 0 {
			a.errorf(n.Position, "", "\"continue\" outside a loop")
		}
	case *ast.Exit:
		a.Features.markIO()
		if n.Code != nil {
			if t := a.analyzeExpr(n.Code, s); !types.Equal(t, types.TInteger) {
				a.errorf(n.Position, "", "exit code must be a number, got %s", t)
			}
		}
	case *ast.FileOpen:
		a.analyzeFileOpen(n, s)
	case *ast.FileReadInto:
		a.analyzeFileReadInto(n, s)
	case *ast.FileWriteStmt:
		a.Features.markFiles()
		a.analyzeExpr(n.Value, s)
		a.analyzeExpr(n.Target, s)
	case *ast.FileCloseStmt:
		a.Features.markFiles()
		a.analyzeExpr(n.File, s)
	case *ast.FileDeleteStmt:
		a.Features.markFiles()
		if t := a.analyzeExpr(n.Path, s); !types.Equal(t, types.TString) {
			a.errorf(n.Position, "", "file path must be text, got %s", t)
		}
	case *ast.BufferCreate:
		a.analyzeBufferCreate(n, s)
	case *ast.BufferResize:
		a.Features.markBuffers()
		a.Features.markHeap()
		a.analyzeExpr(n.Buffer, s)
		if t := a.analyzeExpr(n.Size, s); !types.Equal(t, types.TInteger) {
			a.errorf(n.Position, "", "buffer size must be a number, got %s", t)
		}
	case *ast.ByteSet:
		a.Features.markBuffers()
		a.analyzeExpr(n.Buffer, s)
		if t := a.analyzeExpr(n.Index, s); !types.Equal(t, types.TInteger) {
			a.errorf(n.Index.Pos(), "", "byte index must be a number, got %s", t)
		}
		if t := a.analyzeExpr(n.Value, s); !types.Equal(t, types.TInteger) {
			a.errorf(n.Value.Pos(), "", "byte value must be a number, got %s", t)
		}
	case *ast.ListAppend:
		a.analyzeListAppend(n, s)
	case *ast.OnErrorStmt:
		for _, act := range n.Actions {
			a.analyzeStmt(act, s)
		}
	case *ast.TimerCreate:
		a.Features.markTime()
		s.define(n.Name, types.TTimer, symVar, n.Position.Line, n.Position.Column)
	case *ast.TimerStart:
		a.Features.markTime()
		a.analyzeExpr(n.Timer, s)
	case *ast.TimerStop:
		a.Features.markTime()
		a.analyzeExpr(n.Timer, s)
	case *ast.Wait:
		a.Features.markTime()
		if t := a.analyzeExpr(n.Duration, s); !types.IsNumeric(t) {
			a.errorf(n.Position, "", "wait duration must be a number, got %s", t)
		}
	case *ast.GetCurrentTime:
		a.Features.markTime()
		if t, ok := a.lookupVar(n.Into, s, n.Position); ok && !types.Equal(t, types.TTime) {
			a.errorf(n.Position, "", "%q must be a time variable, got %s", n.Into, t)
		}
	case *ast.FuncDecl:
		// Nested function declarations do not occur in EC; top-level
		// functions are analyzed separately by analyzeFunction.
	default:
		a.errorf(stmt.Pos(), "", "internal: unhandled statement %T", stmt)
	}
}

func (a *Analyzer) analyzeVarDecl(n *ast.VarDecl, s *scope) {
	if n.Init != nil {
		initType := a.analyzeExpr(n.Init, s)
		if !types.Equal(initType, types.TUnknown) && !types.AssignableTo(initType, n.Type) {
			a.errorf(n.Position, "", "%q is declared as %s but initialized with %s", n.Name, n.Type, initType)
		}
	}
	switch n.Type.Kind {
	case types.Float:
		a.Features.markFloats()
	case types.List:
		// A bare list declaration allocates its backing storage via
		// rt_list_alloc, which calls rt_heap_alloc_header directly (no
		// intervening Append is required to pull the heap module in).
		a.Features.markLists()
		a.Features.markHeap()
	case types.Buffer:
		a.Features.markBuffers()
	case types.File:
		a.Features.markFiles()
	case types.Time, types.Timer:
		a.Features.markTime()
	case types.String:
		a.Features.markStrings()
	}
	s.define(n.Name, n.Type, symVar, n.Position.Line, n.Position.Column)
}

func (a *Analyzer) analyzeAssign(n *ast.Assign, s *scope) {
	declType, ok := a.lookupVar(n.Name, s, n.Position)
	valType := a.analyzeExpr(n.Value, s)
	if ok && !types.Equal(valType, types.TUnknown) && !types.AssignableTo(valType, declType) {
		a.errorf(n.Position, "", "%q is %s, cannot assign %s", n.Name, declType, valType)
	}
}

func (a *Analyzer) analyzePrint(n *ast.Print, s *scope) {
	a.Features.markIO()
	valType := a.analyzeExpr(n.Value, s)
	if valType.Kind == types.Float {
		a.Features.markFloats()
	}
	for _, bi := range n.ButIf {
		if t := a.analyzeExpr(bi.Cond, s); !types.Equal(t, types.TBoolean) {
			a.errorf(n.Position, "", "\"but if\" condition must be a boolean, got %s", t)
		}
		a.analyzeExpr(bi.Value, s)
	}
}

func (a *Analyzer) analyzeIf(n *ast.If, s *scope) {
	if t := a.analyzeExpr(n.Cond, s); !types.Equal(t, types.TBoolean) {
		a.errorf(n.Position, "", "\"if\" condition must be a boolean, got %s", t)
	}
	a.analyzeBlock(n.Then, s)
	for _, ei := range n.ElseIfs {
		if t := a.analyzeExpr(ei.Cond, s); !types.Equal(t, types.TBoolean) {
			a.errorf(n.Position, "", "\"or-if\" condition must be a boolean, got %s", t)
		}
		a.analyzeBlock(ei.Body, s)
	}
	if n.Else != nil {
		a.analyzeBlock(n.Else, s)
	}
}

func (a *Analyzer) analyzeWhile(n *ast.While, s *scope) {
	if t := a.analyzeExpr(n.Cond, s); !types.Equal(t, types.TBoolean) {
		a.errorf(n.Position, "", "\"while\" condition must be a boolean, got %s", t)
	}
	if lit, ok := n.Cond.(*ast.BoolLit); ok {
		a.warnf(n.Position, "", "loop condition is always %t", lit.Value)
	}
	if len(n.Body) == 0 {
		a.warnf(n.Position, "", "loop body is empty")
	}
	a.loopDepth++
	a.analyzeBlock(n.Body, s)
	a.loopDepth--
}

func (a *Analyzer) analyzeForEach(n *ast.ForEach, s *scope) {
	iterType := a.resolveCollection(n.Collection, s)

	if len(n.Body) == 0 && len(n.ButIf) == 0 {
		a.warnf(n.Position, "", "loop body is empty")
	}

	child := newScope(s)
	child.define(n.Iterator, iterType, symLoopVar, n.Position.Line, n.Position.Column)
	child.names[n.Iterator].used = true

	for _, tc := range n.Treating {
		if t := a.analyzeExpr(tc.Match, child); !types.AssignableTo(t, iterType) {
			a.errorf(n.Position, "", "\"treating\" match must be %s, got %s", iterType, t)
		}
		a.analyzeExpr(tc.Replacement, child)
	}
	for _, bi := range n.ButIf {
		if t := a.analyzeExpr(bi.Cond, child); !types.Equal(t, types.TBoolean) {
			a.errorf(n.Position, "", "\"but if\" condition must be a boolean, got %s", t)
		}
		a.analyzeExpr(bi.Value, child)
	}

	a.loopDepth++
	for _, stmt := range n.Body {
		a.analyzeStmt(stmt, child)
	}
	a.loopDepth--
}

// resolveCollection determines the element type a ForEach iterates over,
// validating that the collection expression is actually iterable
// (spec.md §4.3: "verify that loop-expansion collections are iterable:
// list, range, arguments's all, environment list").
func (a *Analyzer) resolveCollection(coll ast.Expr, s *scope) types.Type {
	switch c := coll.(type) {
	case *ast.RangeExpr:
		return a.analyzeExpr(c, s)
	case *ast.ArgQuery:
		t := a.analyzeArgQuery(c, s)
		if c.Kind != ast.ArgAll && c.Kind != ast.EnvCount {
			a.errorf(c.Position, "", "%q is not iterable", argQueryName(c.Kind))
		}
		if c.Kind == ast.EnvCount {
			return types.TString
		}
		if t.Kind == types.List && t.Elem != nil {
			return *t.Elem
		}
		return types.TString
	default:
		t := a.analyzeExpr(coll, s)
		if t.Kind != types.List {
			a.errorf(coll.Pos(), "", "cannot iterate over %s", t)
			return types.TUnknown
		}
		a.Features.markLists()
		if t.Elem != nil {
			return *t.Elem
		}
		return types.TUnknown
	}
}

func argQueryName(k ast.ArgQueryKind) string {
	switch k {
	case ast.ArgCount:
		return "arguments's count"
	case ast.ArgProgramName:
		return "arguments's name"
	case ast.ArgAt:
		return "argument"
	case ast.EnvLookup:
		return "environment's lookup"
	case ast.EnvAt:
		return "environment's index"
	default:
		return "query"
	}
}

func (a *Analyzer) analyzeBlock(body []ast.Stmt, s *scope) {
	child := newScope(s)
	for _, stmt := range body {
		a.analyzeStmt(stmt, child)
	}
	reportUnusedInScope(a, child)
}

func (a *Analyzer) analyzeReturn(n *ast.Return, s *scope) {
	if a.currentFunc == nil {
		a.errorf(n.Position, "", "\"return\" used outside a function")
		if n.Value != nil {
			a.analyzeExpr(n.Value, s)
		}
		return
	}
	var valType types.Type
	if n.Value != nil {
		valType = a.analyzeExpr(n.Value, s)
	}
	if n.Value == nil && a.currentFunc.ReturnType.Kind != types.Unknown {
		a.errorf(n.Position, "", "%q must return a %s", a.currentFunc.Name, a.currentFunc.ReturnType)
		return
	}
	if n.Value != nil && !types.AssignableTo(valType, a.currentFunc.ReturnType) {
		a.errorf(n.Position, "", "%q returns %s but this return gives %s", a.currentFunc.Name, a.currentFunc.ReturnType, valType)
	}
}

func (a *Analyzer) analyzeIncDec(n *ast.IncDec, s *scope) {
	t, ok := a.lookupVar(n.Name, s, n.Position)
	if ok && !types.Equal(t, types.TInteger) {
		a.errorf(n.Position, "", "increment/decrement requires a number, got %s", t)
	}
}

func (a *Analyzer) analyzeFileOpen(n *ast.FileOpen, s *scope) {
	a.Features.markFiles()
	if t := a.analyzeExpr(n.Path, s); !types.Equal(t, types.TString) {
		a.errorf(n.Position, "", "file path must be text, got %s", t)
	}
	s.define(n.Name, types.TFile, symVar, n.Position.Line, n.Position.Column)
}

func (a *Analyzer) analyzeFileReadInto(n *ast.FileReadInto, s *scope) {
	a.Features.markFiles()
	a.analyzeExpr(n.Source, s)
	if t, ok := a.lookupVar(n.Into, s, n.Position); ok && !types.Equal(t, types.TBuffer) {
		a.errorf(n.Position, "", "%q must be a buffer, got %s", n.Into, t)
	}
}

func (a *Analyzer) analyzeBufferCreate(n *ast.BufferCreate, s *scope) {
	a.Features.markBuffers()
	// rt_buf_alloc_fixed calls rt_heap_alloc_header just like
	// rt_buf_alloc_dynamic does, so both buffer kinds need the heap
	// module, not only the growable one.
	a.Features.markHeap()
	if n.Size != nil {
		if t := a.analyzeExpr(n.Size, s); !types.Equal(t, types.TInteger) {
			a.errorf(n.Position, "", "buffer size must be a number, got %s", t)
		}
	}
	s.define(n.Name, types.TBuffer, symVar, n.Position.Line, n.Position.Column)
}

func (a *Analyzer) analyzeListAppend(n *ast.ListAppend, s *scope) {
	a.Features.markLists()
	a.Features.markHeap()
	listType := a.analyzeExpr(n.List, s)
	valType := a.analyzeExpr(n.Value, s)
	if listType.Kind == types.List && listType.Elem != nil {
		if !types.AssignableTo(valType, *listType.Elem) {
			a.warnf(n.Position, "", "appending %s to a list of %s", valType, *listType.Elem)
		}
	}
}
