// Package semantic implements EC's one-pass analyzer (spec.md §4.3): scope
// tracking, a function pre-pass table so forward references resolve,
// type inference and validation, property-table resolution, and the
// feature-use flags that drive which runtime modules the code generator
// includes.
package semantic

import (
	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/diagnostics"
	"github.com/ec-lang/ec/internal/types"
)

// Analyzer walks a parsed Program once, recording diagnostics into a
// Sink supplied by the caller (spec.md §9: a Sink is created per
// compilation, never reused across runs).
type Analyzer struct {
	diags *diagnostics.Sink

	funcs     map[string]*funcSignature
	funcOrder []string

	global      *scope
	currentFunc *funcSignature

	loopDepth int

	Features Features
}

// New creates an analyzer that reports into diags.
func New(diags *diagnostics.Sink) *Analyzer {
	return &Analyzer{
		diags: diags,
		funcs: make(map[string]*funcSignature),
		global: newScope(nil),
	}
}

// Analyze performs the full pass over prog: a function pre-pass, then
// top-level statements in source order, then each function body.
// Diagnostics are reported into the Sink supplied to New; the caller
// decides (spec.md §7) whether to abort code generation by checking
// Sink.HasErrors after Analyze returns.
func (a *Analyzer) Analyze(prog *ast.Program) {
	a.prepassFunctions(prog)

	for _, stmt := range prog.TopLevel {
		a.analyzeStmt(stmt, a.global)
	}

	for _, fn := range prog.Functions {
		a.analyzeFunction(fn)
	}

	a.reportUnused()
}

// prepassFunctions builds the function table before any body is
// analyzed, so a call to a function defined later in the file resolves
// (spec.md §4.3: "a function table built in a pre-pass so forward
// references resolve"; spec.md §9: "symbol resolution is two-pass").
func (a *Analyzer) prepassFunctions(prog *ast.Program) {
	for _, fn := range prog.Functions {
		if _, exists := a.funcs[fn.Name]; exists {
			a.errorf(fn.Position, "", "function %q is already declared", fn.Name)
			continue
		}
		sig := &funcSignature{
			Name:       fn.Name,
			ReturnType: fn.ReturnType,
			Line:       fn.Position.Line,
			Column:     fn.Position.Column,
		}
		for _, p := range fn.Params {
			sig.Params = append(sig.Params, p.Type)
			sig.ParamNames = append(sig.ParamNames, p.Name)
		}
		a.funcs[fn.Name] = sig
		a.funcOrder = append(a.funcOrder, fn.Name)
	}
}

func (a *Analyzer) analyzeFunction(fn *ast.FuncDecl) {
	sig := a.funcs[fn.Name]
	prevFunc := a.currentFunc
	a.currentFunc = sig
	defer func() { a.currentFunc = prevFunc }()

	fnScope := newScope(a.global)
	for _, p := range fn.Params {
		sym := fnScope.define(p.Name, p.Type, symParam, fn.Position.Line, fn.Position.Column)
		sym.used = true // unused-parameter warnings are out of scope; only locals/functions are tracked
	}

	for _, stmt := range fn.Body {
		a.analyzeStmt(stmt, fnScope)
	}
}

// errorf records an error diagnostic at the analyze stage.
func (a *Analyzer) errorf(pos ast.Position, hint, format string, args ...any) {
	a.diags.Error(diagnostics.StageAnalyze, pos, hint, format, args...)
}

// warnf records a warning diagnostic at the analyze stage.
func (a *Analyzer) warnf(pos ast.Position, hint, format string, args ...any) {
	a.diags.Warn(diagnostics.StageAnalyze, pos, hint, format, args...)
}

// reportUnused emits the unused-variable and unused-function warnings
// spec.md §4.3 classifies as warnings, not errors.
func (a *Analyzer) reportUnused() {
	reportUnusedInScope(a, a.global)
	for _, name := range a.funcOrder {
		sig := a.funcs[name]
		if !sig.used && name != "main" {
			a.warnf(ast.Position{Line: sig.Line, Column: sig.Column}, "", "function %q is never called", name)
		}
	}
}

func reportUnusedInScope(a *Analyzer, s *scope) {
	for _, sym := range s.names {
		if sym.Kind == symVar && !sym.used {
			a.warnf(ast.Position{Line: sym.Line, Column: sym.Column}, "", "variable %q is never used", sym.Name)
		}
		if sym.shadows {
			a.warnf(ast.Position{Line: sym.Line, Column: sym.Column}, "", "%q shadows a variable from an outer scope", sym.Name)
		}
	}
}

// lookupVar resolves name against the given scope chain, marking it
// used, and reports an undefined-variable error when it isn't found.
func (a *Analyzer) lookupVar(name string, s *scope, pos ast.Position) (types.Type, bool) {
	sym, ok := s.lookup(name)
	if !ok {
		a.errorf(pos, "declare it with \"a <type> called \\\""+name+"\\\"\" before using it", "undefined variable %q", name)
		return types.TUnknown, false
	}
	sym.used = true
	return sym.Type, true
}
