package semantic

import "github.com/ec-lang/ec/internal/types"

// symbolKind distinguishes the handful of name categories the analyzer
// needs to tell apart when reporting diagnostics (spec.md §4.3: "a stack
// of scopes mapping names to (declared type, kind, source position)").
type symbolKind int

const (
	symVar symbolKind = iota
	symParam
	symLoopVar
)

// symbol is one entry in a scope.
type symbol struct {
	Name    string
	Type    types.Type
	Kind    symbolKind
	Line    int
	Column  int
	used    bool
	shadows bool
}

// scope is one level of lexical nesting: function bodies and loop/if
// bodies each open a scope, closed when the analyzer finishes walking
// that block.
type scope struct {
	names map[string]*symbol
	outer *scope
}

func newScope(outer *scope) *scope {
	return &scope{names: make(map[string]*symbol), outer: outer}
}

// define adds name to this scope, recording whether it shadows a name
// already visible from an outer scope (spec.md §4.3: "mark shadowing").
func (s *scope) define(name string, t types.Type, kind symbolKind, line, col int) *symbol {
	_, shadowed := s.lookupOuter(name)
	sym := &symbol{Name: name, Type: t, Kind: kind, Line: line, Column: col, shadows: shadowed}
	s.names[name] = sym
	return sym
}

// lookup resolves name in this scope or any enclosing scope.
func (s *scope) lookup(name string) (*symbol, bool) {
	for cur := s; cur != nil; cur = cur.outer {
		if sym, ok := cur.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// lookupOuter resolves name starting one level up from s, used to detect
// shadowing when a new symbol is being defined in s itself.
func (s *scope) lookupOuter(name string) (*symbol, bool) {
	if s.outer == nil {
		return nil, false
	}
	return s.outer.lookup(name)
}

// funcSignature is the pre-pass table entry for one declared function,
// built before the body of any function is walked so forward references
// resolve (spec.md §4.3: "a function table built in a pre-pass").
type funcSignature struct {
	Name       string
	Params     []types.Type
	ParamNames []string
	ReturnType types.Type
	Line       int
	Column     int
	used       bool
}
