// Package types defines EC's closed set of value types (spec.md §3) and
// the handful of operations the analyzer and code generator need over it:
// equality, numeric widening, and the property table that backs every
// "object's property" expression.
package types

import "fmt"

// Kind is the tag of the closed type sum.
type Kind int

const (
	Unknown Kind = iota
	Integer
	Float
	String
	Boolean
	Buffer
	File
	List
	Time
	Timer
)

// Type is a fully-resolved EC type. Elem is only meaningful when Kind ==
// List, giving the element type (spec.md §3: "List<element>").
type Type struct {
	Kind Kind
	Elem *Type
}

var (
	TInteger = Type{Kind: Integer}
	TFloat   = Type{Kind: Float}
	TString  = Type{Kind: String}
	TBoolean = Type{Kind: Boolean}
	TBuffer  = Type{Kind: Buffer}
	TFile    = Type{Kind: File}
	TTime    = Type{Kind: Time}
	TTimer   = Type{Kind: Timer}
	TUnknown = Type{Kind: Unknown}
)

// ListOf builds a List<element> type.
func ListOf(elem Type) Type {
	e := elem
	return Type{Kind: List, Elem: &e}
}

func (t Type) String() string {
	switch t.Kind {
	case Unknown:
		return "unknown"
	case Integer:
		return "number"
	case Float:
		return "float"
	case String:
		return "text"
	case Boolean:
		return "boolean"
	case Buffer:
		return "buffer"
	case File:
		return "file"
	case Time:
		return "time"
	case Timer:
		return "timer"
	case List:
		if t.Elem == nil {
			return "list"
		}
		return fmt.Sprintf("list of %s", t.Elem.String())
	default:
		return "?"
	}
}

// Equal reports whether two types are identical, including element types
// for lists.
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == List {
		if a.Elem == nil || b.Elem == nil {
			return a.Elem == b.Elem
		}
		return Equal(*a.Elem, *b.Elem)
	}
	return true
}

// IsNumeric reports whether a type participates in arithmetic.
func IsNumeric(t Type) bool {
	return t.Kind == Integer || t.Kind == Float
}

// Widen returns the type two numeric operands produce together: Integer
// op Integer stays Integer, any Float operand widens the whole expression
// to Float (spec.md §4.4: "floats and integers mixed in one expression
// widen the integer to float").
func Widen(a, b Type) Type {
	if a.Kind == Float || b.Kind == Float {
		return TFloat
	}
	return TInteger
}

// AssignableTo reports whether a value of type from may be stored into a
// variable declared as type to without an explicit cast. The only
// implicit conversion EC allows is integer-to-float widening (spec.md
// §3 invariants).
func AssignableTo(from, to Type) bool {
	if Equal(from, to) {
		return true
	}
	return from.Kind == Integer && to.Kind == Float
}

// Property describes one resolved "object's property" or "element N
// of"/"byte N of" access: the type the access yields, and the lowered
// runtime operation the code generator should call (spec.md §4.3, §9
// "Property tables").
type Property struct {
	Result    Type
	LoweredOp string
}

// propertyTable is the fixed (object-kind, property-name) -> Property
// table spec.md §4.3 and §9 describe. Property names are matched
// case-insensitively, already-folded by the parser before lookup.
var propertyTable = map[Kind]map[string]Property{
	List: {
		"length":   {Result: TInteger, LoweredOp: "list.length"},
		"capacity": {Result: TInteger, LoweredOp: "list.capacity"},
		"empty":    {Result: TBoolean, LoweredOp: "list.empty"},
		"first":    {Result: TUnknown, LoweredOp: "list.first"},
		"last":     {Result: TUnknown, LoweredOp: "list.last"},
	},
	Buffer: {
		"length":   {Result: TInteger, LoweredOp: "buffer.length"},
		"capacity": {Result: TInteger, LoweredOp: "buffer.capacity"},
		"full":     {Result: TBoolean, LoweredOp: "buffer.full"},
	},
	File: {
		"size":   {Result: TInteger, LoweredOp: "file.size"},
		"exists": {Result: TBoolean, LoweredOp: "file.exists"},
	},
	Time: {
		"year":    {Result: TInteger, LoweredOp: "time.year"},
		"month":   {Result: TInteger, LoweredOp: "time.month"},
		"day":     {Result: TInteger, LoweredOp: "time.day"},
		"hour":    {Result: TInteger, LoweredOp: "time.hour"},
		"minute":  {Result: TInteger, LoweredOp: "time.minute"},
		"second":  {Result: TInteger, LoweredOp: "time.second"},
		"unix":    {Result: TInteger, LoweredOp: "time.unix"},
	},
	Timer: {
		"elapsed": {Result: TFloat, LoweredOp: "timer.elapsed"},
		"running": {Result: TBoolean, LoweredOp: "timer.running"},
	},
	String: {
		"length": {Result: TInteger, LoweredOp: "string.length"},
	},
}

// LookupProperty resolves (objectKind, propertyName) against the fixed
// table. ok is false when the combination is undefined, which the
// analyzer reports as an error (spec.md §4.3, §7).
func LookupProperty(objectKind Kind, name string) (Property, bool) {
	table, ok := propertyTable[objectKind]
	if !ok {
		return Property{}, false
	}
	p, ok := table[name]
	return p, ok
}

// Elementary reports the element type produced by an "element N of X" or
// "byte N of X" indexed access over a value of the given type, and
// whether X actually supports indexing at all.
func Elementary(t Type) (Type, bool) {
	switch t.Kind {
	case List:
		if t.Elem != nil {
			return *t.Elem, true
		}
		return TUnknown, true
	case Buffer:
		return TInteger, true // byte N of buffer yields an integer 0..255
	default:
		return TUnknown, false
	}
}
