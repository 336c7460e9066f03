// Package codegen lowers an analyzed EC program into freestanding x86_64
// assembly (spec.md §4.4 "Code generator"). It generalizes the teacher's
// one-Go-function-per-operator shape (each genXxx returning a fragment of
// raw asm text, label collisions broken by a numeric #ID substituted with
// strings.Replace) from a flat RPN expression stack to a full statement
// and expression tree, and swaps every libc call (printf, exit) for the
// runtime package's syscall-based routines, since spec.md forbids an OS
// runtime under the generated binary.
//
// Every EC value - integer, float, boolean, string/buffer/list/file/timer
// pointer - is kept in an 8-byte stack slot. Integers and pointers pass
// through general registers; floats pass through xmm0/xmm1 to match the
// runtime's SSE2 calling convention. There is no register allocator: like
// the teacher, intermediate values spill to the machine stack (push/pop
// for integers, an explicit 8-byte xmm spill for floats) rather than
// being tracked across a live range.
package codegen

import (
	"fmt"
	"strings"

	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/runtime"
	"github.com/ec-lang/ec/internal/semantic"
	"github.com/ec-lang/ec/internal/stack"
	"github.com/ec-lang/ec/internal/types"
)

// Generator holds the mutable state threaded through code generation for
// one compilation unit. A Generator is used once, for one Program.
type Generator struct {
	body strings.Builder
	data strings.Builder

	labelCounter int

	// vars maps a variable/parameter name to its rbp-relative stack slot
	// within the function currently being generated (or the synthetic
	// "_start" function for top-level statements).
	vars map[string]int
	// nextSlot is the next free (negative) offset from rbp to hand out.
	nextSlot int

	// varTypes records the declared type of each local, needed to pick
	// the integer-register or xmm0 lowering for loads/stores/arguments.
	varTypes map[string]types.Type

	// timerStorage maps a timer variable's name to the rbp-relative
	// offset of its 16-byte start/stop pair; the variable's own slot
	// (in vars) holds a pointer to that pair, computed once in
	// genTimerCreate.
	timerStorage map[string]int

	funcs map[string]*ast.FuncDecl

	loops *stack.Stack

	strConsts   map[string]string
	floatConsts map[string]string

	shared bool
}

// New creates a Generator. shared controls whether the emitted unit
// exports every top-level function symbol (as ec_<name>) instead of
// emitting _start, matching the --shared CLI flag described in
// SPEC_FULL.md; data is addressed rip-relative in both modes.
func New(funcs []*ast.FuncDecl, shared bool) *Generator {
	g := &Generator{
		vars:         map[string]int{},
		varTypes:     map[string]types.Type{},
		timerStorage: map[string]int{},
		funcs:        map[string]*ast.FuncDecl{},
		loops:        stack.New(),
		strConsts:    map[string]string{},
		floatConsts:  map[string]string{},
		shared:       shared,
	}
	for _, f := range funcs {
		g.funcs[f.Name] = f
	}
	return g
}

// label returns a fresh, globally unique label built from a human-readable
// prefix, the way the teacher's "#ID" substitution kept genFactorial's and
// genPower's internal labels from colliding across multiple uses in the
// same program.
func (g *Generator) label(prefix string) string {
	g.labelCounter++
	return fmt.Sprintf(".L%s_%d", prefix, g.labelCounter)
}

func (g *Generator) emit(format string, args ...interface{}) {
	fmt.Fprintf(&g.body, format, args...)
	g.body.WriteString("\n")
}

func (g *Generator) emitRaw(text string) {
	g.body.WriteString(text)
}

// Generate produces the full assembly text for prog: the translation-unit
// header, the top-level statements lowered into _start, every function
// body, and the runtime modules the accumulated feature set requires.
func Generate(prog *ast.Program, feats semantic.Features) (string, error) {
	g := New(prog.Functions, false)
	return g.generate(prog, feats)
}

// GenerateShared is the --shared entry point (SPEC_FULL.md CLI section):
// every top-level function becomes a globally exported symbol and there
// is no _start (the unit is linked as a shared object, not an executable).
func GenerateShared(prog *ast.Program, feats semantic.Features) (string, error) {
	g := New(prog.Functions, true)
	return g.generate(prog, feats)
}

func (g *Generator) generate(prog *ast.Program, feats semantic.Features) (string, error) {
	g.emitRaw(".intel_syntax noprefix\n")
	if g.shared {
		for _, f := range prog.Functions {
			g.emit(".global ec_%s", f.Name)
		}
	} else {
		g.emitRaw(".global _start\n")
	}
	g.emitRaw("\n.text\n")

	if !g.shared {
		if err := g.genStart(prog, feats); err != nil {
			return "", err
		}
	}

	for _, fn := range prog.Functions {
		if err := g.genFunction(fn); err != nil {
			return "", err
		}
	}

	var out strings.Builder
	out.WriteString(g.body.String())
	out.WriteString(runtime.Assemble(moduleSetFromFeatures(feats)))
	out.WriteString("\n.data\n")
	out.WriteString(g.data.String())
	return out.String(), nil
}

// moduleSetFromFeatures translates the analyzer's package-local feature
// flags into the runtime package's independent mirror struct, the
// translation step runtime.go's doc comment says codegen owns.
func moduleSetFromFeatures(f semantic.Features) runtime.ModuleSet {
	return runtime.ModuleSet{
		IO:      f.IO,
		Format:  f.Format,
		Floats:  f.Floats,
		Files:   f.Files,
		Buffers: f.Buffers,
		Lists:   f.Lists,
		Strings: f.Strings,
		Time:    f.Time,
		Args:    f.Args,
		Env:     f.Env,
		Math:    f.Math,
		Binary:  f.Binary,
		Heap:    f.Heap,
	}
}

// genStart lowers the program's top-level statements into the process
// entry point. rt_save_args must run first, before rbp is established,
// per the args module's documented stack-layout constraint.
func (g *Generator) genStart(prog *ast.Program, feats semantic.Features) error {
	g.vars = map[string]int{}
	g.varTypes = map[string]types.Type{}
	g.timerStorage = map[string]int{}
	g.nextSlot = 0

	slots := g.reserveSlots(prog.TopLevel)

	g.emitRaw("_start:\n")
	if feats.Args || feats.Env {
		g.emit("        call rt_save_args")
	}
	g.emit("        push rbp")
	g.emit("        mov rbp, rsp")
	// The kernel hands control to _start with rsp 16-byte aligned, so
	// after "push rbp" it sits at 8 mod 16; genFunction's frames start
	// from a call-aligned 0 mod 16 instead, so this needs its own
	// 8-mod-16 target rather than genFunction's plain alignTo16(slots+8)
	// (spec.md §4.4: "stack 16-byte aligned at each call site").
	g.emit("        sub rsp, %d", alignTo16(slots+8)-8)

	for _, s := range prog.TopLevel {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}

	if feats.Files {
		g.emit("        call rt_fd_cleanup")
	}
	if feats.Buffers {
		g.emit("        call rt_buf_cleanup")
	}
	g.emit("        mov rdi, 0")
	g.emit("        call rt_exit")
	return nil
}

// genFunction lowers one EC function into a labeled assembly routine
// using the System V AMD64 calling convention: the first six integer/
// pointer arguments arrive in rdi, rsi, rdx, rcx, r8, r9; floats arrive
// in xmm0.. in parallel order. EC functions never take more than a
// handful of parameters in practice, so no stack-passed-argument case is
// implemented.
func (g *Generator) genFunction(fn *ast.FuncDecl) error {
	g.vars = map[string]int{}
	g.varTypes = map[string]types.Type{}
	g.timerStorage = map[string]int{}
	g.nextSlot = 0

	intRegs := []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
	floatRegs := []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5"}
	intIdx, floatIdx := 0, 0

	paramSlots := make([]int, len(fn.Params))
	for i, p := range fn.Params {
		off := g.allocSlot(p.Name, p.Type)
		paramSlots[i] = off
	}
	slots := g.reserveSlots(fn.Body)

	name := fn.Name
	if g.shared {
		g.emit("ec_%s:", name)
	} else {
		g.emit("func_%s:", name)
	}
	g.emit("        push rbp")
	g.emit("        mov rbp, rsp")
	g.emit("        sub rsp, %d", alignTo16(slots+8))

	for i, p := range fn.Params {
		off := paramSlots[i]
		if p.Type.Kind == types.Float {
			if floatIdx < len(floatRegs) {
				g.emit("        movsd qword ptr [rbp - %d], %s", off, floatRegs[floatIdx])
				floatIdx++
			}
		} else {
			if intIdx < len(intRegs) {
				g.emit("        mov qword ptr [rbp - %d], %s", off, intRegs[intIdx])
				intIdx++
			}
		}
	}

	for _, s := range fn.Body {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}

	// Fall off the end of a function whose last statement wasn't a
	// Return: every explicit Return already emits its own leave/ret
	// inline, so this is only reached when control runs past the body.
	g.emitFuncEpilogue()
	return nil
}

func (g *Generator) emitFuncEpilogue() {
	g.emit("        leave")
	g.emit("        ret")
}

// reserveSlots walks a statement list assigning a stack slot to every
// VarDecl, ForEach iterator, and resource-creating statement (FileOpen,
// BufferCreate, TimerCreate) it finds, recursing into nested blocks so a
// variable declared inside an if/while/for-each still gets a slot in the
// enclosing function's frame (EC has no nested closures - spec.md §3 -
// so one flat frame per function suffices). Returns the total bytes
// reserved.
func (g *Generator) reserveSlots(stmts []ast.Stmt) int {
	for _, s := range stmts {
		g.reserveSlotsStmt(s)
	}
	return -g.nextSlot
}

func (g *Generator) reserveSlotsStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.VarDecl:
		g.allocSlot(st.Name, st.Type)
	case *ast.If:
		g.reserveSlots(st.Then)
		for _, ei := range st.ElseIfs {
			g.reserveSlots(ei.Body)
		}
		g.reserveSlots(st.Else)
	case *ast.While:
		g.reserveSlots(st.Body)
	case *ast.ForEach:
		t := iteratorType(st)
		if elem, ok := types.Elementary(g.typeOf(st.Collection)); ok && elem.Kind != types.Unknown {
			t = elem
		}
		g.allocSlot(st.Iterator, t)
		g.reserveSlots(st.Body)
	case *ast.FileOpen:
		g.allocSlot(st.Name, types.TFile)
	case *ast.BufferCreate:
		g.allocSlot(st.Name, types.TBuffer)
	case *ast.TimerCreate:
		g.allocSlot(st.Name, types.TTimer)
		g.nextSlot -= 16
		g.timerStorage[st.Name] = -g.nextSlot
	case *ast.FileReadInto:
		// Into already has a slot from its own VarDecl elsewhere.
	case *ast.GetCurrentTime:
		// Into already has a slot from its own VarDecl elsewhere.
	case *ast.OnErrorStmt:
		g.reserveSlots(st.Actions)
	}
}

// iteratorType gives the loop variable's type from the collection shape
// alone: a range yields integers and argument/environment iteration
// yields text. Any other collection defaults to integer here;
// reserveSlotsStmt replaces that with a list's declared element type.
func iteratorType(fe *ast.ForEach) types.Type {
	if _, ok := fe.Collection.(*ast.RangeExpr); ok {
		return types.TInteger
	}
	if _, ok := fe.Collection.(*ast.ArgQuery); ok {
		return types.TString
	}
	return types.TInteger
}

func (g *Generator) allocSlot(name string, t types.Type) int {
	if off, ok := g.vars[name]; ok {
		return off
	}
	g.nextSlot -= 8
	off := -g.nextSlot
	g.vars[name] = off
	g.varTypes[name] = t
	return off
}

func alignTo16(n int) int {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}

// internString returns the data-section label for a string literal's raw
// bytes, registering it in g.data the first time it is seen (mirrors the
// teacher's escapeConstant/constants-map pattern for floating-point
// literals, generalized to null-terminated byte strings).
func (g *Generator) internString(raw string) string {
	if lbl, ok := g.strConsts[raw]; ok {
		return lbl
	}
	lbl := fmt.Sprintf("str_%d", len(g.strConsts))
	g.strConsts[raw] = lbl
	fmt.Fprintf(&g.data, "%s: .asciz %q\n", lbl, raw)
	return lbl
}

// internFloat returns the data-section label holding the IEEE-754 bit
// pattern of v, the same escape-and-dedup trick the teacher's
// escapeConstant used for "3.0"/"-1.3"-shaped literals, generalized to
// an arbitrary float64 key instead of the teacher's source-text key.
func (g *Generator) internFloat(v float64) string {
	key := fmt.Sprintf("%g", v)
	if lbl, ok := g.floatConsts[key]; ok {
		return lbl
	}
	lbl := fmt.Sprintf("flt_%d", len(g.floatConsts))
	g.floatConsts[key] = lbl
	fmt.Fprintf(&g.data, "%s: .double %v\n", lbl, v)
	return lbl
}
