package codegen

import (
	"fmt"

	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/stack"
	"github.com/ec-lang/ec/internal/types"
)

// genStmt lowers one statement. Every case leaves the machine stack at
// the depth it found it (no statement is itself an expression), matching
// spec.md §3's statement/expression split.
func (g *Generator) genStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.VarDecl:
		return g.genVarDecl(st)
	case *ast.Assign:
		return g.genAssign(st)
	case *ast.Print:
		return g.genPrint(st)
	case *ast.If:
		return g.genIf(st)
	case *ast.While:
		return g.genWhile(st)
	case *ast.ForEach:
		return g.genForEach(st)
	case *ast.Return:
		return g.genReturn(st)
	case *ast.IncDec:
		return g.genIncDec(st)
	case *ast.Break:
		return g.genBreak()
	case *ast.Continue:
		return g.genContinue()
	case *ast.Exit:
		return g.genExit(st)
	case *ast.FileOpen:
		return g.genFileOpen(st)
	case *ast.FileReadInto:
		return g.genFileReadInto(st)
	case *ast.FileWriteStmt:
		return g.genFileWrite(st)
	case *ast.FileCloseStmt:
		return g.genFileClose(st)
	case *ast.FileDeleteStmt:
		return g.genFileDelete(st)
	case *ast.BufferCreate:
		return g.genBufferCreate(st)
	case *ast.BufferResize:
		return g.genBufferResize(st)
	case *ast.ByteSet:
		return g.genByteSet(st)
	case *ast.ListAppend:
		return g.genListAppend(st)
	case *ast.OnErrorStmt:
		return g.genOnError(st)
	case *ast.TimerCreate:
		return g.genTimerCreate(st)
	case *ast.TimerStart:
		return g.genTimerStart(st)
	case *ast.TimerStop:
		return g.genTimerStop(st)
	case *ast.Wait:
		return g.genWait(st)
	case *ast.GetCurrentTime:
		return g.genGetCurrentTime(st)
	}
	return fmt.Errorf("codegen: unhandled statement %T", s)
}

func (g *Generator) genBlock(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genVarDecl(v *ast.VarDecl) error {
	g.allocSlot(v.Name, v.Type)
	if v.Init == nil {
		if v.Type.Kind == types.List {
			// spec.md has no list-literal syntax; a bare "a list of
			// T called N." is the only way to bring one into scope,
			// so declaring it is also where it gets its backing
			// storage (spec.md §4.5 "list").
			g.emit("        call rt_list_alloc")
			return g.genStoreVar(v.Name)
		}
		return nil
	}
	if err := g.genExpr(v.Init); err != nil {
		return err
	}
	if v.Type.Kind == types.Float && g.typeOf(v.Init).Kind != types.Float {
		g.emit("        mov rdi, rax")
		g.emit("        call rt_int_to_float")
	}
	return g.genStoreVar(v.Name)
}

func (g *Generator) genAssign(a *ast.Assign) error {
	if err := g.genExpr(a.Value); err != nil {
		return err
	}
	if g.varTypes[a.Name].Kind == types.Float && g.typeOf(a.Value).Kind != types.Float {
		g.emit("        mov rdi, rax")
		g.emit("        call rt_int_to_float")
	}
	return g.genStoreVar(a.Name)
}

// genPrint lowers a print statement. A plain (non-format) string prints
// directly; a format string walks its parts, printing literal runs via
// rt_print_cstr and each hole according to its resolved type and spec:
// rt_format_float_precision for floats, rt_print_cstr for text,
// rt_format_radix for "x"/"b" specs, and rt_print_int otherwise. Every
// other value type picks the matching runtime print routine.
//
// "but if" clauses are tested in order; the first true condition prints
// its value and skips every later clause and the default value (spec.md
// §4.4 "Loop expansion": "first match wins, default is the loop
// variable") — exactly one value is ever printed per statement.
func (g *Generator) genPrint(p *ast.Print) error {
	end := g.label("print_end")
	for _, bi := range p.ButIf {
		if err := g.genExpr(bi.Cond); err != nil {
			return err
		}
		g.emit("        cmp rax, 0")
		next := g.label("butif_next")
		g.emit("        je %s", next)
		if err := g.genPrintValue(bi.Value); err != nil {
			return err
		}
		g.emit("        jmp %s", end)
		g.emit("%s:", next)
	}
	if err := g.genPrintValue(p.Value); err != nil {
		return err
	}
	g.emit("%s:", end)
	if !p.NoNewline {
		g.emit("        call rt_print_newline")
	}
	return nil
}

func (g *Generator) genPrintValue(v ast.Expr) error {
	if sl, ok := v.(*ast.StringLit); ok && sl.IsFormat() {
		return g.genPrintFormat(sl)
	}
	// A plain "as text" cast prints exactly like its uncast operand.
	if c, ok := v.(*ast.Cast); ok && c.Target.Kind == types.String && c.Unit == "" && c.PadTo == nil {
		v = c.Value
	}
	t := g.typeOf(v)
	if err := g.genExpr(v); err != nil {
		return err
	}
	switch t.Kind {
	case types.Float:
		g.emit("        call rt_print_float")
	case types.String:
		g.emit("        mov rdi, rax")
		g.emit("        call rt_print_cstr")
	case types.Boolean:
		g.emit("        mov rdi, rax")
		g.emit("        mov rsi, 0")
		g.emit("        call rt_print_int")
	default:
		g.emit("        mov rdi, rax")
		g.emit("        mov rsi, 0")
		g.emit("        call rt_print_int")
	}
	return nil
}

func (g *Generator) genPrintFormat(s *ast.StringLit) error {
	for _, part := range s.Parts {
		if part.Hole == nil {
			if part.Literal == "" {
				continue
			}
			lbl := g.internString(part.Literal)
			g.emit("        lea rsi, [rip + %s]", lbl)
			g.emit("        mov rdi, rsi")
			g.emit("        call rt_print_cstr")
			continue
		}
		if err := g.genFormatHole(part); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genFormatHole(part ast.FormatPart) error {
	t := g.typeOf(part.Hole)
	switch t.Kind {
	case types.Float:
		if err := g.genExpr(part.Hole); err != nil {
			return err
		}
		prec := formatPrecision(part.Spec)
		g.emit("        mov rdi, %d", prec)
		g.emit("        call rt_format_float_precision")
	case types.String:
		if err := g.genExpr(part.Hole); err != nil {
			return err
		}
		g.emit("        mov rdi, rax")
		g.emit("        call rt_print_cstr")
	default:
		if err := g.genExpr(part.Hole); err != nil {
			return err
		}
		switch part.Spec {
		case "x":
			g.emit("        mov rdi, rax")
			g.emit("        mov rsi, 16")
			g.emit("        xor rdx, rdx")
			g.emit("        lea rcx, [rip + rt_fmt_hex_prefix]")
			g.emit("        call rt_format_radix")
			g.emit("        mov rsi, rax")
			g.emit("        mov rdi, 1")
			g.emit("        call rt_write")
		case "b":
			g.emit("        mov rdi, rax")
			g.emit("        mov rsi, 2")
			g.emit("        xor rdx, rdx")
			g.emit("        lea rcx, [rip + rt_fmt_bin_prefix]")
			g.emit("        call rt_format_radix")
			g.emit("        mov rsi, rax")
			g.emit("        mov rdi, 1")
			g.emit("        call rt_write")
		default:
			g.emit("        mov rdi, rax")
			g.emit("        mov rsi, %d", formatPadWidth(part.Spec))
			g.emit("        call rt_print_int")
		}
	}
	return nil
}

// formatPrecision parses a ".N"-shaped spec into N, defaulting to 6
// (spec.md §4.2's unqualified float format default) when absent/invalid.
func formatPrecision(spec string) int {
	if len(spec) >= 2 && spec[0] == '.' {
		n := 0
		for _, c := range spec[1:] {
			if c < '0' || c > '9' {
				return 6
			}
			n = n*10 + int(c-'0')
		}
		return n
	}
	return 6
}

// formatPadWidth parses a "0N"-shaped zero-pad spec into N, defaulting
// to 0 (no padding) when absent/invalid.
func formatPadWidth(spec string) int {
	if len(spec) >= 2 && spec[0] == '0' {
		n := 0
		for _, c := range spec[1:] {
			if c < '0' || c > '9' {
				return 0
			}
			n = n*10 + int(c-'0')
		}
		return n
	}
	return 0
}

func (g *Generator) genIf(i *ast.If) error {
	endLbl := g.label("if_end")

	elseLbl := g.label("if_next")
	if err := g.genCompareJump(i.Cond, elseLbl); err != nil {
		return err
	}
	if err := g.genBlock(i.Then); err != nil {
		return err
	}
	g.emit("        jmp %s", endLbl)
	g.emit("%s:", elseLbl)

	for _, ei := range i.ElseIfs {
		nextLbl := g.label("if_next")
		if err := g.genCompareJump(ei.Cond, nextLbl); err != nil {
			return err
		}
		if err := g.genBlock(ei.Body); err != nil {
			return err
		}
		g.emit("        jmp %s", endLbl)
		g.emit("%s:", nextLbl)
	}

	if err := g.genBlock(i.Else); err != nil {
		return err
	}
	g.emit("%s:", endLbl)
	return nil
}

// genCompareJump evaluates cond and jumps to falseLbl when it is false.
func (g *Generator) genCompareJump(cond ast.Expr, falseLbl string) error {
	if err := g.genExpr(cond); err != nil {
		return err
	}
	g.emit("        cmp rax, 0")
	g.emit("        je %s", falseLbl)
	return nil
}

func (g *Generator) genWhile(w *ast.While) error {
	startLbl := g.label("while_start")
	endLbl := g.label("while_end")

	g.loops.Push(stack.LoopLabels{Break: endLbl, Continue: startLbl})
	defer g.loops.Pop()

	g.emit("%s:", startLbl)
	if err := g.genCompareJump(w.Cond, endLbl); err != nil {
		return err
	}
	if err := g.genBlock(w.Body); err != nil {
		return err
	}
	g.emit("        jmp %s", startLbl)
	g.emit("%s:", endLbl)
	return nil
}

// genForEach lowers every collection shape a ForEach can iterate: a
// numeric range, a list (1-based element access), "arguments's all"
// (0-based argv access), and a bare "environment" reference (0-based
// envp access, per the Open Question resolved in DESIGN.md).
func (g *Generator) genForEach(fe *ast.ForEach) error {
	g.allocSlot(fe.Iterator, iteratorType(fe))

	switch coll := fe.Collection.(type) {
	case *ast.RangeExpr:
		return g.genForEachRange(fe, coll)
	case *ast.ArgQuery:
		if coll.Kind == ast.ArgAll {
			return g.genForEachIndexed(fe, "rt_arg_count", "rt_arg_at", 0)
		}
		if coll.Kind == ast.EnvCount {
			return g.genForEachIndexed(fe, "rt_env_count", "rt_env_at", 0)
		}
		return fmt.Errorf("codegen: unsupported ForEach collection kind")
	default:
		return g.genForEachList(fe, coll)
	}
}

func (g *Generator) genForEachRange(fe *ast.ForEach, r *ast.RangeExpr) error {
	startLbl := g.label("foreach_start")
	contLbl := g.label("foreach_cont")
	endLbl := g.label("foreach_end")

	if err := g.genExpr(r.From); err != nil {
		return err
	}
	if err := g.genStoreVar(fe.Iterator); err != nil {
		return err
	}
	if err := g.genExpr(r.To); err != nil {
		return err
	}
	g.emit("        push rax")

	g.loops.Push(stack.LoopLabels{Break: endLbl, Continue: contLbl})
	defer g.loops.Pop()

	g.emit("%s:", startLbl)
	off := g.vars[fe.Iterator]
	g.emit("        mov rax, qword ptr [rbp - %d]", off)
	g.emit("        cmp rax, qword ptr [rsp]")
	g.emit("        jg %s", endLbl)

	if err := g.genForEachBody(fe); err != nil {
		g.emit("        add rsp, 8")
		return err
	}

	g.emit("%s:", contLbl)
	g.emit("        inc qword ptr [rbp - %d]", off)
	g.emit("        jmp %s", startLbl)
	g.emit("%s:", endLbl)
	g.emit("        add rsp, 8")
	return nil
}

// genForEachIndexed iterates 0..count-1 calling elemFn(index) into the
// iterator slot, used for argument-vector and environment iteration.
func (g *Generator) genForEachIndexed(fe *ast.ForEach, countFn, elemFn string, start int64) error {
	startLbl := g.label("foreach_start")
	contLbl := g.label("foreach_cont")
	endLbl := g.label("foreach_end")

	idxName := fe.Iterator + "$idx"
	g.allocSlot(idxName, types.TInteger)

	g.emit("        call %s", countFn)
	g.emit("        push rax")
	g.emit("        mov rax, %d", start)
	if err := g.genStoreVar(idxName); err != nil {
		return err
	}

	g.loops.Push(stack.LoopLabels{Break: endLbl, Continue: contLbl})
	defer g.loops.Pop()

	idxOff := g.vars[idxName]
	g.emit("%s:", startLbl)
	g.emit("        mov rax, qword ptr [rbp - %d]", idxOff)
	g.emit("        cmp rax, qword ptr [rsp]")
	g.emit("        jge %s", endLbl)
	g.emit("        mov rdi, rax")
	g.emit("        call %s", elemFn)
	if err := g.genStoreVar(fe.Iterator); err != nil {
		g.emit("        add rsp, 8")
		return err
	}

	if err := g.genForEachBody(fe); err != nil {
		g.emit("        add rsp, 8")
		return err
	}

	g.emit("%s:", contLbl)
	g.emit("        inc qword ptr [rbp - %d]", idxOff)
	g.emit("        jmp %s", startLbl)
	g.emit("%s:", endLbl)
	g.emit("        add rsp, 8")
	return nil
}

func (g *Generator) genForEachList(fe *ast.ForEach, collection ast.Expr) error {
	startLbl := g.label("foreach_start")
	contLbl := g.label("foreach_cont")
	endLbl := g.label("foreach_end")

	idxName := fe.Iterator + "$idx"
	g.allocSlot(idxName, types.TInteger)

	if err := g.genExpr(collection); err != nil {
		return err
	}
	g.emit("        push rax") // list header pointer
	g.emit("        mov rax, 1")
	if err := g.genStoreVar(idxName); err != nil {
		return err
	}

	g.loops.Push(stack.LoopLabels{Break: endLbl, Continue: contLbl})
	defer g.loops.Pop()

	idxOff := g.vars[idxName]
	g.emit("%s:", startLbl)
	g.emit("        mov rdi, qword ptr [rsp]")
	g.emit("        call rt_list_length")
	g.emit("        cmp qword ptr [rbp - %d], rax", idxOff)
	g.emit("        jg %s", endLbl)
	g.emit("        mov rdi, qword ptr [rsp]")
	g.emit("        mov rsi, qword ptr [rbp - %d]", idxOff)
	g.emit("        call rt_list_get")
	if err := g.genStoreVar(fe.Iterator); err != nil {
		g.emit("        add rsp, 8")
		return err
	}

	if err := g.genForEachBody(fe); err != nil {
		g.emit("        add rsp, 8")
		return err
	}

	g.emit("%s:", contLbl)
	g.emit("        inc qword ptr [rbp - %d]", idxOff)
	g.emit("        jmp %s", startLbl)
	g.emit("%s:", endLbl)
	g.emit("        add rsp, 8")
	return nil
}

// genForEachBody applies "treating M as R" substitution tests (by
// comparing the iterator's current value and overwriting its slot
// before the body runs) and then the body itself, covering both the
// explicit ForEach statement and the loop-expansion-sugar case whose
// Body is a single lifted verb statement.
func (g *Generator) genForEachBody(fe *ast.ForEach) error {
	for _, tc := range fe.Treating {
		if err := g.genLoadVar(fe.Iterator); err != nil {
			return err
		}
		g.emit("        push rax")
		if err := g.genExpr(tc.Match); err != nil {
			return err
		}
		g.emit("        mov rbx, rax")
		g.emit("        pop rax")
		g.emit("        cmp rax, rbx")
		skip := g.label("treating_skip")
		g.emit("        jne %s", skip)
		if err := g.genExpr(tc.Replacement); err != nil {
			return err
		}
		if err := g.genStoreVar(fe.Iterator); err != nil {
			return err
		}
		g.emit("%s:", skip)
	}
	return g.genBlock(fe.Body)
}

// genOnError lowers the handler attached to the preceding statement
// (spec.md §4.4 "on error lowering"): compare _last_error against
// zero, run the handler's actions only if it is nonzero, then clear
// the flag so a later unrelated failure isn't mistaken for this one.
func (g *Generator) genOnError(st *ast.OnErrorStmt) error {
	skip := g.label("on_error_skip")
	g.emit("        cmp qword ptr [rip + _last_error], 0")
	g.emit("        je %s", skip)
	if err := g.genBlock(st.Actions); err != nil {
		return err
	}
	g.emit("        mov qword ptr [rip + _last_error], 0")
	g.emit("%s:", skip)
	return nil
}

func (g *Generator) genReturn(r *ast.Return) error {
	if r.Value != nil {
		if err := g.genExpr(r.Value); err != nil {
			return err
		}
	}
	g.emit("        leave")
	g.emit("        ret")
	return nil
}

func (g *Generator) genIncDec(i *ast.IncDec) error {
	off, ok := g.vars[i.Name]
	if !ok {
		return fmt.Errorf("codegen: undeclared variable %q reached codegen", i.Name)
	}
	if i.Op == ast.OpIncrement {
		g.emit("        inc qword ptr [rbp - %d]", off)
	} else {
		g.emit("        dec qword ptr [rbp - %d]", off)
	}
	return nil
}

func (g *Generator) genBreak() error {
	top, err := g.loops.Top()
	if err != nil {
		return fmt.Errorf("codegen: break outside a loop")
	}
	g.emit("        jmp %s", top.Break)
	return nil
}

func (g *Generator) genContinue() error {
	top, err := g.loops.Top()
	if err != nil {
		return fmt.Errorf("codegen: continue outside a loop")
	}
	g.emit("        jmp %s", top.Continue)
	return nil
}

func (g *Generator) genExit(e *ast.Exit) error {
	if e.Code != nil {
		if err := g.genExpr(e.Code); err != nil {
			return err
		}
		g.emit("        mov rdi, rax")
	} else {
		g.emit("        mov rdi, 0")
	}
	g.emit("        call rt_exit")
	return nil
}

// fileOpenFlags maps a FileOpen mode to the openat flags the file module
// expects (spec.md §4.5 "file"): O_RDONLY, O_WRONLY|O_CREAT|O_TRUNC, or
// O_WRONLY|O_CREAT|O_APPEND.
func fileOpenFlags(mode ast.FileMode) int {
	switch mode {
	case ast.FileRead:
		return 0
	case ast.FileWrite:
		return 0x241
	case ast.FileAppend:
		return 0x441
	}
	return 0
}

func (g *Generator) genFileOpen(f *ast.FileOpen) error {
	g.allocSlot(f.Name, types.TFile)
	if err := g.genExpr(f.Path); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        mov rsi, %d", fileOpenFlags(f.Mode))
	g.emit("        call rt_file_open")
	return g.genStoreVar(f.Name)
}

func (g *Generator) genFileReadInto(f *ast.FileReadInto) error {
	if err := g.genExpr(f.Source); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	off, ok := g.vars[f.Into]
	if !ok {
		return fmt.Errorf("codegen: undeclared buffer %q reached codegen", f.Into)
	}
	g.emit("        mov rsi, qword ptr [rbp - %d]", off)
	g.emit("        mov rdx, qword ptr [rsi + 8]")
	g.emit("        call rt_buf_read_into")
	return nil
}

func (g *Generator) genFileWrite(f *ast.FileWriteStmt) error {
	valType := g.typeOf(f.Value)
	if err := g.genExpr(f.Target); err != nil {
		return err
	}
	g.emit("        push rax")
	if err := g.genExpr(f.Value); err != nil {
		g.emit("        add rsp, 8")
		return err
	}
	g.emit("        mov rsi, rax")
	g.emit("        pop rdi")
	switch valType.Kind {
	case types.String:
		g.emit("        call rt_file_write_string")
	case types.Buffer:
		g.emit("        call rt_file_write_buffer")
	default:
		g.emit("        call rt_file_write_string")
	}
	return nil
}

func (g *Generator) genFileClose(f *ast.FileCloseStmt) error {
	if err := g.genExpr(f.File); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        call rt_file_close")
	return nil
}

func (g *Generator) genFileDelete(f *ast.FileDeleteStmt) error {
	if err := g.genExpr(f.Path); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        call rt_file_delete")
	return nil
}

func (g *Generator) genBufferCreate(b *ast.BufferCreate) error {
	g.allocSlot(b.Name, types.TBuffer)
	if b.Kind == ast.BufferFixed {
		if err := g.genExpr(b.Size); err != nil {
			return err
		}
		g.emit("        mov rdi, rax")
		g.emit("        call rt_buf_alloc_fixed")
	} else {
		g.emit("        call rt_buf_alloc_dynamic")
	}
	return g.genStoreVar(b.Name)
}

func (g *Generator) genBufferResize(b *ast.BufferResize) error {
	if err := g.genExpr(b.Buffer); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        call rt_buf_grow")
	return nil
}

func (g *Generator) genByteSet(b *ast.ByteSet) error {
	if err := g.genExpr(b.Buffer); err != nil {
		return err
	}
	g.emit("        push rax")
	if err := g.genExpr(b.Index); err != nil {
		g.emit("        add rsp, 8")
		return err
	}
	g.emit("        push rax")
	if err := g.genExpr(b.Value); err != nil {
		g.emit("        add rsp, 16")
		return err
	}
	g.emit("        mov rdx, rax")
	g.emit("        pop rsi")
	g.emit("        pop rdi")
	g.emit("        call rt_byte_write_checked")
	return nil
}

func (g *Generator) genListAppend(l *ast.ListAppend) error {
	if err := g.genExpr(l.List); err != nil {
		return err
	}
	g.emit("        push rax")
	if err := g.genExpr(l.Value); err != nil {
		g.emit("        add rsp, 8")
		return err
	}
	g.emit("        mov rsi, rax")
	g.emit("        pop rdi")
	g.emit("        call rt_list_append")
	return nil
}

func (g *Generator) genTimerCreate(t *ast.TimerCreate) error {
	storageOff, ok := g.timerStorage[t.Name]
	if !ok {
		return fmt.Errorf("codegen: timer %q has no reserved storage", t.Name)
	}
	// A timer is a 16-byte start/stop pair; its variable slot stores a
	// pointer to that pair, reserved separately so no heap allocation
	// is needed for a value that never outlives its declaring function.
	g.emit("        lea rax, [rbp - %d]", storageOff)
	return g.genStoreVar(t.Name)
}

func (g *Generator) genTimerStart(t *ast.TimerStart) error {
	if err := g.genExpr(t.Timer); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        call rt_timer_start")
	return nil
}

func (g *Generator) genTimerStop(t *ast.TimerStop) error {
	if err := g.genExpr(t.Timer); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        call rt_timer_stop")
	return nil
}

func (g *Generator) genWait(w *ast.Wait) error {
	if err := g.genExpr(w.Duration); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	if w.Unit == "millisecond" {
		g.emit("        call rt_sleep_millis")
	} else {
		g.emit("        call rt_sleep_seconds")
	}
	return nil
}

func (g *Generator) genGetCurrentTime(gt *ast.GetCurrentTime) error {
	off, ok := g.vars[gt.Into]
	if !ok {
		return fmt.Errorf("codegen: undeclared variable %q reached codegen", gt.Into)
	}
	g.emit("        call rt_unix_time")
	g.emit("        mov qword ptr [rbp - %d], rax", off)
	return nil
}
