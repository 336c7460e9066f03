package codegen

import (
	"fmt"

	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/types"
)

// genExpr lowers e, leaving an integer/boolean/pointer result in rax or a
// floating-point result in xmm0. Callers that need a specific kind should
// check typeOf(e) first.
func (g *Generator) genExpr(e ast.Expr) error {
	switch ex := e.(type) {
	case *ast.IntLit:
		g.emit("        mov rax, %d", ex.Value)
		return nil
	case *ast.FloatLit:
		lbl := g.internFloat(ex.Value)
		g.emit("        movsd xmm0, qword ptr [rip + %s]", lbl)
		return nil
	case *ast.BoolLit:
		if ex.Value {
			g.emit("        mov rax, 1")
		} else {
			g.emit("        mov rax, 0")
		}
		return nil
	case *ast.CharLit:
		g.emit("        mov rax, %d", ex.Value)
		return nil
	case *ast.StringLit:
		return g.genStringLit(ex)
	case *ast.VarRef:
		return g.genLoadVar(ex.Name)
	case *ast.LoopVar:
		return g.genLoadVar(ex.Name)
	case *ast.Binary:
		return g.genBinary(ex)
	case *ast.Unary:
		return g.genUnary(ex)
	case *ast.Call:
		return g.genCall(ex)
	case *ast.PropertyAccess:
		return g.genPropertyAccess(ex)
	case *ast.IndexAccess:
		return g.genIndexAccess(ex)
	case *ast.Cast:
		return g.genCast(ex)
	case *ast.ArgQuery:
		return g.genArgQuery(ex)
	case *ast.CurrentTime:
		// Only ever reached as the Object of a PropertyAccess, which
		// handles CurrentTime itself; a bare reference has no value.
		g.emit("        xor rax, rax")
		return nil
	case *ast.RangeExpr:
		// Only valid as a ForEach collection, handled by genForEach.
		return fmt.Errorf("range expression used outside a loop collection")
	}
	return fmt.Errorf("codegen: unhandled expression %T", e)
}

func (g *Generator) genLoadVar(name string) error {
	off, ok := g.vars[name]
	if !ok {
		return fmt.Errorf("codegen: undeclared variable %q reached codegen", name)
	}
	if g.varTypes[name].Kind == types.Float {
		g.emit("        movsd xmm0, qword ptr [rbp - %d]", off)
	} else {
		g.emit("        mov rax, qword ptr [rbp - %d]", off)
	}
	return nil
}

func (g *Generator) genStoreVar(name string) error {
	off, ok := g.vars[name]
	if !ok {
		return fmt.Errorf("codegen: undeclared variable %q reached codegen", name)
	}
	if g.varTypes[name].Kind == types.Float {
		g.emit("        movsd qword ptr [rbp - %d], xmm0", off)
	} else {
		g.emit("        mov qword ptr [rbp - %d], rax", off)
	}
	return nil
}

// genStringLit emits code that loads rax with the address of the
// string's bytes: the interned .data copy of a plain literal, or, for a
// format string (one with {expr} holes), of its literal parts joined
// with the holes left out.
func (g *Generator) genStringLit(s *ast.StringLit) error {
	if !s.IsFormat() {
		var raw string
		for _, p := range s.Parts {
			raw += p.Literal
		}
		lbl := g.internString(raw)
		g.emit("        lea rax, [rip + %s]", lbl)
		return nil
	}
	// Format strings are only ever printed, never stored as a value
	// elsewhere in the grammar (spec.md §4.2); genPrint handles the
	// hole-by-hole emission directly rather than materializing a
	// buffer here, so a bare reference just yields the literal parts.
	var raw string
	for _, p := range s.Parts {
		raw += p.Literal
	}
	lbl := g.internString(raw)
	g.emit("        lea rax, [rip + %s]", lbl)
	return nil
}

func (g *Generator) genBinary(b *ast.Binary) error {
	switch b.Op {
	case ast.OpAnd, ast.OpOr:
		return g.genShortCircuit(b)
	}

	lt := g.typeOf(b.Left)
	rt := g.typeOf(b.Right)
	useFloat := (lt.Kind == types.Float || rt.Kind == types.Float) &&
		b.Op != ast.OpBitOr && b.Op != ast.OpBitXor && b.Op != ast.OpBitAnd &&
		b.Op != ast.OpShiftLeft && b.Op != ast.OpShiftRight

	if useFloat {
		return g.genBinaryFloat(b)
	}
	return g.genBinaryInt(b)
}

func (g *Generator) genBinaryInt(b *ast.Binary) error {
	if err := g.genExpr(b.Left); err != nil {
		return err
	}
	g.emit("        push rax")
	if err := g.genExpr(b.Right); err != nil {
		return err
	}
	g.emit("        mov rbx, rax")
	g.emit("        pop rax")

	switch b.Op {
	case ast.OpAdd:
		g.emit("        add rax, rbx")
	case ast.OpSub:
		g.emit("        sub rax, rbx")
	case ast.OpMul:
		g.emit("        imul rax, rbx")
	case ast.OpDiv:
		g.genDivZeroGuard()
		g.emit("        cqo")
		g.emit("        idiv rbx")
	case ast.OpMod:
		g.genDivZeroGuard()
		g.emit("        cqo")
		g.emit("        idiv rbx")
		g.emit("        mov rax, rdx")
	case ast.OpBitOr:
		g.emit("        or rax, rbx")
	case ast.OpBitXor:
		g.emit("        xor rax, rbx")
	case ast.OpBitAnd:
		g.emit("        and rax, rbx")
	case ast.OpShiftLeft:
		g.emit("        mov rcx, rbx")
		g.emit("        shl rax, cl")
	case ast.OpShiftRight:
		g.emit("        mov rcx, rbx")
		g.emit("        sar rax, cl")
	case ast.OpEq:
		g.genIntCompare("sete")
	case ast.OpNotEq:
		g.genIntCompare("setne")
	case ast.OpGreater:
		g.genIntCompare("setg")
	case ast.OpGreaterEq:
		g.genIntCompare("setge")
	case ast.OpLess:
		g.genIntCompare("setl")
	case ast.OpLessEq:
		g.genIntCompare("setle")
	default:
		return fmt.Errorf("codegen: unhandled integer binary op %v", b.Op)
	}
	return nil
}

// genDivZeroGuard aborts the process (per spec.md §4.4's "integer
// division/modulus by zero" invariant) when rbx, the divisor loaded by
// genBinaryInt, is zero.
func (g *Generator) genDivZeroGuard() {
	okLbl := g.label("divcheck_ok")
	g.emit("        cmp rbx, 0")
	g.emit("        jne %s", okLbl)
	g.emit("        mov rdi, -2")
	g.emit("        call rt_abort")
	g.emit("%s:", okLbl)
}

func (g *Generator) genIntCompare(setcc string) {
	g.emit("        cmp rax, rbx")
	g.emit("        %s al", setcc)
	g.emit("        movzx rax, al")
}

func (g *Generator) genBinaryFloat(b *ast.Binary) error {
	leftIsFloat := g.typeOf(b.Left).Kind == types.Float
	rightIsFloat := g.typeOf(b.Right).Kind == types.Float

	if err := g.genExpr(b.Left); err != nil {
		return err
	}
	if !leftIsFloat {
		g.emit("        cvtsi2sd xmm0, rax")
	}
	g.emit("        sub rsp, 8")
	g.emit("        movsd qword ptr [rsp], xmm0")

	if err := g.genExpr(b.Right); err != nil {
		return err
	}
	if !rightIsFloat {
		g.emit("        cvtsi2sd xmm0, rax")
	}
	g.emit("        movsd xmm1, xmm0")
	g.emit("        movsd xmm0, qword ptr [rsp]")
	g.emit("        add rsp, 8")

	switch b.Op {
	case ast.OpAdd:
		g.emit("        call rt_float_add")
	case ast.OpSub:
		g.emit("        call rt_float_sub")
	case ast.OpMul:
		g.emit("        call rt_float_mul")
	case ast.OpDiv:
		g.emit("        call rt_float_div")
	case ast.OpEq, ast.OpNotEq, ast.OpGreater, ast.OpGreaterEq, ast.OpLess, ast.OpLessEq:
		g.emit("        call rt_float_cmp")
		switch b.Op {
		case ast.OpEq:
			g.emit("        cmp rax, 0")
			g.emit("        sete al")
		case ast.OpNotEq:
			g.emit("        cmp rax, 0")
			g.emit("        setne al")
		case ast.OpGreater:
			g.emit("        cmp rax, 0")
			g.emit("        setg al")
		case ast.OpGreaterEq:
			g.emit("        cmp rax, 0")
			g.emit("        setge al")
		case ast.OpLess:
			g.emit("        cmp rax, 0")
			g.emit("        setl al")
		case ast.OpLessEq:
			g.emit("        cmp rax, 0")
			g.emit("        setle al")
		}
		g.emit("        movzx rax, al")
	default:
		return fmt.Errorf("codegen: unhandled float binary op %v", b.Op)
	}
	return nil
}

// genShortCircuit lowers "and"/"or" with proper short-circuit evaluation:
// the right operand is only evaluated when the left doesn't already
// decide the result.
func (g *Generator) genShortCircuit(b *ast.Binary) error {
	endLbl := g.label("sc_end")
	if err := g.genExpr(b.Left); err != nil {
		return err
	}
	g.emit("        cmp rax, 0")
	if b.Op == ast.OpAnd {
		g.emit("        je %s", endLbl)
	} else {
		g.emit("        jne %s", endLbl)
	}
	if err := g.genExpr(b.Right); err != nil {
		return err
	}
	g.emit("%s:", endLbl)
	return nil
}

func (g *Generator) genUnary(u *ast.Unary) error {
	operandFloat := g.typeOf(u.Operand).Kind == types.Float

	switch u.Op {
	case ast.OpNegate:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		if operandFloat {
			g.emit("        call rt_float_neg")
		} else {
			g.emit("        neg rax")
		}
		return nil
	case ast.OpNot:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		g.emit("        cmp rax, 0")
		g.emit("        sete al")
		g.emit("        movzx rax, al")
		return nil
	case ast.OpBitNot:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		g.emit("        not rax")
		return nil
	case ast.OpAbs:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		if operandFloat {
			g.emit("        call rt_float_abs")
		} else {
			g.emit("        mov rdi, rax")
			g.emit("        call rt_int_abs")
		}
		return nil
	case ast.OpSign:
		if err := g.genExpr(u.Operand); err != nil {
			return err
		}
		if operandFloat {
			g.emit("        call rt_float_sign")
		} else {
			g.emit("        mov rdi, rax")
			g.emit("        cmp rdi, 0")
			g.emit("        mov rax, 1")
			g.emit("        jg 1f")
			g.emit("        mov rax, -1")
			g.emit("        jl 1f")
			g.emit("        xor rax, rax")
			g.emit("1:")
		}
		return nil
	}
	return fmt.Errorf("codegen: unhandled unary op %v", u.Op)
}

// genCall lowers a user-function invocation using the System V calling
// convention: integer/pointer arguments go in rdi, rsi, rdx, rcx, r8,
// r9 in order; float arguments go in xmm0..xmm5 in a parallel sequence.
func (g *Generator) genCall(c *ast.Call) error {
	intRegs := []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
	floatRegs := []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5"}

	// Evaluate arguments right-to-left onto the machine stack first, so
	// earlier evaluations can't be clobbered by later ones needing the
	// same argument register, then pop them into place first argument
	// first.
	for i := len(c.Args) - 1; i >= 0; i-- {
		if err := g.genExpr(c.Args[i]); err != nil {
			return err
		}
		if g.typeOf(c.Args[i]).Kind == types.Float {
			g.emit("        sub rsp, 8")
			g.emit("        movsd qword ptr [rsp], xmm0")
		} else {
			g.emit("        push rax")
		}
	}
	intIdx, floatIdx := 0, 0
	for _, a := range c.Args {
		if g.typeOf(a).Kind == types.Float {
			g.emit("        movsd %s, qword ptr [rsp]", floatRegs[floatIdx])
			g.emit("        add rsp, 8")
			floatIdx++
		} else {
			g.emit("        pop %s", intRegs[intIdx])
			intIdx++
		}
	}
	g.emit("        call func_%s", c.Callee)
	return nil
}

func (g *Generator) genPropertyAccess(p *ast.PropertyAccess) error {
	if _, ok := p.Object.(*ast.CurrentTime); ok {
		return g.genCurrentTimeProperty(p)
	}
	if err := g.genExpr(p.Object); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	switch p.LoweredOp {
	case "list.length":
		g.emit("        call rt_list_length")
	case "list.capacity":
		g.emit("        call rt_list_capacity")
	case "list.empty":
		g.emit("        call rt_list_empty")
	case "list.first":
		g.emit("        call rt_list_first")
	case "list.last":
		g.emit("        call rt_list_last")
	case "buffer.length":
		g.emit("        mov rax, qword ptr [rdi + 16]")
	case "buffer.capacity":
		g.emit("        mov rax, qword ptr [rdi + 8]")
	case "buffer.full":
		g.emit("        mov rax, qword ptr [rdi + 16]")
		g.emit("        cmp rax, qword ptr [rdi + 8]")
		g.emit("        setge al")
		g.emit("        movzx rax, al")
	case "file.size":
		// No fstat-backed size is kept per open file; this always
		// reports 0.
		g.emit("        xor rax, rax")
	case "file.exists":
		g.emit("        call rt_file_exists")
	case "timer.elapsed":
		g.emit("        call rt_timer_elapsed")
	case "timer.running":
		g.emit("        call rt_timer_running")
	case "string.length":
		g.emit("        call rt_str_len")
	default:
		return fmt.Errorf("codegen: unhandled property lowering %q", p.LoweredOp)
	}
	return nil
}

func (g *Generator) genCurrentTimeProperty(p *ast.PropertyAccess) error {
	if p.Property == "unix" {
		g.emit("        call rt_unix_time")
		return nil
	}
	g.emit("        call rt_unix_time")
	g.emit("        mov rdi, rax")
	g.emit("        sub rsp, 48")
	g.emit("        mov rsi, rsp")
	g.emit("        call rt_date_components")
	switch p.Property {
	case "year":
		g.emit("        mov rax, qword ptr [rsp]")
	case "month":
		g.emit("        mov rax, qword ptr [rsp + 8]")
	case "day":
		g.emit("        mov rax, qword ptr [rsp + 16]")
	case "hour":
		g.emit("        mov rax, qword ptr [rsp + 24]")
	case "minute":
		g.emit("        mov rax, qword ptr [rsp + 32]")
	case "second":
		g.emit("        mov rax, qword ptr [rsp + 40]")
	default:
		g.emit("        add rsp, 48")
		return fmt.Errorf("codegen: unhandled current-time property %q", p.Property)
	}
	g.emit("        add rsp, 48")
	return nil
}

func (g *Generator) genIndexAccess(ix *ast.IndexAccess) error {
	if err := g.genExpr(ix.Index); err != nil {
		return err
	}
	g.emit("        push rax")
	if err := g.genExpr(ix.Collection); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        pop rsi")
	switch ix.Kind {
	case ast.IndexElement:
		g.emit("        call rt_list_get")
	case ast.IndexByte:
		g.emit("        call rt_byte_read_checked")
	}
	return nil
}

func (g *Generator) genCast(c *ast.Cast) error {
	srcType := g.typeOf(c.Value)

	if c.PadTo != nil {
		return g.genPaddedTextCast(c, srcType)
	}

	switch c.Target.Kind {
	case types.Integer:
		if err := g.genExpr(c.Value); err != nil {
			return err
		}
		if srcType.Kind == types.Float {
			g.emit("        call rt_float_to_int")
		}
		return nil
	case types.Float:
		if err := g.genExpr(c.Value); err != nil {
			return err
		}
		if srcType.Kind != types.Float {
			g.emit("        mov rdi, rax")
			g.emit("        call rt_int_to_float")
		}
		return nil
	case types.String:
		return g.genToTextCast(c.Value, srcType, c.Unit)
	}
	return fmt.Errorf("codegen: unhandled cast target %v", c.Target)
}

// genToTextCast formats an integer/float value as text using the format
// module's radix/decimal/precision routines, keyed by the "in <unit>"
// clause ("hex", "binary", "octal") when present.
func (g *Generator) genToTextCast(value ast.Expr, srcType types.Type, unit string) error {
	if err := g.genExpr(value); err != nil {
		return err
	}
	switch unit {
	case "hex":
		g.emit("        mov rdi, rax")
		g.emit("        mov rsi, 16")
		g.emit("        xor rdx, rdx")
		g.emit("        lea rcx, [rip + rt_fmt_hex_prefix]")
		g.emit("        call rt_format_radix")
	case "binary":
		g.emit("        mov rdi, rax")
		g.emit("        mov rsi, 2")
		g.emit("        xor rdx, rdx")
		g.emit("        lea rcx, [rip + rt_fmt_bin_prefix]")
		g.emit("        call rt_format_radix")
	case "octal":
		g.emit("        mov rdi, rax")
		g.emit("        mov rsi, 8")
		g.emit("        xor rdx, rdx")
		g.emit("        xor rcx, rcx")
		g.emit("        call rt_format_radix")
	default:
		// Plain "as text": the runtime print routines are the only
		// text-rendering surface, so this cast is resolved at print
		// time by genPrint's type switch rather than materializing a
		// buffer here; passing the raw value through lets genPrint
		// treat a cast expression exactly like its uncast operand.
	}
	return nil
}

func (g *Generator) genPaddedTextCast(c *ast.Cast, srcType types.Type) error {
	if err := g.genExpr(c.PadTo); err != nil {
		return err
	}
	g.emit("        push rax")
	if err := g.genExpr(c.Value); err != nil {
		return err
	}
	g.emit("        mov rdi, rax")
	g.emit("        pop rsi")
	g.emit("        call rt_format_padded_int")
	return nil
}

func (g *Generator) genArgQuery(a *ast.ArgQuery) error {
	switch a.Kind {
	case ast.ArgCount:
		g.emit("        call rt_arg_count")
	case ast.ArgProgramName:
		g.emit("        call rt_prog_name")
	case ast.ArgAt:
		if err := g.genExpr(a.Index); err != nil {
			return err
		}
		g.emit("        mov rdi, rax")
		g.emit("        call rt_arg_at")
	case ast.EnvLookup:
		if err := g.genExpr(a.Name); err != nil {
			return err
		}
		g.emit("        mov rdi, rax")
		g.emit("        call rt_env_lookup")
	case ast.EnvAt:
		if err := g.genExpr(a.Index); err != nil {
			return err
		}
		g.emit("        mov rdi, rax")
		g.emit("        call rt_env_at")
	case ast.EnvCount:
		g.emit("        call rt_env_count")
	case ast.ArgAll:
		// A bare "arguments's all" value has no scalar form; it is
		// only ever a ForEach collection, handled there.
		g.emit("        xor rax, rax")
	}
	return nil
}

// typeOf recomputes an already-analyzed expression's static type,
// mirroring the analyzer's own resolution rules (internal/semantic) but
// without diagnostics, since by the time codegen runs the program is
// already known to type-check.
func (g *Generator) typeOf(e ast.Expr) types.Type {
	switch ex := e.(type) {
	case *ast.IntLit, *ast.CharLit:
		return types.TInteger
	case *ast.FloatLit:
		return types.TFloat
	case *ast.BoolLit:
		return types.TBoolean
	case *ast.StringLit:
		return types.TString
	case *ast.VarRef:
		return g.varTypes[ex.Name]
	case *ast.LoopVar:
		return g.varTypes[ex.Name]
	case *ast.Binary:
		switch ex.Op {
		case ast.OpAnd, ast.OpOr, ast.OpEq, ast.OpNotEq, ast.OpGreater, ast.OpGreaterEq, ast.OpLess, ast.OpLessEq:
			return types.TBoolean
		case ast.OpBitOr, ast.OpBitXor, ast.OpBitAnd, ast.OpShiftLeft, ast.OpShiftRight:
			return types.TInteger
		default:
			return types.Widen(g.typeOf(ex.Left), g.typeOf(ex.Right))
		}
	case *ast.Unary:
		switch ex.Op {
		case ast.OpNot:
			return types.TBoolean
		case ast.OpSign:
			return types.TInteger
		case ast.OpBitNot:
			return types.TInteger
		default:
			return g.typeOf(ex.Operand)
		}
	case *ast.Call:
		if fn, ok := g.funcs[ex.Callee]; ok {
			return fn.ReturnType
		}
		return types.TInteger
	case *ast.PropertyAccess:
		return ex.ResolvedType
	case *ast.IndexAccess:
		elem, _ := types.Elementary(g.typeOf(ex.Collection))
		return elem
	case *ast.Cast:
		if ex.Target.Kind != types.Unknown {
			return ex.Target
		}
		switch ex.Unit {
		case "hex", "binary", "octal":
			return types.TString
		}
		return g.typeOf(ex.Value)
	case *ast.ArgQuery:
		switch ex.Kind {
		case ast.ArgCount, ast.ArgAt, ast.EnvAt, ast.EnvCount:
			return types.TInteger
		default:
			return types.TString
		}
	case *ast.RangeExpr:
		return types.TInteger
	}
	return types.TUnknown
}
