package runtime

// mathModule implements integer absolute value, min, max, and the
// even/odd predicates (spec.md §4.5: "math"). Floating-point absolute
// value and sign live in the float module instead, since they need the
// SSE2 unit.
const mathModule = `
#
# ---- math --------------------------------------------------------
#
.text

# rt_int_abs: return the absolute value of rdi in rax.
rt_int_abs:
        mov rax, rdi
        cmp rax, 0
        jge .rt_int_abs_done
        neg rax
.rt_int_abs_done:
        ret

# rt_int_min: return the smaller of rdi and rsi in rax.
rt_int_min:
        mov rax, rdi
        cmp rsi, rax
        cmovl rax, rsi
        ret

# rt_int_max: return the larger of rdi and rsi in rax.
rt_int_max:
        mov rax, rdi
        cmp rsi, rax
        cmovg rax, rsi
        ret

# rt_int_even / rt_int_odd: boolean predicates over rdi.
rt_int_even:
        mov rax, rdi
        and rax, 1
        xor rax, 1
        ret
rt_int_odd:
        mov rax, rdi
        and rax, 1
        ret
`

// floatModule implements SSE2-based arithmetic, comparisons,
// conversions, absolute value, negation, sign tests, and formatted
// print with up to 15 trailing-zero-trimmed fractional digits (spec.md
// §4.5: "float"). Values are passed/returned in xmm0/xmm1 to match the
// System V AMD64 floating-point calling convention.
const floatModule = `
#
# ---- float -------------------------------------------------------
#
.data
rt_float_sign_mask: .quad 0x8000000000000000, 0
rt_float_ten: .double 10.0
rt_float_half: .double 0.5
rt_float_point: .byte 46        # '.'
rt_float_buf: .skip 32

.text

# rt_float_add / rt_float_sub / rt_float_mul / rt_float_div: xmm0 <op>= xmm1.
rt_float_add:
        addsd xmm0, xmm1
        ret
rt_float_sub:
        subsd xmm0, xmm1
        ret
rt_float_mul:
        mulsd xmm0, xmm1
        ret
rt_float_div:
        divsd xmm0, xmm1
        ret

# rt_float_cmp: compare xmm0 to xmm1. Returns -1/0/1 in rax.
rt_float_cmp:
        ucomisd xmm0, xmm1
        je .rt_float_cmp_eq
        jb .rt_float_cmp_lt
        mov rax, 1
        ret
.rt_float_cmp_lt:
        mov rax, -1
        ret
.rt_float_cmp_eq:
        xor rax, rax
        ret

# rt_float_to_int: truncate xmm0 towards zero, returning the result in rax.
rt_float_to_int:
        cvttsd2si rax, xmm0
        ret

# rt_int_to_float: convert rdi to a double in xmm0.
rt_int_to_float:
        cvtsi2sd xmm0, rdi
        ret

# rt_float_abs: clear the sign bit of xmm0.
rt_float_abs:
        movupd xmm1, xmmword ptr [rip + rt_float_sign_mask]
        andnpd xmm1, xmm0
        movapd xmm0, xmm1
        ret

# rt_float_neg: flip the sign bit of xmm0.
rt_float_neg:
        movupd xmm1, xmmword ptr [rip + rt_float_sign_mask]
        xorpd xmm0, xmm1
        ret

# rt_float_sign: return -1/0/1 in rax for the sign of xmm0.
rt_float_sign:
        xorpd xmm1, xmm1
        ucomisd xmm0, xmm1
        je .rt_float_sign_zero
        jb .rt_float_sign_neg
        mov rax, 1
        ret
.rt_float_sign_neg:
        mov rax, -1
        ret
.rt_float_sign_zero:
        xor rax, rax
        ret

# rt_print_float: print xmm0 with a sign, integer part, decimal point,
# and up to 15 fractional digits with trailing zeros trimmed.
rt_print_float:
        push rbx
        push r12
        push r13
        movapd xmm1, xmm0
        xorpd xmm2, xmm2
        ucomisd xmm1, xmm2
        jae .rt_print_float_pos
        mov byte ptr [rip + rt_float_buf], '-'
        lea rsi, [rip + rt_float_buf]
        mov rdx, 1
        mov rdi, 1
        call rt_write
        call rt_float_abs
.rt_print_float_pos:
        cvttsd2si rbx, xmm0          # integer part
        mov rdi, rbx
        mov rsi, 0
        call rt_print_int

        lea rsi, [rip + rt_float_point]
        mov rdx, 1
        mov rdi, 1
        call rt_write

        cvtsi2sd xmm1, rbx
        subsd xmm0, xmm1             # fractional remainder
        call rt_float_abs

        xor r12, r12                 # digits emitted
.rt_print_float_digit:
        cmp r12, 15
        jge .rt_print_float_done
        mulsd xmm0, qword ptr [rip + rt_float_ten]
        cvttsd2si r13, xmm0
        mov rdi, r13
        mov rsi, 0
        call rt_print_int
        cvtsi2sd xmm1, r13
        subsd xmm0, xmm1
        inc r12
        xorpd xmm2, xmm2
        ucomisd xmm0, xmm2
        je .rt_print_float_done
        jmp .rt_print_float_digit
.rt_print_float_done:
        pop r13
        pop r12
        pop rbx
        ret
`
