package runtime

// fileModule implements open/close/read/write/write-string/write-buffer/
// newline/exists/delete, registering every descriptor it opens with the
// resource module's tracking table (spec.md §4.5: "file").
const fileModule = `
#
# ---- file --------------------------------------------------------
#
.text

# rt_file_open: open the null-terminated path at rdi with flags rsi
# (O_RDONLY=0, O_WRONLY|O_CREAT|O_TRUNC=0x241, O_WRONLY|O_CREAT|O_APPEND=0x441),
# mode 0644, register the descriptor, and return it in rax. On failure
# returns the negative errno from sys_openat and additionally sets
# _last_error to 2 (spec.md §4.5 "Error-flag contract"), leaving the
# caller's "on error" handler, if any, to decide what happens next.
rt_file_open:
        mov rdx, rsi               # flags
        mov r10, 0644              # mode
        mov rsi, rdi
        mov rdi, -100             # AT_FDCWD
        mov rax, 257               # sys_openat
        syscall
        cmp rax, 0
        jl .rt_file_open_fail
        push rax
        mov rdi, rax
        call rt_fd_register
        pop rax
        ret
.rt_file_open_fail:
        mov qword ptr [rip + _last_error], 2
        ret

# rt_file_close: close descriptor rdi.
rt_file_close:
        mov rax, 3
        syscall
        ret

# rt_file_read: read up to rdx bytes from fd rdi into buffer rsi.
# Returns the byte count (or a negative errno) in rax.
rt_file_read:
        mov rax, 0
        syscall
        ret

# rt_file_write: write rdx bytes from rsi to fd rdi.
rt_file_write:
        jmp rt_write

# rt_file_write_string: write the null-terminated string at rsi to fd
# rdi.
rt_file_write_string:
        push rdi
        mov rdi, rsi
        call rt_str_len
        mov rdx, rax
        pop rdi
        mov rsi, rsi
        jmp rt_write

# rt_file_write_buffer: write the used portion of buffer header rsi to
# fd rdi.
rt_file_write_buffer:
        mov rdx, qword ptr [rsi + 16]
        mov rsi, qword ptr [rsi]
        jmp rt_write

# rt_file_write_newline: write a single line-feed to fd rdi.
rt_file_write_newline:
        lea rsi, [rip + io_newline]
        mov rdx, 1
        jmp rt_write

# rt_file_exists: stat the null-terminated path at rdi. Returns 1/0 in rax.
rt_file_exists:
        sub rsp, 144              # struct stat
        mov rsi, rsp
        mov rax, 4                # sys_stat
        syscall
        add rsp, 144
        cmp rax, 0
        sete al
        movzx rax, al
        ret

# rt_file_delete: unlink the null-terminated path at rdi.
rt_file_delete:
        mov rax, 87                # sys_unlink
        syscall
        ret
`

// formatModule implements hex/binary/octal integer formatting with
// optional zero-padding and prefix, padded decimal integer printing,
// and float formatting with a specified precision (spec.md §4.5:
// "format").
const formatModule = `
#
# ---- format --------------------------------------------------------
#
.data
rt_fmt_buf: .skip 80
rt_fmt_hex_digits: .ascii "0123456789abcdef"
rt_fmt_hex_prefix: .ascii "0x"
rt_fmt_bin_prefix: .ascii "0b"

.text

# rt_format_radix: write rdi in base rsi (2, 8, or 16) into rt_fmt_buf,
# zero-padded to rdx digits (0 for none), with the two-character prefix
# at rcx (or 0 for no prefix). Returns the digit-start pointer in rax
# and the total byte length (prefix + digits) in rdx.
rt_format_radix:
        push rbx
        push r12
        push r13
        push r14
        mov r12, rdi              # value
        mov r13, rsi              # base
        mov r14, rdx              # min digits
        lea rbx, [rip + rt_fmt_buf + 79]
        mov byte ptr [rbx], 0
        dec rbx
        xor r8, r8                # digit count
.rt_format_radix_digit:
        mov rax, r12
        xor rdx, rdx
        div r13
        mov r12, rax
        lea r9, [rip + rt_fmt_hex_digits]
        movzx rdx, byte ptr [r9 + rdx]
        mov byte ptr [rbx], dl
        dec rbx
        inc r8
        test r12, r12
        jnz .rt_format_radix_digit
.rt_format_radix_pad:
        cmp r8, r14
        jge .rt_format_radix_prefix
        mov byte ptr [rbx], '0'
        dec rbx
        inc r8
        jmp .rt_format_radix_pad
.rt_format_radix_prefix:
        test rcx, rcx
        je .rt_format_radix_done
        mov rax, qword ptr [rcx]
        mov word ptr [rbx - 1], ax
        sub rbx, 2
.rt_format_radix_done:
        inc rbx
        lea rax, [rip + rt_fmt_buf + 79]
        sub rax, rbx
        mov rdx, rax
        mov rax, rbx
        pop r14
        pop r13
        pop r12
        pop rbx
        ret

# rt_format_padded_int: print rdi in decimal, left-padded with '0' to a
# minimum field width of rsi - a thin alias over rt_print_int, kept
# distinct so the generator can call it without implying "no padding".
rt_format_padded_int:
        jmp rt_print_int

# rt_format_float_precision: print xmm0 with exactly rdi fractional
# digits (no trailing-zero trimming, unlike the plain io print). The
# last digit is rounded rather than truncated: half a unit of the
# final place is added before digit extraction starts, the same way a
# printf %.Nf would round.
rt_format_float_precision:
        push rbx
        push r12
        push r13
        push r14
        mov r14, rdi               # requested precision, kept across calls below
        movapd xmm1, xmm0
        xorpd xmm2, xmm2
        ucomisd xmm1, xmm2
        jae .rt_format_float_pos
        mov byte ptr [rip + rt_fmt_buf], '-'
        lea rsi, [rip + rt_fmt_buf]
        mov rdx, 1
        mov rdi, 1
        call rt_write
        call rt_float_abs
.rt_format_float_pos:
        movsd xmm1, qword ptr [rip + rt_float_half]
        mov r12, r14
.rt_format_float_scale:
        test r12, r12
        jz .rt_format_float_scaled
        divsd xmm1, qword ptr [rip + rt_float_ten]
        dec r12
        jmp .rt_format_float_scale
.rt_format_float_scaled:
        addsd xmm0, xmm1
        cvttsd2si rbx, xmm0
        mov rdi, rbx
        mov rsi, 0
        call rt_print_int
        lea rsi, [rip + rt_float_point]
        mov rdx, 1
        mov rdi, 1
        call rt_write
        cvtsi2sd xmm1, rbx
        subsd xmm0, xmm1
        xor r13, r13
.rt_format_float_digit:
        cmp r13, r14
        jge .rt_format_float_done
        mulsd xmm0, qword ptr [rip + rt_float_ten]
        cvttsd2si rbx, xmm0
        mov rdi, rbx
        mov rsi, 0
        call rt_print_int
        cvtsi2sd xmm1, rbx
        subsd xmm0, xmm1
        inc r13
        jmp .rt_format_float_digit
.rt_format_float_done:
        pop r14
        pop r13
        pop r12
        pop rbx
        ret
`
