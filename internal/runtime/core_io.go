package runtime

// coreModule defines _last_error, the syscall-invocation helpers
// parameterised by argument count, and the exit primitive. It is always
// included (spec.md §4.5: "core").
const coreModule = `
#
# ---- core ----------------------------------------------------------
#
.data
_last_error: .quad 0

.text

# rt_exit: terminate the process with the status code in rdi.
rt_exit:
        mov rax, 60            # sys_exit
        syscall
        # unreachable

# rt_syscall1: invoke the syscall numbered rax with one argument (rdi).
rt_syscall1:
        syscall
        ret

# rt_syscall2: invoke the syscall numbered rax with two arguments (rdi, rsi).
rt_syscall2:
        syscall
        ret

# rt_syscall3: invoke the syscall numbered rax with three arguments
# (rdi, rsi, rdx).
rt_syscall3:
        syscall
        ret

# rt_syscall6: invoke the syscall numbered rax with six arguments
# (rdi, rsi, rdx, r10, r8, r9) - the mmap calling convention.
rt_syscall6:
        syscall
        ret

# rt_abort: store the small negative status code in rdi into
# _last_error and terminate the process with exit status 1. The
# generated division/modulus-by-zero guard calls it; bounds-check
# failures set _last_error and continue instead.
rt_abort:
        mov qword ptr [rip + _last_error], rdi
        mov rdi, 1
        jmp rt_exit
`

// ioModule writes a literal string, writes a null-terminated string,
// prints an integer (with and without padding), prints a newline, and
// prints a floating value with trimmed precision (spec.md §4.5: "io").
const ioModule = `
#
# ---- io -------------------------------------------------------------
#
.data
io_newline: .byte 10
io_int_buf: .skip 24
io_pad_char: .byte 48          # '0'

.text

# rt_write: write rdx bytes from buffer rsi to fd rdi.
rt_write:
        mov rax, 1              # sys_write
        syscall
        ret

# rt_print_str: write the literal string at rsi, rdx bytes long, to
# stdout (fd 1).
rt_print_str:
        push rdi
        push rsi
        push rdx
        mov rdi, 1
        pop rdx
        pop rsi
        call rt_write
        pop rdi
        ret

# rt_print_cstr: write the null-terminated string at rdi to stdout,
# first computing its length with a byte scan.
rt_print_cstr:
        mov rsi, rdi
        xor rdx, rdx
.rt_print_cstr_len:
        cmp byte ptr [rsi + rdx], 0
        je .rt_print_cstr_go
        inc rdx
        jmp .rt_print_cstr_len
.rt_print_cstr_go:
        mov rdi, 1
        call rt_write
        ret

# rt_print_newline: write a single line-feed byte to stdout.
rt_print_newline:
        lea rsi, [rip + io_newline]
        mov rdx, 1
        mov rdi, 1
        call rt_write
        ret

# rt_print_int: print the signed 64-bit integer in rdi in decimal. rsi
# carries the minimum field width (0 for
# "without padding"); padding uses '0' per spec.md's "print an integer
# (with and without padding)".
rt_print_int:
        push rbx
        push r12
        mov r12, rsi            # minimum width
        mov rbx, rdi
        lea rdi, [rip + io_int_buf + 23]
        mov byte ptr [rdi], 0
        dec rdi
        xor rcx, rcx             # digit count
        mov rax, rbx
        cmp rax, 0
        jge .rt_print_int_unsigned
        neg rax
.rt_print_int_unsigned:
        mov r8, 10
.rt_print_int_digit:
        xor rdx, rdx
        div r8
        add dl, '0'
        mov byte ptr [rdi], dl
        dec rdi
        inc rcx
        test rax, rax
        jnz .rt_print_int_digit
.rt_print_int_pad:
        cmp rcx, r12
        jge .rt_print_int_sign
        mov byte ptr [rdi], '0'
        dec rdi
        inc rcx
        jmp .rt_print_int_pad
.rt_print_int_sign:
        cmp rbx, 0
        jge .rt_print_int_emit
        mov byte ptr [rdi], '-'
        dec rdi
.rt_print_int_emit:
        inc rdi
        lea rax, [rip + io_int_buf + 23]
        sub rax, rdi
        mov rdx, rax
        mov rsi, rdi
        mov rdi, 1
        call rt_write
        pop r12
        pop rbx
        ret
`
