package runtime

// stringModule implements length, copy, compare, and duplicate over
// null-terminated byte strings (spec.md §4.5: "string").
const stringModule = `
#
# ---- string ------------------------------------------------------
#
.text

# rt_str_len: return the length of the null-terminated string at rdi in rax.
rt_str_len:
        xor rax, rax
.rt_str_len_loop:
        cmp byte ptr [rdi + rax], 0
        je .rt_str_len_done
        inc rax
        jmp .rt_str_len_loop
.rt_str_len_done:
        ret

# rt_str_copy: copy rdx bytes from rsi to rdi, then null-terminate.
rt_str_copy:
        push rdi
        call rt_mem_copy
        pop rdi
        mov byte ptr [rdi + rdx], 0
        ret

# rt_str_cmp: compare the null-terminated strings at rdi and rsi.
# Returns 0 in rax if equal, nonzero otherwise.
rt_str_cmp:
.rt_str_cmp_loop:
        mov al, byte ptr [rdi]
        mov cl, byte ptr [rsi]
        cmp al, cl
        jne .rt_str_cmp_diff
        test al, al
        je .rt_str_cmp_equal
        inc rdi
        inc rsi
        jmp .rt_str_cmp_loop
.rt_str_cmp_diff:
        mov rax, 1
        ret
.rt_str_cmp_equal:
        xor rax, rax
        ret

# rt_str_dup: allocate a fresh heap copy of the null-terminated string
# at rdi. Returns the new address in rax.
rt_str_dup:
        push rdi
        call rt_str_len
        mov rdx, rax
        inc rdx
        mov rdi, rdx
        push rdx
        call rt_heap_alloc
        pop rdx
        pop rsi
        mov rdi, rax
        push rax
        call rt_str_copy
        pop rax
        ret
`

// binaryModule implements bitwise operations (emitted inline by the
// code generator using native and/or/xor/shl/shr/not instructions) and
// the bounds-checked byte accessors every IndexAccess on a buffer lowers
// to (spec.md §4.5: "binary"). Out-of-range accesses never abort the
// process (spec.md §4.4 "Bounds-checked access"): they set _last_error
// to 1 and, for reads, yield 0, leaving the decision to continue or
// stop entirely to an "on error" handler in user code.
const binaryModule = `
#
# ---- binary --------------------------------------------------------
#
.text

# rt_byte_read_checked: read byte rsi of buffer header rdi, returning 0
# and setting _last_error if rsi is outside [0, length).
rt_byte_read_checked:
        mov rcx, qword ptr [rdi + 16]
        cmp rsi, rcx
        jae .rt_byte_oob
        cmp rsi, 0
        jl .rt_byte_oob
        mov rax, qword ptr [rdi]
        movzx rax, byte ptr [rax + rsi]
        ret
.rt_byte_oob:
        mov qword ptr [rip + _last_error], 1
        xor rax, rax
        ret

# rt_byte_write_checked: write the low byte of rdx into byte rsi of
# buffer header rdi, setting _last_error on an out-of-range index
# instead of writing.
rt_byte_write_checked:
        mov rcx, qword ptr [rdi + 16]
        cmp rsi, rcx
        jae .rt_byte_write_oob
        mov rax, qword ptr [rdi]
        mov byte ptr [rax + rsi], dl
        ret
.rt_byte_write_oob:
        mov qword ptr [rip + _last_error], 1
        ret
`

// listModule implements 1-based element access/set, the length /
// capacity / empty / first / last properties, and doubling-capacity
// append (spec.md §4.5: "list"). Lists share the same 5-qword header
// layout as buffers (data, capacity, length, fixed-flag, overflow), but
// "capacity"/"length" are counted in elements, each 8 bytes wide. As
// with buffer byte access, an out-of-range element index sets
// _last_error rather than aborting, so an "on error" handler observes
// and clears it instead of the process dying.
const listModule = `
#
# ---- list ------------------------------------------------------------
#
.data
rt_list_default_cap: .quad 8

.text

# rt_list_alloc: allocate an empty list with room for
# rt_list_default_cap elements (8 bytes each), doubling via
# rt_list_append's call to rt_list_grow once full. Returns the list
# header address in rax, laid out exactly like a dynamic buffer's
# header except capacity/length count elements, not bytes.
rt_list_alloc:
        push r12
        mov r12, qword ptr [rip + rt_list_default_cap]
        mov rdi, r12
        shl rdi, 3
        call rt_mmap_anon
        mov r8, rax
        call rt_heap_alloc_header
        mov qword ptr [rax], r8
        mov qword ptr [rax + 8], r12
        mov qword ptr [rax + 16], 0
        mov qword ptr [rax + 24], 0
        pop r12
        ret

# rt_list_get: return element rsi (1-based) of list header rdi in rax,
# returning 0 and setting _last_error if the index is outside [1, length].
rt_list_get:
        mov rcx, qword ptr [rdi + 16]
        cmp rsi, 1
        jl .rt_list_get_oob
        cmp rsi, rcx
        jg .rt_list_get_oob
        mov rax, qword ptr [rdi]
        dec rsi
        mov rax, qword ptr [rax + rsi * 8]
        ret
.rt_list_get_oob:
        mov qword ptr [rip + _last_error], 1
        xor rax, rax
        ret

# rt_list_set: store rdx into element rsi (1-based) of list header rdi,
# setting _last_error on an out-of-range index instead of writing.
rt_list_set:
        mov rcx, qword ptr [rdi + 16]
        cmp rsi, 1
        jl .rt_list_set_oob
        cmp rsi, rcx
        jg .rt_list_set_oob
        mov rax, qword ptr [rdi]
        dec rsi
        mov qword ptr [rax + rsi * 8], rdx
        ret
.rt_list_set_oob:
        mov qword ptr [rip + _last_error], 1
        ret

# rt_list_length / rt_list_capacity / rt_list_empty: the scalar list
# properties, each taking the list header in rdi.
rt_list_length:
        mov rax, qword ptr [rdi + 16]
        ret
rt_list_capacity:
        mov rax, qword ptr [rdi + 8]
        ret
rt_list_empty:
        mov rax, qword ptr [rdi + 16]
        cmp rax, 0
        sete al
        movzx rax, al
        ret

# rt_list_first / rt_list_last: the first/last element; first on an
# empty list reads slot zero, matching an ordinary out-of-range read
# that the caller is responsible for guarding against with "empty".
rt_list_first:
        mov rax, qword ptr [rdi]
        mov rax, qword ptr [rax]
        ret
rt_list_last:
        mov rcx, qword ptr [rdi + 16]
        mov rax, qword ptr [rdi]
        dec rcx
        mov rax, qword ptr [rax + rcx * 8]
        ret

# rt_list_grow: double a list's element capacity, copying the existing
# elements into the new mapping. Capacity/length here count 8-byte
# elements, not bytes, so this cannot share rt_buf_grow's byte-counted
# arithmetic directly.
rt_list_grow:
        push r12
        mov r12, rdi
        mov rdi, qword ptr [r12 + 8]
        shl rdi, 1
        mov rax, rdi
        shl rax, 3
        mov rdi, rax
        call rt_mmap_anon
        mov rsi, qword ptr [r12]
        mov rdx, qword ptr [r12 + 16]
        shl rdx, 3
        mov rdi, rax
        push rdi
        call rt_mem_copy
        pop rdi
        mov qword ptr [r12], rdi
        mov rax, qword ptr [r12 + 8]
        shl rax, 1
        mov qword ptr [r12 + 8], rax
        pop r12
        ret

# rt_list_append: append the element value in rsi to list header rdi,
# doubling its backing capacity first if it is already full.
rt_list_append:
        push rsi
        mov rax, qword ptr [rdi + 16]
        cmp rax, qword ptr [rdi + 8]
        jl .rt_list_append_room
        push rdi
        call rt_list_grow
        pop rdi
.rt_list_append_room:
        pop rsi
        mov rax, qword ptr [rdi]
        mov rcx, qword ptr [rdi + 16]
        mov qword ptr [rax + rcx * 8], rsi
        inc qword ptr [rdi + 16]
        ret
`
