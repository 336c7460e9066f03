package runtime

// resourceModule implements buffer allocation (dynamic: doubling
// capacity starting at 4 KiB; fixed: exact capacity with an overflow
// flag), buffer growth, file-descriptor and buffer-pointer tracking
// tables, a read-into-buffer helper, and the cleanup routines that skip
// standard streams and already-freed slots (spec.md §4.4 "Allocation
// helpers ... register the returned pointer in a fixed-size table; the
// same tables drive automatic cleanup on exit"; §4.5 "resource").
const resourceModule = `
#
# ---- resource --------------------------------------------------------
#
.data
rt_buf_default_cap: .quad 4096
rt_fd_table: .skip 8 * 64        # up to 64 open file descriptors tracked
rt_fd_table_len: .quad 0
rt_buf_table: .skip 8 * 64       # up to 64 live buffer headers tracked
rt_buf_table_len: .quad 0

.text

# rt_buf_alloc_dynamic: allocate a growable buffer of the default
# capacity (4 KiB). Returns the buffer header address in rax: qword 0
# is the data pointer, qword 1 is the capacity, qword 2 is the length,
# qword 3 is the "fixed" flag (0 here).
rt_buf_alloc_dynamic:
        push r12
        mov r12, qword ptr [rip + rt_buf_default_cap]
        mov rdi, r12
        call rt_mmap_anon
        mov r8, rax
        call rt_heap_alloc_header
        mov qword ptr [rax], r8
        mov qword ptr [rax + 8], r12
        mov qword ptr [rax + 16], 0
        mov qword ptr [rax + 24], 0
        mov rdi, rax
        call rt_buf_register
        pop r12
        ret

# rt_buf_alloc_fixed: allocate a buffer of exactly rdi bytes. The
# "fixed" flag (qword 3) is set so rt_buf_grow refuses to grow it and
# instead raises the overflow flag (qword 4).
rt_buf_alloc_fixed:
        push r12
        mov r12, rdi
        call rt_mmap_anon
        mov r8, rax
        call rt_heap_alloc_header
        mov qword ptr [rax], r8
        mov qword ptr [rax + 8], r12
        mov qword ptr [rax + 16], 0
        mov qword ptr [rax + 24], 1
        mov qword ptr [rax + 32], 0       # overflow flag
        mov rdi, rax
        call rt_buf_register
        pop r12
        ret

# rt_buf_register: record buffer header rdi in the live-buffer table.
rt_buf_register:
        push rax
        mov rax, qword ptr [rip + rt_buf_table_len]
        lea rcx, [rip + rt_buf_table]
        mov qword ptr [rcx + rax * 8], rdi
        inc rax
        mov qword ptr [rip + rt_buf_table_len], rax
        pop rax
        ret

# rt_mmap_anon: map rdi bytes of anonymous, read-write memory. Returns
# the mapping address in rax.
rt_mmap_anon:
        mov rsi, rdi
        xor rdi, rdi
        mov rdx, 3             # PROT_READ | PROT_WRITE
        mov r10, 0x22          # MAP_PRIVATE | MAP_ANONYMOUS
        mov r8, -1
        xor r9, r9
        mov rax, 9              # sys_mmap
        syscall
        ret

# rt_buf_grow: double a dynamic buffer's capacity, copying the existing
# bytes into the new mapping and swapping the tracking entry; a fixed
# buffer instead sets its overflow flag and returns unchanged (spec.md:
# "buffer growth (copy + remap + swap tracking entry)").
rt_buf_grow:
        push r12
        mov r12, rdi                    # buffer header
        cmp qword ptr [r12 + 24], 1
        jne .rt_buf_grow_dynamic
        mov qword ptr [r12 + 32], 1      # overflow
        pop r12
        ret
.rt_buf_grow_dynamic:
        mov rdi, qword ptr [r12 + 8]
        shl rdi, 1
        call rt_mmap_anon
        mov rsi, qword ptr [r12]
        mov rdx, qword ptr [r12 + 16]
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

# rt_mem_copy: copy rdx bytes from rsi to rdi.
rt_mem_copy:
        push rcx
        mov rcx, rdx
        rep movsb
        pop rcx
        ret

# rt_buf_read_into: read up to rdx bytes from fd rdi into buffer header
# rsi, growing it first if it is dynamic and the read would overflow
# capacity; a fixed buffer that cannot fit the read sets its overflow
# flag instead of reading past capacity.
rt_buf_read_into:
        push r12
        push r13
        mov r12, rsi             # buffer header
        mov r13, rdx             # requested length
        mov rax, qword ptr [r12 + 16]
        add rax, r13
        cmp rax, qword ptr [r12 + 8]
        jle .rt_buf_read_into_go
        cmp qword ptr [r12 + 24], 1
        je .rt_buf_read_into_overflow
        push rdi
        mov rdi, r12
        call rt_buf_grow
        pop rdi
.rt_buf_read_into_go:
        mov rsi, qword ptr [r12]
        add rsi, qword ptr [r12 + 16]
        mov rdx, r13
        mov rax, 0                # sys_read
        syscall
        add qword ptr [r12 + 16], rax
        pop r13
        pop r12
        ret
.rt_buf_read_into_overflow:
        mov qword ptr [r12 + 32], 1
        xor rax, rax
        pop r13
        pop r12
        ret

# rt_fd_register: record fd rdi in the open-descriptor table.
rt_fd_register:
        mov rax, qword ptr [rip + rt_fd_table_len]
        lea rcx, [rip + rt_fd_table]
        mov qword ptr [rcx + rax * 8], rdi
        inc rax
        mov qword ptr [rip + rt_fd_table_len], rax
        ret

# rt_fd_cleanup: close every tracked descriptor above 2 (skipping
# stdin/stdout/stderr) and ignore slots that were already closed
# (value -1), per spec.md's "cleanup routines ... skip standard
# streams and ignore already-freed slots".
rt_fd_cleanup:
        push rbx
        xor rbx, rbx
.rt_fd_cleanup_loop:
        cmp rbx, qword ptr [rip + rt_fd_table_len]   # syscall clobbers rcx
        jge .rt_fd_cleanup_done
        lea rax, [rip + rt_fd_table]
        mov rdi, qword ptr [rax + rbx * 8]
        cmp rdi, 2
        jle .rt_fd_cleanup_next
        cmp rdi, -1
        je .rt_fd_cleanup_next
        mov rax, 3              # sys_close
        syscall
        lea rax, [rip + rt_fd_table]
        mov qword ptr [rax + rbx * 8], -1
.rt_fd_cleanup_next:
        inc rbx
        jmp .rt_fd_cleanup_loop
.rt_fd_cleanup_done:
        pop rbx
        ret

# rt_buf_cleanup: unmap every tracked buffer's backing bytes (header
# qword 0, sized by header qword 1, the buffer's capacity) and ignore
# slots already released (data pointer 0), mirroring rt_fd_cleanup's
# skip-already-freed behaviour for the buffer-pointer table (spec.md
# §4.4/§4.5/§8 "cleanup routines for both tables").
rt_buf_cleanup:
        push rbx
        xor rbx, rbx
.rt_buf_cleanup_loop:
        cmp rbx, qword ptr [rip + rt_buf_table_len]  # syscall clobbers rcx
        jge .rt_buf_cleanup_done
        lea rax, [rip + rt_buf_table]
        mov r8, qword ptr [rax + rbx * 8]
        cmp r8, 0
        je .rt_buf_cleanup_next
        mov rdi, qword ptr [r8]
        cmp rdi, 0
        je .rt_buf_cleanup_next
        mov rsi, qword ptr [r8 + 8]
        call rt_heap_free
        mov qword ptr [r8], 0
.rt_buf_cleanup_next:
        inc rbx
        jmp .rt_buf_cleanup_loop
.rt_buf_cleanup_done:
        pop rbx
        ret
`

// heapModule implements generic allocation/free mirroring the resource
// module's anonymous-mapping strategy, used by string builders (spec.md
// §4.5: "heap").
const heapModule = `
#
# ---- heap --------------------------------------------------------
#
.data
rt_heap_header_cap: .quad 4096
rt_heap_header_next: .quad 0

.bss
rt_heap_header_region: .skip 4096

.text

# rt_heap_alloc_header: hand out a fixed-size (40 byte) header record
# from a small bump-allocated region; headers are never individually
# freed (a process-lifetime compiler has no need to), only the backing
# buffers they describe are released via rt_heap_free.
rt_heap_alloc_header:
        lea rax, [rip + rt_heap_header_region]
        mov rcx, qword ptr [rip + rt_heap_header_next]
        add rax, rcx
        add rcx, 40
        mov qword ptr [rip + rt_heap_header_next], rcx
        ret

# rt_heap_alloc: allocate rdi bytes of anonymous memory for a one-off
# heap value (e.g. a string builder's backing bytes). Returns the
# address in rax.
rt_heap_alloc:
        jmp rt_mmap_anon

# rt_heap_free: release the rsi-byte mapping at rdi (sys_munmap's own
# addr-then-length argument order).
rt_heap_free:
        mov rax, 11              # sys_munmap
        syscall
        ret
`
