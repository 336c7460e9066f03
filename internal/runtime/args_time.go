package runtime

// argsModule implements the save-args sequence that must run before the
// stack frame is set up (it reads argc/argv/envp straight off the
// initial process stack layout), indexed argument fetch, the program
// name, and environment lookup by name (a linear scan comparing the
// "NAME=" prefix), by index, and by count (spec.md §4.5: "args").
const argsModule = `
#
# ---- args --------------------------------------------------------
#
.data
rt_argc: .quad 0
rt_argv: .quad 0
rt_envp: .quad 0
rt_env_count_cache: .quad -1

.text

# rt_save_args: called once from _start, before rbp is established,
# with the kernel-provided argc/argv/envp layout sitting directly above
# the return address this call pushed.
# Stashes argc, argv, and envp for every later args/environment query.
rt_save_args:
        mov rax, qword ptr [rsp + 8]
        mov qword ptr [rip + rt_argc], rax
        lea rax, [rsp + 16]
        mov qword ptr [rip + rt_argv], rax
        mov rax, qword ptr [rip + rt_argc]
        lea rax, [rsp + 16 + rax * 8 + 8]  # skip argv[] and its NULL terminator
        mov qword ptr [rip + rt_envp], rax
        ret

# rt_arg_count: return argc in rax.
rt_arg_count:
        mov rax, qword ptr [rip + rt_argc]
        ret

# rt_arg_at: return argv[rdi] (0-based) in rax, or 0 if out of range.
rt_arg_at:
        mov rax, qword ptr [rip + rt_argc]
        cmp rdi, rax
        jae .rt_arg_at_oob
        mov rax, qword ptr [rip + rt_argv]
        mov rax, qword ptr [rax + rdi * 8]
        ret
.rt_arg_at_oob:
        xor rax, rax
        ret

# rt_prog_name: return argv[0] in rax.
rt_prog_name:
        xor rdi, rdi
        jmp rt_arg_at

# rt_env_lookup: scan envp for an entry whose "NAME=" prefix matches the
# null-terminated key at rdi. Returns a pointer to the value (just past
# the '=') in rax, or 0 if not found.
rt_env_lookup:
        push rbx
        push r12
        mov r12, rdi                 # key
        call rt_str_len
        mov rbx, rax                 # key length
        mov rdi, qword ptr [rip + rt_envp]
.rt_env_lookup_loop:
        mov rax, qword ptr [rdi]
        test rax, rax
        je .rt_env_lookup_notfound
        push rdi
        mov rsi, r12
        mov rdi, rax
        mov rdx, rbx
        call rt_env_prefix_match
        pop rdi
        test rax, rax
        jnz .rt_env_lookup_found
        add rdi, 8
        jmp .rt_env_lookup_loop
.rt_env_lookup_found:
        mov rax, qword ptr [rdi]
        add rax, rbx
        inc rax                       # skip '='
        pop r12
        pop rbx
        ret
.rt_env_lookup_notfound:
        xor rax, rax
        pop r12
        pop rbx
        ret

# rt_env_prefix_match: rdi = "NAME=value...", rsi = "NAME" (length rdx).
# Returns 1 in rax if rdi starts with rsi followed by '='.
rt_env_prefix_match:
        push rcx
        xor rcx, rcx
.rt_env_prefix_loop:
        cmp rcx, rdx
        je .rt_env_prefix_eq
        mov al, byte ptr [rdi + rcx]
        cmp al, byte ptr [rsi + rcx]
        jne .rt_env_prefix_no
        inc rcx
        jmp .rt_env_prefix_loop
.rt_env_prefix_eq:
        cmp byte ptr [rdi + rcx], '='
        jne .rt_env_prefix_no
        mov rax, 1
        pop rcx
        ret
.rt_env_prefix_no:
        xor rax, rax
        pop rcx
        ret

# rt_env_at: return envp[rdi] (0-based) in rax, or 0 if out of range.
rt_env_at:
        push rdi
        call rt_env_count
        pop rdi
        cmp rdi, rax
        jae .rt_env_at_oob
        mov rax, qword ptr [rip + rt_envp]
        mov rax, qword ptr [rax + rdi * 8]
        ret
.rt_env_at_oob:
        xor rax, rax
        ret

# rt_env_count: return the number of environment entries, caching the
# result the first time (envp never changes length at runtime).
rt_env_count:
        mov rax, qword ptr [rip + rt_env_count_cache]
        cmp rax, -1
        jne .rt_env_count_done
        mov rdi, qword ptr [rip + rt_envp]
        xor rax, rax
.rt_env_count_loop:
        cmp qword ptr [rdi + rax * 8], 0
        je .rt_env_count_store
        inc rax
        jmp .rt_env_count_loop
.rt_env_count_store:
        mov qword ptr [rip + rt_env_count_cache], rax
.rt_env_count_done:
        ret
`

// timeModule implements unix time, monotonic time, wall-clock time,
// sleep in seconds/milliseconds via nanosleep, proleptic-Gregorian
// date-component extraction, and timer struct operations (spec.md
// §4.5: "time").
const timeModule = `
#
# ---- time --------------------------------------------------------
#
.data
rt_timespec: .skip 16          # tv_sec, tv_nsec

.text

# rt_unix_time: return the current wall-clock unix time, in seconds, in
# rax (CLOCK_REALTIME = 0).
rt_unix_time:
        push rdi
        push rsi
        xor rdi, rdi
        lea rsi, [rip + rt_timespec]
        mov rax, 228             # sys_clock_gettime
        syscall
        mov rax, qword ptr [rip + rt_timespec]
        pop rsi
        pop rdi
        ret

# rt_monotonic_time: return a monotonic nanosecond counter in rax
# (CLOCK_MONOTONIC = 1), used by timer start/stop/elapsed.
rt_monotonic_time:
        push rdi
        push rsi
        mov rdi, 1
        lea rsi, [rip + rt_timespec]
        mov rax, 228
        syscall
        mov rax, qword ptr [rip + rt_timespec]
        imul rax, rax, 1000000000
        add rax, qword ptr [rip + rt_timespec + 8]
        pop rsi
        pop rdi
        ret

# rt_sleep_seconds / rt_sleep_millis: sleep for rdi seconds/milliseconds
# using the nanosleep syscall.
rt_sleep_seconds:
        mov qword ptr [rip + rt_timespec], rdi
        mov qword ptr [rip + rt_timespec + 8], 0
        jmp rt_nanosleep
rt_sleep_millis:
        mov rax, rdi
        xor rdx, rdx
        mov rcx, 1000
        div rcx
        mov qword ptr [rip + rt_timespec], rax
        imul rdx, rdx, 1000000
        mov qword ptr [rip + rt_timespec + 8], rdx
        jmp rt_nanosleep
rt_nanosleep:
        lea rdi, [rip + rt_timespec]
        xor rsi, rsi
        mov rax, 35               # sys_nanosleep
        syscall
        ret

# rt_date_components: given a unix time in rdi, write year/month/day/
# hour/minute/second into the six qwords at rsi, using a proleptic
# Gregorian year-walk (y%4==0 and (y%100!=0 or y%400==0) is a leap
# year), per spec.md's date-extraction algorithm.
rt_date_components:
        push rbx
        push r12
        push r13
        push r14
        mov rax, rdi
        xor rdx, rdx
        mov rcx, 86400
        div rcx                   # rax = days since epoch, rdx = seconds-of-day
        mov r12, rax              # days
        mov rbx, rdx              # seconds of day

        mov rax, rbx
        xor rdx, rdx
        mov rcx, 3600
        div rcx
        mov qword ptr [rsi + 24], rax    # hour
        mov rbx, rdx
        mov rax, rbx
        xor rdx, rdx
        mov rcx, 60
        div rcx
        mov qword ptr [rsi + 32], rax    # minute
        mov qword ptr [rsi + 40], rdx    # second

        mov r13, 1970             # year, walking forward from the epoch
.rt_date_year_loop:
        mov rdi, r13
        call rt_days_in_year
        cmp r12, rax
        jl .rt_date_year_done
        sub r12, rax
        inc r13
        jmp .rt_date_year_loop
.rt_date_year_done:
        mov qword ptr [rsi], r13         # year

        xor r14, r14                     # month index (0-based)
.rt_date_month_loop:
        mov rdi, r13                     # year, for the February leap check
        call rt_days_in_month
        cmp r12, rax
        jl .rt_date_month_done
        sub r12, rax
        inc r14
        jmp .rt_date_month_loop
.rt_date_month_done:
        mov rax, r14
        inc rax
        mov qword ptr [rsi + 8], rax     # month, 1-based
        mov rax, r12
        inc rax
        mov qword ptr [rsi + 16], rax    # day of month, 1-based
        pop r14
        pop r13
        pop r12
        pop rbx
        ret

# rt_days_in_year: return 366 if rdi is a leap year, else 365.
rt_days_in_year:
        mov rax, rdi
        xor rdx, rdx
        mov rcx, 4
        div rcx
        test rdx, rdx
        jnz .rt_days_in_year_365
        mov rax, rdi
        xor rdx, rdx
        mov rcx, 100
        div rcx
        test rdx, rdx
        jnz .rt_days_in_year_366
        mov rax, rdi
        xor rdx, rdx
        mov rcx, 400
        div rcx
        test rdx, rdx
        jnz .rt_days_in_year_365
.rt_days_in_year_366:
        mov rax, 366
        ret
.rt_days_in_year_365:
        mov rax, 365
        ret

# rt_days_in_month: return the day count of month r14 (0-based) of year
# rdi, consulting the fixed month-length table (February adjusted for
# leap years via rt_days_in_year).
rt_days_in_month:
        lea rax, [rip + rt_month_lengths]
        movzx rcx, byte ptr [rax + r14]
        cmp r14, 1
        jne .rt_days_in_month_done
        call rt_days_in_year
        cmp rax, 366
        jne .rt_days_in_month_done
        mov rcx, 29
.rt_days_in_month_done:
        mov rax, rcx
        ret

.data
rt_month_lengths: .byte 31,28,31,30,31,30,31,31,30,31,30,31

.text

# rt_timer_start: record the current monotonic time into the 8-byte
# timer slot at rdi.
rt_timer_start:
        push rdi
        call rt_monotonic_time
        pop rdi
        mov qword ptr [rdi], rax
        ret

# rt_timer_stop: record the current monotonic time into the second
# 8-byte slot at rdi+8, marking the timer stopped.
rt_timer_stop:
        push rdi
        call rt_monotonic_time
        pop rdi
        mov qword ptr [rdi + 8], rax
        ret

# rt_timer_elapsed: return (stop - start) in nanoseconds, converted to a
# double of seconds in xmm0. A still-running timer (stop slot is 0)
# measures against the current time instead.
rt_timer_elapsed:
        mov rax, qword ptr [rdi + 8]
        test rax, rax
        jnz .rt_timer_elapsed_have_stop
        push rdi
        call rt_monotonic_time
        pop rdi
        jmp .rt_timer_elapsed_diff
.rt_timer_elapsed_have_stop:
        mov rax, qword ptr [rdi + 8]
.rt_timer_elapsed_diff:
        sub rax, qword ptr [rdi]
        cvtsi2sd xmm0, rax
        mov rax, 1000000000
        cvtsi2sd xmm1, rax
        divsd xmm0, xmm1
        ret

# rt_timer_running: return 1 in rax if the timer at rdi has not been
# stopped yet.
rt_timer_running:
        mov rax, qword ptr [rdi + 8]
        test rax, rax
        sete al
        movzx rax, al
        ret
`
