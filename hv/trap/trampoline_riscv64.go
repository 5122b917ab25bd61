package trap

// trapEntry is the trap vector: its address is installed into stvec by
// Install and never called directly from Go. On a trap it exchanges sp/
// sscratch to find the TrapContext page, spills every GPR and the
// host-relevant CSRs into it, restores the HS kernel's own satp/sp, and
// calls dispatchTrap with the TrapContext address in a0. Implemented in
// trampoline_riscv64.s.
func trapEntry()

// switchToGuest restores GPRs and sstatus/hstatus/sepc/hgatp from the
// TrapContext at ctx, issues the hgatp-switch hfence.gvma ordering required
// before the next guest instruction fetch, and executes sret into the
// guest. Never returns. Implemented in trampoline_riscv64.s.
func switchToGuest(ctx *TrapContext)

// trapEntryAddr returns trapEntry's code address, for installing into
// stvec. Indirecting through a function (rather than taking the address of
// trapEntry directly with Go's func-value machinery, which assumes a
// runtime this binary does not have) mirrors how the teacher kernel's
// irq.Handler table stores raw handler addresses rather than closures.
func trapEntryAddr() uintptr
