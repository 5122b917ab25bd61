// Package csr declares the privileged RISC-V register accesses the rest of
// the hypervisor needs. Every function here is body-less: the real
// implementation lives in csr_riscv64.s, the same split the teacher kernel
// uses for cpu_amd64.go so that privileged instructions never have to be
// expressed through cgo or inline assembly strings.
package csr

// EnableInterrupts sets SIE in sstatus, unmasking SEIE/SSIE/STIE delivery.
func EnableInterrupts()

// DisableInterrupts clears SIE in sstatus.
func DisableInterrupts()

// Halt parks the hart in wfi forever. Used only by hv.Panic: there is no
// supervisor to resume once the hypervisor itself has faulted.
func Halt()

// Wfi executes a single wfi, returning when any enabled interrupt arrives.
func Wfi()

// SfenceVMA flushes the first-stage TLB. With addr == 0 the whole TLB is
// flushed; otherwise only the mapping for addr is invalidated.
func SfenceVMA(addr uintptr)

// HfenceGVMA flushes the G-stage TLB for the currently loaded hgatp. Must be
// issued after every hgatp write and before the next guest instruction
// fetch (concurrency invariant 1 in the design).
func HfenceGVMA()

// HfenceVVMA flushes VS-stage (guest first-stage) TLB entries cached by the
// host on behalf of the running guest.
func HfenceVVMA(addr uintptr)

// ReadSatp returns the current satp value (HS-mode first-stage root).
func ReadSatp() uint64

// WriteSatp installs a new satp value. Callers must follow with SfenceVMA.
func WriteSatp(v uint64)

// ReadHgatp returns the current hgatp value (G-stage root for the running
// guest).
func ReadHgatp() uint64

// WriteHgatp installs a new hgatp value. Callers must follow with
// HfenceGVMA before resuming the guest.
func WriteHgatp(v uint64)

// ReadHstatus / WriteHstatus access the hstatus CSR (SPV, SPVP, GVA, VSBE).
func ReadHstatus() uint64
func WriteHstatus(v uint64)

// ReadHedeleg / WriteHedeleg access the exception-delegation bitmap.
func ReadHedeleg() uint64
func WriteHedeleg(v uint64)

// ReadHideleg / WriteHideleg access the interrupt-delegation bitmap.
func ReadHideleg() uint64
func WriteHideleg(v uint64)

// ReadHvip / WriteHvip access the virtual interrupt-pending register used to
// inject VSEIP/VSSIP/VSTIP into the guest.
func ReadHvip() uint64
func WriteHvip(v uint64)

// ReadHcounteren / WriteHcounteren access the hypervisor counter-enable CSR.
func ReadHcounteren() uint64
func WriteHcounteren(v uint64)

// ReadHtval returns the guest-physical address (shifted right by 2) that
// faulted, set by hardware on a guest-page-fault trap.
func ReadHtval() uint64

// ReadHtinst returns the (possibly transformed) faulting instruction word
// captured by hardware on certain guest-page-fault traps.
func ReadHtinst() uint64

// ReadScause / ReadSepc / ReadStval access the standard supervisor trap CSRs.
func ReadScause() uint64
func ReadSepc() uint64
func WriteSepc(v uint64)
func ReadStval() uint64

// ReadSstatus / WriteSstatus access sstatus (SPP, SPIE, SIE, ...).
func ReadSstatus() uint64
func WriteSstatus(v uint64)

// ReadVsepc / WriteVsepc, ReadVscause / WriteVscause, ReadVstvec access the
// VS-mode shadow CSRs the dispatcher reflects unhandled exceptions through.
func ReadVsepc() uint64
func WriteVsepc(v uint64)
func ReadVscause() uint64
func WriteVscause(v uint64)
func ReadVstvec() uint64

// ReadVsatp reads vsatp, the guest's own VS-mode first-stage page table
// root: hv/vmm's fallback instruction decoder walks it (via the host's
// linear window over guest-physical memory) to resolve a guest-virtual
// program counter when htinst didn't already hand back a decoded word.
func ReadVsatp() uint64

// ReadSscratch / WriteSscratch access sscratch, used by the trampoline to
// stash the guest sp across the trap boundary.
func ReadSscratch() uint64
func WriteSscratch(v uint64)

// ReadStvec / WriteStvec access the trap entry address for traps taken
// while V=0. ReadStvec exists only so a caller can install a scratch
// handler and restore the previous one afterward (hv/vmm's H-extension
// probe does exactly this, before trap.Install ever runs).
func ReadStvec() uint64
func WriteStvec(v uint64)

// ReadHgeip returns the pending guest-external-interrupt bitmap.
func ReadHgeip() uint64

// ReadSie / WriteSie access sie, the supervisor interrupt-enable register
// (SSIE/STIE/SEIE bits), used by hv/sbi's timer proxy to mask STIE between
// a guest's set_timer calls.
func ReadSie() uint64
func WriteSie(v uint64)
