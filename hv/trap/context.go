// Package trap implements the trap-entry trampoline and the vmexit
// dispatcher: the fixed rendezvous between assembly and Go described in
// spec.md's TrapContext and dispatch sections, grounded on the teacher
// kernel's irq.Registers / irq.Handler split (a fixed-layout register-save
// struct handed from assembly to a Go-level handler table) and widened with
// the hypervisor-specific fields (HS satp, guest hgatp) an ordinary kernel
// trap frame never needs.
package trap

// TrapContext is the fixed-layout structure the assembly trampoline saves
// guest (or, during the very first entry, the freshly built) register state
// into, and the dispatcher reads and mutates before handing control back.
// Exactly one exists per physical hart, at the fixed virtual address
// addr.TrapContextVA. Field order matters: trampoline_riscv64.s addresses
// every field by a byte offset computed from this layout, not by name.
type TrapContext struct {
	// GPR holds x0..x31. x0 is architecturally hardwired to zero and is
	// never meaningfully restored, but keeping it in the array lets every
	// other register be addressed by its natural index instead of index-1.
	GPR [32]uint64

	// Sstatus / Hstatus are the guest's saved privilege-and-interrupt state,
	// restored into sstatus/hstatus immediately before sret resumes it.
	Sstatus uint64
	Hstatus uint64

	// Sepc is the guest program counter to resume at.
	Sepc uint64

	// HSSatp and HSSp are the HS kernel's own first-stage satp token and
	// kernel stack pointer, reloaded by the trap entry path before the
	// dispatcher runs (the guest's satp/sp are never trusted for HS-mode
	// execution).
	HSSatp uint64
	HSSp   uint64

	// TrapHandlerEntry is a slot for a trap-handler address. Nothing writes
	// it (hv/vmm's boot sequence leaves it zero) and trampoline_riscv64.s
	// does not read it: trapEntry calls dispatchTrap directly.
	TrapHandlerEntry uint64

	// GuestHgatp is the G-stage root token for the guest this context
	// belongs to, loaded into hgatp (followed by HfenceGVMA) immediately
	// before resuming the guest.
	GuestHgatp uint64
}

// Field byte offsets within TrapContext. trampoline_riscv64.s does not use
// these constants: it repeats the same offsets as its own CTX_* defines,
// which must be kept equal to these by hand when the struct above changes.
const (
	offGPR              = 0                    // 32 * 8 bytes
	offSstatus          = offGPR + 32*8         // 256
	offHstatus          = offSstatus + 8        // 264
	offSepc             = offHstatus + 8        // 272
	offHSSatp           = offSepc + 8           // 280
	offHSSp             = offHSSatp + 8         // 288
	offTrapHandlerEntry = offHSSp + 8           // 296
	offGuestHgatp       = offTrapHandlerEntry + 8 // 304

	// sizeofTrapContext is the total size of TrapContext.
	sizeofTrapContext = offGuestHgatp + 8 // 312
)
