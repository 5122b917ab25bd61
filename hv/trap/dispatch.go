package trap

import (
	"hypocaust/hv"
	"hypocaust/hv/addr"
	"hypocaust/hv/csr"
)

// Handlers are the sub-handlers the dispatcher routes a vmexit to, wired up
// by hv/vmm during boot. Keeping them as a struct of function fields rather
// than trap importing hv/sbi, hv/plic and hv/vmm directly avoids a cycle:
// all three of those packages depend on trap, not the other way around.
type Handlers struct {
	// Lock/Unlock bracket every sub-handler call, matching spec.md's "the
	// dispatcher never mutates scause across the call; it re-locks the
	// VMM singleton for the duration of handler execution and releases
	// before returning to the trampoline."
	Lock   func()
	Unlock func()

	// SBI proxies a guest ecall (hv/sbi.Proxy).
	SBI func(ctx *TrapContext)

	// MMIOFault emulates a load/store that faulted at guest-physical
	// address gpa (hv/vmm wires only the PLIC claim/complete window). It
	// reports whether it recognized the address and, if so, how many
	// bytes the faulting instruction occupied so the dispatcher can
	// advance Sepc past it. htinst is the raw (possibly zero)
	// hardware-transformed instruction value from the htinst CSR.
	MMIOFault func(ctx *TrapContext, gpa uint64, htinst uint64) (handled bool, instLen int)

	// ForwardExternalIRQ runs the PLIC claim/shadow/VSEIP-injection
	// sequence (spec.md §4.9) after a real external interrupt arrives on
	// this hart.
	ForwardExternalIRQ func(ctx *TrapContext)

	// InjectTimerIRQ sets VSTIP (and whatever host-side timer
	// rearming hv/sbi's timer extension needs) after the host's own
	// timer fires.
	InjectTimerIRQ func(ctx *TrapContext)

	// Reflect copies an exception hedeleg did not forward in hardware —
	// or one explicitly handled only this deep — back into the guest's
	// own VS-mode trap handler via vsepc/vscause/vstvec.
	Reflect func(ctx *TrapContext, cause Cause)

	// OnExternalIRQ / OnTimerIRQ / OnGuestPageFault increment hv/vmm's
	// counters; see spec.md's HostVmm counter fields.
	OnExternalIRQ    func()
	OnTimerIRQ       func()
	OnGuestPageFault func()
}

var active Handlers

// Init installs the handler set used by every subsequent trap. Called once
// from hv/vmm's boot sequence, before stvec is ever pointed at trapEntry.
func Init(h Handlers) {
	active = h
}

// Install points stvec at trapEntry and seeds sscratch with the fixed
// TrapContext address, so the very first trap this hart ever takes finds a
// valid context to save into. Called once per hart, after Init.
func Install() {
	csr.WriteStvec(uint64(trapEntryAddr()))
	csr.WriteSscratch(uint64(addr.TrapContextVA))
}

// ContextAddr returns the fixed TrapContext address as a typed pointer, for
// the boot path to populate directly before the first guest entry.
func ContextAddr() *TrapContext {
	return (*TrapContext)(contextPointer())
}

// Enter transfers control to the guest described by ctx via the same
// assembly sequence every subsequent vmexit resumes through. hv/vmm's boot
// sequence calls this exactly once, to perform the very first entry
// described in spec.md §4.10; every entry after that happens from
// dispatchTrap instead.
func Enter(ctx *TrapContext) {
	switchToGuest(ctx)
}

var (
	errNoHandlers         = &hv.Error{Module: "trap", Message: "dispatchTrap ran before Init installed handlers"}
	errUnhandledFault     = &hv.Error{Module: "trap", Message: "guest-physical fault at an address no MMIOFault handler recognized"}
	errUnhandledException = &hv.Error{Module: "trap", Message: "unclassified or unhandled scause"}
	errInstructionFault   = &hv.Error{Module: "trap", Message: "instruction fetch from unbacked guest-physical memory"}
	errDispatchReturned   = &hv.Error{Module: "trap", Message: "dispatchTrap returned instead of resuming the guest"}
	errVirtualInstruction = &hv.Error{Module: "trap", Message: "privileged-instruction emulation not implemented"}
)

// dispatchTrap is called from trapEntry (trampoline_riscv64.s) with ctx set
// to the TrapContext just populated from the trap that occurred. It
// classifies scause exactly once, dispatches to the matching sub-handler
// under the VMM lock, and always ends by calling switchToGuest — it never
// returns to its caller.
func dispatchTrap(ctx *TrapContext) {
	if active.Lock == nil {
		hv.Panic(errNoHandlers)
	}

	scause := csr.ReadScause()
	cause := Classify(scause)

	active.Lock()
	switch cause {
	case CauseEnvCallFromVSMode:
		active.SBI(ctx)
		// A guest ecall is always 4 bytes (SBI calls are never issued
		// from compressed-instruction encodings).
		ctx.Sepc += 4

	case CauseSupervisorExternalInterrupt:
		active.OnExternalIRQ()
		active.ForwardExternalIRQ(ctx)

	case CauseSupervisorTimerInterrupt:
		active.OnTimerIRQ()
		active.InjectTimerIRQ(ctx)

	case CauseSupervisorSoftwareInterrupt:
		// Inter-hart SBI remote-fence signal; acknowledged and cleared
		// by the same handler that issued it (hv/sbi's rfence path),
		// nothing further to do before resuming.

	case CauseLoadGuestPageFault, CauseStoreAMOGuestPageFault:
		active.OnGuestPageFault()
		gpa := csr.ReadHtval() << 2
		htinst := csr.ReadHtinst()
		handled, instLen := active.MMIOFault(ctx, gpa, htinst)
		if !handled {
			hv.Panic(errUnhandledFault)
		}
		ctx.Sepc += uint64(instLen)

	case CauseInstructionGuestPageFault:
		// Resolved Open Question: stays fatal. A well-formed guest
		// never executes from memory the G-stage table doesn't back;
		// treating this as emulatable MMIO would mean executing
		// instructions fetched from a device register.
		hv.Panic(errInstructionFault)

	case CauseOtherDelegatedException:
		active.Reflect(ctx, cause)

	case CauseVirtualInstruction:
		// No privileged-instruction emulator exists yet; currently
		// unreachable in practice since nothing stops hedeleg-delegating
		// it instead, but guests never issue VS-illegal privileged
		// instructions HS is expected to step around silently, so a
		// fatal stop here beats either dropping it or mis-reflecting it
		// as an ordinary delegated exception.
		hv.Panic(errVirtualInstruction)

	default:
		hv.Panic(errUnhandledException)
	}
	active.Unlock()

	switchToGuest(ctx)
}

// dispatchTrapReturnedUnexpectedly is the trampoline's fallback if
// dispatchTrap ever returns instead of calling switchToGuest — which, given
// the switch above, only happens if a future case is added without an
// accompanying switchToGuest call reachable from it.
func dispatchTrapReturnedUnexpectedly() {
	hv.Panic(errDispatchReturned)
}
