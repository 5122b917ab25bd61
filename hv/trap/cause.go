package trap

// Cause classifies a decoded scause value: the interrupt bit plus the
// exception/interrupt code, restated as the specific causes the dispatcher
// in spec.md §4.6 must route on. Grounded on the teacher kernel's
// irq.InterruptNumber enumeration, widened with the hypervisor-specific
// causes (guest-originating ecalls and the three guest-page-fault flavors)
// that only exist once the H-extension is in play.
type Cause int

const (
	CauseUnknown Cause = iota

	// CauseSupervisorTimerInterrupt fires on the host's own STIP, used to
	// schedule a periodic hvip VSTIP injection into the guest.
	CauseSupervisorTimerInterrupt

	// CauseSupervisorExternalInterrupt fires when the real PLIC has a
	// claimable IRQ; the dispatcher forwards it to the guest (spec.md
	// §4.9) rather than handling it as if it were the hypervisor's own.
	CauseSupervisorExternalInterrupt

	// CauseSupervisorSoftwareInterrupt is used for inter-hart signaling
	// (an SBI remote-fence request targeting this hart).
	CauseSupervisorSoftwareInterrupt

	// CauseEnvCallFromVSMode is a guest SBI call: scause == 10.
	CauseEnvCallFromVSMode

	// CauseInstructionGuestPageFault / CauseLoadGuestPageFault /
	// CauseStoreAMOGuestPageFault are the three G-stage fault causes
	// (scause 20/21/23). Load/Store faults route to the MMIO emulation
	// path, which emulates only the PLIC claim/complete window;
	// Instruction faults are always fatal per spec.md's guest-fetch
	// invariant — there is no legitimate reason to execute from
	// unbacked guest-physical memory.
	CauseInstructionGuestPageFault
	CauseLoadGuestPageFault
	CauseStoreAMOGuestPageFault

	// CauseOtherDelegatedException covers every exception hedeleg
	// forwards straight to the guest's VS-mode trap handler without HS
	// ever inspecting it (instruction-misaligned, breakpoint, U/VU
	// ecall once SBI handling above has been ruled out).
	CauseOtherDelegatedException

	// CauseVirtualInstruction is scause 22: a guest executed a privileged
	// instruction hedeleg does not forward, so HS took the trap itself
	// instead of the guest's own VS-mode handler ever seeing it. Kept
	// distinct from CauseOtherDelegatedException rather than folded into
	// it: a real privileged-instruction emulator belongs here, not the
	// generic reflect-to-guest path.
	CauseVirtualInstruction

	// CauseUnhandledException is anything else: fatal.
	CauseUnhandledException
)

// scause bit layout: bit 63 set means this is an interrupt, the low bits
// are the exception/interrupt code.
const interruptBit = uint64(1) << 63

const (
	excInstructionGuestPageFault = 20
	excLoadGuestPageFault        = 21
	excVirtualInstruction        = 22
	excStoreAMOGuestPageFault    = 23
	excEnvCallFromVSMode         = 10

	intSupervisorSoftware = 1
	intSupervisorTimer    = 5
	intSupervisorExternal = 9
)

// Classify maps a raw scause value (as read by csr.ReadScause) to a Cause.
func Classify(scause uint64) Cause {
	isInterrupt := scause&interruptBit != 0
	code := scause &^ interruptBit

	if isInterrupt {
		switch code {
		case intSupervisorSoftware:
			return CauseSupervisorSoftwareInterrupt
		case intSupervisorTimer:
			return CauseSupervisorTimerInterrupt
		case intSupervisorExternal:
			return CauseSupervisorExternalInterrupt
		default:
			return CauseUnhandledException
		}
	}

	switch code {
	case excEnvCallFromVSMode:
		return CauseEnvCallFromVSMode
	case excInstructionGuestPageFault:
		return CauseInstructionGuestPageFault
	case excLoadGuestPageFault:
		return CauseLoadGuestPageFault
	case excStoreAMOGuestPageFault:
		return CauseStoreAMOGuestPageFault
	case excVirtualInstruction:
		return CauseVirtualInstruction
	default:
		return CauseUnhandledException
	}
}
