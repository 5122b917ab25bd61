// Package plic emulates the guest-visible slice of the Platform-Level
// Interrupt Controller: the threshold/claim/complete window each guest
// touches directly, per spec.md §4.8 and §4.9. Grounded on the teacher
// kernel's irq dispatch tables (irq.Handler indexed by vector number),
// generalized here to a window-and-word classifier over a single shared
// physical device rather than a fixed in-kernel vector table, since the
// real PLIC is multiplexed across every guest by the hypervisor instead of
// owned outright by any one of them.
package plic

import (
	"hypocaust/hv"
	"hypocaust/hv/decode"
	"hypocaust/hv/trap"
)

// Layout of the PLIC context region, per the RISC-V PLIC specification:
// priority/pending/enable registers occupy the first 0x200000 bytes: this
// package does not emulate them. hv/vmm leaves the whole PLIC window out of
// the guest's G-stage table, so a guest access there faults, InWindow
// rejects it and the fault is reported unhandled. The claim/complete region begins at
// contextRegionOffset and repeats every contextStride bytes, one block per
// PLIC context (one per M-mode and S-mode target, per hart).
const (
	contextRegionOffset = 0x200000
	contextStride       = 0x1000

	wordThreshold     = 0
	wordClaimComplete = 1
)

var (
	errUnexpectedInstruction = &hv.Error{Module: "plic", Message: "non-lw/sw access to the claim/complete window"}
	errFaultingPseudoInst    = &hv.Error{Module: "plic", Message: "fault occurred during the guest's own page-table walk"}
)

// pseudoInstruction codes htinst may carry instead of a real transformed
// instruction, meaning the fault happened while hardware itself was
// walking the guest's first-stage table. Per spec.md §4.8 these are fatal
// in the current design rather than reinjected.
const (
	pseudoLoadFault  = 0x3000
	pseudoStoreFault = 0x3020
)

// State is the per-VMM (not per-guest) shadow of claim/complete values,
// indexed by PLIC context id: one M-context and one S-context per hart, so
// slot 2*hart is the M-context and 2*hart+1 is the S-context.
type State struct {
	Base          uint64
	ClaimComplete []uint32
}

// New builds PLIC state for a board whose PLIC MMIO window starts at base
// and which has numHarts physical harts (and therefore 2*numHarts claim
// contexts).
func New(base uint64, numHarts int) *State {
	return &State{
		Base:          base,
		ClaimComplete: make([]uint32, 2*numHarts),
	}
}

// mmioRead32Fn / mmioWrite32Fn access the real, shared physical PLIC
// register at base+offset. Indirected through a function variable so tests
// can substitute an in-memory fake instead of dereferencing a physical MMIO
// address that does not exist in a hosted test process.
var (
	mmioRead32Fn  = mmioRead32
	mmioWrite32Fn = mmioWrite32
)

// InWindow reports whether gpa falls inside this PLIC's guest-visible
// claim/complete window. Priority/pending/enable registers below
// contextRegionOffset are outside that window and return false.
func (s *State) InWindow(gpa uint64) bool {
	if gpa < s.Base {
		return false
	}
	offset := gpa - s.Base
	if offset < contextRegionOffset {
		return false
	}
	context := (offset - contextRegionOffset) / contextStride
	return int(context) < len(s.ClaimComplete)
}

// HandleFault implements hv/trap.Handlers.MMIOFault for the PLIC window.
// It decodes the faulting access from htinst when available, falls back to
// decodeFallbackFn otherwise, and emulates exactly the two registers
// spec.md §4.8 describes: threshold (word 0) and claim/complete (word 1).
// Any other word, a width other than 32 bits, or a load from the threshold
// word makes HandleFault call hv.Panic. An address outside the window, or
// an access that cannot be decoded, is reported as unhandled.
func (s *State) HandleFault(ctx *trap.TrapContext, gpa uint64, htinst uint64) (handled bool, instLen int) {
	if !s.InWindow(gpa) {
		return false, 0
	}

	access, ok := s.decode(ctx, htinst)
	if !ok {
		return false, 0
	}
	if access.Width != 4 {
		hv.Panic(errUnexpectedInstruction)
	}

	offset := gpa - s.Base
	ctxOffset := offset - contextRegionOffset
	context := ctxOffset / contextStride
	word := (ctxOffset % contextStride) / 4

	switch word {
	case wordThreshold:
		if access.Kind != decode.Store {
			hv.Panic(errUnexpectedInstruction)
		}
		mmioWrite32Fn(s.Base+offset, uint32(ctx.GPR[access.Reg]))
		return true, access.Length

	case wordClaimComplete:
		switch access.Kind {
		case decode.Load:
			ctx.GPR[access.Reg] = uint64(s.ClaimComplete[context])
			return true, access.Length
		case decode.Store:
			irq := uint32(ctx.GPR[access.Reg])
			mmioWrite32Fn(s.Base+offset, irq)
			s.ClaimComplete[context] = 0
			clearVSEIPFn()
			return true, access.Length
		}
	}

	hv.Panic(errUnexpectedInstruction)
	return false, 0
}

// decode recovers the faulting access from htinst when hardware supplied a
// usable transformed instruction, or via decodeFallbackFn (a guest
// instruction-stream read, wired by hv/vmm) when htinst is zero.
func (s *State) decode(ctx *trap.TrapContext, htinst uint64) (decode.Access, bool) {
	switch uint32(htinst) {
	case 0:
		raw, ok := decodeFallbackFn(ctx.Sepc)
		if !ok {
			return decode.Access{}, false
		}
		acc, err := decode.Decode(raw)
		return acc, err == nil
	case pseudoLoadFault, pseudoStoreFault:
		hv.Panic(errFaultingPseudoInst)
		return decode.Access{}, false
	default:
		acc, err := decode.Decode(uint32(htinst))
		return acc, err == nil
	}
}

// decodeFallbackFn reads the 16 or 32-bit instruction at a guest virtual
// address by walking the guest's own first-stage page table (relocated
// through the host's linear window over guest RAM) when htinst does not
// already hand over a transformed instruction. Wired by hv/vmm at boot,
// since only it knows the running guest's satp and the host linear window
// base; defaults to "unavailable" so a misconfigured boot path fails the
// fault instead of reading garbage.
var decodeFallbackFn = func(sepc uint64) (uint32, bool) { return 0, false }

// SetFallbackDecoder installs the guest-instruction-fetch fallback. Called
// once from hv/vmm's boot sequence.
func SetFallbackDecoder(fn func(sepc uint64) (uint32, bool)) {
	decodeFallbackFn = fn
}

// clearVSEIPFn clears the pending virtual supervisor external interrupt bit
// in hvip, re-arming the guest for the next real external IRQ. Wired by
// hv/vmm; indirected so tests never touch the real (riscv64-only) hvip CSR.
var clearVSEIPFn = func() {}

// SetClearVSEIP installs the real hvip-clearing callback. Called once from
// hv/vmm's boot sequence.
func SetClearVSEIP(fn func()) {
	clearVSEIPFn = fn
}

// claimPhysFn reads the physical claim register for a context; ForwardIRQ
// records the value it returns into the shadow table. It is indirected the
// same way as the MMIO accessors above.
var claimPhysFn = claimPhys

// ForwardIRQ runs the claim/shadow/VSEIP sequence for guestID's S-context
// (context id 2*guestID+1), per spec.md §4.9. It returns the claimed IRQ
// number (0 means "no interrupt pending", per the PLIC specification).
func (s *State) ForwardIRQ(guestID int, setVSEIP func()) uint32 {
	context := 2*guestID + 1
	irq := claimPhysFn(s.Base, context)
	s.ClaimComplete[context] = irq
	setVSEIP()
	return irq
}
