// Package vmm owns the process-wide HostVmm singleton and the boot
// sequence that brings it up: spec.md §3's HostVmm entity and §4.10's
// lifecycle. Grounded on the teacher kernel's kmain boot sequence (probe
// hardware, build the address space, hand off to the next stage) and the
// gate/idt installation pattern it uses before ever enabling interrupts.
package vmm

import (
	"hypocaust/hv"
	"hypocaust/hv/guest"
	"hypocaust/hv/mem/mapset"
	"hypocaust/hv/plic"
	"hypocaust/hv/sync"
)

// Counters tallies the vmexit classes spec.md §3 asks HostVmm to track:
// external IRQs, timer IRQs, and guest page faults. Every field is updated
// with sync/atomic so hv/vmm.Snapshot (counters.go) never needs the VMM
// lock.
type Counters struct {
	ExternalIRQs    uint64
	TimerIRQs       uint64
	GuestPageFaults uint64
}

var errGuestSlotTaken = &hv.Error{Module: "vmm", Message: "guest slot already registered"}
var errGuestIDOutOfRange = &hv.Error{Module: "vmm", Message: "guest id outside [0, MaxGuests)"}

// HostVmm is the process-wide, lock-protected singleton spec.md §3
// describes: the host's own address space, every registered guest, the
// shared PLIC shadow state, and the vmexit counters. Exactly one instance
// ever exists, built once by Boot and never destroyed.
type HostVmm struct {
	lock sync.Spinlock

	HostMemorySet *mapset.MemorySet
	Guests        [guest.MaxGuests]*guest.Guest
	CurrentGuest  int

	Plic *plic.State

	counters   Counters
	IRQPending bool
}

// Global is the single HostVmm instance; every package that needs to reach
// it (the trap Handlers closures wired up in lifecycle.go) captures a
// pointer to this variable rather than threading it through every call, the
// same singleton-by-convention shape the teacher's own kernel-wide state
// (kernel.mm, the boot page tables) uses.
var Global HostVmm

// Lock acquires the VMM spinlock. The dispatcher (hv/trap) calls this via
// the Handlers.Lock field before running any sub-handler and Unlock before
// resuming the guest; it must never be held across switchToGuest/sret,
// per spec.md's "Shared state" concurrency note.
func (v *HostVmm) Lock() { v.lock.Acquire() }

// Unlock releases the VMM spinlock.
func (v *HostVmm) Unlock() { v.lock.Release() }

// RegisterGuest installs g into its own slot (g.ID), failing if the id is
// out of range or already occupied. Called once per guest during boot;
// never during normal operation (spec.md's Lifecycles note: "Guests are
// created during boot... and registered in the VMM").
func (v *HostVmm) RegisterGuest(g *guest.Guest) error {
	if g.ID < 0 || g.ID >= guest.MaxGuests {
		return errGuestIDOutOfRange
	}
	if v.Guests[g.ID] != nil {
		return errGuestSlotTaken
	}
	v.Guests[g.ID] = g
	return nil
}

// CurrentGuestOrNil returns the guest currently running on this hart, or
// nil if none is (which should never happen once Boot completes, but
// callers in the trap path check anyway rather than trusting the invariant
// blindly across a future multi-hart extension).
func (v *HostVmm) CurrentGuestOrNil() *guest.Guest {
	return v.Guests[v.CurrentGuest]
}
