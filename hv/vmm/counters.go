package vmm

import "sync/atomic"

// The three counter fields are each protected by the same VMM spinlock every
// other field is, incremented from inside dispatchTrap's Lock/Unlock
// bracket — so plain increments (not atomic.Add) would already be safe. They
// go through sync/atomic anyway so Snapshot can be called from host tooling
// (a debug console command, a future cmd/hvrun metrics poll) without taking
// the VMM lock itself and risking a deadlock if called from within a trap
// handler.

func (v *HostVmm) incExternalIRQs()    { atomic.AddUint64(&v.counters.ExternalIRQs, 1) }
func (v *HostVmm) incTimerIRQs()       { atomic.AddUint64(&v.counters.TimerIRQs, 1) }
func (v *HostVmm) incGuestPageFaults() { atomic.AddUint64(&v.counters.GuestPageFaults, 1) }

// Snapshot returns a consistent-enough (each field read independently, not
// as one atomic transaction) copy of the vmexit counters.
func (v *HostVmm) Snapshot() Counters {
	return Counters{
		ExternalIRQs:    atomic.LoadUint64(&v.counters.ExternalIRQs),
		TimerIRQs:       atomic.LoadUint64(&v.counters.TimerIRQs),
		GuestPageFaults: atomic.LoadUint64(&v.counters.GuestPageFaults),
	}
}
