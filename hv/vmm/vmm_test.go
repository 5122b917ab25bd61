package vmm

import (
	"testing"

	"hypocaust/hv/guest"
)

func TestRegisterGuestRejectsOutOfRangeAndDuplicateSlots(t *testing.T) {
	var v HostVmm

	g0 := guest.New(0, nil, 0x1000, guest.Metadata{})
	if err := v.RegisterGuest(g0); err != nil {
		t.Fatalf("RegisterGuest(0): %v", err)
	}
	if v.CurrentGuestOrNil() != g0 {
		t.Fatalf("expected guest 0 to occupy the default current-guest slot")
	}

	if err := v.RegisterGuest(guest.New(0, nil, 0x2000, guest.Metadata{})); err != errGuestSlotTaken {
		t.Fatalf("expected errGuestSlotTaken re-registering slot 0, got %v", err)
	}

	outOfRange := guest.New(guest.MaxGuests, nil, 0, guest.Metadata{})
	if err := v.RegisterGuest(outOfRange); err != errGuestIDOutOfRange {
		t.Fatalf("expected errGuestIDOutOfRange, got %v", err)
	}
}

func TestCountersSnapshotReflectsIncrements(t *testing.T) {
	var v HostVmm

	v.incExternalIRQs()
	v.incExternalIRQs()
	v.incTimerIRQs()
	v.incGuestPageFaults()

	snap := v.Snapshot()
	if snap.ExternalIRQs != 2 || snap.TimerIRQs != 1 || snap.GuestPageFaults != 1 {
		t.Fatalf("unexpected counters snapshot: %+v", snap)
	}
}

func TestLockUnlockRoundTrips(t *testing.T) {
	var v HostVmm

	v.Lock()
	if v.lock.TryToAcquire() {
		t.Fatalf("expected the spinlock to still be held")
	}
	v.Unlock()
	if !v.lock.TryToAcquire() {
		t.Fatalf("expected the spinlock to be free after Unlock")
	}
	v.Unlock()
}
