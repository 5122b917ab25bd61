package plic

import (
	"testing"

	"hypocaust/hv/trap"
)

const testBase = 0x0C000000

func withFakeMMIO(t *testing.T) map[uint64]uint32 {
	t.Helper()
	mem := map[uint64]uint32{}
	prevRead, prevWrite := mmioRead32Fn, mmioWrite32Fn
	mmioRead32Fn = func(addr uint64) uint32 { return mem[addr] }
	mmioWrite32Fn = func(addr uint64, v uint32) { mem[addr] = v }
	t.Cleanup(func() { mmioRead32Fn, mmioWrite32Fn = prevRead, prevWrite })
	return mem
}

func claimCompleteAddr(context uint64) uint64 {
	return testBase + contextRegionOffset + context*contextStride + 4
}

func thresholdAddr(context uint64) uint64 {
	return testBase + contextRegionOffset + context*contextStride
}

func TestInWindowRejectsAddressesOutsideClaimRegion(t *testing.T) {
	s := New(testBase, 1)
	if s.InWindow(testBase + 0x100) {
		t.Fatalf("priority/pending/enable region must not be claimed as the emulated window")
	}
	if s.InWindow(testBase - 8) {
		t.Fatalf("address below base must not be in window")
	}
	if !s.InWindow(claimCompleteAddr(1)) {
		t.Fatalf("claim/complete register must be in window")
	}
}

func TestHandleFaultLoadReturnsShadowClaim(t *testing.T) {
	withFakeMMIO(t)
	s := New(testBase, 1)
	s.ClaimComplete[1] = 7

	// lw x5, 0(x10); htinst carries the transformed instruction directly.
	const lw = 0x00052283
	ctx := &trap.TrapContext{}

	handled, instLen := s.HandleFault(ctx, claimCompleteAddr(1), lw)
	if !handled || instLen != 4 {
		t.Fatalf("expected handled load, got handled=%v instLen=%d", handled, instLen)
	}
	if ctx.GPR[5] != 7 {
		t.Fatalf("expected shadow claim value 7 in x5, got %d", ctx.GPR[5])
	}
}

func TestHandleFaultStoreCompletesAndClearsShadow(t *testing.T) {
	mem := withFakeMMIO(t)
	s := New(testBase, 1)
	s.ClaimComplete[1] = 7

	var vseipCleared bool
	SetClearVSEIP(func() { vseipCleared = true })
	t.Cleanup(func() { SetClearVSEIP(func() {}) })

	// sw x6, 0(x10), with x6 holding the completed irq number (7).
	const sw = 0x00652023
	ctx := &trap.TrapContext{}
	ctx.GPR[6] = 7

	handled, instLen := s.HandleFault(ctx, claimCompleteAddr(1), sw)
	if !handled || instLen != 4 {
		t.Fatalf("expected handled store, got handled=%v instLen=%d", handled, instLen)
	}
	if s.ClaimComplete[1] != 0 {
		t.Fatalf("expected shadow cleared, got %d", s.ClaimComplete[1])
	}
	if !vseipCleared {
		t.Fatalf("expected VSEIP to be cleared on complete")
	}
	if mem[claimCompleteAddr(1)] != 7 {
		t.Fatalf("expected completion proxied to the physical PLIC, got %d", mem[claimCompleteAddr(1)])
	}
}

func TestHandleFaultThresholdWriteIsProxied(t *testing.T) {
	mem := withFakeMMIO(t)
	s := New(testBase, 1)

	// sw x6, 0(x10)
	const sw = 0x00652023
	ctx := &trap.TrapContext{}
	ctx.GPR[6] = 3

	handled, _ := s.HandleFault(ctx, thresholdAddr(0), sw)
	if !handled {
		t.Fatalf("expected threshold write to be handled")
	}
	if mem[thresholdAddr(0)] != 3 {
		t.Fatalf("expected threshold value proxied to physical PLIC, got %d", mem[thresholdAddr(0)])
	}
}

func TestHandleFaultOutsideWindowIsUnhandled(t *testing.T) {
	withFakeMMIO(t)
	s := New(testBase, 1)

	const lw = 0x00052283
	ctx := &trap.TrapContext{}

	handled, _ := s.HandleFault(ctx, testBase+0x10, lw)
	if handled {
		t.Fatalf("expected a priority/enable register access to be reported unhandled")
	}
}

func TestForwardIRQRecordsShadowAndSetsVSEIP(t *testing.T) {
	mem := withFakeMMIO(t)
	s := New(testBase, 2)
	mem[claimCompleteAddr(3)] = 9 // guest id 1 -> S-context 2*1+1 = 3

	var vseipSet bool
	irq := s.ForwardIRQ(1, func() { vseipSet = true })

	if irq != 9 {
		t.Fatalf("expected claimed irq 9, got %d", irq)
	}
	if s.ClaimComplete[3] != 9 {
		t.Fatalf("expected shadow[3]=9, got %d", s.ClaimComplete[3])
	}
	if !vseipSet {
		t.Fatalf("expected VSEIP to be set")
	}
}

func TestDecodeFallbackUsedWhenHtinstIsZero(t *testing.T) {
	withFakeMMIO(t)
	s := New(testBase, 1)
	s.ClaimComplete[1] = 5

	const lw = 0x00052283
	SetFallbackDecoder(func(sepc uint64) (uint32, bool) { return lw, true })
	t.Cleanup(func() { SetFallbackDecoder(func(uint64) (uint32, bool) { return 0, false }) })

	ctx := &trap.TrapContext{}
	handled, _ := s.HandleFault(ctx, claimCompleteAddr(1), 0)
	if !handled {
		t.Fatalf("expected fallback decode to resolve the access")
	}
	if ctx.GPR[5] != 5 {
		t.Fatalf("expected shadow value read through fallback-decoded access, got %d", ctx.GPR[5])
	}
}
