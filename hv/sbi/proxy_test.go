package sbi

import (
	"testing"

	"hypocaust/hv/trap"
)

func withFakeFirmware(t *testing.T, fn func(args *Args) (uint64, uint64)) {
	t.Helper()
	prev := firmwareEcallFn
	firmwareEcallFn = fn
	t.Cleanup(func() { firmwareEcallFn = prev })
}

// withFakeCSRs replaces the hvip/sie accessors so Proxy's timer path never
// touches the real (riscv64-only) CSR instructions.
func withFakeCSRs(t *testing.T) {
	t.Helper()
	prevReadHvip, prevWriteHvip := readHvipFn, writeHvipFn
	prevReadSie, prevWriteSie := readSieFn, writeSieFn
	var hvip, sie uint64
	readHvipFn = func() uint64 { return hvip }
	writeHvipFn = func(v uint64) { hvip = v }
	readSieFn = func() uint64 { return sie }
	writeSieFn = func(v uint64) { sie = v }
	t.Cleanup(func() {
		readHvipFn, writeHvipFn = prevReadHvip, prevWriteHvip
		readSieFn, writeSieFn = prevReadSie, prevWriteSie
	})
}

func TestProxyForwardsBaseExtension(t *testing.T) {
	var seen Args
	withFakeFirmware(t, func(args *Args) (uint64, uint64) {
		seen = *args
		return 0, 42
	})

	ctx := &trap.TrapContext{}
	ctx.GPR[17] = ExtBase // a7
	ctx.GPR[16] = probeExtensionFID // a6: probe_extension
	ctx.GPR[10] = ExtTimer

	Proxy(ctx)

	if seen.A7 != ExtBase || seen.A6 != probeExtensionFID || seen.A0 != ExtTimer {
		t.Fatalf("firmware not called with expected args: %+v", seen)
	}
	if ctx.GPR[10] != 0 || ctx.GPR[11] != 42 {
		t.Fatalf("result not written back: a0=%d a1=%d", ctx.GPR[10], ctx.GPR[11])
	}
}

func TestProxyTimerClearsVSTIPAndReenablesSTIE(t *testing.T) {
	withFakeFirmware(t, func(args *Args) (uint64, uint64) { return 0, 0 })
	withFakeCSRs(t)

	readHvipFn = func() uint64 { return hvipVSTIP }
	var gotHvip, gotSie uint64
	writeHvipFn = func(v uint64) { gotHvip = v }
	writeSieFn = func(v uint64) { gotSie = v }

	ctx := &trap.TrapContext{}
	ctx.GPR[17] = ExtTimer
	ctx.GPR[16] = 0

	Proxy(ctx)

	if gotHvip&hvipVSTIP != 0 {
		t.Fatalf("expected VSTIP cleared, got hvip=%#x", gotHvip)
	}
	if gotSie&sieSTIE == 0 {
		t.Fatalf("expected STIE set, got sie=%#x", gotSie)
	}
}

func TestProxyLegacySetTimerTakesTimerPath(t *testing.T) {
	withFakeCSRs(t)

	called := false
	withFakeFirmware(t, func(args *Args) (uint64, uint64) {
		called = true
		if args.A7 != ExtLegacySetTimer {
			t.Fatalf("expected legacy set_timer extension forwarded, got %#x", args.A7)
		}
		return 0, 0
	})

	ctx := &trap.TrapContext{}
	ctx.GPR[17] = ExtLegacySetTimer
	ctx.GPR[10] = 12345

	Proxy(ctx)

	if !called {
		t.Fatalf("expected firmware to be called for legacy set_timer")
	}
}

func TestProxyRemoteFenceAndPMUForward(t *testing.T) {
	for _, ext := range []uint64{ExtRemoteFence, ExtPMU} {
		var seenExt uint64
		withFakeFirmware(t, func(args *Args) (uint64, uint64) {
			seenExt = args.A7
			return 0, 0
		})

		ctx := &trap.TrapContext{}
		ctx.GPR[17] = ext

		Proxy(ctx)

		if seenExt != ext {
			t.Fatalf("expected extension %#x forwarded, got %#x", ext, seenExt)
		}
	}
}
