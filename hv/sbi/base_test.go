package sbi

import "testing"

func TestProbeExtensionReportsPresence(t *testing.T) {
	withFakeFirmware(t, func(args *Args) (uint64, uint64) {
		if args.A7 != ExtBase || args.A6 != probeExtensionFID {
			t.Fatalf("expected a base probe_extension call, got %+v", args)
		}
		if args.A0 == 0x48534D {
			return 0, 1
		}
		return 0, 0
	})

	if !ProbeExtension(0x48534D) {
		t.Fatalf("expected HSM extension to be reported present")
	}
	if ProbeExtension(0xDEADBEEF) {
		t.Fatalf("expected an unknown extension id to be reported absent")
	}
}
