package trap

import "testing"

// dispatchTrap itself reaches csr.ReadScause and switchToGuest, both
// hand-written riscv64 assembly that cannot run on a host test binary; this
// file exercises the parts of the dispatch wiring that are plain Go: that
// Init installs exactly the handlers given, and that Handlers is usable on
// its own without relying on any package-private state.

func TestInitInstallsHandlers(t *testing.T) {
	var sbiCalled, lockCalled, unlockCalled bool

	h := Handlers{
		Lock:   func() { lockCalled = true },
		Unlock: func() { unlockCalled = true },
		SBI:    func(ctx *TrapContext) { sbiCalled = true },
	}
	Init(h)

	active.Lock()
	active.SBI(&TrapContext{})
	active.Unlock()

	if !lockCalled || !sbiCalled || !unlockCalled {
		t.Fatalf("expected every installed handler to run exactly once")
	}
}

func TestMMIOFaultHandlerReportsInstructionLength(t *testing.T) {
	h := Handlers{
		MMIOFault: func(ctx *TrapContext, gpa uint64, htinst uint64) (bool, int) {
			if gpa != 0x1000 {
				t.Fatalf("expected gpa 0x1000, got %#x", gpa)
			}
			return true, 4
		},
	}
	Init(h)

	handled, instLen := active.MMIOFault(&TrapContext{}, 0x1000, 0)
	if !handled || instLen != 4 {
		t.Fatalf("expected handled=true instLen=4, got handled=%v instLen=%d", handled, instLen)
	}
}
