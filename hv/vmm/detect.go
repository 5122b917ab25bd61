package vmm

import "hypocaust/hv/csr"

// detectTrapped is set by detectTrapEntry when probeHgatp's csrr traps.
// Written only by detectTrapEntry, which runs with interrupts disabled and
// no other hart anywhere near this probe; read back by probeHExtension
// immediately after restoring stvec.
var detectTrapped uint64

// probeHExtension reports whether this hart implements the RISC-V
// hypervisor extension, grounded on detect_h_extension() in
// _examples/original_source/src/detect.rs: install a scratch trap vector,
// clear SIE, execute an instruction only the H extension defines (csrr a0,
// hgatp), and see whether it trapped. No handler set exists yet at this
// point in Boot — trap.Init and trap.Install both run later — so this
// brings its own minimal one instead of relying on dispatchTrap, the same
// reason the original installs its own scratch stvec rather than reusing
// whatever trap_handler it will eventually run under.
func probeHExtension() bool {
	prevStvec := csr.ReadStvec()
	prevSstatus := csr.ReadSstatus()
	csr.DisableInterrupts()
	detectTrapped = 0

	csr.WriteStvec(detectTrapEntryAddr())
	probeHgatp()
	csr.WriteStvec(prevStvec)
	csr.WriteSstatus(prevSstatus)

	return detectTrapped == 0
}

// probeHgatp executes exactly one instruction — csrr a0, hgatp — for
// probeHExtension to observe whether it traps. Implemented in
// detect_riscv64.s.
func probeHgatp()

// detectTrapEntryAddr returns detectTrapEntry's code address, for
// installing into stvec the same way trap.trapEntryAddr does for the real
// trampoline. Implemented in detect_riscv64.s.
func detectTrapEntryAddr() uint64
