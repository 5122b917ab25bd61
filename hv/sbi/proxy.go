// Package sbi proxies a guest's SBI ecalls out to M-mode firmware, or
// emulates them directly when the hypervisor itself owns the resource
// (the timer extension's VSTIP/STIE bookkeeping). Grounded on spec.md §4.7;
// wired into hv/trap as a Handlers.SBI callback so trap never imports sbi
// directly.
package sbi

import (
	"hypocaust/hv"
	"hypocaust/hv/csr"
	"hypocaust/hv/trap"
)

// readHvipFn / writeHvipFn / readSieFn / writeSieFn indirect through
// hv/csr's riscv64-only assembly, so tests can exercise Proxy's dispatch
// logic on the host test runner without linking against it.
var (
	readHvipFn  = csr.ReadHvip
	writeHvipFn = csr.WriteHvip
	readSieFn   = csr.ReadSie
	writeSieFn  = csr.WriteSie
)

var errUnknownExtension = &hv.Error{Module: "sbi", Message: "guest issued an unrecognized SBI extension id"}

// sieSTIE is bit 5 of sie/sstatus's interrupt-enable layout — the
// supervisor-timer-interrupt-enable bit the legacy and new timer
// extensions toggle around a guest's set_timer call.
const sieSTIE = uint64(1) << 5

// hvipVSTIP is bit 6 of hvip, the virtual supervisor timer interrupt
// pending bit injected into the guest and cleared once its handler calls
// set_timer again.
const hvipVSTIP = uint64(1) << 6

// Proxy handles a guest ecall trapped by the dispatcher. It reads the
// extension id (a7) and function id (a6) out of ctx, dispatches per
// spec.md §4.7, and writes the result back into a0 (error) and a1 (value).
// It never returns to a guest that asked to shut down or reset the
// platform: those legacy extensions are simply absent from the switch
// below, so they fall through to the fatal default case.
func Proxy(ctx *trap.TrapContext) {
	ext := ctx.GPR[17] // a7
	fn := ctx.GPR[16]  // a6

	switch ext {
	case ExtBase:
		forward(ctx, ext, fn)

	case ExtLegacyPutchar, ExtLegacyGetchar:
		forward(ctx, ext, fn)

	case ExtLegacySetTimer, ExtTimer:
		forward(ctx, ext, fn)
		writeHvipFn(readHvipFn() &^ hvipVSTIP)
		writeSieFn(readSieFn() | sieSTIE)

	case ExtRemoteFence:
		forward(ctx, ext, fn)

	case ExtPMU:
		forward(ctx, ext, fn)

	default:
		hv.Panic(errUnknownExtension)
	}
}

// forward re-issues the guest's ecall to M-mode firmware verbatim and
// copies the result back into the guest context, used for every extension
// this hypervisor does not itself implement.
func forward(ctx *trap.TrapContext, ext, fn uint64) {
	args := Args{
		A0: ctx.GPR[10],
		A1: ctx.GPR[11],
		A2: ctx.GPR[12],
		A3: ctx.GPR[13],
		A4: ctx.GPR[14],
		A5: ctx.GPR[15],
		A6: fn,
		A7: ext,
	}
	a0, a1 := firmwareEcallFn(&args)
	ctx.GPR[10] = a0
	ctx.GPR[11] = a1
}

// firmwareEcallFn is replaced by tests so Proxy can be exercised on the
// host test runner without issuing a real ecall.
var firmwareEcallFn = firmwareEcall
