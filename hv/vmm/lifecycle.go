package vmm

import (
	"unsafe"

	"hypocaust/hv"
	"hypocaust/hv/addr"
	"hypocaust/hv/board"
	"hypocaust/hv/csr"
	"hypocaust/hv/guest"
	"hypocaust/hv/kfmt"
	"hypocaust/hv/layout"
	"hypocaust/hv/mem/frame"
	"hypocaust/hv/mem/gpt"
	"hypocaust/hv/mem/hpt"
	"hypocaust/hv/mem/mapset"
	"hypocaust/hv/mem/pagetable"
	"hypocaust/hv/plic"
	"hypocaust/hv/sbi"
	"hypocaust/hv/trap"
)

// hsmExtensionID is the SBI Hart State Management extension id, probed
// before Boot relies on it (it doesn't yet — HSM would be needed the
// moment a second hart is brought up on demand rather than parked forever
// — but spec.md §4.10 names the probe as a boot-time precondition, so it
// runs even though nothing consumes a successful result today).
const hsmExtensionID = 0x48534D

// bootGuestID is the single guest Boot creates. Multiple simultaneous
// guests are allowed by hv/guest.MaxGuests and hv/vmm.HostVmm's slot array,
// but nothing yet drives more than one into existence.
const bootGuestID = 0

// Exception and interrupt delegation bitmaps, installed into hedeleg/
// hideleg before the first guest entry (spec.md §4.10). Bit numbers are the
// standard RISC-V exception/interrupt codes.
const (
	excInstructionMisaligned = 1 << 0
	excBreakpoint            = 1 << 3
	excEnvCallFromUorVU      = 1 << 8
	excInstructionPageFault  = 1 << 12
	excLoadPageFault         = 1 << 13
	excStoreAMOPageFault     = 1 << 15

	hedelegMask = excInstructionMisaligned | excBreakpoint | excEnvCallFromUorVU |
		excInstructionPageFault | excLoadPageFault | excStoreAMOPageFault

	intVSSIP = 1 << 2
	intVSTIP = 1 << 6
	intVSEIP = 1 << 10

	hidelegMask = intVSSIP | intVSTIP | intVSEIP
)

// sie bits this hart enables for itself: SSIE (inter-hart remote-fence
// signaling), STIE (the host's own timer, used to schedule VSTIP
// injection), SEIE (the host's own external-interrupt line from the real
// PLIC).
const (
	sieSSIE = 1 << 1
	sieSTIE = 1 << 5
	sieSEIE = 1 << 9

	sieBootMask = sieSSIE | sieSTIE | sieSEIE
)

// hvip bit for VSEIP, set by the PLIC-forwarding handler and cleared by
// hv/plic once the guest completes the claim.
const hvipVSEIP = 1 << 10

// hvip bit for VSTIP, set by the timer-forwarding handler and cleared by
// hv/sbi's timer proxy once the guest re-arms its own timer.
const hvipVSTIP = 1 << 6

var (
	errHartOutOfRange = &hv.Error{Module: "vmm", Message: "hart id outside the board's configured range"}
	errNoHSM          = &hv.Error{Module: "vmm", Message: "firmware does not implement the Hart State Management extension"}
	errNoHExtension   = &hv.Error{Module: "vmm", Message: "hart does not implement the RISC-V hypervisor (H) extension"}
	errFrameAlloc     = &hv.Error{Module: "vmm", Message: "boot-time frame allocation failed"}
	errBadGuestImage  = &hv.Error{Module: "vmm", Message: "board's staged guest image failed to parse"}
)

// Boot brings the hart identified by hartID up: hart 0 builds the address
// spaces, the one boot guest, and the PLIC shadow state, then performs the
// first guest entry; every other hart parks forever in wfi, since nothing
// in this design brings up a second vCPU (spec.md's Non-goals: "multi-hart
// guest scheduling"). dtbAddr is the physical address firmware handed off
// in a1; it is never parsed here (spec.md treats the host's own DTB as
// opaque, to be forwarded to the guest in a future build rather than
// walked by a freestanding decoder — see DESIGN.md).
func Boot(hartID int, dtbAddr uintptr) {
	if hartID < 0 || hartID >= board.MaxHarts {
		hv.Panic(errHartOutOfRange)
	}
	if hartID != 0 {
		parkSecondaryHart()
	}

	kfmt.Printf("rvhv booting on hart %d, dtb=%#x\n", hartID, dtbAddr)

	if !sbi.ProbeExtension(hsmExtensionID) {
		hv.Panic(errNoHSM)
	}

	// Probed with a catch-the-trap harness, not a bare read: at this point
	// in Boot no trap handler has been installed yet (trap.Init/
	// trap.Install both run later), so an uncaught illegal instruction here
	// would trap to whatever stvec firmware happened to leave behind
	// instead of a controlled panic.
	if !probeHExtension() {
		hv.Panic(errNoHExtension)
	}

	bd := board.Current

	var alloc frame.Allocator
	alloc.Init(addr.PhysAddr(bd.PhysMemBase), addr.PhysAddr(bd.PhysMemBase+bd.PhysMemSize))
	alloc.Reserve(addr.PhysAddr(bd.KernBase), addr.PhysAddr(layout.BssEnd()))
	alloc.Reserve(addr.PhysAddr(bd.GuestBinAddr), addr.PhysAddr(bd.GuestBinAddr+bd.GuestBinSize))
	allocFn := func() (frame.Frame, error) {
		f, err := alloc.Alloc()
		if err != nil {
			hv.Panic(errFrameAlloc)
		}
		return f, err
	}

	hostTable, err := hpt.New(allocFn)
	if err != nil {
		hv.Panic(errFrameAlloc)
	}

	hostCfg := mapset.HostConfig{
		Segments: []mapset.Segment{
			{VAStart: layout.TextStart(), VAEnd: layout.TextEnd(), Flags: addr.FlagRead | addr.FlagExec},
			{VAStart: layout.RodataStart(), VAEnd: layout.RodataEnd(), Flags: addr.FlagRead},
			{VAStart: layout.DataStart(), VAEnd: layout.BssEnd(), Flags: addr.FlagRead | addr.FlagWrite},
		},
		MMIO: boardMMIOWindows(bd),
		// The linear window over guest RAM is identity (VA == PA): every
		// frame the allocator hands out, including interior page-table
		// nodes for both hostTable and every guest's gpt.Table, comes from
		// this same [PhysMemBase, PhysMemBase+PhysMemSize) pool, and
		// hv/mem/hpt and hv/mem/gpt both dereference frames by raw
		// physical address. An offset window would strand those frames
		// the instant hostTable's satp went live.
		GuestRAMBase:   addr.PhysAddr(bd.PhysMemBase),
		GuestRAMSize:   bd.PhysMemSize,
		LinearWindowVA: bd.PhysMemBase,
		TrampolinePA:   addr.PhysAddr(layout.TrampolinePhys()),
	}
	hostMS, err := mapset.NewHost(hostTable, allocFn, hostCfg)
	if err != nil {
		hv.Panic(errFrameAlloc)
	}

	csr.WriteHedeleg(hedelegMask)
	csr.WriteHideleg(hidelegMask)
	csr.WriteHvip(0)
	csr.WriteSie(csr.ReadSie() | sieBootMask)

	csr.WriteSatp(hostTable.Token())
	csr.SfenceVMA(0)

	Global.HostMemorySet = hostMS

	containerBytes := physSlice(bd.GuestBinAddr, bd.GuestBinSize)
	container, err := guest.ParseContainer(containerBytes)
	if err != nil {
		hv.Panic(errBadGuestImage)
	}

	guestTable, err := gpt.New(uint64(bootGuestID), allocFn)
	if err != nil {
		hv.Panic(errFrameAlloc)
	}

	guestCfg := mapset.GuestConfig{
		Segments:        container.Kernel.Segments,
		DTBGPA:          bd.GuestDTBAddr,
		DTBData:         container.DTB,
		PassthroughMMIO: boardPassthroughMMIO(bd),
		TrampolinePA:    addr.PhysAddr(layout.TrampolinePhys()),
	}
	guestMS, err := mapset.NewGuest(guestTable, allocFn, guestCfg)
	if err != nil {
		hv.Panic(errFrameAlloc)
	}

	g := guest.New(bootGuestID, guestMS, container.Kernel.Entry, guest.Metadata{
		MemoryBase: bd.PhysMemBase,
		MemorySize: bd.PhysMemSize,
	})
	if err := Global.RegisterGuest(g); err != nil {
		hv.Panic(err)
	}
	Global.CurrentGuest = bootGuestID

	plicWindow, hasPLIC := bd.PLIC()
	if hasPLIC {
		Global.Plic = plic.New(uint64(plicWindow.Base), 1)
		plic.SetFallbackDecoder(decodeFallbackInstruction)
		plic.SetClearVSEIP(clearVSEIP)
	}

	trap.Init(trap.Handlers{
		Lock:               Global.Lock,
		Unlock:             Global.Unlock,
		SBI:                sbi.Proxy,
		MMIOFault:          handleMMIOFault,
		ForwardExternalIRQ: forwardExternalIRQ,
		InjectTimerIRQ:     injectTimerIRQ,
		Reflect:            reflectException,
		OnExternalIRQ:      Global.incExternalIRQs,
		OnTimerIRQ:         Global.incTimerIRQs,
		OnGuestPageFault:   Global.incGuestPageFaults,
	})
	trap.Install()

	hv.SetBeforeHalt(func() {
		c := Global.Snapshot()
		kfmt.Printf("counters: external=%d timer=%d pagefault=%d\n", c.ExternalIRQs, c.TimerIRQs, c.GuestPageFaults)
	})

	ctx := trap.ContextAddr()
	*ctx = trap.TrapContext{}
	ctx.Sepc = g.Entry
	ctx.HSSatp = hostTable.Token()
	ctx.HSSp = bootStackTop(hartID)
	ctx.GuestHgatp = guestTable.Token()
	ctx.GPR[11] = uint64(bd.GuestDTBAddr)

	kfmt.Printf("rvhv entering guest %d at %#x\n", g.ID, ctx.Sepc)
	trap.Enter(ctx)
}

// parkSecondaryHart wfi-loops forever. Called instead of the rest of Boot
// for every hart id other than 0.
func parkSecondaryHart() {
	for {
		csr.Wfi()
	}
}

// bootStackTop returns the address of the top of the per-hart stack
// entry_riscv64.s set sp to, so the very first TrapContext has somewhere
// valid to restore HSSp from. Computed the same way the assembly computes
// it (board.StackSize per hart, indexed by hart id), rather than reading it
// back out of the live sp register.
func bootStackTop(hartID int) uint64 {
	return uint64(bootStacksBase() + uintptr(hartID+1)*board.StackSize)
}

// bootStacksBase returns the physical address of the bootStacks array
// entry_riscv64.s reserves. Implemented in layout_riscv64.s alongside the
// other linker-resolved symbols, since bootStacks is itself a symbol
// defined in entry_riscv64.s rather than by the linker script.
func bootStacksBase() uintptr

func boardMMIOWindows(bd board.Board) []mapset.MMIOWindow {
	out := make([]mapset.MMIOWindow, len(bd.MMIO))
	for i, w := range bd.MMIO {
		out[i] = mapset.MMIOWindow{PAStart: addr.PhysAddr(w.Base), PAEnd: addr.PhysAddr(w.Base + w.Size)}
	}
	return out
}

// boardPassthroughMMIO returns every board MMIO window except the PLIC's:
// PLIC accesses are trapped and emulated (hv/plic), never mapped straight
// through to a guest.
func boardPassthroughMMIO(bd board.Board) []mapset.MMIOWindow {
	var out []mapset.MMIOWindow
	for _, w := range bd.MMIO {
		if w.Name == "plic" {
			continue
		}
		out = append(out, mapset.MMIOWindow{PAStart: addr.PhysAddr(w.Base), PAEnd: addr.PhysAddr(w.Base + w.Size)})
	}
	return out
}

// physSlice returns a byte slice over n bytes at the host-physical address
// pa, relying on the same identity-mapping assumption as hv/mem/hpt,
// hv/mem/gpt, and hv/mem/mapset's rawSlice.
func physSlice(pa uintptr, n uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(pa)), n)
}

func handleMMIOFault(ctx *trap.TrapContext, gpa uint64, htinst uint64) (bool, int) {
	if Global.Plic == nil || !Global.Plic.InWindow(gpa) {
		return false, 0
	}
	return Global.Plic.HandleFault(ctx, gpa, htinst)
}

func forwardExternalIRQ(ctx *trap.TrapContext) {
	if Global.Plic == nil {
		return
	}
	Global.Plic.ForwardIRQ(Global.CurrentGuest, setVSEIP)
}

func setVSEIP() {
	csr.WriteHvip(csr.ReadHvip() | hvipVSEIP)
}

func clearVSEIP() {
	csr.WriteHvip(csr.ReadHvip() &^ hvipVSEIP)
}

func injectTimerIRQ(ctx *trap.TrapContext) {
	csr.WriteHvip(csr.ReadHvip() | hvipVSTIP)
	csr.WriteSie(csr.ReadSie() &^ sieSTIE)
}

// reflectException forwards an exception hedeleg did not delegate in
// hardware back into the guest's own VS-mode trap handler: scause (read
// live, not assumed) and sepc go to vscause/vsepc, and control resumes at
// vstvec. A genuinely hedeleg-delegated exception never reaches
// dispatchTrap at all — hardware forwards it straight to the guest's
// VS-mode handler without HS ever taking the trap — so everything routed
// here is one HS chose not to delegate.
func reflectException(ctx *trap.TrapContext, cause trap.Cause) {
	csr.WriteVsepc(ctx.Sepc)
	csr.WriteVscause(csr.ReadScause())
	ctx.Sepc = csr.ReadVstvec()
}

// satp/vsatp layout constants, shared by the host's own satp (hv/mem/hpt)
// and the guest's vsatp walked below: an 4-bit MODE field at the top and a
// 44-bit PPN field at the bottom, unused bits (ASID) ignored by both.
const (
	satpModeShift = 60
	satpModeSv39  = 8
	satpPPNMask   = (uint64(1) << 44) - 1
)

// decodeFallbackInstruction reads the 32-bit (or 16-bit, for a compressed
// encoding) instruction word at the guest program counter sepc, for
// hv/plic's htinst==0 fallback path. sepc is a guest-virtual address:
// resolving it means walking the running guest's own first-stage table
// (rooted wherever its vsatp points, in guest-physical terms) and then
// translating every guest-physical address the walk touches — including
// the first-stage table's own interior pages — through the guest's
// G-stage table, since nothing here runs with hgatp pointed at the guest.
func decodeFallbackInstruction(sepc uint64) (uint32, bool) {
	g := Global.CurrentGuestOrNil()
	if g == nil {
		return 0, false
	}

	gpa, ok := guestVAToGPA(g, sepc)
	if !ok {
		return 0, false
	}
	hpa, ok := gpaToHPA(g, gpa)
	if !ok {
		return 0, false
	}

	lowHalf := *(*uint16)(unsafe.Pointer(uintptr(hpa)))
	if lowHalf&0x3 != 0x3 {
		return uint32(lowHalf), true
	}

	// A 4-byte instruction's second half-word lands on a different guest-
	// physical page than its first when sepc sits right before a page
	// boundary; re-translate rather than assume the two host-physical
	// halves are contiguous.
	hpaHigh, ok := gpaToHPA(g, gpa+2)
	if !ok {
		return 0, false
	}
	highHalf := *(*uint16)(unsafe.Pointer(uintptr(hpaHigh)))
	return uint32(lowHalf) | uint32(highHalf)<<16, true
}

// guestVAToGPA resolves a guest-virtual address through g's own first-
// stage table. A vsatp MODE of 0 means the guest is running with its own
// paging disabled, in which case its "physical" addresses are this
// hypervisor's guest-physical addresses directly.
func guestVAToGPA(g *guest.Guest, gva uint64) (addr.PhysAddr, bool) {
	satp := csr.ReadVsatp()
	mode := satp >> satpModeShift
	if mode == 0 {
		return addr.PhysAddr(gva), true
	}
	if mode != satpModeSv39 {
		return 0, false
	}

	vpn := addr.VirtPageNum(gva >> addr.PageShift)
	indices := [pagetable.Levels]uint64{vpn.Index(0), vpn.Index(1), vpn.Index(2)}
	rootGPN := addr.PhysPageNum(satp & satpPPNMask)

	res := pagetable.Walk(rootGPN, indices, guestTableReader(g))
	if !res.Resolved {
		return 0, false
	}
	return pagetable.Translate(res, addr.VirtAddr(gva)), true
}

// guestTableReader reads one PTE of the running guest's own first-stage
// table for hv/mem/pagetable.Walk. The page numbers Walk passes in are
// guest-physical despite arriving typed as addr.PhysPageNum: pagetable's
// walk is storage-agnostic about whose address space it's reading, and
// this is the one case in the hypervisor where that address space isn't
// host-physical.
func guestTableReader(g *guest.Guest) pagetable.ReadPTE {
	return func(ppn addr.PhysPageNum, index uint64) addr.PTE {
		hpa, ok := gpaToHPA(g, ppn.Addr())
		if !ok {
			return addr.PTE(0)
		}
		return *(*addr.PTE)(unsafe.Pointer(uintptr(hpa) + uintptr(index)*8))
	}
}

// gpaToHPA resolves a guest-physical address through g's G-stage table:
// the same translation hardware performs on every VS/VU-mode access to
// memory, done here in software since this decoder runs in HS mode.
func gpaToHPA(g *guest.Guest, gpa addr.PhysAddr) (addr.PhysAddr, bool) {
	pte, ok := g.MemorySet.Table.TranslatePage(uintptr(gpa.PhysPageNum()))
	if !ok {
		return 0, false
	}
	return addr.PhysAddr((uintptr(pte.PPN()) << addr.PageShift) | gpa.Offset()), true
}
