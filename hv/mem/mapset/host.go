package mapset

import (
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// Segment describes one contiguously-protected region of the hypervisor's
// own ELF image (.text, .rodata, .data+.bss), each mapped with different
// permissions, mirroring the teacher kernel's multiboot-derived section
// walk but sourced from the linker symbols the freestanding entry point
// exports instead of a multiboot tag.
type Segment struct {
	VAStart uintptr
	VAEnd   uintptr // exclusive
	Flags   addr.PTEFlag
}

// MMIOWindow describes one physical MMIO window (PLIC, UART, board-specific
// devices) identity-mapped into the host address space so the hypervisor
// can access real hardware registers directly.
type MMIOWindow struct {
	PAStart addr.PhysAddr
	PAEnd   addr.PhysAddr // exclusive
}

// HostConfig carries everything NewHost needs that depends on the board and
// the linker-derived image layout, kept separate from hv/board so this
// package never has to import it.
type HostConfig struct {
	Segments []Segment
	MMIO     []MMIOWindow

	// GuestRAMBase/GuestRAMSize bound the physical RAM handed to guests;
	// LinearWindowVA is the host virtual address at which all of it is
	// mapped R|W (never X), so the hypervisor can read/write guest memory
	// — including a guest's own first-stage page table, when the MMIO
	// emulation path in hv/trap needs to decode a guest instruction — by
	// simple offset arithmetic instead of a transient per-access mapping.
	GuestRAMBase   addr.PhysAddr
	GuestRAMSize   uintptr
	LinearWindowVA uintptr

	TrampolinePA addr.PhysAddr
}

// NewHost builds the hypervisor's own first-stage MemorySet: its own image
// sections, every MMIO window the board exposes, the linear window over
// guest RAM, and the trampoline page (mapped R|X and Global; NewGuest maps
// the guest's G-stage trampoline entry R|X only).
func NewHost(table PageTable, alloc func() (frame.Frame, error), cfg HostConfig) (*MemorySet, error) {
	ms := &MemorySet{Table: table, Alloc: alloc}

	for _, seg := range cfg.Segments {
		area := MapArea{
			PageStart: seg.VAStart >> addr.PageShift,
			PageEnd:   addr.AlignUp(seg.VAEnd, addr.PageSize) >> addr.PageShift,
			Type:      Linear,
			PPNStart:  addr.PhysPageNum(seg.VAStart >> addr.PageShift),
			Flags:     seg.Flags,
		}
		if err := ms.Push(area, nil); err != nil {
			return nil, err
		}
	}

	for _, w := range cfg.MMIO {
		area := MapArea{
			PageStart: uintptr(w.PAStart) >> addr.PageShift,
			PageEnd:   addr.AlignUp(uintptr(w.PAEnd), addr.PageSize) >> addr.PageShift,
			Type:      Linear,
			PPNStart:  w.PAStart.PhysPageNum(),
			Flags:     addr.FlagRead | addr.FlagWrite,
		}
		if err := ms.Push(area, nil); err != nil {
			return nil, err
		}
	}

	if cfg.GuestRAMSize > 0 {
		pages := addr.PageCount(cfg.GuestRAMSize)
		area := MapArea{
			PageStart: cfg.LinearWindowVA >> addr.PageShift,
			PageEnd:   (cfg.LinearWindowVA >> addr.PageShift) + pages,
			Type:      Linear,
			PPNStart:  cfg.GuestRAMBase.PhysPageNum(),
			Flags:     addr.FlagRead | addr.FlagWrite,
		}
		if err := ms.Push(area, nil); err != nil {
			return nil, err
		}
	}

	trampoline := MapArea{
		PageStart: addr.TrampolineVA >> addr.PageShift,
		PageEnd:   addr.TrampolineVA>>addr.PageShift + 1,
		Type:      Linear,
		PPNStart:  cfg.TrampolinePA.PhysPageNum(),
		Flags:     addr.FlagRead | addr.FlagExec | addr.FlagGlobal,
	}
	if err := ms.Push(trampoline, nil); err != nil {
		return nil, err
	}

	return ms, nil
}
