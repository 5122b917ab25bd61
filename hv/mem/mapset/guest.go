package mapset

import (
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// LoadSegment is one PT_LOAD program header from a parsed guest ELF image
// (hv/guest/image.go), restated in terms this package needs: a
// guest-physical load address, the segment's architecturally implied
// permissions, and the file bytes to copy in (shorter than the segment's
// memory size for .bss-style tail zeroing, which Push already handles by
// leaving anything past len(data) untouched — the allocator's
// zero-fill already guarantees those bytes start zero).
type LoadSegment struct {
	GPAStart uintptr
	Size     uintptr
	Flags    addr.PTEFlag
	Data     []byte
}

// GuestConfig carries the per-guest layout NewGuest needs: its PT_LOAD
// segments, where its DTB is placed, which MMIO windows pass through
// untranslated (PLIC access is trapped and emulated instead — see
// hv/plic — so the board's PLIC window is deliberately absent here), and
// the host-physical trampoline frame shared by every address space.
type GuestConfig struct {
	Segments []LoadSegment

	DTBGPA  uintptr
	DTBData []byte

	PassthroughMMIO []MMIOWindow

	TrampolinePA addr.PhysAddr
}

// NewGuest builds one guest's G-stage MemorySet: its PT_LOAD segments (U
// always forced on by gpt.Table regardless of what Flags requests), its DTB
// page, every pass-through MMIO window, and the trampoline at the same
// fixed address used everywhere else.
func NewGuest(table PageTable, alloc func() (frame.Frame, error), cfg GuestConfig) (*MemorySet, error) {
	ms := &MemorySet{Table: table, Alloc: alloc}

	for _, seg := range cfg.Segments {
		pageStart := seg.GPAStart >> addr.PageShift
		pageEnd := addr.AlignUp(seg.GPAStart+seg.Size, addr.PageSize) >> addr.PageShift
		area := MapArea{
			PageStart: pageStart,
			PageEnd:   pageEnd,
			Type:      Framed,
			Flags:     seg.Flags,
		}
		if err := ms.Push(area, seg.Data); err != nil {
			return nil, err
		}
	}

	if len(cfg.DTBData) > 0 {
		pageStart := cfg.DTBGPA >> addr.PageShift
		pageEnd := addr.AlignUp(cfg.DTBGPA+uintptr(len(cfg.DTBData)), addr.PageSize) >> addr.PageShift
		area := MapArea{
			PageStart: pageStart,
			PageEnd:   pageEnd,
			Type:      Framed,
			Flags:     addr.FlagRead,
		}
		if err := ms.Push(area, cfg.DTBData); err != nil {
			return nil, err
		}
	}

	for _, w := range cfg.PassthroughMMIO {
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

	trampoline := MapArea{
		PageStart: addr.TrampolineVA >> addr.PageShift,
		PageEnd:   addr.TrampolineVA>>addr.PageShift + 1,
		Type:      Linear,
		PPNStart:  cfg.TrampolinePA.PhysPageNum(),
		Flags:     addr.FlagRead | addr.FlagExec,
	}
	if err := ms.Push(trampoline, nil); err != nil {
		return nil, err
	}

	return ms, nil
}
