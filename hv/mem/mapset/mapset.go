// Package mapset implements MapArea and MemorySet: the mid-level memory
// bookkeeping layer sitting above a raw page table. host.go and guest.go
// build the two concrete MemorySets (hypervisor image + MMIO + linear
// window over guest RAM; guest image + DTB + pass-through MMIO), grounded
// on the teacher kernel's vmm address-space construction but restated
// around hv/mem/hpt and hv/mem/gpt instead of the teacher's single-stage
// table.
package mapset

import (
	"hypocaust/hv"
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// PageTable is the narrow interface MemorySet needs from either an
// hpt.Table or a gpt.Table: map one page, unmap one page. Page numbers are
// passed as uintptr rather than addr.VirtPageNum/addr.GuestPageNum because
// those two types are each other's equal on the wire (a shifted physical
// address) but this package must not import hpt or gpt to get one.
type PageTable interface {
	MapPage(pageNum uintptr, ppn addr.PhysPageNum, flags addr.PTEFlag, alloc func() (frame.Frame, error)) error
	UnmapPage(pageNum uintptr)

	// TranslatePage resolves pageNum to its leaf PTE, if mapped. hv/vmm's
	// fallback instruction decoder uses this on a guest's G-stage table to
	// turn a guest-physical page into a host-physical one, the same
	// Translate a guest's own first-stage table already exposed for
	// diagnostics before this interface needed it too.
	TranslatePage(pageNum uintptr) (addr.PTE, bool)
}

// MapType distinguishes an area backed 1:1 by physical memory at a fixed
// offset (Linear — the hypervisor's own image, or a guest's linear window
// over its own RAM) from one backed by frames the allocator hands out as
// needed (Framed — a guest's general-purpose RAM, not pre-existing
// physical memory the mapper already knows the address of).
type MapType int

const (
	// Linear maps PageCount consecutive pages starting at page_start to
	// PPNStart..PPNStart+PageCount, a fixed offset between the two (e.g.
	// the hypervisor's own identity map, or an MMIO window).
	Linear MapType = iota

	// Framed allocates a fresh frame per page from the allocator, for
	// regions with no natural physical counterpart (guest general RAM
	// populated by copying an ELF image in).
	Framed
)

// MapArea describes one contiguous, uniformly-permissioned region of a
// MemorySet: spec.md's MapArea.
type MapArea struct {
	PageStart uintptr
	PageEnd   uintptr // exclusive

	Type MapType

	// PPNStart is the physical page number the first page of a Linear area
	// maps to. Ignored for Framed areas.
	PPNStart addr.PhysPageNum

	Flags addr.PTEFlag
}

// pageCount returns the number of pages this area spans.
func (a MapArea) pageCount() uintptr {
	return a.PageEnd - a.PageStart
}

// MemorySet is an ordered collection of MapAreas sharing one page table —
// spec.md's MemorySet. push is the single mutator: areas are never removed
// or resized once pushed, matching how both a host and a guest address
// space are built once at boot and never torn down.
type MemorySet struct {
	Table PageTable
	Areas []MapArea

	Alloc func() (frame.Frame, error)
}

var errDataTooLarge = &hv.Error{Module: "mapset", Message: "initial data longer than the mapped area"}

// Push installs area into the MemorySet's page table. For a Linear area
// every page maps straight through at its fixed PPNStart offset. For a
// Framed area, a frame is allocated per page; if data is non-nil it is
// copied into the area page-by-page (used to load a guest ELF segment),
// left zero-filled beyond len(data) because the allocator always
// zero-fills.
//
// Push never merges or resizes an existing area: a second, overlapping
// Push surfaces as the underlying page table's already-mapped panic, which
// is deliberate — two areas are never supposed to overlap.
func (m *MemorySet) Push(area MapArea, data []byte) error {
	n := area.pageCount()
	if data != nil && uintptr(len(data)) > n*addr.PageSize {
		return errDataTooLarge
	}

	for i := uintptr(0); i < n; i++ {
		pageNum := area.PageStart + i

		var ppn addr.PhysPageNum
		switch area.Type {
		case Linear:
			ppn = area.PPNStart + addr.PhysPageNum(i)
		case Framed:
			f, err := m.Alloc()
			if err != nil {
				return err
			}
			ppn = f.PPN()
		}

		if err := m.Table.MapPage(pageNum, ppn, area.Flags, m.Alloc); err != nil {
			return err
		}

		if data != nil && area.Type == Framed {
			copyPageData(ppn, data, i, addr.PageSize)
		}
	}

	m.Areas = append(m.Areas, area)
	return nil
}

// copyPageData copies the slice of data belonging to page index i (i.e.
// data[i*pageSize : (i+1)*pageSize], clipped to len(data)) into the frame
// at ppn. Declared as a var so tests can replace real memory access with an
// in-test sink, the same fn-var idiom used throughout hv/mem.
var copyPageData = copyPageDataReal

func copyPageDataReal(ppn addr.PhysPageNum, data []byte, i uintptr, pageSize uintptr) {
	start := i * pageSize
	if start >= uintptr(len(data)) {
		return
	}
	end := start + pageSize
	if end > uintptr(len(data)) {
		end = uintptr(len(data))
	}
	dst := rawSlice(ppn, end-start)
	copy(dst, data[start:end])
}
