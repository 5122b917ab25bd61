package gpt

import (
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// MapPage and UnmapPage adapt Table to hv/mem/mapset.PageTable; see
// hv/mem/hpt/adapter.go for why this lives next to the concrete type
// instead of in mapset.

// MapPage implements hv/mem/mapset.PageTable.
func (t *Table) MapPage(pageNum uintptr, ppn addr.PhysPageNum, flags addr.PTEFlag, alloc func() (frame.Frame, error)) error {
	return t.Map(addr.GuestPageNum(pageNum), ppn, flags, alloc)
}

// UnmapPage implements hv/mem/mapset.PageTable.
func (t *Table) UnmapPage(pageNum uintptr) {
	t.Unmap(addr.GuestPageNum(pageNum))
}

// TranslatePage implements hv/mem/mapset.PageTable.
func (t *Table) TranslatePage(pageNum uintptr) (addr.PTE, bool) {
	return t.Translate(addr.GuestPageNum(pageNum))
}
