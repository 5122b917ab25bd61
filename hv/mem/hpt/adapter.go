package hpt

import (
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// MapPage and UnmapPage adapt Table to hv/mem/mapset.PageTable, letting a
// MemorySet drive either a host or a guest table through the same
// MapArea/push logic without mapset importing hpt or gpt directly.

// MapPage implements hv/mem/mapset.PageTable.
func (t *Table) MapPage(pageNum uintptr, ppn addr.PhysPageNum, flags addr.PTEFlag, alloc func() (frame.Frame, error)) error {
	return t.Map(addr.VirtPageNum(pageNum), ppn, flags, alloc)
}

// UnmapPage implements hv/mem/mapset.PageTable.
func (t *Table) UnmapPage(pageNum uintptr) {
	t.Unmap(addr.VirtPageNum(pageNum))
}

// TranslatePage implements hv/mem/mapset.PageTable.
func (t *Table) TranslatePage(pageNum uintptr) (addr.PTE, bool) {
	return t.Translate(addr.VirtPageNum(pageNum))
}
