package mapset

import (
	"testing"

	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// fakeTable is a minimal PageTable recording every Map/Unmap call without
// touching real memory, standing in for hpt.Table/gpt.Table.
type fakeTable struct {
	mapped map[uintptr]addr.PhysPageNum
}

func newFakeTable() *fakeTable {
	return &fakeTable{mapped: map[uintptr]addr.PhysPageNum{}}
}

func (f *fakeTable) MapPage(pageNum uintptr, ppn addr.PhysPageNum, flags addr.PTEFlag, alloc func() (frame.Frame, error)) error {
	if _, ok := f.mapped[pageNum]; ok {
		panic("page already mapped")
	}
	f.mapped[pageNum] = ppn
	return nil
}

func (f *fakeTable) UnmapPage(pageNum uintptr) {
	if _, ok := f.mapped[pageNum]; !ok {
		panic("unmap of unmapped page")
	}
	delete(f.mapped, pageNum)
}

func (f *fakeTable) TranslatePage(pageNum uintptr) (addr.PTE, bool) {
	ppn, ok := f.mapped[pageNum]
	if !ok {
		return addr.PTE(0), false
	}
	return addr.PTE(uint64(ppn) << 10), true
}

func sequentialAlloc(start frame.Frame) func() (frame.Frame, error) {
	next := start
	return func() (frame.Frame, error) {
		f := next
		next++
		return f, nil
	}
}

func TestPushLinearAreaMapsFixedOffset(t *testing.T) {
	tbl := newFakeTable()
	ms := &MemorySet{Table: tbl, Alloc: sequentialAlloc(1)}

	area := MapArea{
		PageStart: 0x10,
		PageEnd:   0x13,
		Type:      Linear,
		PPNStart:  addr.PhysPageNum(0x9000),
		Flags:     addr.FlagRead | addr.FlagExec,
	}

	if err := ms.Push(area, nil); err != nil {
		t.Fatalf("Push: %v", err)
	}

	for i := uintptr(0); i < 3; i++ {
		want := addr.PhysPageNum(0x9000) + addr.PhysPageNum(i)
		got, ok := tbl.mapped[0x10+i]
		if !ok || got != want {
			t.Fatalf("page %d: expected PPN %v, got %v (ok=%v)", i, want, got, ok)
		}
	}
	if len(ms.Areas) != 1 {
		t.Fatalf("expected the area recorded in MemorySet.Areas")
	}
}

func TestPushFramedAreaAllocatesDistinctFrames(t *testing.T) {
	tbl := newFakeTable()
	ms := &MemorySet{Table: tbl, Alloc: sequentialAlloc(5)}

	area := MapArea{
		PageStart: 0x100,
		PageEnd:   0x103,
		Type:      Framed,
		Flags:     addr.FlagRead | addr.FlagWrite,
	}

	if err := ms.Push(area, nil); err != nil {
		t.Fatalf("Push: %v", err)
	}

	seen := map[addr.PhysPageNum]bool{}
	for i := uintptr(0); i < 3; i++ {
		ppn := tbl.mapped[0x100+i]
		if seen[ppn] {
			t.Fatalf("frame %v allocated to more than one page", ppn)
		}
		seen[ppn] = true
	}
}

func TestPushRejectsDataLongerThanArea(t *testing.T) {
	tbl := newFakeTable()
	ms := &MemorySet{Table: tbl, Alloc: sequentialAlloc(1)}

	area := MapArea{PageStart: 0, PageEnd: 1, Type: Framed, Flags: addr.FlagRead}
	data := make([]byte, addr.PageSize+1)

	if err := ms.Push(area, data); err == nil {
		t.Fatalf("expected an error when data exceeds the area's page count")
	}
}

func TestPushFramedAreaCopiesDataViaSink(t *testing.T) {
	tbl := newFakeTable()
	ms := &MemorySet{Table: tbl, Alloc: sequentialAlloc(1)}

	var copied [][]byte
	prev := copyPageData
	copyPageData = func(ppn addr.PhysPageNum, data []byte, i uintptr, pageSize uintptr) {
		start := i * pageSize
		end := start + pageSize
		if end > uintptr(len(data)) {
			end = uintptr(len(data))
		}
		if start >= uintptr(len(data)) {
			copied = append(copied, nil)
			return
		}
		copied = append(copied, data[start:end])
	}
	defer func() { copyPageData = prev }()

	area := MapArea{PageStart: 0, PageEnd: 2, Type: Framed, Flags: addr.FlagRead}
	data := []byte("hello")

	if err := ms.Push(area, data); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if len(copied) != 2 {
		t.Fatalf("expected one copy call per page, got %d", len(copied))
	}
	if string(copied[0]) != "hello" {
		t.Fatalf("expected first page to receive the data, got %q", copied[0])
	}
	if copied[1] != nil {
		t.Fatalf("expected the second page to receive nothing beyond the data, got %q", copied[1])
	}
}
