package hpt

import (
	"testing"

	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// fakeStore backs readPTEFn/writePTEFn with an in-test map keyed by PPN,
// the same substitution pagetable_test.go uses, so Map/Unmap/Translate can
// be exercised without dereferencing a real physical address.
type fakeStore map[addr.PhysPageNum]*[512]addr.PTE

func (s fakeStore) table(ppn addr.PhysPageNum) *[512]addr.PTE {
	t, ok := s[ppn]
	if !ok {
		t = &[512]addr.PTE{}
		s[ppn] = t
	}
	return t
}

func (s fakeStore) read(ppn addr.PhysPageNum, index uint64) addr.PTE {
	return s.table(ppn)[index]
}

func (s fakeStore) write(ppn addr.PhysPageNum, index uint64, pte addr.PTE) {
	s.table(ppn)[index] = pte
}

// withFakeStore installs a fresh fakeStore for the duration of one test and
// restores the real (physical-address-backed) functions afterward.
func withFakeStore(t *testing.T) fakeStore {
	t.Helper()
	store := fakeStore{}
	prevRead, prevWrite := readPTEFn, writePTEFn
	readPTEFn, writePTEFn = store.read, store.write
	t.Cleanup(func() { readPTEFn, writePTEFn = prevRead, prevWrite })
	return store
}

// sequentialAlloc hands out increasing, distinct frame numbers with no
// contact with real memory, standing in for hv/mem/frame.Allocator in tests
// that only care about distinctness.
func sequentialAlloc() func() (frame.Frame, error) {
	next := frame.Frame(1)
	return func() (frame.Frame, error) {
		f := next
		next++
		return f, nil
	}
}

func TestMapThenTranslateResolvesLeaf(t *testing.T) {
	withFakeStore(t)
	alloc := sequentialAlloc()

	tbl, err := New(alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vpn := addr.VirtAddr(0x4000_0000).VirtPageNum() // root index 1, lower-level indices 0
	ppn := addr.PhysPageNum(0x777)

	if err := tbl.Map(vpn, ppn, addr.FlagRead|addr.FlagWrite, alloc); err != nil {
		t.Fatalf("Map: %v", err)
	}

	pte, ok := tbl.Translate(vpn)
	if !ok {
		t.Fatalf("expected Translate to resolve after Map")
	}
	if pte.PPN() != ppn {
		t.Fatalf("expected PPN %v, got %v", ppn, pte.PPN())
	}
	if !pte.HasFlags(addr.FlagRead | addr.FlagWrite | addr.FlagValid) {
		t.Fatalf("expected R|W|V flags on the leaf, got %#x", uint64(pte))
	}
}

func TestTranslateUnmappedPageDoesNotResolve(t *testing.T) {
	withFakeStore(t)
	alloc := sequentialAlloc()

	tbl, err := New(alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, ok := tbl.Translate(addr.VirtAddr(0x1000).VirtPageNum())
	if ok {
		t.Fatalf("expected an empty table to never resolve")
	}
}

func TestMapTwoPagesDoNotCollide(t *testing.T) {
	withFakeStore(t)
	alloc := sequentialAlloc()

	tbl, err := New(alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vpnA := addr.VirtAddr(0x1000).VirtPageNum()
	vpnB := addr.VirtAddr(0x2000).VirtPageNum()

	if err := tbl.Map(vpnA, addr.PhysPageNum(0xA), addr.FlagRead, alloc); err != nil {
		t.Fatalf("Map A: %v", err)
	}
	if err := tbl.Map(vpnB, addr.PhysPageNum(0xB), addr.FlagRead, alloc); err != nil {
		t.Fatalf("Map B: %v", err)
	}

	pteA, _ := tbl.Translate(vpnA)
	pteB, _ := tbl.Translate(vpnB)
	if pteA.PPN() != 0xA || pteB.PPN() != 0xB {
		t.Fatalf("expected independent mappings, got A=%v B=%v", pteA.PPN(), pteB.PPN())
	}
}

func TestUnmapClearsLeaf(t *testing.T) {
	withFakeStore(t)
	alloc := sequentialAlloc()

	tbl, err := New(alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vpn := addr.VirtAddr(0x3000).VirtPageNum()
	if err := tbl.Map(vpn, addr.PhysPageNum(0xC), addr.FlagRead, alloc); err != nil {
		t.Fatalf("Map: %v", err)
	}

	tbl.Unmap(vpn)

	if _, ok := tbl.Translate(vpn); ok {
		t.Fatalf("expected Translate to fail to resolve after Unmap")
	}
}

func TestTokenEncodesSv39ModeAndRootPPN(t *testing.T) {
	withFakeStore(t)
	alloc := sequentialAlloc()

	tbl, err := New(alloc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	token := tbl.Token()
	if mode := token >> 60; mode != satpModeSv39 {
		t.Fatalf("expected MODE=%d, got %d", satpModeSv39, mode)
	}
	if ppn := token & ((1 << 44) - 1); ppn != uint64(tbl.Root().PPN()) {
		t.Fatalf("expected root PPN %v encoded, got %v", tbl.Root().PPN(), ppn)
	}
}
