package frame

import (
	"testing"

	"hypocaust/hv/addr"
)

func testAllocator(t *testing.T, numPages int) *Allocator {
	t.Helper()
	// The test frames are not real memory; skip the zero-fill write.
	prevZeroFill := zeroFillFn
	zeroFillFn = func(Frame) {}
	t.Cleanup(func() { zeroFillFn = prevZeroFill })
	var a Allocator
	a.Init(addr.PhysAddr(0), addr.PhysAddr(uintptr(numPages)*addr.PageSize))
	return &a
}

func TestAllocExhaustsWatermark(t *testing.T) {
	a := testAllocator(t, 2)

	f1, err := a.Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f2, err := a.Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f1 == f2 {
		t.Fatalf("expected distinct frames, got %v twice", f1)
	}

	if _, err := a.Alloc(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestFreeThenReallocServesFromRecycleList(t *testing.T) {
	a := testAllocator(t, 1)

	f, err := a.Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Alloc(); err != ErrOutOfMemory {
		t.Fatalf("expected pool exhausted before free")
	}

	if err := a.Free(f); err != nil {
		t.Fatalf("unexpected Free error: %v", err)
	}

	got, err := a.Alloc()
	if err != nil {
		t.Fatalf("unexpected error after free: %v", err)
	}
	if got != f {
		t.Fatalf("expected recycled frame %v, got %v", f, got)
	}
}

func TestDoubleFreeIsRejected(t *testing.T) {
	a := testAllocator(t, 1)

	f, _ := a.Alloc()
	if err := a.Free(f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Free(f); err != ErrDoubleFree {
		t.Fatalf("expected ErrDoubleFree, got %v", err)
	}
}

func TestAllocBelowWatermarkAlwaysFromRecycleList(t *testing.T) {
	a := testAllocator(t, 4)

	var allocated []Frame
	for i := 0; i < 4; i++ {
		f, err := a.Alloc()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		allocated = append(allocated, f)
	}

	// Free the first two frames and make sure the next two allocations
	// come exclusively from them, never advancing the (already
	// exhausted) watermark.
	if err := a.Free(allocated[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Free(allocated[1]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[Frame]bool{}
	for i := 0; i < 2; i++ {
		f, err := a.Alloc()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f != allocated[0] && f != allocated[1] {
			t.Fatalf("expected a recycled frame, got %v", f)
		}
		if seen[f] {
			t.Fatalf("frame %v handed out twice concurrently", f)
		}
		seen[f] = true
	}
}

func TestReserveAdvancesWatermark(t *testing.T) {
	a := testAllocator(t, 4)
	a.Reserve(addr.PhysAddr(0), addr.PhysAddr(2*addr.PageSize))

	f, err := a.Alloc()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f < Frame(2) {
		t.Fatalf("expected first allocation past the reserved range, got %v", f)
	}
}
