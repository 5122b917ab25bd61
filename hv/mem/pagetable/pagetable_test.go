package pagetable

import (
	"testing"

	"hypocaust/hv/addr"
)

// fakeTables is an in-test backing store for page tables, keyed by PPN, so
// Walk can be exercised without any real memory mapping.
type fakeTables map[addr.PhysPageNum]*[512]addr.PTE

func (f fakeTables) read(ppn addr.PhysPageNum, index uint64) addr.PTE {
	table, ok := f[ppn]
	if !ok {
		return 0
	}
	return table[index]
}

func (f fakeTables) table(ppn addr.PhysPageNum) *[512]addr.PTE {
	t, ok := f[ppn]
	if !ok {
		t = &[512]addr.PTE{}
		f[ppn] = t
	}
	return t
}

func TestWalkResolvesThreeLevelLeaf(t *testing.T) {
	tables := fakeTables{}
	root := addr.PhysPageNum(0x1000)
	l1 := addr.PhysPageNum(0x2000)
	l2 := addr.PhysPageNum(0x3000)
	leafFrame := addr.PhysPageNum(0x4000)

	va := addr.VirtAddr(0)
	vpn := va.VirtPageNum()

	var rootEntry, l1Entry, leafEntry addr.PTE
	rootEntry.SetPPN(l1)
	rootEntry.SetFlags(addr.FlagValid)
	tables.table(root)[vpn.Index(0)] = rootEntry

	l1Entry.SetPPN(l2)
	l1Entry.SetFlags(addr.FlagValid)
	tables.table(l1)[vpn.Index(1)] = l1Entry

	leafEntry.SetPPN(leafFrame)
	leafEntry.SetFlags(addr.FlagValid | addr.FlagRead | addr.FlagWrite)
	tables.table(l2)[vpn.Index(2)] = leafEntry

	indices := [Levels]uint64{vpn.Index(0), vpn.Index(1), vpn.Index(2)}
	res := Walk(root, indices, tables.read)
	if !res.Resolved {
		t.Fatalf("expected walk to resolve, faulted at level %d", res.FaultLevel)
	}
	if res.Leaf.PPN() != leafFrame {
		t.Fatalf("expected leaf PPN %v, got %v", leafFrame, res.Leaf.PPN())
	}
	if len(res.Entries) != Levels {
		t.Fatalf("expected %d visited entries, got %d", Levels, len(res.Entries))
	}

	pa := Translate(res, va)
	if pa.PhysPageNum() != leafFrame {
		t.Fatalf("expected translated PPN %v, got %v", leafFrame, pa.PhysPageNum())
	}
}

func TestWalkFaultsOnMissingEntry(t *testing.T) {
	tables := fakeTables{}
	root := addr.PhysPageNum(0x1000)

	res := Walk(root, [Levels]uint64{0, 0, 0}, tables.read)
	if res.Resolved {
		t.Fatalf("expected walk to fault on an empty table")
	}
	if res.FaultLevel != 0 {
		t.Fatalf("expected fault at level 0, got %d", res.FaultLevel)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected exactly one visited entry before the fault, got %d", len(res.Entries))
	}
}
