// Package pagetable implements the read-only three-level radix walk shared
// by hv/mem/hpt's own first-stage table and, via hv/vmm's fallback
// instruction decoder, a running guest's first-stage table. It is
// deliberately storage-agnostic: callers supply a ReadPTE function, so the
// same walk serves hpt's identity-mapped host pages and a guest's
// first-stage table (whose interior pages live at guest-physical
// addresses and must be re-translated through the guest's G-stage table on
// every step). hv/mem/gpt's G-stage walk has a different root shape (a
// 16-KiB, 2048-entry root rather than this package's 512-entry one at
// every level) and implements its own inline walk instead of using this
// one. This mirrors the teacher kernel's vmm.walk, generalized to take its
// reader as a parameter instead of assuming the table is mapped at the
// caller's own virtual addresses.
package pagetable

import "hypocaust/hv/addr"

// Levels is the number of radix levels in an Sv39 walk (1 GiB, 2 MiB, 4 KiB).
const Levels = 3

// ReadPTE reads the PTE at the given index of the table stored in the page
// at ppn. Implementations translate ppn to a host-accessible address
// however is appropriate for the table being walked.
type ReadPTE func(ppn addr.PhysPageNum, index uint64) addr.PTE

// Visited records one page-table entry encountered during a walk.
type Visited struct {
	Level int
	PPN   addr.PhysPageNum
	Index uint64
	PTE   addr.PTE
}

// Result is the outcome of a walk: every PTE visited along the way, plus the
// final leaf PTE if one was reached.
type Result struct {
	Entries []Visited

	// Leaf is the terminal PTE, valid only if Resolved is true.
	Leaf addr.PTE

	// Resolved is true iff the walk reached a valid leaf PTE at the last
	// level. If false, FaultLevel names the level at which the walk
	// could not continue (an invalid PTE, or a non-leaf PTE at the last
	// level, which cannot happen with a well-formed table but is
	// reported rather than trusted).
	Resolved   bool
	FaultLevel int
}

// Walk descends rootPPN following indices (one per radix level, computed by
// the caller from whatever address width that level's table uses — Sv39
// tables use 9 bits per level except a G-stage root, which uses 11),
// calling read at each level. It never allocates and never writes;
// HPT.Map/Unmap and GPT.Map/Unmap perform their own read-modify-write walks
// because, unlike this function, they need to install missing interior
// tables as they go.
func Walk(rootPPN addr.PhysPageNum, indices [Levels]uint64, read ReadPTE) Result {
	var res Result
	res.Entries = make([]Visited, 0, Levels)

	ppn := rootPPN

	for level := 0; level < Levels; level++ {
		idx := indices[level]
		pte := read(ppn, idx)

		res.Entries = append(res.Entries, Visited{Level: level, PPN: ppn, Index: idx, PTE: pte})

		if !pte.IsValid() {
			res.FaultLevel = level
			return res
		}

		if pte.IsLeaf() {
			if level != Levels-1 {
				// A huge-page-style leaf at a non-terminal level is not
				// produced by this hypervisor's own Map() calls; treat it
				// as an unsupported/faulting walk rather than
				// mis-resolving the address.
				res.FaultLevel = level
				return res
			}
			res.Leaf = pte
			res.Resolved = true
			return res
		}

		if level == Levels-1 {
			// Last level produced a non-leaf PTE: malformed table.
			res.FaultLevel = level
			return res
		}

		ppn = pte.PPN()
	}

	res.FaultLevel = Levels - 1
	return res
}

// Translate resolves va to a physical address using a completed Result,
// combining the leaf PPN with va's in-page offset. Callers should only call
// this when Result.Resolved is true.
func Translate(res Result, va addr.VirtAddr) addr.PhysAddr {
	return addr.PhysAddr((uintptr(res.Leaf.PPN()) << addr.PageShift) | va.Offset())
}
