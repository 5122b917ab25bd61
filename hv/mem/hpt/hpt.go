// Package hpt implements the hypervisor's own first-stage (HS-mode) Sv39
// page table: the table whose root is loaded into satp once the hypervisor
// stops running physically addressed. Grounded on the teacher kernel's
// vmm.AddressSpace map/unmap pair, generalized onto hv/mem/pagetable's
// storage-agnostic walker.
package hpt

import (
	"unsafe"

	"hypocaust/hv"
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
	"hypocaust/hv/mem/pagetable"
)

// satpModeSv39 is the 4-bit MODE field value selecting Sv39 in satp.
const satpModeSv39 = 8

var (
	errAlreadyMapped = &hv.Error{Module: "hpt", Message: "virtual page already mapped"}
	errNotMapped     = &hv.Error{Module: "hpt", Message: "unmap of a page that was never mapped"}
)

// Table is a first-stage Sv39 page table. The hypervisor runs physically
// addressed (satp in Bare mode) until its own Table is built and activated,
// so every interior frame is read and written at its physical address
// directly — there is no bootstrapping chicken-and-egg to solve, unlike a
// hosted kernel that must already be mapped to edit its own tables.
type Table struct {
	root frame.Frame
}

// New allocates a root frame (already zero-filled by the allocator) and
// returns a fresh, empty table.
func New(alloc func() (frame.Frame, error)) (*Table, error) {
	root, err := alloc()
	if err != nil {
		return nil, err
	}
	return &Table{root: root}, nil
}

// Root returns the frame backing this table's root, for callers that need
// to reserve it or walk it read-only (diagnostics).
func (t *Table) Root() frame.Frame {
	return t.root
}

// Token encodes this table for satp: MODE=Sv39 and the root PPN, ASID left
// at zero (the hypervisor itself never runs more than one HS address space).
func (t *Table) Token() uint64 {
	return uint64(satpModeSv39)<<60 | uint64(t.root.PPN())
}

// rawPointer returns the host-physical address of the page-table page at
// ppn. The hypervisor is identity-mapped over its own physical memory (see
// Boot in hv/vmm), so a page's physical address doubles as a dereferenceable
// pointer both before and after the host table this package builds is
// activated.
func rawPointer(ppn addr.PhysPageNum) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ppn.Addr()))
}

// readPTEFn / writePTEFn indirect every table access through a function
// variable, the same fn-var override idiom the teacher kernel uses so that
// hosted `go test` runs can substitute an in-memory backing store instead of
// dereferencing raw physical addresses that aren't valid in a host process.
var (
	readPTEFn  = readPTE
	writePTEFn = writePTE
)

func readPTE(ppn addr.PhysPageNum, index uint64) addr.PTE {
	table := (*[512]addr.PTE)(rawPointer(ppn))
	return table[index]
}

func writePTE(ppn addr.PhysPageNum, index uint64, pte addr.PTE) {
	table := (*[512]addr.PTE)(rawPointer(ppn))
	table[index] = pte
}

// Map installs a leaf PTE for vpn, allocating any interior tables on the way
// down with the Valid bit only (no R/W/X, so a walk never mistakes an
// interior node for a huge-page leaf). Mapping an already-mapped page is a
// caller bug — the spec treats it as fatal rather than a silent overwrite.
func (t *Table) Map(vpn addr.VirtPageNum, ppn addr.PhysPageNum, flags addr.PTEFlag, alloc func() (frame.Frame, error)) error {
	cur := t.root.PPN()

	for level := 0; level < pagetable.Levels-1; level++ {
		idx := vpn.Index(level)
		pte := readPTEFn(cur, idx)
		if !pte.IsValid() {
			f, err := alloc()
			if err != nil {
				return err
			}
			pte.SetPPN(f.PPN())
			pte.SetFlags(addr.FlagValid)
			writePTEFn(cur, idx, pte)
		} else if pte.IsLeaf() {
			hv.Panic(errAlreadyMapped)
		}
		cur = pte.PPN()
	}

	leafIdx := vpn.Index(pagetable.Levels - 1)
	leaf := readPTEFn(cur, leafIdx)
	if leaf.IsValid() {
		hv.Panic(errAlreadyMapped)
	}

	leaf.SetPPN(ppn)
	leaf.SetFlags(flags | addr.FlagValid)
	writePTEFn(cur, leafIdx, leaf)
	return nil
}

// Unmap clears the leaf PTE for vpn. Interior tables are never coalesced or
// freed: a table only ever grows, matching the spec's description of
// unmap() as clearing the leaf alone. Unmapping an address with no mapping
// is fatal, the same as a double-map.
func (t *Table) Unmap(vpn addr.VirtPageNum) {
	cur := t.root.PPN()

	for level := 0; level < pagetable.Levels-1; level++ {
		idx := vpn.Index(level)
		pte := readPTEFn(cur, idx)
		if !pte.IsValid() || pte.IsLeaf() {
			hv.Panic(errNotMapped)
		}
		cur = pte.PPN()
	}

	leafIdx := vpn.Index(pagetable.Levels - 1)
	leaf := readPTEFn(cur, leafIdx)
	if !leaf.IsValid() {
		hv.Panic(errNotMapped)
	}

	writePTEFn(cur, leafIdx, addr.PTE(0))
}

// Translate walks vpn without mutating the table, returning the leaf PTE
// found (if any). It also serves as the TranslatePage method that
// mapset.PageTable requires.
func (t *Table) Translate(vpn addr.VirtPageNum) (addr.PTE, bool) {
	indices := [pagetable.Levels]uint64{vpn.Index(0), vpn.Index(1), vpn.Index(2)}
	res := pagetable.Walk(t.root.PPN(), indices, readPTEFn)
	return res.Leaf, res.Resolved
}
