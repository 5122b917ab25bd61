// Package gpt implements the G-stage (guest-physical → host-physical)
// page table: the table a running guest's hgatp points at. Adapted from the
// teacher kernel's vmm address-space code the same way hv/mem/hpt is, but
// widened at the root level for Sv39x4 (a 2048-entry, 16-KiB root instead
// of the ordinary 512-entry, 4-KiB one) and with every leaf forced to carry
// the U bit, since a guest always runs at VS/VU and never HS.
package gpt

import (
	"unsafe"

	"hypocaust/hv"
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/frame"
)

// hgatpModeSv39x4 is the 4-bit MODE field value selecting Sv39x4 in hgatp.
const hgatpModeSv39x4 = 8

// rootAlignFrames is how many consecutive frame-sized units the root table
// occupies: 2048 entries * 8 bytes = 16 KiB = 4 * PageSize.
const rootAlignFrames = 4

var (
	errAlreadyMapped = &hv.Error{Module: "gpt", Message: "guest-physical page already mapped"}
	errNotMapped     = &hv.Error{Module: "gpt", Message: "unmap of a guest-physical page that was never mapped"}
)

// Table is a G-stage Sv39x4 page table, one per guest.
type Table struct {
	vmid uint64
	root frame.Frame
}

// levels is the number of levels walked for a G-stage lookup: the root
// (2048-entry, 1 GiB range each) plus the two ordinary 512-entry levels
// below it (2 MiB, then 4 KiB).
const levels = 3

// New allocates a root whose frame number is a multiple of rootAlignFrames,
// as hgatp requires a 16-KiB-aligned root. Frames rejected along the way
// are never freed back to alloc's allocator: the spec treats handing an
// already-rejected-for-alignment frame back out as a correctness risk not
// worth the bookkeeping to avoid, so this simply leaks them for the
// lifetime of the hypervisor (acceptable: at most a handful of wasted pages
// per guest, and guests are created once at boot).
func New(vmid uint64, alloc func() (frame.Frame, error)) (*Table, error) {
	for {
		f, err := alloc()
		if err != nil {
			return nil, err
		}
		if uint64(f)%rootAlignFrames == 0 {
			// The allocator only hands out single zero-filled pages; the
			// other rootAlignFrames-1 pages making up the 16-KiB root must
			// be acquired too, and must be contiguous immediately after f.
			if ok := allocContiguous(f, rootAlignFrames-1, alloc); ok {
				return &Table{vmid: vmid, root: f}, nil
			}
			// Could not extend contiguously from f; keep f (leaked) and
			// retry with a fresh allocation.
			continue
		}
	}
}

// allocContiguous consumes n further allocations and reports whether they
// were contiguous immediately after base. The stack-based allocator in
// hv/mem/frame hands out strictly increasing frame numbers past its
// watermark, so in practice this succeeds on the first attempt whenever it
// is reached from a watermark-only (not yet recycled) state, which holds at
// boot time when every G-stage table is built.
func allocContiguous(base frame.Frame, n int, alloc func() (frame.Frame, error)) bool {
	want := base
	for i := 0; i < n; i++ {
		want++
		f, err := alloc()
		if err != nil || f != want {
			return false
		}
	}
	return true
}

// Root returns the frame at the base of this table's 16-KiB root.
func (t *Table) Root() frame.Frame {
	return t.root
}

// Token encodes this table for hgatp: MODE=Sv39x4, the VMID, and the root
// PPN.
func (t *Table) Token() uint64 {
	return uint64(hgatpModeSv39x4)<<60 | (t.vmid&0x3FFF)<<44 | uint64(t.root.PPN())
}

var (
	readPTEFn  = readPTE
	writePTEFn = writePTE
)

// ptePointer returns a pointer to the entry at index within the table page
// based at ppn, the same identity-mapped-physical-memory assumption
// hv/mem/hpt relies on. The root table occupies rootAlignFrames consecutive
// pages (2048 entries); non-root tables are a single ordinary page (512
// entries). Addressing by raw byte offset rather than a fixed-size array
// type sidesteps having to declare two different table shapes.
func ptePointer(ppn addr.PhysPageNum, index uint64) *addr.PTE {
	base := uintptr(ppn.Addr())
	return (*addr.PTE)(unsafe.Pointer(base + uintptr(index)*8))
}

func readPTE(ppn addr.PhysPageNum, index uint64) addr.PTE {
	return *ptePointer(ppn, index)
}

func writePTE(ppn addr.PhysPageNum, index uint64, pte addr.PTE) {
	*ptePointer(ppn, index) = pte
}

// indices splits a guest-physical page number into the 11/9/9-bit radix
// index for each level.
func indices(gpn addr.GuestPageNum) [levels]uint64 {
	return [levels]uint64{gpn.Index(0), gpn.Index(1), gpn.Index(2)}
}

// Map installs a leaf PTE mapping gpn to ppn, allocating interior tables
// (ordinary 512-entry, Valid-only) as needed. Every leaf this function
// writes has FlagUser forced on regardless of what the caller passed,
// because an unset U bit on a G-stage leaf would fault every VS/VU access.
// Mapping an already-mapped guest-physical page is fatal.
func (t *Table) Map(gpn addr.GuestPageNum, ppn addr.PhysPageNum, flags addr.PTEFlag, alloc func() (frame.Frame, error)) error {
	idx := indices(gpn)
	cur := t.root.PPN()

	for level := 0; level < levels-1; level++ {
		pte := readPTEFn(cur, idx[level])
		if !pte.IsValid() {
			f, err := alloc()
			if err != nil {
				return err
			}
			pte.SetPPN(f.PPN())
			pte.SetFlags(addr.FlagValid)
			writePTEFn(cur, idx[level], pte)
		} else if pte.IsLeaf() {
			hv.Panic(errAlreadyMapped)
		}
		cur = pte.PPN()
	}

	leafIdx := idx[levels-1]
	leaf := readPTEFn(cur, leafIdx)
	if leaf.IsValid() {
		hv.Panic(errAlreadyMapped)
	}

	leaf.SetPPN(ppn)
	leaf.SetFlags(flags | addr.FlagValid | addr.FlagUser)
	writePTEFn(cur, leafIdx, leaf)
	return nil
}

// Unmap clears the leaf PTE for gpn. Fatal if gpn has no mapping.
func (t *Table) Unmap(gpn addr.GuestPageNum) {
	idx := indices(gpn)
	cur := t.root.PPN()

	for level := 0; level < levels-1; level++ {
		pte := readPTEFn(cur, idx[level])
		if !pte.IsValid() || pte.IsLeaf() {
			hv.Panic(errNotMapped)
		}
		cur = pte.PPN()
	}

	leafIdx := idx[levels-1]
	if !readPTEFn(cur, leafIdx).IsValid() {
		hv.Panic(errNotMapped)
	}
	writePTEFn(cur, leafIdx, addr.PTE(0))
}

// Translate walks gpn without mutating the table, returning the leaf PTE if
// one is reached. Used, through TranslatePage, by hv/vmm's fallback
// instruction decoder to turn a guest-physical address into a host-physical
// one.
func (t *Table) Translate(gpn addr.GuestPageNum) (addr.PTE, bool) {
	idx := indices(gpn)
	cur := t.root.PPN()

	for level := 0; level < levels; level++ {
		pte := readPTEFn(cur, idx[level])
		if !pte.IsValid() {
			return addr.PTE(0), false
		}
		if pte.IsLeaf() {
			return pte, level == levels-1
		}
		cur = pte.PPN()
	}
	return addr.PTE(0), false
}
