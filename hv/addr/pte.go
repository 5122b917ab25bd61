package addr

// PTEFlag is a bitmask of Sv39/Sv39x4 page-table-entry flag bits, laid out
// exactly as the hardware expects them in the low 8 bits of a PTE (RSW bits
// 8-9 are left to the implementation and unused here).
type PTEFlag uint64

const (
	// FlagValid marks a PTE as present. An invalid PTE causes a page
	// fault regardless of any other bit.
	FlagValid PTEFlag = 1 << 0

	// FlagRead/Write/Exec grant the corresponding access. A leaf PTE has
	// at least one of these set; an interior (pointer-to-next-level) PTE
	// has none of them set. Read=0,Write=1,Exec=0 is a reserved,
	// always-invalid combination per the privileged spec.
	FlagRead  PTEFlag = 1 << 1
	FlagWrite PTEFlag = 1 << 2
	FlagExec  PTEFlag = 1 << 3

	// FlagUser allows U-mode (VU-mode, for a G-stage PTE) access. The
	// G-stage walker requires this bit set on every leaf: a guest runs
	// at VS/VU, never HS, so an unset U bit would make every guest
	// access fault.
	FlagUser PTEFlag = 1 << 4

	// FlagGlobal marks a mapping as present in every address space,
	// exempting it from being flushed on a context switch. Used only for
	// the trampoline page.
	FlagGlobal PTEFlag = 1 << 5

	// FlagAccessed / FlagDirty are the hardware (or software-emulated)
	// A/D bits. This implementation treats them as plain software bits:
	// it never relies on the Svadu extension and never reads them back.
	FlagAccessed PTEFlag = 1 << 6
	FlagDirty    PTEFlag = 1 << 7

	// rwxMask isolates the R/W/X bits that distinguish a leaf PTE from an
	// interior one.
	rwxMask = FlagRead | FlagWrite | FlagExec
)

const (
	// ppnShift is where the PPN field begins in a 64-bit Sv39 PTE.
	ppnShift = 10

	// ppnMask covers the 44-bit PPN field (bits 10:53).
	ppnMask = (uint64(1) << 44) - 1
)

// PTE is a single Sv39 (or Sv39x4) page-table entry. The same representation
// is used for both the first-stage and G-stage tables; gpt additionally
// enforces that every leaf PTE it produces has FlagUser set.
type PTE uint64

// IsValid reports whether the Valid bit is set.
func (p PTE) IsValid() bool {
	return PTEFlag(p)&FlagValid != 0
}

// IsLeaf reports whether any of R/W/X is set, i.e. this PTE terminates a
// walk rather than pointing at the next-level table.
func (p PTE) IsLeaf() bool {
	return PTEFlag(p)&rwxMask != 0
}

// IsReserved reports the one combination the privileged spec reserves:
// Writable without Readable.
func (p PTE) IsReserved() bool {
	f := PTEFlag(p)
	return f&FlagWrite != 0 && f&FlagRead == 0
}

// HasFlags reports whether every bit in flags is set.
func (p PTE) HasFlags(flags PTEFlag) bool {
	return PTEFlag(p)&flags == flags
}

// HasAnyFlag reports whether at least one bit in flags is set.
func (p PTE) HasAnyFlag(flags PTEFlag) bool {
	return PTEFlag(p)&flags != 0
}

// SetFlags ORs flags into the entry, leaving the PPN field untouched.
func (p *PTE) SetFlags(flags PTEFlag) {
	*p = PTE(uint64(*p) | uint64(flags))
}

// ClearFlags clears flags from the entry, leaving the PPN field untouched.
func (p *PTE) ClearFlags(flags PTEFlag) {
	*p = PTE(uint64(*p) &^ uint64(flags))
}

// PPN returns the physical page number this entry points at (either a
// next-level table or, for a leaf, the mapped frame).
func (p PTE) PPN() PhysPageNum {
	return PhysPageNum((uint64(p) >> ppnShift) & ppnMask)
}

// SetPPN installs ppn into the entry's PPN field, leaving flags untouched.
func (p *PTE) SetPPN(ppn PhysPageNum) {
	*p = PTE((uint64(*p) &^ (ppnMask << ppnShift)) | ((uint64(ppn) & ppnMask) << ppnShift))
}
