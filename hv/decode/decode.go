// Package decode implements the minimal RISC-V instruction decoder the MMIO
// emulation path (hv/plic and the board-MMIO handler wired into
// hv/trap.Handlers.MMIOFault) needs: just enough to recover a load or
// store's access width, sign, and destination/source register from the raw
// instruction bits, when htinst did not already hand that over pre-decoded.
// golang.org/x/arch has no RISC-V disassembler, so this is grounded
// directly on the RISC-V unprivileged ISA manual's instruction encodings
// rather than on any example in the retrieval pack; everything about its
// shape — a narrow decoder returning a small result struct instead of a
// full instruction-stream disassembler — follows the teacher kernel's
// habit of building exactly the subset of a spec a component needs (e.g.
// its ELF parser reads only the fields multiboot/program headers require).
package decode

// Kind distinguishes a load from a store; MMIOFault only ever sees one of
// these two, since any other instruction type cannot fault this way.
type Kind int

const (
	Load Kind = iota
	Store
)

// Access describes the decoded access: which GPR is the data register
// (source for a store, destination for a load), how wide the access is,
// and whether a load sign-extends.
type Access struct {
	Kind   Kind
	Reg    int // x-register index, 0-31
	Width  int // 1, 2, 4, or 8 bytes
	Signed bool
	Length int // instruction length in bytes: 2 (compressed) or 4
}

// errUnsupported is returned for any instruction this decoder was not built
// to recognize: anything other than the full-width loads/stores and the
// quadrant-0 C.LW/C.LD/C.SW/C.SD compressed forms, which is what the guest
// kernels this hypervisor targets use against MMIO.
type unsupportedError struct{}

func (unsupportedError) Error() string { return "decode: unsupported instruction" }

var errUnsupported = unsupportedError{}

// Decode inspects the low 16 bits of raw to tell a compressed instruction
// (quadrant != 0b11) from a full 32-bit one, and dispatches accordingly.
func Decode(raw uint32) (Access, error) {
	if raw&0x3 != 0x3 {
		return decodeCompressed(uint16(raw))
	}
	return decode32(raw)
}

func decode32(raw uint32) (Access, error) {
	opcode := raw & 0x7F
	funct3 := (raw >> 12) & 0x7

	switch opcode {
	case 0x03: // LOAD
		rd := int((raw >> 7) & 0x1F)
		width, signed, ok := loadWidth(funct3)
		if !ok {
			return Access{}, errUnsupported
		}
		return Access{Kind: Load, Reg: rd, Width: width, Signed: signed, Length: 4}, nil

	case 0x23: // STORE
		rs2 := int((raw >> 20) & 0x1F)
		width, ok := storeWidth(funct3)
		if !ok {
			return Access{}, errUnsupported
		}
		return Access{Kind: Store, Reg: rs2, Width: width, Length: 4}, nil

	default:
		return Access{}, errUnsupported
	}
}

func loadWidth(funct3 uint32) (width int, signed bool, ok bool) {
	switch funct3 {
	case 0b000:
		return 1, true, true // lb
	case 0b001:
		return 2, true, true // lh
	case 0b010:
		return 4, true, true // lw
	case 0b011:
		return 8, true, true // ld
	case 0b100:
		return 1, false, true // lbu
	case 0b101:
		return 2, false, true // lhu
	case 0b110:
		return 4, false, true // lwu
	default:
		return 0, false, false
	}
}

func storeWidth(funct3 uint32) (width int, ok bool) {
	switch funct3 {
	case 0b000:
		return 1, true // sb
	case 0b001:
		return 2, true // sh
	case 0b010:
		return 4, true // sw
	case 0b011:
		return 8, true // sd
	default:
		return 0, false
	}
}

// compressedReg expands a 3-bit compressed register field (x8-x15) to its
// full 5-bit register index.
func compressedReg(field uint16) int {
	return int(field) + 8
}

func decodeCompressed(raw uint16) (Access, error) {
	quadrant := raw & 0x3
	funct3 := (raw >> 13) & 0x7

	if quadrant != 0b00 {
		return Access{}, errUnsupported
	}

	rdRs2 := compressedReg((raw >> 2) & 0x7)

	switch funct3 {
	case 0b010: // C.LW
		return Access{Kind: Load, Reg: rdRs2, Width: 4, Signed: true, Length: 2}, nil
	case 0b011: // C.LD
		return Access{Kind: Load, Reg: rdRs2, Width: 8, Signed: true, Length: 2}, nil
	case 0b110: // C.SW
		return Access{Kind: Store, Reg: rdRs2, Width: 4, Length: 2}, nil
	case 0b111: // C.SD
		return Access{Kind: Store, Reg: rdRs2, Width: 8, Length: 2}, nil
	default:
		return Access{}, errUnsupported
	}
}

// Length reports an instruction's length in bytes without fully decoding it
// — used when MMIOFault only needs to advance Sepc and already obtained the
// access width another way (e.g. straight from htinst).
func Length(raw uint16) int {
	if raw&0x3 == 0x3 {
		return 4
	}
	return 2
}
