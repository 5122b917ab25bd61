package guest

import (
	"unsafe"

	"hypocaust/hv"
	"hypocaust/hv/addr"
	"hypocaust/hv/mem/mapset"
)

// elf64Header mirrors the ELF64 file header exactly, field for field, so it
// can be overlaid directly onto the guest image bytes with unsafe.Pointer
// rather than decoded field-by-field through encoding/binary — the same
// overlay technique hv/trap.TrapContext and hv/mem/gpt use for fixed
// hardware-defined layouts, applied here to a fixed file-format layout
// instead. debug/elf is deliberately not used: it is a host-tooling
// convenience (wired into cmd/hvimg at build time instead), not something
// the freestanding half should depend on.
type elf64Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// elf64ProgramHeader mirrors one ELF64 program header.
type elf64ProgramHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

const (
	ptLoad = 1

	pfExec  = 1
	pfWrite = 2
	pfRead  = 4

	etElfClass64      = 2
	etElfDataLSB      = 1
	elfMachineRISCV64 = 0xF3
)

var (
	errTooSmall     = &hv.Error{Module: "guest", Message: "image smaller than an ELF64 header"}
	errBadMagic     = &hv.Error{Module: "guest", Message: "image does not start with the ELF magic"}
	errWrongClass   = &hv.Error{Module: "guest", Message: "image is not a 64-bit little-endian ELF"}
	errWrongMachine = &hv.Error{Module: "guest", Message: "image is not built for RISC-V"}
	errBadPhoff     = &hv.Error{Module: "guest", Message: "program header table falls outside the image"}
)

// Image is a parsed guest ELF64 kernel: its entry point and every PT_LOAD
// segment, already reshaped into mapset.LoadSegment with architecturally
// implied permissions, ready to hand to mapset.NewGuest.
type Image struct {
	Entry    uint64
	Segments []mapset.LoadSegment
}

// Parse reads the ELF64 header and program header table out of data (the
// raw guest binary, already resident in host memory at GUEST_BIN_ADDR) and
// returns every PT_LOAD segment. Per spec.md §6, magic must be
// {0x7F,'E','L','F'}, and each segment's flags map straight onto R/W/X; U
// is always implied since guests never run above VS/VU.
func Parse(data []byte) (*Image, error) {
	if len(data) < int(unsafe.Sizeof(elf64Header{})) {
		return nil, errTooSmall
	}

	hdr := (*elf64Header)(unsafe.Pointer(&data[0]))
	if hdr.Ident[0] != 0x7F || hdr.Ident[1] != 'E' || hdr.Ident[2] != 'L' || hdr.Ident[3] != 'F' {
		return nil, errBadMagic
	}
	if hdr.Ident[4] != etElfClass64 || hdr.Ident[5] != etElfDataLSB {
		return nil, errWrongClass
	}
	if hdr.Machine != elfMachineRISCV64 {
		return nil, errWrongMachine
	}

	phSize := uint64(hdr.Phentsize) * uint64(hdr.Phnum)
	if hdr.Phoff > uint64(len(data)) || phSize > uint64(len(data))-hdr.Phoff {
		return nil, errBadPhoff
	}

	img := &Image{Entry: hdr.Entry}

	for i := uint16(0); i < hdr.Phnum; i++ {
		off := hdr.Phoff + uint64(i)*uint64(hdr.Phentsize)
		ph := (*elf64ProgramHeader)(unsafe.Pointer(&data[off]))
		if ph.Type != ptLoad {
			continue
		}

		var flags addr.PTEFlag
		if ph.Flags&pfRead != 0 {
			flags |= addr.FlagRead
		}
		if ph.Flags&pfWrite != 0 {
			flags |= addr.FlagWrite
		}
		if ph.Flags&pfExec != 0 {
			flags |= addr.FlagExec
		}

		fileData := data[ph.Offset : ph.Offset+ph.Filesz]

		img.Segments = append(img.Segments, mapset.LoadSegment{
			GPAStart: uintptr(ph.Paddr),
			Size:     uintptr(ph.Memsz),
			Flags:    flags,
			Data:     fileData,
		})
	}

	return img, nil
}
