package guest

import (
	"encoding/binary"
	"io"
	"unsafe"

	"hypocaust/hv"
)

// containerMagic identifies a packed guest image produced by cmd/hvimg:
// a guest ELF64 kernel and its DTB blob, back to back behind one small
// fixed header, staged at the board's GUEST_BIN_ADDR before boot (spec.md
// §4.10's "embedded/loaded guest image", made concrete by cmd/hvimg).
const containerMagic = 0x48565647 // "HVVG"

// containerHeader is the fixed-size header at the start of a packed guest
// image: the ELF and DTB byte counts that follow it immediately, in that
// order. Padded to keep both uint64 fields 8-byte aligned.
type containerHeader struct {
	Magic   uint32
	_       uint32
	ELFSize uint64
	DTBSize uint64
}

const containerHeaderSize = 24

var (
	errBadContainerMagic = &hv.Error{Module: "guest", Message: "guest image container has an unrecognized magic"}
	errContainerTooSmall = &hv.Error{Module: "guest", Message: "guest image container shorter than its own header claims"}
)

// Container is a parsed packed guest image: the kernel (already split into
// entry point and PT_LOAD segments) plus the raw DTB bytes to place at the
// board's GuestDTBAddr.
type Container struct {
	Kernel *Image
	DTB    []byte
}

// ParseContainer reads a cmd/hvimg-produced container out of data, which
// must be at least as long as the header claims (boot fails fast rather
// than silently truncating a short staged image).
func ParseContainer(data []byte) (*Container, error) {
	if uintptr(len(data)) < containerHeaderSize {
		return nil, errContainerTooSmall
	}
	hdr := (*containerHeader)(unsafe.Pointer(&data[0]))
	if hdr.Magic != containerMagic {
		return nil, errBadContainerMagic
	}

	elfStart := uintptr(containerHeaderSize)
	elfEnd := elfStart + uintptr(hdr.ELFSize)
	dtbEnd := elfEnd + uintptr(hdr.DTBSize)
	if dtbEnd > uintptr(len(data)) {
		return nil, errContainerTooSmall
	}

	kernel, err := Parse(data[elfStart:elfEnd])
	if err != nil {
		return nil, err
	}

	return &Container{Kernel: kernel, DTB: data[elfEnd:dtbEnd]}, nil
}

// WriteContainer writes the header ParseContainer expects, followed by
// elfBytes and dtbBytes back to back. The counterpart cmd/hvimg calls to
// produce the image staged at a board's GuestBinAddr; the only writer of
// this format, so it lives next to ParseContainer rather than in cmd/hvimg
// itself.
func WriteContainer(w io.Writer, elfBytes, dtbBytes []byte) error {
	var hdr [containerHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], containerMagic)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(elfBytes)))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(len(dtbBytes)))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(elfBytes); err != nil {
		return err
	}
	_, err := w.Write(dtbBytes)
	return err
}
