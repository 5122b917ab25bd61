// Package mem provides byte-size arithmetic and the raw memory primitives
// (Memset/Memcopy) the rest of the hypervisor uses instead of reaching for
// the bytes package, which would pull in the allocator-backed parts of the
// standard library this freestanding binary does not have.
package mem

import (
	"unsafe"

	"hypocaust/hv/addr"
)

// Size represents a memory block size in bytes, adapted from the teacher
// kernel's mem.Size.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	KB        = 1024 * Byte
	MB        = 1024 * KB
	GB        = 1024 * MB
)

// Pages returns the number of PageSize pages required to store s bytes.
func (s Size) Pages() uint64 {
	pageSize := Size(addr.PageSize)
	return uint64((s + pageSize - 1) &^ (pageSize - 1) / pageSize)
}

// Memset sets size bytes starting at addr to value. Implemented with
// log2(size) copies instead of a byte-at-a-time loop, the same doubling
// trick the teacher kernel uses for page-granular clears.
func Memset(dst uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	target[0] = value
	for i := uintptr(1); i < size; i *= 2 {
		copy(target[i:], target[:i])
	}
}

// Memcopy copies size bytes from src to dst. The two regions must not
// overlap; callers (temporary-mapping page copies, CoW-style duplication)
// never need overlapping copies.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(src)), size)
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstSlice, srcSlice)
}
