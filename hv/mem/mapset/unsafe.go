package mapset

import (
	"unsafe"

	"hypocaust/hv/addr"
)

// rawSlice returns a byte slice over the n bytes at ppn's physical address.
// Like hv/mem/hpt and hv/mem/gpt, this relies on the hypervisor being
// identity-mapped over its own physical memory.
func rawSlice(ppn addr.PhysPageNum, n uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ppn.Addr()))), n)
}
