package plic

import "unsafe"

// mmioRead32 / mmioWrite32 dereference the real physical PLIC register at
// addr. Host MMIO windows are mapped Linear (identity PA==VA) in
// HostMemorySet, so the physical address doubles as a dereferenceable
// pointer once the host table is active, the same assumption hv/mem/hpt
// makes for its own page-table frames.
func mmioRead32(addr uint64) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(addr)))
}

func mmioWrite32(addr uint64, v uint32) {
	*(*uint32)(unsafe.Pointer(uintptr(addr))) = v
}

// claimPhys reads the claim register for context at base, the physical
// PLIC's claim/complete word for the M/S target identified by context.
func claimPhys(base uint64, context int) uint32 {
	offset := uint64(contextRegionOffset) + uint64(context)*contextStride + 4
	return mmioRead32Fn(base + offset)
}
