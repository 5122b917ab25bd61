package trap

import (
	"unsafe"

	"hypocaust/hv/addr"
)

// contextPointer returns the raw TrapContext address, identity-mapped the
// same way every other package under hv/mem is.
func contextPointer() unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr.TrapContextVA))
}
