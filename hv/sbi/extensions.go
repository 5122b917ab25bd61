package sbi

// Extension IDs accepted by Proxy, per spec.md §4.7. Any extension not
// listed here is fatal — in particular this deliberately excludes the
// legacy shutdown (8) and SRST (0x53525354) extensions, so a guest can
// never reset or power off the platform through this hypervisor.
const (
	ExtBase           uint64 = 0x10
	ExtLegacySetTimer uint64 = 0x0
	ExtLegacyPutchar  uint64 = 0x1
	ExtLegacyGetchar  uint64 = 0x2
	ExtTimer          uint64 = 0x54494D45
	ExtRemoteFence    uint64 = 0x52464E43
	ExtPMU            uint64 = 0x504D55
)
