//go:build qemuvirt

package board

// Current is the board descriptor selected by the qemuvirt build tag: QEMU's
// `-M virt` RISC-V machine, the platform `cmd/hvrun` drives for local
// iteration and CI smoke tests (spec.md §8 scenarios 1-3). Addresses below
// are QEMU virt's well-known fixed memory map; this file is what
// cmd/hvboardgen would regenerate from a board manifest, checked in so the
// freestanding binary never depends on the generator at build time.
var Current = Board{
	ClockFreq: 10000000, // 10 MHz, QEMU virt's fixed CLINT tick rate

	MMIO: []MMIOWindow{
		{Name: "clint", Base: 0x02000000, Size: 0x10000},
		{Name: "plic", Base: 0x0C000000, Size: 0x04000000},
		{Name: "uart0", Base: 0x10000000, Size: 0x100},
	},

	PhysMemBase: 0x80000000,
	PhysMemSize: 0x08000000, // 128 MiB

	KernBase: 0x80200000, // OpenSBI's fw_jump entry address

	GuestDTBAddr: 0x82200000,
	GuestBinAddr: 0x80400000,
	GuestBinSize: 0x00800000, // 8 MiB
}
