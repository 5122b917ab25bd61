// Package layout exposes the hypervisor's own image boundaries as resolved
// by the linker script (linker.ld): where .text.entry, .text, .rodata, and
// .data/.bss fall once linked. Every function here is body-less, the same
// extern-symbol idiom hv/trap uses for trapEntryAddr — implemented in
// layout_riscv64.s as a bare symbol address load, since a linker-defined
// boundary has no meaningful value until link time and can't be expressed
// as a Go constant.
package layout

// TextStart / TextEnd bound .text.entry and .text together (both executable,
// never written after load).
func TextStart() uintptr
func TextEnd() uintptr

// RodataStart / RodataEnd bound .rodata.
func RodataStart() uintptr
func RodataEnd() uintptr

// DataStart / BssEnd bound .data and .bss together; both are read-write and
// linker.ld places them contiguously so one MapArea covers both.
func DataStart() uintptr
func BssEnd() uintptr

// TrampolinePhys returns the physical address linker.ld assigned to
// .text.trampoline, the page Boot maps at addr.TrampolineVA in every
// address space it builds.
func TrampolinePhys() uintptr
