// Command rvhv is the freestanding hypervisor image itself: entry_riscv64.s
// hands off to hvMain below with the booting hart's id and the firmware-
// supplied DTB address, and hv/vmm.Boot takes it from there. Grounded on the
// teacher kernel's kmain package, which plays the same role (the package
// multiboot's bootloader hands off to, immediately before kernel setup
// begins) one level up from here.
package main

import "hypocaust/hv/vmm"

// hvMain is entry_riscv64.s's tail-call target. hartID and dtbAddr arrive in
// a0/a1 exactly as the firmware delivered them; nothing before this point
// has touched them.
func hvMain(hartID int, dtbAddr uintptr) {
	vmm.Boot(hartID, dtbAddr)
}
