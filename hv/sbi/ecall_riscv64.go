package sbi

// Args mirrors the registers an SBI call reads and writes: a0-a5 carry
// arguments (and, on return, a0/a1 carry the error/value pair), a6 is the
// function id, a7 is the extension id.
type Args struct {
	A0, A1, A2, A3, A4, A5 uint64
	A6, A7                 uint64
}

// firmwareEcall executes an ecall to the underlying M-mode SBI firmware
// with the registers in args, returning the firmware's a0 (error) and a1
// (value). This is a distinct primitive from the guest-facing proxy below:
// it is the hypervisor acting as an SBI *caller* rather than an SBI
// *implementation*. Implemented in ecall_riscv64.s.
func firmwareEcall(args *Args) (a0, a1 uint64)
