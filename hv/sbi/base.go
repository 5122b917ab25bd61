package sbi

// probeExtensionFID is the Base extension's probe_extension function id.
const probeExtensionFID = 3

// ProbeExtension asks firmware whether it implements the SBI extension
// identified by id, via the Base extension's probe_extension call (fid 3,
// spec.md §8 scenario 5 exercises this same call from the guest side). Used
// by hv/vmm's boot sequence to confirm HSM support before relying on it.
func ProbeExtension(id uint64) bool {
	args := Args{A0: id, A6: probeExtensionFID, A7: ExtBase}
	_, value := firmwareEcallFn(&args)
	return value != 0
}
