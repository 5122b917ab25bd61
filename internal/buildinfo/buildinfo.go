// Package buildinfo carries the hypervisor's own version, checked by
// cmd/hvimg against a manifest's requires_hv constraint.
package buildinfo

// Version is the hypervisor build version. Bumped by hand alongside any
// change to the TrapContext layout, the guest container format
// (hv/guest.ParseContainer), or any other on-disk/ABI surface a packed
// guest image or board table depends on.
const Version = "0.4.0"
