// Package guest owns the per-guest control structures: the parsed kernel
// image (image.go), the guest's G-stage MemorySet, and the small slice of
// state the VMM needs to resume it (spec.md's Guest entity in §3). Grounded
// on the teacher kernel's process/task control block, narrowed to the one
// thing this design actually schedules: a single vCPU per guest, run
// cooperatively to completion of each trap.
package guest

import (
	"hypocaust/hv"
	"hypocaust/hv/mem/mapset"
)

// MaxGuests bounds the VMM's guest slot array; guest ids are dense small
// integers indexing directly into it; spec.md never specifies a value,
// so this picks the smallest number that comfortably covers the single
// hart / single active guest the current design runs (id 0) while leaving
// room to grow without resizing the slot array (a design spec.md's "Arena
// + indices" note explicitly calls for: no hash map, no resizing).
const MaxGuests = 8

// DeviceBase is one entry from the guest's device tree: a named MMIO
// region's guest-physical base address, as discovered by DTB parsing
// during boot (spec.md §4.10).
type DeviceBase struct {
	Name string
	Base uintptr
}

// Metadata is the subset of the guest's DTB the hypervisor itself consults:
// its RAM extent (for the guest-RAM linear window and sanity-checking
// PT_LOAD segments) and any device bases beyond the PLIC the board
// description did not already know about.
type Metadata struct {
	MemoryBase uintptr
	MemorySize uintptr
	Devices    []DeviceBase
}

// Event is a pending asynchronous notification for a guest's vCPU, held in
// the guest's queue by PushEvent until DrainEvents returns it. Neither the
// trap dispatcher nor hv/vmm's IRQ and timer forwarders push or drain
// events; the forwarders set the virtual interrupt bits directly.
type Event int

const (
	// EventExternalIRQ records that ForwardIRQ already set VSEIP; nothing
	// further is owed to the guest beyond what hv/plic already did.
	EventExternalIRQ Event = iota
	// EventTimerIRQ records that InjectTimerIRQ already set VSTIP.
	EventTimerIRQ
)

var errNotRegistered = &hv.Error{Module: "guest", Message: "operation on an unregistered guest slot"}

// Guest is one running guest: its id, its G-stage address space, the entry
// point its TrapContext was seeded with, and whatever its DTB told the
// hypervisor about its own layout.
type Guest struct {
	ID         int
	MemorySet  *mapset.MemorySet
	Entry      uint64
	Metadata   Metadata
	registered bool

	pending []Event
}

// New constructs a Guest for id, wrapping an already-built G-stage
// MemorySet and the entry point recovered from its ELF image. It does not
// touch the VMM singleton; the caller (hv/vmm's boot sequence) registers it
// into the guest slot array itself, keeping ownership strictly VMM-owns-
// Guest as spec.md's "Cyclic ownership" note requires.
func New(id int, ms *mapset.MemorySet, entry uint64, md Metadata) *Guest {
	return &Guest{ID: id, MemorySet: ms, Entry: entry, Metadata: md, registered: true}
}

// PushEvent enqueues an asynchronous event for this guest's vCPU. Panics if
// called on a zero Guest that was never handed back from New.
func (g *Guest) PushEvent(e Event) {
	if !g.registered {
		hv.Panic(errNotRegistered)
	}
	g.pending = append(g.pending, e)
}

// DrainEvents returns and clears every pending event, or returns nil when
// none are pending.
func (g *Guest) DrainEvents() []Event {
	if len(g.pending) == 0 {
		return nil
	}
	events := g.pending
	g.pending = nil
	return events
}
