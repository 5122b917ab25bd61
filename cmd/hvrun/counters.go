package main

import (
	"strconv"
	"strings"
	"sync"
)

// counterSnapshot mirrors hv/vmm.Counters: the guest-side hypervisor prints
// a single "counters: external=%d timer=%d pagefault=%d" line to its own
// console from the before-halt hook hv/vmm installs, which runs just before
// hv.Panic halts the hart, and counterStore parses it back out of
// the relayed console text rather than requiring a second channel back
// into the freestanding binary.
type counterSnapshot struct {
	ExternalIRQs    uint64
	TimerIRQs       uint64
	GuestPageFaults uint64
}

// counterStore holds the latest snapshot parsed off the guest console, read
// concurrently by the debug HTTP handler and the final pprof dump.
type counterStore struct {
	mu   sync.Mutex
	last counterSnapshot
}

func newCounterStore() *counterStore {
	return &counterStore{}
}

func (c *counterStore) Snapshot() counterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

const counterLinePrefix = "counters:"

// observeLine updates the stored snapshot whenever a relayed console line
// looks like "counters: external=12 timer=34 pagefault=0", the format
// hv/vmm's before-halt hook logs via hv/kfmt.
func (c *counterStore) observeLine(line string) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, counterLinePrefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(trimmed, counterLinePrefix))

	var snap counterSnapshot
	for _, f := range fields {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			continue
		}
		switch key {
		case "external":
			snap.ExternalIRQs = n
		case "timer":
			snap.TimerIRQs = n
		case "pagefault":
			snap.GuestPageFaults = n
		}
	}

	c.mu.Lock()
	c.last = snap
	c.mu.Unlock()
}
