// Package hv contains the types shared across every freestanding package of
// the hypervisor: the error representation and the panic path.
package hv

import (
	"hypocaust/hv/csr"
	"hypocaust/hv/kfmt"
)

// Error describes a hypervisor error. All errors are defined as package-level
// *Error variables rather than created with errors.New, because large parts
// of this tree run before a heap allocator exists and errors.New's wrapping
// of a dynamically allocated string would be unsafe to rely on that early.
type Error struct {
	// Module names the package that raised the error.
	Module string

	// Message is a short, human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

var (
	panicHaltFn = csr.Halt

	// beforeHaltFn, if set, runs once just before Panic halts the hart.
	// hv/vmm installs it to print a final counters line (see
	// SetBeforeHalt) so a host-side tool watching the guest console has
	// something to parse before the hart goes silent for good; nil by
	// default so packages that never call SetBeforeHalt (and every test
	// in this package) see no behavior change.
	beforeHaltFn func()

	errUnknownPanic = &Error{Module: "hv", Message: "unknown cause"}
)

// SetBeforeHalt installs fn to run immediately before Panic halts the hart.
// Only hv/vmm's boot sequence calls this; it exists here, rather than as a
// parameter threaded through every call to Panic, because Panic is called
// from packages deep in the call stack that have no reason to know about
// counters.
func SetBeforeHalt(fn func()) {
	beforeHaltFn = fn
}

// Panic prints the supplied cause to the console and halts the hart. Calls to
// Panic never return. It is the terminal step of the error-propagation policy
// described for the dispatcher: at most one error is captured per vmexit and,
// once the VMM lock has been released, it is reported here.
func Panic(cause interface{}) {
	var err *Error

	switch t := cause.(type) {
	case *Error:
		err = t
	case string:
		errUnknownPanic.Message = t
		err = errUnknownPanic
	case error:
		errUnknownPanic.Message = t.Error()
		err = errUnknownPanic
	case nil:
		err = nil
	}

	kfmt.Printf("\n-----------------------------------\n")
	if err != nil {
		kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	kfmt.Printf("*** hypervisor panic: hart halted ***\n")
	kfmt.Printf("-----------------------------------\n")

	if beforeHaltFn != nil {
		beforeHaltFn()
	}

	panicHaltFn()
}
