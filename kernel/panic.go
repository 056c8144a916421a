package kernel

import (
	"secos/kernel/cpu"
	"secos/kernel/kfmt/early"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Panic writes a banner for the supplied cause to the serial log and halts
// the CPU. It never returns: there is no supervisor above this kernel to
// hand an error back to, so allocator exhaustion, unhandled traps and
// rejected syscall arguments all terminate here. The cause is usually one
// of the *Error sentinels the subsystems declare; a plain string or error
// is accepted as well so Panic can stand in as the redirection target for
// the runtime's own panic machinery (resolved via runtime.gopanic).
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
