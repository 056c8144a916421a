package main

import "secos/kernel/kmain"

// multibootInfoPtr, kernelStart and kernelEnd are written by the out-of-scope
// rt0 assembly before it jumps to main: multibootInfoPtr is whatever address
// GRUB left in EBX, and kernelStart/kernelEnd bound the kernel image as
// reported by the linker script.
var (
	multibootInfoPtr uintptr
	kernelStart      uintptr
	kernelEnd        uintptr
)

// main is the only Go symbol visible from the rt0 initialization code. It
// works as a trampoline for calling the actual kernel entrypoint
// (kmain.Kmain) and is intentionally defined to prevent the Go compiler from
// optimizing away the actual kernel code, since it has no visibility into
// the rt0 code that calls it.
//
// main is not expected to return. If it does, the rt0 code will halt the
// CPU.
func main() {
	kmain.Kmain(multibootInfoPtr, kernelStart, kernelEnd)
}
