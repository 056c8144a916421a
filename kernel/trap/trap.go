// Package trap builds and loads the kernel's Interrupt Descriptor Table and
// routes every CPU exception, hardware IRQ and the int 0x80 syscall gate to
// a registered Go handler.
package trap

import (
	"unsafe"

	"secos/kernel"
	"secos/kernel/cpu"
	"secos/kernel/gdt"
	"secos/kernel/kfmt/early"
)

const vectorCount = 256

// Gate type/attribute bytes: present, DPL, 32-bit interrupt gate.
const (
	gateRing0 = 0x8e // present | ring 0 | 32-bit interrupt gate
	gateRing3 = 0xee // present | ring 3 | 32-bit interrupt gate
)

// SyscallVector is the only IDT vector callable directly from ring 3: the
// software interrupt user tasks use to invoke the kernel.
const SyscallVector = 0x80

// CPU exception vectors this package installs handlers for itself.
const (
	DoubleFaultVector = 0x08
	PageFaultVector   = 0x0e
)

// entry packs an IDT gate descriptor into the CPU's native 8-byte layout.
type entry uint64

func newEntry(handlerAddr uint32, selector uint16, typeAttr uint8) entry {
	var e uint64
	e |= uint64(uint16(handlerAddr))
	e |= uint64(selector) << 16
	e |= uint64(typeAttr) << 40
	e |= uint64(uint16(handlerAddr>>16)) << 48
	return entry(e)
}

func (e entry) handlerAddr() uint32 {
	return uint32(e&0xffff) | uint32((e>>48)&0xffff)<<16
}

func (e entry) selector() uint16 { return uint16((e >> 16) & 0xffff) }
func (e entry) typeAttr() uint8  { return uint8((e >> 40) & 0xff) }

var idt [vectorCount]entry

// Handler processes a trap. It may inspect or modify ctx before returning;
// any change to ctx.Frame or ctx.Regs is what the CPU resumes into.
type Handler func(ctx *Context)

var handlers [vectorCount]Handler

// Register installs h as the handler for vector, replacing any handler
// previously registered for it.
func Register(vector uint8, h Handler) {
	handlers[vector] = h
}

// stubAddrs fills out with the address of each of the 256 generated
// trampolines in trap_386.s, in vector order.
func stubAddrs(out *[vectorCount]uint32)

// tablePointer is the packed 6-byte (limit:base) layout LIDT expects.
type tablePointer [6]byte

func newTablePointer(base uint32, limit uint16) tablePointer {
	var p tablePointer
	p[0] = byte(limit)
	p[1] = byte(limit >> 8)
	p[2] = byte(base)
	p[3] = byte(base >> 8)
	p[4] = byte(base >> 16)
	p[5] = byte(base >> 24)
	return p
}

// Init builds a complete 256-entry IDT, pointing every vector at its
// generated trampoline, and loads it. Vector SyscallVector is the only one
// marked callable from ring 3. The two exceptions the kernel gives more than
// a generic dump - the double fault and the page fault - get their handlers
// registered here as well.
func Init() {
	var addrs [vectorCount]uint32
	stubAddrs(&addrs)

	for v := 0; v < vectorCount; v++ {
		attr := uint8(gateRing0)
		if v == SyscallVector {
			attr = gateRing3
		}
		idt[v] = newEntry(addrs[v], gdt.KernelCodeSelector, attr)
	}

	Register(DoubleFaultVector, doubleFaultHandler)
	Register(PageFaultVector, pageFaultHandler)

	ptr := newTablePointer(uint32(uintptr(unsafe.Pointer(&idt[0]))), uint16(vectorCount*8-1))
	cpu.LoadIDT(uint32(uintptr(unsafe.Pointer(&ptr[0]))))
}

var (
	unhandled      = &kernel.Error{Module: "trap", Message: "unhandled trap"}
	errDoubleFault = &kernel.Error{Module: "trap", Message: "double fault"}
	errPageFault   = &kernel.Error{Module: "trap", Message: "page fault"}
)

// panicFn is swapped out by tests so an unhandled-vector panic can be
// observed instead of halting the test process. readCR2Fn and readCR3Fn are
// swapped for the same reason: the MOV-from-control-register instructions
// they wrap fault outside ring 0.
var (
	panicFn   = kernel.Panic
	readCR2Fn = cpu.ReadCR2
	readCR3Fn = cpu.ReadCR3
)

// doubleFaultHandler reports a fault taken while delivering another fault.
// There is no state worth saving at that point.
func doubleFaultHandler(ctx *Context) {
	dumpContext(ctx)
	panicFn(errDoubleFault)
}

// pageFaultHandler reports the linear address whose translation failed,
// which the CPU parks in CR2 before raising the exception.
func pageFaultHandler(ctx *Context) {
	early.Printf("page fault: faulting address %x\n", readCR2Fn())
	dumpContext(ctx)
	panicFn(errPageFault)
}

// dispatch is called by every generated trampoline with a pointer to the
// freshly captured Context. It routes to the registered handler for
// ctx.Number, or panics with a diagnostic dump if there is none.
//
//go:nosplit
func dispatch(ctx *Context) {
	h := handlers[uint8(ctx.Number)]
	if h == nil {
		dumpContext(ctx)
		panicFn(unhandled)
		return
	}
	h(ctx)
}

func dumpContext(ctx *Context) {
	early.Printf("trap %d, error code %x, cr3 %x\n", ctx.Number, ctx.ErrCode, readCR3Fn())
	ctx.Regs.Print()
	ctx.Frame.Print()
}
