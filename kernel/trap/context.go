package trap

import "secos/kernel/kfmt/early"

// Registers is a snapshot of the general-purpose registers at the moment a
// trap fired, laid out in exactly the order PUSHAL stores them in the
// generated trampolines. ESP is the stack pointer value PUSHAL captured
// mid-sequence; POPAL discards it on restore, so editing it has no effect.
type Registers struct {
	EDI uint32
	ESI uint32
	EBP uint32
	ESP uint32
	EBX uint32
	EDX uint32
	ECX uint32
	EAX uint32
}

// Print writes a dump of the registers to the kernel log.
func (r *Registers) Print() {
	early.Printf("eax %x ecx %x edx %x ebx %x\n", r.EAX, r.ECX, r.EDX, r.EBX)
	early.Printf("ebp %x esi %x edi %x\n", r.EBP, r.ESI, r.EDI)
}

// Frame is the portion of the trap frame the CPU itself pushes before
// transferring control to a trampoline. ESP and SS are only filled in by
// the CPU when the trap crossed a privilege level (e.g. a ring-3 task
// taking a timer interrupt or making a syscall); for a same-ring trap they
// hold whatever was already on the stack below the frame and should not be
// read.
type Frame struct {
	EIP    uint32
	CS     uint32
	EFlags uint32
	ESP    uint32
	SS     uint32
}

// Print writes a dump of the frame to the kernel log.
func (f *Frame) Print() {
	early.Printf("eip %x cs %x eflags %x\n", f.EIP, f.CS, f.EFlags)
}

// Context describes everything known about a trap at the moment its
// handler runs: which vector fired, the error code the CPU supplied (or -1
// if the vector has none), the saved registers and the hardware frame.
// A *Context points directly into the interrupted task's kernel stack, so
// a handler that edits it changes what IRETL resumes into - this is how
// the scheduler performs a context switch from inside the timer handler.
type Context struct {
	Regs    Registers
	Number  uint32
	ErrCode uint32
	Frame   Frame
}
