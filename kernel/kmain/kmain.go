// Package kmain contains the kernel's top-level boot sequence: the first Go
// code that runs after the rt0 assembly glue has built a minimal g0 and
// handed control to Go.
package kmain

import (
	"secos/kernel"
	"secos/kernel/cpu"
	"secos/kernel/gdt"
	_ "secos/kernel/goruntime"
	"secos/kernel/kfmt/early"
	"secos/kernel/mem/pmm"
	"secos/kernel/mem/vmm"
	"secos/kernel/multiboot"
	"secos/kernel/pic"
	"secos/kernel/serial"
	"secos/kernel/syscall"
	"secos/kernel/task"
	"secos/kernel/trap"
	"secos/kernel/usertask"
)

// PIC IDT vector offsets: master IRQs land at 0x20, right after the CPU's
// own 32 exception vectors; slave IRQs follow at 0x28.
const (
	masterVectorOffset = 0x20
	slaveVectorOffset  = 0x28

	// timerVector is the IDT vector the scheduler's tick handler is
	// registered against: IRQ0 of the master PIC, the system timer.
	timerVector = masterVectorOffset
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Kmain is the kernel entrypoint. main (boot.go) calls it with the address
// of the Multiboot info payload GRUB left in EBX, along with the physical
// bounds of the kernel image as reported by the linker.
//
// Kmain is not expected to return: it ends by entering the scheduler's
// first context switch, which runs task1 and task2 on the CPU's behalf
// forever. If it does return, the rt0 code halts the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	pic.Remap(masterVectorOffset, slaveVectorOffset)

	serial.COM1Port.Init()
	early.SetOutputSink(serial.COM1Port)

	early.Printf("kernel image: %x - %x\n", uint32(kernelStart), uint32(kernelEnd))
	if uint32(kernelEnd) > uint32(pmm.BaseAddr) {
		kernel.Panic(&kernel.Error{Module: "kmain", Message: "kernel image overruns the frame allocator's base address"})
	}

	if multibootInfoPtr != 0 {
		multiboot.LogSummary(multiboot.Parse(multibootInfoPtr))
	}

	gdt.Init()
	trap.Init()

	// The physical frame allocator needs no explicit initialization: its
	// bitmap starts zeroed (all frames free) as part of the Go runtime's
	// own package initialization, before Kmain ever runs.

	// The kernel gets a full address space, not a bare directory: its
	// bitmap page is what vmm.GetCurrent (and through it the Go runtime's
	// heap hooks) relies on once paging is live.
	kernelSpace := vmm.New()
	vmm.SetupIdentityMapping(kernelSpace.Directory())
	cpu.WriteCR3(uint32(kernelSpace.Directory().Address()))
	cpu.EnablePaging()

	syscall.Init()
	trap.Register(timerVector, scheduleTick)

	if _, err := task.New("task1", usertask.Task1Addr(), usertask.Task1Addr(), usertask.Task1End()); err != nil {
		kernel.Panic(err)
	}
	if _, err := task.New("task2", usertask.Task2Addr(), usertask.Task2Addr(), usertask.Task2End()); err != nil {
		kernel.Panic(err)
	}

	// The first switch happens with no interrupt context: there is nothing
	// to save, and round-robin degenerates to simply resuming task1.
	task.Schedule(nil)

	// Use kernel.Panic instead of panic to prevent the compiler from
	// treating kernel.Panic as dead code and eliminating it; Schedule never
	// actually returns.
	kernel.Panic(errKmainReturned)
}

// scheduleTick is the timer interrupt handler: acknowledge the interrupt on
// the PIC before handing off to the scheduler, since NotifyEOI must run on
// the original kernel stack and Schedule never returns back to it.
func scheduleTick(ctx *trap.Context) {
	pic.NotifyEOI(0)
	task.Schedule(ctx)
}
