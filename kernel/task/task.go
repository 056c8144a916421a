// Package task implements the kernel's fixed-size task table and the
// round-robin scheduler that switches between them. A task's entire saved
// state, while it isn't running, is the kernel stack frame a trap trampoline
// would have built for it: the same Registers/Frame layout trap.Context
// describes. Starting a task for the first time and resuming one that was
// preempted are therefore the same operation: point SP at a Context-shaped
// block of memory and IRETL out of it.
package task

import (
	"unsafe"

	"secos/kernel"
	"secos/kernel/cpu"
	"secos/kernel/gdt"
	"secos/kernel/mem"
	"secos/kernel/mem/pmm"
	"secos/kernel/mem/vmm"
	"secos/kernel/trap"
)

// MaxTasks bounds the fixed task table. Ten slots is generous for the demo
// workloads this kernel runs; a dynamically sized table would need a heap.
const MaxTasks = 10

// prologueBytes is the size, in bytes, of the stack region a trap trampoline
// builds before calling into Go: the eight PUSHAL words, the vector and error
// code words, and the five-word hardware frame (EIP, CS, EFLAGS, ESP, SS)
// pushed on every ring-3-to-ring-0 transition. TSS.ESP0 must always sit this
// many bytes above a task's saved kernelSP, since that's the layout both a
// freshly constructed task and a genuinely preempted one share.
const prologueBytes = uint32(unsafe.Sizeof(trap.Context{}))

// nameLen is the length a task name is truncated to before it is stored.
const nameLen = 16

// userStackPages is the number of pages reserved for a task's ring-3 stack.
const userStackPages = 1

// kernelStackSize is the size of the dedicated kernel-mode stack a task
// switches to when it traps into ring 0. One page is ample: the kernel never
// recurses deeply on a task's behalf before either returning to ring 3 or
// rescheduling.
const kernelStackSize = mem.PageSize

var errTableFull = &kernel.Error{Module: "task", Message: "task table is full"}

// resumeContextFn performs the actual register-restore-and-IRETL that
// transfers control to a task's saved context. It is a real-mode-adjacent
// assembly routine that never returns, so it is swapped out in tests the
// same way panicFn is swapped out elsewhere in this kernel.
var resumeContextFn = resumeContext

// writeCR3Fn installs a new page directory. Swapped out in tests for the
// same reason resumeContextFn is: the real instruction is only valid to
// execute from kernel mode.
var writeCR3Fn = cpu.WriteCR3

// resumeContext is implemented in task_386.s. It loads esp into SP, restores
// the saved GPRs with POPAL, skips the vector/error-code words, and executes
// IRETL.
func resumeContext(esp uint32)

// State describes whether a task table slot is in use.
type State int

const (
	// Free marks a task table slot with no task in it.
	Free State = iota
	// Runnable marks a slot the scheduler may switch to.
	Runnable
)

// Task is one entry of the fixed task table: a task's own address space, and
// the kernel-stack pointer at which its saved register state currently
// lives.
type Task struct {
	Name     string
	State    State
	as       vmm.AddressSpace
	kernelSP uint32
}

var (
	tasks   [MaxTasks]Task
	count   int
	current int
)

// New builds a task ready to run: a fresh address space with the identity
// window installed, the kernel image's [codeStart, codeEnd) range marked
// user-accessible within that address space so the task can execute it, a
// freshly mapped ring-3 stack, and a kernel-stack Context primed to IRETL
// into entry the first time the scheduler switches to this task.
//
// Unlike the construction sequence this mirrors, New never needs to
// temporarily switch CR3 into the new address space to populate it: every
// address space keeps the identity window mapped, so the frames backing the
// new directory and page tables remain directly dereferenceable through
// pmm.Translate regardless of which directory is currently active.
func New(name string, entry, codeStart, codeEnd uintptr) (int, *kernel.Error) {
	if count >= MaxTasks {
		return 0, errTableFull
	}
	if len(name) > nameLen {
		name = name[:nameLen]
	}

	as := vmm.New()
	vmm.SetupIdentityMapping(as.Directory())
	markUserAccessible(as, mem.VirtAddr(codeStart), mem.VirtAddr(codeEnd))

	userStackBase := as.AllocVirtPages(userStackPages, true, true)
	userStackTop := uint32(userStackBase) + userStackPages*mem.PageSize

	kernelSP := newKernelStack()
	ctx := (*trap.Context)(unsafe.Pointer(uintptr(kernelSP)))
	*ctx = trap.Context{}
	ctx.Frame.EIP = uint32(entry)
	ctx.Frame.CS = uint32(gdt.UserCodeSelector)
	ctx.Frame.EFlags = 0x200 // IF set: the task runs with interrupts enabled
	ctx.Frame.ESP = userStackTop
	ctx.Frame.SS = uint32(gdt.UserDataSelector)

	idx := freeSlot()
	tasks[idx] = Task{Name: name, State: Runnable, as: as, kernelSP: kernelSP}
	count++
	return idx, nil
}

// freeSlot returns the first empty task table slot. The capacity check in
// New guarantees one exists.
func freeSlot() int {
	for idx := range tasks {
		if tasks[idx].State == Free {
			return idx
		}
	}
	return 0
}

// markUserAccessible upgrades every identity-mapped page in [start, end) to
// carry the User flag, so ring-3 code can fetch instructions from it. The
// frames are unchanged; only the protection bits in this address space's own
// page tables are touched.
func markUserAccessible(as vmm.AddressSpace, start, end mem.VirtAddr) {
	for addr := start.Align(); addr < end; addr += mem.VirtAddr(mem.PageSize) {
		tr := as.Translate(addr)
		if !tr.Present {
			continue
		}
		var pte vmm.PTE
		pte.SetFlags(vmm.FlagPresent | vmm.FlagUser)
		if tr.Writable {
			pte.SetFlags(vmm.FlagWritable)
		}
		pte.SetAddress(tr.Frame)
		as.MapRaw(addr, pte)
	}
}

// newKernelStack allocates and zeroes a dedicated kernel-mode stack for a
// task and returns the address at which its initial Context should be
// written: prologueBytes below the top of the stack, so that
// kernelSP+prologueBytes is always the empty-stack address the scheduler
// programs into TSS.ESP0.
func newKernelStack() uint32 {
	frame := pmm.AllocZeroed()
	top := uint32(pmm.Translate(frame, kernelStackSize)) + kernelStackSize
	return top - prologueBytes
}

// Schedule is the timer interrupt handler: it saves the interrupted task's
// kernel stack pointer (taken directly from where the trap trampoline left
// ctx), advances round-robin to the next runnable task, installs that task's
// address space and kernel stack, and resumes it. It never returns.
//
// The very first call happens from Kmain with ctx == nil, before any
// interrupt has fired: there is nothing to save, and prev == next == slot 0
// degenerates to simply resuming the task New built.
func Schedule(ctx *trap.Context) {
	if count == 0 {
		kernel.Panic(&kernel.Error{Module: "task", Message: "no tasks to schedule"})
		return
	}

	if ctx != nil {
		tasks[current].kernelSP = uint32(uintptr(unsafe.Pointer(ctx)))
		current = nextRunnable(current)
	}
	next := &tasks[current]

	writeCR3Fn(uint32(next.as.Directory().Address()))
	gdt.SetKernelStack(next.kernelSP + prologueBytes)
	resumeContextFn(next.kernelSP)
}

// nextRunnable advances round-robin from slot from, wrapping modulo the
// table size and skipping empty slots. Schedule's task-count check
// guarantees at least one runnable slot exists.
func nextRunnable(from int) int {
	idx := from
	for i := 0; i < MaxTasks; i++ {
		idx = (idx + 1) % MaxTasks
		if tasks[idx].State == Runnable {
			return idx
		}
	}
	return from
}

// Destroy tears down task idx: every frame its address space owns is
// returned to the physical allocator (see vmm.Directory.Destroy) and the
// slot is cleared so a future New call could reuse it.
//
// Nothing calls Destroy automatically today, since the only way a task
// stops running is the exit syscall, and exit panics rather than returning
// control to the scheduler (see syscall.sysExit). Destroy exists as a
// tested, usable building block for a scheduler revision that reclaims
// exited tasks instead of treating exit as fatal.
func Destroy(idx int) {
	tasks[idx].as.Destroy()
	tasks[idx] = Task{}
	count--
}

// Count reports how many tasks are currently registered.
func Count() int { return count }

// Current reports the index of the task the scheduler last switched to.
func Current() int { return current }
