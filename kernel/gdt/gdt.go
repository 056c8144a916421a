// Package gdt installs the kernel's Global Descriptor Table: a fixed,
// six-entry flat segmentation layout (null, kernel code, kernel data, user
// code, user data, TSS) plus the single Task State Segment the CPU
// consults on every ring-3-to-ring-0 transition.
package gdt

import (
	"unsafe"

	"secos/kernel/cpu"
)

// Access rights bits for a segment descriptor's access byte.
const (
	AccessPresent    = 1 << 7
	AccessRing0      = 0 << 5
	AccessRing3      = 3 << 5
	AccessSystem     = 1 << 4 // S bit: set for code/data, clear for system descriptors such as the TSS
	AccessExecutable = 1 << 3
	AccessConforming = 1 << 2
	AccessRW         = 1 << 1
	AccessAccessed   = 1 << 0
)

// Flags bits, packed into the upper nibble alongside the limit's top bits.
const (
	FlagsPageGranularity = 1 << 3
	FlagsSize32          = 1 << 2
)

// Segment selectors. Each is simply the entry's byte offset into the GDT;
// the user selectors additionally carry RPL 3 so they can be loaded
// straight from ring 3. The TSS selector carries RPL 3 as well: the task
// register is only ever loaded from ring 0, where the requested privilege
// is ignored, but the value is kept as the hardware observes it.
const (
	NullSelector       uint16 = 0x00
	KernelCodeSelector uint16 = 0x08
	KernelDataSelector uint16 = 0x10
	UserCodeSelector   uint16 = 0x18 | 3
	UserDataSelector   uint16 = 0x20 | 3
	TSSSelector        uint16 = 0x28 | 3
)

const entryCount = 6

var entries [entryCount]uint64

// TaskStateSegment mirrors the x86 hardware TSS layout. This kernel never
// performs a hardware task switch, so only ESP0/SS0 are meaningful: they
// tell the CPU which stack to load when an interrupt arrives while
// executing a ring-3 task.
type TaskStateSegment struct {
	PrevTSS uint32
	ESP0    uint32
	SS0     uint32

	esp1, ss1 uint32
	esp2, ss2 uint32
	cr3       uint32
	eip       uint32
	eflags    uint32
	eax, ecx  uint32
	edx, ebx  uint32
	esp, ebp  uint32
	esi, edi  uint32
	es, cs    uint32
	ss, ds    uint32
	fs, gs    uint32
	ldt       uint32
	trap      uint16
	iomapBase uint16
}

var tss TaskStateSegment

// newDescriptor packs base, limit, access and flags into the 8-byte
// little-endian layout the CPU expects for a segment descriptor.
func newDescriptor(base, limit uint32, access, flags uint8) uint64 {
	var d uint64
	d |= uint64(limit) & 0xffff
	d |= (uint64(base) & 0xffff) << 16
	d |= (uint64(base>>16) & 0xff) << 32
	d |= uint64(access) << 40
	d |= (uint64(limit>>16) & 0xf) << 48
	d |= (uint64(flags) & 0xf) << 52
	d |= (uint64(base>>24) & 0xff) << 56
	return d
}

// tablePointer is the packed 6-byte (limit:base) structure LGDT and LIDT
// both expect; built as a raw byte array rather than a Go struct to avoid
// any compiler-inserted padding between the two fields.
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

func tssDescriptor() uint64 {
	base := uint32(uintptr(unsafe.Pointer(&tss)))
	limit := uint32(unsafe.Sizeof(tss))
	return newDescriptor(base, limit, AccessAccessed|AccessExecutable|AccessPresent, 0)
}

// Init builds the GDT, loads it, reloads every segment register and loads
// the task register with the single TSS. Must run once, early in boot,
// before any ring-3 task is started.
func Init() {
	entries[0] = 0
	entries[1] = newDescriptor(0, 0xfffff, AccessPresent|AccessRing0|AccessSystem|AccessExecutable|AccessRW, FlagsSize32|FlagsPageGranularity)
	entries[2] = newDescriptor(0, 0xfffff, AccessPresent|AccessRing0|AccessSystem|AccessRW, FlagsSize32|FlagsPageGranularity)
	entries[3] = newDescriptor(0, 0xfffff, AccessPresent|AccessRing3|AccessSystem|AccessExecutable|AccessRW, FlagsSize32|FlagsPageGranularity)
	entries[4] = newDescriptor(0, 0xfffff, AccessPresent|AccessRing3|AccessSystem|AccessRW, FlagsSize32|FlagsPageGranularity)
	entries[5] = tssDescriptor()

	ptr := newTablePointer(uint32(uintptr(unsafe.Pointer(&entries[0]))), uint16(entryCount*8-1))
	cpu.LoadGDT(uint32(uintptr(unsafe.Pointer(&ptr[0]))), KernelCodeSelector, KernelDataSelector)

	tss.SS0 = uint32(KernelDataSelector)
	tss.ESP0 = 0
	cpu.LoadTaskRegister(TSSSelector)
}

// SetKernelStack updates TSS.ESP0, the stack the CPU switches to whenever a
// ring-3 task re-enters ring 0 through an interrupt or syscall. The
// scheduler calls this on every context switch.
func SetKernelStack(esp uint32) {
	tss.ESP0 = esp
}
