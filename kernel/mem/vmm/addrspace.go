package vmm

import (
	"unsafe"

	"secos/kernel"
	"secos/kernel/cpu"
	"secos/kernel/mem"
	"secos/kernel/mem/pmm"
)

const (
	// KernelVMemBase is the base virtual address an AddressSpace uses for
	// its own dynamic allocations (AllocVirtPages/FreeVirtPages).
	KernelVMemBase = mem.VirtAddr(0x1337_0000)

	// bitmapAddr is the fixed virtual address at which an AddressSpace
	// maps its own allocator bitmap, one page long, one byte per tracked
	// page starting at KernelVMemBase.
	bitmapAddr = mem.VirtAddr(0xdead_0000)

	// bitmapPages is the number of pages the dynamic allocator bitmap can
	// track: one page (4096 bytes) covers 4096 candidate pages, i.e. 16MiB
	// of dynamic virtual space.
	bitmapPages = mem.PageSize
)

var errNoFreeVirtSpace = &kernel.Error{Module: "vmm", Message: "no free contiguous virtual pages available"}

// AddressSpace pairs a page directory with the bookkeeping needed to hand
// out and reclaim virtual pages above KernelVMemBase on demand.
type AddressSpace struct {
	dir    Directory
	bitmap *[bitmapPages]byte
}

// New creates a fresh address space with its own page directory and a
// freshly allocated, zeroed allocator bitmap mapped at a fixed virtual
// address so it never has to compete with dynamic allocations for space.
func New() AddressSpace {
	dir := NewDirectory()

	frame := pmm.AllocZeroed()
	var pte PTE
	pte.SetFlags(FlagPresent | FlagWritable)
	pte.SetAddress(frame)
	dir.MapRaw(bitmapAddr, pte)

	return AddressSpace{
		dir:    dir,
		bitmap: (*[bitmapPages]byte)(unsafe.Pointer(uintptr(pmm.Translate(frame, mem.PageSize)))),
	}
}

// GetCurrent wraps the address space currently active in CR3. Its bitmap is
// assumed to already be mapped at bitmapAddr, as every AddressSpace created
// via New does.
func GetCurrent() AddressSpace {
	dir := DirectoryFromAddr(mem.PhysAddr(cpu.ReadCR3()))
	return AddressSpace{
		dir:    dir,
		bitmap: (*[bitmapPages]byte)(unsafe.Pointer(uintptr(bitmapAddr))),
	}
}

// Directory returns the page directory backing this address space, e.g. to
// load into CR3 on a context switch.
func (as AddressSpace) Directory() Directory { return as.dir }

// MapRaw installs raw as the page table entry for vaddr.
func (as AddressSpace) MapRaw(vaddr mem.VirtAddr, raw PTE) {
	as.dir.MapRaw(vaddr, raw)
}

// Map installs fresh, zeroed frames covering [vaddr, vaddr+size).
func (as AddressSpace) Map(vaddr mem.VirtAddr, size mem.Size, writable, user bool) {
	as.dir.Map(vaddr, size, writable, user)
}

// Translate reports what, if anything, vaddr currently maps to.
func (as AddressSpace) Translate(vaddr mem.VirtAddr) Translation {
	return as.dir.Translate(vaddr)
}

// AllocVirtPages finds npages contiguous free pages above KernelVMemBase,
// marks them used in the allocator bitmap, backs them with fresh physical
// frames and returns the base virtual address of the mapping. It panics if
// no contiguous run of that size is free.
func (as AddressSpace) AllocVirtPages(npages uint32, writable, user bool) mem.VirtAddr {
	start, err := as.findFreeRun(npages)
	if err != nil {
		kernel.Panic(err)
		return 0
	}

	for i := uint32(0); i < npages; i++ {
		as.bitmap[start+i] = 1
	}

	addr := KernelVMemBase + mem.VirtAddr(start*mem.PageSize)
	as.dir.Map(addr, mem.Size(npages*mem.PageSize), writable, user)
	return addr
}

func (as AddressSpace) findFreeRun(npages uint32) (uint32, *kernel.Error) {
	run := uint32(0)
	for i := uint32(0); i < bitmapPages; i++ {
		if as.bitmap[i] != 0 {
			run = 0
			continue
		}
		run++
		if run == npages {
			return i - npages + 1, nil
		}
	}
	return 0, errNoFreeVirtSpace
}

// Destroy tears down the address space: every dynamically-mapped frame and
// every page table the directory owns is returned to the physical
// allocator (see Directory.Destroy for the identity-window exclusion).
// bitmapAddr lies in the dynamic region, so the bitmap frame is freed as
// part of the same walk, along with the directory frame itself. The
// AddressSpace must not be used again afterwards.
func (as AddressSpace) Destroy() {
	as.dir.Destroy()
}

// FreeVirtPages returns npages pages of a prior AllocVirtPages allocation
// starting at addr: every backing physical frame is released and the
// corresponding allocator bitmap bits are cleared.
func (as AddressSpace) FreeVirtPages(addr mem.VirtAddr, npages uint32) {
	index := (uint32(addr) - uint32(KernelVMemBase)) / mem.PageSize

	for i := uint32(0); i < npages; i++ {
		page := addr + mem.VirtAddr(i*mem.PageSize)
		tr := as.dir.Translate(page)
		if !tr.Present {
			kernel.Panic(ErrNotMapped)
			return
		}
		pmm.Free(tr.Frame)
	}

	for i := uint32(0); i < npages; i++ {
		as.bitmap[index+i] = 0
	}
}
