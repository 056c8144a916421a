// Package goruntime bootstraps the parts of the Go runtime that need a
// backing memory manager before they can run: the page allocator hooks the
// runtime calls into once it needs more heap space.
package goruntime

import (
	"unsafe"

	"secos/kernel/mem"
	"secos/kernel/mem/vmm"
)

// allocVirtPagesFn hands the runtime's heap requests to the active address
// space. It resolves vmm.GetCurrent at call time, not package-init time:
// initializers run before Kmain has built the kernel address space and
// enabled paging, so there is no meaningful CR3 to capture that early.
var allocVirtPagesFn = func(pages uint32, writable, user bool) mem.VirtAddr {
	return vmm.GetCurrent().AllocVirtPages(pages, writable, user)
}

//go:linkname mSysStatInc runtime.mSysStatInc
func mSysStatInc(*uint64, uintptr)

// sysReserve reserves address space for the Go runtime's allocator.
//
// The reference runtime expects sysReserve to set aside address space
// without committing physical memory, leaving sysMap to back it later on
// demand. This kernel has no lazy/copy-on-write mapping (see
// AddressSpace.AllocVirtPages), so the region is mapped and backed by real
// frames immediately; sysMap is consequently a no-op over the same range.
//
//go:redirect-from runtime.sysReserve
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr, reserved *bool) unsafe.Pointer {
	*reserved = true
	if size == 0 {
		return nil
	}

	pages := mem.Size(size).Pages()
	addr := allocVirtPagesFn(pages, true, false)
	return unsafe.Pointer(uintptr(addr))
}

// sysMap is called by the runtime to commit a region previously reserved by
// sysReserve. Since sysReserve already backs its region with real frames,
// this is a pass-through that only updates the runtime's memory-usage
// accounting.
//
//go:redirect-from runtime.sysMap
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, reserved bool, sysStat *uint64) unsafe.Pointer {
	if !reserved {
		panic("sysMap should only be called with reserved=true")
	}

	regionSize := (mem.Size(size) + mem.PageSize - 1) &^ (mem.PageSize - 1)
	mSysStatInc(sysStat, uintptr(regionSize))
	return virtAddr
}

// sysAlloc reserves and maps a fresh region of heap memory in one step,
// returning a pointer to its start.
//
//go:redirect-from runtime.sysAlloc
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	pages := mem.Size(size).Pages()
	addr := allocVirtPagesFn(pages, true, false)
	if addr == 0 {
		return nil
	}

	mSysStatInc(sysStat, uintptr(pages*mem.PageSize))
	return unsafe.Pointer(uintptr(addr))
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var (
		reserved bool
		stat     uint64
		zeroPtr  = unsafe.Pointer(uintptr(0))
	)

	sysReserve(zeroPtr, 0, &reserved)
	sysMap(zeroPtr, 0, reserved, &stat)
	sysAlloc(0, &stat)
}
