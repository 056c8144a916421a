// Package pmmtest lets packages layered on the physical frame allocator run
// their tests as ordinary hosted processes. Kernel code reaches physical
// memory through pmm.Translate, whose default accessor assumes the identity
// window a real boot sets up; inside a test binary those addresses are
// unmapped and dereferencing them would fault. InstallArena swaps in an
// accessor that lazily backs every touched frame with a page of process
// memory instead.
package pmmtest

import (
	"unsafe"

	"secos/kernel/mem"
	"secos/kernel/mem/pmm"
)

// InstallArena replaces pmm's physical-memory accessor with a host-memory
// arena and returns a function that restores the previous accessor.
//
// Accesses must stay within a single frame: arena pages are independent heap
// allocations, so a range crossing a frame boundary has no contiguous
// backing and is rejected outright. Every kernel code path that goes through
// pmm.Translate works frame-at-a-time, so only a broken test trips this.
func InstallArena() (restore func()) {
	pages := make(map[mem.PhysAddr]*[mem.PageSize]byte)

	prev := pmm.SetAccessor(func(addr mem.PhysAddr, size mem.Size) mem.VirtAddr {
		base := addr &^ mem.PhysAddr(mem.PageSize-1)
		offset := uint32(addr - base)
		if offset+uint32(size) > mem.PageSize {
			panic("pmmtest: access crosses a frame boundary")
		}

		page, ok := pages[base]
		if !ok {
			page = new([mem.PageSize]byte)
			pages[base] = page
		}
		return mem.VirtAddr(uintptr(unsafe.Pointer(&page[offset])))
	})

	return func() { pmm.SetAccessor(prev) }
}
