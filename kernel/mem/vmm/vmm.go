// Package vmm implements the kernel's virtual memory manager: 32-bit
// two-level page tables (Directory, PDE, PTE) and a per-address-space
// bitmap allocator (AddressSpace) for handing out virtual pages on demand.
//
// Unlike a recursively self-mapped page directory, every address space here
// keeps the first mem.IdentityWindowSize bytes of physical memory
// identity-mapped (virtual address == physical address). That lets the
// kernel dereference a page directory or page table's own backing frame
// directly, through pmm.Translate, without ever walking page tables to
// reach page tables.
package vmm

import (
	"secos/kernel/mem"
	"secos/kernel/mem/pmm"
)

// SetupIdentityMapping installs a 1:1 mapping of the first
// mem.IdentityWindowSize bytes of physical memory into dir, so that once
// paging is enabled with dir loaded, every physical address the kernel
// already knows about (its own image, the frame allocator's bitmap, newly
// allocated page tables) remains reachable at the same virtual address.
func SetupIdentityMapping(dir Directory) {
	for paddr := mem.PhysAddr(0); uint32(paddr) < uint32(mem.IdentityWindowSize); paddr += mem.PhysAddr(mem.PageSize) {
		var pte PTE
		pte.SetFlags(FlagPresent | FlagWritable)
		pte.SetAddress(paddr)
		dir.MapRaw(mem.VirtAddr(paddr), pte)
	}
}

// Frame is a convenience alias used by callers that only care about a bare
// physical page frame address returned from the allocator.
type Frame = mem.PhysAddr

// AllocFrame is a thin pass-through to the physical frame allocator kept
// here so callers that only import vmm don't also need to import pmm.
func AllocFrame() mem.PhysAddr { return pmm.Alloc() }
