package vmm

import (
	"unsafe"

	"secos/kernel"
	"secos/kernel/mem"
	"secos/kernel/mem/pmm"
)

// ErrNotMapped is returned when translating a virtual address that has no
// present mapping.
var ErrNotMapped = &kernel.Error{Module: "vmm", Message: "virtual address is not mapped"}

const entriesPerTable = 1024

func pdeIndex(vaddr mem.VirtAddr) uint32 { return (uint32(vaddr) >> 22) & 0x3ff }
func pteIndex(vaddr mem.VirtAddr) uint32 { return (uint32(vaddr) >> 12) & 0x3ff }

// Directory is a page directory: the top level of the two-level 32-bit
// paging structure used by every address space. Its backing frame, and
// every page table frame it references, lies within the identity window so
// the kernel can always dereference it directly without a temporary
// mapping.
type Directory struct {
	frame mem.PhysAddr
}

// NewDirectory allocates and zeroes a fresh page directory.
func NewDirectory() Directory {
	return Directory{frame: pmm.AllocZeroed()}
}

// DirectoryFromAddr wraps an existing page directory frame, e.g. the one
// currently loaded in CR3.
func DirectoryFromAddr(frame mem.PhysAddr) Directory {
	return Directory{frame: frame}
}

// Address returns the physical address of the directory's backing frame,
// suitable for loading into CR3.
func (d Directory) Address() mem.PhysAddr { return d.frame }

func entryAddr(tableFrame mem.PhysAddr, index uint32) mem.PhysAddr {
	return tableFrame + mem.PhysAddr(index*4)
}

func (d Directory) pde(index uint32) *PDE {
	vaddr := pmm.Translate(entryAddr(d.frame, index), 4)
	return (*PDE)(unsafe.Pointer(uintptr(vaddr)))
}

func pteAt(tableFrame mem.PhysAddr, index uint32) *PTE {
	vaddr := pmm.Translate(entryAddr(tableFrame, index), 4)
	return (*PTE)(unsafe.Pointer(uintptr(vaddr)))
}

// tableFor returns the frame of the page table backing pdeIdx, allocating
// and wiring a fresh one into the directory if none is present yet.
func (d Directory) tableFor(pdeIdx uint32) mem.PhysAddr {
	pde := d.pde(pdeIdx)
	if !pde.HasFlags(FlagPresent) {
		table := pmm.AllocZeroed()
		pde.SetAddress(table)
		// User is set at the directory level unconditionally; whether a
		// page is actually reachable from ring 3 is decided by the PTE,
		// which is the level Map and MapRaw control.
		pde.SetFlags(FlagPresent | FlagWritable | FlagUser)
		return table
	}
	return pde.Address()
}

// MapRaw installs raw as the page table entry for vaddr, allocating a new
// page table for the covering 4MiB region if one isn't already present.
// Calling MapRaw again for the same vaddr overwrites the previous entry.
func (d Directory) MapRaw(vaddr mem.VirtAddr, raw PTE) {
	table := d.tableFor(pdeIndex(vaddr))
	*pteAt(table, pteIndex(vaddr)) = raw
}

// Map installs a fresh, zeroed physical frame for every page in
// [vaddr, vaddr+size), with the given protection bits. size is rounded up
// to a whole number of pages.
func (d Directory) Map(vaddr mem.VirtAddr, size mem.Size, writable, user bool) {
	var flags EntryFlag = FlagPresent
	if writable {
		flags |= FlagWritable
	}
	if user {
		flags |= FlagUser
	}

	pages := size.Pages()
	base := vaddr.Align()
	for i := uint32(0); i < pages; i++ {
		frame := pmm.AllocZeroed()
		var pte PTE
		pte.SetFlags(flags)
		pte.SetAddress(frame)
		d.MapRaw(base+mem.VirtAddr(i*mem.PageSize), pte)
	}
}

// Translation describes the result of walking a virtual address through a
// page directory.
type Translation struct {
	PDEAddr  mem.PhysAddr
	PTEAddr  mem.PhysAddr
	Frame    mem.PhysAddr
	Present  bool
	Writable bool
	User     bool
}

// Destroy walks every present PDE in the directory, frees every present
// PTE's backing frame and then the page table frame itself, and finally
// frees the directory's own backing frame.
//
// The identity window (every virtual address below mem.IdentityWindowSize)
// is excluded from PTE target frees: those entries were installed by
// SetupIdentityMapping pointing straight at physical addresses the
// directory never obtained from the allocator (frame 0, the kernel image,
// ...), so freeing them would hand pmm frames it never allocated out from
// under the rest of the kernel. The page-table frames backing the identity
// window are still freed, since tableFor allocates a fresh one per
// directory for every PDE it populates, identity-mapped or not.
//
// Destroy does not special-case shared mappings installed by mmap_shared:
// those mappings sit at virtual addresses above the identity window like
// any other dynamic mapping, so destroying a task that used mmap_shared
// would free a frame
// other tasks may still reference. This mirrors the resource-lifecycle
// limitation acknowledged in the design notes; Destroy is the teardown
// primitive named there, not a safe call for every possible task history.
func (d Directory) Destroy() {
	for pdeIdx := uint32(0); pdeIdx < entriesPerTable; pdeIdx++ {
		pde := d.pde(pdeIdx)
		if !pde.HasFlags(FlagPresent) {
			continue
		}

		table := pde.Address()
		pdeBase := pdeIdx << 22
		for pteIdx := uint32(0); pteIdx < entriesPerTable; pteIdx++ {
			pte := pteAt(table, pteIdx)
			if !pte.HasFlags(FlagPresent) {
				continue
			}
			vaddr := pdeBase | (pteIdx << 12)
			if vaddr >= uint32(mem.IdentityWindowSize) {
				pmm.Free(pte.Address())
			}
		}
		pmm.Free(table)
	}
	pmm.Free(d.frame)
}

// Translate walks vaddr through the directory and reports the physical
// frame it maps to, if any. A Translation with Present == false means the
// address is currently unmapped.
func (d Directory) Translate(vaddr mem.VirtAddr) Translation {
	pdeIdx := pdeIndex(vaddr)
	pde := d.pde(pdeIdx)

	t := Translation{PDEAddr: entryAddr(d.frame, pdeIdx)}
	if !pde.HasFlags(FlagPresent) {
		return t
	}

	table := pde.Address()
	pteIdx := pteIndex(vaddr)
	t.PTEAddr = entryAddr(table, pteIdx)

	pte := pteAt(table, pteIdx)
	if !pte.HasFlags(FlagPresent) {
		return t
	}

	t.Present = true
	t.Writable = pte.HasFlags(FlagWritable)
	t.User = pte.HasFlags(FlagUser)
	t.Frame = pte.Address()
	return t
}
