package vmm

import "secos/kernel/mem"

// EntryFlag describes a bit that can be set on a page directory or page
// table entry. The low 12 bits of both entry kinds share the same layout;
// PTE adds a couple of bits (Dirty, Global) that have no meaning on a PDE.
type EntryFlag uint32

// Page directory/table entry flags, matching the layout of the x86 32-bit
// non-PAE paging structures.
const (
	FlagPresent      EntryFlag = 1 << 0
	FlagWritable     EntryFlag = 1 << 1
	FlagUser         EntryFlag = 1 << 2
	FlagWriteThrough EntryFlag = 1 << 3
	FlagCacheDisable EntryFlag = 1 << 4
	FlagAccessed     EntryFlag = 1 << 5
	FlagDirty        EntryFlag = 1 << 6 // PTE only
	FlagLarge        EntryFlag = 1 << 7 // PDE only: this entry maps a 4MiB page
	FlagGlobal       EntryFlag = 1 << 8 // PTE only
)

const entryAddrMask = ^uint32(0xfff)

// PDE is a single page directory entry: either the address of a page table
// (the common case) or, with FlagLarge set, the address of a 4MiB page.
type PDE uint32

// HasFlags reports whether every bit in flags is set on the entry.
func (e PDE) HasFlags(flags EntryFlag) bool {
	return uint32(e)&uint32(flags) == uint32(flags)
}

// SetFlags sets the given bits on the entry, leaving the rest untouched.
func (e *PDE) SetFlags(flags EntryFlag) {
	*e = PDE(uint32(*e) | uint32(flags))
}

// ClearFlags clears the given bits on the entry, leaving the rest untouched.
func (e *PDE) ClearFlags(flags EntryFlag) {
	*e = PDE(uint32(*e) &^ uint32(flags))
}

// Address returns the physical address of the page table this entry points
// to (or of the 4MiB page, if FlagLarge is set).
func (e PDE) Address() mem.PhysAddr {
	return mem.PhysAddr(uint32(e) & entryAddrMask)
}

// SetAddress points the entry at addr, which must be page-aligned; the flag
// bits are preserved.
func (e *PDE) SetAddress(addr mem.PhysAddr) {
	*e = PDE((uint32(addr) & entryAddrMask) | (uint32(*e) & ^entryAddrMask))
}

// PTE is a single page table entry, mapping one 4KiB page frame.
type PTE uint32

// HasFlags reports whether every bit in flags is set on the entry.
func (e PTE) HasFlags(flags EntryFlag) bool {
	return uint32(e)&uint32(flags) == uint32(flags)
}

// SetFlags sets the given bits on the entry, leaving the rest untouched.
func (e *PTE) SetFlags(flags EntryFlag) {
	*e = PTE(uint32(*e) | uint32(flags))
}

// ClearFlags clears the given bits on the entry, leaving the rest untouched.
func (e *PTE) ClearFlags(flags EntryFlag) {
	*e = PTE(uint32(*e) &^ uint32(flags))
}

// Address returns the physical frame address this entry maps.
func (e PTE) Address() mem.PhysAddr {
	return mem.PhysAddr(uint32(e) & entryAddrMask)
}

// SetAddress points the entry at the page frame addr, which must be
// page-aligned; the flag bits are preserved.
func (e *PTE) SetAddress(addr mem.PhysAddr) {
	*e = PTE((uint32(addr) & entryAddrMask) | (uint32(*e) & ^entryAddrMask))
}
