// Package multiboot parses the Multiboot v1 information block GRUB leaves
// behind, and carries the header the bootloader scans for at the start of
// the kernel image. Only the fields this kernel actually consumes
// (diagnostic logging) are modeled; the full Multiboot v1 layout has dozens
// more fields this kernel never reads.
package multiboot

import (
	"unsafe"

	"secos/kernel/kfmt/early"
)

// Header magic/flags per the Multiboot v1 specification. MagicValue
// identifies the image to the bootloader; FlagsValue requests page-aligned
// modules and a memory map. ChecksumValue is the field the loader expects
// to find such that magic+flags+checksum == 0 (mod 2^32).
const (
	MagicValue   = 0x1BADB002
	FlagsValue   = 0x00000003
	ChecksumValue = ^uint32(MagicValue+FlagsValue) + 1
)

// Header is the three-word structure the bootloader scans for, page-
// aligned, near the start of the image. The build glue (out of scope for
// this package) places a Header literal in a dedicated linker section.
type Header struct {
	Magic    uint32
	Flags    uint32
	Checksum uint32
}

// NewHeader returns the single Header value this kernel ships, with its
// checksum computed rather than hand-written so the two can never drift.
func NewHeader() Header {
	return Header{Magic: MagicValue, Flags: FlagsValue, Checksum: ChecksumValue}
}

// Info.Flags bits this kernel consults. Only the memory-map bit is named;
// the rest (framebuffer, APM, boot device, ...) are left as reserved bits
// nobody here inspects.
const (
	flagMemMap = 1 << 6
)

// Info mirrors the subset of the Multiboot v1 information block this
// kernel reads. It is laid out to match the real structure's field offsets
// for Flags, MmapLength and MmapAddr; every field before MmapLength that
// this kernel never consults is kept as raw padding so the offsets line
// up without modeling the full union-heavy upstream struct.
type Info struct {
	Flags uint32

	_ [10]uint32 // mem_lower, mem_upper, boot_device, cmdline, mods_count, mods_addr, syms (4 words)

	MmapLength uint32
	MmapAddr   uint32
}

// MmapEntry describes one entry of the BIOS-reported memory map.
type MmapEntry struct {
	Size uint32
	Addr uint64
	Len  uint64
	Type uint32
}

// maxMmapEntries bounds the diagnostic dump in case a buggy or hostile
// bootloader reports an implausibly large mmap_length.
const maxMmapEntries = 64

// Parse wraps the Multiboot info block at infoPtr. infoPtr is only
// meaningful while running with the identity mapping the kernel installs
// at boot, since it is whatever physical/linear address GRUB left in EBX.
func Parse(infoPtr uintptr) *Info {
	return (*Info)(unsafe.Pointer(infoPtr))
}

// LogSummary writes the diagnostic fields this kernel consults from info to
// the kernel log: flags, mmap length/address, and, if the memory-map flag
// is set, every entry it reports.
func LogSummary(info *Info) {
	early.Printf("multiboot flags: %x\n", info.Flags)
	early.Printf("mmap length: %x, mmap addr: %x\n", info.MmapLength, info.MmapAddr)

	if info.Flags&flagMemMap == 0 || info.MmapAddr == 0 {
		return
	}

	entries := info.MmapLength / uint32(unsafe.Sizeof(MmapEntry{}))
	if entries > maxMmapEntries {
		entries = maxMmapEntries
	}

	base := (*[maxMmapEntries]MmapEntry)(unsafe.Pointer(uintptr(info.MmapAddr)))
	for i := uint32(0); i < entries; i++ {
		e := base[i]
		early.Printf("%x - %x (type %d)\n", uint32(e.Addr), uint32(e.Addr+e.Len), e.Type)
	}
}
