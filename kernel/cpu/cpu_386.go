// Package cpu provides Go-callable wrappers around the handful of x86
// privileged instructions the kernel needs: port I/O, control-register and
// segment-register access, descriptor table loads, and the halt loop. Each
// function below is declared without a body; its implementation lives in
// the companion cpu_386.s file.
package cpu

// Out8 writes val to the 16-bit I/O port addr.
func Out8(addr uint16, val uint8)

// In8 reads a byte from the 16-bit I/O port addr.
func In8(addr uint16) uint8

// Halt stops instruction execution until the next interrupt, in a loop.
// Does not return.
func Halt()

// DisableInterrupts clears IF, masking maskable interrupts.
func DisableInterrupts()

// EnableInterrupts sets IF, unmasking maskable interrupts.
func EnableInterrupts()

// ReadCR2 returns the faulting linear address recorded by the last page
// fault.
func ReadCR2() uint32

// ReadCR3 returns the physical address of the currently active page
// directory.
func ReadCR3() uint32

// WriteCR3 installs addr as the physical address of the active page
// directory and implicitly flushes the TLB.
func WriteCR3(addr uint32)

// EnablePaging sets CR0.PG, turning on the MMU. Must only be called once a
// valid page directory has been installed via WriteCR3.
func EnablePaging()

// LoadGDT loads the GDT register from the 6-byte pointer at gdtPtrAddr
// (limit:base, the layout gdt's newTablePointer builds), reloads
// DS/ES/FS/GS/SS with dataSelector, then reloads CS with codeSelector
// through a far return.
func LoadGDT(gdtPtrAddr uint32, codeSelector, dataSelector uint16)

// LoadIDT loads the IDT register from the 6-byte pointer at idtPtrAddr.
func LoadIDT(idtPtrAddr uint32)

// LoadTaskRegister loads the task register with selector.
func LoadTaskRegister(selector uint16)

// GetESP returns the current stack pointer.
func GetESP() uint32

// SetESP overwrites the current stack pointer. Only safe to call from
// assembly trampolines that do not return normally through Go's call
// convention afterwards.
func SetESP(val uint32)
