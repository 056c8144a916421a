// Package pic drives the two cascaded 8259 Programmable Interrupt
// Controllers: remapping their IRQ vectors away from the CPU's own
// exception range and acknowledging interrupts once handled.
package pic

import "secos/kernel/cpu"

const (
	masterCommand = 0x20
	masterData    = 0x21
	slaveCommand  = 0xa0
	slaveData     = 0xa1
)

const (
	icw1Init = 0x10 // Initialization - required
	icw1ICW4 = 0x01 // ICW4 present

	icw4_8086 = 0x01 // 8086/88 mode
)

// eoiCommand is the end-of-interrupt command code written back to a PIC
// once its interrupt has been serviced.
const eoiCommand = 0x20

// out8Fn is swapped out by tests to record the ICW programming sequence
// instead of touching real I/O ports.
var out8Fn = cpu.Out8

// Remap reprograms both PICs so that master IRQs 0-7 land on IDT vectors
// [masterOffset, masterOffset+7] and slave IRQs 8-15 land on
// [slaveOffset, slaveOffset+7], moving them out of the CPU exception range
// (vectors 0-31).
func Remap(masterOffset, slaveOffset uint8) {
	// ICW1: begin initialization, cascade mode, ICW4 will follow.
	out8Fn(masterCommand, icw1Init|icw1ICW4)
	out8Fn(slaveCommand, icw1Init|icw1ICW4)

	// ICW2: vector offsets.
	out8Fn(masterData, masterOffset)
	out8Fn(slaveData, slaveOffset)

	// ICW3: tell the master there is a slave wired to IRQ2, and tell the
	// slave its own cascade identity.
	out8Fn(masterData, 4)
	out8Fn(slaveData, 2)

	// ICW4: 8086 mode, normal (non-automatic) EOI.
	out8Fn(masterData, icw4_8086)
	out8Fn(slaveData, icw4_8086)
}

// NotifyEOI acknowledges the interrupt for irq (0-15, as reported by the
// trap dispatcher after subtracting the PIC's IDT vector offset). IRQs 8
// and above require an EOI to the slave PIC as well, since the master only
// sees the cascade line.
func NotifyEOI(irq uint8) {
	if irq >= 8 {
		out8Fn(slaveCommand, eoiCommand)
	}
	out8Fn(masterCommand, eoiCommand)
}
