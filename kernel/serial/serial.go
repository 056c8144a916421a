// Package serial drives the COM1 UART. It is the kernel's only output
// device; every diagnostic, panic dump and user write() syscall eventually
// funnels through it.
package serial

import (
	"secos/kernel/cpu"
	"secos/kernel/sync"
)

// COM1 is the standard ISA I/O port base for the first serial adapter.
const COM1 = 0x3F8

const (
	portData         = 0
	portIntEnable    = 1
	portDivisorLo    = 0
	portDivisorHi    = 1
	portFIFOControl  = 2
	portLineControl  = 3
	portModemControl = 4
	portLineStatus   = 5
)

const (
	lineStatusTxEmpty = 1 << 5
)

// Port drives a single 16550-compatible UART at 8 data bits, no parity, one
// stop bit (8N1).
type Port struct {
	base uint16
	lock sync.Spinlock
}

// COM1Port is the process-wide serial port used for all kernel logging.
var COM1Port = &Port{base: COM1}

// Init programs the UART for 115200 baud, 8N1, and enables the transmit/
// receive FIFOs.
func (p *Port) Init() {
	cpu.Out8(p.base+portIntEnable, 0x00)    // disable all interrupts
	cpu.Out8(p.base+portLineControl, 0x80)  // enable DLAB to set baud divisor
	cpu.Out8(p.base+portDivisorLo, 0x01)    // divisor = 1 -> 115200 baud
	cpu.Out8(p.base+portDivisorHi, 0x00)
	cpu.Out8(p.base+portLineControl, 0x03)  // 8 bits, no parity, one stop bit
	cpu.Out8(p.base+portFIFOControl, 0xC7)  // enable FIFO, clear, 14-byte threshold
	cpu.Out8(p.base+portModemControl, 0x0B) // IRQs disabled, RTS/DSR set
}

func (p *Port) txReady() bool {
	return cpu.In8(p.base+portLineStatus)&lineStatusTxEmpty != 0
}

// WriteByte blocks until the transmit holding register is empty and sends b.
func (p *Port) WriteByte(b byte) {
	for !p.txReady() {
	}
	cpu.Out8(p.base+portData, b)
}

// Write sends every byte of buf, locking the port for the duration of the
// call so that concurrent log lines from different traps never interleave.
func (p *Port) Write(buf []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for _, b := range buf {
		if b == '\n' {
			p.WriteByte('\r')
		}
		p.WriteByte(b)
	}
	return len(buf), nil
}
