package pic

import (
	"testing"

	"secos/kernel/cpu"
)

type portWrite struct {
	port uint16
	val  uint8
}

func recordWrites(t *testing.T) *[]portWrite {
	t.Helper()

	var writes []portWrite
	out8Fn = func(port uint16, val uint8) {
		writes = append(writes, portWrite{port, val})
	}
	t.Cleanup(func() { out8Fn = cpu.Out8 })
	return &writes
}

func TestRemapIssuesICWSequence(t *testing.T) {
	writes := recordWrites(t)

	Remap(0x20, 0x28)

	exp := []portWrite{
		{masterCommand, icw1Init | icw1ICW4},
		{slaveCommand, icw1Init | icw1ICW4},
		{masterData, 0x20},
		{slaveData, 0x28},
		{masterData, 4},
		{slaveData, 2},
		{masterData, icw4_8086},
		{slaveData, icw4_8086},
	}

	if len(*writes) != len(exp) {
		t.Fatalf("expected %d port writes; got %d", len(exp), len(*writes))
	}
	for i, w := range exp {
		if (*writes)[i] != w {
			t.Errorf("write %d: expected port %#x <- %#x; got port %#x <- %#x",
				i, w.port, w.val, (*writes)[i].port, (*writes)[i].val)
		}
	}
}

func TestNotifyEOIMasterOnly(t *testing.T) {
	writes := recordWrites(t)

	NotifyEOI(0)

	if len(*writes) != 1 || (*writes)[0] != (portWrite{masterCommand, eoiCommand}) {
		t.Fatalf("expected a single master EOI; got %v", *writes)
	}
}

func TestNotifyEOISlaveIRQAcksBothPICs(t *testing.T) {
	writes := recordWrites(t)

	NotifyEOI(8)

	exp := []portWrite{
		{slaveCommand, eoiCommand},
		{masterCommand, eoiCommand},
	}
	if len(*writes) != len(exp) || (*writes)[0] != exp[0] || (*writes)[1] != exp[1] {
		t.Fatalf("expected slave then master EOI; got %v", *writes)
	}
}
