package early

import (
	"bytes"
	"testing"
)

func TestPrintf(t *testing.T) {
	specs := []struct {
		format string
		args   []interface{}
		exp    string
	}{
		{"hello", nil, "hello"},
		{"%s\n", []interface{}{"hello"}, "hello\n"},
		{"%d", []interface{}{42}, "42"},
		{"%5d", []interface{}{42}, "   42"},
		{"%x", []interface{}{uint32(255)}, "0xff"},
		{"%o", []interface{}{uint8(8)}, "10"},
		{"%t %t", []interface{}{true, false}, "true false"},
		{"%d", nil, "(MISSING)"},
		{"%d", []interface{}{1, 2}, "1%!(EXTRA)"},
	}

	for _, spec := range specs {
		var buf bytes.Buffer
		SetOutputSink(&buf)
		Printf(spec.format, spec.args...)
		if got := buf.String(); got != spec.exp {
			t.Errorf("Printf(%q, %v): expected %q; got %q", spec.format, spec.args, spec.exp, got)
		}
	}
}

func TestFprintfWritesToSuppliedWriter(t *testing.T) {
	var sinkBuf, directBuf bytes.Buffer
	SetOutputSink(&sinkBuf)

	Fprintf(&directBuf, "cr3 %x", uint32(0x1000))

	if got, exp := directBuf.String(), "cr3 0x1000"; got != exp {
		t.Fatalf("expected %q; got %q", exp, got)
	}
	if sinkBuf.Len() != 0 {
		t.Fatalf("expected the sink to stay untouched; got %q", sinkBuf.String())
	}
}

func TestPrintfBuffersBeforeSinkIsSet(t *testing.T) {
	sink = nil
	earlyBuf = ringBuffer{}

	Printf("buffered %d\n", 1)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if got, exp := buf.String(), "buffered 1\n"; got != exp {
		t.Fatalf("expected flushed ring buffer contents %q; got %q", exp, got)
	}
}
