package gdt

import "testing"

func TestNewDescriptorPacksFlatKernelCodeSegment(t *testing.T) {
	d := newDescriptor(0, 0xfffff, AccessPresent|AccessRing0|AccessSystem|AccessExecutable|AccessRW, FlagsSize32|FlagsPageGranularity)

	limit := uint32(d&0xffff) | (uint32((d>>48)&0xf) << 16)
	if limit != 0xfffff {
		t.Fatalf("expected limit 0xfffff; got %#x", limit)
	}

	base := uint32((d>>16)&0xffff) | (uint32((d>>32)&0xff) << 16) | (uint32((d>>56)&0xff) << 24)
	if base != 0 {
		t.Fatalf("expected base 0; got %#x", base)
	}

	access := uint8((d >> 40) & 0xff)
	want := uint8(AccessPresent | AccessRing0 | AccessSystem | AccessExecutable | AccessRW)
	if access != want {
		t.Fatalf("expected access byte %#x; got %#x", want, access)
	}

	flags := uint8((d >> 52) & 0xf)
	if flags != uint8(FlagsSize32|FlagsPageGranularity) {
		t.Fatalf("expected flags %#x; got %#x", FlagsSize32|FlagsPageGranularity, flags)
	}
}

func TestNewDescriptorEncodesNonZeroBase(t *testing.T) {
	const wantBase = uint32(0x12345678)
	const wantLimit = uint32(0x104)

	d := newDescriptor(wantBase, wantLimit, AccessAccessed|AccessExecutable|AccessPresent, 0)

	base := uint32((d>>16)&0xffff) | (uint32((d>>32)&0xff) << 16) | (uint32((d>>56)&0xff) << 24)
	if base != wantBase {
		t.Fatalf("expected base %#x; got %#x", wantBase, base)
	}

	limit := uint32(d&0xffff) | (uint32((d>>48)&0xf) << 16)
	if limit != wantLimit {
		t.Fatalf("expected limit %#x; got %#x", wantLimit, limit)
	}
}

func TestTablePointerLayout(t *testing.T) {
	p := newTablePointer(0x00101000, 0x2f)

	if got := uint16(p[0]) | uint16(p[1])<<8; got != 0x2f {
		t.Fatalf("expected limit 0x2f at bytes [0:2]; got %#x", got)
	}

	got := uint32(p[2]) | uint32(p[3])<<8 | uint32(p[4])<<16 | uint32(p[5])<<24
	if got != 0x00101000 {
		t.Fatalf("expected base 0x00101000 at bytes [2:6]; got %#x", got)
	}
}

func TestSelectorsAreDistinctAndEntryAligned(t *testing.T) {
	selectors := []uint16{NullSelector, KernelCodeSelector, KernelDataSelector, UserCodeSelector, UserDataSelector, TSSSelector}
	seen := map[uint16]bool{}
	for _, s := range selectors {
		if seen[s] {
			t.Fatalf("duplicate selector value %#x", s)
		}
		seen[s] = true
		// Clear the RPL bits before checking 8-byte alignment.
		if (s&^3)%8 != 0 {
			t.Fatalf("selector %#x is not aligned to an 8-byte GDT entry", s)
		}
	}

	if TSSSelector != 0x28|3 {
		t.Fatalf("expected the task register selector to carry RPL 3; got %#x", TSSSelector)
	}
}

func TestSetKernelStackUpdatesTSS(t *testing.T) {
	tss.ESP0 = 0
	SetKernelStack(0xdeadbeef)
	if tss.ESP0 != 0xdeadbeef {
		t.Fatalf("expected ESP0 to be updated; got %#x", tss.ESP0)
	}
}
