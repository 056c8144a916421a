package vmm

import (
	"testing"

	"secos/kernel/mem"
)

func TestPDEFlags(t *testing.T) {
	var e PDE

	if e.HasFlags(FlagPresent) {
		t.Fatal("expected fresh entry to have no flags set")
	}

	e.SetFlags(FlagPresent | FlagWritable)
	if !e.HasFlags(FlagPresent) || !e.HasFlags(FlagWritable) {
		t.Fatal("expected FlagPresent and FlagWritable to be set")
	}
	if e.HasFlags(FlagUser) {
		t.Fatal("did not expect FlagUser to be set")
	}

	// Setting an already-set flag must be a no-op.
	before := e
	e.SetFlags(FlagPresent)
	if e != before {
		t.Fatalf("expected SetFlags to be idempotent; got %#x want %#x", e, before)
	}

	e.ClearFlags(FlagWritable)
	if e.HasFlags(FlagWritable) {
		t.Fatal("expected FlagWritable to be cleared")
	}
	if !e.HasFlags(FlagPresent) {
		t.Fatal("ClearFlags must not disturb unrelated flags")
	}

	// Clearing an already-clear flag must be a no-op.
	before = e
	e.ClearFlags(FlagWritable)
	if e != before {
		t.Fatalf("expected ClearFlags to be idempotent; got %#x want %#x", e, before)
	}
}

func TestPDEAddress(t *testing.T) {
	var e PDE
	e.SetFlags(FlagPresent | FlagWritable)
	e.SetAddress(mem.PhysAddr(0x00401000))

	if got := e.Address(); got != mem.PhysAddr(0x00401000) {
		t.Fatalf("expected address 0x401000; got %#x", got)
	}
	if !e.HasFlags(FlagPresent) || !e.HasFlags(FlagWritable) {
		t.Fatal("SetAddress must preserve existing flag bits")
	}

	// Re-setting the same address must not change anything.
	before := e
	e.SetAddress(mem.PhysAddr(0x00401000))
	if e != before {
		t.Fatalf("expected SetAddress to be idempotent; got %#x want %#x", e, before)
	}
}

func TestPTEFlagsAndAddress(t *testing.T) {
	var e PTE
	e.SetFlags(FlagPresent | FlagUser)
	e.SetAddress(mem.PhysAddr(0x00801000))

	if got := e.Address(); got != mem.PhysAddr(0x00801000) {
		t.Fatalf("expected address 0x801000; got %#x", got)
	}
	if !e.HasFlags(FlagPresent) || !e.HasFlags(FlagUser) {
		t.Fatal("expected FlagPresent and FlagUser to remain set")
	}
	if e.HasFlags(FlagDirty) || e.HasFlags(FlagGlobal) {
		t.Fatal("did not expect FlagDirty or FlagGlobal to be set")
	}

	e.SetFlags(FlagDirty)
	e.ClearFlags(FlagUser)
	if !e.HasFlags(FlagDirty) {
		t.Fatal("expected FlagDirty to be set")
	}
	if e.HasFlags(FlagUser) {
		t.Fatal("expected FlagUser to be cleared")
	}
	if got := e.Address(); got != mem.PhysAddr(0x00801000) {
		t.Fatal("flag changes must not disturb the address bits")
	}
}
