package task

import (
	"os"
	"testing"
	"unsafe"

	"secos/kernel/cpu"
	"secos/kernel/gdt"
	"secos/kernel/mem"
	"secos/kernel/mem/pmm/pmmtest"
	"secos/kernel/trap"
)

func TestMain(m *testing.M) {
	restore := pmmtest.InstallArena()
	code := m.Run()
	restore()
	os.Exit(code)
}

func resetTable() {
	tasks = [MaxTasks]Task{}
	count = 0
	current = 0
}

func TestNewBuildsResumableContext(t *testing.T) {
	resetTable()

	const entry = uintptr(0x00400000)
	const codeStart = uintptr(0x00400000)
	const codeEnd = uintptr(0x00401000)

	idx, err := New("task1", entry, codeStart, codeEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("expected first task to land at index 0; got %d", idx)
	}

	tsk := &tasks[idx]
	if tsk.State != Runnable {
		t.Fatal("expected a freshly created task to be runnable")
	}

	ctx := (*trap.Context)(unsafe.Pointer(uintptr(tsk.kernelSP)))
	if ctx.Frame.EIP != uint32(entry) {
		t.Fatalf("expected Frame.EIP == entry; got %#x", ctx.Frame.EIP)
	}
	if ctx.Frame.CS != uint32(gdt.UserCodeSelector) {
		t.Fatalf("expected Frame.CS to be the user code selector; got %#x", ctx.Frame.CS)
	}
	if ctx.Frame.SS != uint32(gdt.UserDataSelector) {
		t.Fatalf("expected Frame.SS to be the user data selector; got %#x", ctx.Frame.SS)
	}
	if ctx.Frame.ESP == 0 {
		t.Fatal("expected a non-zero user stack pointer")
	}
	if ctx.Frame.EFlags&0x200 == 0 {
		t.Fatal("expected the task to start with interrupts enabled")
	}

	if uintptr(unsafe.Pointer(ctx))+uintptr(prologueBytes) == 0 {
		t.Fatal("prologueBytes must be non-zero")
	}
}

func TestNewMarksCodeRangeUserAccessible(t *testing.T) {
	resetTable()

	const codeStart = uintptr(0x00500000)
	const codeEnd = uintptr(0x00501000)

	idx, err := New("task2", codeStart, codeStart, codeEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr := tasks[idx].as.Translate(mem.VirtAddr(codeStart))
	if !tr.Present {
		t.Fatal("expected the code page to remain present after marking it user-accessible")
	}
	if !tr.User {
		t.Fatal("expected the code page to carry the User flag")
	}
}

func TestNewFailsOncePastCapacity(t *testing.T) {
	resetTable()
	count = MaxTasks

	if _, err := New("overflow", 0, 0, 0); err == nil {
		t.Fatal("expected New to report an error once the task table is full")
	}
}

func TestDestroyClearsSlot(t *testing.T) {
	resetTable()

	idx, err := New("task1", 0x00400000, 0x00400000, 0x00401000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	Destroy(idx)

	if tasks[idx].State != Free {
		t.Fatalf("expected a destroyed slot to revert to Free; got %v", tasks[idx].State)
	}
	if tasks[idx].kernelSP != 0 {
		t.Fatal("expected a destroyed slot's kernelSP to be cleared")
	}
}

func TestScheduleSavesInterruptedContextBeforeAdvancing(t *testing.T) {
	resetTable()
	defer func() {
		resumeContextFn = resumeContext
		writeCR3Fn = cpu.WriteCR3
	}()

	if _, err := New("task1", 0x00400000, 0x00400000, 0x00401000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := New("task2", 0x00500000, 0x00500000, 0x00501000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resumed uint32
	resumeContextFn = func(esp uint32) { resumed = esp }
	writeCR3Fn = func(addr uint32) {}

	savedCtx := trap.Context{}
	savedCtx.Frame.EIP = 0xdeadbeef
	current = 0

	Schedule(&savedCtx)

	if tasks[0].kernelSP != uint32(uintptr(unsafe.Pointer(&savedCtx))) {
		t.Fatal("expected Schedule to persist the interrupted task's stack pointer")
	}
	if current != 1 {
		t.Fatalf("expected round-robin to advance to task 1; got %d", current)
	}
	if resumed != tasks[1].kernelSP {
		t.Fatalf("expected Schedule to resume task 1's saved context; got esp %#x", resumed)
	}
}
