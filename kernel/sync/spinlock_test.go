package sync

import "testing"

func TestSpinlock(t *testing.T) {
	var l Spinlock

	if !l.TryLock() {
		t.Fatal("expected TryLock to succeed on an unlocked Spinlock")
	}

	if l.TryLock() {
		t.Fatal("expected TryLock to fail while the Spinlock is held")
	}

	l.Unlock()

	l.Lock()
	if l.TryLock() {
		t.Fatal("expected TryLock to fail while the Spinlock is held via Lock")
	}
	l.Unlock()

	if !l.TryLock() {
		t.Fatal("expected TryLock to succeed after Unlock")
	}
	l.Unlock()
}
