package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestProjectKey(t *testing.T) {
	if got := ProjectKey(42); got != "derive_code_mappings.42" {
		t.Errorf("ProjectKey(42) = %q", got)
	}
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocker()

	l1, err := m.TryAcquire(ctx, "a")
	if err != nil {
		t.Fatalf("first TryAcquire failed: %v", err)
	}
	if !m.Held("a") {
		t.Error("a should be held")
	}

	_, err = m.TryAcquire(ctx, "a")
	if !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("second TryAcquire = %v, want ErrLockUnavailable", err)
	}

	l2, err := m.TryAcquire(ctx, "b")
	if err != nil {
		t.Fatalf("other key should be free: %v", err)
	}
	l2.Release()

	l1.Release()
	l1.Release() // idempotent
	if m.Held("a") {
		t.Error("a should be released")
	}

	l3, err := m.TryAcquire(ctx, "a")
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	l3.Release()
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryLocker().TryAcquire(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMemoryLocker_Contention(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocker()
	held, _ := m.TryAcquire(ctx, "p")

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.TryAcquire(ctx, "p"); errors.Is(err, ErrLockUnavailable) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	held.Release()

	if failures.Load() != 10 {
		t.Errorf("failures = %d, want 10", failures.Load())
	}
}

func TestError(t *testing.T) {
	err := &Error{Key: "k", Holder: "PID 7"}
	if err.Error() != "lock k is held by PID 7" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrLockUnavailable) {
		t.Error("Error should wrap ErrLockUnavailable")
	}
	if (&Error{Key: "k"}).Error() != "lock k is held by another owner" {
		t.Error("unexpected message without holder")
	}
}
