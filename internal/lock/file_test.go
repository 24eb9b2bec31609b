//go:build !windows

package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
)

func TestFileLocker_AcquireAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	f := NewFileLocker(dir)

	l, err := f.TryAcquire(context.Background(), ProjectKey(1))
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}

	path := filepath.Join(dir, ProjectKey(1)+".lock")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}
	pid, err := strconv.Atoi(string(content))
	if err != nil {
		t.Fatalf("lock file should contain PID: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("PID: got %d, want %d", pid, os.Getpid())
	}

	l.Release()
	l.Release()

	l2, err := f.TryAcquire(context.Background(), ProjectKey(1))
	if err != nil {
		t.Fatalf("reacquire after release failed: %v", err)
	}
	l2.Release()
}

func TestFileLocker_AlreadyLocked(t *testing.T) {
	f := NewFileLocker(t.TempDir())
	ctx := context.Background()

	l1, err := f.TryAcquire(ctx, ProjectKey(1))
	if err != nil {
		t.Fatalf("first TryAcquire failed: %v", err)
	}
	defer l1.Release()

	_, err = f.TryAcquire(ctx, ProjectKey(1))
	if !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("second TryAcquire = %v, want ErrLockUnavailable", err)
	}
	if !strings.Contains(err.Error(), "PID "+strconv.Itoa(os.Getpid())) {
		t.Errorf("error should name the holder: %v", err)
	}

	l2, err := f.TryAcquire(ctx, ProjectKey(2))
	if err != nil {
		t.Fatalf("other project should be free: %v", err)
	}
	l2.Release()
}

func TestFlockError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.lock")
	if err := os.WriteFile(path, []byte("4242"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tests := []struct {
		name        string
		errno       syscall.Errno
		unavailable bool
	}{
		{"contention", syscall.EWOULDBLOCK, true},
		{"no locks", syscall.ENOLCK, false},
		{"bad descriptor", syscall.EBADF, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := flockError("project-1", path, tt.errno)
			if got := errors.Is(err, ErrLockUnavailable); got != tt.unavailable {
				t.Errorf("errors.Is(ErrLockUnavailable) = %v, want %v (err: %v)", got, tt.unavailable, err)
			}
			if !tt.unavailable && !errors.Is(err, tt.errno) {
				t.Errorf("error should wrap %v: %v", tt.errno, err)
			}
			if tt.unavailable && !strings.Contains(err.Error(), "PID 4242") {
				t.Errorf("error should name the holder: %v", err)
			}
		})
	}
}
