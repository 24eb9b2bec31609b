//go:build !windows

package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FileLocker is a cross-process Locker backed by flock(2) on one file per
// key under dir. The holder's PID is written into the file.
type FileLocker struct {
	dir string
}

// NewFileLocker creates a locker keeping its lock files in dir.
func NewFileLocker(dir string) *FileLocker {
	return &FileLocker{dir: dir}
}

// TryAcquire attempts to take key without blocking.
func (f *FileLocker) TryAcquire(ctx context.Context, key string) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := filepath.Join(f.dir, key+".lock")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		return nil, flockError(key, path, err)
	}

	if err := file.Truncate(0); err != nil {
		unlock(file)
		return nil, fmt.Errorf("truncating lock file: %w", err)
	}
	if _, err := file.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		unlock(file)
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}

	return &fileLock{file: file}, nil
}

// flockError maps a failed non-blocking flock. Only EWOULDBLOCK means
// another holder; any other errno is a plain error.
func flockError(key, path string, err error) error {
	if !errors.Is(err, syscall.EWOULDBLOCK) {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	lockErr := &Error{Key: key}
	if content, readErr := os.ReadFile(path); readErr == nil && len(content) > 0 {
		lockErr.Holder = "PID " + strings.TrimSpace(string(content))
	}
	return lockErr
}

type fileLock struct {
	file *os.File
}

// Release unlocks and closes the lock file. The file is left in place;
// removing it would let a waiting opener lock an unlinked inode.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Truncate(0)
	unlock(l.file)
	l.file = nil
}

func unlock(file *os.File) {
	_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
	_ = file.Close()
}
