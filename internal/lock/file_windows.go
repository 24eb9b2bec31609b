//go:build windows

package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileLocker is a cross-process Locker. On Windows the lock is the
// exclusive creation of one file per key under dir.
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
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		lockErr := &Error{Key: key}
		if content, readErr := os.ReadFile(path); readErr == nil && len(content) > 0 {
			lockErr.Holder = "PID " + strings.TrimSpace(string(content))
		}
		return nil, lockErr
	}
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}

	return &fileLock{path: path, file: file}, nil
}

type fileLock struct {
	path string
	file *os.File
}

// Release closes and removes the lock file.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
}
