// Package lock provides the non-blocking per-project lock held while a
// project's derivation state is read, reconciled and committed.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLockUnavailable is returned when another holder owns the lock.
var ErrLockUnavailable = errors.New("lock unavailable")

// Error describes a failed acquisition. It wraps ErrLockUnavailable.
type Error struct {
	Key    string
	Holder string
}

func (e *Error) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("lock %s is held by %s", e.Key, e.Holder)
	}
	return fmt.Sprintf("lock %s is held by another owner", e.Key)
}

// Unwrap returns ErrLockUnavailable.
func (e *Error) Unwrap() error {
	return ErrLockUnavailable
}

// Lock is a held lock.
type Lock interface {
	Release()
}

// Locker acquires named locks without blocking.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (Lock, error)
}

// ProjectKey returns the lock name guarding a project's derivation state.
func ProjectKey(projectID int64) string {
	return fmt.Sprintf("derive_code_mappings.%d", projectID)
}

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

// TryAcquire takes key or fails immediately with ErrLockUnavailable.
func (m *MemoryLocker) TryAcquire(ctx context.Context, key string) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[key] {
		return nil, &Error{Key: key}
	}
	m.held[key] = true
	return &memoryLock{locker: m, key: key}, nil
}

// Held reports whether key is currently held.
func (m *MemoryLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	once   sync.Once
}

func (l *memoryLock) Release() {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.key)
		l.locker.mu.Unlock()
	})
}
