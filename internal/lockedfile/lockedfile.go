// Package lockedfile provides an inter-process mutex backed by an advisory
// lock on a file.
package lockedfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// A Mutex provides mutual exclusion within and across processes by locking
// a well-known file.
type Mutex struct {
	Path string
}

// MutexAt returns a Mutex whose lock file is path.
func MutexAt(path string) *Mutex {
	if path == "" {
		panic("lockedfile.MutexAt: empty path")
	}
	return &Mutex{Path: path}
}

// Lock blocks until it holds the lock. The returned function releases it.
func (mu *Mutex) Lock() (unlock func(), err error) {
	return mu.lock(true)
}

// TryLock acquires the lock without blocking. It reports ErrLocked when the
// lock is held elsewhere.
func (mu *Mutex) TryLock() (unlock func(), err error) {
	return mu.lock(false)
}

func (mu *Mutex) lock(wait bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(mu.Path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(mu.Path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f, wait); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", mu.Path, err)
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}
