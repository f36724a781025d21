// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mode selects the lock granularity of a guard.
type Mode int

const (
	// ModeReadWrite lets Get and Vars share the guard while writers hold it
	// exclusively. This is the default.
	ModeReadWrite Mode = iota

	// ModeExclusive serializes every operation, reads included.
	ModeExclusive
)

// String returns the configuration spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeReadWrite:
		return "rw"
	case ModeExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

type locker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// exclusiveLocker turns shared acquisitions into exclusive ones.
type exclusiveLocker struct {
	mu sync.Mutex
}

func (l *exclusiveLocker) Lock()    { l.mu.Lock() }
func (l *exclusiveLocker) Unlock()  { l.mu.Unlock() }
func (l *exclusiveLocker) RLock()   { l.mu.Lock() }
func (l *exclusiveLocker) RUnlock() { l.mu.Unlock() }

// guard is the lock plus its poison tombstone. Once poisoned it stays
// poisoned for its whole lifetime.
type guard struct {
	mu       locker
	mode     Mode
	poisoned atomic.Bool
}

func newGuard(mode Mode) *guard {
	g := &guard{mode: mode}
	if mode == ModeExclusive {
		g.mu = &exclusiveLocker{}
	} else {
		g.mu = &sync.RWMutex{}
	}
	return g
}

// processGuard guards the real process environment. Every Accessor backed by
// OSTable shares it, so there is exactly one lock for the OS table.
var processGuard = sync.OnceValue(func() *guard {
	return newGuard(ModeReadWrite)
})

// read runs fn under a shared acquisition. A panic in fn releases the guard
// without poisoning it, since nothing was mutated.
func (g *guard) read(fn func()) (time.Duration, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.poisoned.Load() {
		return 0, ErrLockPoisoned
	}
	start := time.Now()
	fn()
	return time.Since(start), nil
}

// write runs fn under an exclusive acquisition. If fn does not return
// normally the tombstone is set before the guard is released and the panic
// continues to unwind into the caller.
func (g *guard) write(fn func() error) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned.Load() {
		return 0, ErrLockPoisoned
	}

	completed := false
	defer func() {
		if !completed {
			g.poisoned.Store(true)
		}
	}()

	start := time.Now()
	err := fn()
	completed = true
	return time.Since(start), err
}
