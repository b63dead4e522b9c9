// Package lock provides the single reader/writer lock that guards each store.
//
// A lock is acquired for one logical step and released through the returned
// Guard. Callers always pair Acquire with a deferred Release:
//
//	g, err := l.Acquire(lock.Write, timeout)
//	if err != nil {
//		return err
//	}
//	defer g.Release()
package lock

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnavailable is returned when a lock cannot be acquired within the timeout.
var ErrUnavailable = errors.New("lock unavailable")

type Mode int

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

const (
	minBackoff = 50 * time.Microsecond
	maxBackoff = 5 * time.Millisecond
)

type RWLock struct {
	name string
	mu   sync.RWMutex
}

func New(name string) *RWLock {
	return &RWLock{name: name}
}

func (l *RWLock) Name() string {
	return l.name
}

// Acquire obtains the lock in the given mode. A zero timeout waits forever.
func (l *RWLock) Acquire(mode Mode, timeout time.Duration) (*Guard, error) {
	if timeout <= 0 {
		if mode == Write {
			l.mu.Lock()
		} else {
			l.mu.RLock()
		}
		return &Guard{l: l, mode: mode}, nil
	}

	deadline := time.Now().Add(timeout)
	backoff := minBackoff
	for {
		var ok bool
		if mode == Write {
			ok = l.mu.TryLock()
		} else {
			ok = l.mu.TryRLock()
		}
		if ok {
			return &Guard{l: l, mode: mode}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s lock on %s not acquired within %v", ErrUnavailable, mode, l.name, timeout)
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// Guard represents a held lock. Release is idempotent.
type Guard struct {
	l        *RWLock
	mode     Mode
	released bool
}

func (g *Guard) Mode() Mode {
	return g.mode
}

func (g *Guard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	if g.mode == Write {
		g.l.mu.Unlock()
	} else {
		g.l.mu.RUnlock()
	}
}
