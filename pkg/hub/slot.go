package hub

import (
	"sync"
	"time"
)

// waiter is a suspended read registered against one slot.
// ch is closed exactly once, by the slot, when the waiter is woken.
type waiter struct {
	after uint64
	ch    chan struct{}
}

// slot holds one key's state. It moves EMPTY -> READY on the first write and
// stays READY; later writes replace value and bump version.
//
// All fields are guarded by mu.
type slot struct {
	mu        sync.Mutex
	value     []byte
	ready     bool
	version   uint64
	updatedAt time.Time
	waiters   map[*waiter]struct{}
}

func newSlot() *slot {
	return &slot{
		waiters: make(map[*waiter]struct{}),
	}
}

// write replaces the value and wakes every waiter below the new version.
// Returns the new version and the number of waiters woken.
func (s *slot) write(value []byte, now time.Time) (uint64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	s.ready = true
	s.version++
	s.updatedAt = now

	return s.version, s.dispatchLocked()
}

// snapshotLocked returns the current state. Caller holds s.mu.
func (s *slot) snapshotLocked() (bool, []byte, uint64) {
	return s.ready, s.value, s.version
}

// snapshot is the locking form of snapshotLocked.
func (s *slot) snapshot() (bool, []byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// registerWaiterLocked adds a waiter to be woken once version > after.
// Caller holds s.mu.
func (s *slot) registerWaiterLocked(after uint64) *waiter {
	w := &waiter{
		after: after,
		ch:    make(chan struct{}),
	}
	s.waiters[w] = struct{}{}
	return w
}

// unregisterWaiterLocked removes w. Removing a waiter that was already woken
// (and so already removed by the dispatcher) is a no-op.
func (s *slot) unregisterWaiterLocked(w *waiter) {
	delete(s.waiters, w)
}

// unregisterWaiter is the locking form of unregisterWaiterLocked.
func (s *slot) unregisterWaiter(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterWaiterLocked(w)
}

// release ends a wait: it unregisters w and returns the state observed at
// that instant. A write that completed before release is always visible, and
// once release returns no write can wake w.
func (s *slot) release(w *waiter) (bool, []byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterWaiterLocked(w)
	return s.snapshotLocked()
}

// info returns a KeyInfo for key.
func (s *slot) info(key string) KeyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return KeyInfo{
		Key:       key,
		Ready:     s.ready,
		Version:   s.version,
		Waiters:   len(s.waiters),
		UpdatedAt: s.updatedAt,
	}
}
