package hub

import (
	"sort"
	"sync"
)

// Store maps keys to slots. Slots are created on first access and never
// removed, so a *slot obtained from the store stays valid for the store's
// lifetime and all further synchronization happens on the slot's own mutex.
type Store struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		slots: make(map[string]*slot),
	}
}

// getOrCreate returns the slot for key, creating it if absent.
// Concurrent first access to the same key yields a single slot.
func (s *Store) getOrCreate(key string) *slot {
	s.mu.RLock()
	sl, ok := s.slots[key]
	s.mu.RUnlock()
	if ok {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check: another caller may have created it between the two locks.
	if sl, ok := s.slots[key]; ok {
		return sl
	}

	sl = newSlot()
	s.slots[key] = sl
	return sl
}

// lookup returns the slot for key without creating one.
func (s *Store) lookup(key string) (*slot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[key]
	return sl, ok
}

// Len returns the number of keys seen so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// keys returns every key in sorted order.
func (s *Store) keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.slots))
	for k := range s.slots {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// each calls fn for every slot in key order. fn runs without the store lock
// held, so it may lock the slot.
func (s *Store) each(fn func(key string, sl *slot)) {
	for _, k := range s.keys() {
		if sl, ok := s.lookup(k); ok {
			fn(k, sl)
		}
	}
}
