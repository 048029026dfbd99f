package hub

// dispatchLocked wakes every waiter registered below the current version and
// returns how many were woken. Woken waiters are removed before their channel
// is closed so a channel is never closed twice. Caller holds s.mu.
//
// Delivery is a broadcast: each woken reader re-reads the slot on its own, so
// concurrent writes and readers never double-deliver.
func (s *slot) dispatchLocked() int {
	woken := 0
	for w := range s.waiters {
		if w.after < s.version {
			delete(s.waiters, w)
			close(w.ch)
			woken++
		}
	}
	return woken
}

// wakeAllLocked wakes every waiter regardless of version. Used on shutdown.
// Caller holds s.mu.
func (s *slot) wakeAllLocked() int {
	woken := len(s.waiters)
	for w := range s.waiters {
		delete(s.waiters, w)
		close(w.ch)
	}
	return woken
}
