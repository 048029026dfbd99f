// Package hub implements the in-process authority behind datahub: a set of
// named variables that producers write and consumers read, blocking until a
// value is available.
//
// # Overview
//
// Every key owns a slot holding the latest value, a readiness flag, a version
// counter and the set of readers currently waiting on it. Slots are created
// lazily on first access (read or write) and live for the lifetime of the Hub.
//
//	h := hub.New()
//	defer h.Close()
//
//	go h.Write("X_Data", []byte("50"))
//
//	res, err := h.ReadOrWait(ctx, "X_Data", 60*time.Second)
//	if err != nil {
//		// invalid key or closed hub
//	}
//	switch res.Status {
//	case hub.StatusReady:
//		fmt.Println(string(res.Value))
//	case hub.StatusTimeout:
//		// nothing written in time
//	}
//
// # Check-or-register
//
// A read checks readiness and, if the slot is empty, registers itself as a
// waiter inside one critical section guarded by the slot's mutex. Writes take
// the same mutex, so a write can never land between the check and the
// registration. The waiter then suspends without holding any lock.
//
// Writes broadcast: every waiter registered below the new version is woken and
// re-reads the slot itself. Whatever ends a wait (wake, timeout, cancellation)
// the waiter is removed from its slot exactly once, and that removal re-reads
// the slot under the lock, so a write that beat the timer is still returned.
//
// # Outcomes
//
// READY, TIMEOUT and CANCELLED are ordinary Result values. Errors are reserved
// for requests rejected at the boundary (ErrInvalidKey, ErrValueTooLarge) and
// for a hub that has been closed (ErrClosed).
package hub
