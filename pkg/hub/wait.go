package hub

import (
	"context"
	"fmt"
	"time"
)

// ReadOrWait returns key's value, waiting up to timeout for the first write
// if there is none yet.
//
// If the key already holds a value it is returned immediately. Otherwise the
// call suspends until a write arrives (StatusReady), timeout elapses
// (StatusTimeout) or ctx ends (StatusCancelled). A timeout <= 0 never blocks.
func (h *Hub) ReadOrWait(ctx context.Context, key string, timeout time.Duration) (Result, error) {
	return h.wait(ctx, key, timeout, nil)
}

// WaitNewer returns key's value once its version is greater than after,
// waiting up to timeout. Watchers pass the last version they saw to receive
// the next write.
func (h *Hub) WaitNewer(ctx context.Context, key string, after uint64, timeout time.Duration) (Result, error) {
	return h.wait(ctx, key, timeout, &after)
}

func (h *Hub) wait(ctx context.Context, key string, timeout time.Duration, after *uint64) (Result, error) {
	if err := ValidateKey(key, h.maxKeyLength); err != nil {
		return Result{}, err
	}

	if h.closed.Load() {
		return Result{}, ErrClosed
	}

	h.reads.Add(1)
	sl := h.store.getOrCreate(key)

	// Check and register in one critical section; a write cannot slip between.
	sl.mu.Lock()
	ready, value, version := sl.snapshotLocked()
	threshold := version
	if after != nil {
		threshold = *after
	}

	if (after == nil && ready) || (after != nil && version > *after) {
		sl.mu.Unlock()
		return readyResult(key, value, version), nil
	}

	if h.closed.Load() {
		sl.mu.Unlock()
		return h.cancelledResult(key), nil
	}

	if timeout <= 0 || ctx.Err() != nil {
		sl.mu.Unlock()
		if ctx.Err() != nil {
			return h.cancelledResult(key), nil
		}
		return h.timeoutResult(key), nil
	}

	w := sl.registerWaiterLocked(threshold)
	sl.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	outcome := StatusReady
	select {
	case <-w.ch:
	case <-timer.C:
		outcome = StatusTimeout
	case <-ctx.Done():
		outcome = StatusCancelled
	}

	// Single deregistration for every exit path.
	_, value, version = sl.release(w)
	if version > w.after {
		return readyResult(key, value, version), nil
	}

	switch outcome {
	case StatusTimeout:
		return h.timeoutResult(key), nil
	case StatusCancelled:
		return h.cancelledResult(key), nil
	}

	if h.closed.Load() {
		return h.cancelledResult(key), nil
	}

	// Woken without a newer version: the slot's locking discipline is broken.
	panic(fmt.Sprintf("hub: waiter on %q woken at version %d, registered after %d", key, version, w.after))
}

func (h *Hub) timeoutResult(key string) Result {
	h.timeouts.Add(1)
	return Result{Key: key, Status: StatusTimeout}
}

func (h *Hub) cancelledResult(key string) Result {
	h.cancelled.Add(1)
	return Result{Key: key, Status: StatusCancelled}
}
