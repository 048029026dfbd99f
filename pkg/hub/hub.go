package hub

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Hub is the single authority for a set of variables.
// A Hub is safe for concurrent use. Create one per process with New and pass
// it to whatever serves requests.
type Hub struct {
	store     *Store
	logger    *slog.Logger
	listeners []WriteListener

	maxKeyLength  int
	maxValueBytes int

	closed atomic.Bool

	writes    atomic.Uint64
	reads     atomic.Uint64
	timeouts  atomic.Uint64
	cancelled atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger used for hub events. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithWriteListener registers a listener called after every completed write.
func WithWriteListener(l WriteListener) Option {
	return func(h *Hub) {
		if l != nil {
			h.listeners = append(h.listeners, l)
		}
	}
}

// WithMaxKeyLength limits key length in bytes.
func WithMaxKeyLength(n int) Option {
	return func(h *Hub) {
		h.maxKeyLength = n
	}
}

// WithMaxValueBytes limits value size. Zero means unlimited.
func WithMaxValueBytes(n int) Option {
	return func(h *Hub) {
		h.maxValueBytes = n
	}
}

// WithStore makes the hub use an existing store.
func WithStore(s *Store) Option {
	return func(h *Hub) {
		if s != nil {
			h.store = s
		}
	}
}

// New creates a hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		store:        NewStore(),
		logger:       slog.Default(),
		maxKeyLength: DefaultMaxKeyLength,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Write stores value as key's current value and wakes every reader waiting
// on key. It always succeeds for a valid key on an open hub; overwriting is
// not an error. The value is copied.
func (h *Hub) Write(key string, value []byte) (WriteAck, error) {
	if err := ValidateKey(key, h.maxKeyLength); err != nil {
		return WriteAck{}, err
	}

	if h.maxValueBytes > 0 && len(value) > h.maxValueBytes {
		return WriteAck{}, fmt.Errorf("%w: %d bytes (max %d)", ErrValueTooLarge, len(value), h.maxValueBytes)
	}

	if h.closed.Load() {
		return WriteAck{}, ErrClosed
	}

	stored := append(make([]byte, 0, len(value)), value...)
	now := time.Now()

	sl := h.store.getOrCreate(key)
	version, woken := sl.write(stored, now)
	h.writes.Add(1)

	h.logger.Debug("variable written",
		"key", key,
		"version", version,
		"bytes", len(stored),
		"notified", woken,
	)

	if len(h.listeners) > 0 {
		ev := WriteEvent{
			Key:       key,
			Value:     stored,
			Version:   version,
			Notified:  woken,
			WrittenAt: now,
		}
		for _, l := range h.listeners {
			l.OnWrite(ev)
		}
	}

	return WriteAck{Key: key, Version: version, Notified: woken}, nil
}

// Peek reports key's current state without blocking: StatusReady with the
// value, or StatusPending if it was never written.
func (h *Hub) Peek(key string) (Result, error) {
	if err := ValidateKey(key, h.maxKeyLength); err != nil {
		return Result{}, err
	}

	if h.closed.Load() {
		return Result{}, ErrClosed
	}

	ready, value, version := h.store.getOrCreate(key).snapshot()
	if !ready {
		return Result{Key: key, Status: StatusPending}, nil
	}
	return readyResult(key, value, version), nil
}

// Keys lists every known key in sorted order.
func (h *Hub) Keys() []KeyInfo {
	infos := make([]KeyInfo, 0, h.store.Len())
	h.store.each(func(key string, sl *slot) {
		infos = append(infos, sl.info(key))
	})
	return infos
}

// Stats returns hub-wide counters.
func (h *Hub) Stats() Stats {
	st := Stats{
		Writes:    h.writes.Load(),
		Reads:     h.reads.Load(),
		Timeouts:  h.timeouts.Load(),
		Cancelled: h.cancelled.Load(),
	}
	h.store.each(func(key string, sl *slot) {
		st.Keys++
		st.Waiters += sl.info(key).Waiters
	})
	return st
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	return h.closed.Load()
}

// Close shuts the hub down. Suspended readers return StatusCancelled and all
// later calls fail with ErrClosed. Close is idempotent.
func (h *Hub) Close() error {
	if h.closed.Swap(true) {
		return nil
	}

	woken := 0
	h.store.each(func(_ string, sl *slot) {
		sl.mu.Lock()
		woken += sl.wakeAllLocked()
		sl.mu.Unlock()
	})

	h.logger.Info("hub closed", "keys", h.store.Len(), "woken", woken)
	return nil
}

func readyResult(key string, value []byte, version uint64) Result {
	return Result{
		Key:     key,
		Status:  StatusReady,
		Value:   append(make([]byte, 0, len(value)), value...),
		Version: version,
	}
}
