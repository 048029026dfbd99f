package hub

import (
	"errors"
	"time"
)

var (
	// ErrInvalidKey is returned for keys rejected before any slot is touched.
	ErrInvalidKey = errors.New("invalid key")

	// ErrValueTooLarge is returned when a write exceeds the configured value limit.
	ErrValueTooLarge = errors.New("value too large")

	// ErrClosed is returned by every operation once Close has been called.
	ErrClosed = errors.New("hub closed")
)

// Status is the outcome of a read.
type Status string

const (
	// StatusReady means Value holds the key's current value.
	StatusReady Status = "READY"

	// StatusPending is only returned by Peek: the key has never been written.
	StatusPending Status = "PENDING"

	// StatusTimeout means no write arrived within the requested duration.
	StatusTimeout Status = "TIMEOUT"

	// StatusCancelled means the caller's context ended or the hub shut down
	// while the read was suspended.
	StatusCancelled Status = "CANCELLED"
)

// Result is returned by every read operation.
// Value and Version are only meaningful when Status is StatusReady.
type Result struct {
	Key     string
	Status  Status
	Value   []byte
	Version uint64
}

// Ready reports whether the result carries a value.
func (r Result) Ready() bool {
	return r.Status == StatusReady
}

// WriteAck acknowledges a completed write.
type WriteAck struct {
	Key      string
	Version  uint64 // version assigned to this write
	Notified int    // waiters woken by this write
}

// WriteEvent describes a completed write to WriteListeners.
type WriteEvent struct {
	Key       string
	Value     []byte
	Version   uint64
	Notified  int
	WrittenAt time.Time
}

// WriteListener observes completed writes.
// OnWrite is called after the slot lock has been released, from the writing
// goroutine, so implementations must not block. Concurrent writes to one key
// may reach a listener out of version order; listeners that care compare
// Version.
type WriteListener interface {
	OnWrite(ev WriteEvent)
}

// KeyInfo is a point-in-time view of one slot.
type KeyInfo struct {
	Key       string    `json:"key"`
	Ready     bool      `json:"ready"`
	Version   uint64    `json:"version"`
	Waiters   int       `json:"waiters"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Stats holds hub-wide counters.
type Stats struct {
	Keys      int    `json:"keys"`
	Waiters   int    `json:"waiters"`
	Writes    uint64 `json:"writes"`
	Reads     uint64 `json:"reads"`
	Timeouts  uint64 `json:"timeouts"`
	Cancelled uint64 `json:"cancelled"`
}
