package events

import (
	"context"
	"log/slog"
	"time"
)

// Announcer keeps the hub's presence record alive while the hub is serving.
type Announcer struct {
	client   *Client
	addr     string
	interval time.Duration
	logger   *slog.Logger
}

// NewAnnouncer creates an announcer refreshing every interval. The record's
// TTL is three intervals, so a crashed hub disappears shortly after.
func NewAnnouncer(client *Client, addr string, interval time.Duration, logger *slog.Logger) *Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Announcer{
		client:   client,
		addr:     addr,
		interval: interval,
		logger:   logger,
	}
}

// Run announces immediately and then on every tick until ctx is cancelled,
// when it withdraws the record.
func (a *Announcer) Run(ctx context.Context) error {
	ttl := 3 * a.interval
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.announce(ctx, ttl)

	for {
		select {
		case <-ctx.Done():
			withdrawCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := a.client.Withdraw(withdrawCtx); err != nil {
				a.logger.Warn("failed to withdraw hub presence", "error", err)
			}
			return nil
		case <-ticker.C:
			a.announce(ctx, ttl)
		}
	}
}

func (a *Announcer) announce(ctx context.Context, ttl time.Duration) {
	if err := a.client.Announce(ctx, a.addr, ttl); err != nil {
		a.logger.Warn("failed to announce hub presence", "addr", a.addr, "error", err)
	}
}
