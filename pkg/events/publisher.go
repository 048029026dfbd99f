package events

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dyluth/datahub/pkg/hub"
	"github.com/dyluth/datahub/pkg/wire"
)

const (
	// DefaultQueueSize is used when NewPublisher gets a non-positive size.
	DefaultQueueSize = 256

	publishTimeout = 2 * time.Second
	drainTimeout   = 5 * time.Second
)

// Publisher forwards hub writes to Redis. It implements hub.WriteListener.
//
// OnWrite never blocks: events go onto a bounded queue and Run publishes them
// in order. When the queue is full the event is dropped and counted.
type Publisher struct {
	client *Client
	queue  chan *wire.WriteEvent
	logger *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

var _ hub.WriteListener = (*Publisher)(nil)

// NewPublisher creates a publisher with a queue of queueSize events.
func NewPublisher(client *Client, queueSize int, logger *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		queue:  make(chan *wire.WriteEvent, queueSize),
		logger: logger,
	}
}

// OnWrite queues ev for publishing.
func (p *Publisher) OnWrite(ev hub.WriteEvent) {
	select {
	case p.queue <- wire.NewWriteEvent(p.client.InstanceName(), ev):
	default:
		if p.dropped.Add(1)%100 == 1 {
			p.logger.Warn("write event queue full, dropping events",
				"key", ev.Key,
				"version", ev.Version,
				"dropped_total", p.dropped.Load(),
			)
		}
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left (bounded by a short timeout) and returns.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("write event publisher started", "channel", WriteEventsChannel(p.client.InstanceName()))

	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.logger.Info("write event publisher stopped",
				"published", p.published.Load(),
				"dropped", p.dropped.Load(),
				"failed", p.failed.Load(),
			)
			return nil
		case ev := <-p.queue:
			// An in-flight publish is bounded by publishTimeout, not by shutdown.
			p.publish(context.WithoutCancel(ctx), ev)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev *wire.WriteEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.PublishWrite(pubCtx, ev); err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to publish write event", "key", ev.Key, "version", ev.Version, "error", err)
		return
	}
	p.published.Add(1)
}

// Published returns how many events reached Redis.
func (p *Publisher) Published() uint64 { return p.published.Load() }

// Dropped returns how many events were discarded because the queue was full.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Failed returns how many publish attempts Redis rejected.
func (p *Publisher) Failed() uint64 { return p.failed.Load() }
