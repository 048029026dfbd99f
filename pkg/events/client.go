package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/datahub/pkg/wire"
)

// Client provides instance-scoped Redis operations for write events.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new events client for the specified instance.
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(redisURL, instanceName string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewClient(opts, instanceName)
}

// InstanceName returns the namespace this client publishes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishWrite publishes a write event to datahub:{instance}:write_events.
// The event is validated first; an invalid event is never published.
func (c *Client) PublishWrite(ctx context.Context, ev *wire.WriteEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid write event: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal write event: %w", err)
	}

	channel := WriteEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish write event: %w", err)
	}

	return nil
}

// Announce records that a hub for this instance is serving at addr.
// The record expires after ttl unless announced again.
func (c *Client) Announce(ctx context.Context, addr string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, HubPresenceKey(c.instanceName), addr, ttl).Err(); err != nil {
		return fmt.Errorf("failed to announce hub: %w", err)
	}
	return nil
}

// Withdraw removes the presence record, e.g. on shutdown.
func (c *Client) Withdraw(ctx context.Context) error {
	if err := c.rdb.Del(ctx, HubPresenceKey(c.instanceName)).Err(); err != nil {
		return fmt.Errorf("failed to withdraw hub: %w", err)
	}
	return nil
}

// LookupHub returns the address announced by this instance's hub.
// Returns ("", redis.Nil) if no hub is announced; use IsNotFound.
func (c *Client) LookupHub(ctx context.Context) (string, error) {
	addr, err := c.rdb.Get(ctx, HubPresenceKey(c.instanceName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to look up hub: %w", err)
	}
	return addr, nil
}

// Subscription represents an active Pub/Sub subscription to write events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *wire.WriteEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of write events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *wire.WriteEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// Malformed messages are reported here and skipped; the subscription continues.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeWrites subscribes to write events for this instance, optionally
// limited to the given keys. It returns once Redis has confirmed the
// subscription, so events published afterwards are not missed.
//
// Events are delivered on a buffered channel (size 64). Redis Pub/Sub is
// at-most-once: a subscriber that falls too far behind loses events.
func (c *Client) SubscribeWrites(ctx context.Context, keys ...string) (*Subscription, error) {
	channel := WriteEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to write events: %w", err)
	}

	filter := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		filter[k] = struct{}{}
	}

	eventsChan := make(chan *wire.WriteEvent, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev wire.WriteEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal write event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				if len(filter) > 0 {
					if _, ok := filter[ev.Key]; !ok {
						continue
					}
				}

				select {
				case eventsChan <- &ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
