// Package events fans datahub writes out over Redis Pub/Sub.
//
// # Overview
//
// The hub itself is the only authority for variable values. This package
// gives observers (dashboards, `datahub watch`, other tooling) a live feed of
// completed writes without touching the hub's wait path: a Publisher receives
// hub write notifications, queues them, and publishes them from a single
// goroutine so a slow or unreachable Redis never delays a write.
//
// Redis is used purely for fan-out. Nothing is stored and the hub never reads
// back from Redis, so restarting the hub starts from empty state.
//
// # Redis Schema
//
// All channels are namespaced by instance name so several hubs can share one
// Redis server:
//
//	Write events: datahub:{instance}:write_events
//	Hub presence: datahub:{instance}:hub (string, expires unless refreshed)
//
// # Usage Example
//
//	client, err := events.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	pub := events.NewPublisher(client, 256, logger)
//	h := hub.New(hub.WithWriteListener(pub))
//	go pub.Run(ctx)
package events
