package events

import "fmt"

// Redis key pattern helpers
//
// Key pattern: datahub:{instance_name}:{entity}
// Channel pattern: datahub:{instance_name}:{event_type}_events

// WriteEventsChannel returns the Pub/Sub channel name for write events.
// Pattern: datahub:{instance_name}:write_events
func WriteEventsChannel(instanceName string) string {
	return fmt.Sprintf("datahub:%s:write_events", instanceName)
}

// HubPresenceKey returns the Redis key a running hub refreshes to announce
// itself.
// Pattern: datahub:{instance_name}:hub
func HubPresenceKey(instanceName string) string {
	return fmt.Sprintf("datahub:%s:hub", instanceName)
}
