// Package pubsub provides a generic publish/subscribe event system used to
// surface load-time warnings and watch-mode change notifications without
// coupling the pipeline packages to the CLI.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// DuplicateEvent is published when a duplicate definition or record
	// name is tolerated under the allow-duplicates policy.
	DuplicateEvent EventType = "duplicate"
	// ChangedEvent is published when watched definition files change.
	ChangedEvent EventType = "changed"
	// LogEvent is published for every emitted log entry.
	LogEvent EventType = "log"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
