// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Transaction lifecycle events
	RecordUnapproved    EventType = "record.unapproved"
	RecordStatusChanged EventType = "record.status_changed"
	RecordUpdated       EventType = "record.updated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType { return e.EventType }

// Timestamp returns the time the event was created.
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// NewBase constructs the embedded portion of a concrete event.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}
