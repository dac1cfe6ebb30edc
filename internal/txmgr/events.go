// internal/txmgr/events.go
package txmgr

import (
	"github.com/dmarkov/txpilot/internal/events"
)

// UnapprovedEvent is emitted when submit creates a new record awaiting
// user approval.
type UnapprovedEvent struct {
	events.BaseEvent
	Record *Record
}

// StatusChangedEvent is emitted on every lifecycle transition.
type StatusChangedEvent struct {
	events.BaseEvent
	ID        string
	NewStatus Status
}

// UpdatedEvent is emitted whenever a record's content changes without a
// transition (retry counts, warnings).
type UpdatedEvent struct {
	events.BaseEvent
	Record *Record
}

func newUnapprovedEvent(rec *Record) *UnapprovedEvent {
	return &UnapprovedEvent{BaseEvent: events.NewBase(events.RecordUnapproved), Record: rec}
}

func newStatusChangedEvent(id string, status Status) *StatusChangedEvent {
	return &StatusChangedEvent{BaseEvent: events.NewBase(events.RecordStatusChanged), ID: id, NewStatus: status}
}

func newUpdatedEvent(rec *Record) *UpdatedEvent {
	return &UpdatedEvent{BaseEvent: events.NewBase(events.RecordUpdated), Record: rec}
}
