// Package calendar defines the calendar event model and the collaborator
// interfaces the planning engine reads busy time from and writes study
// blocks to.
package calendar

import (
	"context"
	"time"
)

// EventSource identifies where an event came from.
type EventSource string

const (
	SourceManual EventSource = "manual"
	SourceGoogle EventSource = "google"
	SourceICS    EventSource = "ics"
)

// Event is a calendar entry. The engine treats events as read-only busy
// intervals plus metadata; Description may carry the scheduling marker
// recognized by the reconciler.
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	StartTime   time.Time   `json:"start_time"`
	EndTime     time.Time   `json:"end_time"`
	Source      EventSource `json:"source"`
	Description string      `json:"description,omitempty"`
}

// Draft is the payload for creating a new event.
type Draft struct {
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description"`
}

// Source supplies busy events. windowDays bounds the query to that many
// days starting today; zero means all known events.
type Source interface {
	Events(ctx context.Context, windowDays int) ([]Event, error)
}

// Writer creates events on the user's calendar.
type Writer interface {
	Create(ctx context.Context, draft Draft) (Event, error)
}
