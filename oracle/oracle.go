// Package oracle defines the allocation oracle contract: the request the
// engine sends, the schedule items that come back, and the structural
// validation applied before any item touches the calendar.
package oracle

import (
	"context"
	"time"
)

// Request asks the oracle to split a task into study blocks placed inside
// the declared availability.
type Request struct {
	// TaskDescription is a human-readable summary of the assignment
	// (course, title, type, free text).
	TaskDescription string `json:"taskDescription"`

	// TotalMinutes is the exact amount of work time the oracle must
	// allocate.
	TotalMinutes int `json:"totalMinutesRequired"`

	// AvailabilityText is the serialized horizon: a timezone header line
	// followed by one line per day with free capacity.
	AvailabilityText string `json:"availabilityText"`
}

// Item is one allocation entry as returned by the oracle. Timestamps are
// kept raw here; Validate parses and normalizes them.
type Item struct {
	Task      string `json:"task"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Block is a validated, normalized allocation entry.
type Block struct {
	Task  string
	Start time.Time
	End   time.Time
}

// Minutes returns the block length in whole minutes.
func (b Block) Minutes() int { return int(b.End.Sub(b.Start) / time.Minute) }

// AdjustmentRequest asks the oracle to recalibrate a task estimate from
// observed working speed.
type AdjustmentRequest struct {
	TaskID           string `json:"taskId"`
	EstimatedMinutes int    `json:"estimatedTime"`
	ActualMinutes    int    `json:"actualTime"`
	ScheduleJSON     string `json:"schedule"`
}

// AdjustmentResult is the oracle's recalibration answer.
type AdjustmentResult struct {
	AdjustedScheduleJSON string `json:"adjustedSchedule"`
	NewEstimatedMinutes  int    `json:"newEstimatedTime"`
}

// Oracle is the external allocation function. Implementations are opaque
// scheduling engines; only the structural validity of their output is
// the caller's concern.
type Oracle interface {
	// Name returns the oracle identifier (e.g., "gemini", "mock").
	Name() string

	// Schedule maps a task and its available time into study blocks.
	Schedule(ctx context.Context, req Request) ([]Item, error)

	// AdjustEstimate recalibrates a task's time estimate from actual
	// time spent.
	AdjustEstimate(ctx context.Context, req AdjustmentRequest) (AdjustmentResult, error)
}
