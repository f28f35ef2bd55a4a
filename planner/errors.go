// Package planner owns the planning session: triage and scheduled
// assignment sets, reconciliation against external data, the allocation
// request flow, and application of accepted schedules to the calendar.
package planner

import "fmt"

// FetchError reports a failed collaborator fetch. The refresh cycle
// degrades to an empty result set for that collaborator and keeps going;
// the error is surfaced so the user knows their data may be stale.
type FetchError struct {
	Resource string // "calendar" or "coursework"
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("could not read your %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// OracleError reports that the allocation call itself failed. The
// originating assignment is returned to triage so the user can resubmit.
type OracleError struct {
	Err error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("could not schedule this task: %v", e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// InvalidAllocationError reports that the oracle responded but the
// response failed structural validation. Nothing was applied to the
// calendar; the assignment is returned to triage.
type InvalidAllocationError struct {
	Err error
}

func (e *InvalidAllocationError) Error() string {
	return fmt.Sprintf("could not schedule this task: %v", e.Err)
}

func (e *InvalidAllocationError) Unwrap() error { return e.Err }

// PartialApplyError reports that only a prefix of the allocation items
// became calendar events. The created tasks are kept, never rolled back,
// and the assignment stays scheduled with an incomplete task set.
type PartialApplyError struct {
	Created int
	Total   int
	Err     error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("scheduled %d of %d study blocks before a calendar error: %v", e.Created, e.Total, e.Err)
}

func (e *PartialApplyError) Unwrap() error { return e.Err }
