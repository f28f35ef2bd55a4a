// Package assignment defines the assignment and scheduled-task models and
// their persistence.
package assignment

import "time"

// Source identifies where an assignment came from.
type Source string

const (
	SourceManual    Source = "manual"
	SourceClassroom Source = "classroom"
)

// Stage is the scheduling lifecycle position of an assignment. An
// assignment is in exactly one stage at a time: triage until the user
// supplies a type and time estimate, scheduled once it has been
// submitted to the allocation engine.
type Stage string

const (
	StageTriage    Stage = "triage"
	StageScheduled Stage = "scheduled"
)

// Type categorizes the kind of work an assignment is.
type Type string

const (
	TypeHomework Type = "Homework"
	TypeProject  Type = "Project"
	TypeEssay    Type = "Essay"
	TypeQuiz     Type = "Quiz"
	TypeTest     Type = "Test"
	TypeReading  Type = "Reading"
)

// TaskStatus is the completion state of a scheduled study block.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

// Assignment is a unit of homework to be scheduled. Progress is derived
// from its scheduled tasks and never set directly.
type Assignment struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Course           string    `json:"course"`
	CourseID         string    `json:"course_id,omitempty"`
	DueDate          time.Time `json:"due_date"`
	Description      string    `json:"description"`
	Type             Type      `json:"type,omitempty"`
	EstimatedMinutes int       `json:"estimated_minutes,omitempty"`
	ActualMinutes    int       `json:"actual_minutes,omitempty"`
	Progress         int       `json:"progress"`
	Stage            Stage     `json:"stage"`
	Source           Source    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Schedulable reports whether the assignment carries enough metadata to
// be submitted to the allocation engine.
func (a *Assignment) Schedulable() bool {
	return a.Type != "" && a.EstimatedMinutes > 0
}

// ScheduledTask is one study block on the calendar. Its ID is the created
// calendar event's ID; there is no independent identity.
type ScheduledTask struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	Title        string     `json:"title"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Status       TaskStatus `json:"status"`
}
