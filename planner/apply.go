package planner

import (
	"context"
	"fmt"

	"github.com/studyplan-dev/studyplan/assignment"
	"github.com/studyplan-dev/studyplan/calendar"
	"github.com/studyplan-dev/studyplan/oracle"
)

// eventDescription builds the study-block event body. The first marker
// line is machine-parsable and drives reconciliation; the rest is for
// humans reading their calendar.
func eventDescription(a *assignment.Assignment) string {
	return fmt.Sprintf("AI-generated study block for:\nOriginal Assignment: %s\nType: %s\nTotal Estimated Time: %d minutes\nClass: %s",
		a.Title, a.Type, a.EstimatedMinutes, a.Course)
}

// Apply turns validated allocation blocks into calendar events, one
// event-creation call at a time in sequence order, so a failure leaves a
// deterministic prefix of created tasks. The created tasks are always
// returned; on failure the error is a *PartialApplyError and nothing is
// rolled back.
func Apply(ctx context.Context, writer calendar.Writer, a *assignment.Assignment, blocks []oracle.Block) ([]*assignment.ScheduledTask, error) {
	description := eventDescription(a)
	tasks := make([]*assignment.ScheduledTask, 0, len(blocks))

	for i, block := range blocks {
		created, err := writer.Create(ctx, calendar.Draft{
			Title:       block.Task,
			StartTime:   block.Start,
			EndTime:     block.End,
			Description: description,
		})
		if err != nil {
			return tasks, &PartialApplyError{Created: i, Total: len(blocks), Err: err}
		}
		tasks = append(tasks, &assignment.ScheduledTask{
			ID:           created.ID,
			AssignmentID: a.ID,
			Title:        block.Task,
			StartTime:    block.Start,
			EndTime:      block.End,
			Status:       assignment.TaskPending,
		})
	}
	return tasks, nil
}
