package planner

import (
	"fmt"

	"github.com/studyplan-dev/studyplan/assignment"
	"github.com/studyplan-dev/studyplan/availability"
	"github.com/studyplan-dev/studyplan/oracle"
)

// BuildRequest assembles the oracle request for one assignment: a
// human-readable task description, the exact minutes to allocate, and
// the serialized horizon.
func BuildRequest(a *assignment.Assignment, h availability.Horizon) oracle.Request {
	description := fmt.Sprintf("Course: %s\nTitle: %s\nType: %s\nDescription: %s",
		a.Course, a.Title, a.Type, a.Description)
	return oracle.Request{
		TaskDescription:  description,
		TotalMinutes:     a.EstimatedMinutes,
		AvailabilityText: h.Text(),
	}
}
