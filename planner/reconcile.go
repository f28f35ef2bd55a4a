package planner

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/studyplan-dev/studyplan/assignment"
	"github.com/studyplan-dev/studyplan/calendar"
	"github.com/studyplan-dev/studyplan/classroom"
)

// markerPattern recovers the assignment title embedded in event
// descriptions written by the applier.
var markerPattern = regexp.MustCompile(`Original Assignment: (.*)`)

// ScheduledTitles extracts the set of assignment titles already
// referenced by a scheduling marker in any event description.
func ScheduledTitles(events []calendar.Event) map[string]struct{} {
	titles := make(map[string]struct{})
	for _, ev := range events {
		if ev.Description == "" {
			continue
		}
		m := markerPattern.FindStringSubmatch(ev.Description)
		if len(m) == 2 {
			if title := strings.TrimSpace(m[1]); title != "" {
				titles[title] = struct{}{}
			}
		}
	}
	return titles
}

// MergeCoursework admits freshly fetched coursework into triage. An item
// is admitted only if its id is unknown to both sets and its title does
// not appear in the marker set; repeated refreshes are a no-op. The id is
// the true duplicate key; a title-only match is a legacy fallback for
// work scheduled through the calendar before this session existed, and
// is logged rather than silently trusted.
func (s *Session) MergeCoursework(items []classroom.WorkItem, markerTitles map[string]struct{}, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	admitted := 0
	for _, item := range items {
		if _, known := s.Assignment(item.ID); known {
			continue
		}
		if _, marked := markerTitles[item.Title]; marked {
			logger.Debug("coursework suppressed by calendar marker title",
				"id", item.ID, "title", item.Title)
			continue
		}

		due := time.Now()
		if item.DueDate != nil {
			due = *item.DueDate
		}
		description := item.Description
		if description == "" {
			description = "No description provided."
		}
		a := &assignment.Assignment{
			ID:          item.ID,
			Title:       item.Title,
			Course:      item.CourseName,
			CourseID:    item.CourseID,
			DueDate:     due,
			Description: description,
			Source:      assignment.SourceClassroom,
			CreatedAt:   time.Now().UTC(),
		}
		if s.AddTriage(a) {
			admitted++
		}
	}
	return admitted
}
