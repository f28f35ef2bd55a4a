package planner

import (
	"sort"
	"sync"

	"github.com/studyplan-dev/studyplan/assignment"
	"github.com/studyplan-dev/studyplan/calendar"
)

// Session is the single logical owner of planning state: the disjoint
// triage and scheduled assignment sets, the scheduled-task list, and the
// busy-event cache. All mutations are atomic read-modify-write steps
// under one mutex; two concurrent updates can never lose each other.
type Session struct {
	mu         sync.Mutex
	triage     map[string]*assignment.Assignment
	scheduled  map[string]*assignment.Assignment
	tasks      []*assignment.ScheduledTask
	events     []calendar.Event
	generation uint64 // refresh generation of the cached events
	nextGen    uint64
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		triage:    make(map[string]*assignment.Assignment),
		scheduled: make(map[string]*assignment.Assignment),
	}
}

// BeginRefresh allocates a new refresh generation. The latest caller
// wins: results committed under an older generation are discarded.
func (s *Session) BeginRefresh() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGen++
	return s.nextGen
}

// CommitEvents replaces the busy-event cache if gen is not stale.
// It reports whether the commit was applied.
func (s *Session) CommitEvents(gen uint64, events []calendar.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen < s.generation {
		return false
	}
	s.generation = gen
	s.events = events
	return true
}

// Events returns the cached busy events from the latest committed refresh.
func (s *Session) Events() []calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calendar.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Triage returns the triage set ordered by due date.
func (s *Session) Triage() []*assignment.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByDue(s.triage)
}

// Scheduled returns the scheduled set ordered by due date.
func (s *Session) Scheduled() []*assignment.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByDue(s.scheduled)
}

// Assignment looks an assignment up in either set.
func (s *Session) Assignment(id string) (*assignment.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.triage[id]; ok {
		return a, true
	}
	if a, ok := s.scheduled[id]; ok {
		return a, true
	}
	return nil, false
}

// AddTriage puts an assignment into triage unless its id is already
// known to either set. It reports whether the assignment was admitted.
func (s *Session) AddTriage(a *assignment.Assignment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.triage[a.ID]; ok {
		return false
	}
	if _, ok := s.scheduled[a.ID]; ok {
		return false
	}
	a.Stage = assignment.StageTriage
	s.triage[a.ID] = a
	return true
}

// AddScheduled puts an assignment directly into the scheduled set
// (manual entries that already carry a type and estimate).
func (s *Session) AddScheduled(a *assignment.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Stage = assignment.StageScheduled
	delete(s.triage, a.ID)
	s.scheduled[a.ID] = a
}

// Promote moves an assignment from triage to scheduled, recording the
// user-supplied type and estimate. An assignment is never in both sets.
func (s *Session) Promote(id string, typ assignment.Type, estimatedMinutes int) (*assignment.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.triage[id]
	if !ok {
		return nil, false
	}
	delete(s.triage, id)
	a.Type = typ
	a.EstimatedMinutes = estimatedMinutes
	a.Stage = assignment.StageScheduled
	s.scheduled[id] = a
	return a, true
}

// Demote pushes a scheduled assignment back into triage after a failed
// allocation attempt; retry happens by resubmission, never automatically.
func (s *Session) Demote(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.scheduled[id]
	if !ok {
		return false
	}
	delete(s.scheduled, id)
	a.Stage = assignment.StageTriage
	s.triage[id] = a
	return true
}

// AppendTasks records newly created scheduled tasks and recomputes the
// owning assignments' progress.
func (s *Session) AppendTasks(tasks []*assignment.ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, tasks...)
	seen := map[string]bool{}
	for _, t := range tasks {
		if !seen[t.AssignmentID] {
			seen[t.AssignmentID] = true
			s.recomputeProgress(t.AssignmentID)
		}
	}
}

// Tasks returns scheduled tasks, all of them or one assignment's,
// ordered by start time.
func (s *Session) Tasks(assignmentID string) []*assignment.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*assignment.ScheduledTask
	for _, t := range s.tasks {
		if assignmentID == "" || t.AssignmentID == assignmentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// ToggleTask flips a task between pending and completed and recomputes
// the owning assignment's progress. It returns the task and the new
// progress value.
func (s *Session) ToggleTask(taskID string) (*assignment.ScheduledTask, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID != taskID {
			continue
		}
		if t.Status == assignment.TaskPending {
			t.Status = assignment.TaskCompleted
		} else {
			t.Status = assignment.TaskPending
		}
		progress := s.recomputeProgress(t.AssignmentID)
		return t, progress, true
	}
	return nil, 0, false
}

// recomputeProgress derives progress from the assignment's current task
// statuses: round(100 * completed / total), 0 when there are no tasks.
// Callers must hold s.mu.
func (s *Session) recomputeProgress(assignmentID string) int {
	total, completed := 0, 0
	for _, t := range s.tasks {
		if t.AssignmentID != assignmentID {
			continue
		}
		total++
		if t.Status == assignment.TaskCompleted {
			completed++
		}
	}
	progress := 0
	if total > 0 {
		progress = int(float64(completed)/float64(total)*100 + 0.5)
	}
	if a, ok := s.scheduled[assignmentID]; ok {
		a.Progress = progress
	} else if a, ok := s.triage[assignmentID]; ok {
		a.Progress = progress
	}
	return progress
}

func sortedByDue(set map[string]*assignment.Assignment) []*assignment.Assignment {
	out := make([]*assignment.Assignment, 0, len(set))
	for _, a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
