package planner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/studyplan-dev/studyplan/assignment"
	"github.com/studyplan-dev/studyplan/availability"
	"github.com/studyplan-dev/studyplan/calendar"
	"github.com/studyplan-dev/studyplan/classroom"
	"github.com/studyplan-dev/studyplan/oracle"
)

type fakeSource struct {
	events []calendar.Event
	err    error
}

func (s *fakeSource) Events(_ context.Context, _ int) ([]calendar.Event, error) {
	return s.events, s.err
}

type fakeCoursework struct {
	items []classroom.WorkItem
	err   error
}

func (c *fakeCoursework) Assignments(_ context.Context) ([]classroom.WorkItem, error) {
	return c.items, c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Monday morning before the work envelope opens, so every horizon day is
// fully free.
var testNow = time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

func newTestPlanner(t *testing.T, cfg Config) *Planner {
	t.Helper()
	if cfg.Calculator == nil {
		cfg.Calculator = availability.NewCalculator(time.UTC)
	}
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	return New(cfg)
}

func TestRefreshMergesCourseworkAndDegrades(t *testing.T) {
	due := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	busy := calendar.Event{
		ID:          "ev-1",
		Title:       "Worksheet 4",
		StartTime:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		Description: "AI-generated study block for:\nOriginal Assignment: Worksheet 4\nType: Homework",
	}
	p := newTestPlanner(t, Config{
		Sources: []calendar.Source{
			&fakeSource{events: []calendar.Event{busy}},
			&fakeSource{err: errors.New("feed unreachable")},
		},
		Coursework: &fakeCoursework{items: []classroom.WorkItem{
			{ID: "cw-1", Title: "Worksheet 5", CourseName: "Math 101", DueDate: &due},
			{ID: "cw-0", Title: "Worksheet 4", CourseName: "Math 101", DueDate: &due},
		}},
		Oracle: oracle.NewMockOracle(),
	})

	degraded := p.Refresh(context.Background())
	if len(degraded) != 1 {
		t.Fatalf("degraded = %v, want exactly the failing source", degraded)
	}
	var ferr *FetchError
	if !errors.As(degraded[0], &ferr) {
		t.Fatalf("degraded error type = %T, want *FetchError", degraded[0])
	}

	if got := len(p.Session().Events()); got != 1 {
		t.Errorf("events = %d, want 1 from the healthy source", got)
	}
	triage := p.Session().Triage()
	if len(triage) != 1 || triage[0].ID != "cw-1" {
		t.Errorf("triage = %+v, want only cw-1 (Worksheet 4 marker-suppressed)", triage)
	}
}

func TestRefreshCourseworkFailureDegrades(t *testing.T) {
	p := newTestPlanner(t, Config{
		Sources:    []calendar.Source{&fakeSource{}},
		Coursework: &fakeCoursework{err: errors.New("classroom 500")},
		Oracle:     oracle.NewMockOracle(),
	})
	degraded := p.Refresh(context.Background())
	if len(degraded) != 1 {
		t.Fatalf("degraded = %v, want the coursework failure", degraded)
	}
	if len(p.Session().Triage()) != 0 {
		t.Error("triage should stay empty when coursework fetch fails")
	}
}

func TestScheduleAssignmentEndToEnd(t *testing.T) {
	w := newFakeWriter()
	p := newTestPlanner(t, Config{
		Sources: []calendar.Source{&fakeSource{}},
		Writer:  w,
		Oracle:  oracle.NewMockOracle(),
	})
	p.Refresh(context.Background())

	due := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	p.Session().AddTriage(testAssignment("cw-1", "Worksheet 5", due))
	if _, err := p.Promote("cw-1", assignment.TypeHomework, 120); err != nil {
		t.Fatal(err)
	}

	tasks, err := p.ScheduleAssignment(context.Background(), "cw-1")
	if err != nil {
		t.Fatalf("ScheduleAssignment() error = %v", err)
	}
	if len(tasks) == 0 {
		t.Fatal("no tasks created")
	}
	total := 0
	for _, task := range tasks {
		total += int(task.EndTime.Sub(task.StartTime).Minutes())
	}
	if total != 120 {
		t.Errorf("scheduled %d minutes, want exactly 120", total)
	}
	if len(w.created) != len(tasks) {
		t.Errorf("calendar writes = %d, tasks = %d", len(w.created), len(tasks))
	}

	a, _ := p.Session().Assignment("cw-1")
	if a.Stage != assignment.StageScheduled {
		t.Errorf("stage = %s, want scheduled", a.Stage)
	}
	if a.Progress != 0 {
		t.Errorf("progress = %d, want 0 with all tasks pending", a.Progress)
	}
}

func TestScheduleAssignmentOracleFailureReturnsToTriage(t *testing.T) {
	mock := oracle.NewMockOracle()
	mock.Err = errors.New("model overloaded")
	p := newTestPlanner(t, Config{
		Sources: []calendar.Source{&fakeSource{}},
		Writer:  newFakeWriter(),
		Oracle:  mock,
	})
	p.Refresh(context.Background())

	due := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	p.Session().AddTriage(testAssignment("cw-1", "Worksheet 5", due))
	p.Promote("cw-1", assignment.TypeHomework, 60)

	_, err := p.ScheduleAssignment(context.Background(), "cw-1")
	var oerr *OracleError
	if !errors.As(err, &oerr) {
		t.Fatalf("error = %v (%T), want *OracleError", err, err)
	}
	a, _ := p.Session().Assignment("cw-1")
	if a.Stage != assignment.StageTriage {
		t.Errorf("stage = %s, want assignment back in triage", a.Stage)
	}
}

func TestScheduleAssignmentInvalidAllocationReturnsToTriage(t *testing.T) {
	mock := oracle.NewMockOracle()
	// 80 minutes allocated against a 90 minute estimate.
	mock.Items = []oracle.Item{
		{Task: "Worksheet 5", StartTime: "2025-03-10T08:00:00Z", EndTime: "2025-03-10T09:20:00Z"},
	}
	w := newFakeWriter()
	p := newTestPlanner(t, Config{
		Sources: []calendar.Source{&fakeSource{}},
		Writer:  w,
		Oracle:  mock,
	})
	p.Refresh(context.Background())

	due := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	p.Session().AddTriage(testAssignment("cw-1", "Worksheet 5", due))
	p.Promote("cw-1", assignment.TypeHomework, 90)

	_, err := p.ScheduleAssignment(context.Background(), "cw-1")
	var ierr *InvalidAllocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("error = %v (%T), want *InvalidAllocationError", err, err)
	}
	if len(w.created) != 0 {
		t.Errorf("calendar writes = %d, want none for a rejected allocation", len(w.created))
	}
	a, _ := p.Session().Assignment("cw-1")
	if a.Stage != assignment.StageTriage {
		t.Errorf("stage = %s, want triage", a.Stage)
	}
}

func TestScheduleAssignmentPartialApplyStaysScheduled(t *testing.T) {
	mock := oracle.NewMockOracle()
	mock.Items = []oracle.Item{
		{Task: "Worksheet 5", StartTime: "2025-03-10T08:00:00Z", EndTime: "2025-03-10T08:30:00Z"},
		{Task: "Worksheet 5", StartTime: "2025-03-10T09:00:00Z", EndTime: "2025-03-10T09:30:00Z"},
		{Task: "Worksheet 5", StartTime: "2025-03-10T10:00:00Z", EndTime: "2025-03-10T10:30:00Z"},
	}
	w := newFakeWriter()
	w.failAt = 1
	p := newTestPlanner(t, Config{
		Sources: []calendar.Source{&fakeSource{}},
		Writer:  w,
		Oracle:  mock,
	})
	p.Refresh(context.Background())

	due := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	p.Session().AddTriage(testAssignment("cw-1", "Worksheet 5", due))
	p.Promote("cw-1", assignment.TypeHomework, 90)

	tasks, err := p.ScheduleAssignment(context.Background(), "cw-1")
	var perr *PartialApplyError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v (%T), want *PartialApplyError", err, err)
	}
	if perr.Created != 1 || perr.Total != 3 {
		t.Errorf("partial error = created %d of %d, want 1 of 3", perr.Created, perr.Total)
	}
	if len(tasks) != 1 {
		t.Errorf("kept tasks = %d, want 1", len(tasks))
	}
	a, _ := p.Session().Assignment("cw-1")
	if a.Stage != assignment.StageScheduled {
		t.Errorf("stage = %s, want still scheduled after partial apply", a.Stage)
	}
	if got := len(p.Session().Tasks("cw-1")); got != 1 {
		t.Errorf("session tasks = %d, want the created prefix", got)
	}
}

func TestCompleteTaskRecalibratesEstimate(t *testing.T) {
	w := newFakeWriter()
	p := newTestPlanner(t, Config{
		Sources: []calendar.Source{&fakeSource{}},
		Writer:  w,
		Oracle:  oracle.NewMockOracle(),
	})
	p.Refresh(context.Background())

	due := time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC)
	p.Session().AddTriage(testAssignment("cw-1", "Worksheet 5", due))
	p.Promote("cw-1", assignment.TypeHomework, 120)
	tasks, err := p.ScheduleAssignment(context.Background(), "cw-1")
	if err != nil {
		t.Fatal(err)
	}

	var progress int
	for i, task := range tasks {
		minutes := 30
		if i == len(tasks)-1 {
			minutes = 50
		}
		progress, err = p.CompleteTask(context.Background(), task.ID, minutes)
		if err != nil {
			t.Fatal(err)
		}
	}
	if progress != 100 {
		t.Fatalf("final progress = %d, want 100", progress)
	}
	a, _ := p.Session().Assignment("cw-1")
	if a.ActualMinutes == 0 {
		t.Error("actual minutes not recorded")
	}
	// The mock recalibrates to the midpoint of estimate and actual.
	want := (120 + a.ActualMinutes) / 2
	if a.EstimatedMinutes != want {
		t.Errorf("estimate after recalibration = %d, want %d", a.EstimatedMinutes, want)
	}
}

func TestAddManualAssignmentPlacement(t *testing.T) {
	p := newTestPlanner(t, Config{Oracle: oracle.NewMockOracle()})

	bare := p.AddManual(&assignment.Assignment{Title: "Read chapter 4", Course: "History"})
	if bare.Stage != assignment.StageTriage {
		t.Errorf("bare manual assignment stage = %s, want triage", bare.Stage)
	}
	full := p.AddManual(&assignment.Assignment{
		Title:            "Essay outline",
		Course:           "English",
		Type:             assignment.TypeEssay,
		EstimatedMinutes: 45,
	})
	if full.Stage != assignment.StageScheduled {
		t.Errorf("complete manual assignment stage = %s, want scheduled", full.Stage)
	}
	if bare.ID == full.ID || bare.ID == "" {
		t.Error("manual assignments need distinct generated ids")
	}
}
