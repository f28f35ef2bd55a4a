package assignment

import (
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "studyplan-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndGetAssignment(t *testing.T) {
	store := newTestStore(t)

	a := &Assignment{
		ID:               "a1",
		Title:            "Essay on Rome",
		Course:           "History",
		DueDate:          time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		Description:      "Five pages",
		Type:             TypeEssay,
		EstimatedMinutes: 180,
		Stage:            StageTriage,
		Source:           SourceClassroom,
	}
	if err := store.SaveAssignment(a); err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}

	got, err := store.GetAssignment("a1")
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if got.Title != "Essay on Rome" || got.Type != TypeEssay || got.Stage != StageTriage {
		t.Errorf("got %+v", got)
	}
	if got.EstimatedMinutes != 180 {
		t.Errorf("EstimatedMinutes = %d, want 180", got.EstimatedMinutes)
	}
}

func TestStore_SaveAssignmentIsUpsert(t *testing.T) {
	store := newTestStore(t)

	a := &Assignment{ID: "a1", Title: "v1", Course: "Math", Stage: StageTriage, Source: SourceManual}
	if err := store.SaveAssignment(a); err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}
	a.Title = "v2"
	a.Stage = StageScheduled
	if err := store.SaveAssignment(a); err != nil {
		t.Fatalf("SaveAssignment again: %v", err)
	}

	got, err := store.GetAssignment("a1")
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if got.Title != "v2" || got.Stage != StageScheduled {
		t.Errorf("got %+v, want updated row", got)
	}

	all, err := store.ListAssignments("")
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d rows, want 1", len(all))
	}
}

func TestStore_ListAssignmentsByStage(t *testing.T) {
	store := newTestStore(t)
	for _, a := range []*Assignment{
		{ID: "t1", Title: "x", Course: "c", Stage: StageTriage, Source: SourceManual},
		{ID: "s1", Title: "y", Course: "c", Stage: StageScheduled, Source: SourceManual},
		{ID: "t2", Title: "z", Course: "c", Stage: StageTriage, Source: SourceClassroom},
	} {
		if err := store.SaveAssignment(a); err != nil {
			t.Fatalf("SaveAssignment: %v", err)
		}
	}

	triage, err := store.ListAssignments(StageTriage)
	if err != nil {
		t.Fatalf("ListAssignments triage: %v", err)
	}
	if len(triage) != 2 {
		t.Errorf("triage rows = %d, want 2", len(triage))
	}
}

func TestStore_TasksRoundTrip(t *testing.T) {
	store := newTestStore(t)

	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	task := &ScheduledTask{
		ID:           "ev-123",
		AssignmentID: "a1",
		Title:        "Read chapter 3",
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		Status:       TaskPending,
	}
	if err := store.SaveTask(task); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	task.Status = TaskCompleted
	if err := store.SaveTask(task); err != nil {
		t.Fatalf("SaveTask update: %v", err)
	}

	tasks, err := store.ListTasks("a1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Status != TaskCompleted {
		t.Errorf("Status = %q, want completed", tasks[0].Status)
	}
}

func TestStore_DeleteAssignmentRemovesTasks(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveAssignment(&Assignment{ID: "a1", Title: "x", Course: "c", Stage: StageScheduled, Source: SourceManual}); err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}
	start := time.Now().UTC()
	if err := store.SaveTask(&ScheduledTask{ID: "ev1", AssignmentID: "a1", Title: "b", StartTime: start, EndTime: start.Add(time.Hour), Status: TaskPending}); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}

	if err := store.DeleteAssignment("a1"); err != nil {
		t.Fatalf("DeleteAssignment: %v", err)
	}
	tasks, err := store.ListTasks("a1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks remain after delete: %v", tasks)
	}
	if err := store.DeleteAssignment("a1"); err == nil {
		t.Error("expected error deleting missing assignment")
	}
}
