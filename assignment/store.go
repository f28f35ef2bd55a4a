package assignment

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS assignments (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	course            TEXT NOT NULL,
	course_id         TEXT NOT NULL DEFAULT '',
	due_date          DATETIME NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	type              TEXT NOT NULL DEFAULT '',
	estimated_minutes INTEGER NOT NULL DEFAULT 0,
	actual_minutes    INTEGER NOT NULL DEFAULT 0,
	progress          INTEGER NOT NULL DEFAULT 0,
	stage             TEXT NOT NULL,
	source            TEXT NOT NULL,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id            TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL,
	title         TEXT NOT NULL,
	start_time    DATETIME NOT NULL,
	end_time      DATETIME NOT NULL,
	status        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_assignment ON scheduled_tasks(assignment_id);
`

// SQLiteStore persists assignments and scheduled tasks so a planning
// session survives process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and
// ensures the schema exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveAssignment inserts or replaces an assignment, updating UpdatedAt.
func (s *SQLiteStore) SaveAssignment(a *Assignment) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO assignments
			(id, title, course, course_id, due_date, description, type,
			 estimated_minutes, actual_minutes, progress, stage, source, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Title, a.Course, a.CourseID, a.DueDate, a.Description, string(a.Type),
		a.EstimatedMinutes, a.ActualMinutes, a.Progress, string(a.Stage), string(a.Source),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}
	return nil
}

// GetAssignment retrieves an assignment by ID.
func (s *SQLiteStore) GetAssignment(id string) (*Assignment, error) {
	row := s.db.QueryRow(`SELECT * FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assignment %s not found", id)
	}
	return a, err
}

// ListAssignments returns assignments, optionally restricted to a stage.
func (s *SQLiteStore) ListAssignments(stage Stage) ([]*Assignment, error) {
	query := `SELECT * FROM assignments`
	args := []any{}
	if stage != "" {
		query += ` WHERE stage = ?`
		args = append(args, string(stage))
	}
	query += ` ORDER BY due_date ASC, created_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// DeleteAssignment removes an assignment and its scheduled tasks.
func (s *SQLiteStore) DeleteAssignment(id string) error {
	res, err := s.db.Exec(`DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("assignment %s not found", id)
	}
	_, err = s.db.Exec(`DELETE FROM scheduled_tasks WHERE assignment_id = ?`, id)
	return err
}

// SaveTask inserts or replaces a scheduled task.
func (s *SQLiteStore) SaveTask(t *ScheduledTask) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO scheduled_tasks
			(id, assignment_id, title, start_time, end_time, status)
		VALUES (?,?,?,?,?,?)`,
		t.ID, t.AssignmentID, t.Title, t.StartTime, t.EndTime, string(t.Status),
	)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// ListTasks returns scheduled tasks, all of them or one assignment's.
func (s *SQLiteStore) ListTasks(assignmentID string) ([]*ScheduledTask, error) {
	query := `SELECT * FROM scheduled_tasks`
	args := []any{}
	if assignmentID != "" {
		query += ` WHERE assignment_id = ?`
		args = append(args, assignmentID)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*ScheduledTask
	for rows.Next() {
		var t ScheduledTask
		var status string
		if err := rows.Scan(&t.ID, &t.AssignmentID, &t.Title, &t.StartTime, &t.EndTime, &status); err != nil {
			return nil, err
		}
		t.Status = TaskStatus(status)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanAssignment.
type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(s scanner) (*Assignment, error) {
	var a Assignment
	var typ, stage, source string
	err := s.Scan(
		&a.ID, &a.Title, &a.Course, &a.CourseID, &a.DueDate, &a.Description, &typ,
		&a.EstimatedMinutes, &a.ActualMinutes, &a.Progress, &stage, &source,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Type = Type(typ)
	a.Stage = Stage(stage)
	a.Source = Source(source)
	return &a, nil
}
