package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/studyplan-dev/studyplan/assignment"
	"github.com/studyplan-dev/studyplan/availability"
	"github.com/studyplan-dev/studyplan/calendar"
	"github.com/studyplan-dev/studyplan/classroom"
	"github.com/studyplan-dev/studyplan/oracle"
)

// ErrNoCapacity is returned when the horizon has no free time to offer
// the oracle.
var ErrNoCapacity = errors.New("no free time available in the scheduling horizon")

// CourseworkSource supplies open assignments from an external system.
type CourseworkSource interface {
	Assignments(ctx context.Context) ([]classroom.WorkItem, error)
}

// Config wires the planner's collaborators.
type Config struct {
	Sources     []calendar.Source
	Writer      calendar.Writer
	Coursework  CourseworkSource // optional
	Oracle      oracle.Oracle
	Calculator  *availability.Calculator
	Store       *assignment.SQLiteStore // optional
	HorizonDays int
	Logger      *slog.Logger
	Now         func() time.Time
}

// Planner drives the refresh and scheduling flows over a single session.
type Planner struct {
	session *Session
	cfg     Config
}

// New creates a planner with an empty session.
func New(cfg Config) *Planner {
	if cfg.Calculator == nil {
		cfg.Calculator = availability.NewCalculator(nil)
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = availability.DefaultHorizonDays
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Planner{session: NewSession(), cfg: cfg}
}

// Session exposes the planning state for read access.
func (p *Planner) Session() *Session { return p.session }

// LoadState restores the session from the store, when one is configured.
func (p *Planner) LoadState() error {
	if p.cfg.Store == nil {
		return nil
	}
	assignments, err := p.cfg.Store.ListAssignments("")
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	for _, a := range assignments {
		if a.Stage == assignment.StageScheduled {
			p.session.AddScheduled(a)
		} else {
			p.session.AddTriage(a)
		}
	}
	tasks, err := p.cfg.Store.ListTasks("")
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	p.session.AppendTasks(tasks)
	return nil
}

// Refresh pulls busy events and coursework from every collaborator and
// reconciles them into the session. One failing collaborator degrades to
// an empty result and is reported; it never aborts the rest of the
// cycle. Stale refreshes (superseded by a later caller) are discarded.
func (p *Planner) Refresh(ctx context.Context) []error {
	gen := p.session.BeginRefresh()

	var degraded []error
	var events []calendar.Event
	for _, src := range p.cfg.Sources {
		got, err := src.Events(ctx, 0)
		if err != nil {
			p.cfg.Logger.Warn("calendar fetch failed", "error", err)
			degraded = append(degraded, &FetchError{Resource: "calendar", Err: err})
			continue
		}
		events = append(events, got...)
	}

	if !p.session.CommitEvents(gen, events) {
		p.cfg.Logger.Debug("refresh superseded, discarding results", "generation", gen)
		return degraded
	}

	if p.cfg.Coursework != nil {
		items, err := p.cfg.Coursework.Assignments(ctx)
		if err != nil {
			p.cfg.Logger.Warn("coursework fetch failed", "error", err)
			degraded = append(degraded, &FetchError{Resource: "coursework", Err: err})
		} else {
			markers := ScheduledTitles(events)
			admitted := p.session.MergeCoursework(items, markers, p.cfg.Logger)
			if admitted > 0 {
				p.cfg.Logger.Info("coursework admitted to triage", "count", admitted)
				for _, a := range p.session.Triage() {
					p.persistAssignment(a)
				}
			}
		}
	}
	return degraded
}

// Promote records the user-supplied type and estimate for a triage
// assignment, moving it to the scheduled set pending allocation.
func (p *Planner) Promote(id string, typ assignment.Type, estimatedMinutes int) (*assignment.Assignment, error) {
	a, ok := p.session.Promote(id, typ, estimatedMinutes)
	if !ok {
		return nil, fmt.Errorf("assignment %s not in triage", id)
	}
	p.persistAssignment(a)
	return a, nil
}

// AddManual creates a manual assignment. When it already carries a type
// and estimate it goes straight to the scheduled set; otherwise triage.
func (p *Planner) AddManual(a *assignment.Assignment) *assignment.Assignment {
	a.ID = "manual-" + uuid.NewString()
	a.Source = assignment.SourceManual
	a.CreatedAt = time.Now().UTC()
	if a.Schedulable() {
		p.session.AddScheduled(a)
	} else {
		p.session.AddTriage(a)
	}
	p.persistAssignment(a)
	return a
}

// ScheduleAssignment runs the full allocation flow for one scheduled
// assignment: horizon derivation, oracle call, structural validation,
// and sequential application to the calendar.
//
// Failure policy, per error kind:
//   - oracle failure or invalid allocation: nothing touched the
//     calendar, the assignment returns to triage for resubmission
//   - partial application: the created prefix of tasks is kept and the
//     assignment stays scheduled; the error reports created/total
func (p *Planner) ScheduleAssignment(ctx context.Context, id string) ([]*assignment.ScheduledTask, error) {
	a, ok := p.session.Assignment(id)
	if !ok {
		return nil, fmt.Errorf("assignment %s not found", id)
	}
	if !a.Schedulable() {
		return nil, fmt.Errorf("assignment %s needs a type and time estimate before scheduling", id)
	}
	if a.Stage != assignment.StageScheduled {
		p.session.AddScheduled(a)
	}

	horizon := p.cfg.Calculator.Horizon(p.session.Events(), p.cfg.Now(), p.cfg.HorizonDays)
	if horizon.TotalMinutes() == 0 {
		p.demote(a)
		return nil, ErrNoCapacity
	}

	req := BuildRequest(a, horizon)
	items, err := p.cfg.Oracle.Schedule(ctx, req)
	if err != nil {
		p.demote(a)
		var verr *oracle.ValidationError
		if errors.As(err, &verr) {
			return nil, &InvalidAllocationError{Err: err}
		}
		return nil, &OracleError{Err: err}
	}

	blocks, err := oracle.Validate(items, horizon, a.EstimatedMinutes)
	if err != nil {
		p.demote(a)
		return nil, &InvalidAllocationError{Err: err}
	}

	tasks, applyErr := Apply(ctx, p.cfg.Writer, a, blocks)
	p.session.AppendTasks(tasks)
	for _, t := range tasks {
		p.persistTask(t)
	}
	p.persistAssignment(a)
	if applyErr != nil {
		// Real calendar state exists for the created prefix; the
		// assignment stays scheduled rather than being orphaned.
		return tasks, applyErr
	}
	return tasks, nil
}

// ToggleTask flips a study block's completion and returns the owning
// assignment's recomputed progress.
func (p *Planner) ToggleTask(taskID string) (int, error) {
	t, progress, ok := p.session.ToggleTask(taskID)
	if !ok {
		return 0, fmt.Errorf("task %s not found", taskID)
	}
	p.persistTask(t)
	if a, ok := p.session.Assignment(t.AssignmentID); ok {
		p.persistAssignment(a)
	}
	return progress, nil
}

// CompleteTask marks a study block completed and records the actual
// minutes spent. Once every block of the assignment is complete and real
// time was recorded, the oracle is asked to recalibrate the estimate for
// similar future work.
func (p *Planner) CompleteTask(ctx context.Context, taskID string, actualMinutes int) (int, error) {
	t, _, ok := p.session.ToggleTask(taskID)
	if !ok {
		return 0, fmt.Errorf("task %s not found", taskID)
	}
	if t.Status != assignment.TaskCompleted {
		// Toggle flipped it back to pending; flip again to complete.
		t, _, _ = p.session.ToggleTask(taskID)
	}
	p.persistTask(t)

	a, ok := p.session.Assignment(t.AssignmentID)
	if !ok {
		return 0, fmt.Errorf("assignment %s not found for task %s", t.AssignmentID, taskID)
	}
	a.ActualMinutes += actualMinutes
	progress := a.Progress

	if progress == 100 && a.ActualMinutes > 0 && p.cfg.Oracle != nil {
		if err := p.adjustEstimate(ctx, a); err != nil {
			p.cfg.Logger.Warn("estimate adjustment failed", "assignment", a.ID, "error", err)
		}
	}
	p.persistAssignment(a)
	return progress, nil
}

// adjustEstimate feeds observed working speed back into the estimate.
func (p *Planner) adjustEstimate(ctx context.Context, a *assignment.Assignment) error {
	scheduleJSON, err := json.Marshal(p.session.Tasks(a.ID))
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	result, err := p.cfg.Oracle.AdjustEstimate(ctx, oracle.AdjustmentRequest{
		TaskID:           a.ID,
		EstimatedMinutes: a.EstimatedMinutes,
		ActualMinutes:    a.ActualMinutes,
		ScheduleJSON:     string(scheduleJSON),
	})
	if err != nil {
		return err
	}
	p.cfg.Logger.Info("estimate recalibrated",
		"assignment", a.ID, "old", a.EstimatedMinutes, "new", result.NewEstimatedMinutes)
	a.EstimatedMinutes = result.NewEstimatedMinutes
	return nil
}

// AddEvent creates a manual calendar event and refreshes the busy cache.
func (p *Planner) AddEvent(ctx context.Context, draft calendar.Draft) (calendar.Event, error) {
	if draft.Description == "" {
		draft.Description = "Manually added event."
	}
	created, err := p.cfg.Writer.Create(ctx, draft)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("create event: %w", err)
	}
	p.Refresh(ctx)
	return created, nil
}

func (p *Planner) demote(a *assignment.Assignment) {
	p.session.Demote(a.ID)
	p.persistAssignment(a)
}

func (p *Planner) persistAssignment(a *assignment.Assignment) {
	if p.cfg.Store == nil {
		return
	}
	if err := p.cfg.Store.SaveAssignment(a); err != nil {
		p.cfg.Logger.Warn("persist assignment failed", "id", a.ID, "error", err)
	}
}

func (p *Planner) persistTask(t *assignment.ScheduledTask) {
	if p.cfg.Store == nil {
		return
	}
	if err := p.cfg.Store.SaveTask(t); err != nil {
		p.cfg.Logger.Warn("persist task failed", "id", t.ID, "error", err)
	}
}
