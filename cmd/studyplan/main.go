// Command studyplan is the homework planning CLI. It pulls coursework
// and busy calendar time, asks the scheduling oracle to allocate study
// blocks, and writes the accepted blocks back to the calendar.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/studyplan-dev/studyplan/assignment"
	"github.com/studyplan-dev/studyplan/availability"
	"github.com/studyplan-dev/studyplan/calendar"
	"github.com/studyplan-dev/studyplan/classroom"
	"github.com/studyplan-dev/studyplan/config"
	"github.com/studyplan-dev/studyplan/internal/version"
	"github.com/studyplan-dev/studyplan/oracle"
	"github.com/studyplan-dev/studyplan/planner"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the wired collaborators for command handlers.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	planner *planner.Planner
	writer  calendar.Writer
}

func newRootCmd() *cobra.Command {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "studyplan",
		Short:         "Plan homework into free calendar time",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "studyplan.yaml", "path to config file")

	root.AddCommand(
		newVersionCmd(),
		newRefreshCmd(a),
		newTriageCmd(a),
		newScheduledCmd(a),
		newPlanCmd(a),
		newAddCmd(a),
		newTasksCmd(a),
		newDoneCmd(a),
		newEventCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup loads config and wires the planner and its collaborators.
func (a *app) setup(configPath string) error {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
	}

	calc := availability.NewCalculator(loc)
	calc.WorkStartHour = cfg.Planner.WorkStartHour
	calc.WorkEndHour = cfg.Planner.WorkEndHour

	var sources []calendar.Source
	if cfg.Calendar.GoogleAccessToken != "" {
		google := calendar.NewGoogleClient(calendar.GoogleConfig{
			AccessToken: cfg.Calendar.GoogleAccessToken,
			CalendarID:  cfg.Calendar.GoogleCalendarID,
			Timezone:    loc.String(),
		})
		sources = append(sources, google)
		a.writer = google
	}
	if len(cfg.Calendar.ICSFeeds) > 0 {
		feeds := make([]calendar.ICSFeed, 0, len(cfg.Calendar.ICSFeeds))
		for _, f := range cfg.Calendar.ICSFeeds {
			feeds = append(feeds, calendar.ICSFeed{ID: f.ID, URL: f.URL})
		}
		sources = append(sources, calendar.NewICSSource(feeds, loc, a.logger))
	}

	var coursework planner.CourseworkSource
	if cfg.Classroom.AccessToken != "" {
		coursework = classroom.NewClient(classroom.Config{
			AccessToken: cfg.Classroom.AccessToken,
			Logger:      a.logger,
		})
	}

	var orc oracle.Oracle
	switch cfg.Oracle.Provider {
	case "gemini":
		orc = oracle.NewGeminiOracle(oracle.GeminiConfig{
			APIKey: cfg.Oracle.APIKey,
			Model:  cfg.Oracle.Model,
		})
	default:
		orc = oracle.NewMockOracle()
	}

	var store *assignment.SQLiteStore
	if cfg.DBPath != "" {
		var err error
		store, err = assignment.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
	}

	a.planner = planner.New(planner.Config{
		Sources:     sources,
		Writer:      a.writer,
		Coursework:  coursework,
		Oracle:      orc,
		Calculator:  calc,
		Store:       store,
		HorizonDays: cfg.Planner.HorizonDays,
		Logger:      a.logger,
	})
	if err := a.planner.LoadState(); err != nil {
		return err
	}
	return nil
}

func (a *app) refresh(ctx context.Context) {
	for _, err := range a.planner.Refresh(ctx) {
		a.logger.Warn("refresh degraded", "error", err)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("studyplan %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.BuildDate)
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch coursework and calendar events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.refresh(cmd.Context())
			fmt.Printf("triage: %d assignments, scheduled: %d, busy events: %d\n",
				len(a.planner.Session().Triage()),
				len(a.planner.Session().Scheduled()),
				len(a.planner.Session().Events()))
			return nil
		},
	}
}

func printAssignments(assignments []*assignment.Assignment) {
	if len(assignments) == 0 {
		fmt.Println("nothing here")
		return
	}
	fmt.Printf("%-26s %-30s %-16s %-12s %s\n", "ID", "TITLE", "COURSE", "DUE", "PROGRESS")
	fmt.Println(strings.Repeat("-", 95))
	for _, a := range assignments {
		fmt.Printf("%-26s %-30s %-16s %-12s %d%%\n",
			truncate(a.ID, 25), truncate(a.Title, 29), truncate(a.Course, 15),
			a.DueDate.Format("2006-01-02"), a.Progress)
	}
}

func newTriageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "triage",
		Short: "List assignments waiting for a type and time estimate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.refresh(cmd.Context())
			printAssignments(a.planner.Session().Triage())
			return nil
		},
	}
}

func newScheduledCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scheduled",
		Short: "List assignments with study blocks on the calendar",
		RunE: func(_ *cobra.Command, _ []string) error {
			printAssignments(a.planner.Session().Scheduled())
			return nil
		},
	}
}

func newPlanCmd(a *app) *cobra.Command {
	var typ string
	var minutes int
	cmd := &cobra.Command{
		Use:   "plan <assignment-id>",
		Short: "Schedule an assignment into free calendar time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.writer == nil {
				return fmt.Errorf("no writable calendar configured")
			}
			a.refresh(cmd.Context())
			id := args[0]
			if typ != "" || minutes > 0 {
				if _, err := a.planner.Promote(id, assignment.Type(typ), minutes); err != nil {
					return err
				}
			}
			tasks, err := a.planner.ScheduleAssignment(cmd.Context(), id)
			var perr *planner.PartialApplyError
			if errors.As(err, &perr) {
				fmt.Printf("warning: %v\n", perr)
				err = nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("scheduled %d study blocks:\n", len(tasks))
			for _, t := range tasks {
				fmt.Printf("  %s  %s - %s\n", t.ID,
					t.StartTime.Format("Mon Jan 2 15:04"), t.EndTime.Format("15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "assignment type (Homework, Project, Essay, Quiz, Test, Reading)")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "estimated minutes of work")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var course, due, description, typ string
	var minutes int
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a manual assignment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dueDate := time.Now().AddDate(0, 0, 7)
			if due != "" {
				parsed, err := time.ParseInLocation("2006-01-02", due, time.Local)
				if err != nil {
					return fmt.Errorf("parse due date %q: %w", due, err)
				}
				dueDate = parsed
			}
			added := a.planner.AddManual(&assignment.Assignment{
				Title:            strings.Join(args, " "),
				Course:           course,
				DueDate:          dueDate,
				Description:      description,
				Type:             assignment.Type(typ),
				EstimatedMinutes: minutes,
			})
			fmt.Printf("added %s (%s)\n", added.ID, added.Stage)
			return nil
		},
	}
	cmd.Flags().StringVar(&course, "course", "", "course name")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "assignment description")
	cmd.Flags().StringVar(&typ, "type", "", "assignment type")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "estimated minutes of work")
	return cmd
}

func newTasksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks [assignment-id]",
		Short: "List scheduled study blocks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			tasks := a.planner.Session().Tasks(id)
			if len(tasks) == 0 {
				fmt.Println("no study blocks")
				return nil
			}
			for _, t := range tasks {
				mark := " "
				if t.Status == assignment.TaskCompleted {
					mark = "x"
				}
				fmt.Printf("[%s] %s  %s - %s  %s\n", mark, t.ID,
					t.StartTime.Format("Mon Jan 2 15:04"), t.EndTime.Format("15:04"), t.Title)
			}
			return nil
		},
	}
}

func newDoneCmd(a *app) *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "done <task-id>",
		Short: "Mark a study block complete, recording time spent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var progress int
			var err error
			if minutes > 0 {
				progress, err = a.planner.CompleteTask(cmd.Context(), args[0], minutes)
			} else {
				progress, err = a.planner.ToggleTask(args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("progress: %d%%\n", progress)
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "actual minutes spent on this block")
	return cmd
}

func newEventCmd(a *app) *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "event <title>",
		Short: "Add a manual busy event to the calendar",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.writer == nil {
				return fmt.Errorf("no writable calendar configured")
			}
			startTime, err := time.ParseInLocation("2006-01-02 15:04", start, time.Local)
			if err != nil {
				return fmt.Errorf("parse start %q: %w", start, err)
			}
			endTime, err := time.ParseInLocation("2006-01-02 15:04", end, time.Local)
			if err != nil {
				return fmt.Errorf("parse end %q: %w", end, err)
			}
			created, err := a.planner.AddEvent(cmd.Context(), calendar.Draft{
				Title:     strings.Join(args, " "),
				StartTime: startTime,
				EndTime:   endTime,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created event %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "end time (YYYY-MM-DD HH:MM)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Refresh on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec := a.cfg.Planner.RefreshCron
			if spec == "" {
				spec = "*/15 * * * *"
			}
			c := cron.New()
			if _, err := c.AddFunc(spec, func() {
				a.logger.Info("scheduled refresh")
				a.refresh(context.Background())
			}); err != nil {
				return fmt.Errorf("cron spec %q: %w", spec, err)
			}

			a.refresh(cmd.Context())
			c.Start()
			fmt.Printf("watching (refresh %s), ctrl-c to stop\n", spec)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			<-c.Stop().Done()
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
