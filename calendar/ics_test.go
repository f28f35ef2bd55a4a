package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func icsTimestamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// icsFixture builds a feed with a single timed event tomorrow, a weekly
// recurring event with one excluded occurrence, and an all-day event.
// Dates are relative to now because the source only expands from today
// forward.
func icsFixture(now time.Time) string {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	single := day.Add(9 * time.Hour)
	weekly := day.Add(13 * time.Hour)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//studyplan//test//EN",
		"BEGIN:VEVENT",
		"UID:single-1",
		"DTSTART:" + icsTimestamp(single),
		"DTEND:" + icsTimestamp(single.Add(time.Hour)),
		"SUMMARY:Dentist",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:weekly-1",
		"DTSTART:" + icsTimestamp(weekly),
		"DTEND:" + icsTimestamp(weekly.Add(30*time.Minute)),
		"RRULE:FREQ=WEEKLY;COUNT=3",
		"EXDATE:" + icsTimestamp(weekly.AddDate(0, 0, 7)),
		"SUMMARY:Club meeting",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:allday-1",
		"DTSTART;VALUE=DATE:" + day.AddDate(0, 0, 2).Format("20060102"),
		"DTEND;VALUE=DATE:" + day.AddDate(0, 0, 3).Format("20060102"),
		"SUMMARY:Holiday",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTART:" + icsTimestamp(single),
		"DTEND:" + icsTimestamp(single.Add(time.Hour)),
		"SUMMARY:No UID",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func TestICSSourceEvents(t *testing.T) {
	now := time.Now()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		fmt.Fprint(w, icsFixture(now))
	}))
	defer server.Close()

	src := NewICSSource([]ICSFeed{{ID: "school", URL: server.URL}}, time.UTC, slog.Default())
	events, err := src.Events(context.Background(), 30)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}

	byTitle := map[string][]Event{}
	for _, ev := range events {
		byTitle[ev.Title] = append(byTitle[ev.Title], ev)
		if ev.Source != SourceICS {
			t.Errorf("event %s source = %s", ev.ID, ev.Source)
		}
	}

	if got := len(byTitle["Dentist"]); got != 1 {
		t.Errorf("Dentist occurrences = %d, want 1", got)
	}
	if got := len(byTitle["Club meeting"]); got != 2 {
		t.Errorf("Club meeting occurrences = %d, want 2 (one of three excluded)", got)
	}
	for _, ev := range byTitle["Club meeting"] {
		if ev.EndTime.Sub(ev.StartTime) != 30*time.Minute {
			t.Errorf("occurrence %s duration = %v, want 30m", ev.ID, ev.EndTime.Sub(ev.StartTime))
		}
	}
	if got := len(byTitle["Holiday"]); got == 1 {
		ev := byTitle["Holiday"][0]
		if ev.StartTime.Hour() != 0 || ev.EndTime.Sub(ev.StartTime) != 24*time.Hour {
			t.Errorf("all-day event = %v to %v, want a midnight-aligned day", ev.StartTime, ev.EndTime)
		}
	} else {
		t.Errorf("Holiday occurrences = %d, want 1", got)
	}
	if got := len(byTitle["No UID"]); got != 0 {
		t.Errorf("event without UID should be skipped, got %d", got)
	}

	// Distinct occurrence ids within a feed.
	seen := map[string]bool{}
	for _, ev := range events {
		if seen[ev.ID] {
			t.Errorf("duplicate event id %s", ev.ID)
		}
		seen[ev.ID] = true
	}
}

func TestICSSourceFeedFailureIsIsolated(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, icsFixture(time.Now()))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()

	src := NewICSSource([]ICSFeed{
		{ID: "bad", URL: bad.URL},
		{ID: "good", URL: good.URL},
	}, time.UTC, slog.Default())

	events, err := src.Events(context.Background(), 30)
	if err != nil {
		t.Fatalf("Events() error = %v, want degraded success", err)
	}
	if len(events) == 0 {
		t.Error("healthy feed's events should survive the failing feed")
	}
}
