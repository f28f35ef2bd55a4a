package calendar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// occurrenceCap bounds recurrence expansion for pathological feeds.
const occurrenceCap = 1000

// ICSFeed is a single subscribed ICS source.
type ICSFeed struct {
	ID  string
	URL string
}

// ICSSource reads busy events from one or more ICS subscription feeds.
// It is read-only; study blocks are never written to an ICS feed.
type ICSSource struct {
	feeds    []ICSFeed
	location *time.Location
	client   *http.Client
	logger   *slog.Logger
}

// NewICSSource creates an ICS source. Occurrences are normalized into loc
// (time.Local when nil).
func NewICSSource(feeds []ICSFeed, loc *time.Location, logger *slog.Logger) *ICSSource {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ICSSource{
		feeds:    feeds,
		location: loc,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
	}
}

// Events fetches every feed, expands recurrences over the window, and
// returns the resulting busy events. A failing feed is logged and skipped;
// it never fails the whole fetch.
func (s *ICSSource) Events(ctx context.Context, windowDays int) ([]Event, error) {
	if windowDays <= 0 {
		windowDays = 365
	}
	now := time.Now().In(s.location)
	rangeStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	rangeEnd := rangeStart.AddDate(0, 0, windowDays)

	var events []Event
	for _, feed := range s.feeds {
		body, err := s.fetch(ctx, feed)
		if err != nil {
			s.logger.Warn("ics feed fetch failed", "feed", feed.ID, "error", err)
			continue
		}
		parsed, err := s.expand(feed, body, rangeStart, rangeEnd)
		if err != nil {
			s.logger.Warn("ics feed parse failed", "feed", feed.ID, "error", err)
			continue
		}
		events = append(events, parsed...)
	}
	return events, nil
}

func (s *ICSSource) fetch(ctx context.Context, feed ICSFeed) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ics: create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics: fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch feed: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ics: read feed: %w", err)
	}
	return body, nil
}

// expand parses the ICS payload and expands each VEVENT into concrete
// occurrences intersecting [rangeStart, rangeEnd), converted into the
// source's display location.
func (s *ICSSource) expand(feed ICSFeed, body []byte, rangeStart, rangeEnd time.Time) ([]Event, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	var events []Event
	for _, ve := range cal.Events() {
		occs, err := s.expandVEvent(feed, ve, rangeStart, rangeEnd)
		if err != nil {
			s.logger.Warn("ics vevent skipped", "feed", feed.ID, "error", err)
			continue
		}
		events = append(events, occs...)
	}
	return events, nil
}

func (s *ICSSource) expandVEvent(feed ICSFeed, ve *ical.VEvent, rangeStart, rangeEnd time.Time) ([]Event, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, fmt.Errorf("vevent missing UID")
	}
	uid := uidProp.Value

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("vevent %s: start: %w", uid, err)
	}
	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		// Events without a usable DTEND occupy one hour.
		end = start.Add(time.Hour)
	}

	title := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		title = p.Value
	}
	description := ""
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		description = p.Value
	}
	allDay := false
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil && !strings.Contains(p.Value, "T") {
		allDay = true
	}

	var rawRRule string
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRRule = p.Value
	}

	make1 := func(occStart, occEnd time.Time) Event {
		localStart := occStart.In(s.location)
		localEnd := occEnd.In(s.location)
		if allDay {
			localStart = time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, s.location)
			localEnd = localStart.Add(24 * time.Hour)
		}
		return Event{
			ID:          fmt.Sprintf("%s/%s/%s", feed.ID, uid, localStart.Format(time.RFC3339)),
			Title:       title,
			StartTime:   localStart,
			EndTime:     localEnd,
			Source:      SourceICS,
			Description: description,
		}
	}

	if rawRRule == "" {
		if end.Before(rangeStart) || start.After(rangeEnd) {
			return nil, nil
		}
		return []Event{make1(start, end)}, nil
	}

	rule, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, fmt.Errorf("vevent %s: rrule: %w", uid, err)
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if ex, perr := parseICSTimestamp(part, start.Location()); perr == nil {
				set.ExDate(ex)
			}
		}
	}

	duration := end.Sub(start)
	occTimes := set.Between(rangeStart.In(start.Location()), rangeEnd.In(start.Location()), true)
	if len(occTimes) > occurrenceCap {
		occTimes = occTimes[:occurrenceCap]
	}

	events := make([]Event, 0, len(occTimes))
	for _, occStart := range occTimes {
		events = append(events, make1(occStart, occStart.Add(duration)))
	}
	return events, nil
}

// parseICSTimestamp handles the basic EXDATE value forms: UTC date-time,
// floating date-time, and date-only.
func parseICSTimestamp(v string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
