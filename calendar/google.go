package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultGoogleBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleConfig holds configuration for the Google Calendar client.
type GoogleConfig struct {
	// AccessToken is a caller-supplied OAuth bearer token. Token refresh
	// is the caller's problem, not this client's.
	AccessToken string
	CalendarID  string
	Timezone    string
	BaseURL     string
	HTTPClient  *http.Client
}

// GoogleClient reads and creates events on a Google Calendar. It
// implements both Source and Writer.
type GoogleClient struct {
	config GoogleConfig
}

// NewGoogleClient creates a Google Calendar client with the given config.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGoogleBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &GoogleClient{config: cfg}
}

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID          string          `json:"id"`
	Summary     string          `json:"summary"`
	Description string          `json:"description,omitempty"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
}

type googleEventList struct {
	Items []googleEvent `json:"items"`
}

// Events lists events on the calendar, ordered by start time with
// recurring events expanded. windowDays > 0 restricts the query to
// [start of today, end of today+windowDays-1].
func (c *GoogleClient) Events(ctx context.Context, windowDays int) ([]Event, error) {
	q := url.Values{}
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	if windowDays > 0 {
		now := time.Now()
		min := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		max := min.AddDate(0, 0, windowDays)
		q.Set("timeMin", min.Format(time.RFC3339))
		q.Set("timeMax", max.Format(time.RFC3339))
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.config.BaseURL, url.PathEscape(c.config.CalendarID), q.Encode())
	var list googleEventList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(list.Items))
	for _, item := range list.Items {
		ev, err := item.toEvent()
		if err != nil {
			// Skip entries we cannot parse rather than failing the fetch.
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Create inserts a new event and returns it with the server-assigned ID.
func (c *GoogleClient) Create(ctx context.Context, draft Draft) (Event, error) {
	body := googleEvent{
		Summary:     draft.Title,
		Description: draft.Description,
		Start:       googleEventTime{DateTime: draft.StartTime.Format(time.RFC3339), TimeZone: c.config.Timezone},
		End:         googleEventTime{DateTime: draft.EndTime.Format(time.RFC3339), TimeZone: c.config.Timezone},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: marshal event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.config.BaseURL, url.PathEscape(c.config.CalendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Event{}, fmt.Errorf("google calendar: create event failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var created googleEvent
	if err := json.Unmarshal(respBody, &created); err != nil {
		return Event{}, fmt.Errorf("google calendar: unmarshal created event: %w", err)
	}
	ev, err := created.toEvent()
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: created event: %w", err)
	}
	return ev, nil
}

func (c *GoogleClient) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("google calendar: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("google calendar: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("google calendar: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google calendar: API error (status %d): %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("google calendar: unmarshal response: %w", err)
	}
	return nil
}

func (e googleEvent) toEvent() (Event, error) {
	start, err := parseGoogleTime(e.Start)
	if err != nil {
		return Event{}, fmt.Errorf("event %s start: %w", e.ID, err)
	}
	end, err := parseGoogleTime(e.End)
	if err != nil {
		return Event{}, fmt.Errorf("event %s end: %w", e.ID, err)
	}
	return Event{
		ID:          e.ID,
		Title:       e.Summary,
		StartTime:   start,
		EndTime:     end,
		Source:      SourceGoogle,
		Description: e.Description,
	}, nil
}

// parseGoogleTime accepts either a dateTime (timed event) or a date
// (all-day event, interpreted at local midnight).
func parseGoogleTime(t googleEventTime) (time.Time, error) {
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		return time.ParseInLocation("2006-01-02", t.Date, time.Local)
	}
	return time.Time{}, fmt.Errorf("event time has neither dateTime nor date")
}
