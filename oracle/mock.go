package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// maxMockBlockMinutes caps block length for the mock's greedy placement.
const maxMockBlockMinutes = 120

// MockOracle implements Oracle without any external service. When Items
// or Err are set it behaves as a scripted stub for tests; otherwise it
// allocates greedily into the declared availability, which makes it a
// usable offline scheduler.
type MockOracle struct {
	Items []Item
	Err   error
}

// NewMockOracle creates a greedy offline oracle.
func NewMockOracle() *MockOracle { return &MockOracle{} }

func (m *MockOracle) Name() string { return "mock" }

// Schedule returns the scripted response when one is configured, and
// otherwise fills the earliest declared free windows until the requested
// minutes are placed.
func (m *MockOracle) Schedule(_ context.Context, req Request) ([]Item, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Items != nil {
		return m.Items, nil
	}

	windows, err := parseAvailabilityText(req.AvailabilityText)
	if err != nil {
		return nil, fmt.Errorf("mock oracle: %w", err)
	}

	remaining := req.TotalMinutes
	var items []Item
	part := 1
	for _, w := range windows {
		cursor := w.start
		for remaining >= MinBlockMinutes && cursor.Before(w.end) {
			capacity := int(w.end.Sub(cursor) / time.Minute)
			if capacity < MinBlockMinutes {
				break
			}
			take := remaining
			if take > maxMockBlockMinutes {
				take = maxMockBlockMinutes
			}
			if take > capacity {
				take = capacity
			}
			// Never strand a remainder too small to schedule.
			if rest := remaining - take; rest > 0 && rest < MinBlockMinutes {
				take = remaining - MinBlockMinutes
			}
			if take < MinBlockMinutes {
				break
			}

			end := cursor.Add(time.Duration(take) * time.Minute)
			items = append(items, Item{
				Task:      fmt.Sprintf("Study block %d", part),
				StartTime: cursor.In(time.UTC).Format(time.RFC3339),
				EndTime:   end.In(time.UTC).Format(time.RFC3339),
			})
			part++
			remaining -= take
			cursor = end
		}
		if remaining == 0 {
			break
		}
	}
	if remaining != 0 {
		return nil, fmt.Errorf("mock oracle: only %d of %d minutes fit in the declared availability",
			req.TotalMinutes-remaining, req.TotalMinutes)
	}
	return items, nil
}

// AdjustEstimate nudges the estimate halfway toward the observed time.
func (m *MockOracle) AdjustEstimate(_ context.Context, req AdjustmentRequest) (AdjustmentResult, error) {
	if m.Err != nil {
		return AdjustmentResult{}, m.Err
	}
	adjusted := (req.EstimatedMinutes + req.ActualMinutes) / 2
	if adjusted < MinBlockMinutes {
		adjusted = MinBlockMinutes
	}
	return AdjustmentResult{
		AdjustedScheduleJSON: req.ScheduleJSON,
		NewEstimatedMinutes:  adjusted,
	}, nil
}

type textWindow struct {
	start time.Time
	end   time.Time
}

// parseAvailabilityText reads the serializer's output format back into
// concrete windows: the timezone header names the zone all day lines are
// expressed in.
func parseAvailabilityText(text string) ([]textWindow, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "Timezone: ") {
		return nil, fmt.Errorf("availability text missing timezone header")
	}
	zoneName := strings.TrimPrefix(lines[0], "Timezone: ")
	if i := strings.Index(zoneName, " ("); i >= 0 {
		zoneName = zoneName[:i]
	}
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zoneName, err)
	}

	var windows []textWindow
	for _, line := range lines[1:] {
		// "Monday, 2025-03-10: 08:00-10:00, 12:00-22:00"
		dateAndSlots := strings.SplitN(line, ", ", 2)
		if len(dateAndSlots) != 2 {
			continue
		}
		rest := strings.SplitN(dateAndSlots[1], ": ", 2)
		if len(rest) != 2 {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", rest[0], loc)
		if err != nil {
			continue
		}
		for _, slot := range strings.Split(rest[1], ", ") {
			bounds := strings.SplitN(strings.TrimSpace(slot), "-", 2)
			if len(bounds) != 2 {
				continue
			}
			start, err1 := time.ParseInLocation("15:04", bounds[0], loc)
			end, err2 := time.ParseInLocation("15:04", bounds[1], loc)
			if err1 != nil || err2 != nil {
				continue
			}
			windows = append(windows, textWindow{
				start: day.Add(time.Duration(start.Hour())*time.Hour + time.Duration(start.Minute())*time.Minute),
				end:   day.Add(time.Duration(end.Hour())*time.Hour + time.Duration(end.Minute())*time.Minute),
			})
		}
	}
	return windows, nil
}
