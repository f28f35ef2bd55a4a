package oracle

import (
	"fmt"
	"strings"
	"time"

	"github.com/studyplan-dev/studyplan/availability"
	"github.com/studyplan-dev/studyplan/interval"
)

// MinBlockMinutes is the smallest meaningful study block the validator
// accepts.
const MinBlockMinutes = 15

// ValidationError reports every structural violation found in an oracle
// response. The validator never repairs an allocation; a single violation
// rejects the whole response.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid allocation: %s", strings.Join(e.Violations, "; "))
}

// Validate checks the oracle's raw items against the declared horizon and
// the requested total, returning normalized blocks on success.
//
// Hard requirements:
//   - the sequence is non-empty and every item parses with start < end
//   - every block lies within the union of the free windows declared for
//     its local day (the oracle must not invent availability)
//   - every block is at least MinBlockMinutes long
//   - block durations sum exactly to totalMinutes
func Validate(items []Item, h availability.Horizon, totalMinutes int) ([]Block, error) {
	verr := &ValidationError{}

	if len(items) == 0 {
		verr.Violations = append(verr.Violations, "schedule is empty")
		return nil, verr
	}

	blocks := make([]Block, 0, len(items))
	sum := 0
	for i, item := range items {
		start, err := time.Parse(time.RFC3339, item.StartTime)
		if err != nil {
			verr.Violations = append(verr.Violations, fmt.Sprintf("item %d: unparseable start %q", i, item.StartTime))
			continue
		}
		end, err := time.Parse(time.RFC3339, item.EndTime)
		if err != nil {
			verr.Violations = append(verr.Violations, fmt.Sprintf("item %d: unparseable end %q", i, item.EndTime))
			continue
		}
		if !start.Before(end) {
			verr.Violations = append(verr.Violations, fmt.Sprintf("item %d: start %s not before end %s", i, item.StartTime, item.EndTime))
			continue
		}

		block := Block{Task: item.Task, Start: start, End: end}
		if block.Minutes() < MinBlockMinutes {
			verr.Violations = append(verr.Violations,
				fmt.Sprintf("item %d: block of %d minutes is below the %d-minute minimum", i, block.Minutes(), MinBlockMinutes))
		}
		if !insideWindows(block, h) {
			verr.Violations = append(verr.Violations,
				fmt.Sprintf("item %d: %s-%s is outside the declared free windows", i,
					block.Start.In(h.Location).Format("2006-01-02 15:04"),
					block.End.In(h.Location).Format("15:04")))
		}

		sum += block.Minutes()
		blocks = append(blocks, block)
	}

	if len(verr.Violations) == 0 && sum != totalMinutes {
		verr.Violations = append(verr.Violations,
			fmt.Sprintf("scheduled %d minutes, requested %d", sum, totalMinutes))
	}
	if len(verr.Violations) > 0 {
		return nil, verr
	}
	return blocks, nil
}

// insideWindows reports whether the block lies entirely within one of the
// free windows declared for its local day.
func insideWindows(b Block, h availability.Horizon) bool {
	windows := h.WindowsOn(b.Start)
	candidate := interval.Interval{Start: b.Start, End: b.End}
	for _, w := range windows {
		if w.Contains(candidate) {
			return true
		}
	}
	return false
}
