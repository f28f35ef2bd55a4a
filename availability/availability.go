// Package availability derives free time windows from busy calendar
// events, per day and across the scheduling horizon offered to the
// allocation oracle.
package availability

import (
	"strings"
	"time"

	"github.com/studyplan-dev/studyplan/calendar"
	"github.com/studyplan-dev/studyplan/interval"
)

const (
	// DefaultWorkStartHour and DefaultWorkEndHour bound the working
	// envelope: free time is only ever offered between 08:00 and 22:00
	// local time.
	DefaultWorkStartHour = 8
	DefaultWorkEndHour   = 22

	// DefaultHorizonDays is the rolling window offered to the oracle.
	DefaultHorizonDays = 30
)

// Calculator computes free windows within a working-hours envelope.
type Calculator struct {
	WorkStartHour int
	WorkEndHour   int
	Location      *time.Location
}

// NewCalculator returns a calculator with the default 08:00-22:00
// envelope in loc (time.Local when nil).
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{
		WorkStartHour: DefaultWorkStartHour,
		WorkEndHour:   DefaultWorkEndHour,
		Location:      loc,
	}
}

// FreeWindows returns the ordered free intervals for the calendar day
// containing day, given the full busy-event set and the reference now.
// When day is today, time before now is treated as busy: the elapsed
// past is never offered as free time.
func (c *Calculator) FreeWindows(day time.Time, events []calendar.Event, now time.Time) []interval.Interval {
	day = day.In(c.Location)
	now = now.In(c.Location)

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	workStart := dayStart.Add(time.Duration(c.WorkStartHour) * time.Hour)
	workEnd := dayStart.Add(time.Duration(c.WorkEndHour) * time.Hour)

	var busy []interval.Interval
	for _, ev := range events {
		if !ev.StartTime.Before(dayEnd) || !ev.EndTime.After(dayStart) {
			continue
		}
		if !ev.EndTime.After(ev.StartTime) {
			continue
		}
		busy = append(busy, interval.Interval{Start: ev.StartTime, End: ev.EndTime})
	}

	today := sameDay(now, dayStart, c.Location)
	if today && now.After(dayStart) {
		busy = append(busy, interval.Interval{Start: dayStart, End: now})
	}

	merged := interval.Merge(busy)

	cursor := workStart
	if today && now.After(cursor) {
		cursor = now
	}

	var free []interval.Interval
	for _, b := range merged {
		gapEnd := b.Start
		if gapEnd.After(workEnd) {
			gapEnd = workEnd
		}
		if gapEnd.After(cursor) {
			free = append(free, interval.Interval{Start: cursor, End: gapEnd})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if workEnd.After(cursor) {
		free = append(free, interval.Interval{Start: cursor, End: workEnd})
	}
	return free
}

// Day is one horizon day and its free windows.
type Day struct {
	Date time.Time
	Free []interval.Interval
}

// Horizon is the multi-day availability offered to the oracle.
type Horizon struct {
	Location *time.Location
	Days     []Day
}

// Horizon computes free windows for days consecutive days anchored at
// now's calendar day.
func (c *Calculator) Horizon(events []calendar.Event, now time.Time, days int) Horizon {
	if days <= 0 {
		days = DefaultHorizonDays
	}
	h := Horizon{Location: c.Location}
	for i := 0; i < days; i++ {
		date := now.In(c.Location).AddDate(0, 0, i)
		free := c.FreeWindows(date, events, now)
		h.Days = append(h.Days, Day{Date: date, Free: free})
	}
	return h
}

// WindowsOn returns the declared free windows for the day containing t,
// or nil if the horizon has no capacity that day.
func (h Horizon) WindowsOn(t time.Time) []interval.Interval {
	local := t.In(h.Location)
	for _, d := range h.Days {
		if sameDay(local, d.Date, h.Location) {
			return d.Free
		}
	}
	return nil
}

// TotalMinutes sums the free capacity across the horizon.
func (h Horizon) TotalMinutes() int {
	var total time.Duration
	for _, d := range h.Days {
		for _, w := range d.Free {
			total += w.Duration()
		}
	}
	return int(total / time.Minute)
}

// Text serializes the horizon into the oracle request format: a timezone
// header line, then one line per day that has at least one free window.
// Days with zero free time are omitted entirely.
//
//	Timezone: America/New_York (EST)
//	Monday, 2025-03-10: 08:00-12:00, 14:30-22:00
func (h Horizon) Text() string {
	var b strings.Builder

	abbr := "UTC"
	if len(h.Days) > 0 {
		abbr = h.Days[0].Date.Format("MST")
	}
	b.WriteString("Timezone: ")
	b.WriteString(h.Location.String())
	b.WriteString(" (")
	b.WriteString(abbr)
	b.WriteString(")")

	for _, d := range h.Days {
		if len(d.Free) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(d.Date.Format("Monday, 2006-01-02"))
		b.WriteString(": ")
		for i, w := range d.Free {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(w.Start.In(h.Location).Format("15:04"))
			b.WriteString("-")
			b.WriteString(w.End.In(h.Location).Format("15:04"))
		}
	}
	return b.String()
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
