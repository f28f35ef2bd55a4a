package interval

import (
	"testing"
	"time"
)

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2025-03-10 "+hhmm)
	if err != nil {
		t.Fatalf("parse %q: %v", hhmm, err)
	}
	return ts
}

func iv(t *testing.T, start, end string) Interval {
	t.Helper()
	return Interval{Start: at(t, start), End: at(t, end)}
}

func TestNew_RejectsInverted(t *testing.T) {
	if _, err := New(at(t, "10:00"), at(t, "09:00")); err == nil {
		t.Fatal("expected error for inverted interval")
	}
	if _, err := New(at(t, "10:00"), at(t, "10:00")); err == nil {
		t.Fatal("expected error for zero-length interval")
	}
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(nil); got != nil {
		t.Fatalf("Merge(nil) = %v, want nil", got)
	}
}

func TestMerge_Overlapping(t *testing.T) {
	got := Merge([]Interval{
		iv(t, "09:00", "10:00"),
		iv(t, "09:30", "11:00"),
	})
	if len(got) != 1 {
		t.Fatalf("got %d intervals, want 1", len(got))
	}
	if !got[0].Start.Equal(at(t, "09:00")) || !got[0].End.Equal(at(t, "11:00")) {
		t.Errorf("merged = %v-%v, want 09:00-11:00", got[0].Start, got[0].End)
	}
}

func TestMerge_TouchingMerges(t *testing.T) {
	got := Merge([]Interval{
		iv(t, "09:00", "10:00"),
		iv(t, "10:00", "11:00"),
	})
	if len(got) != 1 {
		t.Fatalf("touching intervals: got %d, want 1", len(got))
	}
	if !got[0].End.Equal(at(t, "11:00")) {
		t.Errorf("merged end = %v, want 11:00", got[0].End)
	}
}

func TestMerge_ContainedInterval(t *testing.T) {
	got := Merge([]Interval{
		iv(t, "09:00", "12:00"),
		iv(t, "10:00", "11:00"),
	})
	if len(got) != 1 {
		t.Fatalf("got %d intervals, want 1", len(got))
	}
	if !got[0].End.Equal(at(t, "12:00")) {
		t.Errorf("merged end = %v, want 12:00", got[0].End)
	}
}

func TestMerge_UnorderedInput(t *testing.T) {
	got := Merge([]Interval{
		iv(t, "14:00", "15:00"),
		iv(t, "09:00", "10:00"),
		iv(t, "11:30", "12:00"),
	})
	if len(got) != 3 {
		t.Fatalf("got %d intervals, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].End.Before(got[i].Start) {
			t.Errorf("intervals %d and %d not disjoint ordered: %v %v", i-1, i, got[i-1], got[i])
		}
	}
}

func TestMerge_Idempotent(t *testing.T) {
	once := Merge([]Interval{
		iv(t, "09:00", "10:00"),
		iv(t, "09:45", "11:00"),
		iv(t, "13:00", "14:00"),
	})
	twice := Merge(once)
	if len(twice) != len(once) {
		t.Fatalf("second merge changed length: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if !once[i].Start.Equal(twice[i].Start) || !once[i].End.Equal(twice[i].End) {
			t.Errorf("interval %d changed: %v -> %v", i, once[i], twice[i])
		}
	}
}

func TestOverlapsAndContains(t *testing.T) {
	outer := iv(t, "09:00", "12:00")
	inner := iv(t, "10:00", "11:00")
	after := iv(t, "12:00", "13:00")

	if !outer.Contains(inner) {
		t.Error("outer should contain inner")
	}
	if outer.Contains(after) {
		t.Error("outer should not contain after")
	}
	if !outer.Overlaps(inner) {
		t.Error("outer should overlap inner")
	}
	if outer.Overlaps(after) {
		t.Error("half-open intervals touching at 12:00 should not overlap")
	}
}
