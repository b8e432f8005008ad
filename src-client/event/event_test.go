package event

import (
	"testing"
	"time"
)

func TestClampTimes(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	ev := &Event{ID: "a", Start: start}
	ev.ClampTimes()
	if !ev.End.Equal(start.Add(DefaultDuration)) {
		t.Errorf("missing end not clamped, got %v", ev.End)
	}

	ev = &Event{ID: "b", Start: start, End: start.Add(-time.Hour)}
	ev.ClampTimes()
	if !ev.End.Equal(start.Add(DefaultDuration)) {
		t.Errorf("inverted end not clamped, got %v", ev.End)
	}

	ev = &Event{ID: "c"}
	ev.ClampTimes()
	if ev.Start.IsZero() || !ev.End.After(ev.Start) {
		t.Errorf("zero start not resolved, got %v..%v", ev.Start, ev.End)
	}
}

func TestBehavesAllDay(t *testing.T) {
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	timed := &Event{Start: midnight.Add(9 * time.Hour), End: midnight.Add(10 * time.Hour)}
	if timed.BehavesAllDay() {
		t.Error("timed event reported as all-day")
	}

	flagged := &Event{IsAllDay: true, Start: midnight, End: midnight.AddDate(0, 0, 1)}
	if !flagged.BehavesAllDay() {
		t.Error("flagged all-day event not reported")
	}

	spanning := &Event{Start: midnight, End: midnight.AddDate(0, 0, 2)}
	if !spanning.BehavesAllDay() {
		t.Error("midnight-to-midnight multi-day event should behave all-day")
	}
}

func TestDaySpanAllDayExclusiveEnd(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ev := &Event{IsAllDay: true, Start: start, End: start.AddDate(0, 0, 2)}

	first, last := ev.DaySpan()
	if DayKey(first) != "2026-03-10" || DayKey(last) != "2026-03-11" {
		t.Errorf("got span %s..%s", DayKey(first), DayKey(last))
	}
	if ev.OverlapsDay(start.AddDate(0, 0, 2)) {
		t.Error("all-day event should not overlap its exclusive end day")
	}
}

func TestCloneIsDeep(t *testing.T) {
	ev := &Event{
		ID:             "a",
		Attendees:      []Attendee{{Email: "x@example.com"}},
		RecurrenceMeta: &RecurrenceMeta{Enabled: true},
	}
	clone := ev.Clone()
	clone.Attendees[0].Email = "y@example.com"
	clone.RecurrenceMeta.Enabled = false
	if ev.Attendees[0].Email != "x@example.com" || !ev.RecurrenceMeta.Enabled {
		t.Error("clone shares memory with original")
	}
}

func TestNormalizeResponseStatus(t *testing.T) {
	cases := map[string]ResponseStatus{
		"accepted":    ResponseAccepted,
		"DECLINED":    ResponseDeclined,
		"needsaction": ResponseNeedsAction,
		"tentative":   ResponseTentative,
		"":            "",
	}
	for raw, want := range cases {
		if got := NormalizeResponseStatus(raw); got != want {
			t.Errorf("NormalizeResponseStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
