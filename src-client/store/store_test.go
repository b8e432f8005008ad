package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/src-client/event"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", s)
	require.NoError(t, err)
	return parsed
}

func TestEventsForDateOrdering(t *testing.T) {
	s := New()

	s.Upsert(&event.Event{
		ID:    "confirmed-late",
		Title: "Zoo trip",
		Start: day(t, "2026-03-10 15:00"), End: day(t, "2026-03-10 16:00"),
		Confirmed: true,
	})
	s.Upsert(&event.Event{
		ID:    "confirmed-early",
		Title: "Breakfast",
		Start: day(t, "2026-03-10 08:00"), End: day(t, "2026-03-10 09:00"),
		Confirmed: true,
	})
	s.Upsert(&event.Event{
		ID: "allday", Title: "Conference", IsAllDay: true,
		Start: day(t, "2026-03-10 00:00"), End: day(t, "2026-03-11 00:00"),
		Confirmed: true,
	})
	s.Upsert(&event.Event{
		ID: "pending", Title: "Dentist",
		Start: day(t, "2026-03-10 12:00"), End: day(t, "2026-03-10 13:00"),
		Confirmed: true, IsPendingSync: true,
	})
	s.Upsert(&event.Event{
		ID: "optimistic", Title: "New thing",
		Start: day(t, "2026-03-10 18:00"), End: day(t, "2026-03-10 19:00"),
		IsOptimistic: true,
	})

	got := s.EventsForDate(day(t, "2026-03-10 00:00"))
	ids := make([]string, len(got))
	for i, ev := range got {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"optimistic", "pending", "allday", "confirmed-early", "confirmed-late"}, ids)
}

func TestTitleTieBreak(t *testing.T) {
	s := New()
	start := day(t, "2026-03-10 09:00")
	s.Upsert(&event.Event{ID: "b", Title: "banana", Start: start, End: start.Add(time.Hour), Confirmed: true})
	s.Upsert(&event.Event{ID: "a", Title: "Apple", Start: start, End: start.Add(time.Hour), Confirmed: true})

	got := s.EventsForDate(start)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID, "case-insensitive title order expected")
}

func TestMultiDayEventIndexedOnEveryDay(t *testing.T) {
	s := New()
	s.Upsert(&event.Event{
		ID: "offsite", Title: "Offsite", IsAllDay: true,
		Start: day(t, "2026-03-10 00:00"), End: day(t, "2026-03-13 00:00"),
		Confirmed: true,
	})

	for _, d := range []string{"2026-03-10 00:00", "2026-03-11 00:00", "2026-03-12 00:00"} {
		assert.Len(t, s.EventsForDate(day(t, d)), 1, d)
	}
	// Exclusive end day for all-day entities.
	assert.Empty(t, s.EventsForDate(day(t, "2026-03-13 00:00")))
}

func TestUpsertReindexesMovedEvent(t *testing.T) {
	s := New()
	ev := &event.Event{
		ID: "m", Title: "Moved",
		Start: day(t, "2026-03-10 09:00"), End: day(t, "2026-03-10 10:00"),
		Confirmed: true,
	}
	s.Upsert(ev)

	ev.Start = day(t, "2026-03-12 09:00")
	ev.End = day(t, "2026-03-12 10:00")
	s.Upsert(ev)

	assert.Empty(t, s.EventsForDate(day(t, "2026-03-10 00:00")))
	assert.Len(t, s.EventsForDate(day(t, "2026-03-12 00:00")), 1)
}

func TestRemoveDeindexes(t *testing.T) {
	s := New()
	s.Upsert(&event.Event{
		ID: "r", Title: "Removed",
		Start: day(t, "2026-03-10 09:00"), End: day(t, "2026-03-10 10:00"),
		Confirmed: true,
	})

	removed, ok := s.Remove("r")
	require.True(t, ok)
	assert.Equal(t, "r", removed.ID)
	assert.Empty(t, s.EventsForDate(day(t, "2026-03-10 00:00")))

	_, ok = s.Remove("r")
	assert.False(t, ok)
}

func TestReplaceAllCollapsesDuplicates(t *testing.T) {
	s := New()
	start := day(t, "2026-03-10 09:00")
	s.ReplaceAll([]*event.Event{
		{ID: "dup", Title: "first", Start: start, End: start.Add(time.Hour), Confirmed: true},
		{ID: "dup", Title: "second", Start: start, End: start.Add(time.Hour), Confirmed: true},
		{ID: "other", Title: "other", Start: start, End: start.Add(time.Hour), Confirmed: true},
	})

	assert.Equal(t, 2, s.Len())
	got, ok := s.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "second", got.Title)
	assert.Len(t, s.EventsForDate(start), 2)
}

func TestReplaceAllDiffsIndexWithoutDuplicates(t *testing.T) {
	s := New()
	s.Upsert(&event.Event{
		ID: "kept", Title: "kept",
		Start: day(t, "2026-03-10 09:00"), End: day(t, "2026-03-10 10:00"),
		Confirmed: true,
	})
	s.Upsert(&event.Event{
		ID: "dropped", Title: "dropped",
		Start: day(t, "2026-03-11 09:00"), End: day(t, "2026-03-11 10:00"),
		Confirmed: true,
	})

	s.ReplaceAll([]*event.Event{
		// kept moves to a new day.
		{ID: "kept", Title: "kept", Start: day(t, "2026-03-12 09:00"), End: day(t, "2026-03-12 10:00"), Confirmed: true},
		{ID: "added", Title: "added", Start: day(t, "2026-03-13 09:00"), End: day(t, "2026-03-13 10:00"), Confirmed: true},
	})

	assert.Equal(t, 2, s.Len())
	assert.Empty(t, s.EventsForDate(day(t, "2026-03-10 00:00")), "old day of the moved entity deindexed")
	assert.Empty(t, s.EventsForDate(day(t, "2026-03-11 00:00")), "dropped entity deindexed")
	assert.Len(t, s.EventsForDate(day(t, "2026-03-12 00:00")), 1)
	assert.Len(t, s.EventsForDate(day(t, "2026-03-13 00:00")), 1)
}

func TestReadersGetClones(t *testing.T) {
	s := New()
	start := day(t, "2026-03-10 09:00")
	s.Upsert(&event.Event{ID: "c", Title: "orig", Start: start, End: start.Add(time.Hour), Confirmed: true})

	got, _ := s.Get("c")
	got.Title = "mutated"

	again, _ := s.Get("c")
	assert.Equal(t, "orig", again.Title)
}

func TestSubscribeNotifiesAndUnsubscribes(t *testing.T) {
	s := New()
	start := day(t, "2026-03-10 09:00")

	calls := 0
	cancel := s.Subscribe(func() { calls++ })

	s.Upsert(&event.Event{ID: "n", Title: "n", Start: start, End: start.Add(time.Hour)})
	assert.Equal(t, 1, calls)

	cancel()
	s.Remove("n")
	assert.Equal(t, 1, calls)
}
