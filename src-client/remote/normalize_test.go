package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/src-client/event"
)

func TestNormalizeSkipsCancelled(t *testing.T) {
	_, ok := Normalize(Payload{ID: "e1", Status: "cancelled"}, "", time.UTC)
	assert.False(t, ok)
	_, ok = Normalize(Payload{}, "", time.UTC)
	assert.False(t, ok, "payload without id is unusable")
}

func TestNormalizeTimedEvent(t *testing.T) {
	ev, ok := Normalize(Payload{
		ID:      "e1",
		Summary: "Dentist",
		Start:   Boundary{DateTime: "2026-03-10T09:00:00Z"},
		End:     Boundary{DateTime: "2026-03-10T10:00:00Z"},
	}, "", time.UTC)
	require.True(t, ok)

	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, "e1", ev.ClientKey)
	assert.True(t, ev.Confirmed)
	assert.False(t, ev.IsAllDay)
	assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
}

func TestNormalizeDateOnlyBoundaries(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ev, ok := Normalize(Payload{
		ID:    "e1",
		Start: Boundary{Date: "2026-03-10"},
		End:   Boundary{Date: "2026-03-11"},
	}, "", loc)
	require.True(t, ok)

	assert.True(t, ev.IsAllDay)
	assert.Equal(t, "2026-03-10", event.DayKey(ev.Start))
	assert.Equal(t, "2026-03-11", event.DayKey(ev.End))
	assert.Equal(t, 0, ev.Start.Hour())
}

func TestNormalizeClampsMissingEnd(t *testing.T) {
	ev, ok := Normalize(Payload{
		ID:    "e1",
		Start: Boundary{DateTime: "2026-03-10T09:00:00Z"},
	}, "", time.UTC)
	require.True(t, ok)
	assert.Equal(t, event.DefaultDuration, ev.End.Sub(ev.Start))
}

func TestNormalizeInviteMetadata(t *testing.T) {
	p := Payload{
		ID:        "e1",
		Start:     Boundary{DateTime: "2026-03-10T09:00:00Z"},
		End:       Boundary{DateTime: "2026-03-10T10:00:00Z"},
		Organizer: &OrganizerPayload{Email: "boss@example.com"},
		Attendees: []AttendeePayload{
			{Email: "boss@example.com", ResponseStatus: "accepted"},
			{Email: "me@example.com", Self: true, ResponseStatus: "needsAction"},
		},
	}
	ev, ok := Normalize(p, "me@example.com", time.UTC)
	require.True(t, ok)

	assert.True(t, ev.ViewerIsAttendee)
	assert.False(t, ev.ViewerIsOrganizer)
	assert.True(t, ev.InviteCanRespond)
	assert.True(t, ev.IsInvitePending)
	assert.Equal(t, event.ResponseNeedsAction, ev.ViewerResponseStatus)
}

func TestNormalizeOrganizerCannotRespond(t *testing.T) {
	p := Payload{
		ID:        "e1",
		Start:     Boundary{DateTime: "2026-03-10T09:00:00Z"},
		End:       Boundary{DateTime: "2026-03-10T10:00:00Z"},
		Organizer: &OrganizerPayload{Email: "me@example.com", Self: true},
		Attendees: []AttendeePayload{
			{Email: "me@example.com", Self: true, ResponseStatus: "accepted"},
		},
	}
	ev, ok := Normalize(p, "me@example.com", time.UTC)
	require.True(t, ok)
	assert.True(t, ev.ViewerIsOrganizer)
	assert.False(t, ev.InviteCanRespond)
}

func TestNormalizeExtendedProperties(t *testing.T) {
	ev, ok := Normalize(Payload{
		ID:    "e1",
		Start: Boundary{DateTime: "2026-03-10T09:00:00Z"},
		End:   Boundary{DateTime: "2026-03-10T10:00:00Z"},
		ExtendedProps: ExtendedProperties{Private: map[string]string{
			"todoId":            "todo-1",
			"categoryColor":     "#ff0000",
			"recurrenceSummary": "daily",
		}},
		Recurrence: []string{"RRULE:FREQ=DAILY"},
	}, "", time.UTC)
	require.True(t, ok)

	assert.Equal(t, "todo-1", ev.TodoID)
	assert.Equal(t, "#ff0000", ev.Color)
	assert.Equal(t, "RRULE:FREQ=DAILY", ev.RecurrenceRule)
	require.NotNil(t, ev.RecurrenceMeta)
	assert.True(t, ev.RecurrenceMeta.Enabled)
	assert.Equal(t, "daily", ev.RecurrenceMeta.Summary)
}

func TestDenormalizeRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ev := &event.Event{
		ID: "e1", Title: "Dentist", TodoID: "todo-1", Color: "#00ff00",
		Start: start, End: start.Add(time.Hour),
		RecurrenceRule: "RRULE:FREQ=WEEKLY",
	}
	p := Denormalize(ev)

	back, ok := Normalize(p, "", time.UTC)
	require.True(t, ok)
	assert.Equal(t, ev.Title, back.Title)
	assert.Equal(t, ev.TodoID, back.TodoID)
	assert.Equal(t, ev.Color, back.Color)
	assert.Equal(t, ev.RecurrenceRule, back.RecurrenceRule)
	assert.True(t, back.Start.Equal(ev.Start))
}

func TestDenormalizeAllDayUsesDates(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	p := Denormalize(&event.Event{
		ID: "e1", IsAllDay: true, Start: start, End: start.AddDate(0, 0, 1),
	})
	assert.Equal(t, "2026-03-10", p.Start.Date)
	assert.Equal(t, "2026-03-11", p.End.Date)
	assert.Empty(t, p.Start.DateTime)
}
