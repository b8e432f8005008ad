package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/src-client/event"
)

func TestExport(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []*event.Event{
		{
			ID: "e1", Title: "Dentist", Location: "Main St",
			Start: start, End: start.Add(time.Hour), Confirmed: true,
		},
		{
			ID: "e2", Title: "Standup", RecurrenceRule: "RRULE:FREQ=DAILY",
			Start: start, End: start.Add(30 * time.Minute), Confirmed: true,
		},
		{ID: "temp-x", Title: "unconfirmed", Start: start, End: start.Add(time.Hour)},
		{ID: "temp-rec-e2-1", Title: "virtual", Start: start, End: start.Add(time.Hour), Confirmed: true, Virtual: true},
	}

	got, err := Export(events)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "BEGIN:VCALENDAR"))
	assert.Equal(t, 2, strings.Count(got, "BEGIN:VEVENT"), "only confirmed non-virtual entities export")
	assert.Contains(t, got, "UID:e1")
	assert.Contains(t, got, "SUMMARY:Dentist")
	assert.Contains(t, got, "LOCATION:Main St")
	assert.Contains(t, got, "RRULE:FREQ=DAILY")
	assert.NotContains(t, got, "unconfirmed")
}

func TestExportEmpty(t *testing.T) {
	got, err := Export(nil)
	require.NoError(t, err)
	assert.Contains(t, got, "BEGIN:VCALENDAR")
	assert.NotContains(t, got, "BEGIN:VEVENT")
}
