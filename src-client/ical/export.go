// Package ical renders the store's confirmed entities as an iCalendar
// document for interchange with other calendar apps.
package ical

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	goical "github.com/emersion/go-ical"

	"daybook/src-client/event"
)

// Export serializes the confirmed, non-virtual subset of events.
func Export(events []*event.Event) (string, error) {
	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropVersion, "2.0")
	cal.Props.SetText(goical.PropProductID, "-//daybook//daybook//EN")

	now := time.Now().UTC()
	for _, ev := range events {
		if ev == nil || !ev.Confirmed || ev.Virtual {
			continue
		}
		item := goical.NewEvent()
		item.Props.SetText(goical.PropUID, ev.ID)
		item.Props.SetDateTime(goical.PropDateTimeStamp, now)
		item.Props.SetText(goical.PropSummary, ev.Title)
		item.Props.SetDateTime(goical.PropDateTimeStart, ev.Start)
		item.Props.SetDateTime(goical.PropDateTimeEnd, ev.End)
		if ev.Description != "" {
			item.Props.SetText(goical.PropDescription, ev.Description)
		}
		if ev.Location != "" {
			item.Props.SetText(goical.PropLocation, ev.Location)
		}
		if ev.RecurrenceRule != "" {
			prop := goical.NewProp(goical.PropRecurrenceRule)
			prop.Value = strings.TrimPrefix(ev.RecurrenceRule, "RRULE:")
			item.Props.Set(prop)
		}
		cal.Children = append(cal.Children, item.Component)
	}

	// The encoder refuses an event-less calendar.
	if len(cal.Children) == 0 {
		return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//daybook//daybook//EN\r\nEND:VCALENDAR\r\n", nil
	}

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("ical.Export: can't encode calendar: %w", err)
	}
	return buf.String(), nil
}
