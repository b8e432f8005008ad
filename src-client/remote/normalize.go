package remote

import (
	"time"

	"daybook/src-client/event"
)

const (
	propTodoID            = "todoId"
	propCategoryColor     = "categoryColor"
	propRecurrenceSummary = "recurrenceSummary"
)

// Normalize converts one wire payload into the internal entity shape.
// Cancelled payloads return ok=false. Date-only boundaries are pinned at
// noon so timezone drift can't shift them across a day boundary, and the
// start/end invariant is enforced before the entity leaves this function.
func Normalize(p Payload, viewerEmail string, loc *time.Location) (*event.Event, bool) {
	if p.ID == "" || p.Status == "cancelled" {
		return nil, false
	}

	start, startIsDate := parseBoundary(p.Start, loc)
	end, endIsDate := parseBoundary(p.End, loc)
	isAllDay := startIsDate || endIsDate
	if isAllDay {
		// Noon parsing above is for drift safety; all-day entities are
		// re-anchored at midnight for indexing.
		if !start.IsZero() {
			start = event.StartOfDay(start)
		}
		if !end.IsZero() {
			end = event.StartOfDay(end)
		}
	}
	start, end = event.ClampRange(start, end)

	ev := &event.Event{
		ID:           p.ID,
		ClientKey:    p.ID,
		CalendarID:   p.CalendarID,
		Title:        p.Summary,
		Description:  p.Description,
		Location:     p.Location,
		Start:        start,
		End:          end,
		IsAllDay:     isAllDay,
		Transparency: p.Transparency,
		Visibility:   p.Visibility,
		SeriesID:     p.RecurringEventID,
		Confirmed:    true,
	}

	if props := p.ExtendedProps.Private; props != nil {
		ev.TodoID = props[propTodoID]
		ev.Color = props[propCategoryColor]
		ev.RecurrenceSummary = props[propRecurrenceSummary]
	}

	for _, raw := range p.Recurrence {
		ev.RecurrenceRule = raw
		break
	}
	if ev.RecurrenceRule != "" {
		ev.RecurrenceMeta = &event.RecurrenceMeta{Enabled: true, Summary: ev.RecurrenceSummary}
	}

	if p.Organizer != nil {
		ev.OrganizerEmail = p.Organizer.Email
		ev.ViewerIsOrganizer = p.Organizer.Self || (viewerEmail != "" && p.Organizer.Email == viewerEmail)
	}
	for _, a := range p.Attendees {
		attendee := event.Attendee{
			Email:          a.Email,
			ResponseStatus: event.NormalizeResponseStatus(a.ResponseStatus),
			Self:           a.Self,
		}
		ev.Attendees = append(ev.Attendees, attendee)
		if a.Self || (viewerEmail != "" && a.Email == viewerEmail) {
			ev.ViewerIsAttendee = true
			ev.ViewerResponseStatus = attendee.ResponseStatus
		}
	}
	if ev.ViewerIsAttendee && !ev.ViewerIsOrganizer {
		ev.InviteCanRespond = true
		ev.IsInvitePending = ev.ViewerResponseStatus == event.ResponseNeedsAction || ev.ViewerResponseStatus == ""
	}

	for _, r := range p.Reminders {
		ev.Reminders = append(ev.Reminders, event.Reminder{Method: r.Method, Minutes: r.Minutes})
	}

	return ev, true
}

// parseBoundary resolves a wire boundary to a concrete time. Date-only
// values are parsed at noon in the client's zone; the second return
// reports whether the boundary was date-only.
func parseBoundary(b Boundary, loc *time.Location) (time.Time, bool) {
	if b.DateTime != "" {
		t, err := time.Parse(time.RFC3339, b.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t.In(loc), false
	}
	if b.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", b.Date, loc)
		if err != nil {
			return time.Time{}, true
		}
		return t.Add(12 * time.Hour), true
	}
	return time.Time{}, false
}

// Denormalize converts an internal entity back into the wire shape for
// create and update calls. Client-only flags never leave the client.
func Denormalize(ev *event.Event) Payload {
	p := Payload{
		ID:           ev.ID,
		CalendarID:   ev.CalendarID,
		Summary:      ev.Title,
		Description:  ev.Description,
		Location:     ev.Location,
		Transparency: ev.Transparency,
		Visibility:   ev.Visibility,
	}

	if ev.IsAllDay {
		p.Start = Boundary{Date: ev.Start.Format("2006-01-02")}
		p.End = Boundary{Date: ev.End.Format("2006-01-02")}
	} else {
		p.Start = Boundary{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.Start.Location().String()}
		p.End = Boundary{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.End.Location().String()}
	}

	if ev.RecurrenceRule != "" {
		p.Recurrence = []string{ev.RecurrenceRule}
	}

	private := make(map[string]string)
	if ev.TodoID != "" {
		private[propTodoID] = ev.TodoID
	}
	if ev.Color != "" {
		private[propCategoryColor] = ev.Color
	}
	if ev.RecurrenceSummary != "" {
		private[propRecurrenceSummary] = ev.RecurrenceSummary
	}
	if len(private) > 0 {
		p.ExtendedProps = ExtendedProperties{Private: private}
	}

	for _, r := range ev.Reminders {
		p.Reminders = append(p.Reminders, ReminderPayload{Method: r.Method, Minutes: r.Minutes})
	}
	return p
}
