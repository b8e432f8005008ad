package event

import (
	"time"
)

type ResponseStatus string

const (
	ResponseAccepted    ResponseStatus = "accepted"
	ResponseDeclined    ResponseStatus = "declined"
	ResponseTentative   ResponseStatus = "tentative"
	ResponseNeedsAction ResponseStatus = "needsAction"
)

// DefaultDuration is used to clamp a missing or inverted end date.
const DefaultDuration = 30 * time.Minute

type Attendee struct {
	Email          string         `json:"email"`
	ResponseStatus ResponseStatus `json:"response_status,omitempty"`
	Self           bool           `json:"self,omitempty"`
}

type Reminder struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// RecurrenceMeta carries the client-side materialization state for a
// recurring event, alongside the raw RRULE string on the Event itself.
type RecurrenceMeta struct {
	Enabled bool   `json:"enabled"`
	Summary string `json:"summary,omitempty"`
}

// Event is the strict internal shape every calendar entity is normalized
// into. Remote payloads never travel past the sync boundary; everything
// downstream (store, index, caches) works with this type only.
type Event struct {
	// ID is stable once confirmed by the remote service. Optimistic
	// entities carry a temporary id until creation resolves.
	ID string `json:"id"`
	// ClientKey survives the temporary-id -> server-id replacement.
	ClientKey string `json:"client_key"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	IsAllDay bool      `json:"is_all_day"`

	Color      string `json:"color,omitempty"`
	CalendarID string `json:"calendar_id,omitempty"`
	Location   string `json:"location,omitempty"`

	OrganizerEmail       string         `json:"organizer_email,omitempty"`
	Attendees            []Attendee     `json:"attendees,omitempty"`
	ViewerResponseStatus ResponseStatus `json:"viewer_response_status,omitempty"`
	ViewerIsOrganizer    bool           `json:"viewer_is_organizer,omitempty"`
	ViewerIsAttendee     bool           `json:"viewer_is_attendee,omitempty"`
	InviteCanRespond     bool           `json:"invite_can_respond,omitempty"`
	IsInvitePending      bool           `json:"is_invite_pending,omitempty"`

	RecurrenceRule    string          `json:"recurrence_rule,omitempty"`
	RecurrenceSummary string          `json:"recurrence_summary,omitempty"`
	RecurrenceMeta    *RecurrenceMeta `json:"recurrence_meta,omitempty"`
	// SeriesID points back at the master event of a recurring series.
	SeriesID string `json:"series_id,omitempty"`

	TodoID string `json:"todo_id,omitempty"`

	Transparency string     `json:"transparency,omitempty"`
	Visibility   string     `json:"visibility,omitempty"`
	Reminders    []Reminder `json:"reminders,omitempty"`

	// Confirmed marks a server-sourced entity; absence-based deletion
	// during reconciliation only ever touches confirmed entities.
	Confirmed bool `json:"confirmed"`
	// Virtual marks a locally materialized, never-persisted occurrence
	// of a recurring series.
	Virtual bool `json:"virtual,omitempty"`

	IsOptimistic     bool `json:"is_optimistic,omitempty"`
	IsPendingSync    bool `json:"is_pending_sync,omitempty"`
	HasLocalOverride bool `json:"has_local_override,omitempty"`
	CheckedOff       bool `json:"checked_off,omitempty"`
}

// Clone returns a deep copy; slices are duplicated so a snapshot taken for
// rollback cannot be mutated through the live entity.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Attendees != nil {
		clone.Attendees = make([]Attendee, len(e.Attendees))
		copy(clone.Attendees, e.Attendees)
	}
	if e.Reminders != nil {
		clone.Reminders = make([]Reminder, len(e.Reminders))
		copy(clone.Reminders, e.Reminders)
	}
	if e.RecurrenceMeta != nil {
		meta := *e.RecurrenceMeta
		clone.RecurrenceMeta = &meta
	}
	return &clone
}

// ClampTimes enforces the start <= end invariant: a zero start falls back
// to now, a missing or inverted end is clamped to start + 30 minutes.
func (e *Event) ClampTimes() {
	e.Start, e.End = ClampRange(e.Start, e.End)
}

// ClampRange normalizes a (start, end) pair the same way for drafts,
// patches, and remote payloads.
func ClampRange(start, end time.Time) (time.Time, time.Time) {
	if start.IsZero() {
		start = time.Now()
	}
	if end.IsZero() || !end.After(start) {
		end = start.Add(DefaultDuration)
	}
	return start, end
}

// SeriesKey resolves the id grouping this entity with its series: the
// back-reference when it is an occurrence, its own id when it is a master.
func (e *Event) SeriesKey() string {
	if e.SeriesID != "" {
		return e.SeriesID
	}
	return e.ID
}

// Recurs reports whether the entity carries an active recurrence rule.
func (e *Event) Recurs() bool {
	if e.RecurrenceMeta != nil && e.RecurrenceMeta.Enabled {
		return true
	}
	return e.RecurrenceRule != ""
}

// BehavesAllDay reports whether the entity should be laid out as an
// all-day item: either flagged as such, or a midnight-to-midnight span
// covering at least one whole calendar day.
func (e *Event) BehavesAllDay() bool {
	if e.IsAllDay {
		return true
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return false
	}
	startDay := StartOfDay(e.Start)
	endDay := StartOfDay(e.End)
	if !endDay.After(startDay) {
		return false
	}
	return isMidnight(e.Start) && isMidnight(e.End)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Millisecond*999), t.Location())
}

// DayKey formats a date as the yyyy-mm-dd key used by the day index and
// the snapshot tier.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DaySpan returns the first and last indexable days of the entity. All-day
// entities use an inclusive-start/exclusive-end-day overlap rule, so their
// end day is pulled back by one.
func (e *Event) DaySpan() (time.Time, time.Time) {
	first := StartOfDay(e.Start)
	last := StartOfDay(e.End)
	if e.IsAllDay {
		last = last.AddDate(0, 0, -1)
	}
	if last.Before(first) {
		last = first
	}
	return first, last
}

// OverlapsDay reports whether the entity overlaps the calendar day of d.
func (e *Event) OverlapsDay(d time.Time) bool {
	day := StartOfDay(d)
	first, last := e.DaySpan()
	return !day.Before(first) && !day.After(last)
}

// NormalizeResponseStatus folds the remote service's casing quirks into
// the canonical constants.
func NormalizeResponseStatus(value string) ResponseStatus {
	switch value {
	case "":
		return ""
	case "needsaction", "needsAction", "NEEDSACTION":
		return ResponseNeedsAction
	case "accepted", "ACCEPTED":
		return ResponseAccepted
	case "declined", "DECLINED":
		return ResponseDeclined
	case "tentative", "TENTATIVE":
		return ResponseTentative
	default:
		return ResponseStatus(value)
	}
}
