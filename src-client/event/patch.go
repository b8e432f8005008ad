package event

import "time"

// Patch is a partial update; nil pointer fields leave the entity's value
// untouched.
type Patch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	IsAllDay    *bool
	Color       *string
	Location    *string

	Transparency *string
	Visibility   *string
	Reminders    []Reminder

	RecurrenceRule    *string
	RecurrenceSummary *string
	RecurrenceMeta    *RecurrenceMeta
}

// Apply writes the patch's set fields into e. Times are not clamped here;
// the mutation layer resolves them first so series-scoped edits can share
// the resolved values.
func (p Patch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Start != nil {
		e.Start = *p.Start
	}
	if p.End != nil {
		e.End = *p.End
	}
	if p.IsAllDay != nil {
		e.IsAllDay = *p.IsAllDay
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Transparency != nil {
		e.Transparency = *p.Transparency
	}
	if p.Visibility != nil {
		e.Visibility = *p.Visibility
	}
	if p.Reminders != nil {
		e.Reminders = make([]Reminder, len(p.Reminders))
		copy(e.Reminders, p.Reminders)
	}
	if p.RecurrenceRule != nil {
		e.RecurrenceRule = *p.RecurrenceRule
		if *p.RecurrenceRule == "" {
			e.RecurrenceMeta = nil
		}
	}
	if p.RecurrenceSummary != nil {
		e.RecurrenceSummary = *p.RecurrenceSummary
	}
	if p.RecurrenceMeta != nil {
		meta := *p.RecurrenceMeta
		e.RecurrenceMeta = &meta
	}
}

// WithoutTimes returns a copy of the patch with start/end cleared, for
// series-scoped edits where siblings keep their own occurrence times.
func (p Patch) WithoutTimes() Patch {
	p.Start = nil
	p.End = nil
	return p
}
