// Package remote speaks the calendar service's wire format. Payloads are
// the loose external shape; Normalize is the only door through which they
// enter the rest of the client.
package remote

import (
	"context"
	"time"
)

// Boundary is a wire-format event boundary: either a zoned timestamp or
// a bare date for all-day entities.
type Boundary struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type AttendeePayload struct {
	Email          string `json:"email"`
	ResponseStatus string `json:"responseStatus,omitempty"`
	Self           bool   `json:"self,omitempty"`
	Organizer      bool   `json:"organizer,omitempty"`
}

type OrganizerPayload struct {
	Email string `json:"email"`
	Self  bool   `json:"self,omitempty"`
}

type ReminderPayload struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// Payload is one event as the service serves it. Client-side concerns
// ride in the private extended properties: todoId, categoryColor,
// recurrenceSummary.
type Payload struct {
	ID               string             `json:"id"`
	CalendarID       string             `json:"calendarId,omitempty"`
	Status           string             `json:"status,omitempty"`
	Summary          string             `json:"summary,omitempty"`
	Description      string             `json:"description,omitempty"`
	Location         string             `json:"location,omitempty"`
	Start            Boundary           `json:"start"`
	End              Boundary           `json:"end"`
	Attendees        []AttendeePayload  `json:"attendees,omitempty"`
	Organizer        *OrganizerPayload  `json:"organizer,omitempty"`
	Recurrence       []string           `json:"recurrence,omitempty"`
	RecurringEventID string             `json:"recurringEventId,omitempty"`
	Transparency     string             `json:"transparency,omitempty"`
	Visibility       string             `json:"visibility,omitempty"`
	Reminders        []ReminderPayload  `json:"reminders,omitempty"`
	ExtendedProps    ExtendedProperties `json:"extendedProperties,omitempty"`
}

type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

type ListResponse struct {
	Items         []Payload `json:"items"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// OverridePayload is one persisted local time override, unix seconds.
type OverridePayload struct {
	Start     int64 `json:"start"`
	End       int64 `json:"end"`
	UpdatedAt int64 `json:"updatedAt"`
}

// UserState is the per-user client state the service persists across
// devices: active overrides and checked-off entity ids.
type UserState struct {
	Overrides  map[string]OverridePayload `json:"overrides,omitempty"`
	CheckedOff []string                   `json:"checkedOff,omitempty"`
}

// UserStateUpdate is a partial write; a nil override value clears the
// entry, a checked-off value of false clears the flag.
type UserStateUpdate struct {
	Overrides  map[string]*OverridePayload `json:"overrides,omitempty"`
	CheckedOff map[string]bool             `json:"checkedOff,omitempty"`
}

// TodoLink is one persisted todo <-> event pairing.
type TodoLink struct {
	TodoID  string `json:"todoId"`
	EventID string `json:"eventId"`
}

// UpdateScope selects which part of a recurring series an update or
// delete touches.
type UpdateScope string

const (
	ScopeSingle UpdateScope = "single"
	ScopeAll    UpdateScope = "all"
	ScopeFuture UpdateScope = "future"
)

// Service is everything the sync and mutation layers need from the
// calendar backend. An empty calendarID means the user's primary
// calendar; notify controls whether attendees are emailed about the
// change.
type Service interface {
	ListEvents(ctx context.Context, start, end time.Time, calendarIDs []string) ([]Payload, error)
	CreateEvent(ctx context.Context, payload Payload, calendarID string, notify bool) (Payload, error)
	UpdateEvent(ctx context.Context, eventID string, payload Payload, calendarID string, notify bool, scope UpdateScope) (Payload, error)
	DeleteEvent(ctx context.Context, eventID, calendarID string, scope UpdateScope) error
	RespondToInvite(ctx context.Context, eventID, response, calendarID string) error

	FetchUserState(ctx context.Context) (UserState, error)
	BatchUpdateUserState(ctx context.Context, update UserStateUpdate) error

	TodoLinks(ctx context.Context) ([]TodoLink, error)
	PutTodoLink(ctx context.Context, link TodoLink) error
	DeleteTodoLink(ctx context.Context, todoID string) error
}
