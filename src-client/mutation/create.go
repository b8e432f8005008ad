package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"daybook/src-client/event"
	"daybook/src-client/remote"
)

// TempID mints the temporary id an optimistic entity carries until the
// service confirms the creation.
func TempID() string {
	return "temp-" + uuid.NewString()
}

// Draft is the user's input for a new entity.
type Draft struct {
	Title             string
	Description       string
	Start             time.Time
	End               time.Time
	IsAllDay          bool
	Color             string
	CalendarID        string
	Location          string
	TodoID            string
	// NotifyAttendees asks the service to email invitees about the
	// creation.
	NotifyAttendees bool
	RecurrenceRule    string
	RecurrenceSummary string
	Transparency      string
	Visibility        string
	Reminders         []event.Reminder
}

// Create inserts the draft optimistically under a temporary id, then
// creates it remotely and swaps in the server id atomically. On failure
// every optimistic trace is removed. A creation whose entity was deleted
// while the request was in flight is undone remotely and returns nil.
func (m *Manager) Create(ctx context.Context, draft Draft) (*event.Event, error) {
	tempID := TempID()
	optimistic := &event.Event{
		ID:                tempID,
		ClientKey:         tempID,
		Title:             draft.Title,
		Description:       draft.Description,
		Start:             draft.Start,
		End:               draft.End,
		IsAllDay:          draft.IsAllDay,
		Color:             draft.Color,
		CalendarID:        draft.CalendarID,
		Location:          draft.Location,
		TodoID:            draft.TodoID,
		RecurrenceRule:    draft.RecurrenceRule,
		RecurrenceSummary: draft.RecurrenceSummary,
		Transparency:      draft.Transparency,
		Visibility:        draft.Visibility,
		Reminders:         draft.Reminders,
		IsOptimistic:      true,
	}
	if optimistic.RecurrenceRule != "" {
		optimistic.RecurrenceMeta = &event.RecurrenceMeta{Enabled: true, Summary: draft.RecurrenceSummary}
	}
	optimistic.ClampTimes()

	m.deps.Optimistic.Put(optimistic)
	m.deps.Store.Upsert(optimistic)
	if optimistic.TodoID != "" {
		m.deps.Links.Bind(optimistic.TodoID, tempID)
	}
	m.rematerialize(optimistic)

	created, err := m.deps.Remote.CreateEvent(ctx, remote.Denormalize(optimistic), draft.CalendarID, draft.NotifyAttendees)
	if err != nil {
		m.discardOptimistic(tempID)
		m.deps.Metrics.MutationRollbacks.Inc()
		return nil, fmt.Errorf("Manager.Create: %w", err)
	}

	server, ok := remote.Normalize(created, m.opts.ViewerEmail, m.opts.Location)
	if !ok {
		m.discardOptimistic(tempID)
		m.deps.Metrics.MutationRollbacks.Inc()
		return nil, fmt.Errorf("Manager.Create: unusable creation response")
	}

	// The entity may have been deleted while the request was in flight;
	// honor the deletion by undoing the remote creation.
	if m.deps.SuppressedEvents.Has(tempID) ||
		(optimistic.TodoID != "" && m.deps.SuppressedTodos.Has(optimistic.TodoID)) {
		m.discardOptimistic(tempID)
		if err := m.deps.Remote.DeleteEvent(ctx, server.ID, server.CalendarID, remote.ScopeSingle); err != nil && !remote.IsNotFound(err) {
			slog.Warn("can't undo superseded creation", "id", server.ID, "error", err)
		}
		return nil, nil
	}

	final := server
	final.ClientKey = tempID
	final.IsPendingSync = true
	if final.TodoID == "" {
		final.TodoID = optimistic.TodoID
	}
	if final.Color == "" {
		final.Color = optimistic.Color
	}

	m.deps.Store.Remove(tempID)
	m.deps.Store.Upsert(final)
	m.deps.Optimistic.Remove(tempID)
	m.deps.Links.Rebind(tempID, final.ID)
	m.deps.Recur.Rebind(tempID, final.ID)
	m.deps.Pending.Mark(final.ID)
	m.deps.Snapshots.RemoveEvent(tempID)

	if err := m.deps.Durable.Add(ctx, final); err != nil {
		slog.Warn("can't cache created entity", "id", final.ID, "error", err)
	}
	m.rematerialize(final)

	if final.TodoID != "" {
		link := remote.TodoLink{TodoID: final.TodoID, EventID: final.ID}
		if err := m.deps.Remote.PutTodoLink(ctx, link); err != nil {
			slog.Warn("can't persist todo link", "todo", final.TodoID, "error", err)
		}
	}
	return final.Clone(), nil
}

// discardOptimistic removes a temp entity and everything hanging off it.
func (m *Manager) discardOptimistic(tempID string) {
	for _, id := range m.deps.Recur.Clear(tempID) {
		m.deps.Store.Remove(id)
	}
	m.deps.Store.Remove(tempID)
	m.deps.Optimistic.Remove(tempID)
	m.deps.Links.UnlinkEvent(tempID)
	m.deps.Snapshots.RemoveEvent(tempID)
}
