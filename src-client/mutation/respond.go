package mutation

import (
	"context"
	"fmt"

	"daybook/src-client/event"
	"daybook/src-client/remote"
)

// RespondToInvite records the viewer's RSVP optimistically and pushes it
// to the service. A refused or failed response restores the previous
// status and emits a signal.
func (m *Manager) RespondToInvite(ctx context.Context, eventID string, response event.ResponseStatus) error {
	target, ok := m.deps.Store.Get(eventID)
	if !ok {
		return fmt.Errorf("Manager.RespondToInvite: %w", remote.ErrNotFound)
	}
	if !target.InviteCanRespond {
		return fmt.Errorf("Manager.RespondToInvite: entity is not a respondable invite")
	}

	previous := target.Clone()

	target.ViewerResponseStatus = response
	target.IsInvitePending = response == event.ResponseNeedsAction || response == ""
	for i := range target.Attendees {
		if target.Attendees[i].Self {
			target.Attendees[i].ResponseStatus = response
		}
	}
	target.IsPendingSync = true
	m.deps.Pending.Mark(eventID)
	m.deps.Store.Upsert(target)
	m.deps.Snapshots.RemoveEvent(eventID)

	if err := m.deps.Remote.RespondToInvite(ctx, eventID, string(response), target.CalendarID); err != nil {
		m.deps.Store.Upsert(previous)
		m.deps.Snapshots.RemoveEvent(eventID)
		m.deps.Pending.Remove(eventID)
		m.deps.Metrics.MutationRollbacks.Inc()
		if remote.IsPermissionConflict(err) {
			m.signal(SignalRejected, "respond", eventID, err)
		} else {
			m.signal(SignalFailed, "respond", eventID, err)
		}
		return fmt.Errorf("Manager.RespondToInvite: %w", err)
	}
	return nil
}
