package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"daybook/src-client/event"
	"daybook/src-client/remote"
)

// Update patches the entity optimistically, pushes the change remotely,
// and merges the server's answer back. A refused or failed write rolls
// the entity (and any series siblings it touched) back to its pre-edit
// state and emits a signal.
func (m *Manager) Update(ctx context.Context, eventID string, patch event.Patch, scope remote.UpdateScope) (*event.Event, error) {
	if scope == "" {
		scope = remote.ScopeSingle
	}

	target, ok := m.deps.Store.Get(eventID)
	if !ok {
		return nil, fmt.Errorf("Manager.Update: %w", remote.ErrNotFound)
	}
	if target.Virtual {
		if scope == remote.ScopeSingle {
			return nil, fmt.Errorf("Manager.Update: editing a single occurrence is not supported")
		}
		parent, ok := m.deps.Store.Get(target.SeriesKey())
		if !ok {
			return nil, fmt.Errorf("Manager.Update: %w", remote.ErrNotFound)
		}
		target = parent
		eventID = parent.ID
	}

	// Snapshot everything the edit may touch so a failed write can be
	// undone exactly.
	rollback := []*event.Event{target.Clone()}

	timesChanged := patch.Start != nil || patch.End != nil
	updated := target.Clone()
	patch.Apply(updated)
	updated.ClampTimes()

	// Tiny nudges inside the tolerance aren't worth an override; they'd
	// be cleared by the next fetch anyway.
	overrideRecorded := false
	if timesChanged && updated.Confirmed && divergesBeyond(target, updated, m.opts.OverrideTolerance) {
		m.deps.Overrides.Record(eventID, updated.Start, updated.End)
		overrideRecorded = true
		m.flushStateLater(nil)
	}

	if !updated.IsOptimistic {
		updated.IsPendingSync = true
		m.deps.Pending.Mark(eventID)
	}
	m.deps.Store.Upsert(updated)
	m.deps.Snapshots.RemoveEvent(eventID)

	if scope != remote.ScopeSingle {
		m.applyToSiblings(updated, updated.Start, patch, scope, &rollback)
	}
	if updated.Recurs() || target.Recurs() {
		m.rematerialize(updated)
	}

	// A still-unconfirmed entity has no server id to patch; the local
	// edit rides along once creation resolves.
	if updated.IsOptimistic {
		m.deps.Optimistic.Put(updated)
		return updated.Clone(), nil
	}

	notify := len(updated.Attendees) > 0
	served, err := m.deps.Remote.UpdateEvent(ctx, eventID, remote.Denormalize(updated), updated.CalendarID, notify, scope)
	if err != nil {
		m.rollbackUpdate(rollback, eventID, overrideRecorded)
		if remote.IsPermissionConflict(err) {
			m.signal(SignalRejected, "update", eventID, err)
		} else {
			m.signal(SignalFailed, "update", eventID, err)
		}
		return nil, fmt.Errorf("Manager.Update: %w", err)
	}

	server, ok := remote.Normalize(served, m.opts.ViewerEmail, m.opts.Location)
	if !ok {
		return updated.Clone(), nil
	}
	merged := server.Clone()
	merged.ClientKey = updated.ClientKey
	merged.CheckedOff = updated.CheckedOff
	merged.IsPendingSync = true
	if m.deps.Overrides.Has(eventID) {
		merged.Start = updated.Start
		merged.End = updated.End
		merged.HasLocalOverride = true
	}
	m.deps.Store.Upsert(merged)
	if err := m.deps.Durable.Add(ctx, merged); err != nil {
		slog.Warn("can't cache updated entity", "id", eventID, "error", err)
	}
	if merged.Recurs() {
		m.rematerialize(merged)
	}
	return merged.Clone(), nil
}

func divergesBeyond(before, after *event.Event, tolerance time.Duration) bool {
	return absDiff(before.Start, after.Start) > tolerance || absDiff(before.End, after.End) > tolerance
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d
}

// applyToSiblings spreads the non-time fields of a series edit across
// the other real members of the series. Future scope only touches
// members starting at or after the edited one.
func (m *Manager) applyToSiblings(edited *event.Event, pivot time.Time, patch event.Patch, scope remote.UpdateScope, rollback *[]*event.Event) {
	key := edited.SeriesKey()
	fields := patch.WithoutTimes()
	for _, sibling := range m.deps.Store.All() {
		if sibling.ID == edited.ID || sibling.Virtual || sibling.SeriesKey() != key {
			continue
		}
		if scope == remote.ScopeFuture && sibling.Start.Before(pivot) {
			continue
		}
		*rollback = append(*rollback, sibling.Clone())
		fields.Apply(sibling)
		m.deps.Store.Upsert(sibling)
		m.deps.Snapshots.RemoveEvent(sibling.ID)
	}
}

func (m *Manager) rollbackUpdate(rollback []*event.Event, eventID string, overrideRecorded bool) {
	for _, prev := range rollback {
		m.deps.Store.Upsert(prev)
		m.deps.Snapshots.RemoveEvent(prev.ID)
	}
	if overrideRecorded {
		m.deps.Overrides.Remove(eventID)
		m.flushStateLater(nil)
	}
	m.deps.Pending.Remove(eventID)
	if len(rollback) > 0 && rollback[0].Recurs() {
		m.rematerialize(rollback[0])
	}
	m.deps.Metrics.MutationRollbacks.Inc()
}
