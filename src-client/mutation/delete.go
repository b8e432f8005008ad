package mutation

import (
	"context"
	"fmt"
	"log/slog"

	"daybook/src-client/event"
	"daybook/src-client/remote"
)

// Delete removes the entity (or its whole series) optimistically,
// suppresses its ids so late fetches can't resurrect it, then deletes it
// remotely. A missing remote entity counts as success; any other failure
// restores everything that was removed.
func (m *Manager) Delete(ctx context.Context, eventID string, scope remote.UpdateScope) error {
	if scope == "" {
		scope = remote.ScopeSingle
	}

	target, ok := m.deps.Store.Get(eventID)
	if !ok {
		return fmt.Errorf("Manager.Delete: %w", remote.ErrNotFound)
	}
	if target.Virtual {
		// Virtual occurrences have no server identity of their own; the
		// deletion lands on the parent series.
		parent, ok := m.deps.Store.Get(target.SeriesKey())
		if !ok {
			return fmt.Errorf("Manager.Delete: %w", remote.ErrNotFound)
		}
		target = parent
		eventID = parent.ID
		if scope == remote.ScopeSingle {
			scope = remote.ScopeAll
		}
	}

	victims := m.collectVictims(target, scope)

	removed := make([]*event.Event, 0, len(victims))
	unlinkedTodos := make(map[string]string)
	for _, victim := range victims {
		suppressForAWhile(m.deps.SuppressedEvents, victim.ID, m.opts.SuppressionGrace)
		if victim.TodoID != "" {
			suppressForAWhile(m.deps.SuppressedTodos, victim.TodoID, m.opts.SuppressionGrace)
		}

		if prev, ok := m.deps.Store.Remove(victim.ID); ok {
			removed = append(removed, prev)
		}
		if todoID, ok := m.deps.Links.UnlinkEvent(victim.ID); ok {
			unlinkedTodos[todoID] = victim.ID
		}
		m.deps.Snapshots.RemoveEvent(victim.ID)
		m.deps.Optimistic.Remove(victim.ID)
		m.deps.Overrides.Remove(victim.ID)
		m.deps.Pending.Remove(victim.ID)
		if !victim.Virtual {
			if err := m.deps.Durable.Remove(ctx, victim.ID); err != nil {
				slog.Warn("can't purge durable row", "id", victim.ID, "error", err)
			}
		}
	}
	m.flushStateLater(nil)

	// An entity the server never saw needs no remote delete; suppression
	// makes the in-flight creation clean itself up.
	if target.IsOptimistic {
		return nil
	}

	if err := m.deps.Remote.DeleteEvent(ctx, eventID, target.CalendarID, scope); err != nil && !remote.IsNotFound(err) {
		for _, prev := range removed {
			m.deps.SuppressedEvents.Remove(prev.ID)
			if prev.TodoID != "" {
				m.deps.SuppressedTodos.Remove(prev.TodoID)
			}
			m.deps.Store.Upsert(prev)
			if prev.TodoID != "" {
				m.deps.Links.Bind(prev.TodoID, prev.ID)
			}
		}
		m.deps.Metrics.MutationRollbacks.Inc()
		m.signal(SignalFailed, "delete", eventID, err)
		return fmt.Errorf("Manager.Delete: %w", err)
	}

	for todoID := range unlinkedTodos {
		if err := m.deps.Remote.DeleteTodoLink(ctx, todoID); err != nil {
			slog.Warn("can't delete todo link", "todo", todoID, "error", err)
		}
	}
	return nil
}

// collectVictims resolves which entities a delete touches: the target
// itself, plus for series scopes every real member and every virtual
// occurrence of the series. A single-scope delete of a recurring master
// takes its own placeholders with it but leaves real siblings alone;
// those belong to the server.
func (m *Manager) collectVictims(target *event.Event, scope remote.UpdateScope) []*event.Event {
	victims := []*event.Event{target}

	if scope == remote.ScopeSingle {
		if target.Recurs() {
			for _, id := range m.deps.Recur.Clear(target.ID) {
				if ev, ok := m.deps.Store.Get(id); ok {
					victims = append(victims, ev)
				}
			}
		}
		return victims
	}

	key := target.SeriesKey()
	for _, ev := range m.deps.Store.All() {
		if ev.ID == target.ID || ev.SeriesKey() != key {
			continue
		}
		if scope == remote.ScopeFuture && ev.Start.Before(target.Start) {
			continue
		}
		victims = append(victims, ev)
	}
	for _, id := range m.deps.Recur.Clear(key) {
		if ev, ok := m.deps.Store.Get(id); ok {
			victims = append(victims, ev)
		}
	}
	return victims
}
