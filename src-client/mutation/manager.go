// Package mutation applies user edits optimistically and reconciles them
// with the remote outcome: commit on success, rollback plus a signal on
// failure.
package mutation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"daybook/src-client/cache"
	"daybook/src-client/event"
	"daybook/src-client/link"
	"daybook/src-client/metric"
	"daybook/src-client/recur"
	"daybook/src-client/remote"
	"daybook/src-client/store"
	"daybook/src-client/track"
	"daybook/src-client/utils"
)

type SignalKind string

const (
	// SignalRejected: the service refused the write for permission
	// reasons; the optimistic change was rolled back.
	SignalRejected SignalKind = "rejected"
	// SignalFailed: the write failed for transient reasons; the
	// optimistic change was rolled back and may be retried.
	SignalFailed SignalKind = "failed"
)

// Signal reports an asynchronous mutation outcome the UI should surface.
type Signal struct {
	Kind    SignalKind
	Op      string
	EventID string
	Err     error
}

type Options struct {
	// OverrideTolerance bounds how far server times may drift from a
	// recorded local override before the override is considered stale.
	OverrideTolerance time.Duration
	// SuppressionGrace keeps a deleted id suppressed long enough for
	// in-flight list responses to drain.
	SuppressionGrace time.Duration
	// StateFlushDelay debounces user-state persistence.
	StateFlushDelay time.Duration
	Location        *time.Location
	ViewerEmail     string
}

func (o *Options) normalize() {
	if o.OverrideTolerance <= 0 {
		o.OverrideTolerance = time.Minute
	}
	if o.SuppressionGrace <= 0 {
		o.SuppressionGrace = time.Minute
	}
	if o.StateFlushDelay <= 0 {
		o.StateFlushDelay = 2 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

type Deps struct {
	Store   *store.Store
	Links   *link.Registry
	Recur   *recur.Materializer
	Remote  remote.Service
	Metrics *metric.Metrics

	SuppressedEvents *track.Set
	SuppressedTodos  *track.Set
	Pending          *track.TTLMap
	Optimistic       *track.EventCache
	Overrides        *track.OverrideMap

	Durable   *cache.Durable
	Snapshots *cache.SnapshotStore
}

type Manager struct {
	opts Options
	deps Deps

	signals    chan Signal
	stateSaver *utils.Debouncer

	// winStart/winEnd is the window virtual occurrences are kept
	// materialized for.
	winMu    sync.Mutex
	winStart time.Time
	winEnd   time.Time
}

func NewManager(opts Options, deps Deps) *Manager {
	opts.normalize()
	now := time.Now()
	return &Manager{
		opts:       opts,
		deps:       deps,
		signals:    make(chan Signal, 16),
		stateSaver: utils.NewDebouncer(opts.StateFlushDelay),
		winStart:   now.AddDate(0, -2, 0),
		winEnd:     now.AddDate(0, 2, 0),
	}
}

// Signals delivers asynchronous mutation outcomes. The channel is
// buffered; stale signals are dropped rather than blocking a mutation.
func (m *Manager) Signals() <-chan Signal {
	return m.signals
}

func (m *Manager) signal(kind SignalKind, op, eventID string, err error) {
	select {
	case m.signals <- Signal{Kind: kind, Op: op, EventID: eventID, Err: err}:
	default:
		slog.Warn("signal dropped", "op", op, "id", eventID)
	}
}

// SetWindow updates the materialization window for recurring series.
func (m *Manager) SetWindow(start, end time.Time) {
	m.winMu.Lock()
	defer m.winMu.Unlock()
	m.winStart, m.winEnd = start, end
}

func (m *Manager) window() (time.Time, time.Time) {
	m.winMu.Lock()
	defer m.winMu.Unlock()
	return m.winStart, m.winEnd
}

// rematerialize refreshes the parent's virtual occurrences inside the
// current window, sweeping the stale set first. A series the server has
// expanded itself gets no placeholders: the confirmed occurrences are
// the truth.
func (m *Manager) rematerialize(parent *event.Event) {
	for _, id := range m.deps.Recur.Clear(parent.ID) {
		m.deps.Store.Remove(id)
	}
	if !parent.Recurs() {
		return
	}
	if m.hasConfirmedOccurrences(parent.ID) {
		return
	}
	winStart, winEnd := m.window()
	occurrences, err := m.deps.Recur.Materialize(parent, winStart, winEnd)
	if err != nil {
		slog.Warn("can't materialize series", "id", parent.ID, "error", err)
		return
	}
	for _, occ := range occurrences {
		m.deps.Store.Upsert(occ)
	}
}

// RefreshSeries re-expands one recurring parent's occurrences inside
// the current window.
func (m *Manager) RefreshSeries(parent *event.Event) {
	m.rematerialize(parent)
}

func (m *Manager) hasConfirmedOccurrences(parentID string) bool {
	for _, ev := range m.deps.Store.All() {
		if ev.ID != parentID && ev.SeriesID == parentID && ev.Confirmed && !ev.Virtual {
			return true
		}
	}
	return false
}

// CheckOff toggles the local done flag and schedules its persistence.
func (m *Manager) CheckOff(ctx context.Context, eventID string, checked bool) error {
	ev, ok := m.deps.Store.Get(eventID)
	if !ok {
		return remote.ErrNotFound
	}
	ev.CheckedOff = checked
	m.deps.Store.Upsert(ev)
	m.deps.Snapshots.RemoveEvent(eventID)
	m.flushStateLater(map[string]bool{eventID: checked})
	return nil
}

// flushStateLater pushes dirty override and checked-off state to the
// service, debounced so bursts of edits collapse into one write.
func (m *Manager) flushStateLater(checkedOff map[string]bool) {
	m.stateSaver.Trigger(func() {
		update := remote.UserStateUpdate{CheckedOff: checkedOff}
		dirty := m.deps.Overrides.DrainDirty()
		if len(dirty) > 0 {
			update.Overrides = make(map[string]*remote.OverridePayload, len(dirty))
			for id, ov := range dirty {
				if ov == nil {
					update.Overrides[id] = nil
					continue
				}
				update.Overrides[id] = &remote.OverridePayload{
					Start:     ov.Start.Unix(),
					End:       ov.End.Unix(),
					UpdatedAt: ov.UpdatedAt.Unix(),
				}
			}
		}
		if len(update.Overrides) == 0 && len(update.CheckedOff) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.deps.Remote.BatchUpdateUserState(ctx, update); err != nil {
			slog.Warn("can't persist user state", "error", err)
		}
	})
}

// suppressForAWhile adds the id to the suppression set and lifts it once
// in-flight responses can no longer contain the entity.
func suppressForAWhile(set *track.Set, id string, grace time.Duration) {
	set.Add(id)
	time.AfterFunc(grace, func() {
		set.Remove(id)
	})
}
