package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"daybook/src-client/cache"
	"daybook/src-client/event"
	"daybook/src-client/link"
	"daybook/src-client/metric"
	"daybook/src-client/remote"
	"daybook/src-client/store"
	"daybook/src-client/track"
)

// DefaultMaxSegmentMonths caps how many months one remote fetch may
// cover.
const DefaultMaxSegmentMonths = 18

type Options struct {
	// BufferMonths widens EnsureRangeLoaded's target on both sides.
	BufferMonths int
	// Cooldown suppresses repeated EnsureRangeLoaded calls for the same
	// target range.
	Cooldown time.Duration
	// MaxSegmentMonths caps one fetch segment; zero means the default.
	MaxSegmentMonths int
	Location         *time.Location
	// ViewerEmail identifies the user in attendee lists during
	// normalization.
	ViewerEmail string
	// CalendarIDs filters fetches to these calendars; empty means all.
	CalendarIDs []string
}

func (o *Options) normalize() {
	if o.MaxSegmentMonths <= 0 {
		o.MaxSegmentMonths = DefaultMaxSegmentMonths
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

// Deps are the collaborators the engine reconciles against.
type Deps struct {
	Store   *store.Store
	Remote  remote.Service
	Metrics *metric.Metrics

	SuppressedEvents *track.Set
	SuppressedTodos  *track.Set
	Pending          *track.TTLMap
	Optimistic       *track.EventCache
	Overrides        *track.OverrideMap
	Links            *link.Registry

	Durable   *cache.Durable
	Snapshots *cache.SnapshotStore
}

// Engine owns the loaded-month ledger and runs fetch + reconcile cycles.
// A failed segment leaves its months unmarked so the next call retries
// them.
type Engine struct {
	opts Options
	deps Deps

	mu           sync.Mutex
	loadedMonths map[string]bool
	inFlight     map[string]struct{}
	lastEnsure   map[string]time.Time
	now          func() time.Time
}

func NewEngine(opts Options, deps Deps) *Engine {
	opts.normalize()
	return &Engine{
		opts:         opts,
		deps:         deps,
		loadedMonths: make(map[string]bool),
		inFlight:     make(map[string]struct{}),
		lastEnsure:   make(map[string]time.Time),
		now:          time.Now,
	}
}

// SetNow swaps the clock, for tests.
func (e *Engine) SetNow(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// IsMonthLoaded reports whether the month of t has been fetched.
func (e *Engine) IsMonthLoaded(t time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadedMonths[MonthKey(t)]
}

// LoadedMonths returns the sorted-free set of loaded month keys.
func (e *Engine) LoadedMonths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.loadedMonths))
	for key := range e.loadedMonths {
		out = append(out, key)
	}
	return out
}

// Reset forgets every loaded month and ensure cooldown; the next fetch
// starts from scratch.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadedMonths = make(map[string]bool)
	e.lastEnsure = make(map[string]time.Time)
}

// EnsureRangeLoaded widens [start, end] by the buffer and fetches
// whatever months of the result are missing. Repeat calls for the same
// target inside the cooldown are no-ops. Returns whether anything was
// fetched.
func (e *Engine) EnsureRangeLoaded(ctx context.Context, start, end time.Time) (bool, error) {
	start, end = bufferRange(start, end, e.opts.BufferMonths)
	key := fmt.Sprintf("%s:%s", MonthKey(start), MonthKey(end))

	e.mu.Lock()
	if last, ok := e.lastEnsure[key]; ok && e.now().Sub(last) < e.opts.Cooldown {
		e.mu.Unlock()
		return false, nil
	}
	e.lastEnsure[key] = e.now()
	missing := false
	for _, month := range EnumerateMonths(start, end) {
		if !e.loadedMonths[month] {
			missing = true
			break
		}
	}
	e.mu.Unlock()

	if !missing {
		return false, nil
	}
	if err := e.FetchRange(ctx, start, end, false, false); err != nil {
		return false, err
	}
	return true, nil
}

// FetchRange loads every missing month of [start, end] and reconciles
// the results. force refetches months already marked loaded; background
// softens reconciliation so confirmed entities absent from the response
// are kept rather than deleted.
func (e *Engine) FetchRange(ctx context.Context, start, end time.Time, background, force bool) error {
	months := EnumerateMonths(start, end)

	e.mu.Lock()
	var wanted []string
	for _, month := range months {
		if _, busy := e.inFlight[month]; busy {
			continue
		}
		if !force && e.loadedMonths[month] {
			continue
		}
		e.inFlight[month] = struct{}{}
		wanted = append(wanted, month)
	}
	e.mu.Unlock()

	if len(wanted) == 0 {
		return nil
	}
	defer func() {
		e.mu.Lock()
		for _, month := range wanted {
			delete(e.inFlight, month)
		}
		e.mu.Unlock()
	}()

	segments := splitSegments(groupContiguous(wanted, e.opts.Location), e.opts.MaxSegmentMonths)
	var firstErr error
	for _, segment := range segments {
		if err := e.processSegment(ctx, segment, background); err != nil {
			slog.Warn("fetch segment failed", "months", segment, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) processSegment(ctx context.Context, months []string, background bool) error {
	segStart, segEnd := segmentBounds(months, e.opts.Location)

	e.deps.Metrics.FetchSegments.Inc()
	payloads, err := e.deps.Remote.ListEvents(ctx, segStart, segEnd, e.opts.CalendarIDs)
	if err != nil {
		e.deps.Metrics.FetchFailures.Inc()
		return fmt.Errorf("Engine.processSegment: %w", err)
	}

	incoming := make(map[string]*event.Event, len(payloads))
	for _, payload := range payloads {
		ev, ok := remote.Normalize(payload, e.opts.ViewerEmail, e.opts.Location)
		if !ok {
			continue
		}
		if e.deps.SuppressedEvents.Has(ev.ID) {
			continue
		}
		if ev.TodoID != "" && e.deps.SuppressedTodos.Has(ev.TodoID) {
			continue
		}
		incoming[ev.ID] = ev
	}

	e.reconcile(ctx, segStart, segEnd, incoming, background)

	e.mu.Lock()
	for _, month := range months {
		e.loadedMonths[month] = true
	}
	e.mu.Unlock()
	return nil
}

// reconcile folds the segment's server truth into the store. Server data
// wins for confirmed entities; local in-flight work (optimistic entities
// and fresh pending-sync writes) is never clobbered.
func (e *Engine) reconcile(ctx context.Context, segStart, segEnd time.Time, incoming map[string]*event.Event, background bool) {
	for _, existing := range e.deps.Store.All() {
		if !overlaps(existing, segStart, segEnd) {
			continue
		}

		server, ok := incoming[existing.ID]
		if ok {
			delete(incoming, existing.ID)
			e.insertIncoming(mergeServerWins(existing, server))
			e.deps.Pending.Remove(existing.ID)
			e.deps.Metrics.ReconcileMerges.Inc()
			continue
		}

		if existing.IsOptimistic || existing.Virtual {
			continue
		}
		if existing.IsPendingSync && e.deps.Pending.Active(existing.ID) {
			continue
		}
		if !existing.Confirmed || background {
			continue
		}

		// Foreground truth: the server no longer has it.
		e.deps.Store.Remove(existing.ID)
		e.deps.Links.UnlinkEvent(existing.ID)
		e.deps.Snapshots.RemoveEvent(existing.ID)
		if err := e.deps.Durable.Remove(ctx, existing.ID); err != nil {
			slog.Warn("can't purge durable row", "id", existing.ID, "error", err)
		}
		e.deps.Metrics.ReconcileDeletes.Inc()
	}

	for _, ev := range incoming {
		e.insertIncoming(ev)
		e.deps.Metrics.ReconcileInserts.Inc()
	}

	// A racing refresh must not lose the user's in-flight creations.
	for _, ev := range e.deps.Optimistic.All() {
		if overlaps(ev, segStart, segEnd) && !e.deps.Store.Has(ev.ID) {
			e.deps.Store.Upsert(ev)
		}
	}

	e.deps.Metrics.LoadedEvents.Set(float64(e.deps.Store.Len()))
}

func (e *Engine) insertIncoming(ev *event.Event) {
	ev = e.deps.Overrides.Apply(ev)
	e.deps.Store.Upsert(ev)
	if ev.TodoID != "" {
		e.deps.Links.Bind(ev.TodoID, ev.ID)
	}
}

// mergeServerWins overlays the server entity on the local one: server
// fields win, but identity and client-only state survive the merge.
func mergeServerWins(local, server *event.Event) *event.Event {
	merged := server.Clone()
	merged.ClientKey = local.ClientKey
	merged.CheckedOff = local.CheckedOff
	merged.IsOptimistic = false
	merged.IsPendingSync = false
	merged.Confirmed = true
	return merged
}

func overlaps(ev *event.Event, start, end time.Time) bool {
	return ev.Start.Before(end) && ev.End.After(start)
}
