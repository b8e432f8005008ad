// Package engine assembles the store, caches, sync engine, and mutation
// manager into the one facade callers talk to.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/uptrace/bun"

	"daybook/src-client/cache"
	"daybook/src-client/event"
	"daybook/src-client/ical"
	"daybook/src-client/link"
	"daybook/src-client/metric"
	"daybook/src-client/mutation"
	"daybook/src-client/recur"
	"daybook/src-client/remote"
	"daybook/src-client/store"
	syncx "daybook/src-client/sync"
	"daybook/src-client/track"
	"daybook/src-client/utils"
)

type Options struct {
	UserID      string
	ViewerEmail string
	Location    *time.Location
	// CalendarIDs filters fetches to these calendars; empty means all.
	CalendarIDs []string

	BufferMonths      int
	EnsureCooldown    time.Duration
	PendingSyncTTL    time.Duration
	OverrideTolerance time.Duration
	// PersistDelay debounces durable-cache writes after store changes.
	PersistDelay time.Duration
}

func (o *Options) normalize() {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.BufferMonths <= 0 {
		o.BufferMonths = 2
	}
	if o.EnsureCooldown <= 0 {
		o.EnsureCooldown = 10 * time.Second
	}
	if o.PendingSyncTTL <= 0 {
		o.PendingSyncTTL = time.Minute
	}
	if o.OverrideTolerance <= 0 {
		o.OverrideTolerance = time.Minute
	}
	if o.PersistDelay <= 0 {
		o.PersistDelay = 400 * time.Millisecond
	}
}

// Signal is a mutation outcome surfaced on the facade's channel.
type Signal = mutation.Signal

const (
	SignalRejected = mutation.SignalRejected
	SignalFailed   = mutation.SignalFailed
)

// Calendar is the client-facing facade over the whole engine.
type Calendar struct {
	opts    Options
	store   *store.Store
	links   *link.Registry
	recur   *recur.Materializer
	metrics *metric.Metrics

	suppressedEvents *track.Set
	suppressedTodos  *track.Set
	pending          *track.TTLMap
	optimistic       *track.EventCache
	overrides        *track.OverrideMap

	durable   *cache.Durable
	snapshots *cache.SnapshotStore

	remote remote.Service
	sync   *syncx.Engine
	mgr    *mutation.Manager

	saver       *utils.Debouncer
	unsubscribe func()

	mu           sync.Mutex
	visibleStart time.Time
	visibleEnd   time.Time
}

func New(ctx context.Context, db *bun.DB, svc remote.Service, metrics *metric.Metrics, opts Options) (*Calendar, error) {
	opts.normalize()

	durable, err := cache.NewDurable(ctx, db, opts.UserID)
	if err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}

	c := &Calendar{
		opts:             opts,
		store:            store.New(),
		links:            link.NewRegistry(),
		recur:            recur.NewMaterializer(),
		metrics:          metrics,
		suppressedEvents: track.NewSet(),
		suppressedTodos:  track.NewSet(),
		pending:          track.NewTTLMap(opts.PendingSyncTTL),
		optimistic:       track.NewEventCache(),
		overrides:        track.NewOverrideMap(opts.OverrideTolerance),
		durable:          durable,
		snapshots:        cache.NewSnapshotStore(),
		remote:           svc,
		saver:            utils.NewDebouncer(opts.PersistDelay),
	}

	now := time.Now().In(opts.Location)
	c.visibleStart = event.StartOfDay(now.AddDate(0, 0, -now.Day()+1))
	c.visibleEnd = c.visibleStart.AddDate(0, 1, 0)

	c.sync = syncx.NewEngine(syncx.Options{
		BufferMonths: opts.BufferMonths,
		Cooldown:     opts.EnsureCooldown,
		Location:     opts.Location,
		ViewerEmail:  opts.ViewerEmail,
		CalendarIDs:  opts.CalendarIDs,
	}, syncx.Deps{
		Store:            c.store,
		Remote:           svc,
		Metrics:          metrics,
		SuppressedEvents: c.suppressedEvents,
		SuppressedTodos:  c.suppressedTodos,
		Pending:          c.pending,
		Optimistic:       c.optimistic,
		Overrides:        c.overrides,
		Links:            c.links,
		Durable:          durable,
		Snapshots:        c.snapshots,
	})

	c.mgr = mutation.NewManager(mutation.Options{
		OverrideTolerance: opts.OverrideTolerance,
		Location:          opts.Location,
		ViewerEmail:       opts.ViewerEmail,
	}, mutation.Deps{
		Store:            c.store,
		Links:            c.links,
		Recur:            c.recur,
		Remote:           svc,
		Metrics:          metrics,
		SuppressedEvents: c.suppressedEvents,
		SuppressedTodos:  c.suppressedTodos,
		Pending:          c.pending,
		Optimistic:       c.optimistic,
		Overrides:        c.overrides,
		Durable:          durable,
		Snapshots:        c.snapshots,
	})
	c.mgr.SetWindow(c.materializeWindow())

	// A todo removed upstream takes its companion event with it.
	c.links.OnOrphan(func(eventID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.mgr.Delete(ctx, eventID, remote.ScopeSingle); err != nil && !remote.IsNotFound(err) {
			slog.Warn("can't remove orphaned companion event", "id", eventID, "error", err)
		}
	})

	c.unsubscribe = c.store.Subscribe(func() {
		c.metrics.LoadedEvents.Set(float64(c.store.Len()))
		c.saver.Trigger(c.persistNow)
	})
	return c, nil
}

func (c *Calendar) persistNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.durable.Save(ctx, c.store.All()); err != nil {
		slog.Warn("can't persist durable cache", "error", err)
	}
}

func (c *Calendar) materializeWindow() (time.Time, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleStart.AddDate(0, -c.opts.BufferMonths, 0),
		c.visibleEnd.AddDate(0, c.opts.BufferMonths, 0)
}

// Bootstrap warms the engine from the durable cache and the persisted
// user state, then kicks off a foreground fetch of the visible range.
func (c *Calendar) Bootstrap(ctx context.Context) error {
	cached, err := c.durable.Load(ctx)
	if err != nil {
		slog.Warn("can't load durable cache", "error", err)
	} else if len(cached) > 0 {
		c.store.ReplaceAll(cached)
		slog.Info("store warmed from durable cache", "events", len(cached))
	}

	// Overrides hydrate before the first fetch so reconciliation applies
	// them to incoming entities; checked-off flags apply after it, once
	// the entities exist.
	state, stateErr := c.remote.FetchUserState(ctx)
	if stateErr != nil {
		slog.Warn("can't fetch user state", "error", stateErr)
	} else {
		overrides := make(map[string]track.TimeOverride, len(state.Overrides))
		for id, ov := range state.Overrides {
			overrides[id] = track.TimeOverride{
				Start:     time.Unix(ov.Start, 0).In(c.opts.Location),
				End:       time.Unix(ov.End, 0).In(c.opts.Location),
				UpdatedAt: time.Unix(ov.UpdatedAt, 0),
			}
		}
		c.overrides.Hydrate(overrides)
	}

	links, err := c.remote.TodoLinks(ctx)
	if err != nil {
		slog.Warn("can't fetch todo links", "error", err)
	} else {
		pairs := make([]link.Link, 0, len(links))
		for _, l := range links {
			pairs = append(pairs, link.Link{TodoID: l.TodoID, EventID: l.EventID})
		}
		c.links.Hydrate(pairs)
	}

	c.rematerializeAll()

	c.mu.Lock()
	start, end := c.visibleStart, c.visibleEnd
	c.mu.Unlock()
	if _, err := c.EnsureRangeLoaded(ctx, start, end); err != nil {
		return fmt.Errorf("Calendar.Bootstrap: %w", err)
	}

	if stateErr == nil {
		for _, id := range state.CheckedOff {
			if ev, ok := c.store.Get(id); ok && !ev.CheckedOff {
				ev.CheckedOff = true
				c.store.Upsert(ev)
			}
		}
	}
	return nil
}

// SetVisibleRange tells the engine which range the user is looking at;
// it drives the materialization window and prefetching.
func (c *Calendar) SetVisibleRange(ctx context.Context, start, end time.Time) {
	c.mu.Lock()
	c.visibleStart, c.visibleEnd = start, end
	c.mu.Unlock()
	c.mgr.SetWindow(c.materializeWindow())
	c.rematerializeAll()
	if _, err := c.EnsureRangeLoaded(ctx, start, end); err != nil {
		slog.Warn("can't prefetch visible range", "error", err)
	}
}

// GetEventsForDate returns the day's entities in render order, from the
// snapshot tier when possible. Suppressed entities never surface.
func (c *Calendar) GetEventsForDate(ctx context.Context, date time.Time) []*event.Event {
	c.mu.Lock()
	rangeStart, rangeEnd := c.visibleStart.Unix(), c.visibleEnd.Unix()
	c.mu.Unlock()
	key := cache.SnapshotKey(c.opts.UserID, event.DayKey(date), rangeStart, rangeEnd)

	if cached, ok := c.snapshots.Get(key); ok {
		c.metrics.SnapshotHits.Inc()
		return c.withoutSuppressed(cached)
	}
	c.metrics.SnapshotMisses.Inc()

	events := c.withoutSuppressed(c.store.EventsForDate(date))
	c.snapshots.Put(key, events)

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if changed, err := c.EnsureRangeLoaded(bg, date, date); err != nil {
			slog.Warn("can't ensure range for date", "date", event.DayKey(date), "error", err)
		} else if changed {
			c.snapshots.Clear()
		}
	}()
	return events
}

func (c *Calendar) withoutSuppressed(events []*event.Event) []*event.Event {
	out := events[:0]
	for _, ev := range events {
		if c.suppressedEvents.Has(ev.ID) {
			continue
		}
		if ev.TodoID != "" && c.suppressedTodos.Has(ev.TodoID) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// FetchEventsForRange fetches and reconciles the range, then refreshes
// recurring series and drops memoized day results.
func (c *Calendar) FetchEventsForRange(ctx context.Context, start, end time.Time, background, force bool) error {
	if err := c.sync.FetchRange(ctx, start, end, background, force); err != nil {
		return fmt.Errorf("Calendar.FetchEventsForRange: %w", err)
	}
	c.rematerializeAll()
	c.snapshots.Clear()
	return nil
}

// EnsureRangeLoaded fetches whatever months around [start, end] are
// missing, subject to the cooldown. Returns whether anything changed.
func (c *Calendar) EnsureRangeLoaded(ctx context.Context, start, end time.Time) (bool, error) {
	changed, err := c.sync.EnsureRangeLoaded(ctx, start, end)
	if err != nil {
		return false, err
	}
	if changed {
		c.rematerializeAll()
		c.snapshots.Clear()
	}
	return changed, nil
}

func (c *Calendar) rematerializeAll() {
	// Occurrences whose master is gone (deleted server-side and swept by
	// reconciliation) go with it.
	for _, parentID := range c.recur.Parents() {
		if !c.store.Has(parentID) {
			for _, id := range c.recur.Clear(parentID) {
				c.store.Remove(id)
			}
		}
	}
	for _, ev := range c.store.All() {
		if ev.Recurs() && !ev.Virtual {
			c.mgr.RefreshSeries(ev)
		}
	}
}

func (c *Calendar) CreateEvent(ctx context.Context, draft mutation.Draft) (*event.Event, error) {
	return c.mgr.Create(ctx, draft)
}

func (c *Calendar) UpdateEvent(ctx context.Context, eventID string, patch event.Patch, scope remote.UpdateScope) (*event.Event, error) {
	return c.mgr.Update(ctx, eventID, patch, scope)
}

func (c *Calendar) DeleteEvent(ctx context.Context, eventID string, scope remote.UpdateScope) error {
	return c.mgr.Delete(ctx, eventID, scope)
}

func (c *Calendar) RespondToInvite(ctx context.Context, eventID string, response event.ResponseStatus) error {
	return c.mgr.RespondToInvite(ctx, eventID, response)
}

func (c *Calendar) CheckOff(ctx context.Context, eventID string, checked bool) error {
	return c.mgr.CheckOff(ctx, eventID, checked)
}

// QuickAdd creates an entity from free text like "lunch tomorrow at
// noon". Text with no recognizable time lands on the next hour.
func (c *Calendar) QuickAdd(ctx context.Context, text string) (*event.Event, error) {
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)

	now := time.Now().In(c.opts.Location)
	draft := mutation.Draft{Title: strings.TrimSpace(text)}
	result, err := parser.Parse(text, now)
	if err == nil && result != nil {
		draft.Start = result.Time
		title := strings.TrimSpace(text[:result.Index]) + " " + strings.TrimSpace(text[result.Index+len(result.Text):])
		if title = strings.TrimSpace(title); title != "" {
			draft.Title = title
		}
	} else {
		draft.Start = now.Truncate(time.Hour).Add(time.Hour)
	}
	if draft.Title == "" {
		return nil, fmt.Errorf("Calendar.QuickAdd: no title in %q", text)
	}
	return c.mgr.Create(ctx, draft)
}

// ExportICS renders every confirmed entity as an iCalendar document.
func (c *Calendar) ExportICS() (string, error) {
	return ical.Export(c.store.All())
}

// Subscribe registers fn to run after every store change.
func (c *Calendar) Subscribe(fn func()) func() {
	return c.store.Subscribe(fn)
}

// Signals delivers asynchronous mutation outcomes.
func (c *Calendar) Signals() <-chan mutation.Signal {
	return c.mgr.Signals()
}

// Reset forgets all loaded range state; the next fetch starts cold.
func (c *Calendar) Reset() {
	c.sync.Reset()
	c.snapshots.Clear()
}

// Close flushes pending persistence and detaches the engine.
func (c *Calendar) Close() {
	c.saver.Cancel()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.persistNow()
}
