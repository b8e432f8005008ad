// Package track holds the small in-memory trackers shared between the
// mutation and sync layers: suppression sets, the pending-sync TTL map,
// and the optimistic side cache. Each is an explicit injected object, not
// ambient module state.
package track

import (
	"sync"
	"time"

	"daybook/src-client/event"
)

// Set is a mutex-guarded string set used for suppressed event and todo
// ids: ids whose late network outcomes must be discarded on arrival.
type Set struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewSet() *Set {
	return &Set{ids: make(map[string]struct{})}
}

func (s *Set) Add(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *Set) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *Set) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}

// TTLMap remembers when an id entered the pending-sync window. Entries
// expire lazily on read.
type TTLMap struct {
	mu    sync.Mutex
	ttl   time.Duration
	since map[string]time.Time
	now   func() time.Time
}

func NewTTLMap(ttl time.Duration) *TTLMap {
	return &TTLMap{ttl: ttl, since: make(map[string]time.Time), now: time.Now}
}

func (m *TTLMap) Mark(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since[id] = m.now()
}

// Active reports whether id is still inside its TTL window; an expired
// entry is dropped as a side effect.
func (m *TTLMap) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	since, ok := m.since[id]
	if !ok {
		return false
	}
	if m.now().Sub(since) > m.ttl {
		delete(m.since, id)
		return false
	}
	return true
}

func (m *TTLMap) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.since, id)
}

func (m *TTLMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = make(map[string]time.Time)
}

// SetNow swaps the clock, for tests.
func (m *TTLMap) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// EventCache is the side cache of currently-optimistic entities, keyed by
// id, used to restore a user's in-flight creation if a racing refresh
// drops it from the store.
type EventCache struct {
	mu     sync.Mutex
	events map[string]*event.Event
}

func NewEventCache() *EventCache {
	return &EventCache{events: make(map[string]*event.Event)}
}

func (c *EventCache) Put(ev *event.Event) {
	if ev == nil || ev.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[ev.ID] = ev.Clone()
}

func (c *EventCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.events, id)
}

// RemoveByTodo drops every cached entity linked to todoID and returns the
// ids that were dropped.
func (c *EventCache) RemoveByTodo(todoID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []string
	for id, ev := range c.events {
		if ev.TodoID != "" && ev.TodoID == todoID {
			delete(c.events, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// All returns clones of every cached entity.
func (c *EventCache) All() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*event.Event, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Clone())
	}
	return out
}

func (c *EventCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = make(map[string]*event.Event)
}
