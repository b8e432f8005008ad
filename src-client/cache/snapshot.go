package cache

import (
	"container/list"
	"fmt"
	"sync"

	"daybook/src-client/event"
)

// MaxSnapshots bounds the in-memory snapshot tier.
const MaxSnapshots = 500

// SnapshotKey identifies one memoized day-level query result. The key
// embeds the schema version so a client upgrade invalidates everything.
func SnapshotKey(user, dayKey string, rangeStart, rangeEnd int64) string {
	return fmt.Sprintf("v%d:%s:%s:%d:%d", SchemaVersion, user, dayKey, rangeStart, rangeEnd)
}

type snapshotEntry struct {
	key    string
	events []*event.Event
	ids    map[string]struct{}
	todos  map[string]struct{}
}

// SnapshotStore memoizes rendered day results. Entries are evicted least
// recently used once the store exceeds MaxSnapshots, and proactively
// purged when any entity they contain is mutated or deleted.
type SnapshotStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Put stores clones of events under key, evicting the oldest entry when
// the store is full.
func (s *SnapshotStore) Put(key string, events []*event.Event) {
	entry := &snapshotEntry{
		key:    key,
		events: make([]*event.Event, 0, len(events)),
		ids:    make(map[string]struct{}, len(events)),
		todos:  make(map[string]struct{}),
	}
	for _, ev := range events {
		if ev == nil {
			continue
		}
		entry.events = append(entry.events, ev.Clone())
		entry.ids[ev.ID] = struct{}{}
		if ev.TodoID != "" {
			entry.todos[ev.TodoID] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if elem, ok := s.entries[key]; ok {
		s.order.Remove(elem)
	}
	s.entries[key] = s.order.PushFront(entry)
	for s.order.Len() > MaxSnapshots {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*snapshotEntry).key)
	}
}

// Get returns clones of the memoized result, refreshing its recency.
func (s *SnapshotStore) Get(key string) ([]*event.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(elem)
	entry := elem.Value.(*snapshotEntry)
	out := make([]*event.Event, len(entry.events))
	for i, ev := range entry.events {
		out[i] = ev.Clone()
	}
	return out, true
}

// RemoveEvent purges every snapshot containing the event id.
func (s *SnapshotStore) RemoveEvent(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, elem := range s.entries {
		if _, ok := elem.Value.(*snapshotEntry).ids[eventID]; ok {
			s.order.Remove(elem)
			delete(s.entries, key)
		}
	}
}

// RemoveTodo purges every snapshot containing an entity linked to the
// todo id.
func (s *SnapshotStore) RemoveTodo(todoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, elem := range s.entries {
		if _, ok := elem.Value.(*snapshotEntry).todos[todoID]; ok {
			s.order.Remove(elem)
			delete(s.entries, key)
		}
	}
}

func (s *SnapshotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
}

func (s *SnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
