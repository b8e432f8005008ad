// Package store is the in-memory source of truth: a flat entity map plus
// a per-day index kept in lockstep with it. Readers always get clones;
// nothing outside the store can alias its internal state.
package store

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"daybook/src-client/event"
)

type Store struct {
	mu       sync.RWMutex
	events   map[string]*event.Event
	days     map[string]map[string]struct{}
	collator *collate.Collator

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int
}

func New() *Store {
	return &Store{
		events:      make(map[string]*event.Event),
		days:        make(map[string]map[string]struct{}),
		collator:    collate.New(language.Und, collate.IgnoreCase),
		subscribers: make(map[int]func()),
	}
}

// Subscribe registers fn to run after every committed change. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Upsert inserts or replaces the entity and reindexes only the days it
// touched before and after the change.
func (s *Store) Upsert(ev *event.Event) {
	if ev == nil || ev.ID == "" {
		return
	}
	clone := ev.Clone()
	clone.ClampTimes()

	s.mu.Lock()
	if prev, ok := s.events[clone.ID]; ok {
		s.deindex(prev)
	}
	s.events[clone.ID] = clone
	s.index(clone)
	s.mu.Unlock()
	s.notify()
}

// Remove drops the entity and returns a clone of what was removed.
func (s *Store) Remove(id string) (*event.Event, bool) {
	s.mu.Lock()
	prev, ok := s.events[id]
	if ok {
		s.deindex(prev)
		delete(s.events, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.notify()
	return prev.Clone(), true
}

func (s *Store) Get(id string) (*event.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, false
	}
	return ev.Clone(), true
}

func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[id]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// All returns clones of every entity, in no particular order.
func (s *Store) All() []*event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*event.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Clone())
	}
	return out
}

// ReplaceAll swaps the whole entity set in one transition. The day index
// is diffed against the outgoing set; only duplicate ids in the input
// (collapsed to the last occurrence) force a full rebuild.
func (s *Store) ReplaceAll(events []*event.Event) {
	next := make(map[string]*event.Event, len(events))
	duplicates := false
	for _, ev := range events {
		if ev == nil || ev.ID == "" {
			continue
		}
		if _, seen := next[ev.ID]; seen {
			duplicates = true
		}
		clone := ev.Clone()
		clone.ClampTimes()
		next[clone.ID] = clone
	}

	s.mu.Lock()
	if duplicates {
		s.events = next
		s.rebuildIndexLocked()
		s.mu.Unlock()
		s.notify()
		return
	}
	for id, prev := range s.events {
		if _, kept := next[id]; !kept {
			s.deindex(prev)
		}
	}
	for id, ev := range next {
		if prev, ok := s.events[id]; ok {
			s.deindex(prev)
		}
		s.index(ev)
	}
	s.events = next
	s.mu.Unlock()
	s.notify()
}

// RebuildIndex discards and reconstructs the day index from the entity
// map, the recovery path when the index is suspected stale.
func (s *Store) RebuildIndex() {
	s.mu.Lock()
	s.rebuildIndexLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) rebuildIndexLocked() {
	s.days = make(map[string]map[string]struct{})
	for _, ev := range s.events {
		s.index(ev)
	}
}

// EventsForDate returns clones of every entity overlapping the day, in
// render order: optimistic entities first, then pending-sync, then
// confirmed; within a group all-day items precede timed ones, ties break
// on start time and finally on title.
func (s *Store) EventsForDate(date time.Time) []*event.Event {
	key := event.DayKey(date)
	s.mu.RLock()
	ids := s.days[key]
	out := make([]*event.Event, 0, len(ids))
	for id := range ids {
		if ev, ok := s.events[id]; ok {
			out = append(out, ev.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return s.less(out[i], out[j])
	})
	return out
}

func (s *Store) less(a, b *event.Event) bool {
	if wa, wb := statusWeight(a), statusWeight(b); wa != wb {
		return wa < wb
	}
	if aa, ab := a.BehavesAllDay(), b.BehavesAllDay(); aa != ab {
		return aa
	}
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return s.collator.CompareString(a.Title, b.Title) < 0
}

func statusWeight(ev *event.Event) int {
	switch {
	case ev.IsOptimistic:
		return -2
	case ev.IsPendingSync:
		return -1
	default:
		return 0
	}
}

func (s *Store) index(ev *event.Event) {
	for _, key := range dayKeys(ev) {
		bucket, ok := s.days[key]
		if !ok {
			bucket = make(map[string]struct{})
			s.days[key] = bucket
		}
		bucket[ev.ID] = struct{}{}
	}
}

func (s *Store) deindex(ev *event.Event) {
	for _, key := range dayKeys(ev) {
		if bucket, ok := s.days[key]; ok {
			delete(bucket, ev.ID)
			if len(bucket) == 0 {
				delete(s.days, key)
			}
		}
	}
}

func dayKeys(ev *event.Event) []string {
	first, last := ev.DaySpan()
	var keys []string
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		keys = append(keys, event.DayKey(day))
	}
	return keys
}
