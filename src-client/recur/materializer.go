// Package recur expands recurring parents into virtual occurrence
// entities inside a concrete window. Occurrences are display-only; they
// carry synthetic ids and are regenerated whenever the window or the
// parent changes.
package recur

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xyedo/rrule"

	"daybook/src-client/event"
)

// MaxOccurrences caps how many virtual entities a single parent may
// produce in one window.
const MaxOccurrences = 400

const occurrenceIDPrefix = "temp-rec-"

// OccurrenceID builds the synthetic id for one expansion of a parent.
func OccurrenceID(parentID string, start time.Time) string {
	return fmt.Sprintf("%s%s-%d", occurrenceIDPrefix, parentID, start.Unix())
}

// IsOccurrenceID reports whether id names a virtual occurrence.
func IsOccurrenceID(id string) bool {
	return strings.HasPrefix(id, occurrenceIDPrefix)
}

// Materializer tracks which virtual ids each parent currently owns so
// stale occurrences can be swept before re-expansion.
type Materializer struct {
	mu       sync.Mutex
	byParent map[string][]string
}

func NewMaterializer() *Materializer {
	return &Materializer{byParent: make(map[string][]string)}
}

// Materialize expands the parent's recurrence rule across the window and
// returns the virtual entities, replacing whatever set the parent owned
// before. The parent's own start is not duplicated as an occurrence.
func (m *Materializer) Materialize(parent *event.Event, winStart, winEnd time.Time) ([]*event.Event, error) {
	if parent == nil || !parent.Recurs() || parent.Virtual {
		return nil, nil
	}

	rule, err := rrule.StrToRRule(strings.TrimPrefix(parent.RecurrenceRule, "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("Materializer.Materialize: can't parse recurrence rule: %w", err)
	}
	rule.DTStart(parent.Start)

	duration := parent.End.Sub(parent.Start)
	starts := rule.Between(winStart, winEnd, true)

	occurrences := make([]*event.Event, 0, len(starts))
	ids := make([]string, 0, len(starts))
	for _, start := range starts {
		if len(occurrences) >= MaxOccurrences {
			break
		}
		diff := start.Sub(parent.Start)
		if diff < 0 {
			diff = -diff
		}
		if diff < time.Minute {
			continue
		}
		occ := parent.Clone()
		occ.ID = OccurrenceID(parent.ID, start)
		occ.ClientKey = occ.ID
		occ.Start = start
		occ.End = start.Add(duration)
		occ.Virtual = true
		occ.IsOptimistic = true
		occ.Confirmed = false
		occ.IsPendingSync = false
		occ.SeriesID = parent.ID
		occurrences = append(occurrences, occ)
		ids = append(ids, occ.ID)
	}

	m.mu.Lock()
	m.byParent[parent.ID] = ids
	m.mu.Unlock()
	return occurrences, nil
}

// Owned returns the virtual ids currently attributed to the parent.
func (m *Materializer) Owned(parentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byParent[parentID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Parents returns every parent id with tracked occurrences.
func (m *Materializer) Parents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.byParent))
	for id := range m.byParent {
		out = append(out, id)
	}
	return out
}

// Clear forgets the parent and returns the virtual ids it owned, so the
// caller can remove them from the store.
func (m *Materializer) Clear(parentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byParent[parentID]
	delete(m.byParent, parentID)
	return ids
}

// Rebind moves ownership from a temporary parent id to its server id.
func (m *Materializer) Rebind(oldID, newID string) {
	if oldID == "" || newID == "" || oldID == newID {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ids, ok := m.byParent[oldID]; ok {
		delete(m.byParent, oldID)
		m.byParent[newID] = ids
	}
}

// ClearAll drops every tracked parent and returns all owned virtual ids.
func (m *Materializer) ClearAll() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ids := range m.byParent {
		out = append(out, ids...)
	}
	m.byParent = make(map[string][]string)
	return out
}

// Summarize renders a short human description of an RRULE string, falling
// back to the raw rule when it can't be parsed.
func Summarize(raw string) string {
	if raw == "" {
		return ""
	}
	rule, err := rrule.StrToRRule(strings.TrimPrefix(raw, "RRULE:"))
	if err != nil {
		return raw
	}
	return rule.String()
}
