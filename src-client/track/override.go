package track

import (
	"sync"
	"time"

	"daybook/src-client/event"
)

// TimeOverride is a locally recorded start/end pair that takes precedence
// over a stale server value until the server catches up.
type TimeOverride struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OverrideMap tracks one TimeOverride per event id plus the dirty ids
// whose overrides still need remote persistence.
type OverrideMap struct {
	mu        sync.Mutex
	tolerance time.Duration
	overrides map[string]TimeOverride
	dirty     map[string]struct{}
}

func NewOverrideMap(tolerance time.Duration) *OverrideMap {
	return &OverrideMap{
		tolerance: tolerance,
		overrides: make(map[string]TimeOverride),
		dirty:     make(map[string]struct{}),
	}
}

func (o *OverrideMap) Record(id string, start, end time.Time) {
	if id == "" || start.IsZero() || end.IsZero() {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.overrides[id]; ok && prev.Start.Equal(start) && prev.End.Equal(end) {
		return
	}
	o.overrides[id] = TimeOverride{Start: start, End: end, UpdatedAt: time.Now()}
	o.dirty[id] = struct{}{}
}

func (o *OverrideMap) Get(id string) (TimeOverride, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	ov, ok := o.overrides[id]
	return ov, ok
}

func (o *OverrideMap) Has(id string) bool {
	_, ok := o.Get(id)
	return ok
}

func (o *OverrideMap) Remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.overrides[id]; !ok {
		return
	}
	delete(o.overrides, id)
	o.dirty[id] = struct{}{}
}

// ClearIfSynced removes the override when the confirmed times have caught
// up to it within the tolerance.
func (o *OverrideMap) ClearIfSynced(id string, start, end time.Time) {
	ov, ok := o.Get(id)
	if !ok {
		return
	}
	if within(start, ov.Start, o.tolerance) && within(end, ov.End, o.tolerance) {
		o.Remove(id)
	}
}

// Apply rewrites the entity's times from its active override, if any. When
// the entity's own times already match the override within tolerance the
// override has served its purpose and is dropped instead.
func (o *OverrideMap) Apply(ev *event.Event) *event.Event {
	if ev == nil || ev.ID == "" {
		return ev
	}
	ov, ok := o.Get(ev.ID)
	if !ok {
		return ev
	}
	if within(ev.Start, ov.Start, o.tolerance) && within(ev.End, ov.End, o.tolerance) {
		o.Remove(ev.ID)
		return ev
	}
	ev.Start = ov.Start
	ev.End = ov.End
	ev.HasLocalOverride = true
	return ev
}

// DrainDirty returns and clears the set of ids whose override state needs
// persisting, paired with the current override (nil when removed).
func (o *OverrideMap) DrainDirty() map[string]*TimeOverride {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*TimeOverride, len(o.dirty))
	for id := range o.dirty {
		if ov, ok := o.overrides[id]; ok {
			copied := ov
			out[id] = &copied
		} else {
			out[id] = nil
		}
	}
	o.dirty = make(map[string]struct{})
	return out
}

// Hydrate replaces the map's contents from remotely persisted state.
func (o *OverrideMap) Hydrate(overrides map[string]TimeOverride) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overrides = make(map[string]TimeOverride, len(overrides))
	for id, ov := range overrides {
		o.overrides[id] = ov
	}
}

func within(a, b time.Time, tolerance time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff < tolerance
}
