package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/src-client/event"
)

func TestTTLMapExpires(t *testing.T) {
	m := NewTTLMap(time.Minute)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m.SetNow(func() time.Time { return now })

	m.Mark("a")
	assert.True(t, m.Active("a"))

	now = now.Add(59 * time.Second)
	assert.True(t, m.Active("a"))

	now = now.Add(2 * time.Second)
	assert.False(t, m.Active("a"))
	// Expiry is sticky: the entry was dropped on read.
	now = now.Add(-time.Minute)
	assert.False(t, m.Active("a"))
}

func TestEventCacheRemoveByTodo(t *testing.T) {
	c := NewEventCache()
	c.Put(&event.Event{ID: "e1", TodoID: "t1"})
	c.Put(&event.Event{ID: "e2", TodoID: "t2"})

	removed := c.RemoveByTodo("t1")
	assert.Equal(t, []string{"e1"}, removed)
	assert.Len(t, c.All(), 1)
}

func TestOverrideApply(t *testing.T) {
	o := NewOverrideMap(time.Minute)
	ovStart := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	o.Record("e1", ovStart, ovStart.Add(time.Hour))

	// Stale server times are rewritten from the override.
	ev := &event.Event{ID: "e1", Start: ovStart.Add(-2 * time.Hour), End: ovStart.Add(-time.Hour)}
	ev = o.Apply(ev)
	assert.True(t, ev.Start.Equal(ovStart))
	assert.True(t, ev.HasLocalOverride)
	assert.True(t, o.Has("e1"))

	// Server times within tolerance retire the override.
	ev = &event.Event{ID: "e1", Start: ovStart.Add(30 * time.Second), End: ovStart.Add(time.Hour)}
	ev = o.Apply(ev)
	assert.False(t, ev.HasLocalOverride)
	assert.False(t, o.Has("e1"))
}

func TestOverrideDrainDirty(t *testing.T) {
	o := NewOverrideMap(time.Minute)
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	o.Record("e1", start, start.Add(time.Hour))
	o.Record("e2", start, start.Add(time.Hour))
	o.Remove("e2")

	dirty := o.DrainDirty()
	require.Len(t, dirty, 2)
	assert.NotNil(t, dirty["e1"])
	assert.Nil(t, dirty["e2"], "removed override reported as nil")
	assert.Empty(t, o.DrainDirty())
}

func TestOverrideRecordIdenticalIsNoop(t *testing.T) {
	o := NewOverrideMap(time.Minute)
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	o.Record("e1", start, start.Add(time.Hour))
	o.DrainDirty()
	o.Record("e1", start, start.Add(time.Hour))
	assert.Empty(t, o.DrainDirty())
}
