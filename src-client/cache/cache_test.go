package cache

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"daybook/src-client/event"
)

func newDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })
	return bun.NewDB(sqldb, sqlitedialect.New())
}

func confirmedEvent(id string) *event.Event {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &event.Event{
		ID: id, ClientKey: id, Title: "event " + id,
		Start: start, End: start.Add(time.Hour), Confirmed: true,
	}
}

func TestDurableSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	d, err := NewDurable(ctx, db, "user-1")
	require.NoError(t, err)

	optimistic := confirmedEvent("skip-me")
	optimistic.Confirmed = false
	virtual := confirmedEvent("skip-virtual")
	virtual.Virtual = true

	require.NoError(t, d.Save(ctx, []*event.Event{
		confirmedEvent("e1"), confirmedEvent("e2"), optimistic, virtual,
	}))

	got, err := d.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2, "only confirmed non-virtual entities persist")
	assert.True(t, got[0].Confirmed)
}

func TestDurableIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	alice, err := NewDurable(ctx, db, "alice")
	require.NoError(t, err)
	bob, err := NewDurable(ctx, db, "bob")
	require.NoError(t, err)

	require.NoError(t, alice.Save(ctx, []*event.Event{confirmedEvent("e1")}))

	got, err := bob.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDurableDropsStaleRows(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	d, err := NewDurable(ctx, db, "user-1")
	require.NoError(t, err)
	require.NoError(t, d.Save(ctx, []*event.Event{confirmedEvent("e1")}))

	// Age the row past the TTL.
	_, err = db.NewUpdate().
		Model((*CachedEvent)(nil)).
		Set("cached_at = ?", time.Now().Add(-25*time.Hour).Unix()).
		Where("user_id = ?", "user-1").
		Exec(ctx)
	require.NoError(t, err)

	got, err := d.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDurableDropsForeignSchemaVersion(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	d, err := NewDurable(ctx, db, "user-1")
	require.NoError(t, err)
	require.NoError(t, d.Save(ctx, []*event.Event{confirmedEvent("e1")}))

	_, err = db.NewUpdate().
		Model((*CachedEvent)(nil)).
		Set("version = ?", SchemaVersion-1).
		Where("user_id = ?", "user-1").
		Exec(ctx)
	require.NoError(t, err)

	got, err := d.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDurableAddAndRemove(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	d, err := NewDurable(ctx, db, "user-1")
	require.NoError(t, err)

	require.NoError(t, d.Add(ctx, confirmedEvent("e1")))
	require.NoError(t, d.Add(ctx, confirmedEvent("e1")), "upsert must not conflict")

	got, err := d.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, d.Remove(ctx, "e1"))
	got, err = d.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotPutGet(t *testing.T) {
	s := NewSnapshotStore()
	key := SnapshotKey("user-1", "2026-03-10", 0, 100)
	s.Put(key, []*event.Event{confirmedEvent("e1")})

	got, ok := s.Get(key)
	require.True(t, ok)
	require.Len(t, got, 1)

	// Mutating the result must not poison the memo.
	got[0].Title = "mutated"
	again, _ := s.Get(key)
	assert.Equal(t, "event e1", again[0].Title)
}

func TestSnapshotRemoveEventPurgesContainingEntries(t *testing.T) {
	s := NewSnapshotStore()
	s.Put("day-a", []*event.Event{confirmedEvent("e1"), confirmedEvent("e2")})
	s.Put("day-b", []*event.Event{confirmedEvent("e2")})
	s.Put("day-c", []*event.Event{confirmedEvent("e3")})

	s.RemoveEvent("e2")
	_, ok := s.Get("day-a")
	assert.False(t, ok)
	_, ok = s.Get("day-b")
	assert.False(t, ok)
	_, ok = s.Get("day-c")
	assert.True(t, ok)
}

func TestSnapshotRemoveTodo(t *testing.T) {
	s := NewSnapshotStore()
	linked := confirmedEvent("e1")
	linked.TodoID = "todo-1"
	s.Put("day-a", []*event.Event{linked})
	s.Put("day-b", []*event.Event{confirmedEvent("e2")})

	s.RemoveTodo("todo-1")
	_, ok := s.Get("day-a")
	assert.False(t, ok)
	_, ok = s.Get("day-b")
	assert.True(t, ok)
}

func TestSnapshotEvictsLRU(t *testing.T) {
	s := NewSnapshotStore()
	for i := 0; i < MaxSnapshots+10; i++ {
		s.Put(fmt.Sprintf("key-%d", i), []*event.Event{confirmedEvent("e1")})
	}
	assert.Equal(t, MaxSnapshots, s.Len())
	_, ok := s.Get("key-0")
	assert.False(t, ok, "oldest entries evicted first")
	_, ok = s.Get(fmt.Sprintf("key-%d", MaxSnapshots+9))
	assert.True(t, ok)
}
