// Package cache holds the two cache tiers: a durable SQLite-backed event
// cache that survives restarts, and an in-memory snapshot store that
// memoizes day-level query results.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"daybook/src-client/event"
)

// SchemaVersion guards the durable payload shape; rows written by an
// older client are discarded on load.
const SchemaVersion = 3

// MaxAge is how long a durable row stays servable before it is treated
// as stale.
const MaxAge = 24 * time.Hour

// CachedEvent is one durable row: a confirmed entity serialized as JSON,
// keyed by user and event id.
type CachedEvent struct {
	bun.BaseModel `bun:"table:cached_events"`

	UserID   string `bun:"user_id,pk"`
	EventID  string `bun:"event_id,pk"`
	Payload  []byte `bun:"payload,notnull"`
	Version  int    `bun:"version,notnull"`
	CachedAt int64  `bun:"cached_at,notnull"`
}

type Durable struct {
	db   *bun.DB
	user string
}

func NewDurable(ctx context.Context, db *bun.DB, user string) (*Durable, error) {
	if _, err := db.NewCreateTable().
		Model((*CachedEvent)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("cache.NewDurable: can't create schema: %w", err)
	}
	return &Durable{db: db, user: user}, nil
}

// Save replaces the user's cached rows with the confirmed subset of
// events. Optimistic and virtual entities are never persisted.
func (d *Durable) Save(ctx context.Context, events []*event.Event) error {
	rows := make([]CachedEvent, 0, len(events))
	now := time.Now().Unix()
	for _, ev := range events {
		if ev == nil || !ev.Confirmed || ev.Virtual {
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("Durable.Save: can't marshal event: %w", err)
		}
		rows = append(rows, CachedEvent{
			UserID:   d.user,
			EventID:  ev.ID,
			Payload:  payload,
			Version:  SchemaVersion,
			CachedAt: now,
		})
	}

	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*CachedEvent)(nil)).
			Where("user_id = ?", d.user).
			Exec(ctx); err != nil {
			return fmt.Errorf("Durable.Save: can't clear old rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().
			Model(&rows).
			Exec(ctx); err != nil {
			return fmt.Errorf("Durable.Save: can't insert rows: %w", err)
		}
		return nil
	})
}

// Load returns the user's cached entities, dropping rows that are stale
// or were written with a different schema version. Rows belonging to
// other users are never returned.
func (d *Durable) Load(ctx context.Context) ([]*event.Event, error) {
	var rows []CachedEvent
	if err := d.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", d.user).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("Durable.Load: can't query rows: %w", err)
	}

	cutoff := time.Now().Add(-MaxAge).Unix()
	out := make([]*event.Event, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if row.Version != SchemaVersion || row.CachedAt < cutoff {
			dropped++
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(row.Payload, &ev); err != nil {
			dropped++
			continue
		}
		out = append(out, &ev)
	}
	if dropped > 0 {
		slog.Debug("durable cache dropped unusable rows", "count", dropped)
		if err := d.pruneStale(ctx, cutoff); err != nil {
			slog.Warn("can't prune stale cache rows", "error", err)
		}
	}
	return out, nil
}

func (d *Durable) pruneStale(ctx context.Context, cutoff int64) error {
	_, err := d.db.NewDelete().
		Model((*CachedEvent)(nil)).
		Where("user_id = ?", d.user).
		Where("version != ? OR cached_at < ?", SchemaVersion, cutoff).
		Exec(ctx)
	return err
}

// Add writes or replaces one confirmed entity's row.
func (d *Durable) Add(ctx context.Context, ev *event.Event) error {
	if ev == nil || !ev.Confirmed || ev.Virtual {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("Durable.Add: can't marshal event: %w", err)
	}
	row := CachedEvent{
		UserID:   d.user,
		EventID:  ev.ID,
		Payload:  payload,
		Version:  SchemaVersion,
		CachedAt: time.Now().Unix(),
	}
	if _, err := d.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id, event_id) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("version = EXCLUDED.version").
		Set("cached_at = EXCLUDED.cached_at").
		Exec(ctx); err != nil {
		return fmt.Errorf("Durable.Add: can't upsert row: %w", err)
	}
	return nil
}

// Remove deletes one entity's row, if present.
func (d *Durable) Remove(ctx context.Context, eventID string) error {
	if _, err := d.db.NewDelete().
		Model((*CachedEvent)(nil)).
		Where("user_id = ?", d.user).
		Where("event_id = ?", eventID).
		Exec(ctx); err != nil {
		return fmt.Errorf("Durable.Remove: can't delete row: %w", err)
	}
	return nil
}

// Clear drops every row belonging to the user.
func (d *Durable) Clear(ctx context.Context) error {
	if _, err := d.db.NewDelete().
		Model((*CachedEvent)(nil)).
		Where("user_id = ?", d.user).
		Exec(ctx); err != nil {
		return fmt.Errorf("Durable.Clear: can't delete rows: %w", err)
	}
	return nil
}
