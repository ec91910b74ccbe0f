package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stiliyangoshev97/JNGLZ-sub000/internal/engine"
)

// SnapshotManager stores and loads full engine state snapshots. Snapshots
// are keyed by engine sequence; boot restores the latest one.
type SnapshotManager struct {
	db *sql.DB
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// Save persists a snapshot, replacing any previous snapshot at the same
// sequence.
func (sm *SnapshotManager) Save(ctx context.Context, snap *engine.Snapshot) error {
	state, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO jnglz.snapshots (sequence, state)
		VALUES ($1, $2)
		ON CONFLICT (sequence) DO UPDATE SET state = EXCLUDED.state, created_at = NOW()
	`, snap.Sequence, state)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LoadLatest returns the highest-sequence snapshot, or nil when none exists.
func (sm *SnapshotManager) LoadLatest(ctx context.Context) (*engine.Snapshot, error) {
	var state []byte
	err := sm.db.QueryRowContext(ctx,
		`SELECT state FROM jnglz.snapshots ORDER BY sequence DESC LIMIT 1`,
	).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Prune deletes all but the newest keep snapshots.
func (sm *SnapshotManager) Prune(ctx context.Context, keep int) error {
	_, err := sm.db.ExecContext(ctx, `
		DELETE FROM jnglz.snapshots
		WHERE sequence NOT IN (
			SELECT sequence FROM jnglz.snapshots ORDER BY sequence DESC LIMIT $1
		)
	`, keep)
	return err
}
