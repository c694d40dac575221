package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager handles creating and loading state snapshots for recovery.
// A snapshot carries the complete deterministic state: ledger balances, share
// classes and live shares, per-class revenue registries (accumulators, vaults,
// share debt), sequence counters, recent idempotency keys, and the last
// state hash.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData contains the full in-memory state at a point in time.
// Assets lists asset names in registration order: numeric asset IDs are
// assigned first-use, so restore must replay the registrations before
// anything parses an account path, or journal asset_ids drift on restart.
type SnapshotData struct {
	Sequence        int64            `json:"sequence"`
	StateHash       []byte           `json:"state_hash"`
	Assets          []string         `json:"assets"`
	Balances        map[string]int64 `json:"balances"` // AccountPath -> balance
	Classes         []ClassSnapshot  `json:"classes"`
	Shares          []ShareSnapshot  `json:"shares"`
	Registries      []RegistrySnap   `json:"registries"`
	SequenceState   map[string]int64 `json:"sequence_state"`   // partition -> next expected seq
	IdempotencyKeys []string         `json:"idempotency_keys"` // Recent keys for LRU warming
	CreatedAt       time.Time        `json:"created_at"`
}

// ClassSnapshot is a serializable share class.
type ClassSnapshot struct {
	AssetKind         string `json:"asset_kind"`
	TotalSupplyCap    uint64 `json:"total_supply_cap"`
	CirculatingSupply uint64 `json:"circulating_supply"`
	Burnable          bool   `json:"burnable"`
	Version           int64  `json:"version"`
}

// ShareSnapshot is a serializable live share balance.
type ShareSnapshot struct {
	ShareID   string `json:"share_id"`
	AssetKind string `json:"asset_kind"`
	Balance   uint64 `json:"balance"`
	Version   int64  `json:"version"`
}

// RegistrySnap is a serializable per-class revenue registry. RewardKinds
// preserves registration order; restore replays it so the rebuilt registry
// iterates kinds in the same order as the original.
type RegistrySnap struct {
	AssetKind   string           `json:"asset_kind"`
	RewardKinds []RewardKindSnap `json:"reward_kinds"`
	Debts       []ShareDebtSnap  `json:"debts"`
}

// RewardKindSnap carries one reward kind's scaled accumulator (decimal string,
// it can exceed int64) and undistributed vault balance.
type RewardKindSnap struct {
	RewardKind  string `json:"reward_kind"`
	Accumulator string `json:"accumulator"`
	VaultValue  uint64 `json:"vault_value"`
}

// ShareDebtSnap carries one share's debt entries, sorted by reward kind.
type ShareDebtSnap struct {
	ShareID string          `json:"share_id"`
	Entries []DebtEntrySnap `json:"entries"`
}

// DebtEntrySnap is one signed debt value rendered in decimal.
type DebtEntrySnap struct {
	RewardKind string `json:"reward_kind"`
	Debt       string `json:"debt"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to Postgres. Snapshots are written
// unverified; the caller flips the flag once the state hash checks out.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	sizeBytes := len(data)
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, sizeBytes, snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot. On warm restart
// the engine restores from it and replays events from snapshot.sequence+1.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No snapshot — cold start
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay. Used for warm
// restart (replay from snapshot) and cold restart (replay all).
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, asset_kind, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.AssetKind,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil // Empty event log
	}
	return seq.Int64, nil
}
