package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RevLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProjectionOutput mirrors the data needed by projection workers.
// The orchestrator bridges between core.CoreOutput and this.
type ProjectionOutput struct {
	Sequence       int64
	EventType      string
	AssetKind      *string
	JournalEntries []JournalEntry
	Classes        []ClassRow
	Shares         []ShareRow
	Rewards        []RewardRow
	Debts          []DebtRow
	Claims         []ClaimRow
	Timestamp      int64 // microseconds
}

// JournalEntry is a simplified journal for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
}

// BalanceRow is one account balance, keyed the same way the live projection
// keys it. Used by SyncState.
type BalanceRow struct {
	AccountPath string
	AssetID     uint16
	Balance     int64
}

// ClassRow is the post-event supply state of one share class.
type ClassRow struct {
	AssetKind         string
	TotalSupplyCap    int64
	CirculatingSupply int64
	Burnable          bool
	Version           int64
}

// ShareRow is the post-event balance of one share. Live=false means the
// share was settled away (join or burn) and its rows should be removed.
type ShareRow struct {
	ShareID   uuid.UUID
	AssetKind string
	Balance   int64
	Live      bool
	Version   int64
}

// RewardRow is the post-event accumulator and vault of one reward kind.
// The accumulator is a decimal string; it outgrows any fixed-width integer.
type RewardRow struct {
	AssetKind   string
	RewardKind  string
	Accumulator string
	VaultValue  int64
}

// DebtRow is the post-event reward debt of one share for one reward kind,
// as a signed decimal string.
type DebtRow struct {
	ShareID    uuid.UUID
	AssetKind  string
	RewardKind string
	Debt       string
}

// ClaimRow records one payout made by a claim event.
type ClaimRow struct {
	ShareID    uuid.UUID
	AssetKind  string
	RewardKind string
	Amount     int64
}

// ProjectionWorker updates projection tables from processed events. The
// projection channel is non-blocking with drop; if projections fall behind,
// SyncState at the next restart (or an admin rebuild) catches them up.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	metrics   *observability.Metrics
	lastSeq   int64
	log       zerolog.Logger
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       observability.NewLogger("projection"),
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := pw.processOutput(ctx, output); err != nil {
				pw.log.Warn().Int64("sequence", output.Sequence).Err(err).Msg("projection update failed")
				// Continue — projections are eventually consistent
				// and converge on the next restart
			} else if pw.metrics != nil {
				pw.metrics.ProjectionUpdateDur.WithLabelValues("main").Observe(time.Since(start).Seconds())
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range output.JournalEntries {
		if err := applyJournalToBalances(ctx, tx, j, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	for _, cl := range output.Classes {
		if err := upsertClass(ctx, tx, cl, output.Sequence); err != nil {
			return fmt.Errorf("class projection: %w", err)
		}
	}

	for _, sh := range output.Shares {
		if err := applyShare(ctx, tx, sh, output.Sequence); err != nil {
			return fmt.Errorf("share projection: %w", err)
		}
	}

	for _, rw := range output.Rewards {
		if err := upsertAccumulator(ctx, tx, rw, output.Sequence); err != nil {
			return fmt.Errorf("accumulator projection: %w", err)
		}
	}

	for _, d := range output.Debts {
		if err := upsertDebt(ctx, tx, d, output.Sequence); err != nil {
			return fmt.Errorf("debt projection: %w", err)
		}
	}

	for _, c := range output.Claims {
		if err := insertClaim(ctx, tx, c, output.Sequence, output.Timestamp); err != nil {
			return fmt.Errorf("claim history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// applyJournalToBalances folds one journal entry into the balance projection.
// Sign convention matches the core balance tracker: debit adds, credit
// subtracts.
func applyJournalToBalances(ctx context.Context, tx *sql.Tx, j JournalEntry, sequence int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, j.DebitAccount, j.AssetID, j.Amount, sequence); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, j.CreditAccount, j.AssetID, j.Amount, sequence); err != nil {
		return err
	}

	return nil
}

func upsertClass(ctx context.Context, tx *sql.Tx, cl ClassRow, sequence int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.classes
			(asset_kind, total_supply_cap, circulating_supply, burnable, version, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_kind) DO UPDATE SET
			circulating_supply = EXCLUDED.circulating_supply,
			version = EXCLUDED.version,
			last_sequence = EXCLUDED.last_sequence
	`, cl.AssetKind, cl.TotalSupplyCap, cl.CirculatingSupply, cl.Burnable, cl.Version, sequence)
	return err
}

// applyShare upserts a live share and removes a settled one. Settled shares
// also lose their debt rows; the registry dropped the debt record with them.
func applyShare(ctx context.Context, tx *sql.Tx, sh ShareRow, sequence int64) error {
	if !sh.Live {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM projections.share_index WHERE share_id = $1
		`, sh.ShareID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM projections.share_debts WHERE share_id = $1
		`, sh.ShareID)
		return err
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.share_index (share_id, asset_kind, balance, version, last_sequence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (share_id) DO UPDATE SET
			balance = EXCLUDED.balance,
			version = EXCLUDED.version,
			last_sequence = EXCLUDED.last_sequence
	`, sh.ShareID, sh.AssetKind, sh.Balance, sh.Version, sequence)
	return err
}

func upsertAccumulator(ctx context.Context, tx *sql.Tx, rw RewardRow, sequence int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.accumulators
			(asset_kind, reward_kind, accumulator, vault_balance, last_sequence)
		VALUES ($1, $2, $3::NUMERIC, $4, $5)
		ON CONFLICT (asset_kind, reward_kind) DO UPDATE SET
			accumulator = EXCLUDED.accumulator,
			vault_balance = EXCLUDED.vault_balance,
			last_sequence = EXCLUDED.last_sequence
	`, rw.AssetKind, rw.RewardKind, rw.Accumulator, rw.VaultValue, sequence)
	return err
}

func upsertDebt(ctx context.Context, tx *sql.Tx, d DebtRow, sequence int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.share_debts (share_id, asset_kind, reward_kind, debt, last_sequence)
		VALUES ($1, $2, $3, $4::NUMERIC, $5)
		ON CONFLICT (share_id, reward_kind) DO UPDATE SET
			debt = EXCLUDED.debt,
			last_sequence = EXCLUDED.last_sequence
	`, d.ShareID, d.AssetKind, d.RewardKind, d.Debt, sequence)
	return err
}

// insertClaim appends to the claim history. The (sequence, share_id,
// reward_kind) key makes re-applied outputs harmless.
func insertClaim(ctx context.Context, tx *sql.Tx, c ClaimRow, sequence int64, timestampUs int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.claim_history
			(sequence, share_id, asset_kind, reward_kind, amount, claimed_at)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6::double precision / 1000000.0))
		ON CONFLICT (sequence, share_id, reward_kind) DO NOTHING
	`, sequence, c.ShareID, c.AssetKind, c.RewardKind, c.Amount, timestampUs)
	return err
}

// SyncState rewrites every state-shaped projection table from the core's
// authoritative in-memory state. Called at startup after replay: any outputs
// the projection channel dropped in the previous run are made good here.
// Balances, classes, shares, accumulators, and debts are replaced wholesale;
// claim history is append-only and left alone.
func SyncState(
	ctx context.Context,
	db *sql.DB,
	sequence int64,
	balances []BalanceRow,
	classes []ClassRow,
	shares []ShareRow,
	rewards []RewardRow,
	debts []DebtRow,
) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	truncates := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.classes`,
		`TRUNCATE projections.share_index`,
		`TRUNCATE projections.accumulators`,
		`TRUNCATE projections.share_debts`,
	}
	for _, stmt := range truncates {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
	}

	for _, b := range balances {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
			VALUES ($1, $2, $3, $4)
		`, b.AccountPath, b.AssetID, b.Balance, sequence); err != nil {
			return fmt.Errorf("sync balance %s: %w", b.AccountPath, err)
		}
	}

	for _, cl := range classes {
		if err := upsertClass(ctx, tx, cl, sequence); err != nil {
			return fmt.Errorf("sync class %s: %w", cl.AssetKind, err)
		}
	}

	for _, sh := range shares {
		if err := applyShare(ctx, tx, sh, sequence); err != nil {
			return fmt.Errorf("sync share %s: %w", sh.ShareID, err)
		}
	}

	for _, rw := range rewards {
		if err := upsertAccumulator(ctx, tx, rw, sequence); err != nil {
			return fmt.Errorf("sync accumulator %s/%s: %w", rw.AssetKind, rw.RewardKind, err)
		}
	}

	for _, d := range debts {
		if err := upsertDebt(ctx, tx, d, sequence); err != nil {
			return fmt.Errorf("sync debt %s/%s: %w", d.ShareID, d.RewardKind, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	syncLog := observability.NewLogger("projection")
	syncLog.Info().
		Int64("sequence", sequence).
		Int("classes", len(classes)).
		Int("shares", len(shares)).
		Msg("projections synced")
	return nil
}

// RebuildProjections recomputes the balance projection from the journal.
// State-shaped tables (classes, shares, accumulators, debts) cannot be
// rebuilt from SQL alone — they come back exact via SyncState on the next
// restart. Claim history keeps its rows.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE projections.balances`); err != nil {
		return fmt.Errorf("truncate balances: %w", err)
	}

	// Debits add, credits subtract — same convention as the core tracker.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset_id
	`); err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`); err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	rebuildLog := observability.NewLogger("projection")
	rebuildLog.Info().Msg("balance projection rebuilt from journal")
	return nil
}
