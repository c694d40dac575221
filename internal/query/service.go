package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound marks lookups whose subject does not exist. Callers unwrap it
// to distinguish missing rows from query failures.
var ErrNotFound = errors.New("not found")

// QueryService provides read-only access to projection tables. All responses
// include as_of_sequence so callers can reason about freshness: the value is
// the last event sequence the projection worker has applied.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetClass returns one share class with its per-kind reward state.
func (qs *QueryService) GetClass(ctx context.Context, assetKind string) (*ClassResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &ClassResponse{AssetKind: assetKind, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT total_supply_cap, circulating_supply, burnable, version
		FROM projections.classes
		WHERE asset_kind = $1
	`, assetKind).Scan(&resp.TotalSupplyCap, &resp.CirculatingSupply, &resp.Burnable, &resp.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("share class %s: %w", assetKind, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT reward_kind, accumulator::TEXT, vault_balance
		FROM projections.accumulators
		WHERE asset_kind = $1
		ORDER BY reward_kind
	`, assetKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r RewardSummary
		if err := rows.Scan(&r.RewardKind, &r.Accumulator, &r.VaultBalance); err != nil {
			return nil, err
		}
		resp.Rewards = append(resp.Rewards, r)
	}

	return resp, rows.Err()
}

// ListClasses returns every share class, without reward detail.
func (qs *QueryService) ListClasses(ctx context.Context) ([]ClassResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT asset_kind, total_supply_cap, circulating_supply, burnable, version
		FROM projections.classes
		ORDER BY asset_kind
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []ClassResponse
	for rows.Next() {
		var c ClassResponse
		c.AsOfSequence = asOfSeq
		if err := rows.Scan(&c.AssetKind, &c.TotalSupplyCap, &c.CirculatingSupply, &c.Burnable, &c.Version); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}

	return classes, rows.Err()
}

// GetShare returns one live share with claimable amounts for every reward
// kind registered on its class. A missing debt row means the share has never
// been rebased for that kind, which the registry treats as zero debt.
func (qs *QueryService) GetShare(ctx context.Context, shareID uuid.UUID) (*ShareResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &ShareResponse{ShareID: shareID, AsOfSequence: asOfSeq}
	err = qs.db.QueryRowContext(ctx, `
		SELECT asset_kind, balance, version
		FROM projections.share_index
		WHERE share_id = $1
	`, shareID).Scan(&resp.AssetKind, &resp.Balance, &resp.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("share %s: %w", shareID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT a.reward_kind, a.accumulator::TEXT, COALESCE(d.debt, 0)::TEXT
		FROM projections.accumulators a
		LEFT JOIN projections.share_debts d
			ON d.share_id = $1 AND d.reward_kind = a.reward_kind
		WHERE a.asset_kind = $2
		ORDER BY a.reward_kind
	`, shareID, resp.AssetKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rewardKind, accumulator, debt string
		if err := rows.Scan(&rewardKind, &accumulator, &debt); err != nil {
			return nil, err
		}
		amount, err := computePending(accumulator, resp.Balance, debt)
		if err != nil {
			return nil, fmt.Errorf("pending %s/%s: %w", shareID, rewardKind, err)
		}
		resp.Pending = append(resp.Pending, PendingReward{RewardKind: rewardKind, Amount: amount})
	}

	return resp, rows.Err()
}

// ListShares returns live shares of a class, without pending detail.
func (qs *QueryService) ListShares(ctx context.Context, assetKind string, limit int) ([]ShareResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT share_id, balance, version
		FROM projections.share_index
		WHERE asset_kind = $1
		ORDER BY share_id
		LIMIT $2
	`, assetKind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []ShareResponse
	for rows.Next() {
		var s ShareResponse
		s.AssetKind = assetKind
		s.AsOfSequence = asOfSeq
		if err := rows.Scan(&s.ShareID, &s.Balance, &s.Version); err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}

	return shares, rows.Err()
}

// GetClaimHistory returns settled payouts for a share, newest first.
// Supports cursor-based pagination via afterSequence.
func (qs *QueryService) GetClaimHistory(
	ctx context.Context,
	shareID uuid.UUID,
	rewardKind *string,
	limit int,
	afterSequence *int64,
) ([]ClaimHistoryResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT asset_kind, reward_kind, amount, sequence, claimed_at
		FROM projections.claim_history
		WHERE share_id = $1
	`
	args := []interface{}{shareID}
	argIdx := 2

	if rewardKind != nil {
		q += fmt.Sprintf(" AND reward_kind = $%d", argIdx)
		args = append(args, *rewardKind)
		argIdx++
	}

	if afterSequence != nil {
		q += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	q += " ORDER BY sequence DESC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []ClaimHistoryResponse
	for rows.Next() {
		var h ClaimHistoryResponse
		var claimedAt time.Time
		h.ShareID = shareID
		h.AsOfSequence = asOfSeq
		if err := rows.Scan(&h.AssetKind, &h.RewardKind, &h.Amount, &h.Sequence, &claimedAt); err != nil {
			return nil, err
		}
		h.ClaimedAtUs = claimedAt.UnixMicro()
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetJournalHistory returns journal entries touching a share's accounts,
// newest first, with cursor-based pagination.
func (qs *QueryService) GetJournalHistory(
	ctx context.Context,
	shareID uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("share:%s:%%", shareID)

	q := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		q += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	q += " ORDER BY sequence DESC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.TimestampUs,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity and the zero-sum invariant.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Each event's prev_hash must equal the previous event's state_hash
	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Double entry means every asset's balances sum to zero
	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

// Freshness returns how long ago the projection watermark last advanced.
func (qs *QueryService) Freshness(ctx context.Context) (time.Duration, error) {
	var age float64
	err := qs.db.QueryRowContext(ctx, `
		SELECT EXTRACT(EPOCH FROM NOW() - updated_at)
		FROM projections.watermark
		WHERE worker_id = 'main'
	`).Scan(&age)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return time.Duration(age * float64(time.Second)), nil
}
