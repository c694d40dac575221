package core_test

import (
	"RevLedger/internal/core"
	"RevLedger/internal/event"
	"RevLedger/internal/ledger"
	"testing"
	"time"

	"github.com/google/uuid"
)

// --- Test helpers ---

// newTestCore creates a DeterministicCore with buffered channels and no DB checker.
func newTestCore() (*core.DeterministicCore, chan core.CoreOutput, chan core.CoreOutput) {
	persistChan := make(chan core.CoreOutput, 1024)
	projChan := make(chan core.CoreOutput, 1024)
	c := core.NewDeterministicCore(0, persistChan, projChan, nil, nil)
	return c, persistChan, projChan
}

func mustClassCreated(kind string, cap uint64, burnable bool, seq int64) *event.ShareClassCreated {
	return &event.ShareClassCreated{
		EventID:        uuid.New(),
		Kind:           kind,
		TotalSupplyCap: cap,
		Burnable:       burnable,
		Sequence:       seq,
		Timestamp:      time.UnixMicro(1000000 + seq*1000),
	}
}

func mustMinted(shareID uuid.UUID, kind string, amount uint64, seq int64) *event.SharesMinted {
	return &event.SharesMinted{
		EventID:   uuid.New(),
		ShareID:   shareID,
		Kind:      kind,
		Amount:    amount,
		Sequence:  seq,
		Timestamp: time.UnixMicro(1000000 + seq*1000),
	}
}

func mustSplit(sourceID, newID uuid.UUID, kind string, amount uint64, seq int64) *event.SharesSplit {
	return &event.SharesSplit{
		EventID:       uuid.New(),
		SourceShareID: sourceID,
		NewShareID:    newID,
		Kind:          kind,
		Amount:        amount,
		Sequence:      seq,
		Timestamp:     time.UnixMicro(1000000 + seq*1000),
	}
}

func mustJoined(sourceID, targetID uuid.UUID, kind string, seq int64) *event.SharesJoined {
	return &event.SharesJoined{
		EventID:       uuid.New(),
		SourceShareID: sourceID,
		TargetShareID: targetID,
		Kind:          kind,
		Sequence:      seq,
		Timestamp:     time.UnixMicro(1000000 + seq*1000),
	}
}

func mustBurned(shareID uuid.UUID, kind string, seq int64) *event.SharesBurned {
	return &event.SharesBurned{
		EventID:   uuid.New(),
		ShareID:   shareID,
		Kind:      kind,
		Sequence:  seq,
		Timestamp: time.UnixMicro(1000000 + seq*1000),
	}
}

func mustDeposited(kind, rewardKind string, amount uint64, seq int64) *event.RevenueDeposited {
	return &event.RevenueDeposited{
		EventID:    uuid.New(),
		Kind:       kind,
		RewardKind: rewardKind,
		Amount:     amount,
		Sequence:   seq,
		Timestamp:  time.UnixMicro(1000000 + seq*1000),
	}
}

func mustClaimed(shareID uuid.UUID, kind, rewardKind string, seq int64) *event.RevenueClaimed {
	return &event.RevenueClaimed{
		EventID:    uuid.New(),
		ShareID:    shareID,
		Kind:       kind,
		RewardKind: rewardKind,
		Sequence:   seq,
		Timestamp:  time.UnixMicro(1000000 + seq*1000),
	}
}

func mustBatchClaimed(kind, rewardKind string, shareIDs []uuid.UUID, seq int64) *event.RevenueBatchClaimed {
	return &event.RevenueBatchClaimed{
		EventID:    uuid.New(),
		Kind:       kind,
		RewardKind: rewardKind,
		ShareIDs:   shareIDs,
		Sequence:   seq,
		Timestamp:  time.UnixMicro(1000000 + seq*1000),
	}
}

func drainOutputs(ch chan core.CoreOutput) []core.CoreOutput {
	var outputs []core.CoreOutput
	for {
		select {
		case o := <-ch:
			outputs = append(outputs, o)
		default:
			return outputs
		}
	}
}

// process feeds events in order, failing the test on the first rejection.
func process(t *testing.T, c *core.DeterministicCore, events ...event.Event) {
	t.Helper()
	for _, evt := range events {
		if err := c.ProcessEvent(evt); err != nil {
			t.Fatalf("ProcessEvent(%s) failed: %v", evt.EventType(), err)
		}
	}
}

// claimedAmount extracts the single payout recorded by a claim output.
func claimedAmount(t *testing.T, o core.CoreOutput) uint64 {
	t.Helper()
	if o.Delta == nil || len(o.Delta.Claims) != 1 {
		t.Fatalf("expected 1 claim in delta, got %+v", o.Delta)
	}
	return o.Delta.Claims[0].Amount
}

// ============================================================================
// Test: Class Creation
// ============================================================================

func TestShareClassCreated_EmptyBatchWithEnvelope(t *testing.T) {
	c, persistCh, _ := newTestCore()

	process(t, c, mustClassCreated("ACME", 1_000_000, false, 0))

	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outputs))
	}

	// Class creation moves no units — envelope only
	if len(outputs[0].Batch.Journals) != 0 {
		t.Errorf("expected 0 journals, got %d", len(outputs[0].Batch.Journals))
	}
	if outputs[0].Envelope.EventType != event.EventTypeShareClassCreated {
		t.Errorf("expected ShareClassCreated, got %v", outputs[0].Envelope.EventType)
	}
	if outputs[0].Delta == nil || len(outputs[0].Delta.Classes) != 1 {
		t.Fatal("expected 1 class row in delta")
	}
	if outputs[0].Delta.Classes[0].TotalSupplyCap != 1_000_000 {
		t.Errorf("cap: got %d, want 1000000", outputs[0].Delta.Classes[0].TotalSupplyCap)
	}
}

func TestShareClassCreated_Duplicate_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()

	process(t, c, mustClassCreated("ACME", 1_000_000, false, 0))
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustClassCreated("ACME", 2_000_000, false, 1))
	if err == nil {
		t.Fatal("expected error for duplicate class, got nil")
	}
}

// ============================================================================
// Test: Mint Flow
// ============================================================================

func TestSharesMinted_IssuesUnits(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareID := uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareID, "ACME", 7_500, 1),
	)

	outputs := drainOutputs(persistCh)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}

	mint := outputs[1]
	if len(mint.Batch.Journals) != 1 {
		t.Fatalf("expected 1 journal, got %d", len(mint.Batch.Journals))
	}
	j := mint.Batch.Journals[0]
	if j.JournalType != ledger.JournalTypeMint {
		t.Errorf("expected JournalTypeMint, got %d", j.JournalType)
	}
	if j.Amount != 7_500 {
		t.Errorf("expected amount 7500, got %d", j.Amount)
	}

	if len(mint.Delta.Classes) != 1 || mint.Delta.Classes[0].CirculatingSupply != 7_500 {
		t.Errorf("circulating in delta: got %+v, want 7500", mint.Delta.Classes)
	}
	if len(mint.Delta.Shares) != 1 || mint.Delta.Shares[0].Balance != 7_500 {
		t.Errorf("share balance in delta: got %+v, want 7500", mint.Delta.Shares)
	}
}

func TestSharesMinted_ExceedsCap_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()

	process(t, c,
		mustClassCreated("ACME", 10_000, false, 0),
		mustMinted(uuid.New(), "ACME", 7_500, 1),
	)
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustMinted(uuid.New(), "ACME", 2_501, 2))
	if err == nil {
		t.Fatal("expected error for cap overflow, got nil")
	}

	// The rejected event still consumed its source sequence;
	// the cap still has room for a smaller mint
	process(t, c, mustMinted(uuid.New(), "ACME", 2_500, 3))
}

func TestSharesMinted_UnknownClass_Fails(t *testing.T) {
	c, _, _ := newTestCore()

	err := c.ProcessEvent(mustMinted(uuid.New(), "GHOST", 100, 0))
	if err == nil {
		t.Fatal("expected error for unknown class, got nil")
	}
}

// ============================================================================
// Test: Revenue Distribution
// ============================================================================

func TestRevenueDeposited_NoCirculatingSupply_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()

	process(t, c, mustClassCreated("ACME", 1_000_000, false, 0))
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustDeposited("ACME", "USDC", 100_000, 1))
	if err == nil {
		t.Fatal("expected error for deposit with zero circulating supply, got nil")
	}
}

// TestRevenueDistribution_FullWalk drives the complete accrual story:
// proportional pendings, post-deposit mints starting at zero, and a second
// reward kind accruing independently.
func TestRevenueDistribution_FullWalk(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA, shareB, shareC := uuid.New(), uuid.New(), uuid.New()

	// Cap 1_000_000; A holds 7_500 and B holds 2_500 (circulating 10_000)
	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustMinted(shareB, "ACME", 2_500, 2),
		mustDeposited("ACME", "X", 100_000, 3),
	)
	drainOutputs(persistCh)

	// A claims 3/4 of the X deposit
	process(t, c, mustClaimed(shareA, "ACME", "X", 4))
	outputs := drainOutputs(persistCh)
	if got := claimedAmount(t, outputs[0]); got != 75_000 {
		t.Errorf("claim(X,A): got %d, want 75000", got)
	}
	if outputs[0].Delta.Rewards[0].VaultValue != 25_000 {
		t.Errorf("vault X after claim: got %d, want 25000", outputs[0].Delta.Rewards[0].VaultValue)
	}

	// C is minted after the X deposit: no claim on X
	process(t, c, mustMinted(shareC, "ACME", 10_000, 5))
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustClaimed(shareC, "ACME", "X", 6))
	if err == nil {
		t.Fatal("expected nothing-to-claim error for post-deposit share, got nil")
	}

	// Second kind Y over circulating 20_000
	process(t, c, mustDeposited("ACME", "Y", 100_000, 7))
	drainOutputs(persistCh)

	process(t, c,
		mustClaimed(shareA, "ACME", "Y", 8),
		mustClaimed(shareB, "ACME", "Y", 9),
		mustClaimed(shareC, "ACME", "Y", 10),
	)
	outputs = drainOutputs(persistCh)
	if got := claimedAmount(t, outputs[0]); got != 37_500 {
		t.Errorf("claim(Y,A): got %d, want 37500", got)
	}
	if got := claimedAmount(t, outputs[1]); got != 12_500 {
		t.Errorf("claim(Y,B): got %d, want 12500", got)
	}
	if got := claimedAmount(t, outputs[2]); got != 50_000 {
		t.Errorf("claim(Y,C): got %d, want 50000", got)
	}

	// Y vault fully drained
	if outputs[2].Delta.Rewards[0].VaultValue != 0 {
		t.Errorf("vault Y after claims: got %d, want 0", outputs[2].Delta.Rewards[0].VaultValue)
	}
}

func TestRevenueClaimed_NothingPending_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareID := uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareID, "ACME", 1_000, 1),
	)
	drainOutputs(persistCh)

	// No deposit yet — the reward kind does not even exist
	err := c.ProcessEvent(mustClaimed(shareID, "ACME", "USDC", 2))
	if err == nil {
		t.Fatal("expected error for claim without deposit, got nil")
	}
}

// ============================================================================
// Test: Split Policy
// ============================================================================

func TestSharesSplit_PendingStaysWithSource(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA, shareB := uuid.New(), uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 10_000, 1),
		mustDeposited("ACME", "USDC", 50_000, 2),
		mustSplit(shareA, shareB, "ACME", 4_000, 3),
	)
	outputs := drainOutputs(persistCh)

	split := outputs[3]
	if len(split.Batch.Journals) != 1 || split.Batch.Journals[0].JournalType != ledger.JournalTypeSplit {
		t.Fatalf("expected 1 split journal, got %+v", split.Batch.Journals)
	}
	if len(split.Delta.Shares) != 2 {
		t.Fatalf("expected 2 share rows, got %d", len(split.Delta.Shares))
	}
	if split.Delta.Shares[0].Balance != 6_000 || split.Delta.Shares[1].Balance != 4_000 {
		t.Errorf("post-split balances: got %d/%d, want 6000/4000",
			split.Delta.Shares[0].Balance, split.Delta.Shares[1].Balance)
	}

	// The split-off share inherits none of the pre-split pending
	err := c.ProcessEvent(mustClaimed(shareB, "ACME", "USDC", 4))
	if err == nil {
		t.Fatal("expected nothing-to-claim error for split-off share, got nil")
	}

	// The source keeps the entire deposit claimable at its shrunk balance
	process(t, c, mustClaimed(shareA, "ACME", "USDC", 5))
	outputs = drainOutputs(persistCh)
	if got := claimedAmount(t, outputs[0]); got != 50_000 {
		t.Errorf("claim after split: got %d, want 50000", got)
	}
}

func TestSharesSplit_WholeBalance_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA := uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 1_000, 1),
	)
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustSplit(shareA, uuid.New(), "ACME", 1_000, 2))
	if err == nil {
		t.Fatal("expected error for whole-balance split, got nil")
	}
}

// ============================================================================
// Test: Join Policy
// ============================================================================

func TestSharesJoined_BeforeClaim_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA, shareB := uuid.New(), uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustMinted(shareB, "ACME", 2_500, 2),
		mustDeposited("ACME", "USDC", 100_000, 3),
	)
	drainOutputs(persistCh)

	// B still has 25_000 pending — the join must be refused
	err := c.ProcessEvent(mustJoined(shareB, shareA, "ACME", 4))
	if err == nil {
		t.Fatal("expected error joining a share with pending revenue, got nil")
	}

	// The refused join left B intact and claimable
	process(t, c, mustClaimed(shareB, "ACME", "USDC", 5))
	outputs := drainOutputs(persistCh)
	if got := claimedAmount(t, outputs[0]); got != 25_000 {
		t.Errorf("claim after refused join: got %d, want 25000", got)
	}
}

func TestSharesJoined_AfterClaim_Succeeds(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA, shareB := uuid.New(), uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustMinted(shareB, "ACME", 2_500, 2),
		mustDeposited("ACME", "USDC", 100_000, 3),
		mustClaimed(shareB, "ACME", "USDC", 4),
		mustJoined(shareB, shareA, "ACME", 5),
	)
	outputs := drainOutputs(persistCh)

	join := outputs[5]
	if len(join.Batch.Journals) != 1 || join.Batch.Journals[0].JournalType != ledger.JournalTypeJoin {
		t.Fatalf("expected 1 join journal, got %+v", join.Batch.Journals)
	}
	if join.Batch.Journals[0].Amount != 2_500 {
		t.Errorf("join amount: got %d, want 2500", join.Batch.Journals[0].Amount)
	}

	// Target grew, source is tombstoned
	if join.Delta.Shares[0].Balance != 10_000 {
		t.Errorf("target balance: got %d, want 10000", join.Delta.Shares[0].Balance)
	}
	if join.Delta.Shares[1].Live {
		t.Error("source share should be tombstoned after join")
	}

	// A's own pending rides along unchanged at the bigger balance
	process(t, c, mustClaimed(shareA, "ACME", "USDC", 6))
	outputs = drainOutputs(persistCh)
	if got := claimedAmount(t, outputs[0]); got != 75_000 {
		t.Errorf("claim after join: got %d, want 75000", got)
	}
}

// ============================================================================
// Test: Burn Flow
// ============================================================================

func TestSharesBurned_ReleasesSupply(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA := uuid.New()

	process(t, c,
		mustClassCreated("ACME", 10_000, true, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustBurned(shareA, "ACME", 2),
	)
	outputs := drainOutputs(persistCh)

	burn := outputs[2]
	if burn.Batch.Journals[0].JournalType != ledger.JournalTypeBurn {
		t.Errorf("expected JournalTypeBurn, got %d", burn.Batch.Journals[0].JournalType)
	}
	if burn.Delta.Classes[0].CirculatingSupply != 0 {
		t.Errorf("circulating after burn: got %d, want 0", burn.Delta.Classes[0].CirculatingSupply)
	}

	// The full cap is mintable again
	process(t, c, mustMinted(uuid.New(), "ACME", 10_000, 3))
}

func TestSharesBurned_WithPending_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA := uuid.New()

	process(t, c,
		mustClassCreated("ACME", 10_000, true, 0),
		mustMinted(shareA, "ACME", 5_000, 1),
		mustDeposited("ACME", "USDC", 1_000, 2),
	)
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustBurned(shareA, "ACME", 3))
	if err == nil {
		t.Fatal("expected error burning a share with pending revenue, got nil")
	}

	process(t, c,
		mustClaimed(shareA, "ACME", "USDC", 4),
		mustBurned(shareA, "ACME", 5),
	)
}

func TestSharesBurned_NotBurnable_Fails(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA := uuid.New()

	process(t, c,
		mustClassCreated("ACME", 10_000, false, 0),
		mustMinted(shareA, "ACME", 5_000, 1),
	)
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustBurned(shareA, "ACME", 2))
	if err == nil {
		t.Fatal("expected error for non-burnable class, got nil")
	}
}

// ============================================================================
// Test: Batch Claim
// ============================================================================

func TestRevenueBatchClaimed_OneBalancedBatch(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA, shareB := uuid.New(), uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustMinted(shareB, "ACME", 2_500, 2),
		mustDeposited("ACME", "USDC", 100_000, 3),
		mustBatchClaimed("ACME", "USDC", []uuid.UUID{shareA, shareB}, 4),
	)
	outputs := drainOutputs(persistCh)

	batchClaim := outputs[4]
	if len(batchClaim.Batch.Journals) != 2 {
		t.Fatalf("expected 2 journals, got %d", len(batchClaim.Batch.Journals))
	}
	if len(batchClaim.Delta.Claims) != 2 {
		t.Fatalf("expected 2 claim rows, got %d", len(batchClaim.Delta.Claims))
	}
	if batchClaim.Delta.Claims[0].Amount != 75_000 || batchClaim.Delta.Claims[1].Amount != 25_000 {
		t.Errorf("payouts: got %d/%d, want 75000/25000",
			batchClaim.Delta.Claims[0].Amount, batchClaim.Delta.Claims[1].Amount)
	}
	if batchClaim.Delta.Rewards[0].VaultValue != 0 {
		t.Errorf("vault after batch claim: got %d, want 0", batchClaim.Delta.Rewards[0].VaultValue)
	}
}

func TestRevenueBatchClaimed_SettledShareAbortsAll(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA, shareB := uuid.New(), uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustMinted(shareB, "ACME", 2_500, 2),
		mustDeposited("ACME", "USDC", 100_000, 3),
		mustClaimed(shareB, "ACME", "USDC", 4),
	)
	drainOutputs(persistCh)

	err := c.ProcessEvent(mustBatchClaimed("ACME", "USDC", []uuid.UUID{shareA, shareB}, 5))
	if err == nil {
		t.Fatal("expected error for batch with a settled share, got nil")
	}

	// A's pending survived the aborted batch
	process(t, c, mustClaimed(shareA, "ACME", "USDC", 6))
	outputs := drainOutputs(persistCh)
	if got := claimedAmount(t, outputs[0]); got != 75_000 {
		t.Errorf("claim after aborted batch: got %d, want 75000", got)
	}
}

// ============================================================================
// Test: Idempotency
// ============================================================================

func TestIdempotency_DuplicateMint_Ignored(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA := uuid.New()

	process(t, c, mustClassCreated("ACME", 1_000_000, false, 0))

	mint := mustMinted(shareA, "ACME", 5_000, 1)
	process(t, c, mint)
	drainOutputs(persistCh)

	// Same event again — silently ignored, no second output
	if err := c.ProcessEvent(mint); err != nil {
		t.Fatalf("duplicate mint should not error: %v", err)
	}
	if outputs := drainOutputs(persistCh); len(outputs) != 0 {
		t.Errorf("expected 0 outputs for duplicate, got %d", len(outputs))
	}
}

// ============================================================================
// Test: Sequence Validation
// ============================================================================

func TestSequenceValidation_GapDetected(t *testing.T) {
	c, persistCh, _ := newTestCore()

	process(t, c, mustClassCreated("ACME", 1_000_000, false, 0))
	drainOutputs(persistCh)

	// Skip seq 1, send seq 2 — should detect gap
	err := c.ProcessEvent(mustMinted(uuid.New(), "ACME", 100, 2))
	if err == nil {
		t.Fatal("expected sequence gap error, got nil")
	}
}

func TestSequenceValidation_IndependentPerAssetKind(t *testing.T) {
	c, persistCh, _ := newTestCore()

	// Each kind is its own partition; their sequences interleave freely
	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustClassCreated("GLOBEX", 500_000, false, 0),
		mustMinted(uuid.New(), "ACME", 100, 1),
		mustMinted(uuid.New(), "GLOBEX", 200, 1),
		mustMinted(uuid.New(), "ACME", 300, 2),
	)

	outputs := drainOutputs(persistCh)
	if len(outputs) != 5 {
		t.Fatalf("expected 5 outputs, got %d", len(outputs))
	}
	for i, o := range outputs {
		if o.Envelope.Sequence != int64(i) {
			t.Errorf("output %d: expected sequence %d, got %d", i, i, o.Envelope.Sequence)
		}
	}
}

// ============================================================================
// Test: State Hash Chain
// ============================================================================

func TestStateHashChain_Deterministic(t *testing.T) {
	// Process same events twice — state hashes should be identical
	shareA, shareB := uuid.New(), uuid.New()
	events := []event.Event{
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustMinted(shareB, "ACME", 2_500, 2),
		mustDeposited("ACME", "USDC", 100_000, 3),
		mustClaimed(shareA, "ACME", "USDC", 4),
	}

	processEvents := func() [][32]byte {
		c, persistCh, _ := newTestCore()
		process(t, c, events...)

		outputs := drainOutputs(persistCh)
		hashes := make([][32]byte, len(outputs))
		for i, o := range outputs {
			hashes[i] = o.Envelope.StateHash
		}
		return hashes
	}

	hashes1 := processEvents()
	hashes2 := processEvents()

	if len(hashes1) != len(hashes2) {
		t.Fatalf("different number of outputs: %d vs %d", len(hashes1), len(hashes2))
	}

	for i := range hashes1 {
		if hashes1[i] != hashes2[i] {
			t.Errorf("hash %d differs: %x vs %x", i, hashes1[i], hashes2[i])
		}
	}
}

// ============================================================================
// Test: Snapshot & Restore
// ============================================================================

func TestSnapshotRestore_PendingSurvives(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA, shareB := uuid.New(), uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustMinted(shareB, "ACME", 2_500, 2),
		mustDeposited("ACME", "USDC", 100_000, 3),
	)
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	if snap.Sequence != 3 {
		t.Fatalf("snapshot sequence: got %d, want 3", snap.Sequence)
	}

	restored, persistCh2, _ := newTestCore()
	restored.RestoreFromSnapshot(snap)

	if restored.GetSequence() != 4 {
		t.Errorf("restored sequence: got %d, want 4", restored.GetSequence())
	}
	if restored.GetStateHash() != c.GetStateHash() {
		t.Error("restored state hash differs from original")
	}

	// The restored core pays exactly what the original would have
	process(t, restored, mustClaimed(shareA, "ACME", "USDC", 4))
	outputs := drainOutputs(persistCh2)
	if got := claimedAmount(t, outputs[0]); got != 75_000 {
		t.Errorf("claim on restored core: got %d, want 75000", got)
	}
}

func TestSnapshotRestore_SameEventSameHash(t *testing.T) {
	shareA := uuid.New()
	setup := []event.Event{
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 7_500, 1),
		mustDeposited("ACME", "USDC", 100_000, 2),
	}
	next := mustClaimed(shareA, "ACME", "USDC", 3)

	// Original core processes everything in one life
	c1, persistCh1, _ := newTestCore()
	process(t, c1, setup...)
	drainOutputs(persistCh1)
	process(t, c1, next)
	want := drainOutputs(persistCh1)[0].Envelope.StateHash

	// Second core restarts from a snapshot before the claim
	c2, persistCh2, _ := newTestCore()
	process(t, c2, setup...)
	drainOutputs(persistCh2)
	snap := c2.CreateSnapshotState()

	c3, persistCh3, _ := newTestCore()
	c3.RestoreFromSnapshot(snap)
	process(t, c3, next)
	got := drainOutputs(persistCh3)[0].Envelope.StateHash

	if got != want {
		t.Errorf("hash after restore differs: %x vs %x", got, want)
	}
}

func TestSnapshot_IsolatedFromLaterEvents(t *testing.T) {
	c, persistCh, _ := newTestCore()
	shareA := uuid.New()

	process(t, c,
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 1_000, 1),
	)
	drainOutputs(persistCh)

	snap := c.CreateSnapshotState()
	if snap.Sequence != 1 {
		t.Fatalf("snapshot sequence: got %d, want 1", snap.Sequence)
	}
	balanceRows := len(snap.Balances)

	// The snapshot is handed to a persister that may still be writing it
	// while the core keeps applying events, so it must not alias live state.
	process(t, c,
		mustMinted(uuid.New(), "ACME", 500, 2),
		mustDeposited("ACME", "USDC", 100_000, 3),
	)
	drainOutputs(persistCh)

	if len(snap.Shares) != 1 {
		t.Fatalf("captured shares: got %d, want 1", len(snap.Shares))
	}
	if snap.Shares[0].Balance != 1_000 {
		t.Errorf("captured share balance: got %d, want 1000", snap.Shares[0].Balance)
	}
	if snap.Classes[0].CirculatingSupply != 1_000 {
		t.Errorf("captured circulating supply: got %d, want 1000", snap.Classes[0].CirculatingSupply)
	}
	if got := len(snap.Balances); got != balanceRows {
		t.Errorf("captured balance rows changed: got %d, want %d", got, balanceRows)
	}
	if got := snap.SequenceState["asset:ACME"]; got != 2 {
		t.Errorf("captured partition sequence: got %d, want 2", got)
	}
}

// ============================================================================
// Test: Envelope Integrity
// ============================================================================

func TestEnvelope_HasCorrectFields(t *testing.T) {
	c, persistCh, _ := newTestCore()

	create := mustClassCreated("ACME", 1_000_000, false, 0)
	process(t, c, create)

	outputs := drainOutputs(persistCh)
	env := outputs[0].Envelope

	if env.Sequence != 0 {
		t.Errorf("expected sequence 0, got %d", env.Sequence)
	}
	if env.IdempotencyKey != create.IdempotencyKey() {
		t.Errorf("idempotency key mismatch: %s vs %s", env.IdempotencyKey, create.IdempotencyKey())
	}
	if env.AssetKind == nil || *env.AssetKind != "ACME" {
		t.Errorf("expected asset kind ACME, got %v", env.AssetKind)
	}
	if !env.Timestamp.Equal(create.Timestamp) {
		t.Errorf("timestamp mismatch: %v vs %v", env.Timestamp, create.Timestamp)
	}
	if env.StateHash == ([32]byte{}) {
		t.Error("state hash should not be zero")
	}
}

// ============================================================================
// Test: Projection Channel (non-blocking drop)
// ============================================================================

func TestProjectionChannel_DropsOnFull(t *testing.T) {
	persistCh := make(chan core.CoreOutput, 1024)
	projCh := make(chan core.CoreOutput, 1) // Tiny buffer — will fill up
	c := core.NewDeterministicCore(0, persistCh, projCh, nil, nil)

	process(t, c, mustClassCreated("ACME", 1_000_000, false, 0))
	for i := int64(1); i <= 5; i++ {
		process(t, c, mustMinted(uuid.New(), "ACME", 100, i))
	}

	// All 6 should land on the persist channel (projection drops are silent)
	persistOutputs := drainOutputs(persistCh)
	if len(persistOutputs) != 6 {
		t.Errorf("expected 6 persist outputs, got %d", len(persistOutputs))
	}
}

// ============================================================================
// Test: Replay Mode (no emission, same state)
// ============================================================================

func TestReplayMode_AppliesStateWithoutEmitting(t *testing.T) {
	shareA := uuid.New()
	events := []event.Event{
		mustClassCreated("ACME", 1_000_000, false, 0),
		mustMinted(shareA, "ACME", 10_000, 1),
		mustDeposited("ACME", "USD", 100_000, 2),
	}

	// Reference run: normal processing.
	ref, refPersist, _ := newTestCore()
	process(t, ref, events...)
	drainOutputs(refPersist)

	// Replay run: same events with replay mode on.
	replayed, persistCh, projCh := newTestCore()
	replayed.SetReplayMode(true)
	process(t, replayed, events...)
	replayed.SetReplayMode(false)

	if got := len(drainOutputs(persistCh)); got != 0 {
		t.Errorf("replay emitted %d persist outputs, want 0", got)
	}
	if got := len(drainOutputs(projCh)); got != 0 {
		t.Errorf("replay emitted %d projection outputs, want 0", got)
	}

	if replayed.GetSequence() != ref.GetSequence() {
		t.Errorf("sequence after replay: got %d, want %d", replayed.GetSequence(), ref.GetSequence())
	}
	if replayed.GetStateHash() != ref.GetStateHash() {
		t.Error("replayed state hash differs from live processing")
	}

	// Live processing resumes and emits normally.
	process(t, replayed, mustClaimed(shareA, "ACME", "USD", 3))
	outputs := drainOutputs(persistCh)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output after replay mode off, got %d", len(outputs))
	}
	if got := claimedAmount(t, outputs[0]); got != 100_000 {
		t.Errorf("claim after replay: got %d, want 100000", got)
	}
}

func TestReplayMode_LRUStillDedupes(t *testing.T) {
	c, persistCh, _ := newTestCore()
	c.SetReplayMode(true)

	create := mustClassCreated("ACME", 1_000_000, false, 0)
	process(t, c, create)

	// Same event again: the LRU catches it even without the Postgres tier.
	if err := c.ProcessEvent(create); err != nil {
		t.Fatalf("duplicate during replay should be skipped, got error: %v", err)
	}
	if c.GetSequence() != 1 {
		t.Errorf("duplicate advanced sequence: got %d, want 1", c.GetSequence())
	}
	if got := len(drainOutputs(persistCh)); got != 0 {
		t.Errorf("replay emitted %d outputs, want 0", got)
	}
}
