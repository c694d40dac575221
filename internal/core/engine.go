package core

import (
	"RevLedger/internal/event"
	"RevLedger/internal/ledger"
	"RevLedger/internal/observability"
	"RevLedger/internal/registry"
	"RevLedger/internal/state"
	"fmt"
	"math/big"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Journal amounts and tracker balances are int64; unsigned domain
// quantities must stay inside that range.
const maxJournalAmount = uint64(1<<63 - 1)

// DeterministicCore is the single-threaded event processor
type DeterministicCore struct {
	// sequence is owned by the processing goroutine; seqShared mirrors it
	// for GetSequence callers on other goroutines (status, snapshot cadence).
	sequence  int64
	seqShared atomic.Int64

	hasher            *StateHasher
	balanceTracker    *ledger.BalanceTracker
	assets            *ledger.AssetRegistry
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	shareManager      *state.ShareManager
	registries        map[string]*registry.RevenueRegistry // asset kind -> registry
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	// replaying suppresses output emission and the Postgres idempotency
	// tier while the event log is being reapplied at startup.
	replaying bool

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

type CoreOutput struct {
	Envelope *event.EventEnvelope
	Event    event.Event
	Batch    *ledger.Batch
	Delta    *StateDelta
}

func NewDeterministicCore(
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *DeterministicCore {
	balanceTracker := ledger.NewBalanceTracker()
	validator := ledger.NewInvariantValidator(balanceTracker)
	journalGen := ledger.NewJournalGenerator(startSequence, balanceTracker)

	// Initialize with capacity of 1M entries (configurable)
	idempotencyChecker := NewIdempotencyChecker(1_000_000, dbChecker)
	sequenceValidator := NewSequenceValidator()

	c := &DeterministicCore{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		balanceTracker:    balanceTracker,
		assets:            balanceTracker.Assets(),
		journalGen:        journalGen,
		validator:         validator,
		shareManager:      state.NewShareManager(),
		registries:        make(map[string]*registry.RevenueRegistry),
		idempotency:       idempotencyChecker,
		sequenceValidator: sequenceValidator,
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
	c.seqShared.Store(startSequence)
	return c
}

// ProcessEvent is the main processing pipeline
func (c *DeterministicCore) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier; LRU only during replay — the
	// Postgres tier would flag every replayed event as a duplicate)
	var isDuplicate bool
	if c.replaying {
		isDuplicate = c.idempotency.IsDuplicateLocal(eventType, idempotencyKey)
	} else {
		isDuplicate = c.idempotency.IsDuplicate(eventType, idempotencyKey)
	}

	// Step 2: Sequence validation
	partition := c.getPartition(evt)
	sourceSequence := evt.SourceSequence()

	if err := c.sequenceValidator.ValidateSequence(partition, sourceSequence, idempotencyKey, isDuplicate); err != nil {
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	// If duplicate, skip processing
	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Event dispatch — composite operations mutate the share/registry
	// state and return the matching journal batch plus a state delta.
	batch, delta, err := c.dispatchEvent(evt)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "rejected").Inc()
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: Validate and apply the batch. Empty batches (state-only events
	// like ShareClassCreated) still get an envelope in the event log.
	if len(batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}

		if err := c.balanceTracker.ApplyBatch(batch); err != nil {
			return fmt.Errorf("apply batch failed: %w", err)
		}
	}

	// Step 5: Compute state digest and hash
	stateDigest := c.computeStateDigest(batch, delta)
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	// Step 6: Create envelope
	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		AssetKind:      evt.AssetKind(),
		Timestamp:      c.getEventTimestamp(evt),
		SourceSequence: sourceSequence,
		StateHash:      stateHash,
		PrevHash:       c.hasher.GetPrevHash(),
	}

	output := CoreOutput{
		Envelope: envelope,
		Event:    evt,
		Batch:    batch,
		Delta:    delta,
	}

	c.sequence++
	c.seqShared.Store(c.sequence)

	// Step 7: Post-checks
	if err := c.postCheckInvariants(evt); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 8: Emit output. Persistence gets a BLOCKING send (backpressure —
	// the core stalls until the persistence worker drains, so no event is
	// lost). Projections get a NON-BLOCKING send with silent drop; they
	// rebuild from the event log if they fall behind. Replayed events are
	// already persisted, so replay emits nothing.
	if !c.replaying {
		c.persistChan <- output

		select {
		case c.projectionChan <- output:
		default:
			// Silently dropped — projection will catch up via rebuild
		}
	}

	// Step 9: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	// Record metrics
	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}

	return nil
}

// getPartition determines partition key for sequence validation
func (c *DeterministicCore) getPartition(evt event.Event) string {
	if kind := evt.AssetKind(); kind != nil {
		return fmt.Sprintf("asset:%s", *kind)
	}
	return "global"
}

// getEventTimestamp extracts the versioned timestamp from the event.
// The core MUST NOT call time.Now(); all timestamps are versioned inputs.
func (c *DeterministicCore) getEventTimestamp(evt event.Event) time.Time {
	switch e := evt.(type) {
	case *event.ShareClassCreated:
		return e.Timestamp
	case *event.SharesMinted:
		return e.Timestamp
	case *event.SharesSplit:
		return e.Timestamp
	case *event.SharesJoined:
		return e.Timestamp
	case *event.SharesBurned:
		return e.Timestamp
	case *event.RevenueDeposited:
		return e.Timestamp
	case *event.RevenueClaimed:
		return e.Timestamp
	case *event.RevenueBatchClaimed:
		return e.Timestamp
	default:
		panic(fmt.Sprintf("FATAL: getEventTimestamp called with unhandled event type %T — deterministic core cannot use wall-clock time", evt))
	}
}

// computeStateDigest creates canonical bytes for the state hash: the
// balances of every account the batch touched, then the delta rows in the
// order the handler built them. Accumulators and debts live outside the
// account tree, so the delta section is what binds them into the chain.
func (c *DeterministicCore) computeStateDigest(batch *ledger.Batch, delta *StateDelta) []byte {
	// Collect all affected accounts
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	// Sort accounts deterministically
	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return c.assets.PathFor(accounts[i]) < c.assets.PathFor(accounts[j])
	})

	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := c.balanceTracker.GetBalance(key)
		digest = appendDigestString(digest, c.assets.PathFor(key))
		digest = appendInt64LE(digest, balance)
	}

	if delta == nil {
		return digest
	}

	for _, cs := range delta.Classes {
		digest = appendDigestString(digest, "class:"+cs.Kind)
		digest = appendUint64LE(digest, cs.TotalSupplyCap)
		digest = appendUint64LE(digest, cs.CirculatingSupply)
		digest = appendBool(digest, cs.Burnable)
	}

	for _, ss := range delta.Shares {
		digest = appendDigestString(digest, "share:"+ss.ShareID.String()+":"+ss.Kind)
		digest = appendUint64LE(digest, ss.Balance)
		digest = appendBool(digest, ss.Live)
	}

	for _, rs := range delta.Rewards {
		digest = appendDigestString(digest, "reward:"+rs.Kind+":"+rs.RewardKind)
		digest = appendDigestString(digest, rs.Accumulator)
		digest = appendUint64LE(digest, rs.VaultValue)
	}

	for _, ds := range delta.Debts {
		digest = appendDigestString(digest, "debt:"+ds.ShareID.String()+":"+ds.Kind+":"+ds.RewardKind)
		digest = appendDigestString(digest, ds.Debt)
	}

	for _, cl := range delta.Claims {
		digest = appendDigestString(digest, "claim:"+cl.ShareID.String()+":"+cl.Kind+":"+cl.RewardKind)
		digest = appendUint64LE(digest, cl.Amount)
	}

	return digest
}

func appendDigestString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendInt64LE(buf []byte, v int64) []byte {
	return appendUint64LE(buf, uint64(v))
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates cross-module invariants after an event is
// fully applied. A violation here means the share registry, the revenue
// registry, and the journal ledger have drifted apart — unrecoverable.
func (c *DeterministicCore) postCheckInvariants(evt event.Event) error {
	switch e := evt.(type) {
	case *event.SharesMinted:
		if err := c.validateSupplySync(e.Kind); err != nil {
			return err
		}
	case *event.SharesSplit:
		if err := c.validateSupplySync(e.Kind); err != nil {
			return err
		}
	case *event.SharesJoined:
		if err := c.validateSupplySync(e.Kind); err != nil {
			return err
		}
	case *event.SharesBurned:
		if err := c.validateSupplySync(e.Kind); err != nil {
			return err
		}
	case *event.RevenueDeposited:
		if err := c.validateVaultSync(e.Kind, e.RewardKind); err != nil {
			return err
		}
	case *event.RevenueClaimed:
		if err := c.validateVaultSync(e.Kind, e.RewardKind); err != nil {
			return err
		}
	case *event.RevenueBatchClaimed:
		if err := c.validateVaultSync(e.Kind, e.RewardKind); err != nil {
			return err
		}
	}

	// Periodic global balance check: every journal is a transfer, so the
	// sum over all accounts must stay exactly zero per asset.
	if c.sequence > 0 && c.sequence%1000 == 0 {
		totals := c.balanceTracker.ComputeGlobalBalance()
		for assetID, total := range totals {
			if total != 0 {
				return fmt.Errorf("global balance non-zero for asset %d: %d (at seq %d)",
					assetID, total, c.sequence)
			}
		}
	}

	return nil
}

// validateSupplySync checks that a class's circulating supply equals the
// sum of its live share balances AND the issued units in the ledger.
func (c *DeterministicCore) validateSupplySync(assetKind string) error {
	class, ok := c.shareManager.GetClass(assetKind)
	if !ok {
		return fmt.Errorf("supply check: unknown class %s", assetKind)
	}

	var sum uint64
	for _, share := range c.shareManager.SharesOfClass(assetKind) {
		sum += share.Balance
	}
	if sum != class.CirculatingSupply {
		return fmt.Errorf("circulating supply drift for %s: class=%d, share sum=%d",
			assetKind, class.CirculatingSupply, sum)
	}

	kindID, ok := c.assets.Lookup(assetKind)
	if !ok {
		// No units issued yet
		return nil
	}
	if issued := c.balanceTracker.GetIssuedSupply(assetKind, kindID); issued != int64(class.CirculatingSupply) {
		return fmt.Errorf("issued supply drift for %s: ledger=%d, class=%d",
			assetKind, issued, class.CirculatingSupply)
	}

	return nil
}

// validateVaultSync checks that the registry's vault value matches the
// ledger's vault account balance for one reward kind.
func (c *DeterministicCore) validateVaultSync(assetKind, rewardKind string) error {
	reg, ok := c.registries[assetKind]
	if !ok {
		return fmt.Errorf("vault check: unknown class %s", assetKind)
	}
	rewardID, ok := c.assets.Lookup(rewardKind)
	if !ok {
		return fmt.Errorf("vault check: unregistered reward asset %s", rewardKind)
	}

	ledgerVault := c.balanceTracker.GetVaultBalance(assetKind, rewardID)
	if regVault := reg.VaultValue(rewardKind); int64(regVault) != ledgerVault {
		return fmt.Errorf("vault drift for %s/%s: registry=%d, ledger=%d",
			assetKind, rewardKind, regVault, ledgerVault)
	}

	return nil
}

// handleShareClassCreated registers a new fixed-supply class together with
// its (initially empty) revenue registry. No units move, so the batch is
// empty — the envelope alone records the creation.
func (c *DeterministicCore) handleShareClassCreated(evt *event.ShareClassCreated) (*ledger.Batch, *StateDelta, error) {
	if evt.TotalSupplyCap > maxJournalAmount {
		return nil, nil, fmt.Errorf("supply cap %d exceeds ledger range", evt.TotalSupplyCap)
	}

	class, err := c.shareManager.CreateClass(evt.Kind, evt.TotalSupplyCap, evt.Burnable)
	if err != nil {
		return nil, nil, fmt.Errorf("class creation rejected: %w", err)
	}

	c.registries[evt.Kind] = registry.NewRevenueRegistry(evt.Kind)

	// Claim the asset ID slot now so it follows event order, not first-mint order
	c.assets.Register(evt.Kind)

	batch := &ledger.Batch{
		BatchID:   uuid.New(),
		EventRef:  evt.IdempotencyKey(),
		Sequence:  c.sequence,
		Timestamp: evt.Timestamp.UnixMicro(),
		Journals:  []ledger.Journal{},
	}

	delta := &StateDelta{
		Classes: []ClassState{classState(class)},
	}

	return batch, delta, nil
}

// handleSharesMinted issues a new share. Order matters: the physical mint
// happens first, then the registry fixes the debt baseline at the
// post-mint balance so the share starts with zero pending.
func (c *DeterministicCore) handleSharesMinted(evt *event.SharesMinted) (*ledger.Batch, *StateDelta, error) {
	reg, ok := c.registries[evt.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown share class: %s", evt.Kind)
	}

	share, err := c.shareManager.Mint(evt.Kind, evt.ShareID, evt.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("mint rejected: %w", err)
	}

	reg.Create(share.ShareID, share.Balance)

	batch, err := c.journalGen.GenerateMint(share.ShareID, evt.Kind, evt.Amount, evt.IdempotencyKey(), evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, nil, err
	}

	class, _ := c.shareManager.GetClass(evt.Kind)
	delta := &StateDelta{
		Classes: []ClassState{classState(class)},
		Shares:  []ShareState{shareState(share)},
		Debts:   debtStates(reg, share.ShareID),
	}

	return batch, delta, nil
}

// handleSharesSplit carves part of a share into a new share. The registry
// rebases the source's debt BEFORE the physical move so its pending
// survives unchanged, then the new share's baseline is fixed at its
// post-split balance — the carved-off portion inherits no pending.
func (c *DeterministicCore) handleSharesSplit(evt *event.SharesSplit) (*ledger.Batch, *StateDelta, error) {
	reg, ok := c.registries[evt.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown share class: %s", evt.Kind)
	}

	// Validate the physical side first so a refused split leaves the
	// registry untouched.
	if err := c.shareManager.ValidateSplit(evt.SourceShareID, evt.NewShareID, evt.Amount); err != nil {
		return nil, nil, fmt.Errorf("split rejected: %w", err)
	}

	source, ok := c.shareManager.GetShare(evt.SourceShareID)
	if !ok || source.AssetKind != evt.Kind {
		return nil, nil, fmt.Errorf("split rejected: share %s is not of class %s", evt.SourceShareID, evt.Kind)
	}

	reg.Decrease(evt.SourceShareID, source.Balance, evt.Amount)

	newShare, err := c.shareManager.Split(evt.SourceShareID, evt.NewShareID, evt.Amount)
	if err != nil {
		return nil, nil, fmt.Errorf("split rejected: %w", err)
	}

	reg.Create(evt.NewShareID, newShare.Balance)

	batch, err := c.journalGen.GenerateSplit(evt.SourceShareID, evt.NewShareID, evt.Kind, evt.Amount, evt.IdempotencyKey(), evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, nil, err
	}

	delta := &StateDelta{
		Shares: []ShareState{shareState(source), shareState(newShare)},
		Debts:  append(debtStates(reg, evt.SourceShareID), debtStates(reg, evt.NewShareID)...),
	}

	return batch, delta, nil
}

// handleSharesJoined folds a source share into a target share. The source
// must be fully claimed — a join with pending revenue is refused, forcing
// the caller to claim first. The target's pending is preserved across its
// balance growth.
func (c *DeterministicCore) handleSharesJoined(evt *event.SharesJoined) (*ledger.Batch, *StateDelta, error) {
	reg, ok := c.registries[evt.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown share class: %s", evt.Kind)
	}

	if err := c.shareManager.ValidateJoin(evt.TargetShareID, evt.SourceShareID); err != nil {
		return nil, nil, fmt.Errorf("join rejected: %w", err)
	}

	source, ok := c.shareManager.GetShare(evt.SourceShareID)
	if !ok || source.AssetKind != evt.Kind {
		return nil, nil, fmt.Errorf("join rejected: share %s is not of class %s", evt.SourceShareID, evt.Kind)
	}
	target, _ := c.shareManager.GetShare(evt.TargetShareID)

	if err := reg.Destroy(evt.SourceShareID, source.Balance); err != nil {
		return nil, nil, fmt.Errorf("join rejected: %w", err)
	}

	reg.Increase(evt.TargetShareID, target.Balance, source.Balance)

	moved, err := c.shareManager.Join(evt.TargetShareID, evt.SourceShareID)
	if err != nil {
		return nil, nil, fmt.Errorf("join rejected: %w", err)
	}

	batch, err := c.journalGen.GenerateJoin(evt.SourceShareID, evt.TargetShareID, evt.Kind, moved, evt.IdempotencyKey(), evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, nil, err
	}

	delta := &StateDelta{
		Shares: []ShareState{shareState(target), tombstoneState(evt.SourceShareID, evt.Kind)},
		Debts:  debtStates(reg, evt.TargetShareID),
	}

	return batch, delta, nil
}

// handleSharesBurned retires a share. Like join, a burn with pending
// revenue is refused; the registry record goes first, then the physical
// burn releases the balance back to mintable supply.
func (c *DeterministicCore) handleSharesBurned(evt *event.SharesBurned) (*ledger.Batch, *StateDelta, error) {
	reg, ok := c.registries[evt.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown share class: %s", evt.Kind)
	}

	if err := c.shareManager.ValidateBurn(evt.ShareID); err != nil {
		return nil, nil, fmt.Errorf("burn rejected: %w", err)
	}

	share, ok := c.shareManager.GetShare(evt.ShareID)
	if !ok || share.AssetKind != evt.Kind {
		return nil, nil, fmt.Errorf("burn rejected: share %s is not of class %s", evt.ShareID, evt.Kind)
	}

	if err := reg.Destroy(evt.ShareID, share.Balance); err != nil {
		return nil, nil, fmt.Errorf("burn rejected: %w", err)
	}

	amount, err := c.shareManager.Burn(evt.ShareID)
	if err != nil {
		return nil, nil, fmt.Errorf("burn rejected: %w", err)
	}

	batch, err := c.journalGen.GenerateBurn(evt.ShareID, evt.Kind, amount, evt.IdempotencyKey(), evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, nil, err
	}

	class, _ := c.shareManager.GetClass(evt.Kind)
	delta := &StateDelta{
		Classes: []ClassState{classState(class)},
		Shares:  []ShareState{tombstoneState(evt.ShareID, evt.Kind)},
	}

	return batch, delta, nil
}

// handleRevenueDeposited spreads a deposit across the circulating supply
// via the scaled accumulator and credits the kind's vault.
func (c *DeterministicCore) handleRevenueDeposited(evt *event.RevenueDeposited) (*ledger.Batch, *StateDelta, error) {
	reg, ok := c.registries[evt.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown share class: %s", evt.Kind)
	}

	if evt.Amount > maxJournalAmount {
		return nil, nil, fmt.Errorf("deposit amount %d exceeds ledger range", evt.Amount)
	}

	class, _ := c.shareManager.GetClass(evt.Kind)

	if err := reg.Deposit(evt.RewardKind, evt.Amount, class.CirculatingSupply); err != nil {
		return nil, nil, fmt.Errorf("deposit rejected: %w", err)
	}

	batch, err := c.journalGen.GenerateRevenueDeposit(evt.Kind, evt.RewardKind, evt.Amount, evt.IdempotencyKey(), evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, nil, err
	}

	delta := &StateDelta{
		Rewards: []RewardState{rewardState(reg, evt.RewardKind)},
	}

	return batch, delta, nil
}

// handleRevenueClaimed pays one share's accrued revenue out of the vault.
// A zero pending rejects the event — no empty claims in the log.
func (c *DeterministicCore) handleRevenueClaimed(evt *event.RevenueClaimed) (*ledger.Batch, *StateDelta, error) {
	reg, ok := c.registries[evt.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown share class: %s", evt.Kind)
	}

	share, ok := c.shareManager.GetShare(evt.ShareID)
	if !ok || share.AssetKind != evt.Kind {
		return nil, nil, fmt.Errorf("claim rejected: share %s is not of class %s", evt.ShareID, evt.Kind)
	}

	payout, err := reg.Claim(evt.RewardKind, evt.ShareID, share.Balance)
	if err != nil {
		return nil, nil, fmt.Errorf("claim rejected: %w", err)
	}

	batch, err := c.journalGen.GenerateRevenueClaim(evt.Kind, evt.RewardKind, payout, evt.IdempotencyKey(), evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, nil, err
	}

	delta := &StateDelta{
		Rewards: []RewardState{rewardState(reg, evt.RewardKind)},
		Debts:   []DebtState{debtState(reg, evt.ShareID, evt.RewardKind)},
		Claims:  []ClaimState{{ShareID: evt.ShareID, Kind: evt.Kind, RewardKind: evt.RewardKind, Amount: payout}},
	}

	return batch, delta, nil
}

// handleRevenueBatchClaimed settles several shares in one reward kind
// atomically: any share with nothing pending aborts the whole batch before
// a single debt is touched.
func (c *DeterministicCore) handleRevenueBatchClaimed(evt *event.RevenueBatchClaimed) (*ledger.Batch, *StateDelta, error) {
	reg, ok := c.registries[evt.Kind]
	if !ok {
		return nil, nil, fmt.Errorf("unknown share class: %s", evt.Kind)
	}

	claims := make([]registry.ShareClaim, 0, len(evt.ShareIDs))
	for _, shareID := range evt.ShareIDs {
		share, ok := c.shareManager.GetShare(shareID)
		if !ok || share.AssetKind != evt.Kind {
			return nil, nil, fmt.Errorf("batch claim rejected: share %s is not of class %s", shareID, evt.Kind)
		}
		claims = append(claims, registry.ShareClaim{ShareID: shareID, Balance: share.Balance})
	}

	amounts, err := reg.ClaimBatch(evt.RewardKind, claims)
	if err != nil {
		return nil, nil, fmt.Errorf("batch claim rejected: %w", err)
	}

	payouts := make([]ledger.SharePayout, len(claims))
	for i, claim := range claims {
		payouts[i] = ledger.SharePayout{ShareID: claim.ShareID, Amount: amounts[i]}
	}

	batch, err := c.journalGen.GenerateBatchClaim(evt.Kind, evt.RewardKind, payouts, evt.IdempotencyKey(), evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, nil, err
	}

	delta := &StateDelta{
		Rewards: []RewardState{rewardState(reg, evt.RewardKind)},
		Debts:   make([]DebtState, 0, len(claims)),
		Claims:  make([]ClaimState, 0, len(claims)),
	}
	for i, claim := range claims {
		delta.Debts = append(delta.Debts, debtState(reg, claim.ShareID, evt.RewardKind))
		delta.Claims = append(delta.Claims, ClaimState{
			ShareID:    claim.ShareID,
			Kind:       evt.Kind,
			RewardKind: evt.RewardKind,
			Amount:     amounts[i],
		})
	}

	return batch, delta, nil
}

func (c *DeterministicCore) dispatchEvent(evt event.Event) (*ledger.Batch, *StateDelta, error) {
	switch e := evt.(type) {
	case *event.ShareClassCreated:
		return c.handleShareClassCreated(e)
	case *event.SharesMinted:
		return c.handleSharesMinted(e)
	case *event.SharesSplit:
		return c.handleSharesSplit(e)
	case *event.SharesJoined:
		return c.handleSharesJoined(e)
	case *event.SharesBurned:
		return c.handleSharesBurned(e)
	case *event.RevenueDeposited:
		return c.handleRevenueDeposited(e)
	case *event.RevenueClaimed:
		return c.handleRevenueClaimed(e)
	case *event.RevenueBatchClaimed:
		return c.handleRevenueBatchClaimed(e)
	default:
		return nil, nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// --- Snapshot Restore & Startup Methods ---

// RegistrySnapshot is one asset kind's revenue registry in serializable
// form. Kinds carry registration order; restoring out of order would
// change rebase iteration and with it the state hash.
type RegistrySnapshot struct {
	AssetKind string
	Kinds     []RewardKindSnapshot
	Debts     []DebtSnapshot
}

type RewardKindSnapshot struct {
	RewardKind  string
	Accumulator *big.Int
	VaultValue  uint64
}

type DebtSnapshot struct {
	ShareID uuid.UUID
	Entries []registry.DebtEntry
}

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
// Assets carries numeric ID assignment order; replaying it on restore keeps
// journal asset_ids stable across restarts.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Assets          []string
	Balances        map[ledger.AccountKey]int64
	Classes         []*state.ShareClass
	Shares          []*state.ShareBalance
	Registries      []RegistrySnapshot
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the core's in-memory state from a snapshot.
// On warm restart: load latest snapshot, restore, then replay events.
func (c *DeterministicCore) RestoreFromSnapshot(snap *SnapshotState) {
	// Restore sequence
	c.sequence = snap.Sequence + 1 // Next sequence to assign
	c.seqShared.Store(c.sequence)

	// Restore state hash chain
	c.hasher.SetPrevHash(snap.StateHash)

	// Restore asset ID assignment order before anything keyed by AssetID
	for _, name := range snap.Assets {
		c.assets.Register(name)
	}

	// Restore balances
	for key, balance := range snap.Balances {
		c.balanceTracker.SetBalance(key, balance)
	}

	// Restore classes and shares
	for _, class := range snap.Classes {
		c.shareManager.RestoreClass(class)
	}
	for _, share := range snap.Shares {
		c.shareManager.RestoreShare(share)
	}

	// Restore revenue registries
	for _, rs := range snap.Registries {
		reg := registry.NewRevenueRegistry(rs.AssetKind)
		for _, ks := range rs.Kinds {
			reg.RestoreKind(ks.RewardKind, ks.Accumulator, ks.VaultValue)
		}
		for _, ds := range rs.Debts {
			reg.RestoreDebt(ds.ShareID, ds.Entries)
		}
		c.registries[rs.AssetKind] = reg
	}

	// Restore sequence validator state
	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}

	// Restore journal generator sequence
	c.journalGen.SetSequence(c.sequence)
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently processed events.
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}

// SetReplayMode toggles replay processing. Call from the goroutine that owns
// the core, before live ingestion starts.
func (c *DeterministicCore) SetReplayMode(on bool) {
	c.replaying = on
}

// GetSequence returns the current global sequence number. Reads the atomic
// mirror, so it is safe to call from outside the processing goroutine.
func (c *DeterministicCore) GetSequence() int64 {
	return c.seqShared.Load()
}

// GetStateHash returns the current state hash (chain tip).
func (c *DeterministicCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// AssetRegistry exposes the core's asset-name/ID mapping. The registry is
// internally locked, so output bridges and snapshot persisters may resolve
// paths through it from other goroutines.
func (c *DeterministicCore) AssetRegistry() *ledger.AssetRegistry {
	return c.assets
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *DeterministicCore) CreateSnapshotState() *SnapshotState {
	registries := make([]RegistrySnapshot, 0, len(c.registries))
	for _, class := range c.shareManager.GetAllClasses() {
		reg, ok := c.registries[class.AssetKind]
		if !ok {
			continue
		}

		rs := RegistrySnapshot{AssetKind: class.AssetKind}
		for _, rewardKind := range reg.RegisteredKinds() {
			acc, _ := reg.Accumulator(rewardKind)
			rs.Kinds = append(rs.Kinds, RewardKindSnapshot{
				RewardKind:  rewardKind,
				Accumulator: acc,
				VaultValue:  reg.VaultValue(rewardKind),
			})
		}
		for _, record := range reg.GetAllDebts() {
			rs.Debts = append(rs.Debts, DebtSnapshot{
				ShareID: record.ShareID(),
				Entries: record.Entries(),
			})
		}
		registries = append(registries, rs)
	}

	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		StateHash:       c.hasher.GetPrevHash(),
		Assets:          c.assets.Registered(),
		Balances:        c.balanceTracker.Snapshot(),
		Classes:         c.shareManager.GetAllClasses(),
		Shares:          c.shareManager.GetAllShares(),
		Registries:      registries,
		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}
