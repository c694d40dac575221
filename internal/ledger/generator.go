package ledger

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from events
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // for pre-checks
	assets         *AssetRegistry
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
		assets:         tracker.Assets(),
	}
}

// SetSequence realigns the generator after a snapshot restore
func (jg *JournalGenerator) SetSequence(sequence int64) {
	jg.sequence = sequence
}

func (jg *JournalGenerator) Sequence() int64 {
	return jg.sequence
}

// Journal amounts are signed on the wire and in storage; domain quantities
// are unsigned and must fit.
func toJournalAmount(amount uint64) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, fmt.Errorf("amount %d overflows journal range", amount)
	}
	return int64(amount), nil
}

// GenerateMint creates journals for newly issued share units.
// Moves units: system:{kind}:share_supply → share:{id}:units
func (jg *JournalGenerator) GenerateMint(
	shareID uuid.UUID,
	assetKind string,
	amount uint64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	amt, err := toJournalAmount(amount)
	if err != nil {
		return nil, err
	}
	kindID := jg.assets.Register(assetKind)
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewShareAccountKey(shareID, SubTypeUnits, kindID),
		CreditAccount: NewSystemAccountKey(kindID, SubTypeShareSupply, kindID),
		AssetID:       kindID,
		Amount:        amt,
		JournalType:   JournalTypeMint,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateBurn retires a share's units back into the supply account.
// Moves units: share:{id}:units → system:{kind}:share_supply
func (jg *JournalGenerator) GenerateBurn(
	shareID uuid.UUID,
	assetKind string,
	amount uint64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	amt, err := toJournalAmount(amount)
	if err != nil {
		return nil, err
	}
	kindID := jg.assets.Register(assetKind)
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewSystemAccountKey(kindID, SubTypeShareSupply, kindID),
		CreditAccount: NewShareAccountKey(shareID, SubTypeUnits, kindID),
		AssetID:       kindID,
		Amount:        amt,
		JournalType:   JournalTypeBurn,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateSplit moves carved-off units from a source share to a new share.
// Circulating supply is untouched; only the unit accounts shift.
func (jg *JournalGenerator) GenerateSplit(
	sourceID uuid.UUID,
	newID uuid.UUID,
	assetKind string,
	amount uint64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	amt, err := toJournalAmount(amount)
	if err != nil {
		return nil, err
	}
	kindID := jg.assets.Register(assetKind)
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewShareAccountKey(newID, SubTypeUnits, kindID),
		CreditAccount: NewShareAccountKey(sourceID, SubTypeUnits, kindID),
		AssetID:       kindID,
		Amount:        amt,
		JournalType:   JournalTypeSplit,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateJoin folds a source share's full balance into a target share.
// The source's unit account lands on exactly zero afterwards.
func (jg *JournalGenerator) GenerateJoin(
	sourceID uuid.UUID,
	targetID uuid.UUID,
	assetKind string,
	amount uint64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	amt, err := toJournalAmount(amount)
	if err != nil {
		return nil, err
	}
	kindID := jg.assets.Register(assetKind)
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewShareAccountKey(targetID, SubTypeUnits, kindID),
		CreditAccount: NewShareAccountKey(sourceID, SubTypeUnits, kindID),
		AssetID:       kindID,
		Amount:        amt,
		JournalType:   JournalTypeJoin,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateRevenueDeposit records revenue entering a kind's vault.
// Moves funds: external:deposits → system:{kind}:vault
func (jg *JournalGenerator) GenerateRevenueDeposit(
	assetKind string,
	rewardKind string,
	amount uint64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	amt, err := toJournalAmount(amount)
	if err != nil {
		return nil, err
	}
	rewardID := jg.assets.Register(rewardKind)
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewSystemAccountKey(jg.assets.Register(assetKind), SubTypeVault, rewardID),
		CreditAccount: NewExternalAccountKey(SubTypeExternalDeposits, rewardID),
		AssetID:       rewardID,
		Amount:        amt,
		JournalType:   JournalTypeRevenueDeposit,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateRevenueClaim pays accrued revenue out of a kind's vault.
// Pre-check: the vault must cover the payout.
// Moves funds: system:{kind}:vault → external:payouts
func (jg *JournalGenerator) GenerateRevenueClaim(
	assetKind string,
	rewardKind string,
	amount uint64,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	amt, err := toJournalAmount(amount)
	if err != nil {
		return nil, err
	}
	rewardID := jg.assets.Register(rewardKind)

	if err := jg.balanceTracker.ValidateSufficientVault(assetKind, rewardID, amt); err != nil {
		return nil, fmt.Errorf("claim pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      eventRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalPayouts, rewardID),
		CreditAccount: NewSystemAccountKey(jg.assets.Register(assetKind), SubTypeVault, rewardID),
		AssetID:       rewardID,
		Amount:        amt,
		JournalType:   JournalTypeRevenueClaim,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// SharePayout is one share's portion of a batch claim
type SharePayout struct {
	ShareID uuid.UUID
	Amount  uint64
}

// GenerateBatchClaim pays several shares' accrued revenue in one balanced
// batch, one journal per share so the per-share amounts stay auditable.
// Pre-check: the vault must cover the total payout.
func (jg *JournalGenerator) GenerateBatchClaim(
	assetKind string,
	rewardKind string,
	payouts []SharePayout,
	eventRef string,
	timestamp int64,
) (*Batch, error) {
	if len(payouts) == 0 {
		return nil, fmt.Errorf("batch claim has no payouts")
	}
	rewardID := jg.assets.Register(rewardKind)

	var total int64
	for _, p := range payouts {
		amt, err := toJournalAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if amt <= 0 {
			return nil, fmt.Errorf("batch claim for share %s has non-positive amount", p.ShareID)
		}
		total += amt
	}
	if err := jg.balanceTracker.ValidateSufficientVault(assetKind, rewardID, total); err != nil {
		return nil, fmt.Errorf("batch claim pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, len(payouts)),
	}

	for _, p := range payouts {
		journal := Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      fmt.Sprintf("%s:%s", eventRef, p.ShareID),
			Sequence:      jg.sequence,
			DebitAccount:  NewExternalAccountKey(SubTypeExternalPayouts, rewardID),
			CreditAccount: NewSystemAccountKey(jg.assets.Register(assetKind), SubTypeVault, rewardID),
			AssetID:       rewardID,
			Amount:        int64(p.Amount),
			JournalType:   JournalTypeRevenueClaim,
			Timestamp:     timestamp,
		}
		batch.Journals = append(batch.Journals, journal)
	}

	jg.sequence++
	return batch, nil
}
