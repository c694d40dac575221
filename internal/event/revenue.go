package event

import (
	"time"

	"github.com/google/uuid"
)

// RevenueDeposited distributes revenue across a kind's circulating shares.
// The reward kind is an open-ended string; first use registers it.
type RevenueDeposited struct {
	EventID    uuid.UUID // Idempotency key
	Kind       string
	RewardKind string
	Amount     uint64 // Validated positive at the boundary
	Sequence   int64
	Timestamp  time.Time
}

func (d *RevenueDeposited) IdempotencyKey() string {
	return d.EventID.String()
}

func (d *RevenueDeposited) EventType() EventType {
	return EventTypeRevenueDeposited
}

func (d *RevenueDeposited) AssetKind() *string {
	k := d.Kind
	return &k
}

func (d *RevenueDeposited) SourceSequence() int64 {
	return d.Sequence
}

// RevenueClaimed pays one share's accrued revenue in one reward kind.
// The payout amount is computed when the event applies.
type RevenueClaimed struct {
	EventID    uuid.UUID // Idempotency key
	ShareID    uuid.UUID
	Kind       string
	RewardKind string
	Sequence   int64
	Timestamp  time.Time
}

func (c *RevenueClaimed) IdempotencyKey() string {
	return c.EventID.String()
}

func (c *RevenueClaimed) EventType() EventType {
	return EventTypeRevenueClaimed
}

func (c *RevenueClaimed) AssetKind() *string {
	k := c.Kind
	return &k
}

func (c *RevenueClaimed) SourceSequence() int64 {
	return c.Sequence
}

// RevenueBatchClaimed pays several shares' accrued revenue in one reward
// kind atomically. Any share with nothing to claim aborts the whole batch.
type RevenueBatchClaimed struct {
	EventID    uuid.UUID // Idempotency key
	Kind       string
	RewardKind string
	ShareIDs   []uuid.UUID
	Sequence   int64
	Timestamp  time.Time
}

func (b *RevenueBatchClaimed) IdempotencyKey() string {
	return b.EventID.String()
}

func (b *RevenueBatchClaimed) EventType() EventType {
	return EventTypeRevenueBatchClaimed
}

func (b *RevenueBatchClaimed) AssetKind() *string {
	k := b.Kind
	return &k
}

func (b *RevenueBatchClaimed) SourceSequence() int64 {
	return b.Sequence
}
