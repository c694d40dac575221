package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeShareClassCreated
	EventTypeSharesMinted
	EventTypeSharesSplit
	EventTypeSharesJoined
	EventTypeSharesBurned
	EventTypeRevenueDeposited
	EventTypeRevenueClaimed
	EventTypeRevenueBatchClaimed
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Asset kind context (nullable for events outside any kind)
	AssetKind *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// Raw event-specific payload as received
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// AssetKind returns the asset kind context (nil for events outside any kind)
	AssetKind() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeShareClassCreated:
		return "ShareClassCreated"
	case EventTypeSharesMinted:
		return "SharesMinted"
	case EventTypeSharesSplit:
		return "SharesSplit"
	case EventTypeSharesJoined:
		return "SharesJoined"
	case EventTypeSharesBurned:
		return "SharesBurned"
	case EventTypeRevenueDeposited:
		return "RevenueDeposited"
	case EventTypeRevenueClaimed:
		return "RevenueClaimed"
	case EventTypeRevenueBatchClaimed:
		return "RevenueBatchClaimed"
	default:
		return "Unknown"
	}
}
