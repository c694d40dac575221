package event

import (
	"time"

	"github.com/google/uuid"
)

// ShareClassCreated registers a new fixed-supply asset class.
// Idempotency key: event_id (UUID from control plane).
type ShareClassCreated struct {
	EventID        uuid.UUID // Idempotency key
	Kind           string
	TotalSupplyCap uint64 // Validated positive at the boundary
	Burnable       bool
	Sequence       int64
	Timestamp      time.Time // Versioned input timestamp (NOT wall-clock)
}

func (c *ShareClassCreated) IdempotencyKey() string {
	return c.EventID.String()
}

func (c *ShareClassCreated) EventType() EventType {
	return EventTypeShareClassCreated
}

func (c *ShareClassCreated) AssetKind() *string {
	k := c.Kind
	return &k
}

func (c *ShareClassCreated) SourceSequence() int64 {
	return c.Sequence
}
