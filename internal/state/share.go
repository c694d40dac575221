package state

import "github.com/google/uuid"

// ShareBalance is a holder's claim object: an opaque, transferable carrier
// of asset units. Live shares always have Balance > 0; a zero-balance share
// is not producible by any operation.
type ShareBalance struct {
	ShareID   uuid.UUID
	AssetKind string
	Balance   uint64

	// Version increments on every balance mutation.
	Version int64
}
