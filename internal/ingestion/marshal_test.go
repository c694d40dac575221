package ingestion_test

import (
	"testing"
	"time"

	"RevLedger/internal/event"
	"RevLedger/internal/ingestion"

	"github.com/google/uuid"
)

// Stored payloads must survive a marshal/parse round trip, including the
// placeholder authority token on restricted events.
func TestMarshalEventJSON_RoundTripsThroughParser(t *testing.T) {
	original := &event.SharesMinted{
		EventID:   uuid.New(),
		ShareID:   uuid.New(),
		Kind:      "ACME-2026",
		Amount:    7500,
		Sequence:  3,
		Timestamp: time.UnixMicro(1724500000000000),
	}

	data, err := ingestion.MarshalEventJSON(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ingestion.ParseRawEvent(ingestion.RawEvent{Data: data}, "SharesMinted")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	minted, ok := parsed.(*event.SharesMinted)
	if !ok {
		t.Fatalf("parsed type: got %T", parsed)
	}
	if minted.EventID != original.EventID || minted.ShareID != original.ShareID {
		t.Error("IDs did not survive round trip")
	}
	if minted.Kind != original.Kind || minted.Amount != original.Amount {
		t.Error("kind/amount did not survive round trip")
	}
	if minted.Sequence != original.Sequence || !minted.Timestamp.Equal(original.Timestamp) {
		t.Error("sequence/timestamp did not survive round trip")
	}
}

func TestMarshalEventJSON_BatchClaimShareIDs(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	original := &event.RevenueBatchClaimed{
		EventID:    uuid.New(),
		Kind:       "ACME-2026",
		RewardKind: "USD",
		ShareIDs:   ids,
		Sequence:   9,
		Timestamp:  time.UnixMicro(1724500001000000),
	}

	data, err := ingestion.MarshalEventJSON(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ingestion.ParseRawEvent(ingestion.RawEvent{Data: data}, "RevenueBatchClaimed")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	claimed := parsed.(*event.RevenueBatchClaimed)
	if len(claimed.ShareIDs) != len(ids) {
		t.Fatalf("share_ids length: got %d, want %d", len(claimed.ShareIDs), len(ids))
	}
	for i := range ids {
		if claimed.ShareIDs[i] != ids[i] {
			t.Errorf("share_ids[%d]: got %s, want %s", i, claimed.ShareIDs[i], ids[i])
		}
	}
}
