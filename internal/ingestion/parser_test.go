package ingestion_test

import (
	"RevLedger/internal/event"
	"RevLedger/internal/ingestion"
	"encoding/json"
	"testing"
	"time"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseShareClassCreated(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":         "550e8400-e29b-41d4-a716-446655440000",
		"kind":             "ACME-2026",
		"total_supply_cap": uint64(1_000_000),
		"burnable":         true,
		"authority_token":  "tok-issuer-1",
		"sequence":         int64(0),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ShareClassCreated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cc, ok := evt.(*event.ShareClassCreated)
	if !ok {
		t.Fatalf("expected *event.ShareClassCreated, got %T", evt)
	}

	if cc.Kind != "ACME-2026" {
		t.Errorf("kind: got %s, want ACME-2026", cc.Kind)
	}
	if cc.TotalSupplyCap != 1_000_000 {
		t.Errorf("total_supply_cap: got %d, want 1_000_000", cc.TotalSupplyCap)
	}
	if !cc.Burnable {
		t.Error("burnable: got false, want true")
	}
	if cc.EventType() != event.EventTypeShareClassCreated {
		t.Errorf("event type: got %v, want ShareClassCreated", cc.EventType())
	}
}

func TestParseShareClassCreated_MissingAuthority_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":         "550e8400-e29b-41d4-a716-446655440000",
		"kind":             "ACME-2026",
		"total_supply_cap": uint64(1_000_000),
		"sequence":         int64(0),
		"timestamp_us":     int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "ShareClassCreated")
	if err == nil {
		t.Fatal("expected error for missing authority_token")
	}
}

func TestParseSharesMinted(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":        "550e8400-e29b-41d4-a716-446655440000",
		"share_id":        "660e8400-e29b-41d4-a716-446655440001",
		"kind":            "ACME-2026",
		"amount":          uint64(7_500),
		"authority_token": "tok-issuer-1",
		"sequence":        int64(1),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "SharesMinted")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	m, ok := evt.(*event.SharesMinted)
	if !ok {
		t.Fatalf("expected *event.SharesMinted, got %T", evt)
	}

	if m.Amount != 7_500 {
		t.Errorf("amount: got %d, want 7_500", m.Amount)
	}
	if m.Sequence != 1 {
		t.Errorf("sequence: got %d, want 1", m.Sequence)
	}
	if !m.Timestamp.Equal(time.UnixMicro(1700000000000000)) {
		t.Errorf("timestamp: got %v", m.Timestamp)
	}
}

func TestParseSharesMinted_ZeroAmount_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":        "550e8400-e29b-41d4-a716-446655440000",
		"share_id":        "660e8400-e29b-41d4-a716-446655440001",
		"kind":            "ACME-2026",
		"amount":          uint64(0),
		"authority_token": "tok-issuer-1",
		"sequence":        int64(1),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "SharesMinted")
	if err == nil {
		t.Fatal("expected error for zero amount")
	}
}

func TestParseSharesSplit(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":        "550e8400-e29b-41d4-a716-446655440000",
		"source_share_id": "660e8400-e29b-41d4-a716-446655440001",
		"new_share_id":    "770e8400-e29b-41d4-a716-446655440002",
		"kind":            "ACME-2026",
		"amount":          uint64(4_000),
		"sequence":        int64(3),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "SharesSplit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	s, ok := evt.(*event.SharesSplit)
	if !ok {
		t.Fatalf("expected *event.SharesSplit, got %T", evt)
	}

	if s.Amount != 4_000 {
		t.Errorf("amount: got %d, want 4_000", s.Amount)
	}
	if s.SourceShareID == s.NewShareID {
		t.Error("source and new share IDs should differ")
	}
}

func TestParseSharesJoined(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":        "550e8400-e29b-41d4-a716-446655440000",
		"source_share_id": "660e8400-e29b-41d4-a716-446655440001",
		"target_share_id": "770e8400-e29b-41d4-a716-446655440002",
		"kind":            "ACME-2026",
		"sequence":        int64(4),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "SharesJoined")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	j, ok := evt.(*event.SharesJoined)
	if !ok {
		t.Fatalf("expected *event.SharesJoined, got %T", evt)
	}

	if j.Kind != "ACME-2026" {
		t.Errorf("kind: got %s, want ACME-2026", j.Kind)
	}
	if j.EventType() != event.EventTypeSharesJoined {
		t.Errorf("event type: got %v, want SharesJoined", j.EventType())
	}
}

func TestParseSharesBurned_MissingAuthority_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":     "550e8400-e29b-41d4-a716-446655440000",
		"share_id":     "660e8400-e29b-41d4-a716-446655440001",
		"kind":         "ACME-2026",
		"sequence":     int64(5),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "SharesBurned")
	if err == nil {
		t.Fatal("expected error for missing authority_token")
	}
}

func TestParseRevenueDeposited(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":        "550e8400-e29b-41d4-a716-446655440000",
		"kind":            "ACME-2026",
		"reward_kind":     "USDC",
		"amount":          uint64(100_000),
		"authority_token": "tok-issuer-1",
		"sequence":        int64(3),
		"timestamp_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "RevenueDeposited")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	d, ok := evt.(*event.RevenueDeposited)
	if !ok {
		t.Fatalf("expected *event.RevenueDeposited, got %T", evt)
	}

	if d.RewardKind != "USDC" {
		t.Errorf("reward_kind: got %s, want USDC", d.RewardKind)
	}
	if d.Amount != 100_000 {
		t.Errorf("amount: got %d, want 100_000", d.Amount)
	}
}

func TestParseRevenueClaimed(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":     "550e8400-e29b-41d4-a716-446655440000",
		"share_id":     "660e8400-e29b-41d4-a716-446655440001",
		"kind":         "ACME-2026",
		"reward_kind":  "USDC",
		"sequence":     int64(4),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "RevenueClaimed")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	c, ok := evt.(*event.RevenueClaimed)
	if !ok {
		t.Fatalf("expected *event.RevenueClaimed, got %T", evt)
	}

	if c.RewardKind != "USDC" {
		t.Errorf("reward_kind: got %s, want USDC", c.RewardKind)
	}
	if c.AssetKind() == nil || *c.AssetKind() != "ACME-2026" {
		t.Errorf("asset kind: got %v, want ACME-2026", c.AssetKind())
	}
}

func TestParseRevenueBatchClaimed(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":    "550e8400-e29b-41d4-a716-446655440000",
		"kind":        "ACME-2026",
		"reward_kind": "USDC",
		"share_ids": []string{
			"660e8400-e29b-41d4-a716-446655440001",
			"770e8400-e29b-41d4-a716-446655440002",
		},
		"sequence":     int64(5),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "RevenueBatchClaimed")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	b, ok := evt.(*event.RevenueBatchClaimed)
	if !ok {
		t.Fatalf("expected *event.RevenueBatchClaimed, got %T", evt)
	}

	if len(b.ShareIDs) != 2 {
		t.Fatalf("share_ids: got %d entries, want 2", len(b.ShareIDs))
	}
	if b.ShareIDs[0] == b.ShareIDs[1] {
		t.Error("share IDs should differ")
	}
}

func TestParseRevenueBatchClaimed_EmptyShareIDs_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":     "550e8400-e29b-41d4-a716-446655440000",
		"kind":         "ACME-2026",
		"reward_kind":  "USDC",
		"share_ids":    []string{},
		"sequence":     int64(5),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "RevenueBatchClaimed")
	if err == nil {
		t.Fatal("expected error for empty share_ids")
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "SharesMinted")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"event_id":        "not-a-uuid",
		"share_id":        "also-not-a-uuid",
		"kind":            "ACME-2026",
		"amount":          uint64(1),
		"authority_token": "tok-issuer-1",
		"sequence":        int64(0),
		"timestamp_us":    int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "SharesMinted")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
