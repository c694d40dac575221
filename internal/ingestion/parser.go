package ingestion

import (
	"RevLedger/internal/event"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending to the deterministic core — the core never sees a
// zero amount or a missing authority token.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "ShareClassCreated":
		return parseShareClassCreated(raw.Data)
	case "SharesMinted":
		return parseSharesMinted(raw.Data)
	case "SharesSplit":
		return parseSharesSplit(raw.Data)
	case "SharesJoined":
		return parseSharesJoined(raw.Data)
	case "SharesBurned":
		return parseSharesBurned(raw.Data)
	case "RevenueDeposited":
		return parseRevenueDeposited(raw.Data)
	case "RevenueClaimed":
		return parseRevenueClaimed(raw.Data)
	case "RevenueBatchClaimed":
		return parseRevenueBatchClaimed(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type shareClassCreatedJSON struct {
	EventID        string `json:"event_id"`
	Kind           string `json:"kind"`
	TotalSupplyCap uint64 `json:"total_supply_cap"`
	Burnable       bool   `json:"burnable"`
	AuthorityToken string `json:"authority_token"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseShareClassCreated(data []byte) (*event.ShareClassCreated, error) {
	var j shareClassCreatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ShareClassCreated: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("ShareClassCreated: empty kind")
	}
	if j.TotalSupplyCap == 0 {
		return nil, fmt.Errorf("ShareClassCreated: total_supply_cap must be positive")
	}
	if j.AuthorityToken == "" {
		return nil, fmt.Errorf("ShareClassCreated: missing authority_token")
	}

	return &event.ShareClassCreated{
		EventID:        eventID,
		Kind:           j.Kind,
		TotalSupplyCap: j.TotalSupplyCap,
		Burnable:       j.Burnable,
		Sequence:       j.Sequence,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type sharesMintedJSON struct {
	EventID        string `json:"event_id"`
	ShareID        string `json:"share_id"`
	Kind           string `json:"kind"`
	Amount         uint64 `json:"amount"`
	AuthorityToken string `json:"authority_token"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseSharesMinted(data []byte) (*event.SharesMinted, error) {
	var j sharesMintedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SharesMinted: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	shareID, err := uuid.Parse(j.ShareID)
	if err != nil {
		return nil, fmt.Errorf("parse share_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("SharesMinted: empty kind")
	}
	if j.Amount == 0 {
		return nil, fmt.Errorf("SharesMinted: amount must be positive")
	}
	if j.AuthorityToken == "" {
		return nil, fmt.Errorf("SharesMinted: missing authority_token")
	}

	return &event.SharesMinted{
		EventID:   eventID,
		ShareID:   shareID,
		Kind:      j.Kind,
		Amount:    j.Amount,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type sharesSplitJSON struct {
	EventID       string `json:"event_id"`
	SourceShareID string `json:"source_share_id"`
	NewShareID    string `json:"new_share_id"`
	Kind          string `json:"kind"`
	Amount        uint64 `json:"amount"`
	Sequence      int64  `json:"sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parseSharesSplit(data []byte) (*event.SharesSplit, error) {
	var j sharesSplitJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SharesSplit: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	sourceID, err := uuid.Parse(j.SourceShareID)
	if err != nil {
		return nil, fmt.Errorf("parse source_share_id: %w", err)
	}
	newID, err := uuid.Parse(j.NewShareID)
	if err != nil {
		return nil, fmt.Errorf("parse new_share_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("SharesSplit: empty kind")
	}
	if j.Amount == 0 {
		return nil, fmt.Errorf("SharesSplit: amount must be positive")
	}

	return &event.SharesSplit{
		EventID:       eventID,
		SourceShareID: sourceID,
		NewShareID:    newID,
		Kind:          j.Kind,
		Amount:        j.Amount,
		Sequence:      j.Sequence,
		Timestamp:     time.UnixMicro(j.TimestampUs),
	}, nil
}

type sharesJoinedJSON struct {
	EventID       string `json:"event_id"`
	SourceShareID string `json:"source_share_id"`
	TargetShareID string `json:"target_share_id"`
	Kind          string `json:"kind"`
	Sequence      int64  `json:"sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parseSharesJoined(data []byte) (*event.SharesJoined, error) {
	var j sharesJoinedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SharesJoined: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	sourceID, err := uuid.Parse(j.SourceShareID)
	if err != nil {
		return nil, fmt.Errorf("parse source_share_id: %w", err)
	}
	targetID, err := uuid.Parse(j.TargetShareID)
	if err != nil {
		return nil, fmt.Errorf("parse target_share_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("SharesJoined: empty kind")
	}

	return &event.SharesJoined{
		EventID:       eventID,
		SourceShareID: sourceID,
		TargetShareID: targetID,
		Kind:          j.Kind,
		Sequence:      j.Sequence,
		Timestamp:     time.UnixMicro(j.TimestampUs),
	}, nil
}

type sharesBurnedJSON struct {
	EventID        string `json:"event_id"`
	ShareID        string `json:"share_id"`
	Kind           string `json:"kind"`
	AuthorityToken string `json:"authority_token"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseSharesBurned(data []byte) (*event.SharesBurned, error) {
	var j sharesBurnedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SharesBurned: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	shareID, err := uuid.Parse(j.ShareID)
	if err != nil {
		return nil, fmt.Errorf("parse share_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("SharesBurned: empty kind")
	}
	if j.AuthorityToken == "" {
		return nil, fmt.Errorf("SharesBurned: missing authority_token")
	}

	return &event.SharesBurned{
		EventID:   eventID,
		ShareID:   shareID,
		Kind:      j.Kind,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type revenueDepositedJSON struct {
	EventID        string `json:"event_id"`
	Kind           string `json:"kind"`
	RewardKind     string `json:"reward_kind"`
	Amount         uint64 `json:"amount"`
	AuthorityToken string `json:"authority_token"`
	Sequence       int64  `json:"sequence"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseRevenueDeposited(data []byte) (*event.RevenueDeposited, error) {
	var j revenueDepositedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RevenueDeposited: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("RevenueDeposited: empty kind")
	}
	if j.RewardKind == "" {
		return nil, fmt.Errorf("RevenueDeposited: empty reward_kind")
	}
	if j.Amount == 0 {
		return nil, fmt.Errorf("RevenueDeposited: amount must be positive")
	}
	if j.AuthorityToken == "" {
		return nil, fmt.Errorf("RevenueDeposited: missing authority_token")
	}

	return &event.RevenueDeposited{
		EventID:    eventID,
		Kind:       j.Kind,
		RewardKind: j.RewardKind,
		Amount:     j.Amount,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type revenueClaimedJSON struct {
	EventID     string `json:"event_id"`
	ShareID     string `json:"share_id"`
	Kind        string `json:"kind"`
	RewardKind  string `json:"reward_kind"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseRevenueClaimed(data []byte) (*event.RevenueClaimed, error) {
	var j revenueClaimedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RevenueClaimed: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	shareID, err := uuid.Parse(j.ShareID)
	if err != nil {
		return nil, fmt.Errorf("parse share_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("RevenueClaimed: empty kind")
	}
	if j.RewardKind == "" {
		return nil, fmt.Errorf("RevenueClaimed: empty reward_kind")
	}

	return &event.RevenueClaimed{
		EventID:    eventID,
		ShareID:    shareID,
		Kind:       j.Kind,
		RewardKind: j.RewardKind,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type revenueBatchClaimedJSON struct {
	EventID     string   `json:"event_id"`
	Kind        string   `json:"kind"`
	RewardKind  string   `json:"reward_kind"`
	ShareIDs    []string `json:"share_ids"`
	Sequence    int64    `json:"sequence"`
	TimestampUs int64    `json:"timestamp_us"`
}

func parseRevenueBatchClaimed(data []byte) (*event.RevenueBatchClaimed, error) {
	var j revenueBatchClaimedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RevenueBatchClaimed: %w", err)
	}

	eventID, err := uuid.Parse(j.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event_id: %w", err)
	}
	if j.Kind == "" {
		return nil, fmt.Errorf("RevenueBatchClaimed: empty kind")
	}
	if j.RewardKind == "" {
		return nil, fmt.Errorf("RevenueBatchClaimed: empty reward_kind")
	}
	if len(j.ShareIDs) == 0 {
		return nil, fmt.Errorf("RevenueBatchClaimed: empty share_ids")
	}

	shareIDs := make([]uuid.UUID, len(j.ShareIDs))
	for i, s := range j.ShareIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse share_ids[%d]: %w", i, err)
		}
		shareIDs[i] = id
	}

	return &event.RevenueBatchClaimed{
		EventID:    eventID,
		Kind:       j.Kind,
		RewardKind: j.RewardKind,
		ShareIDs:   shareIDs,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}
