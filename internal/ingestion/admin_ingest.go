package ingestion

import (
	"RevLedger/internal/event"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdminIngestService provides admin/manual event injection, bypassing NATS.
// This is for operator use and manual corrections, not for high-throughput
// ingestion (use NATS for that). Callers must supply the next source
// sequence for the kind's partition — injected events go through the same
// ordering validation as streamed ones.
type AdminIngestService struct {
	eventChan chan<- event.Event
}

func NewAdminIngestService(eventChan chan<- event.Event) *AdminIngestService {
	return &AdminIngestService{eventChan: eventChan}
}

// InjectClassCreate manually injects a ShareClassCreated event.
func (s *AdminIngestService) InjectClassCreate(
	ctx context.Context,
	kind string,
	totalSupplyCap uint64,
	burnable bool,
	sequence int64,
) error {
	if kind == "" {
		return fmt.Errorf("kind must not be empty")
	}
	if totalSupplyCap == 0 {
		return fmt.Errorf("total supply cap must be positive")
	}

	evt := &event.ShareClassCreated{
		EventID:        uuid.New(),
		Kind:           kind,
		TotalSupplyCap: totalSupplyCap,
		Burnable:       burnable,
		Sequence:       sequence,
		Timestamp:      time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectMint manually injects a SharesMinted event.
func (s *AdminIngestService) InjectMint(
	ctx context.Context,
	shareID uuid.UUID,
	kind string,
	amount uint64,
	sequence int64,
) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.SharesMinted{
		EventID:   uuid.New(),
		ShareID:   shareID,
		Kind:      kind,
		Amount:    amount,
		Sequence:  sequence,
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectBurn manually injects a SharesBurned event.
func (s *AdminIngestService) InjectBurn(
	ctx context.Context,
	shareID uuid.UUID,
	kind string,
	sequence int64,
) error {
	evt := &event.SharesBurned{
		EventID:   uuid.New(),
		ShareID:   shareID,
		Kind:      kind,
		Sequence:  sequence,
		Timestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectRevenueDeposit manually injects a RevenueDeposited event.
func (s *AdminIngestService) InjectRevenueDeposit(
	ctx context.Context,
	kind string,
	rewardKind string,
	amount uint64,
	sequence int64,
) error {
	if amount == 0 {
		return fmt.Errorf("amount must be positive")
	}
	if rewardKind == "" {
		return fmt.Errorf("reward kind must not be empty")
	}

	evt := &event.RevenueDeposited{
		EventID:    uuid.New(),
		Kind:       kind,
		RewardKind: rewardKind,
		Amount:     amount,
		Sequence:   sequence,
		Timestamp:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectClaim manually injects a RevenueClaimed event.
func (s *AdminIngestService) InjectClaim(
	ctx context.Context,
	shareID uuid.UUID,
	kind string,
	rewardKind string,
	sequence int64,
) error {
	if rewardKind == "" {
		return fmt.Errorf("reward kind must not be empty")
	}

	evt := &event.RevenueClaimed{
		EventID:    uuid.New(),
		ShareID:    shareID,
		Kind:       kind,
		RewardKind: rewardKind,
		Sequence:   sequence,
		Timestamp:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
