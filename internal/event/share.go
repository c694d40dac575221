package event

import (
	"time"

	"github.com/google/uuid"
)

// SharesMinted issues a new share out of a class's remaining supply.
// The share's UUID is assigned upstream so replays recreate it verbatim.
type SharesMinted struct {
	EventID   uuid.UUID // Idempotency key
	ShareID   uuid.UUID // New share's identity
	Kind      string
	Amount    uint64 // Validated positive at the boundary
	Sequence  int64
	Timestamp time.Time
}

func (m *SharesMinted) IdempotencyKey() string {
	return m.EventID.String()
}

func (m *SharesMinted) EventType() EventType {
	return EventTypeSharesMinted
}

func (m *SharesMinted) AssetKind() *string {
	k := m.Kind
	return &k
}

func (m *SharesMinted) SourceSequence() int64 {
	return m.Sequence
}

// SharesSplit carves part of a share's balance into a new share.
// The carved amount must leave both sides positive; the new share's UUID
// travels in the event for replay determinism.
type SharesSplit struct {
	EventID       uuid.UUID // Idempotency key
	SourceShareID uuid.UUID
	NewShareID    uuid.UUID
	Kind          string
	Amount        uint64
	Sequence      int64
	Timestamp     time.Time
}

func (s *SharesSplit) IdempotencyKey() string {
	return s.EventID.String()
}

func (s *SharesSplit) EventType() EventType {
	return EventTypeSharesSplit
}

func (s *SharesSplit) AssetKind() *string {
	k := s.Kind
	return &k
}

func (s *SharesSplit) SourceSequence() int64 {
	return s.Sequence
}

// SharesJoined folds one share entirely into another of the same kind.
// The moved amount is whatever the source holds when the event applies.
type SharesJoined struct {
	EventID       uuid.UUID // Idempotency key
	SourceShareID uuid.UUID
	TargetShareID uuid.UUID
	Kind          string
	Sequence      int64
	Timestamp     time.Time
}

func (j *SharesJoined) IdempotencyKey() string {
	return j.EventID.String()
}

func (j *SharesJoined) EventType() EventType {
	return EventTypeSharesJoined
}

func (j *SharesJoined) AssetKind() *string {
	k := j.Kind
	return &k
}

func (j *SharesJoined) SourceSequence() int64 {
	return j.Sequence
}

// SharesBurned retires a share and releases its balance back to the
// class's mintable supply. Only burnable classes accept it.
type SharesBurned struct {
	EventID   uuid.UUID // Idempotency key
	ShareID   uuid.UUID
	Kind      string
	Sequence  int64
	Timestamp time.Time
}

func (b *SharesBurned) IdempotencyKey() string {
	return b.EventID.String()
}

func (b *SharesBurned) EventType() EventType {
	return EventTypeSharesBurned
}

func (b *SharesBurned) AssetKind() *string {
	k := b.Kind
	return &k
}

func (b *SharesBurned) SourceSequence() int64 {
	return b.Sequence
}
