package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EventKind names a ledger event.
type EventKind string

const (
	EventDeposit       EventKind = "Deposit"
	EventWithdraw      EventKind = "Withdraw"
	EventInterestPaid  EventKind = "InterestPaid"
	EventFeesWithdrawn EventKind = "FeesWithdrawn"
)

// Event is emitted by the ledger after a committed state change.
type Event struct {
	ID        uuid.UUID
	Kind      EventKind
	Address   Address
	Amount    uint256.Int
	Timestamp time.Time
}

// NewEvent builds an event with a fresh identifier.
func NewEvent(kind EventKind, address Address, amount uint256.Int, ts time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Kind:      kind,
		Address:   address,
		Amount:    amount,
		Timestamp: ts,
	}
}

// EventMessage is the serialized form of an Event used by publishers.
type EventMessage struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Address   string `json:"address"`
	AmountWei string `json:"amount_wei"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// Message converts e to its wire form.
func (e Event) Message() EventMessage {
	return EventMessage{
		ID:        e.ID.String(),
		Kind:      string(e.Kind),
		Address:   e.Address.String(),
		AmountWei: e.Amount.Dec(),
		Amount:    FormatUnits(e.Amount),
		Timestamp: e.Timestamp.Unix(),
	}
}

// EventOutbox exposes committed events that have not been delivered yet.
type EventOutbox interface {
	// PendingEvents returns up to limit undelivered events in commit order.
	PendingEvents(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// EventPublisher delivers a batch of events to an external system.
type EventPublisher interface {
	Publish(ctx context.Context, events []Event) error
}
