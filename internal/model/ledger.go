package model

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

// TransactionKind classifies a ledger history record.
type TransactionKind string

const (
	TransactionDeposit      TransactionKind = "deposit"
	TransactionWithdraw     TransactionKind = "withdraw"
	TransactionInterestPaid TransactionKind = "interest_paid"
)

// Account is the ledger state of a single address.
type Account struct {
	Address       Address
	Principal     uint256.Int
	LastAccrualAt time.Time
	CreatedAt     time.Time
}

// Transaction is an append-only history record.
type Transaction struct {
	Kind      TransactionKind
	Amount    uint256.Int
	Timestamp time.Time
}

// Statistics is the global ledger view.
type Statistics struct {
	TotalHeld          uint256.Int
	TotalFeesCollected uint256.Int
}

// LedgerCommit is a set of changes applied atomically by a LedgerStore.
type LedgerCommit struct {
	// Account is the full new state of the account; it is created when absent.
	Account      Account
	Transactions []Transaction
	// FeeDelta is added to the treasury.
	FeeDelta uint256.Int
	// Events are stored in the outbox together with the state change.
	Events []Event
}

// CommitHook runs inside a store transaction after all writes have been staged.
// Returning an error rolls the whole commit back.
type CommitHook func(ctx context.Context) error

// FeeDrain is called inside the treasury drain transaction with the collected amount.
// It returns the events to record; an error rolls the drain back.
type FeeDrain func(ctx context.Context, amount uint256.Int) ([]Event, error)

// LedgerStore persists accounts, history and the treasury.
type LedgerStore interface {
	// GetAccount returns ErrNotFound for unknown addresses.
	GetAccount(ctx context.Context, address Address) (Account, error)
	History(ctx context.Context, address Address) ([]Transaction, error)
	Statistics(ctx context.Context) (Statistics, error)
	// Commit applies c atomically. A nil hook is allowed.
	Commit(ctx context.Context, c LedgerCommit, hook CommitHook) error
	// DrainFees resets the treasury to zero and returns the drained amount.
	DrainFees(ctx context.Context, drain FeeDrain) (uint256.Int, error)
}

// FundsTransfer moves value out of the bank to an external address.
type FundsTransfer interface {
	Transfer(ctx context.Context, to Address, amount uint256.Int) error
}
