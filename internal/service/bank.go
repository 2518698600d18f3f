package service

import (
	"context"
	"time"

	"github.com/holiman/uint256"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// Ledger is the subset of the ledger used by Bank.
type Ledger interface {
	Deposit(ctx context.Context, address model.Address, amount uint256.Int, now time.Time) (uint256.Int, error)
	Withdraw(ctx context.Context, address model.Address, amount uint256.Int, now time.Time) (uint256.Int, error)
	Balance(ctx context.Context, address model.Address, now time.Time) (uint256.Int, error)
	History(ctx context.Context, address model.Address) ([]model.Transaction, error)
	Statistics(ctx context.Context) (model.Statistics, error)
	WithdrawFees(ctx context.Context, caller model.Address, now time.Time) (uint256.Int, error)
}

// Bank exposes ledger operations to authenticated sessions. Mutations always act
// on the session's own address.
type Bank struct {
	ledger Ledger
	clock  func() time.Time
	logger *logger.Logger
}

func NewBank(ledger Ledger, clock func() time.Time, logger *logger.Logger) *Bank {
	if clock == nil {
		clock = time.Now
	}
	return &Bank{
		ledger: ledger,
		clock:  clock,
		logger: logger,
	}
}

func (b *Bank) Deposit(ctx context.Context, session model.Session, amount uint256.Int) (uint256.Int, error) {
	b.logger.Debug("Bank service: deposit requested",
		"session_id", session.ID,
		"address", session.Address,
		"amount", model.FormatUnits(amount))

	return b.ledger.Deposit(ctx, session.Address, amount, b.clock())
}

func (b *Bank) Withdraw(ctx context.Context, session model.Session, amount uint256.Int) (uint256.Int, error) {
	b.logger.Debug("Bank service: withdrawal requested",
		"session_id", session.ID,
		"address", session.Address,
		"amount", model.FormatUnits(amount))

	return b.ledger.Withdraw(ctx, session.Address, amount, b.clock())
}

// Balance returns the current balance of address, or of the caller when address is empty.
func (b *Bank) Balance(ctx context.Context, session model.Session, address model.Address) (uint256.Int, error) {
	return b.ledger.Balance(ctx, b.target(session, address), b.clock())
}

// History returns the transactions of address, or of the caller when address is empty.
func (b *Bank) History(ctx context.Context, session model.Session, address model.Address) ([]model.Transaction, error) {
	return b.ledger.History(ctx, b.target(session, address))
}

func (b *Bank) Statistics(ctx context.Context, _ model.Session) (model.Statistics, error) {
	return b.ledger.Statistics(ctx)
}

func (b *Bank) WithdrawFees(ctx context.Context, session model.Session) (uint256.Int, error) {
	return b.ledger.WithdrawFees(ctx, session.Address, b.clock())
}

func (b *Bank) target(session model.Session, address model.Address) model.Address {
	if address == "" {
		return session.Address
	}
	return address
}
