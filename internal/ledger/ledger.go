// Package ledger implements per-address balances with continuous interest accrual
// and a performance fee collected into the treasury.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
	"github.com/holiman/uint256"
)

// Config holds the ledger constants. They are fixed for the lifetime of a Ledger.
type Config struct {
	InterestRateBP   uint64
	PerformanceFeeBP uint64
	SecondsPerYear   uint64
	MinDeposit       uint256.Int
	TreasuryOwner    model.Address
	LockStripes      int
}

// DefaultConfig returns 5% annual interest, a 10% performance fee and a 0.001 unit minimum deposit.
func DefaultConfig(owner model.Address) Config {
	return Config{
		InterestRateBP:   500,
		PerformanceFeeBP: 1000,
		SecondsPerYear:   31_536_000,
		MinDeposit:       *uint256.NewInt(1_000_000_000_000_000),
		TreasuryOwner:    owner,
		LockStripes:      defaultLockStripes,
	}
}

func (c Config) validate() error {
	if c.SecondsPerYear == 0 {
		return errors.New("seconds per year must be positive")
	}
	if c.PerformanceFeeBP > basisPoints {
		return fmt.Errorf("performance fee %d bp exceeds %d", c.PerformanceFeeBP, basisPoints)
	}
	if c.TreasuryOwner == "" {
		return errors.New("treasury owner is required")
	}
	return nil
}

// Ledger is safe for concurrent use.
type Ledger struct {
	cfg      Config
	store    model.LedgerStore
	transfer model.FundsTransfer
	locks    *lockTable
	logger   *logger.Logger
}

func New(
	cfg Config,
	store model.LedgerStore,
	transfer model.FundsTransfer,
	logger *logger.Logger,
) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	return &Ledger{
		cfg:      cfg,
		store:    store,
		transfer: transfer,
		locks:    newLockTable(cfg.LockStripes),
		logger:   logger,
	}, nil
}

// Config returns the constants the ledger was built with.
func (l *Ledger) Config() Config {
	return l.cfg
}

// Accrue applies interest earned since the last accrual and returns the net amount credited.
// Unknown addresses earn nothing and are not created.
func (l *Ledger) Accrue(ctx context.Context, address model.Address, now time.Time) (uint256.Int, error) {
	unlock := l.locks.lock(address)
	defer unlock()

	acc, err := l.store.GetAccount(ctx, address)
	if errors.Is(err, model.ErrNotFound) {
		return uint256.Int{}, nil
	}
	if err != nil {
		return uint256.Int{}, fmt.Errorf("failed to get account: %w", err)
	}

	a, err := l.cfg.accrue(acc, now)
	if err != nil {
		return uint256.Int{}, err
	}
	if !a.changed {
		return uint256.Int{}, nil
	}

	if err := l.store.Commit(ctx, l.accrualCommit(a, now), nil); err != nil {
		l.logger.Error("Ledger: failed to commit accrual",
			"address", address,
			"error", err.Error())
		return uint256.Int{}, fmt.Errorf("failed to commit accrual: %w", err)
	}

	return a.net, nil
}

// Deposit credits amount after accruing interest and returns the new principal.
func (l *Ledger) Deposit(ctx context.Context, address model.Address, amount uint256.Int, now time.Time) (uint256.Int, error) {
	if amount.Lt(&l.cfg.MinDeposit) {
		return uint256.Int{}, fmt.Errorf("%w: %s < %s", model.ErrBelowMinimumDeposit,
			model.FormatUnits(amount), model.FormatUnits(l.cfg.MinDeposit))
	}

	unlock := l.locks.lock(address)
	defer unlock()

	acc, err := l.loadOrCreate(ctx, address, now)
	if err != nil {
		return uint256.Int{}, err
	}

	a, err := l.cfg.accrue(acc, now)
	if err != nil {
		return uint256.Int{}, err
	}

	c := l.accrualCommit(a, now)
	if _, overflow := c.Account.Principal.AddOverflow(&c.Account.Principal, &amount); overflow {
		return uint256.Int{}, model.ErrArithmeticOverflow
	}
	c.Transactions = append(c.Transactions, model.Transaction{
		Kind:      model.TransactionDeposit,
		Amount:    amount,
		Timestamp: now,
	})
	c.Events = append(c.Events, model.NewEvent(model.EventDeposit, address, amount, now))

	if err := l.store.Commit(ctx, c, nil); err != nil {
		l.logger.Error("Ledger: failed to commit deposit",
			"address", address,
			"error", err.Error())
		return uint256.Int{}, fmt.Errorf("failed to commit deposit: %w", err)
	}

	l.logger.Info("Ledger: deposit",
		"address", address,
		"amount", model.FormatUnits(amount),
		"balance", model.FormatUnits(c.Account.Principal))

	return c.Account.Principal, nil
}

// Withdraw debits amount after accruing interest, sends it to address and returns the new principal.
// When the balance is insufficient the accrual is still committed.
func (l *Ledger) Withdraw(ctx context.Context, address model.Address, amount uint256.Int, now time.Time) (uint256.Int, error) {
	if amount.IsZero() {
		return uint256.Int{}, fmt.Errorf("%w: withdrawal amount must be positive", model.ErrInvalidAmount)
	}

	unlock := l.locks.lock(address)
	defer unlock()

	acc, err := l.store.GetAccount(ctx, address)
	if errors.Is(err, model.ErrNotFound) {
		return uint256.Int{}, fmt.Errorf("%w: no account", model.ErrInsufficientBalance)
	}
	if err != nil {
		return uint256.Int{}, fmt.Errorf("failed to get account: %w", err)
	}

	a, err := l.cfg.accrue(acc, now)
	if err != nil {
		return uint256.Int{}, err
	}

	c := l.accrualCommit(a, now)
	if amount.Gt(&c.Account.Principal) {
		if a.changed {
			if err := l.store.Commit(ctx, c, nil); err != nil {
				return uint256.Int{}, fmt.Errorf("failed to commit accrual: %w", err)
			}
		}
		return uint256.Int{}, fmt.Errorf("%w: requested %s, available %s", model.ErrInsufficientBalance,
			model.FormatUnits(amount), model.FormatUnits(c.Account.Principal))
	}

	c.Account.Principal.Sub(&c.Account.Principal, &amount)
	c.Transactions = append(c.Transactions, model.Transaction{
		Kind:      model.TransactionWithdraw,
		Amount:    amount,
		Timestamp: now,
	})
	c.Events = append(c.Events, model.NewEvent(model.EventWithdraw, address, amount, now))

	err = l.store.Commit(ctx, c, func(ctx context.Context) error {
		return l.transfer.Transfer(ctx, address, amount)
	})
	if err != nil {
		l.logger.Error("Ledger: failed to commit withdrawal",
			"address", address,
			"amount", model.FormatUnits(amount),
			"error", err.Error())
		return uint256.Int{}, fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	l.logger.Info("Ledger: withdrawal",
		"address", address,
		"amount", model.FormatUnits(amount),
		"balance", model.FormatUnits(c.Account.Principal))

	return c.Account.Principal, nil
}

// Balance returns the principal the address would hold after accruing at now.
// It never mutates state; unknown addresses have a zero balance.
func (l *Ledger) Balance(ctx context.Context, address model.Address, now time.Time) (uint256.Int, error) {
	acc, err := l.store.GetAccount(ctx, address)
	if errors.Is(err, model.ErrNotFound) {
		return uint256.Int{}, nil
	}
	if err != nil {
		return uint256.Int{}, fmt.Errorf("failed to get account: %w", err)
	}

	a, err := l.cfg.accrue(acc, now)
	if err != nil {
		return uint256.Int{}, err
	}

	return a.account.Principal, nil
}

// History returns the transactions of address in insertion order.
func (l *Ledger) History(ctx context.Context, address model.Address) ([]model.Transaction, error) {
	txs, err := l.store.History(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return txs, nil
}

// Statistics returns the total principal held and the fees collected so far.
func (l *Ledger) Statistics(ctx context.Context) (model.Statistics, error) {
	stats, err := l.store.Statistics(ctx)
	if err != nil {
		return model.Statistics{}, fmt.Errorf("failed to get statistics: %w", err)
	}
	return stats, nil
}

// WithdrawFees sends the collected fees to the treasury owner and resets the treasury.
func (l *Ledger) WithdrawFees(ctx context.Context, caller model.Address, now time.Time) (uint256.Int, error) {
	if caller != l.cfg.TreasuryOwner {
		l.logger.Warn("Ledger: fee withdrawal by non-owner",
			"caller", caller)
		return uint256.Int{}, fmt.Errorf("%w: only the treasury owner can withdraw fees", model.ErrUnauthorized)
	}

	drained, err := l.store.DrainFees(ctx, func(ctx context.Context, amount uint256.Int) ([]model.Event, error) {
		if amount.IsZero() {
			return nil, nil
		}
		if err := l.transfer.Transfer(ctx, caller, amount); err != nil {
			return nil, err
		}
		return []model.Event{model.NewEvent(model.EventFeesWithdrawn, caller, amount, now)}, nil
	})
	if err != nil {
		l.logger.Error("Ledger: failed to withdraw fees",
			"error", err.Error())
		return uint256.Int{}, fmt.Errorf("failed to drain fees: %w", err)
	}

	if !drained.IsZero() {
		l.logger.Info("Ledger: fees withdrawn",
			"owner", caller,
			"amount", model.FormatUnits(drained))
	}

	return drained, nil
}

func (l *Ledger) loadOrCreate(ctx context.Context, address model.Address, now time.Time) (model.Account, error) {
	acc, err := l.store.GetAccount(ctx, address)
	if errors.Is(err, model.ErrNotFound) {
		ts := time.Unix(now.Unix(), 0).UTC()
		return model.Account{
			Address:       address,
			LastAccrualAt: ts,
			CreatedAt:     ts,
		}, nil
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// accrualCommit turns an accrual into a commit carrying the interest record when any was paid.
func (l *Ledger) accrualCommit(a accrual, now time.Time) model.LedgerCommit {
	c := model.LedgerCommit{
		Account:  a.account,
		FeeDelta: a.fee,
	}
	if !a.net.IsZero() {
		c.Transactions = append(c.Transactions, model.Transaction{
			Kind:      model.TransactionInterestPaid,
			Amount:    a.net,
			Timestamp: now,
		})
		c.Events = append(c.Events, model.NewEvent(model.EventInterestPaid, a.account.Address, a.net, now))
	}
	return c
}
