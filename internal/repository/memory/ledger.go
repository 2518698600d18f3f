// Package memory provides process-local store implementations used when no
// database is configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/dtroode/smartbank-server/internal/model"
)

var (
	_ model.LedgerStore = (*LedgerRepository)(nil)
	_ model.EventOutbox = (*LedgerRepository)(nil)
)

type outboxEntry struct {
	event     model.Event
	published bool
}

// LedgerRepository keeps ledger state in maps guarded by one mutex. Commit hooks
// run outside the mutex; fees of in-flight commits are reserved so the treasury
// cannot overflow once the hook succeeds. Callers serialise commits per address.
type LedgerRepository struct {
	mu       sync.RWMutex
	accounts map[model.Address]model.Account
	history  map[model.Address][]model.Transaction
	fees     uint256.Int
	// reserved holds fee deltas of commits whose hook is still running.
	reserved uint256.Int
	// draining holds fees taken by a drain whose callback is still running.
	draining uint256.Int
	outbox   []outboxEntry

	drainMu sync.Mutex
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		accounts: make(map[model.Address]model.Account),
		history:  make(map[model.Address][]model.Transaction),
	}
}

func (r *LedgerRepository) GetAccount(_ context.Context, address model.Address) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[address]
	if !ok {
		return model.Account{}, model.ErrNotFound
	}
	return acc, nil
}

func (r *LedgerRepository) History(_ context.Context, address model.Address) ([]model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.history[address]), nil
}

func (r *LedgerRepository) Statistics(_ context.Context) (model.Statistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats model.Statistics
	for _, acc := range r.accounts {
		if _, overflow := stats.TotalHeld.AddOverflow(&stats.TotalHeld, &acc.Principal); overflow {
			return model.Statistics{}, model.ErrArithmeticOverflow
		}
	}
	// Fees being paid out stay collected until the drain completes.
	if _, overflow := stats.TotalFeesCollected.AddOverflow(&r.fees, &r.draining); overflow {
		return model.Statistics{}, model.ErrArithmeticOverflow
	}

	return stats, nil
}

// committed is the treasury including reservations and fees being drained.
func (r *LedgerRepository) committed() (uint256.Int, bool) {
	var total uint256.Int
	if _, overflow := total.AddOverflow(&r.fees, &r.reserved); overflow {
		return total, true
	}
	_, overflow := total.AddOverflow(&total, &r.draining)
	return total, overflow
}

func (r *LedgerRepository) reserve(delta uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	total, overflow := r.committed()
	if overflow {
		return model.ErrArithmeticOverflow
	}
	if _, overflow := total.AddOverflow(&total, &delta); overflow {
		return model.ErrArithmeticOverflow
	}
	r.reserved.Add(&r.reserved, &delta)
	return nil
}

func (r *LedgerRepository) Commit(ctx context.Context, c model.LedgerCommit, hook model.CommitHook) error {
	if err := r.reserve(c.FeeDelta); err != nil {
		return err
	}

	var hookErr error
	if hook != nil {
		hookErr = hook(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.reserved.Sub(&r.reserved, &c.FeeDelta)
	if hookErr != nil {
		return hookErr
	}

	r.accounts[c.Account.Address] = c.Account
	if len(c.Transactions) > 0 {
		r.history[c.Account.Address] = append(r.history[c.Account.Address], c.Transactions...)
	}
	r.fees.Add(&r.fees, &c.FeeDelta)
	r.appendEvents(c.Events)

	return nil
}

func (r *LedgerRepository) DrainFees(ctx context.Context, drain model.FeeDrain) (uint256.Int, error) {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	r.mu.Lock()
	amount := r.fees
	r.draining = amount
	r.fees.Clear()
	r.mu.Unlock()

	events, err := drain(ctx, amount)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.draining.Clear()
	if err != nil {
		r.fees.Add(&r.fees, &amount)
		return uint256.Int{}, err
	}
	r.appendEvents(events)

	return amount, nil
}

func (r *LedgerRepository) PendingEvents(_ context.Context, limit int) ([]model.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []model.Event
	for _, e := range r.outbox {
		if len(events) >= limit {
			break
		}
		if !e.published {
			events = append(events, e.event)
		}
	}
	return events, nil
}

func (r *LedgerRepository) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.outbox {
		if slices.Contains(ids, r.outbox[i].event.ID) {
			r.outbox[i].published = true
		}
	}

	// Published entries at the head are never read again.
	n := 0
	for n < len(r.outbox) && r.outbox[n].published {
		n++
	}
	r.outbox = r.outbox[n:]

	return nil
}

func (r *LedgerRepository) appendEvents(events []model.Event) {
	for _, e := range events {
		r.outbox = append(r.outbox, outboxEntry{event: e})
	}
}
