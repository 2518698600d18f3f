package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/smartbank-server/internal/model"
)

var (
	_ model.LedgerStore = (*LedgerRepository)(nil)
	_ model.EventOutbox = (*LedgerRepository)(nil)
)

type LedgerRepository struct {
	db *Connection
}

func NewLedgerRepository(db *Connection) *LedgerRepository {
	return &LedgerRepository{
		db: db,
	}
}

func (r *LedgerRepository) GetAccount(ctx context.Context, address model.Address) (model.Account, error) {
	query := `
		SELECT principal::text, last_accrual_at, created_at
		FROM accounts
		WHERE address = $1`

	var (
		principal string
		acc       = model.Account{Address: address}
	)
	err := r.db.QueryRow(ctx, query, address.String()).Scan(&principal, &acc.LastAccrualAt, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}

	if acc.Principal, err = parseNumeric(principal); err != nil {
		return model.Account{}, err
	}
	acc.LastAccrualAt = acc.LastAccrualAt.UTC()
	acc.CreatedAt = acc.CreatedAt.UTC()

	return acc, nil
}

func (r *LedgerRepository) History(ctx context.Context, address model.Address) ([]model.Transaction, error) {
	query := `
		SELECT kind, amount::text, created_at
		FROM transactions
		WHERE address = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, address.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var (
			tx     model.Transaction
			amount string
		)
		if err := rows.Scan(&tx.Kind, &amount, &tx.Timestamp); err != nil {
			return nil, err
		}
		if tx.Amount, err = parseNumeric(amount); err != nil {
			return nil, err
		}
		tx.Timestamp = tx.Timestamp.UTC()
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

func (r *LedgerRepository) Statistics(ctx context.Context) (model.Statistics, error) {
	query := `
		SELECT
			(SELECT COALESCE(SUM(principal), 0)::text FROM accounts),
			(SELECT total_fees::text FROM treasury)`

	var held, fees string
	if err := r.db.QueryRow(ctx, query).Scan(&held, &fees); err != nil {
		return model.Statistics{}, err
	}

	var (
		stats model.Statistics
		err   error
	)
	if stats.TotalHeld, err = parseNumeric(held); err != nil {
		return model.Statistics{}, err
	}
	if stats.TotalFeesCollected, err = parseNumeric(fees); err != nil {
		return model.Statistics{}, err
	}
	return stats, nil
}

func (r *LedgerRepository) Commit(ctx context.Context, c model.LedgerCommit, hook model.CommitHook) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO accounts (address, principal, last_accrual_at, created_at)
		VALUES ($1, $2::numeric, $3, $4)
		ON CONFLICT (address) DO UPDATE
		SET principal = EXCLUDED.principal, last_accrual_at = EXCLUDED.last_accrual_at`,
		c.Account.Address.String(), c.Account.Principal.Dec(), c.Account.LastAccrualAt, c.Account.CreatedAt)

	for _, t := range c.Transactions {
		batch.Queue(`
			INSERT INTO transactions (address, kind, amount, created_at)
			VALUES ($1, $2, $3::numeric, $4)`,
			c.Account.Address.String(), string(t.Kind), t.Amount.Dec(), t.Timestamp)
	}

	queueEvents(batch, c.Events)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isPgError(err, pgCheckViolation) {
			return model.ErrArithmeticOverflow
		}
		return fmt.Errorf("failed to write ledger commit: %w", err)
	}

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	// The treasury row is shared by every account; lock it only after the hook
	// and just before commit.
	if !c.FeeDelta.IsZero() {
		_, err := tx.Exec(ctx, `UPDATE treasury SET total_fees = total_fees + $1::numeric`, c.FeeDelta.Dec())
		if isPgError(err, pgCheckViolation) {
			return model.ErrArithmeticOverflow
		}
		if err != nil {
			return fmt.Errorf("failed to update treasury: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepository) DrainFees(ctx context.Context, drain model.FeeDrain) (uint256.Int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var fees string
	if err := tx.QueryRow(ctx, `SELECT total_fees::text FROM treasury FOR UPDATE`).Scan(&fees); err != nil {
		return uint256.Int{}, fmt.Errorf("failed to lock treasury: %w", err)
	}
	amount, err := parseNumeric(fees)
	if err != nil {
		return uint256.Int{}, err
	}

	events, err := drain(ctx, amount)
	if err != nil {
		return uint256.Int{}, err
	}

	batch := &pgx.Batch{}
	batch.Queue(`UPDATE treasury SET total_fees = 0`)
	queueEvents(batch, events)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return uint256.Int{}, fmt.Errorf("failed to reset treasury: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uint256.Int{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return amount, nil
}

func (r *LedgerRepository) PendingEvents(ctx context.Context, limit int) ([]model.Event, error) {
	query := `
		SELECT id, kind, address, amount::text, occurred_at
		FROM ledger_events
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			e       model.Event
			id      string
			address string
			amount  string
		)
		if err := rows.Scan(&id, &e.Kind, &address, &amount, &e.Timestamp); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse event id: %w", err)
		}
		if e.Amount, err = parseNumeric(amount); err != nil {
			return nil, err
		}
		e.Address = model.Address(address)
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}

	return events, rows.Err()
}

func (r *LedgerRepository) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}

	_, err := r.db.Exec(ctx,
		`UPDATE ledger_events SET published_at = $2 WHERE id = ANY($1::uuid[]) AND published_at IS NULL`,
		strIDs, time.Now().UTC())
	return err
}

func queueEvents(batch *pgx.Batch, events []model.Event) {
	for _, e := range events {
		batch.Queue(`
			INSERT INTO ledger_events (id, kind, address, amount, occurred_at)
			VALUES ($1::uuid, $2, $3, $4::numeric, $5)`,
			e.ID.String(), string(e.Kind), e.Address.String(), e.Amount.Dec(), e.Timestamp)
	}
}
