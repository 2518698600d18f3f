//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/smartbank-server/internal/model"
	repo "github.com/dtroode/smartbank-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "smartbank_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/smartbank_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func wei(s string) uint256.Int {
	v, err := model.ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.Ping(ctx))

	addr := model.MustParseAddress("0x8ba1f109551bd432803012645ac136ddd64dba72")
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ledger_repository", func(t *testing.T) {
		lr := repo.NewLedgerRepository(conn)

		_, err := lr.GetAccount(ctx, addr)
		require.ErrorIs(t, err, model.ErrNotFound)

		deposit := model.LedgerCommit{
			Account: model.Account{Address: addr, Principal: wei("1000000000000000000"), LastAccrualAt: t0, CreatedAt: t0},
			Transactions: []model.Transaction{
				{Kind: model.TransactionDeposit, Amount: wei("1000000000000000000"), Timestamp: t0},
			},
			Events: []model.Event{model.NewEvent(model.EventDeposit, addr, wei("1000000000000000000"), t0)},
		}
		require.NoError(t, lr.Commit(ctx, deposit, nil))

		t1 := t0.Add(365 * 24 * time.Hour)
		accrual := model.LedgerCommit{
			Account: model.Account{Address: addr, Principal: wei("1045000000000000000"), LastAccrualAt: t1, CreatedAt: t0},
			Transactions: []model.Transaction{
				{Kind: model.TransactionInterestPaid, Amount: wei("45000000000000000"), Timestamp: t1},
			},
			FeeDelta: wei("5000000000000000"),
		}
		require.NoError(t, lr.Commit(ctx, accrual, nil))

		acc, err := lr.GetAccount(ctx, addr)
		require.NoError(t, err)
		require.Equal(t, wei("1045000000000000000"), acc.Principal)
		require.Equal(t, t1, acc.LastAccrualAt)

		history, err := lr.History(ctx, addr)
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, model.TransactionInterestPaid, history[1].Kind)

		stats, err := lr.Statistics(ctx)
		require.NoError(t, err)
		require.Equal(t, wei("1045000000000000000"), stats.TotalHeld)
		require.Equal(t, wei("5000000000000000"), stats.TotalFeesCollected)

		// A failing hook rolls everything back.
		failed := accrual
		failed.Account.Principal = wei("1")
		err = lr.Commit(ctx, failed, func(context.Context) error { return errors.New("transfer failed") })
		require.Error(t, err)
		acc, err = lr.GetAccount(ctx, addr)
		require.NoError(t, err)
		require.Equal(t, wei("1045000000000000000"), acc.Principal)

		// Treasury overflow is rejected by the check constraint.
		maxAmount := new(uint256.Int).SetAllOne()
		overflow := accrual
		overflow.FeeDelta = *maxAmount
		require.ErrorIs(t, lr.Commit(ctx, overflow, nil), model.ErrArithmeticOverflow)

		drained, err := lr.DrainFees(ctx, func(_ context.Context, amount uint256.Int) ([]model.Event, error) {
			return []model.Event{model.NewEvent(model.EventFeesWithdrawn, addr, amount, t1)}, nil
		})
		require.NoError(t, err)
		require.Equal(t, wei("5000000000000000"), drained)

		stats, err = lr.Statistics(ctx)
		require.NoError(t, err)
		require.True(t, stats.TotalFeesCollected.IsZero())

		events, err := lr.PendingEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, model.EventDeposit, events[0].Kind)
		require.Equal(t, model.EventFeesWithdrawn, events[1].Kind)

		require.NoError(t, lr.MarkPublished(ctx, []uuid.UUID{events[0].ID}))
		events, err = lr.PendingEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
	})

	t.Run("hook_does_not_hold_treasury", func(t *testing.T) {
		lr := repo.NewLedgerRepository(conn)
		slow := model.MustParseAddress("0x00000000000000000000000000000000000000c1")
		fast := model.MustParseAddress("0x00000000000000000000000000000000000000c2")

		before, err := lr.Statistics(ctx)
		require.NoError(t, err)

		started := make(chan struct{})
		release := make(chan struct{})
		committed := make(chan error, 1)
		go func() {
			committed <- lr.Commit(ctx, model.LedgerCommit{
				Account:  model.Account{Address: slow, Principal: wei("1"), LastAccrualAt: t0, CreatedAt: t0},
				FeeDelta: wei("3"),
			}, func(context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		done := make(chan error, 1)
		go func() {
			done <- lr.Commit(ctx, model.LedgerCommit{
				Account:  model.Account{Address: fast, Principal: wei("1"), LastAccrualAt: t0, CreatedAt: t0},
				FeeDelta: wei("4"),
			}, nil)
		}()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			close(release)
			t.Fatal("fee-bearing commit waited for another commit's hook")
		}

		close(release)
		require.NoError(t, <-committed)

		after, err := lr.Statistics(ctx)
		require.NoError(t, err)
		var want uint256.Int
		want.Add(&before.TotalFeesCollected, uint256.NewInt(7))
		require.Equal(t, want, after.TotalFeesCollected)
	})

	t.Run("profile_repository", func(t *testing.T) {
		pr := repo.NewProfileRepository(conn)

		p := model.UserProfile{
			Address:     addr,
			Username:    "alice",
			Role:        model.RoleUser,
			Preferences: model.DefaultPreferences(),
			CreatedAt:   t0,
			LastLoginAt: t0,
			UpdatedAt:   t0,
		}
		require.NoError(t, pr.Create(ctx, p))
		require.ErrorIs(t, pr.Create(ctx, p), model.ErrAlreadyRegistered)

		got, err := pr.GetByAddress(ctx, addr)
		require.NoError(t, err)
		require.Equal(t, p, got)

		p.Email = "alice@example.com"
		p.Role = model.RoleAdmin
		p.Preferences.Theme = "light"
		require.NoError(t, pr.Update(ctx, p))

		got, err = pr.GetByAddress(ctx, addr)
		require.NoError(t, err)
		require.Equal(t, p, got)

		// Update never moves the login time.
		t1 := t0.Add(time.Hour)
		require.NoError(t, pr.TouchLogin(ctx, addr, t1))
		p.Username = "alice_2"
		require.NoError(t, pr.Update(ctx, p))
		got, err = pr.GetByAddress(ctx, addr)
		require.NoError(t, err)
		require.Equal(t, t1, got.LastLoginAt)
		require.Equal(t, "alice_2", got.Username)

		other := model.MustParseAddress("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		require.ErrorIs(t, pr.TouchLogin(ctx, other, t1), model.ErrNotFound)
		require.NoError(t, pr.Delete(ctx, other))
		_, err = pr.GetByAddress(ctx, other)
		require.ErrorIs(t, err, model.ErrNotFound)
		p.Address = other
		require.ErrorIs(t, pr.Update(ctx, p), model.ErrNotFound)

		require.NoError(t, pr.Delete(ctx, addr))
		_, err = pr.GetByAddress(ctx, addr)
		require.ErrorIs(t, err, model.ErrNotFound)
	})
}
