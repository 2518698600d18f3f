package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/smartbank-server/internal/model"
)

var now0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func newRegistry(t *testing.T, cfg NonceConfig) *NonceRegistry {
	t.Helper()
	r, err := NewNonceRegistry(cfg)
	require.NoError(t, err)
	return r
}

func TestNewNonceRegistry_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  NonceConfig
	}{
		{name: "zero consumed capacity", cfg: NonceConfig{Window: time.Minute, MaxPending: 1, MaxConsumed: 0}},
		{name: "zero pending capacity", cfg: NonceConfig{Window: time.Minute, MaxPending: 0, MaxConsumed: 1}},
		{name: "zero window", cfg: NonceConfig{MaxPending: 1, MaxConsumed: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewNonceRegistry(tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestNonceRegistry_Issue(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, DefaultNonceConfig())

	n, err := r.Issue(now0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(n.Value, "0x"))
	assert.Len(t, n.Value, 2+2*nonceSize)
	assert.Equal(t, now0, n.IssuedAt)
	assert.Equal(t, now0.Add(30*time.Minute), n.ExpiresAt)

	other, err := r.Issue(now0)
	require.NoError(t, err)
	assert.NotEqual(t, n.Value, other.Value)

	_, err = newNonceRegistryOrFail(t, failingReader{}).Issue(now0)
	require.Error(t, err)
}

func newNonceRegistryOrFail(t *testing.T, reader failingReader) *NonceRegistry {
	t.Helper()
	r, err := newNonceRegistry(DefaultNonceConfig(), reader)
	require.NoError(t, err)
	return r
}

func TestNonceRegistry_SingleUse(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, DefaultNonceConfig())
	n, err := r.Issue(now0)
	require.NoError(t, err)

	assert.False(t, r.IsUsed(n.Value))
	require.NoError(t, r.Consume(n.Value, now0.Add(time.Minute)))
	assert.True(t, r.IsUsed(n.Value))

	err = r.Consume(n.Value, now0.Add(2*time.Minute))
	require.ErrorIs(t, err, model.ErrNonceReused)
	require.ErrorIs(t, err, model.ErrNonceInvalid)

	// Case does not matter.
	assert.True(t, r.IsUsed(strings.ToUpper(n.Value)))
}

func TestNonceRegistry_Unknown(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, DefaultNonceConfig())
	err := r.Consume("0xdeadbeef", now0)
	require.ErrorIs(t, err, model.ErrNonceUnknown)
	require.ErrorIs(t, err, model.ErrNonceInvalid)
}

func TestNonceRegistry_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, DefaultNonceConfig())

	atExpiry, err := r.Issue(now0)
	require.NoError(t, err)
	require.NoError(t, r.Consume(atExpiry.Value, atExpiry.ExpiresAt))

	late, err := r.Issue(now0)
	require.NoError(t, err)
	err = r.Consume(late.Value, late.ExpiresAt.Add(time.Second))
	require.ErrorIs(t, err, model.ErrNonceExpired)
	require.ErrorIs(t, err, model.ErrNonceInvalid)

	// An expired nonce is gone; a retry is unknown.
	err = r.Consume(late.Value, now0)
	require.ErrorIs(t, err, model.ErrNonceUnknown)
}

func TestNonceRegistry_ConsumedSetIsBounded(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, NonceConfig{Window: time.Hour, MaxPending: 100, MaxConsumed: 2})

	var issued []model.Nonce
	for i := 0; i < 3; i++ {
		n, err := r.Issue(now0)
		require.NoError(t, err)
		issued = append(issued, n)
	}
	for _, n := range issued {
		require.NoError(t, r.Consume(n.Value, now0))
	}

	_, consumed := r.Len()
	assert.Equal(t, 2, consumed)
	assert.False(t, r.IsUsed(issued[0].Value))
	assert.True(t, r.IsUsed(issued[2].Value))

	// Evicted from the consumed set but still not replayable.
	err := r.Consume(issued[0].Value, now0)
	require.ErrorIs(t, err, model.ErrNonceInvalid)
}

func TestNonceRegistry_PendingSetIsBounded(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, NonceConfig{Window: time.Hour, MaxPending: 2, MaxConsumed: 10})

	first, err := r.Issue(now0)
	require.NoError(t, err)
	second, err := r.Issue(now0)
	require.NoError(t, err)
	require.NoError(t, r.Consume(second.Value, now0))
	third, err := r.Issue(now0)
	require.NoError(t, err)
	fourth, err := r.Issue(now0)
	require.NoError(t, err)

	pending, _ := r.Len()
	assert.Equal(t, 2, pending)

	require.ErrorIs(t, r.Consume(first.Value, now0), model.ErrNonceUnknown)
	require.NoError(t, r.Consume(third.Value, now0))
	require.NoError(t, r.Consume(fourth.Value, now0))
}

func TestNonceRegistry_Sweep(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, NonceConfig{Window: time.Minute, MaxPending: 10, MaxConsumed: 10})

	old, err := r.Issue(now0)
	require.NoError(t, err)
	fresh, err := r.Issue(now0.Add(50 * time.Second))
	require.NoError(t, err)

	assert.Equal(t, 1, r.Sweep(now0.Add(90*time.Second)))

	require.ErrorIs(t, r.Consume(old.Value, now0.Add(90*time.Second)), model.ErrNonceUnknown)
	require.NoError(t, r.Consume(fresh.Value, now0.Add(90*time.Second)))
}
