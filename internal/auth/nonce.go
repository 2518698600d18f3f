package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/dtroode/smartbank-server/internal/model"
)

const nonceSize = 32

// NonceConfig controls nonce validity and the size of the bookkeeping sets.
type NonceConfig struct {
	Window      time.Duration
	MaxPending  int
	MaxConsumed int
}

// DefaultNonceConfig returns a 30 minute window, 10000 pending and 1000 consumed entries.
func DefaultNonceConfig() NonceConfig {
	return NonceConfig{
		Window:      30 * time.Minute,
		MaxPending:  10_000,
		MaxConsumed: 1_000,
	}
}

// NonceRegistry issues single-use nonces and remembers which were consumed.
//
// A nonce is accepted only while it is pending. Consumption removes it from the
// pending set, so a value that later falls out of the bounded consumed set is
// rejected as unknown rather than accepted again.
type NonceRegistry struct {
	cfg    NonceConfig
	random io.Reader

	mu            sync.Mutex
	pending       map[string]model.Nonce
	pendingOrder  []string
	consumed      map[string]struct{}
	consumedOrder []string
}

// NewNonceRegistry validates cfg and creates an empty registry.
func NewNonceRegistry(cfg NonceConfig) (*NonceRegistry, error) {
	return newNonceRegistry(cfg, rand.Reader)
}

func newNonceRegistry(cfg NonceConfig, random io.Reader) (*NonceRegistry, error) {
	if cfg.MaxConsumed < 1 {
		return nil, errors.New("consumed nonce capacity must be at least 1")
	}
	if cfg.MaxPending < 1 {
		return nil, errors.New("pending nonce capacity must be at least 1")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("nonce window must be positive")
	}

	return &NonceRegistry{
		cfg:      cfg,
		random:   random,
		pending:  make(map[string]model.Nonce),
		consumed: make(map[string]struct{}),
	}, nil
}

// Issue generates a random nonce valid until now plus the window.
func (r *NonceRegistry) Issue(now time.Time) (model.Nonce, error) {
	buf := make([]byte, nonceSize)
	if _, err := io.ReadFull(r.random, buf); err != nil {
		return model.Nonce{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	n := model.Nonce{
		Value:     hexutil.Encode(buf),
		IssuedAt:  now,
		ExpiresAt: now.Add(r.cfg.Window),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[n.Value] = n
	r.pendingOrder = append(r.pendingOrder, n.Value)
	for len(r.pending) > r.cfg.MaxPending {
		r.evictOldestPending()
	}

	return n, nil
}

// IsUsed reports whether value is in the consumed set.
func (r *NonceRegistry) IsUsed(value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.consumed[normalizeNonce(value)]
	return ok
}

// Consume marks a pending nonce as used. It fails with ErrNonceReused, ErrNonceUnknown
// or ErrNonceExpired, all of which match ErrNonceInvalid.
func (r *NonceRegistry) Consume(value string, now time.Time) error {
	value = normalizeNonce(value)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.consumed[value]; ok {
		return model.ErrNonceReused
	}

	n, ok := r.pending[value]
	if !ok {
		return model.ErrNonceUnknown
	}

	delete(r.pending, value)
	if now.After(n.ExpiresAt) {
		return model.ErrNonceExpired
	}

	r.consumed[value] = struct{}{}
	r.consumedOrder = append(r.consumedOrder, value)
	for len(r.consumed) > r.cfg.MaxConsumed {
		oldest := r.consumedOrder[0]
		r.consumedOrder = r.consumedOrder[1:]
		delete(r.consumed, oldest)
	}

	return nil
}

// Sweep drops expired pending nonces and returns how many were removed.
func (r *NonceRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	kept := r.pendingOrder[:0]
	for _, v := range r.pendingOrder {
		n, ok := r.pending[v]
		if !ok {
			continue
		}
		if now.After(n.ExpiresAt) {
			delete(r.pending, v)
			removed++
			continue
		}
		kept = append(kept, v)
	}
	r.pendingOrder = kept

	return removed
}

// Len returns the sizes of the pending and consumed sets.
func (r *NonceRegistry) Len() (pending, consumed int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending), len(r.consumed)
}

func (r *NonceRegistry) evictOldestPending() {
	for len(r.pendingOrder) > 0 {
		oldest := r.pendingOrder[0]
		r.pendingOrder = r.pendingOrder[1:]
		if _, ok := r.pending[oldest]; ok {
			delete(r.pending, oldest)
			return
		}
	}
}

func normalizeNonce(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
