package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Nonce is a single-use challenge value.
type Nonce struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Challenge is the message a wallet is asked to sign.
type Challenge struct {
	Nonce     string
	Message   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session is a server-side authenticated session.
type Session struct {
	ID        uuid.UUID
	Address   Address
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the session is still usable at now.
func (s Session) ValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// SessionStatus is a point-in-time view of a session.
type SessionStatus struct {
	IsValid       bool
	ExpiresAt     time.Time
	TimeRemaining time.Duration
	ExpiringSoon  bool
}

// SessionStore persists sessions. At most one session exists per address.
type SessionStore interface {
	// Save stores s and removes any other session of the same address.
	Save(ctx context.Context, s Session) error
	// Get returns ErrNotFound when the session does not exist.
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	// Extend moves the expiry of a stored session. It returns ErrNotFound when the
	// session is gone or no longer the current session of its address.
	Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) (Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
