package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// SessionConfig controls session lifetime.
type SessionConfig struct {
	Timeout          time.Duration
	RenewalThreshold time.Duration
}

// DefaultSessionConfig returns a 30 minute timeout with a 5 minute renewal threshold.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Timeout:          30 * time.Minute,
		RenewalThreshold: 5 * time.Minute,
	}
}

// SessionManager issues and validates sessions. The stored session is authoritative;
// tokens are signed lookup keys.
type SessionManager struct {
	cfg    SessionConfig
	store  model.SessionStore
	tokens model.TokenManager
	logger *logger.Logger
}

func NewSessionManager(
	cfg SessionConfig,
	store model.SessionStore,
	tokens model.TokenManager,
	logger *logger.Logger,
) *SessionManager {
	return &SessionManager{
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

// Start creates a session for address, replacing any earlier one.
func (m *SessionManager) Start(ctx context.Context, address model.Address, role model.Role, now time.Time) (model.Session, string, error) {
	s := model.Session{
		ID:        uuid.New(),
		Address:   address,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.Timeout),
	}

	token, err := m.tokens.Generate(s)
	if err != nil {
		return model.Session{}, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if err := m.store.Save(ctx, s); err != nil {
		return model.Session{}, "", fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Debug("Session manager: session started",
		"address", address,
		"role", role,
		"expires_at", s.ExpiresAt)

	return s, token, nil
}

// Validate returns the session behind token. Expired sessions are removed and
// reported as ErrSessionExpired.
func (m *SessionManager) Validate(ctx context.Context, token string, now time.Time) (model.Session, error) {
	id, err := m.tokens.Parse(token)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", model.ErrSessionInvalid, err)
	}

	s, err := m.store.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, model.ErrSessionInvalid
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	if !s.ValidAt(now) {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			m.logger.Warn("Session manager: failed to delete expired session",
				"session_id", s.ID,
				"error", err.Error())
		}
		return model.Session{}, model.ErrSessionExpired
	}

	return s, nil
}

// IsValid is Validate reduced to a bool.
func (m *SessionManager) IsValid(ctx context.Context, token string, now time.Time) bool {
	_, err := m.Validate(ctx, token, now)
	return err == nil
}

// Extend pushes the expiry of a live session to now plus the timeout and returns
// the session with a refreshed token. Expired sessions cannot be extended.
func (m *SessionManager) Extend(ctx context.Context, token string, now time.Time) (model.Session, string, error) {
	s, err := m.Validate(ctx, token, now)
	if err != nil {
		return model.Session{}, "", err
	}

	// Logout or a newer login may have landed since Validate.
	s, err = m.store.Extend(ctx, s.ID, now.Add(m.cfg.Timeout))
	if errors.Is(err, model.ErrNotFound) {
		return model.Session{}, "", model.ErrSessionInvalid
	}
	if err != nil {
		return model.Session{}, "", fmt.Errorf("failed to extend session: %w", err)
	}

	fresh, err := m.tokens.Generate(s)
	if err != nil {
		return model.Session{}, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	return s, fresh, nil
}

// Invalidate ends the session behind token. Unknown or malformed tokens are ignored.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	id, err := m.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Status reports the state of the session behind token. Invalid and expired
// sessions yield a zero status without an error.
func (m *SessionManager) Status(ctx context.Context, token string, now time.Time) (model.SessionStatus, error) {
	s, err := m.Validate(ctx, token, now)
	if errors.Is(err, model.ErrSessionInvalid) || errors.Is(err, model.ErrSessionExpired) {
		return model.SessionStatus{}, nil
	}
	if err != nil {
		return model.SessionStatus{}, err
	}

	return model.SessionStatus{
		IsValid:       true,
		ExpiresAt:     s.ExpiresAt,
		TimeRemaining: s.ExpiresAt.Sub(now),
		ExpiringSoon:  m.ExpiringSoon(s, now),
	}, nil
}

// ExpiringSoon reports whether a live session is within the renewal threshold.
func (m *SessionManager) ExpiringSoon(s model.Session, now time.Time) bool {
	return s.ValidAt(now) && s.ExpiresAt.Sub(now) <= m.cfg.RenewalThreshold
}
