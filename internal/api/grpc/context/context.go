package context

import (
	"context"

	"github.com/dtroode/smartbank-server/internal/model"
)

// sessionKey is the context key under which the authenticated session is stored.
type sessionKey struct{}

// Manager stores and retrieves the authenticated session of a request.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetSessionToContext returns a copy of ctx carrying session.
func (m *Manager) SetSessionToContext(ctx context.Context, session model.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the session set by SetSessionToContext.
func (m *Manager) GetSessionFromContext(ctx context.Context) (model.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(model.Session)
	return session, ok
}
