package middleware

import (
	"context"
	"errors"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// Authenticator resolves a bearer token to its live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.Session, error)
}

// Authenticate validates bearer session tokens and injects the session into context.
type Authenticate struct {
	authenticator  Authenticator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(authenticator Authenticator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{authenticator: authenticator, contextManager: contextManager, logger: logger}
}

// AuthFunc reads the "authorization: Bearer <token>" header and resolves the session.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	token, err := auth.AuthFromMD(ctx, "bearer")
	if err != nil {
		return nil, err
	}

	session, err := m.authenticator.Authenticate(ctx, token)
	switch {
	case errors.Is(err, model.ErrSessionExpired):
		return nil, status.Error(codes.Unauthenticated, "session expired")
	case err != nil:
		m.logger.Debug("Authenticate middleware: session rejected", "error", err.Error())
		return nil, status.Error(codes.Unauthenticated, "invalid session")
	}

	return m.contextManager.SetSessionToContext(ctx, session), nil
}
