package handler

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/smartbank-server/internal/api/grpc/rpc"
	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
	"github.com/dtroode/smartbank-server/internal/service"
)

// AuthService defines wallet authentication and session operations.
type AuthService interface {
	RequestChallenge(ctx context.Context, address model.Address) (model.Challenge, error)
	Register(ctx context.Context, params service.RegisterParams) (service.AuthResult, error)
	Login(ctx context.Context, params service.LoginParams) (service.AuthResult, error)
	Logout(ctx context.Context, token string) error
	SessionStatus(ctx context.Context, token string) (model.SessionStatus, error)
	ExtendSession(ctx context.Context, token string) (model.Session, string, error)
}

var _ rpc.AuthServer = (*Auth)(nil)

// Auth handles the unauthenticated smartbank.Auth service.
type Auth struct {
	authService AuthService
	logger      *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, logger *logger.Logger) *Auth {
	return &Auth{
		authService: authService,
		logger:      logger,
	}
}

// RequestChallenge issues a nonce and the message the wallet must sign.
func (h *Auth) RequestChallenge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	address, err := requiredAddress(req, "address")
	if err != nil {
		return nil, handleError(err)
	}

	challenge, err := h.authService.RequestChallenge(ctx, address)
	if err != nil {
		h.logger.Error("Auth handler: challenge failed",
			"address", address,
			"error", err.Error())
		return nil, handleError(err)
	}

	return newStruct(map[string]any{
		"nonce":      challenge.Nonce,
		"message":    challenge.Message,
		"issued_at":  formatTime(challenge.IssuedAt),
		"expires_at": formatTime(challenge.ExpiresAt),
	})
}

// Register creates a profile from a signed challenge and opens a session.
func (h *Auth) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	params, err := signedFields(req)
	if err != nil {
		return nil, handleError(err)
	}

	result, err := h.authService.Register(ctx, service.RegisterParams{
		Address:      params.Address,
		Signature:    params.Signature,
		Message:      params.Message,
		Nonce:        params.Nonce,
		Username:     stringField(req, "username"),
		Email:        stringField(req, "email"),
		Role:         model.Role(stringField(req, "role")),
		SessionToken: stringField(req, "session_token"),
	})
	if err != nil {
		h.logger.Info("Auth handler: registration rejected",
			"address", params.Address,
			"error", err.Error())
		return nil, handleError(err)
	}

	return authResponse(result)
}

// Login verifies a signed challenge and opens a session.
func (h *Auth) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	params, err := signedFields(req)
	if err != nil {
		return nil, handleError(err)
	}

	result, err := h.authService.Login(ctx, params)
	if err != nil {
		h.logger.Info("Auth handler: login rejected",
			"address", params.Address,
			"error", err.Error())
		return nil, handleError(err)
	}

	return authResponse(result)
}

func (h *Auth) Logout(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	token, err := requiredString(req, "token")
	if err != nil {
		return nil, err
	}
	if err := h.authService.Logout(ctx, token); err != nil {
		return nil, handleError(err)
	}
	return &emptypb.Empty{}, nil
}

// SessionStatus never fails for unknown tokens; it reports them as invalid.
func (h *Auth) SessionStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := requiredString(req, "token")
	if err != nil {
		return nil, err
	}

	st, err := h.authService.SessionStatus(ctx, token)
	if err != nil {
		return nil, handleError(err)
	}

	return newStruct(map[string]any{
		"is_valid":               st.IsValid,
		"expires_at":             formatTime(st.ExpiresAt),
		"time_remaining_seconds": int64(st.TimeRemaining.Seconds()),
		"expiring_soon":          st.ExpiringSoon,
	})
}

func (h *Auth) ExtendSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := requiredString(req, "token")
	if err != nil {
		return nil, err
	}

	session, fresh, err := h.authService.ExtendSession(ctx, token)
	if err != nil {
		return nil, handleError(err)
	}

	return newStruct(map[string]any{
		"token":      fresh,
		"expires_at": formatTime(session.ExpiresAt),
	})
}

func signedFields(req *structpb.Struct) (service.LoginParams, error) {
	address, err := requiredAddress(req, "address")
	if err != nil {
		return service.LoginParams{}, err
	}
	var p service.LoginParams
	p.Address = address
	if p.Signature, err = requiredString(req, "signature"); err != nil {
		return service.LoginParams{}, err
	}
	if p.Message, err = requiredString(req, "message"); err != nil {
		return service.LoginParams{}, err
	}
	if p.Nonce, err = requiredString(req, "nonce"); err != nil {
		return service.LoginParams{}, err
	}
	return p, nil
}

func authResponse(r service.AuthResult) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		"token":       r.Token,
		"expires_at":  formatTime(r.Session.ExpiresAt),
		"is_new_user": r.IsNewUser,
		"profile":     profileValue(r.Profile),
	})
}
