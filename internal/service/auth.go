package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dtroode/smartbank-server/internal/auth"
	"github.com/dtroode/smartbank-server/internal/logger"
	"github.com/dtroode/smartbank-server/internal/model"
)

// AuthConfig controls registration policy.
type AuthConfig struct {
	// AutoProvision creates a minimal profile when an unregistered address logs in.
	AutoProvision bool
	// BootstrapAdmins are granted the admin role when they register.
	BootstrapAdmins []model.Address
}

// RegisterParams is a signed registration request.
type RegisterParams struct {
	Address   model.Address
	Signature string
	Message   string
	Nonce     string
	Username  string
	Email     string
	Role      model.Role
	// SessionToken optionally authorizes granting the admin role.
	SessionToken string
}

// LoginParams is a signed login request.
type LoginParams struct {
	Address   model.Address
	Signature string
	Message   string
	Nonce     string
}

// AuthResult is returned by successful registration and login.
type AuthResult struct {
	Profile   model.UserProfile
	Session   model.Session
	Token     string
	IsNewUser bool
}

// Auth coordinates wallet-signature authentication, sessions and profiles.
type Auth struct {
	cfg      AuthConfig
	profiles model.ProfileStore
	nonces   *auth.NonceRegistry
	verifier *auth.Verifier
	sessions *auth.SessionManager
	clock    func() time.Time
	logger   *logger.Logger
}

func NewAuth(
	cfg AuthConfig,
	profiles model.ProfileStore,
	nonces *auth.NonceRegistry,
	verifier *auth.Verifier,
	sessions *auth.SessionManager,
	clock func() time.Time,
	logger *logger.Logger,
) *Auth {
	if clock == nil {
		clock = time.Now
	}
	return &Auth{
		cfg:      cfg,
		profiles: profiles,
		nonces:   nonces,
		verifier: verifier,
		sessions: sessions,
		clock:    clock,
		logger:   logger,
	}
}

// RequestChallenge issues a nonce and the message the wallet has to sign.
func (a *Auth) RequestChallenge(_ context.Context, address model.Address) (model.Challenge, error) {
	n, err := a.nonces.Issue(a.clock())
	if err != nil {
		a.logger.Error("Auth service: failed to issue nonce",
			"address", address,
			"error", err.Error())
		return model.Challenge{}, fmt.Errorf("failed to issue nonce: %w", err)
	}

	a.logger.Debug("Auth service: challenge issued",
		"address", address,
		"expires_at", n.ExpiresAt)

	return model.Challenge{
		Nonce:     n.Value,
		Message:   auth.ChallengeMessage(n),
		IssuedAt:  n.IssuedAt,
		ExpiresAt: n.ExpiresAt,
	}, nil
}

// Register creates a profile for a signed, not yet registered address and starts a session.
func (a *Auth) Register(ctx context.Context, params RegisterParams) (AuthResult, error) {
	now := a.clock()

	if err := a.consumeNonce(params.Address, params.Message, params.Nonce, now); err != nil {
		return AuthResult{}, err
	}

	// Registration is create-only: an existing address is rejected whatever the signature.
	_, err := a.profiles.GetByAddress(ctx, params.Address)
	if err == nil {
		a.logger.Info("Auth service: address already registered",
			"address", params.Address)
		return AuthResult{}, model.ErrAlreadyRegistered
	}
	if !errors.Is(err, model.ErrNotFound) {
		return AuthResult{}, fmt.Errorf("failed to get profile: %w", err)
	}

	if err := a.verifySignature(params.Address, params.Signature, params.Message); err != nil {
		return AuthResult{}, err
	}

	username, err := validateUsername(params.Username)
	if err != nil {
		return AuthResult{}, err
	}
	email, err := validateEmail(params.Email)
	if err != nil {
		return AuthResult{}, err
	}

	role, err := a.registrationRole(ctx, params, now)
	if err != nil {
		return AuthResult{}, err
	}

	profile := model.UserProfile{
		Address:     params.Address,
		Username:    username,
		Email:       email,
		Role:        role,
		Preferences: model.DefaultPreferences(),
		CreatedAt:   now,
		LastLoginAt: now,
		UpdatedAt:   now,
	}
	if err := a.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, model.ErrAlreadyRegistered) {
			return AuthResult{}, model.ErrAlreadyRegistered
		}
		a.logger.Error("Auth service: failed to create profile",
			"address", params.Address,
			"error", err.Error())
		return AuthResult{}, fmt.Errorf("failed to create profile: %w", err)
	}

	session, token, err := a.sessions.Start(ctx, profile.Address, profile.Role, now)
	if err != nil {
		a.discardProfile(ctx, profile.Address)
		return AuthResult{}, fmt.Errorf("failed to start session: %w", err)
	}

	a.logger.Info("Auth service: user registered",
		"address", profile.Address,
		"username", profile.Username,
		"role", profile.Role)

	return AuthResult{Profile: profile, Session: session, Token: token, IsNewUser: true}, nil
}

// Login authenticates a signed address and starts a session.
func (a *Auth) Login(ctx context.Context, params LoginParams) (AuthResult, error) {
	now := a.clock()

	if err := a.consumeNonce(params.Address, params.Message, params.Nonce, now); err != nil {
		return AuthResult{}, err
	}
	if err := a.verifySignature(params.Address, params.Signature, params.Message); err != nil {
		return AuthResult{}, err
	}

	isNew := false
	profile, err := a.profiles.GetByAddress(ctx, params.Address)
	switch {
	case errors.Is(err, model.ErrNotFound) && a.cfg.AutoProvision:
		profile, err = a.provision(ctx, params.Address, now)
		if err != nil {
			return AuthResult{}, err
		}
		isNew = true
	case errors.Is(err, model.ErrNotFound):
		a.logger.Info("Auth service: login for unregistered address",
			"address", params.Address)
		return AuthResult{}, model.ErrProfileNotFound
	case err != nil:
		return AuthResult{}, fmt.Errorf("failed to get profile: %w", err)
	default:
		err := a.profiles.TouchLogin(ctx, profile.Address, now)
		if errors.Is(err, model.ErrNotFound) {
			return AuthResult{}, model.ErrProfileNotFound
		}
		if err != nil {
			return AuthResult{}, fmt.Errorf("failed to update last login: %w", err)
		}
		profile.LastLoginAt = now
	}

	session, token, err := a.sessions.Start(ctx, profile.Address, profile.Role, now)
	if err != nil {
		if isNew {
			a.discardProfile(ctx, profile.Address)
		}
		return AuthResult{}, fmt.Errorf("failed to start session: %w", err)
	}

	a.logger.Info("Auth service: user logged in",
		"address", profile.Address,
		"new_user", isNew)

	return AuthResult{Profile: profile, Session: session, Token: token, IsNewUser: isNew}, nil
}

// Logout ends the session behind token. It is idempotent.
func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.sessions.Invalidate(ctx, token)
}

// Authenticate returns the live session behind token.
func (a *Auth) Authenticate(ctx context.Context, token string) (model.Session, error) {
	return a.sessions.Validate(ctx, token, a.clock())
}

// CheckRole reports whether token belongs to a live session with one of roles.
func (a *Auth) CheckRole(ctx context.Context, token string, roles ...model.Role) bool {
	s, err := a.sessions.Validate(ctx, token, a.clock())
	if err != nil {
		return false
	}
	return slices.Contains(roles, s.Role)
}

func (a *Auth) SessionStatus(ctx context.Context, token string) (model.SessionStatus, error) {
	return a.sessions.Status(ctx, token, a.clock())
}

func (a *Auth) ExtendSession(ctx context.Context, token string) (model.Session, string, error) {
	return a.sessions.Extend(ctx, token, a.clock())
}

// Profile returns the profile of address.
func (a *Auth) Profile(ctx context.Context, address model.Address) (model.UserProfile, error) {
	p, err := a.profiles.GetByAddress(ctx, address)
	if errors.Is(err, model.ErrNotFound) {
		return model.UserProfile{}, model.ErrProfileNotFound
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile changes the caller's own username, email or preferences.
func (a *Auth) UpdateProfile(ctx context.Context, session model.Session, update model.ProfileUpdate) (model.UserProfile, error) {
	p, err := a.Profile(ctx, session.Address)
	if err != nil {
		return model.UserProfile{}, err
	}

	if update.Username != nil {
		if p.Username, err = validateUsername(*update.Username); err != nil {
			return model.UserProfile{}, err
		}
	}
	if update.Email != nil {
		if p.Email, err = validateEmail(*update.Email); err != nil {
			return model.UserProfile{}, err
		}
	}
	if update.Preferences != nil {
		p.Preferences = *update.Preferences
	}
	p.UpdatedAt = a.clock()

	if err := a.profiles.Update(ctx, p); err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// SetRole changes the role of address. Only admins may call it; the new role
// applies from the target's next session.
func (a *Auth) SetRole(ctx context.Context, caller model.Session, address model.Address, role model.Role) (model.UserProfile, error) {
	if caller.Role != model.RoleAdmin {
		a.logger.Warn("Auth service: role change by non-admin",
			"caller", caller.Address,
			"target", address)
		return model.UserProfile{}, model.ErrUnauthorized
	}
	if _, err := model.ParseRole(string(role)); err != nil {
		return model.UserProfile{}, err
	}

	p, err := a.Profile(ctx, address)
	if err != nil {
		return model.UserProfile{}, err
	}

	p.Role = role
	p.UpdatedAt = a.clock()
	if err := a.profiles.Update(ctx, p); err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to update profile: %w", err)
	}

	a.logger.Info("Auth service: role changed",
		"caller", caller.Address,
		"target", address,
		"role", role)

	return p, nil
}

// consumeNonce burns the nonce before anything else is checked, so a failed
// attempt cannot be retried with it.
func (a *Auth) consumeNonce(address model.Address, message, nonce string, now time.Time) error {
	if err := a.nonces.Consume(nonce, now); err != nil {
		a.logger.Info("Auth service: nonce rejected",
			"address", address,
			"error", err.Error())
		return err
	}

	if !auth.MessageBindsNonce(message, nonce) {
		return fmt.Errorf("%w: message does not contain the nonce", model.ErrNonceInvalid)
	}
	return nil
}

func (a *Auth) verifySignature(address model.Address, signature, message string) error {
	if err := a.verifier.Verify(message, signature, address); err != nil {
		a.logger.Info("Auth service: signature rejected",
			"address", address,
			"error", err.Error())
		return err
	}

	return nil
}

func (a *Auth) registrationRole(ctx context.Context, params RegisterParams, now time.Time) (model.Role, error) {
	if slices.Contains(a.cfg.BootstrapAdmins, params.Address) {
		return model.RoleAdmin, nil
	}

	switch params.Role {
	case "", model.RoleUser:
		return model.RoleUser, nil
	case model.RoleAdmin:
		granter, err := a.sessions.Validate(ctx, params.SessionToken, now)
		if err != nil || granter.Role != model.RoleAdmin {
			return "", fmt.Errorf("%w: admin role requires an admin session", model.ErrUnauthorized)
		}
		return model.RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", model.ErrInvalidRole, params.Role)
	}
}

func (a *Auth) provision(ctx context.Context, address model.Address, now time.Time) (model.UserProfile, error) {
	profile := model.UserProfile{
		Address:     address,
		Username:    "user_" + string(address)[2:8],
		Role:        model.RoleUser,
		Preferences: model.DefaultPreferences(),
		CreatedAt:   now,
		LastLoginAt: now,
		UpdatedAt:   now,
	}
	if err := a.profiles.Create(ctx, profile); err != nil {
		return model.UserProfile{}, fmt.Errorf("failed to create profile: %w", err)
	}

	a.logger.Info("Auth service: profile provisioned on login",
		"address", address,
		"username", profile.Username)

	return profile, nil
}

// discardProfile removes a profile created by a call that then failed.
func (a *Auth) discardProfile(ctx context.Context, address model.Address) {
	if err := a.profiles.Delete(ctx, address); err != nil {
		a.logger.Error("Auth service: failed to remove profile after failed session start",
			"address", address,
			"error", err.Error())
	}
}
