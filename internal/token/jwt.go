package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/smartbank-server/internal/model"
)

const typeSession = "session"

// Claims represents JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Address   string `json:"addr"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
//
// Expiry is carried in the token for clients but not enforced here. Callers check
// it against the stored session.
type JWT struct {
	secretKey []byte
}

var _ model.TokenManager = (*JWT)(nil)

// NewJWT creates a new JWT token manager with the provided secret key.
func NewJWT(secretKey string) (*JWT, error) {
	if secretKey == "" {
		return nil, errors.New("jwt secret key is empty")
	}
	return &JWT{secretKey: []byte(secretKey)}, nil
}

// Generate signs a token for the session.
func (j *JWT) Generate(session model.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   session.Address.String(),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Address:   session.Address.String(),
		Role:      string(session.Role),
		TokenType: typeSession,
	})

	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Parse verifies the signature and returns the session id.
func (j *JWT) Parse(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse session token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, errors.New("session token is invalid")
	}
	if claims.TokenType != typeSession {
		return uuid.Nil, fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id: %w", err)
	}
	return id, nil
}
