package model

import "github.com/google/uuid"

// TokenManager issues and parses opaque session tokens.
type TokenManager interface {
	Generate(session Session) (string, error)
	// Parse returns the session id carried by a token with a valid signature.
	Parse(token string) (uuid.UUID, error)
}
