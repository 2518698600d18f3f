package model

import (
	"context"
	"fmt"
	"time"
)

// Role is an authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Preferences are user interface settings stored with the profile.
type Preferences struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	Language      string `json:"language"`
}

// DefaultPreferences returns the settings assigned to new profiles.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:         "dark",
		Notifications: true,
		Language:      "en",
	}
}

// UserProfile is a registered address.
type UserProfile struct {
	Address     Address
	Username    string
	Email       string
	Role        Role
	Preferences Preferences
	CreatedAt   time.Time
	LastLoginAt time.Time
	UpdatedAt   time.Time
}

// ProfileUpdate holds the self-service fields of a profile. Nil fields are left unchanged.
type ProfileUpdate struct {
	Username    *string
	Email       *string
	Preferences *Preferences
}

// ProfileStore defines persistence operations for profiles.
type ProfileStore interface {
	// Create returns ErrAlreadyRegistered when the address exists.
	Create(ctx context.Context, profile UserProfile) error
	// GetByAddress returns ErrNotFound for unknown addresses.
	GetByAddress(ctx context.Context, address Address) (UserProfile, error)
	// Update replaces the stored profile except LastLoginAt. It returns ErrNotFound
	// for unknown addresses.
	Update(ctx context.Context, profile UserProfile) error
	// TouchLogin sets LastLoginAt alone. It returns ErrNotFound for unknown addresses.
	TouchLogin(ctx context.Context, address Address, at time.Time) error
	// Delete removes the profile of address; unknown addresses are ignored.
	Delete(ctx context.Context, address Address) error
}
