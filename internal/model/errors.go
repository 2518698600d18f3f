package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Authentication errors.
var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrNonceInvalid      = errors.New("nonce invalid")
	ErrAlreadyRegistered = errors.New("address already registered")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidRole       = errors.New("invalid role")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionInvalid    = errors.New("session invalid")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidAddress    = errors.New("invalid address")
)

// Nonce consumption failures. Each one matches ErrNonceInvalid with errors.Is.
var (
	ErrNonceUnknown = fmt.Errorf("%w: unknown", ErrNonceInvalid)
	ErrNonceExpired = fmt.Errorf("%w: expired", ErrNonceInvalid)
	ErrNonceReused  = fmt.Errorf("%w: already used", ErrNonceInvalid)
)

// Ledger errors.
var (
	ErrBelowMinimumDeposit = errors.New("amount below minimum deposit")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
)
