package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dtroode/smartbank-server/internal/model"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("%w: must be 3-20 letters, digits or underscores", model.ErrInvalidUsername)
	}
	return username, nil
}

// validateEmail accepts an empty address; email is optional.
func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil
	}
	if !emailPattern.MatchString(email) {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidEmail, email)
	}
	return email, nil
}
