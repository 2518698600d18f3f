package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/dtroode/smartbank-server/internal/model"
)

const challengeTemplate = "SmartBank Authentication\n\n" +
	"Please sign this message to authenticate your wallet.\n\n" +
	"Nonce: %s\n" +
	"Timestamp: %s\n" +
	"Expires: %s"

// ChallengeMessage renders the message a wallet signs for nonce n.
func ChallengeMessage(n model.Nonce) string {
	return fmt.Sprintf(challengeTemplate,
		n.Value,
		n.IssuedAt.UTC().Format(time.RFC3339),
		n.ExpiresAt.UTC().Format(time.RFC3339))
}

// MessageBindsNonce reports whether message carries nonce on its Nonce line.
func MessageBindsNonce(message, nonce string) bool {
	want := "Nonce: " + strings.ToLower(strings.TrimSpace(nonce))
	for _, line := range strings.Split(message, "\n") {
		if strings.ToLower(strings.TrimSpace(line)) == strings.ToLower(want) {
			return true
		}
	}
	return false
}
