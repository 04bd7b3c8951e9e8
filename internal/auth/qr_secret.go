package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxQRSecretLen is the longest secret bcrypt can hash without truncation.
const MaxQRSecretLen = 72

// ErrQRSecretMismatch is returned when a presented secret does not match.
var ErrQRSecretMismatch = errors.New("qr secret mismatch")

// HashQRSecret hashes a ticket's QR secret with the configured cost.
func HashQRSecret(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareQRSecret verifies a presented secret against its stored hash.
// bcrypt ignores input past MaxQRSecretLen, so longer secrets never match.
func CompareQRSecret(hashed, presented string) error {
	if len(presented) > MaxQRSecretLen {
		return ErrQRSecretMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(presented))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrQRSecretMismatch
	}
	return err
}
