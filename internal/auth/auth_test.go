package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestQRSecret_RoundTrip(t *testing.T) {
	hash, err := HashQRSecret("ticket-1001-1700000000000", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotContains(t, hash, "ticket-1001")

	assert.NoError(t, CompareQRSecret(hash, "ticket-1001-1700000000000"))
	assert.ErrorIs(t, CompareQRSecret(hash, "ticket-1001-1700000000001"), ErrQRSecretMismatch)
	assert.ErrorIs(t, CompareQRSecret(hash, ""), ErrQRSecretMismatch)
}

func TestQRSecret_RejectsBytesPastLimit(t *testing.T) {
	secret := strings.Repeat("a", MaxQRSecretLen)
	hash, err := HashQRSecret(secret, bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, CompareQRSecret(hash, secret))
	assert.ErrorIs(t, CompareQRSecret(hash, secret+"b"), ErrQRSecretMismatch)
	assert.ErrorIs(t, CompareQRSecret(hash, secret+"-other-value"), ErrQRSecretMismatch)
}

func TestQRSecret_BadCostFallsBack(t *testing.T) {
	hash, err := HashQRSecret("s", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken(RelaySubject)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, RelaySubject, claims.Subject)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpiredAndForeignAlg(t *testing.T) {
	tm := NewTokenManager("secret", 5)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   RelaySubject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: RelaySubject}})
	signed, err = hs512.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = tm.ParseToken(signed)
	assert.Error(t, err)
}
