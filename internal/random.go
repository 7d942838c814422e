package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"time"
)

const (
	resetSecretSize = 32
	stateSecretSize = 32
)

// NewOpaqueToken returns size random bytes encoded as unpadded base64url.
func NewOpaqueToken(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewResetToken returns the raw value handed to the account owner by email.
func NewResetToken() (string, error) {
	return NewOpaqueToken(resetSecretSize)
}

// NewOAuthState returns an unguessable state value for an authorization redirect.
func NewOAuthState() (string, error) {
	return NewOpaqueToken(stateSecretSize)
}

// HashToken is the one-way digest persisted in place of refresh and reset
// tokens: lowercase hex SHA-256 of the exact wire string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RandomDelay returns a uniformly random duration in [min, max). It is used to
// blur response timing on enumeration-sensitive paths.
func RandomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	if err != nil {
		return min
	}
	return min + time.Duration(n.Int64())
}
