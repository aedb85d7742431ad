package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"math/big"
)

const refreshSecretSize = 32

// NewRefreshToken returns a base64url refresh token of 32 random bytes and its digest.
func NewRefreshToken() (string, [32]byte, error) {
	var secret [refreshSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", [32]byte{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(secret[:])
	return token, HashRefreshToken(token), nil
}

// HashRefreshToken is the digest stored in place of a refresh token.
func HashRefreshToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// NewVerificationToken returns a base64url token of n random bytes.
func NewVerificationToken(n int) (string, error) {
	if n < 16 {
		return "", errors.New("verification token must be at least 16 bytes")
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// RandomIndex returns a uniform integer in [0, max).
func RandomIndex(max int) (int, error) {
	if max <= 0 {
		return 0, errors.New("random index bound must be > 0")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// ConstantTimeEqual compares two strings without leaking the position of the first mismatch.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
