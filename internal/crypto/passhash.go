// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassword returns Argon2id hash of password using the provided salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword verifies password against expected Argon2id hash and salt.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// refreshTokenLen is the entropy of an opaque refresh token in bytes.
const refreshTokenLen = 32

// NewRefreshToken generates an opaque refresh token and returns the raw form
// (handed to the client once) and its sha256 hash (the only form persisted).
func NewRefreshToken() (raw string, hash []byte, err error) {
	b, err := RandBytes(refreshTokenLen)
	if err != nil {
		return "", nil, err
	}
	raw = hex.EncodeToString(b)
	return raw, HashRefreshToken(raw), nil
}

// HashRefreshToken maps a raw refresh token to its persisted hash.
func HashRefreshToken(raw string) []byte {
	h := sha256.Sum256([]byte(raw))
	return h[:]
}
