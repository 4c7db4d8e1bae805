package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. N=16384, r=8, p=1 is the interactive-login cost level;
// the derived key is 64 bytes to match the stored digests of the existing
// Node deployments, so credential records are portable between them.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLen      = 16
)

// Password policy bounds, checked before any hashing work is done.
const (
	minPasswordLen = 8
	maxPasswordLen = 128
)

// ValidatePassword returns a user-facing message when the password violates
// the length policy, or "" when it is acceptable.
func ValidatePassword(password string) string {
	if len(password) < minPasswordLen {
		return "Password must be at least 8 characters."
	}
	if len(password) > maxPasswordLen {
		return "Password must be at most 128 characters."
	}
	return ""
}

// HashPassword derives a salted scrypt digest for the password. A fresh
// 16-byte salt is drawn from crypto/rand; both salt and digest are returned
// hex-encoded for storage.
func HashPassword(password string) (salt, hash string, err error) {
	raw := make([]byte, saltLen)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating salt: %w", err)
	}
	salt = hex.EncodeToString(raw)

	hash, err = deriveKey(password, salt)
	if err != nil {
		return "", "", err
	}
	return salt, hash, nil
}

// VerifyPassword re-derives the digest for the candidate password and
// compares it to the stored digest in constant time. Length mismatch (for
// example a truncated record) returns false rather than erroring.
func VerifyPassword(password, hash, salt string) bool {
	candidate, err := deriveKey(password, salt)
	if err != nil {
		return false
	}

	stored, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	computed, err := hex.DecodeString(candidate)
	if err != nil {
		return false
	}
	if len(stored) != len(computed) {
		return false
	}
	return subtle.ConstantTimeCompare(stored, computed) == 1
}

// deriveKey runs the scrypt KDF over (password, salt) with the fixed cost
// parameters and returns the hex digest.
func deriveKey(password, salt string) (string, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("deriving key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
