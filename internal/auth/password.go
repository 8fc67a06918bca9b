// Package auth provides password hashing and JWT issuance/verification.
// It is self-contained: no persistence and no HTTP concerns, only the
// cryptographic primitives the services layer composes into login flows.
package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt refuses inputs longer than 72 bytes. Longer passwords are condensed
// to a SHA-256 hex digest (64 bytes) first, so arbitrary lengths round-trip
// through HashPassword and CheckPassword consistently.
func condense(password string) []byte {
	b := []byte(password)
	if len(b) <= 72 {
		return b
	}
	sum := sha256.Sum256(b)
	return []byte(hex.EncodeToString(sum[:]))
}

// HashPassword returns a bcrypt hash of the password at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(condense(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), condense(password)) == nil
}
