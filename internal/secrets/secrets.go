// Package secrets holds every cryptographic primitive the auth core uses.
// Nothing outside this package touches bcrypt, sha256 or crypto/rand.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// refreshTokenBytes is 256 bits of entropy per refresh token.
const refreshTokenBytes = 32

func HashPassword(raw string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

func VerifyPassword(digest, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(raw)) == nil
}

// NewRefreshToken returns a fresh opaque token and its storable digest.
// Only the digest may ever reach the database.
func NewRefreshToken() (raw string, digest string, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, TokenDigest(raw), nil
}

// TokenDigest recomputes the storable digest of a presented raw token.
func TokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
