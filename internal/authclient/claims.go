package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt decodes the token's public claims without verifying the
// signature; verification is the server's job. The zero time and false
// mean the token was not decodable.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

// IsExpired fails closed: an undecodable token counts as expired.
func IsExpired(token string) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return true
	}
	return !time.Now().Before(exp)
}
