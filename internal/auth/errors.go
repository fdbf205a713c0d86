package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidSession covers unknown, revoked and rotated-away refresh
	// tokens alike, so a replayed token leaks nothing about why it failed.
	ErrInvalidSession = errors.New("invalid refresh session")

	ErrSessionExpired = errors.New("refresh session expired")

	ErrEmailTaken = errors.New("email already registered")
)

// ErrLocked is returned while an identity's lockout window is active,
// regardless of whether the presented password was correct.
type ErrLocked struct {
	Until time.Time
}

func (e ErrLocked) Error() string {
	return "account temporarily locked"
}
