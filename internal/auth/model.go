package auth

import "time"

type Identity struct {
	ID             string
	Email          string
	PasswordDigest string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefreshSession backs one outstanding client login. Rows are revoked,
// never deleted in the request path; maintenance prunes them later.
type RefreshSession struct {
	ID          string
	UserID      string
	TokenDigest string
	ExpiresAt   time.Time
	RevokedAt   *time.Time
	ReplacedBy  string
	CreatedAt   time.Time
}

type LoginAttempt struct {
	Email          string
	FailedAttempts int
	LockedUntil    *time.Time
}

type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`

	// RefreshToken is the raw opaque value, handed to the client exactly
	// once via the refresh cookie. Never serialized in a JSON response.
	RefreshToken string `json:"-"`
}
