package auth

import (
	"context"
	"errors"
	"time"
)

// Store is the persistence collaborator the auth core depends on. The
// service never talks to the database directly; everything flows through
// this interface so tests can substitute an in-memory implementation.
//
// Atomicity requirements on implementations:
//   - RegisterFailedAttempt performs the increment, the threshold check
//     and the lockout write as one logical update. Concurrent failures
//     for the same email must never observe a half-applied state.
//   - RotateRefreshSession has single-winner semantics: of two concurrent
//     rotations presenting the same digest, exactly one succeeds and the
//     other gets ErrInvalidSession.
type Store interface {
	FindIdentityByEmail(ctx context.Context, email string) (Identity, error)
	FindIdentityByID(ctx context.Context, id string) (Identity, error)
	CreateIdentity(ctx context.Context, identity Identity) error

	GetLoginAttempt(ctx context.Context, email string) (LoginAttempt, error)
	// RegisterFailedAttempt records one failure. When the incremented count
	// reaches maxAttempts it sets locked_until = now + lockDuration, resets
	// the counter and returns the lock time; otherwise it returns nil.
	// An already-active lock is returned as-is without counting.
	RegisterFailedAttempt(ctx context.Context, email string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLoginAttempt(ctx context.Context, email string) error

	CreateRefreshSession(ctx context.Context, userID, tokenDigest string, expiresAt time.Time) error
	// RotateRefreshSession revokes the session matching oldDigest and
	// inserts its successor in one transaction, returning the owner's id.
	RotateRefreshSession(ctx context.Context, oldDigest, newDigest string, newExpiresAt time.Time) (string, error)
	// RevokeRefreshSession is idempotent; revoking an unknown or already
	// revoked digest is not an error.
	RevokeRefreshSession(ctx context.Context, tokenDigest string) error
	RevokeAllRefreshSessions(ctx context.Context, userID string) error

	CleanupStale(ctx context.Context, refreshRetention, attemptRetention time.Duration, batchSize int) (CleanupResult, error)
}

// ErrIdentityNotFound is what FindIdentityByEmail reports for an unknown
// email. Part of the Store contract, not the service's outward taxonomy.
var ErrIdentityNotFound = errors.New("identity not found")

type CleanupResult struct {
	DeletedRefreshSessions int64 `json:"deleted_refresh_sessions"`
	DeletedLoginAttempts   int64 `json:"deleted_login_attempts"`
}
