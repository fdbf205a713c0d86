package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) FindIdentityByEmail(ctx context.Context, email string) (Identity, error) {
	var identity Identity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_digest, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&identity.ID, &identity.Email, &identity.PasswordDigest, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("query user by email: %w", err)
	}

	return identity, nil
}

func (s *PostgresStore) FindIdentityByID(ctx context.Context, id string) (Identity, error) {
	var identity Identity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_digest, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&identity.ID, &identity.Email, &identity.PasswordDigest, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, fmt.Errorf("query user by id: %w", err)
	}

	return identity, nil
}

func (s *PostgresStore) CreateIdentity(ctx context.Context, identity Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_digest, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, identity.ID, identity.Email, identity.PasswordDigest, identity.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) GetLoginAttempt(ctx context.Context, email string) (LoginAttempt, error) {
	var attempt LoginAttempt
	attempt.Email = email

	var lockedUntil sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE email = $1
	`, email).Scan(&attempt.FailedAttempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attempt, nil
		}
		return LoginAttempt{}, fmt.Errorf("query login attempt: %w", err)
	}
	if lockedUntil.Valid {
		value := lockedUntil.Time.UTC()
		attempt.LockedUntil = &value
	}

	return attempt, nil
}

// RegisterFailedAttempt takes a row lock so the increment, the threshold
// check and the lockout write commit as one unit even under concurrent
// failed logins for the same email.
func (s *PostgresStore) RegisterFailedAttempt(ctx context.Context, email string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin login attempt tx: %w", err)
	}
	defer tx.Rollback()

	var failed int
	var lockedUntil sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT failed_attempts, locked_until
		FROM auth_login_attempts
		WHERE email = $1
		FOR UPDATE
	`, email).Scan(&failed, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			failed = 0
			lockedUntil = sql.NullTime{}
		} else {
			return nil, fmt.Errorf("lock login attempt row: %w", err)
		}
	}

	if lockedUntil.Valid && now.Before(lockedUntil.Time) {
		until := lockedUntil.Time.UTC()
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit existing lock tx: %w", err)
		}
		return &until, nil
	}

	failed++
	var nextLock *time.Time
	var nextLockValue any = nil
	if failed >= maxAttempts {
		until := now.UTC().Add(lockDuration)
		nextLock = &until
		nextLockValue = until
		failed = 0
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_login_attempts (email, failed_attempts, locked_until, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email)
		DO UPDATE SET
			failed_attempts = EXCLUDED.failed_attempts,
			locked_until = EXCLUDED.locked_until,
			updated_at = EXCLUDED.updated_at
	`, email, failed, nextLockValue, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("upsert failed login attempt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit login attempt tx: %w", err)
	}

	return nextLock, nil
}

func (s *PostgresStore) ResetLoginAttempt(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_login_attempts
		WHERE email = $1
	`, email)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}

	return nil
}

func (s *PostgresStore) CreateRefreshSession(ctx context.Context, userID, tokenDigest string, expiresAt time.Time) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate refresh session id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auth_refresh_sessions (id, user_id, token_digest, expires_at)
		VALUES ($1, $2, $3, $4)
	`, id.String(), userID, tokenDigest, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert refresh session: %w", err)
	}

	return nil
}

// RotateRefreshSession locks the old row before revoking it, so two
// rotations racing on the same digest resolve to exactly one winner: the
// loser re-reads a revoked row and gets ErrInvalidSession.
func (s *PostgresStore) RotateRefreshSession(ctx context.Context, oldDigest, newDigest string, newExpiresAt time.Time) (string, error) {
	newID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate refresh session id: %w", err)
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin rotation tx: %w", err)
	}
	defer tx.Rollback()

	var oldID string
	var userID string
	var expiresAt time.Time
	var revokedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, expires_at, revoked_at
		FROM auth_refresh_sessions
		WHERE token_digest = $1
		FOR UPDATE
	`, oldDigest).Scan(&oldID, &userID, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidSession
		}
		return "", fmt.Errorf("read refresh session: %w", err)
	}

	if revokedAt.Valid {
		return "", ErrInvalidSession
	}
	if now.After(expiresAt.UTC()) {
		return "", ErrSessionExpired
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO auth_refresh_sessions (id, user_id, token_digest, expires_at)
		VALUES ($1, $2, $3, $4)
	`, newID.String(), userID, newDigest, newExpiresAt.UTC())
	if err != nil {
		return "", fmt.Errorf("insert rotated refresh session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE auth_refresh_sessions
		SET revoked_at = $2, replaced_by = $3
		WHERE id = $1
	`, oldID, now, newID.String())
	if err != nil {
		return "", fmt.Errorf("revoke old refresh session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit rotation tx: %w", err)
	}

	return userID, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenDigest string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auth_refresh_sessions
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE token_digest = $1
	`, tokenDigest, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}

	return nil
}

func (s *PostgresStore) RevokeAllRefreshSessions(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auth_refresh_sessions
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE user_id = $1
	`, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke all refresh sessions: %w", err)
	}

	return nil
}

func (s *PostgresStore) CleanupStale(ctx context.Context, refreshRetention, attemptRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if refreshRetention <= 0 {
		refreshRetention = 14 * 24 * time.Hour
	}
	if attemptRetention <= 0 {
		attemptRetention = 30 * 24 * time.Hour
	}

	refreshCutoff := time.Now().UTC().Add(-refreshRetention)
	attemptCutoff := time.Now().UTC().Add(-attemptRetention)

	deletedSessions, err := s.deleteStaleRefreshSessions(ctx, refreshCutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	deletedAttempts, err := s.deleteStaleLoginAttempts(ctx, attemptCutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		DeletedRefreshSessions: deletedSessions,
		DeletedLoginAttempts:   deletedAttempts,
	}, nil
}

func (s *PostgresStore) deleteStaleRefreshSessions(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM auth_refresh_sessions
			WHERE expires_at < NOW() OR (revoked_at IS NOT NULL AND revoked_at < $1)
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM auth_refresh_sessions t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale refresh sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale refresh sessions rows affected: %w", err)
	}

	return affected, nil
}

func (s *PostgresStore) deleteStaleLoginAttempts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT email
			FROM auth_login_attempts
			WHERE updated_at < $1
			  AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY updated_at ASC
			LIMIT $2
		)
		DELETE FROM auth_login_attempts t
		USING stale
		WHERE t.email = stale.email
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale login attempts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale login attempts rows affected: %w", err)
	}

	return affected, nil
}
