package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore implements Store for tests. A single mutex serializes every
// operation, which satisfies the same atomicity contract the Postgres
// implementation gets from row locks.
type memoryStore struct {
	mu         sync.Mutex
	identities map[string]Identity // by id
	byEmail    map[string]string   // email -> id
	attempts   map[string]LoginAttempt
	sessions   map[string]*RefreshSession // by token digest
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		identities: make(map[string]Identity),
		byEmail:    make(map[string]string),
		attempts:   make(map[string]LoginAttempt),
		sessions:   make(map[string]*RefreshSession),
	}
}

var _ Store = (*memoryStore)(nil)

func (m *memoryStore) FindIdentityByEmail(_ context.Context, email string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return m.identities[id], nil
}

func (m *memoryStore) FindIdentityByID(_ context.Context, id string) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.identities[id]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return identity, nil
}

func (m *memoryStore) CreateIdentity(_ context.Context, identity Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[identity.Email]; ok {
		return ErrEmailTaken
	}
	m.identities[identity.ID] = identity
	m.byEmail[identity.Email] = identity.ID
	return nil
}

func (m *memoryStore) GetLoginAttempt(_ context.Context, email string) (LoginAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempt, ok := m.attempts[email]
	if !ok {
		return LoginAttempt{Email: email}, nil
	}
	return attempt, nil
}

func (m *memoryStore) RegisterFailedAttempt(_ context.Context, email string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempt := m.attempts[email]
	attempt.Email = email

	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		until := *attempt.LockedUntil
		return &until, nil
	}

	attempt.FailedAttempts++
	var nextLock *time.Time
	if attempt.FailedAttempts >= maxAttempts {
		until := now.UTC().Add(lockDuration)
		nextLock = &until
		attempt.LockedUntil = &until
		attempt.FailedAttempts = 0
	}
	m.attempts[email] = attempt

	return nextLock, nil
}

func (m *memoryStore) ResetLoginAttempt(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.attempts, email)
	return nil
}

func (m *memoryStore) CreateRefreshSession(_ context.Context, userID, tokenDigest string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	m.sessions[tokenDigest] = &RefreshSession{
		ID:          id.String(),
		UserID:      userID,
		TokenDigest: tokenDigest,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (m *memoryStore) RotateRefreshSession(_ context.Context, oldDigest, newDigest string, newExpiresAt time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.sessions[oldDigest]
	if !ok || old.RevokedAt != nil {
		return "", ErrInvalidSession
	}
	now := time.Now().UTC()
	if now.After(old.ExpiresAt) {
		return "", ErrSessionExpired
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	m.sessions[newDigest] = &RefreshSession{
		ID:          id.String(),
		UserID:      old.UserID,
		TokenDigest: newDigest,
		ExpiresAt:   newExpiresAt,
		CreatedAt:   now,
	}
	old.RevokedAt = &now
	old.ReplacedBy = id.String()

	return old.UserID, nil
}

func (m *memoryStore) RevokeRefreshSession(_ context.Context, tokenDigest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[tokenDigest]; ok && session.RevokedAt == nil {
		now := time.Now().UTC()
		session.RevokedAt = &now
	}
	return nil
}

func (m *memoryStore) RevokeAllRefreshSessions(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, session := range m.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
		}
	}
	return nil
}

func (m *memoryStore) CleanupStale(_ context.Context, refreshRetention, attemptRetention time.Duration, _ int) (CleanupResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result CleanupResult
	now := time.Now().UTC()
	refreshCutoff := now.Add(-refreshRetention)
	for digest, session := range m.sessions {
		expired := now.After(session.ExpiresAt)
		longRevoked := session.RevokedAt != nil && session.RevokedAt.Before(refreshCutoff)
		if expired || longRevoked {
			delete(m.sessions, digest)
			result.DeletedRefreshSessions++
		}
	}

	return result, nil
}

// expireSession backdates a session's expiry so tests can exercise the
// expired-rotation path without sleeping.
func (m *memoryStore) expireSession(tokenDigest string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[tokenDigest]; ok {
		session.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	}
}
