package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"wallet-api/internal/secrets"
)

const (
	defaultAccessTTL   = 15 * time.Minute
	defaultRefreshTTL  = 30 * 24 * time.Hour
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
)

type Service struct {
	store        Store
	metrics      Metrics
	jwtSecret    []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	maxAttempts  int
	lockDuration time.Duration
}

func NewService(store Store, jwtSecret string) *Service {
	return &Service{
		store:        store,
		metrics:      NopMetrics{},
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    defaultAccessTTL,
		refreshTTL:   defaultRefreshTTL,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockWindow,
	}
}

func (s *Service) WithSecurityConfig(maxAttempts int, lockDuration, accessTTL, refreshTTL time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		s.refreshTTL = refreshTTL
	}
}

func (s *Service) WithMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

func (s *Service) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	attempt, err := s.store.GetLoginAttempt(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}
	if attempt.LockedUntil != nil && now.Before(*attempt.LockedUntil) {
		s.metrics.LoginAttempt("locked")
		return TokenPair{}, ErrLocked{Until: *attempt.LockedUntil}
	}

	identity, err := s.store.FindIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return TokenPair{}, s.failLogin(ctx, email, now)
		}
		return TokenPair{}, err
	}

	if !secrets.VerifyPassword(identity.PasswordDigest, password) {
		return TokenPair{}, s.failLogin(ctx, email, now)
	}

	if err := s.store.ResetLoginAttempt(ctx, email); err != nil {
		return TokenPair{}, err
	}

	pair, err := s.issueTokens(ctx, identity)
	if err != nil {
		return TokenPair{}, err
	}

	s.metrics.LoginAttempt("ok")
	return pair, nil
}

// failLogin records one failure and reports the outcome the caller must
// surface: Locked when this failure tripped the threshold, otherwise
// InvalidCredentials. Unknown emails take the same path as wrong
// passwords so the responses are indistinguishable.
func (s *Service) failLogin(ctx context.Context, email string, now time.Time) error {
	lockedUntil, err := s.store.RegisterFailedAttempt(ctx, email, s.maxAttempts, s.lockDuration, now)
	if err != nil {
		return err
	}
	if lockedUntil != nil {
		s.metrics.LoginAttempt("locked")
		return ErrLocked{Until: *lockedUntil}
	}
	s.metrics.LoginAttempt("invalid")
	return ErrInvalidCredentials
}

func (s *Service) Refresh(ctx context.Context, rawToken string) (TokenPair, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return TokenPair{}, ErrInvalidSession
	}

	newRaw, newDigest, err := secrets.NewRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	newExp := time.Now().UTC().Add(s.refreshTTL)
	userID, err := s.store.RotateRefreshSession(ctx, secrets.TokenDigest(rawToken), newDigest, newExp)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSession):
			s.metrics.Rotation("invalid")
		case errors.Is(err, ErrSessionExpired):
			s.metrics.Rotation("expired")
		}
		return TokenPair{}, err
	}

	identity, err := s.store.FindIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// Orphaned session; the owning user is gone.
			return TokenPair{}, ErrInvalidSession
		}
		return TokenPair{}, err
	}

	access, expiresIn, err := s.issueAccessToken(identity.ID, identity.Email)
	if err != nil {
		return TokenPair{}, err
	}

	s.metrics.Rotation("ok")
	return TokenPair{
		AccessToken:  access,
		RefreshToken: newRaw,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil
	}

	if err := s.store.RevokeRefreshSession(ctx, secrets.TokenDigest(rawToken)); err != nil {
		return err
	}

	s.metrics.Revocation()
	return nil
}

func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}

	if err := s.store.RevokeAllRefreshSessions(ctx, userID); err != nil {
		return err
	}

	s.metrics.Revocation()
	return nil
}

func (s *Service) Register(ctx context.Context, email, password string) (Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)

	id, err := uuid.NewV7()
	if err != nil {
		return Identity{}, fmt.Errorf("generate user id: %w", err)
	}

	digest, err := secrets.HashPassword(password)
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{
		ID:             id.String(),
		Email:          email,
		PasswordDigest: digest,
		CreatedAt:      time.Now().UTC(),
	}
	identity.UpdatedAt = identity.CreatedAt

	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		return Identity{}, err
	}

	return identity, nil
}

func (s *Service) issueTokens(ctx context.Context, identity Identity) (TokenPair, error) {
	access, expiresIn, err := s.issueAccessToken(identity.ID, identity.Email)
	if err != nil {
		return TokenPair{}, err
	}

	refreshRaw, refreshDigest, err := secrets.NewRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.CreateRefreshSession(ctx, identity.ID, refreshDigest, time.Now().UTC().Add(s.refreshTTL)); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refreshRaw,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

func (s *Service) issueAccessToken(userID, email string) (string, int64, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"typ": "access",
	}
	if email != "" {
		claims["email"] = email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, fmt.Errorf("sign jwt: %w", err)
	}

	return encoded, int64(s.accessTTL.Seconds()), nil
}
