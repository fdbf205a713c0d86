// Package authclient is the client half of the credential lifecycle: it
// caches the current access token, collapses concurrent renewals into a
// single upstream request, and renews ahead of expiry on a one-shot timer.
package authclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// renewAhead is how long before expiry a scheduled renewal fires.
const renewAhead = 5 * time.Minute

// RenewFunc performs one upstream credential renewal and returns the new
// access token.
type RenewFunc func(ctx context.Context) (string, error)

type Cache struct {
	renew RenewFunc

	mu        sync.Mutex
	token     string
	timer     *time.Timer
	observers []func()
	closed    bool

	flight singleflight.Group
}

func NewCache(renew RenewFunc) *Cache {
	return &Cache{renew: renew}
}

// OnAuthExpired registers an observer called once whenever a renewal
// fails and the cache logs itself out.
func (c *Cache) OnAuthExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Cache) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetAccessToken stores a freshly issued token (e.g. straight after
// login) and schedules its pre-expiry renewal.
func (c *Cache) SetAccessToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	c.ScheduleRenewal(token)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.token = ""
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

// Renew obtains a fresh access token. All callers overlapping one
// in-flight renewal receive that renewal's result; the flight marker is
// gone before a later call can start a new one. On failure the cache
// clears itself and signals OnAuthExpired observers — no retry loop.
func (c *Cache) Renew(ctx context.Context) (string, error) {
	// The upstream call always runs to completion even if the first
	// caller's context is canceled; other callers share its outcome.
	ctx = context.WithoutCancel(ctx)

	result, err, _ := c.flight.Do("renew", func() (any, error) {
		token, err := c.renew(ctx)
		if err != nil {
			c.expire()
			return "", err
		}

		c.mu.Lock()
		c.token = token
		c.mu.Unlock()

		c.ScheduleRenewal(token)
		return token, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// ScheduleRenewal arranges a one-shot renewal at expiry minus renewAhead,
// replacing any previously pending timer. A token already inside the
// renewal window renews immediately.
func (c *Cache) ScheduleRenewal(token string) {
	exp, ok := ExpiresAt(token)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}

	wait := time.Until(exp.Add(-renewAhead))
	if wait < 0 {
		wait = 0
	}
	c.timer = time.AfterFunc(wait, func() {
		_, _ = c.Renew(context.Background())
	})
}

// Close tears the cache down: pending timer stopped, token dropped. The
// cache must not be reused afterwards.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.token = ""
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

func (c *Cache) expire() {
	c.mu.Lock()
	c.token = ""
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	observers := make([]func(), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
