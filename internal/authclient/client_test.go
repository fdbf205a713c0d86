package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// fakeAuthServer mimics the server's cookie contract: login plants a
// refresh cookie, each refresh requires the current cookie and rotates it.
type fakeAuthServer struct {
	counter   atomic.Int64
	current   atomic.Value // string
	rejectAll atomic.Bool
}

func newFakeAuthServer(t *testing.T) (*httptest.Server, *fakeAuthServer) {
	t.Helper()

	fake := &fakeAuthServer{}
	fake.current.Store("")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		value := fmt.Sprintf("refresh-%d", fake.counter.Add(1))
		fake.current.Store(value)
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: value, Path: "/auth", HttpOnly: true})
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "access-initial"})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("refresh_token")
		if fake.rejectAll.Load() || err != nil || cookie.Value == "" || cookie.Value != fake.current.Load().(string) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		value := fmt.Sprintf("refresh-%d", fake.counter.Add(1))
		fake.current.Store(value)
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: value, Path: "/auth", HttpOnly: true})
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": fmt.Sprintf("access-%d", fake.counter.Load())})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		fake.current.Store("")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, fake
}

func TestClientLoginAndRenew(t *testing.T) {
	server, _ := newFakeAuthServer(t)

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx := context.Background()
	token, err := client.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "access-initial" {
		t.Fatalf("login token = %q", token)
	}

	// Each renewal rotates the jarred cookie; consecutive renewals work
	// because the jar keeps up with the rotation.
	first, err := client.Renew(ctx)
	if err != nil {
		t.Fatalf("first Renew: %v", err)
	}
	second, err := client.Renew(ctx)
	if err != nil {
		t.Fatalf("second Renew: %v", err)
	}
	if first == second {
		t.Fatal("renewals returned the same access token")
	}
}

func TestClientRenewRejected(t *testing.T) {
	server, fake := newFakeAuthServer(t)

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx := context.Background()
	if _, err := client.Login(ctx, "alice@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	fake.rejectAll.Store(true)
	if _, err := client.Renew(ctx); !errors.Is(err, ErrRenewalRejected) {
		t.Fatalf("err = %v, want ErrRenewalRejected", err)
	}
}

func TestClientRenewWithoutSession(t *testing.T) {
	server, _ := newFakeAuthServer(t)

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// No login, so no jarred cookie.
	if _, err := client.Renew(context.Background()); !errors.Is(err, ErrRenewalRejected) {
		t.Fatalf("err = %v, want ErrRenewalRejected", err)
	}
}

func TestCacheWithClientEndToEnd(t *testing.T) {
	server, _ := newFakeAuthServer(t)

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx := context.Background()
	if _, err := client.Login(ctx, "alice@example.com", "correct-horse-battery"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	cache := NewCache(client.Renew)
	defer cache.Close()

	token, err := cache.Renew(ctx)
	if err != nil {
		t.Fatalf("cache Renew: %v", err)
	}
	if token == "" || cache.AccessToken() != token {
		t.Fatalf("cache state inconsistent: %q vs %q", token, cache.AccessToken())
	}
}
