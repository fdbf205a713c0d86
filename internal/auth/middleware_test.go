package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func guardProbe() (http.Handler, *Principal) {
	captured := &Principal{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFrom(r.Context()); ok {
			*captured = p
		}
		w.WriteHeader(http.StatusOK)
	}), captured
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	now := time.Now().UTC()
	token := signTestToken(t, testSecret, jwt.MapClaims{
		"sub":   "user-123",
		"email": "alice@example.com",
		"iat":   now.Unix(),
		"exp":   now.Add(15 * time.Minute).Unix(),
		"typ":   "access",
	})

	probe, principal := guardProbe()
	req := httptest.NewRequest(http.MethodGet, "/wallets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Middleware(testSecret, probe).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if principal.UserID != "user-123" || principal.Email != "alice@example.com" {
		t.Fatalf("principal = %+v", principal)
	}
}

func TestMiddlewareRejections(t *testing.T) {
	now := time.Now().UTC()

	expired := signTestToken(t, testSecret, jwt.MapClaims{
		"sub": "user-123", "iat": now.Add(-time.Hour).Unix(),
		"exp": now.Add(-30 * time.Minute).Unix(), "typ": "access",
	})
	wrongSecret := signTestToken(t, "some-other-secret", jwt.MapClaims{
		"sub": "user-123", "iat": now.Unix(),
		"exp": now.Add(15 * time.Minute).Unix(), "typ": "access",
	})
	wrongType := signTestToken(t, testSecret, jwt.MapClaims{
		"sub": "user-123", "iat": now.Unix(),
		"exp": now.Add(15 * time.Minute).Unix(), "typ": "refresh",
	})
	noSubject := signTestToken(t, testSecret, jwt.MapClaims{
		"iat": now.Unix(), "exp": now.Add(15 * time.Minute).Unix(), "typ": "access",
	})

	cases := map[string]string{
		"no header":       "",
		"not bearer":      "Basic abc123",
		"empty token":     "Bearer ",
		"garbage token":   "Bearer not.a.jwt",
		"expired token":   "Bearer " + expired,
		"wrong secret":    "Bearer " + wrongSecret,
		"wrong type":      "Bearer " + wrongType,
		"missing subject": "Bearer " + noSubject,
	}

	for name, header := range cases {
		probe, _ := guardProbe()
		req := httptest.NewRequest(http.MethodGet, "/wallets", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()

		Middleware(testSecret, probe).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}
