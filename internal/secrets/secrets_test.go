package secrets

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	digest, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if digest == "correct horse battery staple" {
		t.Fatal("digest must not equal the raw password")
	}
	if !VerifyPassword(digest, "correct horse battery staple") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(digest, "wrong password entirely") {
		t.Fatal("wrong password accepted")
	}
}

func TestNewRefreshToken(t *testing.T) {
	raw, digest, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("raw token length = %d, want 64 hex chars", len(raw))
	}
	if TokenDigest(raw) != digest {
		t.Fatal("digest does not match TokenDigest(raw)")
	}
	if raw == digest {
		t.Fatal("raw token must differ from its digest")
	}

	raw2, digest2, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if raw == raw2 || digest == digest2 {
		t.Fatal("two generated tokens collided")
	}
}
