package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/user"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestTokenManagerIssueAndValidate(t *testing.T) {
	mgr := NewTokenManager(testKey(t), "taskwarden", 15*time.Minute)
	u := user.User{ID: "user-1", Tier: user.TierPro}

	token, exp, err := mgr.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if exp.Before(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Tier != "pro" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenManagerValidateExpired(t *testing.T) {
	mgr := NewTokenManager(testKey(t), "taskwarden", -time.Minute)
	token, _, err := mgr.Issue(user.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = mgr.Validate(token)
	if err == nil {
		t.Fatal("expected expired token to fail validation")
	}
	if err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenManagerValidateWrongKeyRejected(t *testing.T) {
	mgr := NewTokenManager(testKey(t), "taskwarden", 15*time.Minute)
	token, _, err := mgr.Issue(user.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokenManager(testKey(t), "taskwarden", 15*time.Minute)
	if _, err := other.Validate(token); err == nil {
		t.Fatal("expected validation against a different key to fail")
	}
}

func TestJWKSExposesPublicKeyOnly(t *testing.T) {
	mgr := NewTokenManager(testKey(t), "taskwarden", 15*time.Minute)
	doc := mgr.JWKS()
	if len(doc.Keys) != 1 {
		t.Fatalf("expected one key, got %d", len(doc.Keys))
	}
	if doc.Keys[0].Kty != "RSA" || doc.Keys[0].Alg != "RS256" {
		t.Fatalf("unexpected jwk: %+v", doc.Keys[0])
	}
}
