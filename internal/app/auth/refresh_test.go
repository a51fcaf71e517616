package auth

import (
	"context"
	"testing"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
)

func TestRefreshServiceRotateConsumesOldToken(t *testing.T) {
	st := memory.New()
	svc := NewRefreshService(st.RefreshTokens, 7*24*time.Hour)

	token, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, next, err := svc.Rotate(context.Background(), token)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1, got %s", userID)
	}
	if next == token {
		t.Fatal("expected a distinct rotated token")
	}

	if _, _, err := svc.Rotate(context.Background(), token); err == nil {
		t.Fatal("expected the old token to be rejected after rotation")
	}

	if _, _, err := svc.Rotate(context.Background(), next); err != nil {
		t.Fatalf("expected the rotated token to still be valid: %v", err)
	}
}

func TestRefreshServiceRevokeAll(t *testing.T) {
	st := memory.New()
	svc := NewRefreshService(st.RefreshTokens, 7*24*time.Hour)

	token, err := svc.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.RevokeAll(context.Background(), "user-1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if _, _, err := svc.Rotate(context.Background(), token); err == nil {
		t.Fatal("expected revoked token to fail rotation")
	}
}
