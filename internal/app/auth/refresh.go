package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

// RefreshService issues and rotates opaque refresh tokens, storing only
// their SHA-256 hash server-side rather than the raw token.
type RefreshService struct {
	store storage.RefreshTokenStore
	ttl   time.Duration
}

func NewRefreshService(store storage.RefreshTokenStore, ttl time.Duration) *RefreshService {
	return &RefreshService{store: store, ttl: ttl}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue mints a new opaque refresh token for userID and stores its hash.
func (s *RefreshService) Issue(ctx context.Context, userID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, userID, hashToken(token), time.Now().UTC().Add(s.ttl)); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate validates a presented refresh token and, if active, revokes it and
// issues a replacement bound to the same user. Every refresh use rotates
// the token; reuse of a revoked token is itself a replay signal, though
// detecting and reacting to replay (revoking the whole chain) is left to
// the storage layer's audit trail rather than implemented here.
func (s *RefreshService) Rotate(ctx context.Context, presented string) (userID, next string, err error) {
	hash := hashToken(presented)
	userID, err = s.store.GetActive(ctx, hash)
	if err != nil {
		return "", "", errors.Unauthorized("invalid or expired refresh token")
	}
	if err := s.store.Revoke(ctx, hash); err != nil {
		return "", "", err
	}
	next, err = s.Issue(ctx, userID)
	if err != nil {
		return "", "", err
	}
	return userID, next, nil
}

// RevokeAll invalidates every refresh token for a user, used on logout.
func (s *RefreshService) RevokeAll(ctx context.Context, userID string) error {
	return s.store.RevokeAllForUser(ctx, userID)
}
