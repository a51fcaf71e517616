package memory

import (
	"context"
	"database/sql"
	"time"
)

func (s *Store) CreateRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[tokenHash] = refreshTokenRow{UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (s *Store) GetActive(ctx context.Context, tokenHash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.refreshTokens[tokenHash]
	if !ok || row.Revoked || !row.ExpiresAt.After(time.Now().UTC()) {
		return "", sql.ErrNoRows
	}
	return row.UserID, nil
}

func (s *Store) Revoke(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.refreshTokens[tokenHash]
	if !ok {
		return sql.ErrNoRows
	}
	row.Revoked = true
	s.refreshTokens[tokenHash] = row
	return nil
}

func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, row := range s.refreshTokens {
		if row.UserID == userID {
			row.Revoked = true
			s.refreshTokens[hash] = row
		}
	}
	return nil
}
