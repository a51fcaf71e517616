package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/user"
)

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	if u.Tier == "" {
		u.Tier = user.TierFree
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, external_subject, email, display_name, avatar_url, timezone, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.ExternalSubject, u.Email, u.DisplayName, u.AvatarURL, u.Timezone, u.Tier, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, external_subject, email, display_name, avatar_url, timezone, tier, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

func (s *Store) GetUserByExternalSubject(ctx context.Context, subject string) (user.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, external_subject, email, display_name, avatar_url, timezone, tier, created_at, updated_at
		FROM users WHERE external_subject = $1
	`, subject))
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	existing, err := s.GetUser(ctx, u.ID)
	if err != nil {
		return user.User{}, err
	}
	u.ExternalSubject = existing.ExternalSubject
	u.Tier = existing.Tier
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, display_name = $3, avatar_url = $4, timezone = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Email, u.DisplayName, u.AvatarURL, u.Timezone, u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) SetTier(ctx context.Context, userID string, tier user.Tier) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET tier = $2, updated_at = $3 WHERE id = $1
	`, userID, tier, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.ExternalSubject, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Timezone, &u.Tier, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
