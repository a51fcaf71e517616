package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/idempotency"
	apperrors "github.com/taskwarden/taskwarden/internal/errors"
	"github.com/lib/pq"
)

func (s *Store) GetIdempotencyKey(ctx context.Context, userID, key string) (idempotency.Key, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, user_id, path, body_hash, response_status, response_body, expires_at, created_at
		FROM idempotency_keys
		WHERE user_id = $1 AND key = $2
	`, userID, key)

	var k idempotency.Key
	if err := row.Scan(&k.Key, &k.UserID, &k.Path, &k.BodyHash, &k.ResponseStatus, &k.ResponseBody, &k.ExpiresAt, &k.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return idempotency.Key{}, false, nil
		}
		return idempotency.Key{}, false, err
	}
	k.ExpiresAt = k.ExpiresAt.UTC()
	k.CreatedAt = k.CreatedAt.UTC()
	return k, true, nil
}

func (s *Store) Save(ctx context.Context, k idempotency.Key) (idempotency.Key, error) {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, user_id, path, body_hash, response_status, response_body, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, k.Key, k.UserID, k.Path, k.BodyHash, k.ResponseStatus, k.ResponseBody, k.ExpiresAt, k.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return idempotency.Key{}, apperrors.IdempotencyConflict()
		}
		return idempotency.Key{}, err
	}
	return k, nil
}

func (s *Store) DeleteExpired(ctx context.Context, asOf time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, asOf)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
