package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/activity"
)

func (s *Store) Append(ctx context.Context, l activity.Log) (activity.Log, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	extraJSON, err := json.Marshal(l.Extra)
	if err != nil {
		return activity.Log{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, entity_type, entity_id, action, source, extra, request_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, l.ID, l.UserID, l.EntityType, l.EntityID, l.Action, l.Source, extraJSON, l.RequestID, l.CreatedAt)
	if err != nil {
		return activity.Log{}, err
	}
	return l, nil
}

func (s *Store) ListActivity(ctx context.Context, userID string, offset, limit int) ([]activity.Log, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM activity_logs WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, entity_type, entity_id, action, source, extra, request_id, created_at
		FROM activity_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []activity.Log
	for rows.Next() {
		var (
			l        activity.Log
			extraRaw []byte
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.EntityType, &l.EntityID, &l.Action, &l.Source, &extraRaw, &l.RequestID, &l.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(extraRaw) > 0 {
			_ = json.Unmarshal(extraRaw, &l.Extra)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM activity_logs
		WHERE id IN (
			SELECT id FROM activity_logs WHERE created_at < $1 LIMIT $2
		)
	`, cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
