package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/tombstone"
)

func (s *Store) CreateTombstone(ctx context.Context, t tombstone.Tombstone) (tombstone.Tombstone, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.DeletedAt.IsZero() {
		t.DeletedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tombstones (id, user_id, entity_type, entity_id, schema_version, payload, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, t.UserID, t.EntityType, t.EntityID, t.SchemaVersion, t.Payload, t.DeletedAt)
	if err != nil {
		return tombstone.Tombstone{}, err
	}
	return t, nil
}

func (s *Store) GetTombstone(ctx context.Context, userID, id string) (tombstone.Tombstone, error) {
	return scanTombstone(s.db.QueryRowContext(ctx, tombstoneSelect+`WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Store) ListTombstones(ctx context.Context, userID string) ([]tombstone.Tombstone, error) {
	rows, err := s.db.QueryContext(ctx, tombstoneSelect+`WHERE user_id = $1 ORDER BY deleted_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []tombstone.Tombstone
	for rows.Next() {
		t, err := scanTombstone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTombstone(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tombstones WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM tombstones WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (s *Store) OldestForUser(ctx context.Context, userID string) (tombstone.Tombstone, error) {
	return scanTombstone(s.db.QueryRowContext(ctx, tombstoneSelect+`
		WHERE user_id = $1 ORDER BY deleted_at LIMIT 1
	`, userID))
}

const tombstoneSelect = `
	SELECT id, user_id, entity_type, entity_id, schema_version, payload, deleted_at
	FROM tombstones
`

func scanTombstone(row rowScanner) (tombstone.Tombstone, error) {
	var t tombstone.Tombstone
	if err := row.Scan(&t.ID, &t.UserID, &t.EntityType, &t.EntityID, &t.SchemaVersion, &t.Payload, &t.DeletedAt); err != nil {
		return tombstone.Tombstone{}, err
	}
	t.DeletedAt = t.DeletedAt.UTC()
	return t, nil
}
