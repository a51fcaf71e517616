package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/template"
)

func (s *Store) CreateTemplate(ctx context.Context, t template.Template) (template.Template, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (id, user_id, title, description, recurrence_rule, next_due, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, t.ID, t.UserID, t.Title, t.Description, t.RecurrenceRule, t.NextDue, t.Active, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return template.Template{}, err
	}
	return t, nil
}

func (s *Store) GetTemplate(ctx context.Context, userID, id string) (template.Template, error) {
	return scanTemplate(s.db.QueryRowContext(ctx, templateSelect+`WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Store) ListTemplates(ctx context.Context, userID string) ([]template.Template, error) {
	rows, err := s.db.QueryContext(ctx, templateSelect+`WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTemplate(ctx context.Context, t template.Template) (template.Template, error) {
	existing, err := s.GetTemplate(ctx, t.UserID, t.ID)
	if err != nil {
		return template.Template{}, err
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE templates
		SET title = $3, description = $4, recurrence_rule = $5, next_due = $6, active = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2
	`, t.ID, t.UserID, t.Title, t.Description, t.RecurrenceRule, t.NextDue, t.Active, t.UpdatedAt)
	if err != nil {
		return template.Template{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return template.Template{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) DeleteTemplate(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) ListDueTemplates(ctx context.Context, asOf time.Time) ([]template.Template, error) {
	rows, err := s.db.QueryContext(ctx, templateSelect+`
		WHERE active AND next_due IS NOT NULL AND next_due <= $1
		ORDER BY next_due
	`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []template.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const templateSelect = `
	SELECT id, user_id, title, description, recurrence_rule, next_due, active, created_at, updated_at
	FROM templates
`

func scanTemplate(row rowScanner) (template.Template, error) {
	var t template.Template
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.RecurrenceRule, &t.NextDue, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return template.Template{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
