package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
)

func (s *Store) CreateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, task_id, user_id, type, offset_minutes, scheduled_at, method, fired, fired_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, r.ID, r.TaskID, r.UserID, r.Type, r.OffsetMinutes, r.ScheduledAt, r.Method, r.Fired, r.FiredAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return reminder.Reminder{}, err
	}
	return r, nil
}

func (s *Store) GetReminder(ctx context.Context, id string) (reminder.Reminder, error) {
	return scanReminder(s.db.QueryRowContext(ctx, reminderSelect+`WHERE id = $1`, id))
}

func (s *Store) ListRemindersForTask(ctx context.Context, taskID string) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, reminderSelect+`WHERE task_id = $1 ORDER BY scheduled_at`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	existing, err := s.GetReminder(ctx, r.ID)
	if err != nil {
		return reminder.Reminder{}, err
	}
	r.TaskID = existing.TaskID
	r.UserID = existing.UserID
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE reminders
		SET type = $2, offset_minutes = $3, scheduled_at = $4, method = $5, fired = $6, fired_at = $7, updated_at = $8
		WHERE id = $1
	`, r.ID, r.Type, r.OffsetMinutes, r.ScheduledAt, r.Method, r.Fired, r.FiredAt, r.UpdatedAt)
	if err != nil {
		return reminder.Reminder{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return reminder.Reminder{}, sql.ErrNoRows
	}
	return r, nil
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) CountForTask(ctx context.Context, taskID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM reminders WHERE task_id = $1`, taskID).Scan(&count)
	return count, err
}

func (s *Store) ListDue(ctx context.Context, asOf time.Time, limit int) ([]reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, reminderSelect+`
		WHERE NOT fired AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const reminderSelect = `
	SELECT id, task_id, user_id, type, offset_minutes, scheduled_at, method, fired, fired_at, created_at, updated_at
	FROM reminders
`

func scanReminder(row rowScanner) (reminder.Reminder, error) {
	var r reminder.Reminder
	if err := row.Scan(&r.ID, &r.TaskID, &r.UserID, &r.Type, &r.OffsetMinutes, &r.ScheduledAt, &r.Method, &r.Fired, &r.FiredAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return reminder.Reminder{}, err
	}
	r.ScheduledAt = r.ScheduledAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}
