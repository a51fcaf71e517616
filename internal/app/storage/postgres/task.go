package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Store) CreateTask(ctx context.Context, t task.Instance) (task.Instance, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, priority, due_date, estimated_minutes,
			focus_seconds, completed, completed_at, completed_by, hidden, archived, template_id,
			version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, t.ID, t.UserID, t.Title, t.Description, t.Priority, t.DueDate, t.EstimatedMinutes,
		t.FocusSeconds, t.Completed, t.CompletedAt, nullString(string(t.CompletedBy)), t.Hidden, t.Archived, t.TemplateID,
		t.Version, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Instance{}, err
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (task.Instance, error) {
	return scanTask(s.db.QueryRowContext(ctx, taskSelect+`WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Store) ListTasks(ctx context.Context, userID string, filter storage.TaskFilter) ([]task.Instance, int, error) {
	query := taskSelect + `WHERE user_id = $1
		AND ($2 OR NOT hidden)
		AND ($3 OR NOT archived)
		AND ($4::boolean IS NULL OR completed = $4)
		ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, userID, filter.IncludeHidden, filter.IncludeArchived, filter.Completed)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var all []task.Instance
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total := len(all)
	offset, limit := filter.Offset, filter.Limit
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]task.Instance{}, all[offset:end]...), total, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Instance) (task.Instance, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $3, description = $4, priority = $5, due_date = $6, estimated_minutes = $7,
			focus_seconds = $8, completed = $9, completed_at = $10, completed_by = $11,
			hidden = $12, archived = $13, version = version + 1, updated_at = $14
		WHERE id = $1 AND user_id = $2 AND version = $15
	`, t.ID, t.UserID, t.Title, t.Description, t.Priority, t.DueDate, t.EstimatedMinutes,
		t.FocusSeconds, t.Completed, t.CompletedAt, nullString(string(t.CompletedBy)),
		t.Hidden, t.Archived, now, t.Version)
	if err != nil {
		return task.Instance{}, err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := s.GetTask(ctx, t.UserID, t.ID); err != nil {
			return task.Instance{}, err
		}
		return task.Instance{}, errors.VersionConflict("task", t.ID)
	}
	return s.GetTask(ctx, t.UserID, t.ID)
}

func (s *Store) CountActiveTasks(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM tasks WHERE user_id = $1 AND NOT hidden
	`, userID).Scan(&count)
	return count, err
}

func (s *Store) DeleteTask(ctx context.Context, userID, id string) (task.Instance, []subtask.Subtask, []reminder.Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.Instance{}, nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTask(tx.QueryRowContext(ctx, taskSelect+`WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID))
	if err != nil {
		return task.Instance{}, nil, nil, err
	}

	subRows, err := tx.QueryContext(ctx, subtaskSelect+`WHERE task_id = $1 ORDER BY order_index`, id)
	if err != nil {
		return task.Instance{}, nil, nil, err
	}
	var subtasks []subtask.Subtask
	for subRows.Next() {
		st, err := scanSubtask(subRows)
		if err != nil {
			subRows.Close()
			return task.Instance{}, nil, nil, err
		}
		subtasks = append(subtasks, st)
	}
	subRows.Close()
	if err := subRows.Err(); err != nil {
		return task.Instance{}, nil, nil, err
	}

	remRows, err := tx.QueryContext(ctx, reminderSelect+`WHERE task_id = $1`, id)
	if err != nil {
		return task.Instance{}, nil, nil, err
	}
	var reminders []reminder.Reminder
	for remRows.Next() {
		r, err := scanReminder(remRows)
		if err != nil {
			remRows.Close()
			return task.Instance{}, nil, nil, err
		}
		reminders = append(reminders, r)
	}
	remRows.Close()
	if err := remRows.Err(); err != nil {
		return task.Instance{}, nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE task_id = $1`, id); err != nil {
		return task.Instance{}, nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = $1`, id); err != nil {
		return task.Instance{}, nil, nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return task.Instance{}, nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return task.Instance{}, nil, nil, err
	}
	return t, subtasks, reminders, nil
}

func (s *Store) RecreateTask(ctx context.Context, t task.Instance, subtasks []subtask.Subtask, reminders []reminder.Reminder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return errors.IDCollision("task", t.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, priority, due_date, estimated_minutes,
			focus_seconds, completed, completed_at, completed_by, hidden, archived, template_id,
			version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, t.ID, t.UserID, t.Title, t.Description, t.Priority, t.DueDate, t.EstimatedMinutes,
		t.FocusSeconds, t.Completed, t.CompletedAt, nullString(string(t.CompletedBy)), t.Hidden, t.Archived, t.TemplateID,
		t.Version, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return err
	}

	for _, st := range subtasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subtasks (id, task_id, title, completed, completed_at, order_index, source, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, st.ID, st.TaskID, st.Title, st.Completed, st.CompletedAt, st.OrderIndex, st.Source, st.CreatedAt, st.UpdatedAt)
		if err != nil {
			return err
		}
	}
	for _, r := range reminders {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reminders (id, task_id, user_id, type, offset_minutes, scheduled_at, method, fired, fired_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, r.ID, r.TaskID, r.UserID, r.Type, r.OffsetMinutes, r.ScheduledAt, r.Method, r.Fired, r.FiredAt, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ClearTemplateReference(ctx context.Context, templateID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET template_id = NULL, updated_at = $2 WHERE template_id = $1
	`, templateID, time.Now().UTC())
	return err
}

const taskSelect = `
	SELECT id, user_id, title, description, priority, due_date, estimated_minutes, focus_seconds,
		completed, completed_at, completed_by, hidden, archived, template_id, version, created_at, updated_at
	FROM tasks
`

func scanTask(row rowScanner) (task.Instance, error) {
	var (
		t           task.Instance
		completedBy sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &t.DueDate, &t.EstimatedMinutes,
		&t.FocusSeconds, &t.Completed, &t.CompletedAt, &completedBy, &t.Hidden, &t.Archived, &t.TemplateID,
		&t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return task.Instance{}, err
	}
	t.CompletedBy = task.CompletedBy(completedBy.String)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
