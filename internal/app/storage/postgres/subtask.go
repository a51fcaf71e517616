package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Store) CreateSubtask(ctx context.Context, st subtask.Subtask) (subtask.Subtask, error) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtasks (id, task_id, title, completed, completed_at, order_index, source, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, st.ID, st.TaskID, st.Title, st.Completed, st.CompletedAt, st.OrderIndex, st.Source, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return subtask.Subtask{}, err
	}
	return st, nil
}

func (s *Store) GetSubtask(ctx context.Context, id string) (subtask.Subtask, error) {
	return scanSubtask(s.db.QueryRowContext(ctx, subtaskSelect+`WHERE id = $1`, id))
}

func (s *Store) ListSubtasks(ctx context.Context, taskID string) ([]subtask.Subtask, error) {
	rows, err := s.db.QueryContext(ctx, subtaskSelect+`WHERE task_id = $1 ORDER BY order_index`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []subtask.Subtask
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSubtask(ctx context.Context, st subtask.Subtask) (subtask.Subtask, error) {
	existing, err := s.GetSubtask(ctx, st.ID)
	if err != nil {
		return subtask.Subtask{}, err
	}
	st.TaskID = existing.TaskID
	st.CreatedAt = existing.CreatedAt
	st.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE subtasks
		SET title = $2, completed = $3, completed_at = $4, order_index = $5, updated_at = $6
		WHERE id = $1
	`, st.ID, st.Title, st.Completed, st.CompletedAt, st.OrderIndex, st.UpdatedAt)
	if err != nil {
		return subtask.Subtask{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return subtask.Subtask{}, sql.ErrNoRows
	}
	return st, nil
}

func (s *Store) DeleteSubtask(ctx context.Context, id string) (subtask.Subtask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return subtask.Subtask{}, err
	}
	defer func() { _ = tx.Rollback() }()

	st, err := scanSubtask(tx.QueryRowContext(ctx, subtaskSelect+`WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return subtask.Subtask{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks WHERE id = $1`, id); err != nil {
		return subtask.Subtask{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE subtasks SET order_index = order_index - 1
		WHERE task_id = $1 AND order_index > $2
	`, st.TaskID, st.OrderIndex); err != nil {
		return subtask.Subtask{}, err
	}
	if err := tx.Commit(); err != nil {
		return subtask.Subtask{}, err
	}
	return st, nil
}

func (s *Store) ReorderSubtasks(ctx context.Context, taskID string, orderedIDs []string) ([]subtask.Subtask, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, subtaskSelect+`WHERE task_id = $1 FOR UPDATE`, taskID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]subtask.Subtask)
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		existing[st.ID] = st
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderedIDs) != len(existing) {
		return nil, errors.ValidationError("subtask_ids", "must be a permutation of the current subtask set")
	}
	for _, id := range orderedIDs {
		if _, ok := existing[id]; !ok {
			return nil, errors.ValidationError("subtask_ids", "must be a permutation of the current subtask set")
		}
	}

	now := time.Now().UTC()
	out := make([]subtask.Subtask, 0, len(orderedIDs))
	for idx, id := range orderedIDs {
		st := existing[id]
		st.OrderIndex = idx
		st.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, `
			UPDATE subtasks SET order_index = $2, updated_at = $3 WHERE id = $1
		`, id, idx, now); err != nil {
			return nil, err
		}
		out = append(out, st)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountSubtasks(ctx context.Context, taskID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM subtasks WHERE task_id = $1`, taskID).Scan(&count)
	return count, err
}

const subtaskSelect = `
	SELECT id, task_id, title, completed, completed_at, order_index, source, created_at, updated_at
	FROM subtasks
`

func scanSubtask(row rowScanner) (subtask.Subtask, error) {
	var st subtask.Subtask
	if err := row.Scan(&st.ID, &st.TaskID, &st.Title, &st.Completed, &st.CompletedAt, &st.OrderIndex, &st.Source, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return subtask.Subtask{}, err
	}
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}
