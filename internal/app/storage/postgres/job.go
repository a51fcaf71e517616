package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/job"
)

func (s *Store) Enqueue(ctx context.Context, j job.Job) (job.Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	j.Status = job.StatusPending
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, payload, status, scheduled_at, attempts, max_attempts,
			locked_at, locked_by, last_error, result, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, j.ID, j.Type, j.Payload, j.Status, j.ScheduledAt, j.Attempts, j.MaxAttempts,
		j.LockedAt, nullString(j.LockedBy), nullString(j.LastError), j.Result, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return job.Job{}, err
	}
	return j, nil
}

// Claim locks up to batchSize pending-and-due rows with SELECT ... FOR
// UPDATE SKIP LOCKED so concurrent workers never claim the same job, then
// marks them processing in the same transaction.
func (s *Store) Claim(ctx context.Context, workerID string, batchSize int) ([]job.Job, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, type, payload, status, scheduled_at, attempts, max_attempts,
			locked_at, locked_by, last_error, result, created_at, updated_at
		FROM jobs
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, job.StatusPending, time.Now().UTC(), batchSize)
	if err != nil {
		return nil, err
	}
	var claimed []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, j)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	now := time.Now().UTC()
	for i := range claimed {
		claimed[i].Status = job.StatusProcessing
		claimed[i].LockedAt = &now
		claimed[i].LockedBy = workerID
		claimed[i].Attempts++
		claimed[i].UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = $2, locked_at = $3, locked_by = $4, attempts = $5, updated_at = $6
			WHERE id = $1
		`, claimed[i].ID, claimed[i].Status, claimed[i].LockedAt, claimed[i].LockedBy, claimed[i].Attempts, claimed[i].UpdatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) Complete(ctx context.Context, id string, result []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $2, result = $3, locked_at = NULL, locked_by = '', updated_at = $4
		WHERE id = $1
	`, id, job.StatusCompleted, result, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) Fail(ctx context.Context, id string, errMsg string, nextRetryAt *time.Time) error {
	status := job.StatusFailed
	scheduledAt := time.Now().UTC()
	if nextRetryAt != nil {
		status = job.StatusPending
		scheduledAt = *nextRetryAt
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, last_error = $3, locked_at = NULL, locked_by = '', scheduled_at = $4, updated_at = $5
		WHERE id = $1
	`, id, status, errMsg, scheduledAt, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) DeadLetter(ctx context.Context, id string, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $2, last_error = $3, locked_at = NULL, locked_by = '', updated_at = $4
		WHERE id = $1
	`, id, job.StatusDead, errMsg, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) Reset(ctx context.Context, id string) (job.Job, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, attempts = 0, last_error = '', locked_at = NULL, locked_by = '', scheduled_at = $3, updated_at = $3
		WHERE id = $1
	`, id, job.StatusPending, now)
	if err != nil {
		return job.Job{}, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return job.Job{}, sql.ErrNoRows
	}
	return s.GetJob(ctx, id)
}

func (s *Store) ReleaseStaleLocks(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, locked_at = NULL, locked_by = '', updated_at = $2
		WHERE status = $3 AND locked_at < $4
	`, job.StatusPending, time.Now().UTC(), job.StatusProcessing, cutoff)
	if err != nil {
		return 0, err
	}
	rows, _ := res.RowsAffected()
	return int(rows), nil
}

func (s *Store) GetJob(ctx context.Context, id string) (job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, payload, status, scheduled_at, attempts, max_attempts,
			locked_at, locked_by, last_error, result, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return job.Job{}, sql.ErrNoRows
	}
	return j, err
}

func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, limit int) ([]job.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, status, scheduled_at, attempts, max_attempts,
			locked_at, locked_by, last_error, result, created_at, updated_at
		FROM jobs
		WHERE status = $1
		ORDER BY scheduled_at
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(row rowScanner) (job.Job, error) {
	var (
		j         job.Job
		lockedBy  sql.NullString
		lastError sql.NullString
	)
	if err := row.Scan(&j.ID, &j.Type, &j.Payload, &j.Status, &j.ScheduledAt, &j.Attempts, &j.MaxAttempts,
		&j.LockedAt, &lockedBy, &lastError, &j.Result, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return job.Job{}, err
	}
	j.LockedBy = lockedBy.String
	j.LastError = lastError.String
	j.ScheduledAt = j.ScheduledAt.UTC()
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	if j.LockedAt != nil {
		utc := j.LockedAt.UTC()
		j.LockedAt = &utc
	}
	return j, nil
}
