package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/job"
)

func (s *Store) Enqueue(ctx context.Context, j job.Job) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.jobs[j.ID] = j
	return j, nil
}

// Claim simulates SELECT ... FOR UPDATE SKIP LOCKED: under the store's
// single mutex every claim is already serialized, so picking and marking
// rows in one critical section gives the same at-most-one-worker guarantee
// a real locked row scan would.
func (s *Store) Claim(ctx context.Context, workerID string, batchSize int) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []job.Job
	for _, j := range s.jobs {
		if j.Status == job.StatusPending && !j.ScheduledAt.After(time.Now().UTC()) {
			candidates = append(candidates, j)
		}
	}
	sort.Slice(candidates, func(i, j2 int) bool { return candidates[i].ScheduledAt.Before(candidates[j2].ScheduledAt) })
	if batchSize > 0 && len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}

	now := time.Now().UTC()
	claimed := make([]job.Job, 0, len(candidates))
	for _, j := range candidates {
		j.Status = job.StatusProcessing
		j.LockedAt = &now
		j.LockedBy = workerID
		j.Attempts++
		j.UpdatedAt = now
		s.jobs[j.ID] = j
		claimed = append(claimed, j)
	}
	return claimed, nil
}

func (s *Store) Complete(ctx context.Context, id string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	j.Status = job.StatusCompleted
	j.Result = result
	j.LockedAt = nil
	j.LockedBy = ""
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
	return nil
}

func (s *Store) Fail(ctx context.Context, id string, errMsg string, nextRetryAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	j.LastError = errMsg
	j.LockedAt = nil
	j.LockedBy = ""
	j.UpdatedAt = time.Now().UTC()
	if nextRetryAt != nil {
		j.Status = job.StatusPending
		j.ScheduledAt = *nextRetryAt
	} else {
		j.Status = job.StatusFailed
	}
	s.jobs[id] = j
	return nil
}

func (s *Store) DeadLetter(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	j.Status = job.StatusDead
	j.LastError = errMsg
	j.LockedAt = nil
	j.LockedBy = ""
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
	return nil
}

func (s *Store) Reset(ctx context.Context, id string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, sql.ErrNoRows
	}
	j.Status = job.StatusPending
	j.Attempts = 0
	j.LastError = ""
	j.LockedAt = nil
	j.LockedBy = ""
	j.ScheduledAt = time.Now().UTC()
	j.UpdatedAt = j.ScheduledAt
	s.jobs[id] = j
	return j, nil
}

func (s *Store) ReleaseStaleLocks(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for id, j := range s.jobs {
		if j.Status == job.StatusProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.Status = job.StatusPending
			j.LockedAt = nil
			j.LockedBy = ""
			j.UpdatedAt = time.Now().UTC()
			s.jobs[id] = j
			released++
		}
	}
	return released, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, sql.ErrNoRows
	}
	return j, nil
}

func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, limit int) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []job.Job
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j2 int) bool { return out[i].ScheduledAt.Before(out[j2].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
