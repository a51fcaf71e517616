package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
)

func (s *Store) CreateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.reminders[r.ID] = r
	return r, nil
}

func (s *Store) GetReminder(ctx context.Context, id string) (reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return reminder.Reminder{}, sql.ErrNoRows
	}
	return r, nil
}

func (s *Store) ListRemindersForTask(ctx context.Context, taskID string) ([]reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reminder.Reminder
	for _, r := range s.reminders {
		if r.TaskID == taskID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *Store) UpdateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reminders[r.ID]
	if !ok {
		return reminder.Reminder{}, sql.ErrNoRows
	}
	r.CreatedAt = existing.CreatedAt
	r.TaskID = existing.TaskID
	r.UserID = existing.UserID
	r.UpdatedAt = time.Now().UTC()
	s.reminders[r.ID] = r
	return r, nil
}

func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.reminders, id)
	return nil
}

func (s *Store) CountForTask(ctx context.Context, taskID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.reminders {
		if r.TaskID == taskID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListDue(ctx context.Context, asOf time.Time, limit int) ([]reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []reminder.Reminder
	for _, r := range s.reminders {
		if !r.Fired && !r.ScheduledAt.After(asOf) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
