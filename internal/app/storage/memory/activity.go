package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/activity"
)

func (s *Store) Append(ctx context.Context, l activity.Log) (activity.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	s.activityLogs[l.ID] = l
	return l, nil
}

func (s *Store) ListActivity(ctx context.Context, userID string, offset, limit int) ([]activity.Log, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []activity.Log
	for _, l := range s.activityLogs {
		if l.UserID == userID {
			matched = append(matched, l)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]activity.Log{}, matched[offset:end]...), total, nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, l := range s.activityLogs {
		if removed >= batchSize {
			break
		}
		if l.CreatedAt.Before(cutoff) {
			delete(s.activityLogs, id)
			removed++
		}
	}
	return removed, nil
}
