package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/tombstone"
)

func (s *Store) CreateTombstone(ctx context.Context, t tombstone.Tombstone) (tombstone.Tombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.DeletedAt.IsZero() {
		t.DeletedAt = time.Now().UTC()
	}
	s.tombstones[t.ID] = t
	return t, nil
}

func (s *Store) GetTombstone(ctx context.Context, userID, id string) (tombstone.Tombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tombstones[id]
	if !ok || t.UserID != userID {
		return tombstone.Tombstone{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) ListTombstones(ctx context.Context, userID string) ([]tombstone.Tombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tombstone.Tombstone
	for _, t := range s.tombstones {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt.Before(out[j].DeletedAt) })
	return out, nil
}

func (s *Store) DeleteTombstone(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tombstones[id]
	if !ok || t.UserID != userID {
		return sql.ErrNoRows
	}
	delete(s.tombstones, id)
	return nil
}

func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.tombstones {
		if t.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) OldestForUser(ctx context.Context, userID string) (tombstone.Tombstone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest tombstone.Tombstone
	found := false
	for _, t := range s.tombstones {
		if t.UserID != userID {
			continue
		}
		if !found || t.DeletedAt.Before(oldest.DeletedAt) {
			oldest = t
			found = true
		}
	}
	if !found {
		return tombstone.Tombstone{}, sql.ErrNoRows
	}
	return oldest, nil
}
