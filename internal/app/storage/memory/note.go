package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/note"
)

func (s *Store) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	s.notes[n.ID] = n
	return n, nil
}

func (s *Store) GetNote(ctx context.Context, userID, id string) (note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || n.UserID != userID {
		return note.Note{}, sql.ErrNoRows
	}
	return n, nil
}

func (s *Store) ListNotes(ctx context.Context, userID string, includeArchived bool, offset, limit int) ([]note.Note, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []note.Note
	for _, n := range s.notes {
		if n.UserID != userID {
			continue
		}
		if n.Archived && !includeArchived {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]note.Note{}, matched[offset:end]...), total, nil
}

func (s *Store) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.notes[n.ID]
	if !ok || existing.UserID != n.UserID {
		return note.Note{}, sql.ErrNoRows
	}
	n.CreatedAt = existing.CreatedAt
	n.UpdatedAt = time.Now().UTC()
	s.notes[n.ID] = n
	return n, nil
}

func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) CountActiveNotes(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notes {
		if n.UserID == userID && !n.Archived {
			count++
		}
	}
	return count, nil
}
