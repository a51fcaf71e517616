package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Store) CreateSubtask(ctx context.Context, st subtask.Subtask) (subtask.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	s.subtasks[st.ID] = st
	return st, nil
}

func (s *Store) GetSubtask(ctx context.Context, id string) (subtask.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.subtasks[id]
	if !ok {
		return subtask.Subtask{}, sql.ErrNoRows
	}
	return st, nil
}

func (s *Store) ListSubtasks(ctx context.Context, taskID string) ([]subtask.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subtask.Subtask
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *Store) UpdateSubtask(ctx context.Context, st subtask.Subtask) (subtask.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subtasks[st.ID]
	if !ok {
		return subtask.Subtask{}, sql.ErrNoRows
	}
	st.CreatedAt = existing.CreatedAt
	st.TaskID = existing.TaskID
	st.UpdatedAt = time.Now().UTC()
	s.subtasks[st.ID] = st
	return st, nil
}

func (s *Store) DeleteSubtask(ctx context.Context, id string) (subtask.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.subtasks[id]
	if !ok {
		return subtask.Subtask{}, sql.ErrNoRows
	}
	delete(s.subtasks, id)

	for sid, sib := range s.subtasks {
		if sib.TaskID == st.TaskID && sib.OrderIndex > st.OrderIndex {
			sib.OrderIndex--
			sib.UpdatedAt = time.Now().UTC()
			s.subtasks[sid] = sib
		}
	}
	return st, nil
}

func (s *Store) ReorderSubtasks(ctx context.Context, taskID string, orderedIDs []string) ([]subtask.Subtask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]subtask.Subtask)
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			current[st.ID] = st
		}
	}
	if len(orderedIDs) != len(current) {
		return nil, errors.ValidationError("subtask_ids", "must be a permutation of the current subtask set")
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := current[id]; !ok || seen[id] {
			return nil, errors.ValidationError("subtask_ids", "must be a permutation of the current subtask set")
		}
		seen[id] = true
	}

	now := time.Now().UTC()
	out := make([]subtask.Subtask, 0, len(orderedIDs))
	for idx, id := range orderedIDs {
		st := current[id]
		st.OrderIndex = idx
		st.UpdatedAt = now
		s.subtasks[id] = st
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) CountSubtasks(ctx context.Context, taskID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, st := range s.subtasks {
		if st.TaskID == taskID {
			count++
		}
	}
	return count, nil
}
