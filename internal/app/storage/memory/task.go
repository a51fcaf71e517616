package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Store) CreateTask(ctx context.Context, t task.Instance) (task.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, userID, id string) (task.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return task.Instance{}, sql.ErrNoRows
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, userID string, filter storage.TaskFilter) ([]task.Instance, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []task.Instance
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if t.Hidden && !filter.IncludeHidden {
			continue
		}
		if t.Archived && !filter.IncludeArchived {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	total := len(matched)
	offset, limit := filter.Offset, filter.Limit
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]task.Instance{}, matched[offset:end]...), total, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Instance) (task.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[t.ID]
	if !ok || existing.UserID != t.UserID {
		return task.Instance{}, sql.ErrNoRows
	}
	if existing.Version != t.Version {
		return task.Instance{}, errors.VersionConflict("task", t.ID)
	}
	t.CreatedAt = existing.CreatedAt
	t.Version = existing.Version + 1
	t.UpdatedAt = time.Now().UTC()
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) CountActiveTasks(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.tasks {
		if t.UserID == userID && !t.Hidden {
			count++
		}
	}
	return count, nil
}

func (s *Store) DeleteTask(ctx context.Context, userID, id string) (task.Instance, []subtask.Subtask, []reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return task.Instance{}, nil, nil, sql.ErrNoRows
	}

	var subtasks []subtask.Subtask
	for sid, st := range s.subtasks {
		if st.TaskID == id {
			subtasks = append(subtasks, st)
			delete(s.subtasks, sid)
		}
	}
	sort.Slice(subtasks, func(i, j int) bool { return subtasks[i].OrderIndex < subtasks[j].OrderIndex })

	var reminders []reminder.Reminder
	for rid, rem := range s.reminders {
		if rem.TaskID == id {
			reminders = append(reminders, rem)
			delete(s.reminders, rid)
		}
	}

	delete(s.tasks, id)
	return t, subtasks, reminders, nil
}

func (s *Store) RecreateTask(ctx context.Context, t task.Instance, subtasks []subtask.Subtask, reminders []reminder.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return errors.IDCollision("task", t.ID)
	}
	s.tasks[t.ID] = t
	for _, st := range subtasks {
		s.subtasks[st.ID] = st
	}
	for _, rem := range reminders {
		s.reminders[rem.ID] = rem
	}
	return nil
}

func (s *Store) ClearTemplateReference(ctx context.Context, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.TemplateID != nil && *t.TemplateID == templateID {
			t.TemplateID = nil
			t.UpdatedAt = time.Now().UTC()
			s.tasks[id] = t
		}
	}
	return nil
}
