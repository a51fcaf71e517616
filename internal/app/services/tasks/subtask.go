package tasks

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Service) CreateSubtask(ctx context.Context, userID string, tier user.Tier, taskID, title string, source subtask.Source) (subtask.Subtask, error) {
	t, err := s.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return subtask.Subtask{}, err
	}
	if t.Archived {
		return subtask.Subtask{}, errors.TaskArchived(taskID)
	}

	max := s.limits.subtaskBase(tier)
	count, err := s.subtasks.CountSubtasks(ctx, taskID)
	if err != nil {
		return subtask.Subtask{}, err
	}
	if count >= max {
		return subtask.Subtask{}, errors.LimitExceeded("subtask", max)
	}

	st, err := s.subtasks.CreateSubtask(ctx, subtask.Subtask{
		TaskID:     taskID,
		Title:      title,
		OrderIndex: count,
		Source:     source,
	})
	if err != nil {
		return subtask.Subtask{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeSubtaskCreated,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": taskID, "subtask_id": st.ID},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})
	return st, nil
}

func (s *Service) ListSubtasks(ctx context.Context, userID, taskID string) ([]subtask.Subtask, error) {
	if _, err := s.tasks.GetTask(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.subtasks.ListSubtasks(ctx, taskID)
}

func (s *Service) UpdateSubtaskTitle(ctx context.Context, userID, taskID, subtaskID, title string) (subtask.Subtask, error) {
	st, err := s.ownedSubtask(ctx, userID, taskID, subtaskID)
	if err != nil {
		return subtask.Subtask{}, err
	}
	st.Title = title
	return s.subtasks.UpdateSubtask(ctx, st)
}

// CompleteSubtask marks a subtask complete and emits SubtaskCompleted,
// whose standard handler checks whether the parent task should now
// auto-complete.
func (s *Service) CompleteSubtask(ctx context.Context, userID, taskID, subtaskID string) (subtask.Subtask, error) {
	st, err := s.ownedSubtask(ctx, userID, taskID, subtaskID)
	if err != nil {
		return subtask.Subtask{}, err
	}
	if st.Completed {
		return st, nil
	}
	now := time.Now().UTC()
	st.Completed = true
	st.CompletedAt = &now
	updated, err := s.subtasks.UpdateSubtask(ctx, st)
	if err != nil {
		return subtask.Subtask{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeSubtaskCompleted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": taskID, "subtask_id": subtaskID},
		Source:      event.SourceUser,
		OccurredAt:  now,
	})
	return updated, nil
}

func (s *Service) DeleteSubtask(ctx context.Context, userID, taskID, subtaskID string) error {
	if _, err := s.ownedSubtask(ctx, userID, taskID, subtaskID); err != nil {
		return err
	}
	_, err := s.subtasks.DeleteSubtask(ctx, subtaskID)
	if err != nil {
		return err
	}
	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeSubtaskDeleted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": taskID, "subtask_id": subtaskID},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})
	return nil
}

// ReorderSubtasks assigns indices 0..N-1 from orderedIDs; the store
// rejects lists that aren't a permutation of the current subtask set.
func (s *Service) ReorderSubtasks(ctx context.Context, userID, taskID string, orderedIDs []string) ([]subtask.Subtask, error) {
	if _, err := s.tasks.GetTask(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.subtasks.ReorderSubtasks(ctx, taskID, orderedIDs)
}

// ownedSubtask fetches a subtask, verifying it belongs to taskID and that
// taskID belongs to userID, so cross-user access reports NOT_FOUND.
func (s *Service) ownedSubtask(ctx context.Context, userID, taskID, subtaskID string) (subtask.Subtask, error) {
	if _, err := s.tasks.GetTask(ctx, userID, taskID); err != nil {
		return subtask.Subtask{}, err
	}
	st, err := s.subtasks.GetSubtask(ctx, subtaskID)
	if err != nil {
		return subtask.Subtask{}, err
	}
	if st.TaskID != taskID {
		return subtask.Subtask{}, errors.NotFound("subtask", subtaskID)
	}
	return st, nil
}
