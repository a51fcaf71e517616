package tasks

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

// CreateTaskInput is the caller-supplied subset of task.Instance fields.
type CreateTaskInput struct {
	Title            string
	Description      string
	Priority         task.Priority
	DueDate          *time.Time
	EstimatedMinutes *int
	TemplateID       *string
}

func (s *Service) CreateTask(ctx context.Context, userID string, tier user.Tier, in CreateTaskInput) (task.Instance, error) {
	if err := validateDueDate(in.DueDate); err != nil {
		return task.Instance{}, err
	}

	effectiveMax, err := s.achievements.EffectiveTaskMax(ctx, userID, tier, s.limits.FreeTaskMax, s.limits.ProTaskMax)
	if err != nil {
		return task.Instance{}, err
	}
	count, err := s.tasks.CountActiveTasks(ctx, userID)
	if err != nil {
		return task.Instance{}, err
	}
	if count >= effectiveMax {
		return task.Instance{}, errors.LimitExceeded("task", effectiveMax)
	}

	t, err := s.tasks.CreateTask(ctx, task.Instance{
		UserID:           userID,
		Title:            in.Title,
		Description:      in.Description,
		Priority:         in.Priority,
		DueDate:          in.DueDate,
		EstimatedMinutes: in.EstimatedMinutes,
		TemplateID:       in.TemplateID,
	})
	if err != nil {
		return task.Instance{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeTaskCreated,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": t.ID},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})
	return t, nil
}

func validateDueDate(due *time.Time) error {
	if due == nil {
		return nil
	}
	if due.After(time.Now().UTC().Add(maxDueDateHorizon)) {
		return errors.DueDateExceeded()
	}
	return nil
}

func (s *Service) GetTask(ctx context.Context, userID, id string) (task.Instance, error) {
	return s.tasks.GetTask(ctx, userID, id)
}

func (s *Service) ListTasks(ctx context.Context, userID string, filter storage.TaskFilter) ([]task.Instance, int, error) {
	return s.tasks.ListTasks(ctx, userID, filter)
}

// UpdateTaskInput carries the fields mutable via update, plus the
// caller's last-seen version for optimistic locking.
type UpdateTaskInput struct {
	Version          int
	Title            *string
	Description      *string
	Priority         *task.Priority
	DueDate          **time.Time
	EstimatedMinutes **int
	Hidden           *bool
}

func (s *Service) UpdateTask(ctx context.Context, userID, id string, in UpdateTaskInput) (task.Instance, error) {
	existing, err := s.tasks.GetTask(ctx, userID, id)
	if err != nil {
		return task.Instance{}, err
	}
	if existing.Archived {
		return task.Instance{}, errors.TaskArchived(id)
	}

	dueDateChanged := false
	next := existing
	next.Version = in.Version
	if in.Title != nil {
		next.Title = *in.Title
	}
	if in.Description != nil {
		next.Description = *in.Description
	}
	if in.Priority != nil {
		next.Priority = *in.Priority
	}
	if in.DueDate != nil {
		if err := validateDueDate(*in.DueDate); err != nil {
			return task.Instance{}, err
		}
		next.DueDate = *in.DueDate
		dueDateChanged = true
	}
	if in.EstimatedMinutes != nil {
		next.EstimatedMinutes = *in.EstimatedMinutes
	}
	if in.Hidden != nil {
		next.Hidden = *in.Hidden
	}

	updated, err := s.tasks.UpdateTask(ctx, next)
	if err != nil {
		return task.Instance{}, err
	}

	if dueDateChanged {
		if err := s.reminders.RecalculateForTask(ctx, updated); err != nil {
			return task.Instance{}, err
		}
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeTaskUpdated,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": id},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})
	return updated, nil
}

func (s *Service) DeleteTask(ctx context.Context, userID, id string) (string, error) {
	return s.recovery.DeleteTask(ctx, userID, id)
}

func (s *Service) RecoverTask(ctx context.Context, userID, tombstoneID string) (task.Instance, error) {
	return s.recovery.Recover(ctx, userID, tombstoneID)
}

// CompleteTask marks t manually completed. Completion of an archived task
// fails with TASK_ARCHIVED.
func (s *Service) CompleteTask(ctx context.Context, userID, id string, version int) (task.Instance, error) {
	t, err := s.tasks.GetTask(ctx, userID, id)
	if err != nil {
		return task.Instance{}, err
	}
	if t.Archived {
		return task.Instance{}, errors.TaskArchived(id)
	}
	if t.Completed {
		return t, nil
	}

	now := time.Now().UTC()
	t.Version = version
	t.Completed = true
	t.CompletedAt = &now
	t.CompletedBy = task.CompletedByManual

	updated, err := s.tasks.UpdateTask(ctx, t)
	if err != nil {
		return task.Instance{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeTaskCompleted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": id},
		Source:      event.SourceUser,
		OccurredAt:  now,
	})
	return updated, nil
}

// ForceComplete marks every incomplete subtask complete and the task
// complete with completed_by=force, all as one logical operation.
func (s *Service) ForceComplete(ctx context.Context, userID, id string, version int) (task.Instance, error) {
	t, err := s.tasks.GetTask(ctx, userID, id)
	if err != nil {
		return task.Instance{}, err
	}
	if t.Archived {
		return task.Instance{}, errors.TaskArchived(id)
	}

	subtasks, err := s.subtasks.ListSubtasks(ctx, id)
	if err != nil {
		return task.Instance{}, err
	}
	now := time.Now().UTC()
	for _, st := range subtasks {
		if st.Completed {
			continue
		}
		st.Completed = true
		st.CompletedAt = &now
		if _, err := s.subtasks.UpdateSubtask(ctx, st); err != nil {
			return task.Instance{}, err
		}
	}

	if t.Completed {
		return t, nil
	}
	t.Version = version
	t.Completed = true
	t.CompletedAt = &now
	t.CompletedBy = task.CompletedByForce

	updated, err := s.tasks.UpdateTask(ctx, t)
	if err != nil {
		return task.Instance{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeTaskCompleted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": id},
		Source:      event.SourceUser,
		OccurredAt:  now,
	})
	return updated, nil
}

// maybeAutoComplete implements the auto-completion rule: once every
// subtask of id is complete and the task isn't yet, mark it completed_by
// auto and emit TaskCompleted.
func (s *Service) maybeAutoComplete(ctx context.Context, userID, id string) error {
	t, err := s.tasks.GetTask(ctx, userID, id)
	if err != nil {
		return err
	}
	if t.Completed || t.Archived {
		return nil
	}
	subtasks, err := s.subtasks.ListSubtasks(ctx, id)
	if err != nil {
		return err
	}
	if len(subtasks) == 0 {
		return nil
	}
	for _, st := range subtasks {
		if !st.Completed {
			return nil
		}
	}

	now := time.Now().UTC()
	t.Completed = true
	t.CompletedAt = &now
	t.CompletedBy = task.CompletedByAuto
	if _, err := s.tasks.UpdateTask(ctx, t); err != nil {
		return err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeTaskCompleted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": id},
		Source:      event.SourceSystem,
		OccurredAt:  now,
	})
	return nil
}
