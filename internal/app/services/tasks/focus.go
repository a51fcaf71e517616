package tasks

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/errors"
)

// StartFocusSession validates that a focus session may begin on t: it must
// exist, be owned by userID, and not be archived. Session timing itself is
// kept client-side; the server only needs the accumulated duration once the
// session ends.
func (s *Service) StartFocusSession(ctx context.Context, userID, taskID string) (task.Instance, error) {
	t, err := s.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return task.Instance{}, err
	}
	if t.Archived {
		return task.Instance{}, errors.TaskArchived(taskID)
	}
	return t, nil
}

// EndFocusSession adds sessionSeconds to the task's accumulated focus time
// and dispatches FocusSessionEnded when the new total reaches 50% of the
// task's estimated duration. A task
// without an estimated duration never qualifies.
func (s *Service) EndFocusSession(ctx context.Context, userID, taskID string, sessionSeconds int) (task.Instance, error) {
	if sessionSeconds < 0 {
		sessionSeconds = 0
	}
	t, err := s.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return task.Instance{}, err
	}
	if t.Archived {
		return task.Instance{}, errors.TaskArchived(taskID)
	}

	t.FocusSeconds += sessionSeconds
	updated, err := s.tasks.UpdateTask(ctx, t)
	if err != nil {
		return task.Instance{}, err
	}

	if qualifiesAsFocusCompletion(updated) {
		s.bus.Dispatch(ctx, event.Event{
			Type:        event.TypeFocusSessionEnded,
			ActorUserID: userID,
			EntityIDs:   map[string]string{"task_id": taskID},
			Source:      event.SourceUser,
			OccurredAt:  time.Now().UTC(),
		})
	}
	return updated, nil
}

func qualifiesAsFocusCompletion(t task.Instance) bool {
	if t.EstimatedMinutes == nil || *t.EstimatedMinutes <= 0 {
		return false
	}
	required := float64(*t.EstimatedMinutes) * 60 * 0.5
	return float64(t.FocusSeconds) >= required
}
