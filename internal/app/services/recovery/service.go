// Package recovery implements tombstone-backed task deletion and
// restoration: delete serializes a task and its children into a
// ring-buffered tombstone row; recovery within the retention window
// recreates the task under its original id.
package recovery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/domain/tombstone"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

type Service struct {
	tasks       storage.TaskStore
	tombstones  storage.TombstoneStore
	bus         *events.Bus
	maxPerUser  int
	retention   time.Duration
}

func New(tasks storage.TaskStore, tombstones storage.TombstoneStore, bus *events.Bus, maxPerUser int, retention time.Duration) *Service {
	return &Service{tasks: tasks, tombstones: tombstones, bus: bus, maxPerUser: maxPerUser, retention: retention}
}

// DeleteTask hard-deletes t, serializes it and its children into a
// tombstone, evicts the oldest tombstone past the per-user cap, and emits
// TaskDeleted. Returns the created tombstone id.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) (string, error) {
	t, subtasks, reminders, err := s.tasks.DeleteTask(ctx, userID, taskID)
	if err != nil {
		return "", err
	}

	payload, err := buildPayload(t, subtasks, reminders)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ts, err := s.tombstones.CreateTombstone(ctx, tombstone.Tombstone{
		ID:            uuid.NewString(),
		UserID:        userID,
		EntityType:    "task",
		EntityID:      taskID,
		SchemaVersion: tombstone.CurrentSchemaVersion,
		Payload:       raw,
		DeletedAt:     time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	if err := s.evictOldest(ctx, userID); err != nil {
		return "", err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeTaskDeleted,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": taskID},
		Source:      event.SourceUser,
		OccurredAt:  time.Now().UTC(),
	})

	return ts.ID, nil
}

// evictOldest drops the oldest tombstone once the user exceeds maxPerUser.
func (s *Service) evictOldest(ctx context.Context, userID string) error {
	count, err := s.tombstones.CountForUser(ctx, userID)
	if err != nil {
		return err
	}
	for count > s.maxPerUser {
		oldest, err := s.tombstones.OldestForUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.tombstones.DeleteTombstone(ctx, userID, oldest.ID); err != nil {
			return err
		}
		count--
	}
	return nil
}

// Recover reinstates the task described by tombstone id under its original
// id, provided the tombstone is within the retention window, then deletes
// the tombstone. Reminders that had already fired are dropped; future ones
// are restored. Emits TaskCreated with IsRecovery set, which the
// achievement engine treats as a no-op.
func (s *Service) Recover(ctx context.Context, userID, tombstoneID string) (task.Instance, error) {
	ts, err := s.tombstones.GetTombstone(ctx, userID, tombstoneID)
	if err != nil {
		return task.Instance{}, err
	}
	if time.Since(ts.DeletedAt) > s.retention {
		return task.Instance{}, errors.NotFound("tombstone", tombstoneID)
	}
	if ts.EntityType != "task" {
		return task.Instance{}, errors.NotFound("tombstone", tombstoneID)
	}

	var payload taskPayload
	if err := json.Unmarshal(ts.Payload, &payload); err != nil {
		return task.Instance{}, errors.Internal("corrupt tombstone payload", err)
	}

	now := time.Now().UTC()
	var restoredReminders []reminder.Reminder
	for _, r := range payload.Reminders {
		if r.Fired {
			continue
		}
		restoredReminders = append(restoredReminders, r)
	}

	if err := s.tasks.RecreateTask(ctx, payload.Task, payload.Subtasks, restoredReminders); err != nil {
		return task.Instance{}, err
	}
	if err := s.tombstones.DeleteTombstone(ctx, userID, tombstoneID); err != nil {
		return task.Instance{}, err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeTaskCreated,
		ActorUserID: userID,
		EntityIDs:   map[string]string{"task_id": payload.Task.ID},
		Source:      event.SourceUser,
		OccurredAt:  now,
		IsRecovery:  true,
	})

	return payload.Task, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]tombstone.Tombstone, error) {
	return s.tombstones.ListTombstones(ctx, userID)
}

// taskPayload is the typed counterpart of tombstone.TaskPayload, used
// on the decode side so recovery can hand the domain store real structs.
type taskPayload struct {
	SchemaVersion int                `json:"schema_version"`
	Task          task.Instance      `json:"task"`
	Subtasks      []subtask.Subtask  `json:"subtasks"`
	Reminders     []reminder.Reminder `json:"reminders"`
}

func buildPayload(t task.Instance, subtasks []subtask.Subtask, reminders []reminder.Reminder) (taskPayload, error) {
	return taskPayload{
		SchemaVersion: tombstone.CurrentSchemaVersion,
		Task:          t,
		Subtasks:      subtasks,
		Reminders:     reminders,
	}, nil
}
