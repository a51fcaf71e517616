package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/services/achievements"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/services/recovery"
	"github.com/taskwarden/taskwarden/internal/app/services/reminders"
	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

type noopPusher struct{}

func (noopPusher) Push(ctx context.Context, sub notification.PushSubscription, title, body string) error {
	return nil
}

func newTestService(t *testing.T, limits Limits) *Service {
	t.Helper()
	st := memory.New()
	log := logger.NewDefault("tasks_test")
	bus := events.New(log)
	ach := achievements.New(st.Achievements, bus, log)
	rec := recovery.New(st.Tasks, st.Tombstones, bus, 20, 30*24*time.Hour)
	rem := reminders.New(st.Reminders, st.Notifications, noopPusher{}, bus, log)
	return New(st.Tasks, st.Subtasks, st.Templates, st.Notes, ach, rec, rem, bus, limits)
}

func TestCreateTaskEnforcesTierLimit(t *testing.T) {
	svc := newTestService(t, Limits{FreeTaskMax: 2, ProTaskMax: 10})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.CreateTask(ctx, "user-1", user.TierFree, CreateTaskInput{Title: "task"})
		require.NoError(t, err)
	}

	_, err := svc.CreateTask(ctx, "user-1", user.TierFree, CreateTaskInput{Title: "one too many"})
	assert.Error(t, err, "a third free-tier task should hit the limit")
}

func TestCompleteTaskRejectsArchived(t *testing.T) {
	svc := newTestService(t, Limits{FreeTaskMax: 10, ProTaskMax: 10})
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, "user-1", user.TierFree, CreateTaskInput{Title: "task"})
	require.NoError(t, err)

	created.Archived = true
	_, err = svc.tasks.UpdateTask(ctx, created)
	require.NoError(t, err)

	_, err = svc.CompleteTask(ctx, "user-1", created.ID, created.Version)
	assert.Error(t, err, "completing an archived task should fail")
}

func TestDeleteAndRecoverTaskRoundTrip(t *testing.T) {
	svc := newTestService(t, Limits{FreeTaskMax: 10, ProTaskMax: 10})
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, "user-1", user.TierFree, CreateTaskInput{Title: "recover me"})
	require.NoError(t, err)

	tombstoneID, err := svc.DeleteTask(ctx, "user-1", created.ID)
	require.NoError(t, err)

	_, err = svc.GetTask(ctx, "user-1", created.ID)
	assert.Error(t, err, "deleted task should no longer be retrievable")

	restored, err := svc.RecoverTask(ctx, "user-1", tombstoneID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, restored.ID)
	assert.False(t, restored.Completed)

	_, err = svc.GetTask(ctx, "user-1", created.ID)
	assert.NoError(t, err, "recovered task should be retrievable again")
}
