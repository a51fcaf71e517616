package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/app/domain/template"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/services/achievements"
	"github.com/taskwarden/taskwarden/internal/app/services/credits"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/services/recovery"
	"github.com/taskwarden/taskwarden/internal/app/services/reminders"
	"github.com/taskwarden/taskwarden/internal/app/services/subscriptions"
	"github.com/taskwarden/taskwarden/internal/app/services/tasks"
	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

func buildDeps(t *testing.T) (Deps, *memoryHandles) {
	t.Helper()
	st := memory.New()
	log := logger.NewDefault("jobs_test")
	bus := events.New(log)

	ach := achievements.New(st.Achievements, bus, log)
	rec := recovery.New(st.Tasks, st.Tombstones, bus, 3, 14*24*time.Hour)
	rem := reminders.New(st.Reminders, st.Notifications, noopPusher{}, bus, log)
	taskSvc := tasks.New(st.Tasks, st.Subtasks, st.Templates, st.Notes, ach, rec, rem, bus, tasks.Limits{
		FreeTaskMax: 50, ProTaskMax: 1000, FreeNoteMax: 10, ProNoteMax: 25, FreeSubtaskMax: 4, ProSubtaskMax: 10,
	})
	creditSvc := credits.New(st.Credits, 20, 10, 50, 500)
	subSvc := subscriptions.New(st.Subscriptions, st.Users, st.Notifications, creditSvc, bus, log)

	u, err := st.Users.CreateUser(context.Background(), user.User{
		ExternalSubject: "ext-1",
		Email:           "a@example.com",
		Tier:            user.TierFree,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	deps := Deps{
		Users:             st.Users,
		Templates:         st.Templates,
		Tasks:             taskSvc,
		Reminders:         rem,
		Achievements:      ach,
		Credits:           creditSvc,
		Subscriptions:     subSvc,
		Activity:          st.Activity,
		Log:               log,
		ReminderBatchSize: 10,
		ActivityRetention: 30 * 24 * time.Hour,
	}
	return deps, &memoryHandles{store: st, userID: u.ID}
}

type memoryHandles struct {
	store  interface{}
	userID string
}

type noopPusher struct{}

func (noopPusher) Push(ctx context.Context, sub notification.PushSubscription, title, body string) error {
	return nil
}

func TestRecurringTaskGenerateHandlerCreatesTaskAndAdvancesTemplate(t *testing.T) {
	deps, h := buildDeps(t)
	registry := NewRegistry()
	RegisterStandardHandlers(registry, deps)

	due := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	created, err := deps.Templates.CreateTemplate(context.Background(), template.Template{
		UserID:         h.userID,
		Title:          "Water plants",
		RecurrenceRule: "FREQ=DAILY",
		NextDue:        &due,
		Active:         true,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	handler, ok := registry.Lookup(job.TypeRecurringTaskGenerate)
	if !ok {
		t.Fatal("expected recurring_task_generate to be registered")
	}

	payload, _ := json.Marshal(recurringTaskPayload{TemplateID: created.ID, UserID: h.userID})
	outcome, _, err := handler(context.Background(), job.Job{Type: job.TypeRecurringTaskGenerate, Payload: payload})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if outcome != job.OutcomeSuccess {
		t.Fatalf("expected success, got %s", outcome)
	}

	updated, err := deps.Templates.GetTemplate(context.Background(), h.userID, created.ID)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if updated.NextDue == nil || !updated.NextDue.After(due) {
		t.Fatalf("expected next_due to advance past %v, got %v", due, updated.NextDue)
	}
}

func TestRecurringTaskGenerateHandlerSkipsInactiveTemplate(t *testing.T) {
	deps, h := buildDeps(t)
	registry := NewRegistry()
	RegisterStandardHandlers(registry, deps)

	due := time.Now().UTC()
	created, err := deps.Templates.CreateTemplate(context.Background(), template.Template{
		UserID:         h.userID,
		Title:          "Inactive",
		RecurrenceRule: "FREQ=DAILY",
		NextDue:        &due,
		Active:         false,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}

	handler, _ := registry.Lookup(job.TypeRecurringTaskGenerate)
	payload, _ := json.Marshal(recurringTaskPayload{TemplateID: created.ID, UserID: h.userID})
	outcome, _, err := handler(context.Background(), job.Job{Type: job.TypeRecurringTaskGenerate, Payload: payload})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if outcome != job.OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
}

func TestDecodeAsOfFallsBackToNow(t *testing.T) {
	got := decodeAsOf([]byte(`not json`))
	if time.Since(got) > time.Second {
		t.Fatalf("expected decodeAsOf to fall back to now, got %v", got)
	}
}

func TestActivityCleanupHandlerReturnsDeletedCount(t *testing.T) {
	deps, h := buildDeps(t)
	registry := NewRegistry()
	RegisterStandardHandlers(registry, deps)

	_ = h
	handler, _ := registry.Lookup(job.TypeActivityCleanup)
	outcome, result, err := handler(context.Background(), job.Job{Type: job.TypeActivityCleanup, Payload: []byte(`{}`)})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if outcome != job.OutcomeSuccess {
		t.Fatalf("expected success, got %s", outcome)
	}
	var out map[string]int
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if out["deleted"] != 0 {
		t.Fatalf("expected 0 deleted on empty log, got %d", out["deleted"])
	}
}
