package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	tmpl "github.com/taskwarden/taskwarden/internal/app/domain/template"
	"github.com/taskwarden/taskwarden/internal/app/services/achievements"
	"github.com/taskwarden/taskwarden/internal/app/services/credits"
	"github.com/taskwarden/taskwarden/internal/app/services/reminders"
	"github.com/taskwarden/taskwarden/internal/app/services/subscriptions"
	"github.com/taskwarden/taskwarden/internal/app/services/tasks"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// Deps bundles every domain service a standard handler needs. Passed once
// to RegisterStandardHandlers rather than threaded through each handler's
// own constructor.
type Deps struct {
	Users         storage.UserStore
	Templates     storage.TemplateStore
	Tasks         *tasks.Service
	Reminders     *reminders.Service
	Achievements  *achievements.Service
	Credits       *credits.Service
	Subscriptions *subscriptions.Service
	Activity      storage.ActivityStore
	Log           *logger.Logger

	ReminderBatchSize int
	ActivityRetention time.Duration
}

// RegisterStandardHandlers binds the six job types in job/model.go to their
// concrete handlers against the provided dependencies.
func RegisterStandardHandlers(r *Registry, d Deps) {
	r.Register(job.TypeReminderFire, reminderFireHandler(d))
	r.Register(job.TypeStreakCalculate, streakCalculateHandler(d))
	r.Register(job.TypeCreditExpire, creditExpireHandler(d))
	r.Register(job.TypeSubscriptionCheck, subscriptionCheckHandler(d))
	r.Register(job.TypeActivityCleanup, activityCleanupHandler(d))
	r.Register(job.TypeRecurringTaskGenerate, recurringTaskGenerateHandler(d))
}

type asOfPayload struct {
	AsOf time.Time `json:"as_of"`
}

func decodeAsOf(payload []byte) time.Time {
	var p asOfPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.AsOf.IsZero() {
		return time.Now().UTC()
	}
	return p.AsOf
}

func reminderFireHandler(d Deps) Handler {
	return func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		asOf := decodeAsOf(j.Payload)
		n, err := d.Reminders.Drain(ctx, asOf, d.ReminderBatchSize)
		if err != nil {
			return job.OutcomeError, nil, err
		}
		return job.OutcomeSuccess, marshalPayload(map[string]int{"fired": n}), nil
	}
}

func streakCalculateHandler(d Deps) Handler {
	return func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		asOf := decodeAsOf(j.Payload)
		n, err := d.Achievements.NightlyStreakReset(ctx, asOf)
		if err != nil {
			return job.OutcomeError, nil, err
		}
		return job.OutcomeSuccess, marshalPayload(map[string]int{"reset": n}), nil
	}
}

func creditExpireHandler(d Deps) Handler {
	return func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		asOf := decodeAsOf(j.Payload)
		n, err := d.Credits.ExpireDue(ctx, asOf)
		if err != nil {
			return job.OutcomeError, nil, err
		}
		return job.OutcomeSuccess, marshalPayload(map[string]int{"expired": n}), nil
	}
}

func subscriptionCheckHandler(d Deps) Handler {
	return func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		asOf := decodeAsOf(j.Payload)
		if err := d.Subscriptions.DailyMaintenance(ctx, asOf); err != nil {
			return job.OutcomeError, nil, err
		}
		return job.OutcomeSuccess, nil, nil
	}
}

func activityCleanupHandler(d Deps) Handler {
	return func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		asOf := decodeAsOf(j.Payload)
		cutoff := asOf.Add(-d.ActivityRetention)
		total := 0
		for {
			n, err := d.Activity.DeleteOlderThan(ctx, cutoff, 500)
			if err != nil {
				return job.OutcomeError, nil, err
			}
			total += n
			if n < 500 {
				break
			}
		}
		return job.OutcomeSuccess, marshalPayload(map[string]int{"deleted": total}), nil
	}
}

type recurringTaskPayload struct {
	TemplateID string `json:"template_id"`
	UserID     string `json:"user_id"`
}

// recurringTaskGenerateHandler creates one task.Instance from a due
// template and advances the template's next_due per its recurrence rule.
// Skipped (rather than errored) when the template was deactivated or
// deleted between enqueue and claim.
func recurringTaskGenerateHandler(d Deps) Handler {
	return func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		var p recurringTaskPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return job.OutcomeError, nil, err
		}

		t, err := d.Templates.GetTemplate(ctx, p.UserID, p.TemplateID)
		if err != nil {
			return job.OutcomeSkipped, nil, nil
		}
		if !t.Active {
			return job.OutcomeSkipped, nil, nil
		}

		u, err := d.Users.GetUser(ctx, p.UserID)
		if err != nil {
			return job.OutcomeSkipped, nil, nil
		}

		dueDate := t.NextDue
		created, err := d.Tasks.CreateTask(ctx, p.UserID, u.Tier, tasks.CreateTaskInput{
			Title:       t.Title,
			Description: t.Description,
			Priority:    task.PriorityMedium,
			DueDate:     dueDate,
			TemplateID:  &t.ID,
		})
		if err != nil {
			return job.OutcomeError, nil, err
		}

		anchor := time.Now().UTC()
		if dueDate != nil {
			anchor = *dueDate
		}
		next, err := tmpl.NextOccurrence(t.RecurrenceRule, anchor)
		if err != nil {
			d.Log.WithFields(map[string]interface{}{
				"template_id": t.ID,
				"error":       err.Error(),
			}).Error("compute next occurrence failed, deactivating template")
			t.Active = false
		} else {
			t.NextDue = &next
		}

		if _, err := d.Templates.UpdateTemplate(ctx, p.UserID, t); err != nil {
			return job.OutcomeError, nil, err
		}

		return job.OutcomeSuccess, marshalPayload(map[string]string{"task_id": created.ID}), nil
	}
}
