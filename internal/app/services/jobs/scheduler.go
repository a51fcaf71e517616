package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	core "github.com/taskwarden/taskwarden/internal/app/core/service"
	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// Scheduler enqueues the daily maintenance jobs at fixed UTC times using a
// cron expression parser, and separately steps recurring task templates
// whose next_due has arrived. It satisfies system.Service.
type Scheduler struct {
	store       storage.JobStore
	templates   storage.TemplateStore
	log         *logger.Logger
	cron        *cron.Cron
	maxAttempts int
}

// NewScheduler builds a scheduler that runs in UTC, matching the daily
// maintenance jobs' UTC-midnight cadence. maxAttempts is stamped onto every
// job it enqueues (config.Config.JobMaxAttempts).
func NewScheduler(store storage.JobStore, templates storage.TemplateStore, log *logger.Logger, maxAttempts int) *Scheduler {
	return &Scheduler{
		store:       store,
		templates:   templates,
		log:         log,
		cron:        cron.New(cron.WithLocation(time.UTC)),
		maxAttempts: maxAttempts,
	}
}

func (s *Scheduler) Name() string { return "job_scheduler" }

// Descriptor satisfies system.DescriptorProvider for introspection.
func (s *Scheduler) Descriptor() core.Descriptor {
	return core.Descriptor{
		Name:   s.Name(),
		Domain: "jobs",
		Layer:  core.LayerEngine,
	}.WithCapabilities("daily-maintenance", "recurrence-stepping")
}

// Start registers the daily entries, the per-minute reminder drain entry
// and the recurring-task stepping entry, then starts the cron runner. Entries are staggered a few minutes apart so
// the daily jobs don't all claim at once against a small worker pool.
func (s *Scheduler) Start(ctx context.Context) error {
	entries := []struct {
		spec string
		typ  job.Type
	}{
		{"0 0 * * *", job.TypeStreakCalculate},
		{"5 0 * * *", job.TypeCreditExpire},
		{"10 0 * * *", job.TypeSubscriptionCheck},
		{"15 0 * * *", job.TypeActivityCleanup},
	}
	for _, e := range entries {
		typ := e.typ
		if _, err := s.cron.AddFunc(e.spec, func() { s.enqueueDaily(context.Background(), typ) }); err != nil {
			return err
		}
	}
	// Due reminders are drained every minute.
	if _, err := s.cron.AddFunc("* * * * *", func() { s.enqueueDaily(context.Background(), job.TypeReminderFire) }); err != nil {
		return err
	}
	// Recurring task generation is stepped more frequently since templates
	// can be due at any minute, not just at midnight.
	if _, err := s.cron.AddFunc("*/5 * * * *", func() { s.enqueueRecurring(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) enqueueDaily(ctx context.Context, typ job.Type) {
	now := time.Now().UTC()
	_, err := s.store.Enqueue(ctx, job.Job{
		Type:        typ,
		Payload:     marshalPayload(map[string]interface{}{"as_of": now}),
		ScheduledAt: now,
		MaxAttempts: s.maxAttempts,
	})
	if err != nil {
		s.log.WithFields(map[string]interface{}{"job_type": typ, "error": err.Error()}).Error("enqueue daily job failed")
	}
}

// enqueueRecurring enqueues one recurring_task_generate job per template
// whose next_due has passed, carrying the template id so the handler only
// has to load and step that one template.
func (s *Scheduler) enqueueRecurring(ctx context.Context) {
	now := time.Now().UTC()
	due, err := s.templates.ListDueTemplates(ctx, now)
	if err != nil {
		s.log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("list due templates failed")
		return
	}
	for _, t := range due {
		_, err := s.store.Enqueue(ctx, job.Job{
			Type:        job.TypeRecurringTaskGenerate,
			Payload:     marshalPayload(map[string]interface{}{"template_id": t.ID, "user_id": t.UserID}),
			ScheduledAt: now,
			MaxAttempts: s.maxAttempts,
		})
		if err != nil {
			s.log.WithFields(map[string]interface{}{"template_id": t.ID, "error": err.Error()}).Error("enqueue recurring task job failed")
		}
	}
}
