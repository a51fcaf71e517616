// Package reminders computes reminder schedules, drains due reminders, and
// fans push notifications out to subscribed endpoints.
package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"

	core "github.com/taskwarden/taskwarden/internal/app/core/service"
	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/metrics"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// Pusher delivers one push payload to one subscription endpoint. Errors
// must satisfy PermanentError when the endpoint itself is invalid, so the
// caller knows to deactivate the subscription rather than retry.
type Pusher interface {
	Push(ctx context.Context, sub notification.PushSubscription, title, body string) error
}

// PermanentError marks a Pusher failure as non-retryable (gone endpoint,
// invalid key) versus a transient network/5xx failure.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

type Service struct {
	reminders     storage.ReminderStore
	notifications storage.NotificationStore
	pusher        Pusher
	bus           *events.Bus
	log           *logger.Logger
}

func New(reminders storage.ReminderStore, notifications storage.NotificationStore, pusher Pusher, bus *events.Bus, log *logger.Logger) *Service {
	return &Service{reminders: reminders, notifications: notifications, pusher: pusher, bus: bus, log: log}
}

// Schedule computes scheduled_at for a new reminder against its task's due
// date and creates it. t must have a non-nil due date.
func (s *Service) Schedule(ctx context.Context, t task.Instance, rType reminder.Type, offsetMinutes *int, absoluteAt *time.Time, method reminder.Method) (reminder.Reminder, error) {
	if t.DueDate == nil {
		return reminder.Reminder{}, errors.ValidationError("due_date", "task has no due date")
	}
	scheduledAt, err := computeScheduledAt(t.DueDate, rType, offsetMinutes, absoluteAt)
	if err != nil {
		return reminder.Reminder{}, err
	}
	return s.reminders.CreateReminder(ctx, reminder.Reminder{
		ID:            uuid.NewString(),
		TaskID:        t.ID,
		UserID:        t.UserID,
		Type:          rType,
		OffsetMinutes: offsetMinutes,
		ScheduledAt:   *scheduledAt,
		Method:        method,
	})
}

func computeScheduledAt(dueDate *time.Time, rType reminder.Type, offsetMinutes *int, absoluteAt *time.Time) (*time.Time, error) {
	switch rType {
	case reminder.TypeBefore:
		if offsetMinutes == nil {
			return nil, errors.ValidationError("offset_minutes", "required for a before reminder")
		}
		t := dueDate.Add(-time.Duration(*offsetMinutes) * time.Minute)
		return &t, nil
	case reminder.TypeAfter:
		if offsetMinutes == nil {
			return nil, errors.ValidationError("offset_minutes", "required for an after reminder")
		}
		t := dueDate.Add(time.Duration(*offsetMinutes) * time.Minute)
		return &t, nil
	case reminder.TypeAbsolute:
		if absoluteAt == nil {
			return nil, errors.ValidationError("scheduled_at", "required for an absolute reminder")
		}
		return absoluteAt, nil
	default:
		return nil, errors.ValidationError("type", "unknown reminder type")
	}
}

// RecalculateForTask recomputes scheduled_at for every relative reminder
// attached to t after its due date changes, and un-fires any that land in
// the future.
func (s *Service) RecalculateForTask(ctx context.Context, t task.Instance) error {
	if t.DueDate == nil {
		return nil
	}
	existing, err := s.reminders.ListRemindersForTask(ctx, t.ID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, r := range existing {
		if r.Type == reminder.TypeAbsolute {
			continue
		}
		scheduledAt, err := computeScheduledAt(t.DueDate, r.Type, r.OffsetMinutes, nil)
		if err != nil {
			return err
		}
		r.ScheduledAt = *scheduledAt
		if scheduledAt.After(now) {
			r.Fired = false
			r.FiredAt = nil
		}
		if _, err := s.reminders.UpdateReminder(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Drain is the reminder_fire job handler: it creates a Notification and
// attempts delivery for every reminder due at or before asOf, marking each
// fired regardless of delivery outcome (delivery failures are logged, not
// retried at the reminder level).
func (s *Service) Drain(ctx context.Context, asOf time.Time, batchSize int) (int, error) {
	due, err := s.reminders.ListDue(ctx, asOf, batchSize)
	if err != nil {
		return 0, err
	}
	for _, r := range due {
		if err := s.fire(ctx, r); err != nil {
			s.log.WithFields(map[string]interface{}{
				"reminder_id": r.ID,
				"error":       err.Error(),
			}).Error("failed to fire reminder")
			continue
		}
	}
	return len(due), nil
}

func (s *Service) fire(ctx context.Context, r reminder.Reminder) (err error) {
	done := core.StartObservation(ctx, metrics.ReminderDispatchHooks(), map[string]string{"reminder_id": r.ID})
	defer func() { done(err) }()

	n, err := s.notifications.Create(ctx, notification.Notification{
		ID:     uuid.NewString(),
		UserID: r.UserID,
		Type:   "reminder",
		Title:  "Task reminder",
		Body:   "A task you set a reminder for is due.",
	})
	if err != nil {
		return err
	}

	if r.Method == reminder.MethodPush {
		if err := s.deliverPush(ctx, r.UserID, n); err != nil {
			s.log.WithFields(map[string]interface{}{
				"user_id": r.UserID,
				"error":   err.Error(),
			}).Warn("push delivery failed")
		}
	}

	now := time.Now().UTC()
	r.Fired = true
	r.FiredAt = &now
	if _, err := s.reminders.UpdateReminder(ctx, r); err != nil {
		return err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeReminderFired,
		ActorUserID: r.UserID,
		EntityIDs:   map[string]string{"reminder_id": r.ID, "task_id": r.TaskID},
		Source:      event.SourceSystem,
		OccurredAt:  now,
	})
	return nil
}

// deliverPush fans the notification out to every active push subscription
// for the user, deactivating any whose failure is permanent.
func (s *Service) deliverPush(ctx context.Context, userID string, n notification.Notification) error {
	subs, err := s.notifications.ListActivePushSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	var lastErr error
	for _, sub := range subs {
		if err := s.pusher.Push(ctx, sub, n.Title, n.Body); err != nil {
			var perm *PermanentError
			if isPermanent(err, &perm) {
				if derr := s.notifications.DeactivatePushSubscription(ctx, sub.ID); derr != nil {
					lastErr = derr
				}
				continue
			}
			lastErr = err
		}
	}
	return lastErr
}

func isPermanent(err error, target **PermanentError) bool {
	for err != nil {
		if p, ok := err.(*PermanentError); ok {
			*target = p
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
