// Package subscriptions implements the subscription state machine:
// webhook-driven transitions (idempotent per external event id) and the
// daily maintenance sweep's grace/cancellation expirations.
package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	core "github.com/taskwarden/taskwarden/internal/app/core/service"
	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/app/domain/subscription"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/metrics"
	"github.com/taskwarden/taskwarden/internal/app/services/credits"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// WebhookEvent is the vendor-neutral shape the payment webhook handler
// decodes incoming payloads into before calling ProcessEvent.
type WebhookEvent struct {
	ID               string
	Type             string
	ExternalSubID    string
	UserID           string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	MonthlyCredits   int
}

const (
	eventPaymentCaptured      = "payment_captured"
	eventPaymentDeclined      = "payment_declined"
	eventSubscriptionCanceled = "subscription_cancelled"
	eventSubscriptionRenewed  = "subscription_renewed"

	graceFailureThreshold = 3
	gracePeriod           = 7 * 24 * time.Hour
	graceWarningWindow    = 3 * 24 * time.Hour
)

type Service struct {
	store    storage.SubscriptionStore
	users    storage.UserStore
	notifier storage.NotificationStore
	credits  *credits.Service
	bus      *events.Bus
	log      *logger.Logger
}

func New(store storage.SubscriptionStore, users storage.UserStore, notifier storage.NotificationStore, creditsSvc *credits.Service, bus *events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, users: users, notifier: notifier, credits: creditsSvc, bus: bus, log: log}
}

// ProcessEvent applies one webhook event, dropping duplicates by external
// event id.
func (s *Service) ProcessEvent(ctx context.Context, e WebhookEvent) (err error) {
	done := core.StartObservation(ctx, metrics.WebhookProcessHooks(), map[string]string{"user_id": e.UserID})
	defer func() { done(err) }()

	processed, err := s.store.HasProcessedEvent(ctx, e.ID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	sub, err := s.store.GetByUserID(ctx, e.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		sub = subscription.Subscription{UserID: e.UserID, ExternalID: e.ExternalSubID, Status: subscription.StatusCancelled}
	}

	switch e.Type {
	case eventPaymentCaptured, eventSubscriptionRenewed:
		if err := s.onPaymentCaptured(ctx, sub, e); err != nil {
			return err
		}
	case eventPaymentDeclined:
		if err := s.onPaymentDeclined(ctx, sub); err != nil {
			return err
		}
	case eventSubscriptionCanceled:
		if err := s.onCancelled(ctx, sub); err != nil {
			return err
		}
	}

	return s.store.MarkEventProcessed(ctx, e.ID)
}

func (s *Service) onPaymentCaptured(ctx context.Context, sub subscription.Subscription, e WebhookEvent) error {
	now := time.Now().UTC()
	sub.ExternalID = e.ExternalSubID
	sub.Status = subscription.StatusActive
	sub.FailedPaymentCount = 0
	sub.GraceEnd = nil
	sub.GraceWarningSentAt = nil
	sub.CancelledAt = nil
	sub.PeriodStart = e.PeriodStart
	sub.PeriodEnd = e.PeriodEnd

	if err := s.upsert(ctx, sub); err != nil {
		return err
	}
	if err := s.users.SetTier(ctx, e.UserID, user.TierPro); err != nil {
		return err
	}
	if err := s.credits.GrantMonthly(ctx, e.UserID, e.MonthlyCredits, e.PeriodEnd); err != nil {
		return err
	}

	s.bus.Dispatch(ctx, event.Event{
		Type:        event.TypeSubscriptionCreated,
		ActorUserID: e.UserID,
		Source:      event.SourceSystem,
		OccurredAt:  now,
	})
	return nil
}

func (s *Service) onPaymentDeclined(ctx context.Context, sub subscription.Subscription) error {
	switch sub.Status {
	case subscription.StatusGrace:
		return nil
	case subscription.StatusActive, subscription.StatusPastDue:
		sub.FailedPaymentCount++
		if sub.Status == subscription.StatusActive {
			sub.Status = subscription.StatusPastDue
		}
		if sub.FailedPaymentCount >= graceFailureThreshold {
			graceEnd := time.Now().UTC().Add(gracePeriod)
			sub.Status = subscription.StatusGrace
			sub.GraceEnd = &graceEnd
			if err := s.notify(ctx, sub.UserID, "subscription_grace", "Your payment failed", "We couldn't process your payment; your subscription enters a grace period."); err != nil {
				return err
			}
		}
		return s.upsert(ctx, sub)
	default:
		return nil
	}
}

func (s *Service) onCancelled(ctx context.Context, sub subscription.Subscription) error {
	switch sub.Status {
	case subscription.StatusActive, subscription.StatusPastDue, subscription.StatusGrace:
		now := time.Now().UTC()
		sub.Status = subscription.StatusCancelled
		sub.CancelledAt = &now
		if err := s.upsert(ctx, sub); err != nil {
			return err
		}
		s.bus.Dispatch(ctx, event.Event{
			Type:        event.TypeSubscriptionCancelled,
			ActorUserID: sub.UserID,
			Source:      event.SourceSystem,
			OccurredAt:  now,
		})
		return nil
	default:
		return nil
	}
}

func (s *Service) upsert(ctx context.Context, sub subscription.Subscription) error {
	if sub.ID == "" {
		_, err := s.store.Create(ctx, sub)
		return err
	}
	_, err := s.store.Update(ctx, sub)
	return err
}

func (s *Service) notify(ctx context.Context, userID, typ, title, body string) error {
	_, err := s.notifier.Create(ctx, notification.Notification{
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
	})
	return err
}

// DailyMaintenance applies grace->expired and cancelled->expired
// transitions and sends grace-window warnings (the subscription_check job).
func (s *Service) DailyMaintenance(ctx context.Context, now time.Time) error {
	grace, err := s.store.ListByStatus(ctx, subscription.StatusGrace)
	if err != nil {
		return err
	}
	for _, sub := range grace {
		if sub.GraceEnd != nil && !sub.GraceEnd.After(now) {
			if err := s.expire(ctx, sub); err != nil {
				return err
			}
			continue
		}
		if sub.GraceEnd != nil && sub.GraceWarningSentAt == nil && sub.GraceEnd.Sub(now) <= graceWarningWindow {
			if err := s.notify(ctx, sub.UserID, "subscription_grace_warning", "Your subscription will lapse soon",
				"Update your payment method to avoid losing pro access."); err != nil {
				return err
			}
			sub.GraceWarningSentAt = &now
			if _, err := s.store.Update(ctx, sub); err != nil {
				return err
			}
		}
	}

	cancelled, err := s.store.ListByStatus(ctx, subscription.StatusCancelled)
	if err != nil {
		return err
	}
	for _, sub := range cancelled {
		if !sub.PeriodEnd.After(now) {
			if err := s.expire(ctx, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) expire(ctx context.Context, sub subscription.Subscription) error {
	sub.Status = subscription.StatusExpired
	if _, err := s.store.Update(ctx, sub); err != nil {
		return err
	}
	if err := s.users.SetTier(ctx, sub.UserID, user.TierFree); err != nil {
		return err
	}
	return s.notify(ctx, sub.UserID, "subscription_expired", "Your subscription has ended", "Your pro access has ended.")
}

func (s *Service) GetByUserID(ctx context.Context, userID string) (subscription.Subscription, error) {
	return s.store.GetByUserID(ctx, userID)
}
