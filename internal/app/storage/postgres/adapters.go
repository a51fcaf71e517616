package postgres

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/activity"
	"github.com/taskwarden/taskwarden/internal/app/domain/idempotency"
	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/app/domain/subscription"
)

// See memory/adapters.go for why these exist: a handful of storage.XStore
// interfaces share generic method names that can't all live on one *Store.

type activityAdapter struct{ *Store }

func (a activityAdapter) List(ctx context.Context, userID string, offset, limit int) ([]activity.Log, int, error) {
	return a.Store.ListActivity(ctx, userID, offset, limit)
}

type subscriptionAdapter struct{ *Store }

func (a subscriptionAdapter) Create(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	return a.Store.CreateSubscription(ctx, sub)
}

func (a subscriptionAdapter) ListByStatus(ctx context.Context, statuses ...subscription.Status) ([]subscription.Subscription, error) {
	return a.Store.ListSubscriptionsByStatus(ctx, statuses...)
}

type notificationAdapter struct{ *Store }

func (a notificationAdapter) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	return a.Store.CreateNotification(ctx, n)
}

func (a notificationAdapter) List(ctx context.Context, userID string, offset, limit int) ([]notification.Notification, int, error) {
	return a.Store.ListNotifications(ctx, userID, offset, limit)
}

type jobAdapter struct{ *Store }

func (a jobAdapter) Get(ctx context.Context, id string) (job.Job, error) {
	return a.Store.GetJob(ctx, id)
}

func (a jobAdapter) ListByStatus(ctx context.Context, status job.Status, limit int) ([]job.Job, error) {
	return a.Store.ListJobsByStatus(ctx, status, limit)
}

type idempotencyAdapter struct{ *Store }

func (a idempotencyAdapter) Get(ctx context.Context, userID, key string) (idempotency.Key, bool, error) {
	return a.Store.GetIdempotencyKey(ctx, userID, key)
}

type refreshTokenAdapter struct{ *Store }

func (a refreshTokenAdapter) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return a.Store.CreateRefreshToken(ctx, userID, tokenHash, expiresAt)
}
