package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/taskwarden/taskwarden/internal/app/domain/subscription"
)

func (s *Store) CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, external_id, status, period_start, period_end,
			grace_end, failed_payment_count, cancelled_at, grace_warning_sent_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sub.ID, sub.UserID, sub.ExternalID, sub.Status, sub.PeriodStart, sub.PeriodEnd,
		sub.GraceEnd, sub.FailedPaymentCount, sub.CancelledAt, sub.GraceWarningSentAt, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return subscription.Subscription{}, err
	}
	return sub, nil
}

func (s *Store) GetByUserID(ctx context.Context, userID string) (subscription.Subscription, error) {
	return scanSubscription(s.db.QueryRowContext(ctx, subscriptionSelect+`WHERE user_id = $1`, userID))
}

func (s *Store) GetByExternalID(ctx context.Context, externalID string) (subscription.Subscription, error) {
	return scanSubscription(s.db.QueryRowContext(ctx, subscriptionSelect+`WHERE external_id = $1`, externalID))
}

func (s *Store) Update(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	sub.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $2, period_start = $3, period_end = $4, grace_end = $5,
			failed_payment_count = $6, cancelled_at = $7, grace_warning_sent_at = $8, updated_at = $9
		WHERE id = $1
	`, sub.ID, sub.Status, sub.PeriodStart, sub.PeriodEnd, sub.GraceEnd,
		sub.FailedPaymentCount, sub.CancelledAt, sub.GraceWarningSentAt, sub.UpdatedAt)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return subscription.Subscription{}, sql.ErrNoRows
	}
	return s.GetByUserID(ctx, sub.UserID)
}

func (s *Store) ListSubscriptionsByStatus(ctx context.Context, statuses ...subscription.Status) ([]subscription.Subscription, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}
	rows, err := s.db.QueryContext(ctx, subscriptionSelect+`WHERE status = ANY($1)`, pq.Array(strs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) HasProcessedEvent(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM processed_webhook_events WHERE event_id = $1)`, eventID).Scan(&exists)
	return exists, err
}

func (s *Store) MarkEventProcessed(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_webhook_events (event_id, processed_at) VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, time.Now().UTC())
	return err
}

const subscriptionSelect = `
	SELECT id, user_id, external_id, status, period_start, period_end, grace_end,
		failed_payment_count, cancelled_at, grace_warning_sent_at, created_at, updated_at
	FROM subscriptions
`

func scanSubscription(row rowScanner) (subscription.Subscription, error) {
	var sub subscription.Subscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.ExternalID, &sub.Status, &sub.PeriodStart, &sub.PeriodEnd,
		&sub.GraceEnd, &sub.FailedPaymentCount, &sub.CancelledAt, &sub.GraceWarningSentAt, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return subscription.Subscription{}, err
	}
	sub.PeriodStart = sub.PeriodStart.UTC()
	sub.PeriodEnd = sub.PeriodEnd.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return sub, nil
}
