package memory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/subscription"
)

func (s *Store) CreateSubscription(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetByUserID(ctx context.Context, userID string) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			return sub, nil
		}
	}
	return subscription.Subscription{}, sql.ErrNoRows
}

func (s *Store) GetByExternalID(ctx context.Context, externalID string) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscriptions {
		if sub.ExternalID == externalID {
			return sub, nil
		}
	}
	return subscription.Subscription{}, sql.ErrNoRows
}

func (s *Store) Update(ctx context.Context, sub subscription.Subscription) (subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subscriptions[sub.ID]
	if !ok {
		return subscription.Subscription{}, sql.ErrNoRows
	}
	sub.CreatedAt = existing.CreatedAt
	sub.UserID = existing.UserID
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[sub.ID] = sub
	return sub, nil
}

func (s *Store) ListSubscriptionsByStatus(ctx context.Context, statuses ...subscription.Status) ([]subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[subscription.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []subscription.Subscription
	for _, sub := range s.subscriptions {
		if want[sub.Status] {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) HasProcessedEvent(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processedEvents[eventID], nil
}

func (s *Store) MarkEventProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedEvents[eventID] = true
	return nil
}
