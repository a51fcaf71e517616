package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
)

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, offset, limit int) ([]notification.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []notification.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]notification.Notification{}, matched[offset:end]...), total, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	if !n.Read {
		now := time.Now().UTC()
		n.Read = true
		n.ReadAt = &now
		s.notifications[id] = n
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &now
			s.notifications[id] = n
		}
	}
	return nil
}

func (s *Store) CreatePushSubscription(ctx context.Context, p notification.PushSubscription) (notification.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Active = true
	s.pushSubscriptions[p.ID] = p
	return p, nil
}

func (s *Store) ListActivePushSubscriptions(ctx context.Context, userID string) ([]notification.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.PushSubscription
	for _, p := range s.pushSubscriptions {
		if p.UserID == userID && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeactivatePushSubscription(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pushSubscriptions[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	s.pushSubscriptions[id] = p
	return nil
}
