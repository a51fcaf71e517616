package memory

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/idempotency"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Store) GetIdempotencyKey(ctx context.Context, userID, key string) (idempotency.Key, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.idempotencyKeys[idempotencyMapKey(userID, key)]
	if !ok {
		return idempotency.Key{}, false, nil
	}
	return k, true, nil
}

func (s *Store) Save(ctx context.Context, k idempotency.Key) (idempotency.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey := idempotencyMapKey(k.UserID, k.Key)
	if _, exists := s.idempotencyKeys[mapKey]; exists {
		return idempotency.Key{}, errors.IdempotencyConflict()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	s.idempotencyKeys[mapKey] = k
	return k, nil
}

func (s *Store) DeleteExpired(ctx context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for mapKey, k := range s.idempotencyKeys {
		if !k.ExpiresAt.After(asOf) {
			delete(s.idempotencyKeys, mapKey)
			removed++
		}
	}
	return removed, nil
}

func idempotencyMapKey(userID, key string) string {
	return userID + "\x00" + key
}
