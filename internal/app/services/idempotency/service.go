// Package idempotency deduplicates non-idempotent writes keyed by a
// client-supplied header.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/idempotency"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

type Service struct {
	store storage.IdempotencyStore
	ttl   time.Duration
}

func New(store storage.IdempotencyStore, ttl time.Duration) *Service {
	return &Service{store: store, ttl: ttl}
}

// HashBody computes the stored body fingerprint for a raw request body.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Outcome is what the middleware needs to decide whether to replay a
// stored response or let the request proceed.
type Outcome struct {
	// Replay is true when a prior response for this exact key+body exists
	// and should be written back verbatim.
	Replay         bool
	ResponseStatus int
	ResponseBody   []byte
}

// Check looks up an existing key row. A hit with a matching body hash
// means replay; a hit with a mismatched body hash is an IDEMPOTENCY_CONFLICT;
// a miss means the caller should proceed and call Save once the real
// response is known.
func (s *Service) Check(ctx context.Context, userID, key, path string, bodyHash string) (Outcome, error) {
	existing, found, err := s.store.Get(ctx, userID, key)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		return Outcome{}, nil
	}
	if existing.BodyHash != bodyHash || existing.Path != path {
		return Outcome{}, errors.IdempotencyConflict()
	}
	return Outcome{Replay: true, ResponseStatus: existing.ResponseStatus, ResponseBody: existing.ResponseBody}, nil
}

// Save records the response produced for a first-seen key so replays can
// return it verbatim. 5xx responses are intentionally not saved upstream
// by the caller: only 2xx/4xx are worth deduplicating.
func (s *Service) Save(ctx context.Context, userID, key, path, bodyHash string, status int, body []byte) error {
	_, err := s.store.Save(ctx, idempotency.Key{
		Key:            key,
		UserID:         userID,
		Path:           path,
		BodyHash:       bodyHash,
		ResponseStatus: status,
		ResponseBody:   body,
		ExpiresAt:      time.Now().UTC().Add(s.ttl),
	})
	return err
}

// Sweep deletes expired key rows. No job handler or start-up path calls
// it, and no job type exists for it; expired rows stay in the store until
// a caller invokes Sweep.
func (s *Service) Sweep(ctx context.Context, asOf time.Time) (int, error) {
	return s.store.DeleteExpired(ctx, asOf)
}
