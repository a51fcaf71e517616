package idempotency

import "time"

// Key is a client-supplied token scoped by user and path, deduplicating one
// write within the TTL window (24h by default).
type Key struct {
	Key            string
	UserID         string
	Path           string
	BodyHash       string
	ResponseStatus int
	ResponseBody   []byte
	ExpiresAt      time.Time
	CreatedAt      time.Time
}
