package activity

import "time"

// Source tags who/what caused an event.
type Source string

const (
	SourceUser   Source = "user"
	SourceAI     Source = "ai"
	SourceSystem Source = "system"
)

// Log is a user-scoped audit row with 30-day rolling retention.
type Log struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"user_id"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Action     string                 `json:"action"`
	Source     Source                 `json:"source"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}
