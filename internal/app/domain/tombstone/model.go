package tombstone

import "time"

// CurrentSchemaVersion tags the payload format so recovery can evolve the
// serialized shape without breaking old tombstone rows.
const CurrentSchemaVersion = 1

// Tombstone is a ring-buffer entry (max 3 per user) holding a fully
// serialized deleted entity for recovery within the retention window.
type Tombstone struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	SchemaVersion int       `json:"schema_version"`
	Payload       []byte    `json:"-"`
	DeletedAt     time.Time `json:"deleted_at"`
}

// TaskPayload is the schema-versioned payload recorded for a deleted task,
// including its subtasks and the template it was generated from so
// recovery can fully reconstruct it.
type TaskPayload struct {
	SchemaVersion int                      `json:"schema_version"`
	Task          map[string]interface{}   `json:"task"`
	Subtasks      []map[string]interface{} `json:"subtasks"`
	Reminders     []map[string]interface{} `json:"reminders"`
}
