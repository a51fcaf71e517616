package subtask

import "time"

// Source identifies who created the subtask.
type Source string

const (
	SourceUser Source = "user"
	SourceAI   Source = "ai"
)

// Subtask is a child of a TaskInstance. OrderIndex is gapless 0..N-1 across
// siblings outside of a single transaction.
type Subtask struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	OrderIndex  int        `json:"order_index"`
	Source      Source     `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
