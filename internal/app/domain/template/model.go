package template

import "time"

// Template is a recurring-task definition. It generates task.Instance rows
// tagged with its id via the job engine's recurring_task_generate handler.
type Template struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	RecurrenceRule string     `json:"recurrence_rule"`
	NextDue        *time.Time `json:"next_due,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
