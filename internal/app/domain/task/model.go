package task

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// CompletedBy records how a task reached its completed state.
type CompletedBy string

const (
	CompletedByManual CompletedBy = "manual"
	CompletedByAuto   CompletedBy = "auto"
	CompletedByForce  CompletedBy = "force"
)

// Instance is a user-owned concrete task. completed_at is non-null iff
// Completed is true; Archived tasks may not be mutated or completed; once
// TemplateID is set at creation it never changes.
type Instance struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Priority         Priority    `json:"priority"`
	DueDate          *time.Time  `json:"due_date,omitempty"`
	EstimatedMinutes *int        `json:"estimated_minutes,omitempty"`
	FocusSeconds     int         `json:"focus_seconds"`
	Completed        bool        `json:"completed"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	CompletedBy      CompletedBy `json:"completed_by,omitempty"`
	Hidden           bool        `json:"hidden"`
	Archived         bool        `json:"archived"`
	TemplateID       *string     `json:"template_id,omitempty"`
	Version          int         `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
