package reminder

import "time"

type Type string

const (
	TypeBefore   Type = "before"
	TypeAfter    Type = "after"
	TypeAbsolute Type = "absolute"
)

type Method string

const (
	MethodPush   Method = "push"
	MethodInApp  Method = "in_app"
)

// Reminder is tied to a task.Instance. OffsetMinutes applies to
// before/after types; ScheduledAt is authoritative once computed.
type Reminder struct {
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id"`
	UserID        string     `json:"user_id"`
	Type          Type       `json:"type"`
	OffsetMinutes *int       `json:"offset_minutes,omitempty"`
	ScheduledAt   time.Time  `json:"scheduled_at"`
	Method        Method     `json:"method"`
	Fired         bool       `json:"fired"`
	FiredAt       *time.Time `json:"fired_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
