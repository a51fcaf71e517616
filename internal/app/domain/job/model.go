package job

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDead       Status = "dead"
)

// Type enumerates the registered job handlers.
type Type string

const (
	TypeReminderFire          Type = "reminder_fire"
	TypeStreakCalculate       Type = "streak_calculate"
	TypeCreditExpire          Type = "credit_expire"
	TypeSubscriptionCheck     Type = "subscription_check"
	TypeRecurringTaskGenerate Type = "recurring_task_generate"
	TypeActivityCleanup       Type = "activity_cleanup"
)

// Outcome is what a handler reports back to the worker after running.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeRetry   Outcome = "retry"
	OutcomeError   Outcome = "error"
)

// Job is a durable queue entry. Claim is the only operation that may
// transition Pending -> Processing, and it must do so atomically across
// concurrent workers.
type Job struct {
	ID          string     `json:"id"`
	Type        Type       `json:"type"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      Status     `json:"status"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LockedAt    *time.Time `json:"locked_at,omitempty"`
	LockedBy    string     `json:"locked_by,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Result      []byte     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
