package subscription

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusGrace     Status = "grace"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Subscription is the single row per user driving tier and credit grants.
// A cancelled subscription retains pro access until PeriodEnd so a user who
// cancels mid-cycle keeps what they paid for.
type Subscription struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	ExternalID         string     `json:"external_id"`
	Status             Status     `json:"status"`
	PeriodStart        time.Time  `json:"period_start"`
	PeriodEnd          time.Time  `json:"period_end"`
	GraceEnd           *time.Time `json:"grace_end,omitempty"`
	FailedPaymentCount int        `json:"failed_payment_count"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	GraceWarningSentAt *time.Time `json:"grace_warning_sent_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasProAccess reports whether the subscription entitles its user to pro
// features right now, accounting for the cancelled-but-not-yet-expired
// window.
func (s Subscription) HasProAccess(now time.Time) bool {
	switch s.Status {
	case StatusActive, StatusPastDue, StatusGrace:
		return true
	case StatusCancelled:
		return now.Before(s.PeriodEnd)
	default:
		return false
	}
}
