package credit

import "time"

// Class is the credit grant class. FIFO consumption order across classes is
// daily -> subscription -> purchased -> kickstart (see Consume).
type Class string

const (
	ClassKickstart    Class = "kickstart"
	ClassDaily        Class = "daily"
	ClassSubscription Class = "subscription"
	ClassPurchased    Class = "purchased"
)

// ConsumptionOrder is the authoritative FIFO class order for consume().
var ConsumptionOrder = []Class{ClassDaily, ClassSubscription, ClassPurchased, ClassKickstart}

type Operation string

const (
	OpGrant     Operation = "grant"
	OpConsume   Operation = "consume"
	OpExpire    Operation = "expire"
	OpCarryover Operation = "carryover"
)

// LedgerEntry is one append-only row. Grant rows carry a positive Amount;
// consume/expire rows carry a negative Amount.
type LedgerEntry struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Class        Class      `json:"class"`
	Operation    Operation  `json:"operation"`
	Amount       int        `json:"amount"`
	BalanceAfter int        `json:"balance_after"`
	Consumed     int        `json:"consumed"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Expired      bool       `json:"expired"`
	SourceID     *string    `json:"source_id,omitempty"`
	OperationRef string     `json:"operation_ref,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Balance is a per-class available total.
type Balance struct {
	ByClass map[Class]int `json:"by_class"`
	Total   int           `json:"total"`
}

// ConsumeResult reports how a consume() call was satisfied.
type ConsumeResult struct {
	ConsumedByClass map[Class]int
	NewBalance      Balance
}
