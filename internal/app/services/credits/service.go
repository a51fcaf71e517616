// Package credits wraps storage.CreditStore with the grant idempotency
// rules and monthly purchase cap. FIFO consumption itself lives in
// the storage layer, which must run it under a row-level lock.
package credits

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/credit"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
)

type Service struct {
	store               storage.CreditStore
	kickstartAmount     int
	dailyAmount         int
	carryoverCap        int
	monthlyPurchaseCap  int
}

func New(store storage.CreditStore, kickstartAmount, dailyAmount, carryoverCap, monthlyPurchaseCap int) *Service {
	return &Service{
		store:              store,
		kickstartAmount:    kickstartAmount,
		dailyAmount:        dailyAmount,
		carryoverCap:       carryoverCap,
		monthlyPurchaseCap: monthlyPurchaseCap,
	}
}

// GrantKickstart issues the one-time never-expiring welcome grant. A
// second call for the same user is a no-op.
func (s *Service) GrantKickstart(ctx context.Context, userID string) (bool, error) {
	has, err := s.store.HasKickstartGrant(ctx, userID)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	if _, err := s.store.Grant(ctx, credit.LedgerEntry{
		UserID:    userID,
		Class:     credit.ClassKickstart,
		Operation: credit.OpGrant,
		Amount:    s.kickstartAmount,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// GrantDaily issues the day's daily-class grant, expiring at next UTC
// midnight. A second call on the same UTC day is a no-op.
func (s *Service) GrantDaily(ctx context.Context, userID string, now time.Time, bonus int) (bool, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	has, err := s.store.HasDailyGrantOn(ctx, userID, day)
	if err != nil {
		return false, err
	}
	if has {
		return false, nil
	}
	expiresAt := day.Add(24 * time.Hour)
	amount := s.dailyAmount + bonus
	if _, err := s.store.Grant(ctx, credit.LedgerEntry{
		UserID:    userID,
		Class:     credit.ClassDaily,
		Operation: credit.OpGrant,
		Amount:    amount,
		ExpiresAt: &expiresAt,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// GrantMonthly issues a subscription-class grant tied to the current
// billing period's end, called on payment_captured.
func (s *Service) GrantMonthly(ctx context.Context, userID string, amount int, periodEnd time.Time) error {
	_, err := s.store.Grant(ctx, credit.LedgerEntry{
		UserID:    userID,
		Class:     credit.ClassSubscription,
		Operation: credit.OpGrant,
		Amount:    amount,
		ExpiresAt: &periodEnd,
	})
	return err
}

// GrantPurchased issues a never-expiring purchased grant, enforcing the
// 500-unit monthly cap.
func (s *Service) GrantPurchased(ctx context.Context, userID string, amount int, ref string) (credit.LedgerEntry, error) {
	now := time.Now().UTC()
	purchased, err := s.store.PurchasedThisMonth(ctx, userID, now)
	if err != nil {
		return credit.LedgerEntry{}, err
	}
	if purchased+amount > s.monthlyPurchaseCap {
		return credit.LedgerEntry{}, errors.LimitExceeded("purchased_credits", s.monthlyPurchaseCap)
	}
	return s.store.Grant(ctx, credit.LedgerEntry{
		UserID:       userID,
		Class:        credit.ClassPurchased,
		Operation:    credit.OpGrant,
		Amount:       amount,
		OperationRef: ref,
	})
}

func (s *Service) Balance(ctx context.Context, userID string) (credit.Balance, error) {
	return s.store.Balance(ctx, userID)
}

func (s *Service) Consume(ctx context.Context, userID string, n int, operationRef string) (credit.ConsumeResult, error) {
	return s.store.Consume(ctx, userID, n, operationRef)
}

// Refund compensates a consume with a grant of the same class and amount,
// used when a vendor call fails after credits were already debited.
func (s *Service) Refund(ctx context.Context, userID string, class credit.Class, amount int, ref string) error {
	_, err := s.store.Grant(ctx, credit.LedgerEntry{
		UserID:       userID,
		Class:        class,
		Operation:    credit.OpGrant,
		Amount:       amount,
		OperationRef: ref,
	})
	return err
}

func (s *Service) ListForUser(ctx context.Context, userID string, offset, limit int) ([]credit.LedgerEntry, int, error) {
	return s.store.ListForUser(ctx, userID, offset, limit)
}

// ExpireDue runs the credit_expire job: finds expired-but-unflagged grant
// rows, writes compensating expire rows, and carries over up to
// carryoverCap units of subscription-class grants past their nominal
// expiry by deferring expires_at instead of expiring them outright.
func (s *Service) ExpireDue(ctx context.Context, asOf time.Time) (int, error) {
	grants, err := s.store.ExpirableGrants(ctx, asOf)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, g := range grants {
		available := g.Amount - g.Consumed
		if available <= 0 {
			if err := s.store.MarkExpired(ctx, g.ID); err != nil {
				return expired, err
			}
			continue
		}

		carry := 0
		if g.Class == credit.ClassSubscription && available > 0 {
			if available <= s.carryoverCap {
				carry = available
			} else {
				carry = s.carryoverCap
			}
		}
		toExpire := available - carry
		if toExpire > 0 {
			sourceID := g.ID
			if _, err := s.store.Grant(ctx, credit.LedgerEntry{
				UserID:    g.UserID,
				Class:     g.Class,
				Operation: credit.OpExpire,
				Amount:    -toExpire,
				SourceID:  &sourceID,
			}); err != nil {
				return expired, err
			}
		}
		if carry > 0 {
			deferred := asOf.Add(24 * time.Hour)
			sourceID := g.ID
			if _, err := s.store.Grant(ctx, credit.LedgerEntry{
				UserID:    g.UserID,
				Class:     g.Class,
				Operation: credit.OpCarryover,
				Amount:    carry,
				ExpiresAt: &deferred,
				SourceID:  &sourceID,
			}); err != nil {
				return expired, err
			}
		}
		if err := s.store.MarkExpired(ctx, g.ID); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}
