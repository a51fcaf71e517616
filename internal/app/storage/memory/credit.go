package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/credit"
	"github.com/taskwarden/taskwarden/internal/errors"
)

func (s *Store) Grant(ctx context.Context, entry credit.LedgerEntry) (credit.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grantLocked(entry)
}

func (s *Store) grantLocked(entry credit.LedgerEntry) (credit.LedgerEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.BalanceAfter = s.totalBalanceLocked(entry.UserID) + entry.Amount
	s.ledger[entry.ID] = entry
	return entry, nil
}

func (s *Store) HasKickstartGrant(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.ledger {
		if e.UserID == userID && e.Class == credit.ClassKickstart && e.Operation == credit.OpGrant {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasDailyGrantOn(ctx context.Context, userID string, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y1, m1, d1 := day.UTC().Date()
	for _, e := range s.ledger {
		if e.UserID != userID || e.Class != credit.ClassDaily || e.Operation != credit.OpGrant {
			continue
		}
		y2, m2, d2 := e.CreatedAt.UTC().Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PurchasedThisMonth(ctx context.Context, userID string, month time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y, m, _ := month.UTC().Date()
	total := 0
	for _, e := range s.ledger {
		if e.UserID != userID || e.Class != credit.ClassPurchased || e.Operation != credit.OpGrant {
			continue
		}
		ey, em, _ := e.CreatedAt.UTC().Date()
		if ey == y && em == m {
			total += e.Amount
		}
	}
	return total, nil
}

// activeGrantsLocked returns non-expired grant rows for userID, grouped by
// class, each class's rows sorted oldest-first. Caller must hold s.mu.
func (s *Store) activeGrantsLocked(userID string, now time.Time) map[credit.Class][]credit.LedgerEntry {
	byClass := make(map[credit.Class][]credit.LedgerEntry)
	for _, e := range s.ledger {
		if e.UserID != userID || e.Operation != credit.OpGrant || e.Expired {
			continue
		}
		if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			continue
		}
		byClass[e.Class] = append(byClass[e.Class], e)
	}
	for class := range byClass {
		rows := byClass[class]
		sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
		byClass[class] = rows
	}
	return byClass
}

func (s *Store) totalBalanceLocked(userID string) int {
	bal := s.balanceLocked(userID)
	return bal.Total
}

func (s *Store) balanceLocked(userID string) credit.Balance {
	now := time.Now().UTC()
	byClass := s.activeGrantsLocked(userID, now)
	bal := credit.Balance{ByClass: make(map[credit.Class]int)}
	for class, rows := range byClass {
		sum := 0
		for _, e := range rows {
			sum += e.Amount - e.Consumed
		}
		bal.ByClass[class] = sum
		bal.Total += sum
	}
	return bal
}

func (s *Store) Balance(ctx context.Context, userID string) (credit.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(userID), nil
}

func (s *Store) Consume(ctx context.Context, userID string, n int, operationRef string) (credit.ConsumeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	byClass := s.activeGrantsLocked(userID, now)

	available := 0
	for _, rows := range byClass {
		for _, e := range rows {
			available += e.Amount - e.Consumed
		}
	}
	if available < n {
		return credit.ConsumeResult{}, errors.InsufficientCredits(n, available)
	}

	remaining := n
	consumedByClass := make(map[credit.Class]int)
	for _, class := range credit.ConsumptionOrder {
		rows := byClass[class]
		for i, e := range rows {
			if remaining <= 0 {
				break
			}
			avail := e.Amount - e.Consumed
			if avail <= 0 {
				continue
			}
			take := avail
			if take > remaining {
				take = remaining
			}
			e.Consumed += take
			remaining -= take
			consumedByClass[class] += take
			rows[i] = e
			s.ledger[e.ID] = e
		}
		if remaining <= 0 {
			break
		}
	}

	newBalance := s.balanceLocked(userID)
	entry := credit.LedgerEntry{
		UserID:       userID,
		Class:        credit.ConsumptionOrder[0],
		Operation:    credit.OpConsume,
		Amount:       -n,
		BalanceAfter: newBalance.Total,
		OperationRef: operationRef,
	}
	if _, err := s.grantLocked(entry); err != nil {
		return credit.ConsumeResult{}, err
	}

	return credit.ConsumeResult{ConsumedByClass: consumedByClass, NewBalance: newBalance}, nil
}

func (s *Store) ExpirableGrants(ctx context.Context, asOf time.Time) ([]credit.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []credit.LedgerEntry
	for _, e := range s.ledger {
		if e.Operation == credit.OpGrant && !e.Expired && e.ExpiresAt != nil && !e.ExpiresAt.After(asOf) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) MarkExpired(ctx context.Context, grantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ledger[grantID]
	if !ok {
		return errors.NotFound("credit_grant", grantID)
	}
	e.Expired = true
	s.ledger[grantID] = e
	return nil
}

func (s *Store) ListForUser(ctx context.Context, userID string, offset, limit int) ([]credit.LedgerEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []credit.LedgerEntry
	for _, e := range s.ledger {
		if e.UserID == userID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return append([]credit.LedgerEntry{}, matched[offset:end]...), total, nil
}
