package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskwarden/taskwarden/internal/app/domain/credit"
	"github.com/taskwarden/taskwarden/internal/errors"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting grant/query helpers
// run either standalone or inside Consume's transaction.
type dbtx interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) Grant(ctx context.Context, entry credit.LedgerEntry) (credit.LedgerEntry, error) {
	bal, err := queryBalance(ctx, s.db, entry.UserID)
	if err != nil {
		return credit.LedgerEntry{}, err
	}
	entry.BalanceAfter = bal.Total + entry.Amount
	return grantRow(ctx, s.db, entry)
}

func grantRow(ctx context.Context, db dbtx, entry credit.LedgerEntry) (credit.LedgerEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO credit_ledger (id, user_id, class, operation, amount, balance_after, consumed,
			expires_at, expired, source_id, operation_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, entry.ID, entry.UserID, entry.Class, entry.Operation, entry.Amount, entry.BalanceAfter, entry.Consumed,
		entry.ExpiresAt, entry.Expired, entry.SourceID, entry.OperationRef, entry.CreatedAt)
	if err != nil {
		return credit.LedgerEntry{}, err
	}
	return entry, nil
}

func (s *Store) HasKickstartGrant(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM credit_ledger WHERE user_id = $1 AND class = $2 AND operation = $3)
	`, userID, credit.ClassKickstart, credit.OpGrant).Scan(&exists)
	return exists, err
}

func (s *Store) HasDailyGrantOn(ctx context.Context, userID string, day time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM credit_ledger
			WHERE user_id = $1 AND class = $2 AND operation = $3
				AND created_at::date = $4::date
		)
	`, userID, credit.ClassDaily, credit.OpGrant, day.UTC()).Scan(&exists)
	return exists, err
}

func (s *Store) PurchasedThisMonth(ctx context.Context, userID string, month time.Time) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(amount), 0) FROM credit_ledger
		WHERE user_id = $1 AND class = $2 AND operation = $3
			AND date_trunc('month', created_at) = date_trunc('month', $4::timestamptz)
	`, userID, credit.ClassPurchased, credit.OpGrant, month.UTC()).Scan(&total)
	return int(total.Int64), err
}

func (s *Store) Balance(ctx context.Context, userID string) (credit.Balance, error) {
	return queryBalance(ctx, s.db, userID)
}

func queryBalance(ctx context.Context, db dbtx, userID string) (credit.Balance, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT class, sum(amount - consumed)
		FROM credit_ledger
		WHERE user_id = $1 AND operation = $2 AND NOT expired
			AND (expires_at IS NULL OR expires_at > now())
		GROUP BY class
	`, userID, credit.OpGrant)
	if err != nil {
		return credit.Balance{}, err
	}
	defer rows.Close()

	bal := credit.Balance{ByClass: make(map[credit.Class]int)}
	for rows.Next() {
		var (
			class credit.Class
			sum   int
		)
		if err := rows.Scan(&class, &sum); err != nil {
			return credit.Balance{}, err
		}
		bal.ByClass[class] = sum
		bal.Total += sum
	}
	return bal, rows.Err()
}

// Consume locks the user's active grant rows FOR UPDATE ordered by the FIFO
// class order then by age, debits n units across them, and appends a
// single consume row. The whole operation runs in one transaction so a
// concurrent consume on the same user serializes behind the row locks.
func (s *Store) Consume(ctx context.Context, userID string, n int, operationRef string) (credit.ConsumeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return credit.ConsumeResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, class, amount, consumed
		FROM credit_ledger
		WHERE user_id = $1 AND operation = $2 AND NOT expired
			AND (expires_at IS NULL OR expires_at > now())
			AND amount > consumed
		ORDER BY
			CASE class
				WHEN 'daily' THEN 0
				WHEN 'subscription' THEN 1
				WHEN 'purchased' THEN 2
				WHEN 'kickstart' THEN 3
				ELSE 4
			END,
			created_at
		FOR UPDATE
	`, userID, credit.OpGrant)
	if err != nil {
		return credit.ConsumeResult{}, err
	}
	type row struct {
		id       string
		class    credit.Class
		amount   int
		consumed int
	}
	var candidates []row
	available := 0
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.class, &r.amount, &r.consumed); err != nil {
			rows.Close()
			return credit.ConsumeResult{}, err
		}
		candidates = append(candidates, r)
		available += r.amount - r.consumed
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return credit.ConsumeResult{}, err
	}

	if available < n {
		return credit.ConsumeResult{}, errors.InsufficientCredits(n, available)
	}

	remaining := n
	consumedByClass := make(map[credit.Class]int)
	for _, r := range candidates {
		if remaining <= 0 {
			break
		}
		avail := r.amount - r.consumed
		if avail <= 0 {
			continue
		}
		take := avail
		if take > remaining {
			take = remaining
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE credit_ledger SET consumed = consumed + $2 WHERE id = $1
		`, r.id, take); err != nil {
			return credit.ConsumeResult{}, err
		}
		consumedByClass[r.class] += take
		remaining -= take
	}

	newBalance, err := queryBalance(ctx, tx, userID)
	if err != nil {
		return credit.ConsumeResult{}, err
	}

	if _, err := grantRow(ctx, tx, credit.LedgerEntry{
		UserID:       userID,
		Class:        credit.ConsumptionOrder[0],
		Operation:    credit.OpConsume,
		Amount:       -n,
		BalanceAfter: newBalance.Total,
		OperationRef: operationRef,
	}); err != nil {
		return credit.ConsumeResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return credit.ConsumeResult{}, err
	}
	return credit.ConsumeResult{ConsumedByClass: consumedByClass, NewBalance: newBalance}, nil
}

func (s *Store) ExpirableGrants(ctx context.Context, asOf time.Time) ([]credit.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, class, operation, amount, balance_after, consumed, expires_at, expired, source_id, operation_ref, created_at
		FROM credit_ledger
		WHERE operation = $1 AND NOT expired AND expires_at IS NOT NULL AND expires_at <= $2
	`, credit.OpGrant, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []credit.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkExpired(ctx context.Context, grantID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE credit_ledger SET expired = true WHERE id = $1`, grantID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("credit_grant", grantID)
	}
	return nil
}

func (s *Store) ListForUser(ctx context.Context, userID string, offset, limit int) ([]credit.LedgerEntry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM credit_ledger WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, class, operation, amount, balance_after, consumed, expires_at, expired, source_id, operation_ref, created_at
		FROM credit_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []credit.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scanLedgerEntry(row rowScanner) (credit.LedgerEntry, error) {
	var e credit.LedgerEntry
	if err := row.Scan(&e.ID, &e.UserID, &e.Class, &e.Operation, &e.Amount, &e.BalanceAfter, &e.Consumed,
		&e.ExpiresAt, &e.Expired, &e.SourceID, &e.OperationRef, &e.CreatedAt); err != nil {
		return credit.LedgerEntry{}, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
