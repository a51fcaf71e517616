// Package postgres implements every storage interface on PostgreSQL. It
// follows the same query idiom throughout: parameterized SQL over
// database/sql, uuid ids minted in Go, UTC timestamps, and JSON-marshaled
// columns for map/slice fields. internal/platform/migrations owns the
// schema these queries assume.
package postgres

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/taskwarden/taskwarden/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Every
// method, the transactional Claim and Consume included, runs on the plain
// *sql.DB handle; sdb wraps the same pool and no method uses it.
type Store struct {
	db  *sql.DB
	sdb *sqlx.DB
}

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, sdb: sqlx.NewDb(db, "postgres")}
}

var (
	_ storage.UserStore        = (*Store)(nil)
	_ storage.TaskStore        = (*Store)(nil)
	_ storage.SubtaskStore     = (*Store)(nil)
	_ storage.TemplateStore    = (*Store)(nil)
	_ storage.NoteStore        = (*Store)(nil)
	_ storage.ReminderStore    = (*Store)(nil)
	_ storage.AchievementStore = (*Store)(nil)
	_ storage.TombstoneStore   = (*Store)(nil)
	_ storage.CreditStore      = (*Store)(nil)

	_ storage.ActivityStore     = activityAdapter{}
	_ storage.SubscriptionStore = subscriptionAdapter{}
	_ storage.NotificationStore = notificationAdapter{}
	_ storage.JobStore          = jobAdapter{}
	_ storage.IdempotencyStore  = idempotencyAdapter{}
	_ storage.RefreshTokenStore = refreshTokenAdapter{}
)

// NewStorage wires a postgres-backed storage.Storage, resolving the same
// Create/Get/List/ListByStatus name collisions the memory package works
// around with adapters.
func NewStorage(db *sql.DB) *storage.Storage {
	s := New(db)
	return &storage.Storage{
		Users:         s,
		Tasks:         s,
		Subtasks:      s,
		Templates:     s,
		Notes:         s,
		Reminders:     s,
		Achievements:  s,
		Tombstones:    s,
		Activity:      activityAdapter{s},
		Credits:       s,
		Subscriptions: subscriptionAdapter{s},
		Notifications: notificationAdapter{s},
		Jobs:          jobAdapter{s},
		Idempotency:   idempotencyAdapter{s},
		RefreshTokens: refreshTokenAdapter{s},
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}
