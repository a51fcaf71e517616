// Package storage defines the repository contracts every domain service is
// built against. internal/app/storage/memory implements them for tests and
// internal/app/storage/postgres implements them for production.
package storage

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/achievement"
	"github.com/taskwarden/taskwarden/internal/app/domain/activity"
	"github.com/taskwarden/taskwarden/internal/app/domain/credit"
	"github.com/taskwarden/taskwarden/internal/app/domain/idempotency"
	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/domain/note"
	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
	"github.com/taskwarden/taskwarden/internal/app/domain/subscription"
	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/domain/template"
	"github.com/taskwarden/taskwarden/internal/app/domain/tombstone"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
)

// UserStore manages the user table.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByExternalSubject(ctx context.Context, subject string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	SetTier(ctx context.Context, userID string, tier user.Tier) error
}

// TaskStore manages TaskInstance rows with optimistic locking and cascade.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Instance) (task.Instance, error)
	GetTask(ctx context.Context, userID, id string) (task.Instance, error)
	ListTasks(ctx context.Context, userID string, filter TaskFilter) ([]task.Instance, int, error)
	// UpdateTask applies t using optimistic locking: the stored version must
	// equal t.Version, the new row's version becomes t.Version+1.
	UpdateTask(ctx context.Context, t task.Instance) (task.Instance, error)
	CountActiveTasks(ctx context.Context, userID string) (int, error)
	// DeleteTask hard-deletes the task and its subtasks/reminders in one
	// transaction, returning the removed rows for tombstone construction.
	DeleteTask(ctx context.Context, userID, id string) (task.Instance, []subtask.Subtask, []reminder.Reminder, error)
	// RecreateTask reinstates a task (and its children) with the same id as
	// part of tombstone recovery. Fails with errors.IDCollision semantics
	// if the id already exists.
	RecreateTask(ctx context.Context, t task.Instance, subtasks []subtask.Subtask, reminders []reminder.Reminder) error
	ClearTemplateReference(ctx context.Context, templateID string) error
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	IncludeHidden   bool
	IncludeArchived bool
	Completed       *bool
	Offset          int
	Limit           int
}

// SubtaskStore manages Subtask rows scoped to a parent task.
type SubtaskStore interface {
	CreateSubtask(ctx context.Context, s subtask.Subtask) (subtask.Subtask, error)
	GetSubtask(ctx context.Context, id string) (subtask.Subtask, error)
	ListSubtasks(ctx context.Context, taskID string) ([]subtask.Subtask, error)
	UpdateSubtask(ctx context.Context, s subtask.Subtask) (subtask.Subtask, error)
	DeleteSubtask(ctx context.Context, id string) (subtask.Subtask, error)
	// ReorderSubtasks assigns indices 0..N-1 from orderedIDs atomically.
	ReorderSubtasks(ctx context.Context, taskID string, orderedIDs []string) ([]subtask.Subtask, error)
	CountSubtasks(ctx context.Context, taskID string) (int, error)
}

// TemplateStore manages TaskTemplate rows.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t template.Template) (template.Template, error)
	GetTemplate(ctx context.Context, userID, id string) (template.Template, error)
	ListTemplates(ctx context.Context, userID string) ([]template.Template, error)
	UpdateTemplate(ctx context.Context, t template.Template) (template.Template, error)
	DeleteTemplate(ctx context.Context, userID, id string) error
	ListDueTemplates(ctx context.Context, asOf time.Time) ([]template.Template, error)
}

// NoteStore manages Note rows.
type NoteStore interface {
	CreateNote(ctx context.Context, n note.Note) (note.Note, error)
	GetNote(ctx context.Context, userID, id string) (note.Note, error)
	ListNotes(ctx context.Context, userID string, includeArchived bool, offset, limit int) ([]note.Note, int, error)
	UpdateNote(ctx context.Context, n note.Note) (note.Note, error)
	CountActiveNotes(ctx context.Context, userID string) (int, error)
	DeleteNote(ctx context.Context, userID, id string) error
}

// ReminderStore manages Reminder rows.
type ReminderStore interface {
	CreateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error)
	GetReminder(ctx context.Context, id string) (reminder.Reminder, error)
	ListRemindersForTask(ctx context.Context, taskID string) ([]reminder.Reminder, error)
	UpdateReminder(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	CountForTask(ctx context.Context, taskID string) (int, error)
	// ListDue returns pending reminders whose ScheduledAt <= asOf, for the
	// reminder_fire job handler.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]reminder.Reminder, error)
}

// AchievementStore manages the per-user achievement state.
type AchievementStore interface {
	GetState(ctx context.Context, userID string) (achievement.State, error)
	// UpdateState persists mutated stats/unlocked set for a user, creating
	// the row if it doesn't yet exist.
	UpdateState(ctx context.Context, state achievement.State) (achievement.State, error)
	// ListActiveStreaks returns every state with a non-zero current streak
	// whose last completion predates cutoff, for the nightly streak-reset
	// sweep.
	ListActiveStreaks(ctx context.Context, cutoff time.Time) ([]achievement.State, error)
}

// TombstoneStore manages the per-user deletion ring buffer.
type TombstoneStore interface {
	CreateTombstone(ctx context.Context, t tombstone.Tombstone) (tombstone.Tombstone, error)
	GetTombstone(ctx context.Context, userID, id string) (tombstone.Tombstone, error)
	ListTombstones(ctx context.Context, userID string) ([]tombstone.Tombstone, error)
	DeleteTombstone(ctx context.Context, userID, id string) error
	// CountForUser supports FIFO eviction on the 4th delete.
	CountForUser(ctx context.Context, userID string) (int, error)
	// OldestForUser returns the oldest tombstone for FIFO eviction.
	OldestForUser(ctx context.Context, userID string) (tombstone.Tombstone, error)
}

// ActivityStore manages the 30-day-retention audit log.
type ActivityStore interface {
	Append(ctx context.Context, l activity.Log) (activity.Log, error)
	List(ctx context.Context, userID string, offset, limit int) ([]activity.Log, int, error)
	// DeleteOlderThan removes rows with created_at < cutoff, up to batchSize
	// rows at a time, returning the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}

// CreditStore manages the append-only AI credit ledger.
type CreditStore interface {
	// Grant inserts a grant/expire/carryover row and returns it with id and
	// balance_after populated.
	Grant(ctx context.Context, entry credit.LedgerEntry) (credit.LedgerEntry, error)
	// HasKickstartGrant reports whether grant_kickstart already ran for
	// this user (idempotency).
	HasKickstartGrant(ctx context.Context, userID string) (bool, error)
	// HasDailyGrantOn reports whether grant_daily already ran for this user
	// on the given UTC calendar day.
	HasDailyGrantOn(ctx context.Context, userID string, day time.Time) (bool, error)
	// PurchasedThisMonth sums purchased-class grant amounts within the
	// current calendar month, for the monthly purchase cap.
	PurchasedThisMonth(ctx context.Context, userID string, month time.Time) (int, error)
	// Balance returns per-class available sums.
	Balance(ctx context.Context, userID string) (credit.Balance, error)
	// Consume locks the user's active grant rows and debits n units FIFO,
	// returning an INSUFFICIENT_CREDITS error (errors.InsufficientCredits)
	// if the available sum is short.
	Consume(ctx context.Context, userID string, n int, operationRef string) (credit.ConsumeResult, error)
	// ExpirableGrants returns non-expired grant rows whose expires_at <=
	// asOf, for the credit_expire job.
	ExpirableGrants(ctx context.Context, asOf time.Time) ([]credit.LedgerEntry, error)
	// MarkExpired flags a grant row expired after an expire row is written.
	MarkExpired(ctx context.Context, grantID string) error
	ListForUser(ctx context.Context, userID string, offset, limit int) ([]credit.LedgerEntry, int, error)
}

// SubscriptionStore manages the one-per-user Subscription row.
type SubscriptionStore interface {
	Create(ctx context.Context, s subscription.Subscription) (subscription.Subscription, error)
	GetByUserID(ctx context.Context, userID string) (subscription.Subscription, error)
	GetByExternalID(ctx context.Context, externalID string) (subscription.Subscription, error)
	Update(ctx context.Context, s subscription.Subscription) (subscription.Subscription, error)
	// ListByStatus supports the daily subscription_check job.
	ListByStatus(ctx context.Context, statuses ...subscription.Status) ([]subscription.Subscription, error)
	// HasProcessedEvent supports webhook idempotency keyed on the vendor's
	// event id.
	HasProcessedEvent(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}

// NotificationStore manages Notification and PushSubscription rows.
type NotificationStore interface {
	Create(ctx context.Context, n notification.Notification) (notification.Notification, error)
	List(ctx context.Context, userID string, offset, limit int) ([]notification.Notification, int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error

	CreatePushSubscription(ctx context.Context, p notification.PushSubscription) (notification.PushSubscription, error)
	ListActivePushSubscriptions(ctx context.Context, userID string) ([]notification.PushSubscription, error)
	DeactivatePushSubscription(ctx context.Context, id string) error
}

// JobStore manages the durable job queue.
type JobStore interface {
	Enqueue(ctx context.Context, j job.Job) (job.Job, error)
	// Claim atomically selects and locks up to batchSize pending-and-due
	// jobs, transitioning them to processing. Implementations must
	// guarantee at-most-one-worker-per-job.
	Claim(ctx context.Context, workerID string, batchSize int) ([]job.Job, error)
	Complete(ctx context.Context, id string, result []byte) error
	Fail(ctx context.Context, id string, errMsg string, nextRetryAt *time.Time) error
	DeadLetter(ctx context.Context, id string, errMsg string) error
	Reset(ctx context.Context, id string) (job.Job, error)
	// ReleaseStaleLocks returns in-flight jobs locked before cutoff back to
	// pending.
	ReleaseStaleLocks(ctx context.Context, cutoff time.Time) (int, error)
	Get(ctx context.Context, id string) (job.Job, error)
	ListByStatus(ctx context.Context, status job.Status, limit int) ([]job.Job, error)
}

// IdempotencyStore manages request idempotency keys.
type IdempotencyStore interface {
	Get(ctx context.Context, userID, key string) (idempotency.Key, bool, error)
	// Save stores a new key row; implementations must enforce uniqueness on
	// (user_id, key) to serialize concurrent first-writers.
	Save(ctx context.Context, k idempotency.Key) (idempotency.Key, error)
	DeleteExpired(ctx context.Context, asOf time.Time) (int, error)
}

// RefreshTokenStore manages refresh token hashes.
type RefreshTokenStore interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// GetActive returns the user id for a non-revoked, non-expired hash.
	GetActive(ctx context.Context, tokenHash string) (string, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Storage bundles every repository contract. Services depend on the
// individual XStore interfaces they need; Storage is how application wiring
// passes a whole backend (memory, postgres) around as one value.
type Storage struct {
	Users         UserStore
	Tasks         TaskStore
	Subtasks      SubtaskStore
	Templates     TemplateStore
	Notes         NoteStore
	Reminders     ReminderStore
	Achievements  AchievementStore
	Tombstones    TombstoneStore
	Activity      ActivityStore
	Credits       CreditStore
	Subscriptions SubscriptionStore
	Notifications NotificationStore
	Jobs          JobStore
	Idempotency   IdempotencyStore
	RefreshTokens RefreshTokenStore
}
