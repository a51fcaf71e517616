// Package memory is an in-process implementation of every storage
// interface, used by service unit tests and by local/dev runs without a
// database configured. It trades durability and true row-locking for
// simplicity; the postgres package is the production implementation.
package memory

import (
	"sync"
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
	"github.com/taskwarden/taskwarden/internal/app/storage"
)

// Store implements every storage interface over in-memory maps guarded by a
// single mutex. One mutex is deliberate: it makes Consume/Claim trivially
// serialize the way a real row lock would, and these stores are small
// enough that contention is a non-issue.
type Store struct {
	mu sync.Mutex

	users         map[string]user.User
	usersBySubject map[string]string

	tasks     map[string]task.Instance
	subtasks  map[string]subtask.Subtask
	templates map[string]template.Template
	notes     map[string]note.Note
	reminders map[string]reminder.Reminder

	achievementStates map[string]achievement.State
	tombstones        map[string]tombstone.Tombstone
	activityLogs      map[string]activity.Log

	ledger        map[string]credit.LedgerEntry
	subscriptions map[string]subscription.Subscription
	processedEvents map[string]bool

	notifications     map[string]notification.Notification
	pushSubscriptions map[string]notification.PushSubscription

	jobs map[string]job.Job

	idempotencyKeys map[string]idempotency.Key

	refreshTokens map[string]refreshTokenRow

	seq int
}

type refreshTokenRow struct {
	UserID    string
	Revoked   bool
	ExpiresAt time.Time
}

// New constructs an empty backend and wires it into a storage.Storage. Most
// interfaces are satisfied by *Store directly; a handful of method names
// collide across interfaces (Create, Get, List, ListByStatus), so those are
// exposed through small adapter types defined in adapters.go instead.
func New() *storage.Storage {
	db := newStore()
	return &storage.Storage{
		Users:         db,
		Tasks:         db,
		Subtasks:      db,
		Templates:     db,
		Notes:         db,
		Reminders:     db,
		Achievements:  db,
		Tombstones:    db,
		Activity:      activityAdapter{db},
		Credits:       db,
		Subscriptions: subscriptionAdapter{db},
		Notifications: notificationAdapter{db},
		Jobs:          jobAdapter{db},
		Idempotency:   idempotencyAdapter{db},
		RefreshTokens: refreshTokenAdapter{db},
	}
}

func newStore() *Store {
	return &Store{
		users:             make(map[string]user.User),
		usersBySubject:    make(map[string]string),
		tasks:             make(map[string]task.Instance),
		subtasks:          make(map[string]subtask.Subtask),
		templates:         make(map[string]template.Template),
		notes:             make(map[string]note.Note),
		reminders:         make(map[string]reminder.Reminder),
		achievementStates: make(map[string]achievement.State),
		tombstones:        make(map[string]tombstone.Tombstone),
		activityLogs:      make(map[string]activity.Log),
		ledger:            make(map[string]credit.LedgerEntry),
		subscriptions:     make(map[string]subscription.Subscription),
		processedEvents:   make(map[string]bool),
		notifications:     make(map[string]notification.Notification),
		pushSubscriptions: make(map[string]notification.PushSubscription),
		jobs:              make(map[string]job.Job),
		idempotencyKeys:   make(map[string]idempotency.Key),
		refreshTokens:     make(map[string]refreshTokenRow),
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + itoa(s.seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
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
