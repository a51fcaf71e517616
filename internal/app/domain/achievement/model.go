package achievement

import "time"

type Category string

const (
	CategoryTasks   Category = "tasks"
	CategoryStreaks Category = "streaks"
	CategoryFocus   Category = "focus"
	CategoryNotes   Category = "notes"
)

type PerkType string

const (
	PerkMaxTasks     PerkType = "max_tasks"
	PerkMaxNotes     PerkType = "max_notes"
	PerkDailyCredits PerkType = "daily_credits"
)

// Perk is an optional permanent bonus granted by unlocking a Definition.
type Perk struct {
	Type  PerkType `json:"type"`
	Value int      `json:"value"`
}

// Definition is a static, seeded achievement row.
type Definition struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Threshold int      `json:"threshold"`
	Perk      *Perk    `json:"perk,omitempty"`
}

// State is the single per-user row tracking lifetime stats and the unlocked
// achievement set. Ids entering Unlocked are never removed.
type State struct {
	UserID                 string          `json:"user_id"`
	LifetimeTasksCompleted int             `json:"lifetime_tasks_completed"`
	CurrentStreak          int             `json:"current_streak"`
	LongestStreak          int             `json:"longest_streak"`
	LastCompletionDate     *time.Time      `json:"last_completion_date,omitempty"`
	FocusCompletions       int             `json:"focus_completions"`
	NotesConverted         int             `json:"notes_converted"`
	Unlocked               map[string]bool `json:"unlocked"`
	UpdatedAt              time.Time       `json:"updated_at"`
}
