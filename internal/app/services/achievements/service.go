// Package achievements computes streaks, milestone unlocks, and the
// resulting effective per-user limits.
package achievements

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/achievement"
	"github.com/taskwarden/taskwarden/internal/app/domain/event"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/services/events"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

// Service owns UserAchievementState and the static Catalog check.
type Service struct {
	store storage.AchievementStore
	bus   *events.Bus
	log   *logger.Logger
}

func New(store storage.AchievementStore, bus *events.Bus, log *logger.Logger) *Service {
	s := &Service{store: store, bus: bus, log: log}
	s.registerHandlers()
	return s
}

// registerHandlers wires the standard achievement-engine handlers onto the
// event bus: streak/milestone updates on TaskCompleted, focus counting on
// FocusSessionEnded, and note-conversion counting on NoteConverted.
func (s *Service) registerHandlers() {
	s.bus.Subscribe(event.TypeTaskCompleted, func(ctx context.Context, e event.Event) error {
		if e.IsRecovery {
			return nil
		}
		return s.RecordTaskCompletion(ctx, e.ActorUserID, e.OccurredAt)
	})
	s.bus.Subscribe(event.TypeFocusSessionEnded, func(ctx context.Context, e event.Event) error {
		return s.RecordFocusCompletion(ctx, e.ActorUserID)
	})
	s.bus.Subscribe(event.TypeNoteConverted, func(ctx context.Context, e event.Event) error {
		return s.RecordNoteConverted(ctx, e.ActorUserID)
	})
}

func (s *Service) GetState(ctx context.Context, userID string) (achievement.State, error) {
	return s.store.GetState(ctx, userID)
}

// RecordTaskCompletion applies the streak update and lifetime counter,
// then runs the milestone check for the tasks and streaks categories.
func (s *Service) RecordTaskCompletion(ctx context.Context, userID string, completedAt time.Time) error {
	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		return err
	}
	state.LifetimeTasksCompleted++

	day := completedAt.UTC().Truncate(24 * time.Hour)
	switch {
	case state.LastCompletionDate == nil:
		state.CurrentStreak = 1
	default:
		delta := int(day.Sub(*state.LastCompletionDate).Hours() / 24)
		switch {
		case delta == 0:
			// same day, no change
		case delta == 1:
			state.CurrentStreak++
		default:
			state.CurrentStreak = 1
		}
	}
	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}
	state.LastCompletionDate = &day

	s.checkCategory(&state, achievement.CategoryTasks, state.LifetimeTasksCompleted)
	s.checkCategory(&state, achievement.CategoryStreaks, state.CurrentStreak)

	_, err = s.store.UpdateState(ctx, state)
	return err
}

func (s *Service) RecordFocusCompletion(ctx context.Context, userID string) error {
	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		return err
	}
	state.FocusCompletions++
	s.checkCategory(&state, achievement.CategoryFocus, state.FocusCompletions)
	_, err = s.store.UpdateState(ctx, state)
	return err
}

func (s *Service) RecordNoteConverted(ctx context.Context, userID string) error {
	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		return err
	}
	state.NotesConverted++
	s.checkCategory(&state, achievement.CategoryNotes, state.NotesConverted)
	_, err = s.store.UpdateState(ctx, state)
	return err
}

// checkCategory unlocks every not-yet-unlocked definition in category whose
// threshold stat now meets or exceeds it. Already-unlocked ids are never
// removed even if stat regresses, so this only ever adds to Unlocked.
func (s *Service) checkCategory(state *achievement.State, category achievement.Category, stat int) {
	if state.Unlocked == nil {
		state.Unlocked = make(map[string]bool)
	}
	for _, def := range achievement.ByCategory(category) {
		if state.Unlocked[def.ID] {
			continue
		}
		if stat >= def.Threshold {
			state.Unlocked[def.ID] = true
			s.log.WithFields(map[string]interface{}{
				"user_id":        state.UserID,
				"achievement_id": def.ID,
			}).Info("achievement unlocked")
			s.bus.Dispatch(context.Background(), event.Event{
				Type:        event.TypeAchievementUnlocked,
				ActorUserID: state.UserID,
				EntityIDs:   map[string]string{"achievement_id": def.ID},
				Source:      event.SourceSystem,
				OccurredAt:  time.Now().UTC(),
				Payload:     def,
			})
		}
	}
}

// NightlyStreakReset resets current_streak to 0 for every user who did not
// complete a task yesterday, run as an authoritative nightly sweep.
func (s *Service) NightlyStreakReset(ctx context.Context, asOf time.Time) (int, error) {
	yesterday := asOf.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	stale, err := s.store.ListActiveStreaks(ctx, yesterday)
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, state := range stale {
		state.CurrentStreak = 0
		if _, err := s.store.UpdateState(ctx, state); err != nil {
			return reset, err
		}
		reset++
	}
	return reset, nil
}

// EffectiveLimit is base[tier] plus perkType's summed value over every
// unlocked achievement.
func EffectiveLimit(state achievement.State, perkType achievement.PerkType, base int) int {
	total := base
	for id, unlocked := range state.Unlocked {
		if !unlocked {
			continue
		}
		def, ok := achievement.ByID(id)
		if !ok || def.Perk == nil || def.Perk.Type != perkType {
			continue
		}
		total += def.Perk.Value
	}
	return total
}

// EffectiveTaskMax resolves the caller's task cap for their tier.
func (s *Service) EffectiveTaskMax(ctx context.Context, userID string, tier user.Tier, freeBase, proBase int) (int, error) {
	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		return 0, err
	}
	base := freeBase
	if tier == user.TierPro {
		base = proBase
	}
	return EffectiveLimit(state, achievement.PerkMaxTasks, base), nil
}

// EffectiveNoteMax resolves the caller's note cap for their tier.
func (s *Service) EffectiveNoteMax(ctx context.Context, userID string, tier user.Tier, freeBase, proBase int) (int, error) {
	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		return 0, err
	}
	base := freeBase
	if tier == user.TierPro {
		base = proBase
	}
	return EffectiveLimit(state, achievement.PerkMaxNotes, base), nil
}

// EffectiveDailyCredits resolves the daily-credit-grant perk bonus.
func (s *Service) EffectiveDailyCredits(ctx context.Context, userID string, base int) (int, error) {
	state, err := s.store.GetState(ctx, userID)
	if err != nil {
		return 0, err
	}
	return EffectiveLimit(state, achievement.PerkDailyCredits, base), nil
}
