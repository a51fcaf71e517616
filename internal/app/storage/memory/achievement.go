package memory

import (
	"context"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/achievement"
)

func (s *Store) GetState(ctx context.Context, userID string) (achievement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.achievementStates[userID]
	if !ok {
		return achievement.State{
			UserID:    userID,
			Unlocked:  make(map[string]bool),
			UpdatedAt: time.Now().UTC(),
		}, nil
	}
	return cloneState(st), nil
}

func (s *Store) UpdateState(ctx context.Context, state achievement.State) (achievement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.UpdatedAt = time.Now().UTC()
	if state.Unlocked == nil {
		state.Unlocked = make(map[string]bool)
	}
	s.achievementStates[state.UserID] = cloneState(state)
	return cloneState(state), nil
}

func (s *Store) ListActiveStreaks(ctx context.Context, cutoff time.Time) ([]achievement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []achievement.State
	for _, st := range s.achievementStates {
		if st.CurrentStreak > 0 && st.LastCompletionDate != nil && st.LastCompletionDate.Before(cutoff) {
			out = append(out, cloneState(st))
		}
	}
	return out, nil
}

func cloneState(st achievement.State) achievement.State {
	unlocked := make(map[string]bool, len(st.Unlocked))
	for k, v := range st.Unlocked {
		unlocked[k] = v
	}
	st.Unlocked = unlocked
	return st
}
