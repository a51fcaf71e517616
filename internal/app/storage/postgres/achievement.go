package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/achievement"
)

func (s *Store) GetState(ctx context.Context, userID string) (achievement.State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, lifetime_tasks_completed, current_streak, longest_streak, last_completion_date,
			focus_completions, notes_converted, unlocked, updated_at
		FROM achievement_states
		WHERE user_id = $1
	`, userID)

	st, err := scanAchievementState(row)
	if err == sql.ErrNoRows {
		return achievement.State{
			UserID:    userID,
			Unlocked:  make(map[string]bool),
			UpdatedAt: time.Now().UTC(),
		}, nil
	}
	return st, err
}

func (s *Store) UpdateState(ctx context.Context, state achievement.State) (achievement.State, error) {
	if state.Unlocked == nil {
		state.Unlocked = make(map[string]bool)
	}
	state.UpdatedAt = time.Now().UTC()

	unlockedJSON, err := json.Marshal(state.Unlocked)
	if err != nil {
		return achievement.State{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO achievement_states (user_id, lifetime_tasks_completed, current_streak, longest_streak,
			last_completion_date, focus_completions, notes_converted, unlocked, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (user_id) DO UPDATE SET
			lifetime_tasks_completed = $2, current_streak = $3, longest_streak = $4,
			last_completion_date = $5, focus_completions = $6, notes_converted = $7,
			unlocked = $8, updated_at = $9
	`, state.UserID, state.LifetimeTasksCompleted, state.CurrentStreak, state.LongestStreak,
		state.LastCompletionDate, state.FocusCompletions, state.NotesConverted, unlockedJSON, state.UpdatedAt)
	if err != nil {
		return achievement.State{}, err
	}
	return state, nil
}

func (s *Store) ListActiveStreaks(ctx context.Context, cutoff time.Time) ([]achievement.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, lifetime_tasks_completed, current_streak, longest_streak, last_completion_date,
			focus_completions, notes_converted, unlocked, updated_at
		FROM achievement_states
		WHERE current_streak > 0 AND last_completion_date < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []achievement.State
	for rows.Next() {
		st, err := scanAchievementState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanAchievementState(row rowScanner) (achievement.State, error) {
	var (
		st          achievement.State
		unlockedRaw []byte
	)
	if err := row.Scan(&st.UserID, &st.LifetimeTasksCompleted, &st.CurrentStreak, &st.LongestStreak,
		&st.LastCompletionDate, &st.FocusCompletions, &st.NotesConverted, &unlockedRaw, &st.UpdatedAt); err != nil {
		return achievement.State{}, err
	}
	st.Unlocked = make(map[string]bool)
	if len(unlockedRaw) > 0 {
		_ = json.Unmarshal(unlockedRaw, &st.Unlocked)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}
