package httpapi

import (
	"net/http"

	"github.com/taskwarden/taskwarden/internal/app/domain/achievement"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/httputil"
)

func (h *handlers) listAchievements(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, achievement.Catalog)
}

func (h *handlers) achievementStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	state, err := h.app.Achievements.GetState(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, state)
}

type limitsResponse struct {
	TaskMax         int `json:"task_max"`
	NoteMax         int `json:"note_max"`
	SubtaskMax      int `json:"subtask_max"`
	DailyCreditsMax int `json:"daily_credits_max"`
}

func (h *handlers) achievementLimits(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	tier := callerTier(r)
	cfg := h.app.Config

	taskMax, err := h.app.Achievements.EffectiveTaskMax(r.Context(), userID, tier, cfg.FreeTaskMax, cfg.ProTaskMax)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	noteMax, err := h.app.Achievements.EffectiveNoteMax(r.Context(), userID, tier, cfg.FreeNoteMax, cfg.ProNoteMax)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	dailyCredits, err := h.app.Achievements.EffectiveDailyCredits(r.Context(), userID, cfg.DailyCreditAmount)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	subtaskMax := cfg.FreeSubtaskMax
	if tier == user.TierPro {
		subtaskMax = cfg.ProSubtaskMax
	}

	writeData(w, r, http.StatusOK, limitsResponse{
		TaskMax:         taskMax,
		NoteMax:         noteMax,
		SubtaskMax:      subtaskMax,
		DailyCreditsMax: dailyCredits,
	})
}
