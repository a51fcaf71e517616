package httpapi

import (
	"net/http"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/note"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/services/tasks"
	"github.com/taskwarden/taskwarden/internal/httputil"
)

type createNoteRequest struct {
	Text                 string `json:"text"`
	VoiceURL             string `json:"voice_url"`
	VoiceDurationSeconds int    `json:"voice_duration_seconds"`
}

func (h *handlers) listNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	offset, limit := httputil.PaginationParams(r, 50, 200)
	includeArchived := httputil.QueryBool(r, "include_archived", false)
	items, total, err := h.app.Tasks.ListNotes(r.Context(), userID, includeArchived, offset, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, r, items, offset, limit, total)
}

func (h *handlers) createNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req createNoteRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	n, err := h.app.Tasks.CreateNote(r.Context(), userID, callerTier(r), note.Note{
		Text:                 req.Text,
		VoiceURL:             req.VoiceURL,
		VoiceDurationSeconds: req.VoiceDurationSeconds,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, n)
}

func (h *handlers) getNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	n, err := h.app.Tasks.GetNote(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, n)
}

func (h *handlers) updateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	n, err := h.app.Tasks.UpdateNoteText(r.Context(), userID, pathVar(r, "id"), req.Text)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, n)
}

func (h *handlers) deleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Tasks.DeleteNote(r.Context(), userID, pathVar(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type convertNoteRequest struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Priority         string     `json:"priority"`
	DueDate          *time.Time `json:"due_date"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
}

func (h *handlers) convertNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req convertNoteRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.ConvertToTask(r.Context(), userID, callerTier(r), pathVar(r, "id"), tasks.ConvertedTaskInput{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         task.Priority(req.Priority),
		DueDate:          req.DueDate,
		EstimatedMinutes: req.EstimatedMinutes,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}
