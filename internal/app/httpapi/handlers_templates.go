package httpapi

import (
	"net/http"

	"github.com/taskwarden/taskwarden/internal/app/domain/template"
	"github.com/taskwarden/taskwarden/internal/httputil"
)

type templateRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	RecurrenceRule string `json:"recurrence_rule"`
}

func (h *handlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	items, err := h.app.Tasks.ListTemplates(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, items)
}

func (h *handlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.CreateTemplate(r.Context(), userID, template.Template{
		Title:          req.Title,
		Description:    req.Description,
		RecurrenceRule: req.RecurrenceRule,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, t)
}

func (h *handlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	t, err := h.app.Tasks.GetTemplate(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *handlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.UpdateTemplate(r.Context(), userID, template.Template{
		ID:             pathVar(r, "id"),
		Title:          req.Title,
		Description:    req.Description,
		RecurrenceRule: req.RecurrenceRule,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *handlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Tasks.DeleteTemplate(r.Context(), userID, pathVar(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
