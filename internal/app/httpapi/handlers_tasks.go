package httpapi

import (
	"net/http"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/reminder"
	"github.com/taskwarden/taskwarden/internal/app/domain/subtask"
	"github.com/taskwarden/taskwarden/internal/app/domain/task"
	"github.com/taskwarden/taskwarden/internal/app/domain/user"
	"github.com/taskwarden/taskwarden/internal/app/services/tasks"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/httputil"
	"github.com/taskwarden/taskwarden/internal/reqctx"
)

func callerTier(r *http.Request) user.Tier {
	return user.Tier(reqctx.UserTier(r.Context()))
}

type createTaskRequest struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Priority         string     `json:"priority"`
	DueDate          *time.Time `json:"due_date"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
	TemplateID       *string    `json:"template_id"`
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.CreateTask(r.Context(), userID, callerTier(r), tasks.CreateTaskInput{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         task.Priority(req.Priority),
		DueDate:          req.DueDate,
		EstimatedMinutes: req.EstimatedMinutes,
		TemplateID:       req.TemplateID,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, t)
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	offset, limit := httputil.PaginationParams(r, 50, 200)
	filter := storage.TaskFilter{
		IncludeHidden:   httputil.QueryBool(r, "include_hidden", false),
		IncludeArchived: httputil.QueryBool(r, "include_archived", false),
		Offset:          offset,
		Limit:           limit,
	}
	if v := r.URL.Query().Get("completed"); v != "" {
		b := v == "true" || v == "1"
		filter.Completed = &b
	}
	items, total, err := h.app.Tasks.ListTasks(r.Context(), userID, filter)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, r, items, offset, limit, total)
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	t, err := h.app.Tasks.GetTask(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

type updateTaskRequest struct {
	Version          int         `json:"version"`
	Title            *string     `json:"title"`
	Description      *string     `json:"description"`
	Priority         *string     `json:"priority"`
	DueDate          **time.Time `json:"due_date"`
	EstimatedMinutes **int       `json:"estimated_minutes"`
	Hidden           *bool       `json:"hidden"`
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if !httputil.DecodeJSONOptional(w, r, &req) {
		return
	}
	in := tasks.UpdateTaskInput{
		Version:          req.Version,
		Title:            req.Title,
		Description:      req.Description,
		DueDate:          req.DueDate,
		EstimatedMinutes: req.EstimatedMinutes,
		Hidden:           req.Hidden,
	}
	if req.Priority != nil {
		p := task.Priority(*req.Priority)
		in.Priority = &p
	}
	t, err := h.app.Tasks.UpdateTask(r.Context(), userID, pathVar(r, "id"), in)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	tombstoneID, err := h.app.Tasks.DeleteTask(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]string{"tombstone_id": tombstoneID})
}

type versionRequest struct {
	Version int `json:"version"`
}

func (h *handlers) completeTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if !httputil.DecodeJSONOptional(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.CompleteTask(r.Context(), userID, pathVar(r, "id"), req.Version)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *handlers) forceCompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req versionRequest
	if !httputil.DecodeJSONOptional(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.ForceComplete(r.Context(), userID, pathVar(r, "id"), req.Version)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *handlers) recoverTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	t, err := h.app.Tasks.RecoverTask(r.Context(), userID, pathVar(r, "tombstone_id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *handlers) focusStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		TaskID string `json:"task_id"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.StartFocusSession(r.Context(), userID, req.TaskID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

func (h *handlers) focusEnd(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		TaskID         string `json:"task_id"`
		SessionSeconds int    `json:"session_seconds"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	t, err := h.app.Tasks.EndFocusSession(r.Context(), userID, req.TaskID, req.SessionSeconds)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, t)
}

// --- subtasks ---

func (h *handlers) listSubtasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	items, err := h.app.Tasks.ListSubtasks(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, items)
}

func (h *handlers) createSubtask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	st, err := h.app.Tasks.CreateSubtask(r.Context(), userID, callerTier(r), pathVar(r, "id"), req.Title, subtask.SourceUser)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, st)
}

// subtaskTaskID resolves the parent task id for a standalone /subtasks/{id}
// route so it can delegate to the task-scoped service methods, which
// re-verify that the subtask belongs to the caller's task.
func (h *handlers) subtaskTaskID(r *http.Request, id string) (string, error) {
	st, err := h.app.Storage.Subtasks.GetSubtask(r.Context(), id)
	if err != nil {
		return "", err
	}
	return st.TaskID, nil
}

func (h *handlers) updateSubtask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")
	taskID, err := h.subtaskTaskID(r, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	st, err := h.app.Tasks.UpdateSubtaskTitle(r.Context(), userID, taskID, id, req.Title)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, st)
}

func (h *handlers) completeSubtask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")
	taskID, err := h.subtaskTaskID(r, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	st, err := h.app.Tasks.CompleteSubtask(r.Context(), userID, taskID, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, st)
}

func (h *handlers) deleteSubtask(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")
	taskID, err := h.subtaskTaskID(r, id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.app.Tasks.DeleteSubtask(r.Context(), userID, taskID, id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- reminders ---

type createReminderRequest struct {
	Type          string     `json:"type"`
	OffsetMinutes *int       `json:"offset_minutes"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
	Method        string     `json:"method"`
}

func (h *handlers) createReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	t, err := h.app.Tasks.GetTask(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req createReminderRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	rem, err := h.app.Reminders.Schedule(r.Context(), t, reminder.Type(req.Type), req.OffsetMinutes, req.ScheduledAt, reminder.Method(req.Method))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, rem)
}

func (h *handlers) deleteReminder(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	id := pathVar(r, "id")
	rem, err := h.app.Storage.Reminders.GetReminder(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if rem.UserID != userID {
		writeErr(w, r, errors.NotFound("reminder", id))
		return
	}
	if err := h.app.Storage.Reminders.DeleteReminder(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) reorderSubtasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req struct {
		OrderedIDs []string `json:"ordered_ids"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	items, err := h.app.Tasks.ReorderSubtasks(r.Context(), userID, pathVar(r, "id"), req.OrderedIDs)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, items)
}
