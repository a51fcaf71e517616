package httpapi

import (
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"net/http"

	aimodel "github.com/taskwarden/taskwarden/internal/app/domain/ai"
	"github.com/taskwarden/taskwarden/internal/app/services/ai"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	svcerrors "github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/httputil"
)

type chatRequest struct {
	Message        string `json:"message"`
	IncludeContext bool   `json:"include_context"`
}

// aiChat answers over SSE: the vendor call itself is request/response, not
// token-streamed, so the single event carries the complete reply. The
// transport stays SSE so a future streaming vendor can add incremental
// events without breaking clients.
func (h *handlers) aiChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	var taskContext []string
	if req.IncludeContext {
		open := false
		items, _, err := h.app.Tasks.ListTasks(r.Context(), userID, storage.TaskFilter{Completed: &open, Limit: 50})
		if err == nil {
			for _, t := range items {
				taskContext = append(taskContext, t.Title)
			}
		}
	}

	resp, err := h.app.AI.Chat(r.Context(), userID, aimodel.ChatRequest{
		Message:        req.Message,
		IncludeContext: req.IncludeContext,
	}, taskContext)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	payload, _ := json.Marshal(resp)
	_, _ = w.Write([]byte("event: message\ndata: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
	if ok {
		flusher.Flush()
	}
}

type confirmActionRequest struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
	Version  int    `json:"version"`
	Title    string `json:"title"`
}

func (h *handlers) aiConfirmAction(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req confirmActionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	err := h.app.AI.ConfirmAction(r.Context(), userID, callerTier(r), aimodel.ActionKind(req.Kind), req.TargetID, ai.ActionParams{
		Version: req.Version,
		Title:   req.Title,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) aiCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	balance, err := h.app.Credits.Balance(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, balance)
}

func (h *handlers) aiTranscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	tier := callerTier(r)
	var req struct {
		AudioBase64     string `json:"audio_base64"`
		DeclaredSeconds int    `json:"declared_seconds"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		writeErr(w, r, svcerrors.ValidationError("audio_base64", "not valid base64 audio"))
		return
	}
	result, err := h.app.AI.Transcribe(r.Context(), userID, tier, pathVar(r, "id"), audio, req.DeclaredSeconds)
	if err != nil {
		var svcErr *svcerrors.ServiceError
		if stderrors.As(err, &svcErr) && svcErr.Code == svcerrors.CodeMaxDurationExceeded {
			writeData(w, r, http.StatusOK, result)
			return
		}
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, result)
}
