package httpapi

import (
	"net/http"

	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/httputil"
)

func (h *handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	offset, limit := httputil.PaginationParams(r, 50, 200)
	items, total, err := h.app.Storage.Notifications.List(r.Context(), userID, offset, limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeList(w, r, items, offset, limit, total)
}

func (h *handlers) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Storage.Notifications.MarkRead(r.Context(), userID, pathVar(r, "id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Storage.Notifications.MarkAllRead(r.Context(), userID); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createPushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

func (h *handlers) createPushSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var req createPushSubscriptionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	sub, err := h.app.Storage.Notifications.CreatePushSubscription(r.Context(), notification.PushSubscription{
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.P256dh,
		Auth:     req.Auth,
		Active:   true,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, sub)
}
