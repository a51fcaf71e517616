package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskwarden/taskwarden/internal/app"
)

// registerRoutes attaches every handler to router, grouped the way the
// spec's resource list groups them.
func registerRoutes(router *mux.Router, a *app.Application) {
	h := &handlers{app: a}
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/google/callback", h.authGoogleCallback).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", h.authRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.authLogout).Methods(http.MethodPost)
	api.HandleFunc("/.well-known/jwks.json", h.jwks).Methods(http.MethodGet)

	api.HandleFunc("/users/me", h.getMe).Methods(http.MethodGet)

	api.HandleFunc("/tasks", h.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", h.createTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", h.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.updateTask).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}", h.deleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/complete", h.completeTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/force-complete", h.forceCompleteTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/subtasks", h.listSubtasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/subtasks", h.createSubtask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/subtasks/reorder", h.reorderSubtasks).Methods(http.MethodPost)
	api.HandleFunc("/subtasks/{id}", h.updateSubtask).Methods(http.MethodPatch)
	api.HandleFunc("/subtasks/{id}/complete", h.completeSubtask).Methods(http.MethodPost)
	api.HandleFunc("/subtasks/{id}", h.deleteSubtask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/reminders", h.createReminder).Methods(http.MethodPost)
	api.HandleFunc("/reminders/{id}", h.deleteReminder).Methods(http.MethodDelete)

	api.HandleFunc("/templates", h.listTemplates).Methods(http.MethodGet)
	api.HandleFunc("/templates", h.createTemplate).Methods(http.MethodPost)
	api.HandleFunc("/templates/{id}", h.getTemplate).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id}", h.updateTemplate).Methods(http.MethodPatch)
	api.HandleFunc("/templates/{id}", h.deleteTemplate).Methods(http.MethodDelete)

	api.HandleFunc("/notes", h.listNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes", h.createNote).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id}", h.getNote).Methods(http.MethodGet)
	api.HandleFunc("/notes/{id}", h.updateNote).Methods(http.MethodPatch)
	api.HandleFunc("/notes/{id}", h.deleteNote).Methods(http.MethodDelete)
	api.HandleFunc("/notes/{id}/convert", h.convertNote).Methods(http.MethodPost)

	api.HandleFunc("/ai/chat", h.aiChat).Methods(http.MethodPost)
	api.HandleFunc("/ai/confirm-action", h.aiConfirmAction).Methods(http.MethodPost)
	api.HandleFunc("/ai/credits", h.aiCredits).Methods(http.MethodGet)
	api.HandleFunc("/notes/{id}/transcribe", h.aiTranscribe).Methods(http.MethodPost)

	api.HandleFunc("/achievements", h.listAchievements).Methods(http.MethodGet)
	api.HandleFunc("/achievements/stats", h.achievementStats).Methods(http.MethodGet)
	api.HandleFunc("/achievements/limits", h.achievementLimits).Methods(http.MethodGet)

	api.HandleFunc("/credits", h.listCredits).Methods(http.MethodGet)

	api.HandleFunc("/focus/start", h.focusStart).Methods(http.MethodPost)
	api.HandleFunc("/focus/end", h.focusEnd).Methods(http.MethodPost)

	api.HandleFunc("/subscription", h.getSubscription).Methods(http.MethodGet)
	api.HandleFunc("/subscription/checkout", h.subscriptionCheckout).Methods(http.MethodPost)
	api.HandleFunc("/subscription/cancel", h.subscriptionCancel).Methods(http.MethodPost)
	api.HandleFunc("/webhooks/checkout", h.webhookCheckout).Methods(http.MethodPost)

	api.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/read-all", h.markAllNotificationsRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/push-subscription", h.createPushSubscription).Methods(http.MethodPost)

	api.HandleFunc("/activity", h.listActivity).Methods(http.MethodGet)

	api.HandleFunc("/tombstones", h.listTombstones).Methods(http.MethodGet)
	api.HandleFunc("/tasks/recover/{tombstone_id}", h.recoverTask).Methods(http.MethodPost)

	api.HandleFunc("/admin/jobs/{id}/reset", h.resetJob).Methods(http.MethodPost)
	api.HandleFunc("/system/descriptors", h.systemDescriptors).Methods(http.MethodGet)

	router.HandleFunc("/health/live", h.healthLive).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.healthReady).Methods(http.MethodGet)
	router.Handle("/metrics", metricsHandler()).Methods(http.MethodGet)
}

// handlers bundles the Application so every route method can reach the
// domain services it needs.
type handlers struct {
	app *app.Application
}
