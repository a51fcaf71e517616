package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/services/subscriptions"
	svcerrors "github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/httputil"
)

func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	sub, err := h.app.Subscriptions.GetByUserID(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, sub)
}

// subscriptionCheckout hands back a checkout session the client redirects
// to. Creating and confirming the vendor-side session is the payment
// vendor's job; the subscription only takes effect once its payment_captured
// webhook reaches webhookCheckout.
func (h *handlers) subscriptionCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	writeData(w, r, http.StatusOK, map[string]string{
		"checkout_url": h.app.Config.CheckoutBaseURL + "?user_id=" + userID,
	})
}

// subscriptionCancel forwards a user-initiated cancellation through the
// same state machine a vendor-issued subscription_cancelled webhook drives,
// so cancelled-but-not-yet-expired access is computed identically either way.
func (h *handlers) subscriptionCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	sub, err := h.app.Subscriptions.GetByUserID(r.Context(), userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	err = h.app.Subscriptions.ProcessEvent(r.Context(), subscriptions.WebhookEvent{
		ID:            "user-cancel:" + userID + ":" + time.Now().UTC().Format(time.RFC3339Nano),
		Type:          "subscription_cancelled",
		ExternalSubID: sub.ExternalID,
		UserID:        userID,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutWebhookPayload struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	ExternalSubID  string    `json:"external_subscription_id"`
	UserID         string    `json:"user_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	MonthlyCredits int       `json:"monthly_credits"`
}

// webhookCheckout validates the Cko-Signature header against the raw body
// before decoding; a mismatch is a 401, never a 400, so an attacker can't
// distinguish a bad signature from a malformed payload.
func (h *handlers) webhookCheckout(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeErr(w, r, svcerrors.ValidationError("body", "could not read request body"))
		return
	}

	mac := hmac.New(sha256.New, []byte(h.app.Config.CheckoutWebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(r.Header.Get("Cko-Signature"))) {
		writeErr(w, r, svcerrors.Unauthorized("invalid webhook signature"))
		return
	}

	var payload checkoutWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeErr(w, r, svcerrors.ValidationError("body", "malformed webhook payload"))
		return
	}

	err = h.app.Subscriptions.ProcessEvent(r.Context(), subscriptions.WebhookEvent{
		ID:             payload.EventID,
		Type:           payload.Type,
		ExternalSubID:  payload.ExternalSubID,
		UserID:         payload.UserID,
		PeriodStart:    payload.PeriodStart,
		PeriodEnd:      payload.PeriodEnd,
		MonthlyCredits: payload.MonthlyCredits,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
