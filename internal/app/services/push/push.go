// Package push is the default reminders.Pusher implementation: it POSTs a
// plaintext notification payload to a Web Push endpoint. It does not
// implement the full RFC 8291 payload encryption (aesgcm/VAPID) since
// nothing in the example corpus carries a web-push crypto library and the
// spec binds only the Pusher contract, not a specific wire format.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/notification"
	"github.com/taskwarden/taskwarden/internal/app/services/reminders"
)

// HTTPPusher posts to each subscription's own endpoint URL, the way a real
// Web Push service worker delivery would, modulo payload encryption.
type HTTPPusher struct {
	httpClient *http.Client
}

func NewHTTPPusher(timeout time.Duration) *HTTPPusher {
	return &HTTPPusher{httpClient: &http.Client{Timeout: timeout}}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (p *HTTPPusher) Push(ctx context.Context, sub notification.PushSubscription, title, body string) error {
	payload, err := json.Marshal(pushPayload{Title: title, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TTL", "86400")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return &reminders.PermanentError{Err: fmt.Errorf("push endpoint gone: %d", resp.StatusCode)}
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push endpoint returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
