package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/ai"
	core "github.com/taskwarden/taskwarden/internal/app/core/service"
)

// vendorRetryPolicy retries a transient vendor outage up to twice with a
// short backoff before giving up; a sustained failure still surfaces to the
// caller on the final attempt.
var vendorRetryPolicy = core.RetryPolicy{
	Attempts:       3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Multiplier:     2,
}

// HTTPVendor is the default Vendor implementation: a thin JSON-over-HTTP
// client against a single configurable base URL. It makes no assumption
// about which concrete AI/speech provider sits behind that URL; request and
// response shapes are this package's own, not a vendor SDK's.
type HTTPVendor struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewHTTPVendor builds an HTTPVendor. timeout bounds the underlying
// http.Client; per-call deadlines are additionally enforced by the caller
// via context (chat 30s, transcription 60s by default).
func NewHTTPVendor(baseURL, apiKey string, timeout time.Duration) *HTTPVendor {
	return &HTTPVendor{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type chatRequestBody struct {
	Message        string `json:"message"`
	IncludeContext bool   `json:"include_context"`
	TaskContext    []string `json:"task_context,omitempty"`
}

type chatResponseBody struct {
	Message     string `json:"message"`
	Suggestions []struct {
		Kind        string                 `json:"kind"`
		TargetID    string                 `json:"target_id"`
		Description string                 `json:"description"`
		Parameters  map[string]interface{} `json:"parameters"`
		Confidence  float64                `json:"confidence"`
	} `json:"suggestions"`
}

func (v *HTTPVendor) Chat(ctx context.Context, req ai.ChatRequest, taskContext []string) (ai.ChatResponse, error) {
	var body chatResponseBody
	if err := v.post(ctx, "/v1/chat", chatRequestBody{
		Message:        req.Message,
		IncludeContext: req.IncludeContext,
		TaskContext:    taskContext,
	}, &body); err != nil {
		return ai.ChatResponse{}, err
	}

	out := ai.ChatResponse{Message: body.Message}
	for _, s := range body.Suggestions {
		out.Suggestions = append(out.Suggestions, ai.ActionSuggestion{
			Kind:        ai.ActionKind(s.Kind),
			TargetID:    s.TargetID,
			Description: s.Description,
			Parameters:  s.Parameters,
			Confidence:  s.Confidence,
		})
	}
	return out, nil
}

type subtasksRequestBody struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	MaxSuggestions int    `json:"max_suggestions"`
}

type subtasksResponseBody struct {
	Understanding string   `json:"understanding"`
	Titles        []string `json:"titles"`
}

func (v *HTTPVendor) GenerateSubtasks(ctx context.Context, title, description string, maxSuggestions int) (ai.SubtaskSuggestions, error) {
	var body subtasksResponseBody
	if err := v.post(ctx, "/v1/subtasks", subtasksRequestBody{
		Title:          title,
		Description:    description,
		MaxSuggestions: maxSuggestions,
	}, &body); err != nil {
		return ai.SubtaskSuggestions{}, err
	}
	return ai.SubtaskSuggestions{Understanding: body.Understanding, Titles: body.Titles}, nil
}

type noteConvertRequestBody struct {
	NoteText string `json:"note_text"`
}

type noteConvertResponseBody struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          string   `json:"priority"`
	DueDateOffsetDays *int     `json:"due_date_offset_days"`
	EstimatedMinutes  *int     `json:"estimated_minutes"`
	SubtaskTitles     []string `json:"subtask_titles"`
	Confidence        float64  `json:"confidence"`
}

func (v *HTTPVendor) ConvertNote(ctx context.Context, noteText string) (ai.NoteConversionSuggestion, error) {
	var body noteConvertResponseBody
	if err := v.post(ctx, "/v1/notes/convert", noteConvertRequestBody{NoteText: noteText}, &body); err != nil {
		return ai.NoteConversionSuggestion{}, err
	}
	return ai.NoteConversionSuggestion{
		Title:             body.Title,
		Description:       body.Description,
		Priority:          body.Priority,
		DueDateOffsetDays: body.DueDateOffsetDays,
		EstimatedMinutes:  body.EstimatedMinutes,
		SubtaskTitles:     body.SubtaskTitles,
		Confidence:        body.Confidence,
	}, nil
}

type transcribeResponseBody struct {
	Text    string `json:"text"`
	Partial bool   `json:"partial"`
	Seconds int    `json:"seconds"`
}

// Transcribe posts raw audio as the request body rather than JSON, since
// audio payloads can run into the megabytes and don't benefit from
// base64-in-JSON inflation.
func (v *HTTPVendor) Transcribe(ctx context.Context, audio []byte, maxSeconds int) (ai.TranscriptionResult, error) {
	url := fmt.Sprintf("%s/v1/transcribe?max_seconds=%d", v.baseURL, maxSeconds)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return ai.TranscriptionResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	v.setAuth(httpReq)

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return ai.TranscriptionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return ai.TranscriptionResult{}, vendorStatusError(resp)
	}

	var body transcribeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ai.TranscriptionResult{}, err
	}
	return ai.TranscriptionResult{Text: body.Text, Partial: body.Partial, Seconds: body.Seconds}, nil
}

func (v *HTTPVendor) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return core.Retry(ctx, vendorRetryPolicy, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		v.setAuth(httpReq)

		resp, err := v.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return vendorStatusError(resp)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}

func (v *HTTPVendor) setAuth(r *http.Request) {
	if v.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+v.apiKey)
	}
}

func vendorStatusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("ai vendor returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}
