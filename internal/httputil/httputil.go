// Package httputil provides the response envelope and request helpers shared
// by every HTTP handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	core "github.com/taskwarden/taskwarden/internal/app/core/service"
	svcerrors "github.com/taskwarden/taskwarden/internal/errors"
	"github.com/taskwarden/taskwarden/internal/reqctx"
)

// Envelope is the single-resource success response shape.
type Envelope struct {
	Data interface{} `json:"data"`
}

// Pagination describes the paging window of a list response.
type Pagination struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// ListEnvelope is the list success response shape.
type ListEnvelope struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// ErrorBody is the error response shape.
type ErrorBody struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"`
}

// ErrorResponse wraps ErrorBody under the "error" envelope key.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteData writes a single-resource envelope.
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, Envelope{Data: data})
}

// WriteList writes a list envelope with pagination metadata.
func WriteList(w http.ResponseWriter, data interface{}, offset, limit, total int) {
	WriteJSON(w, http.StatusOK, ListEnvelope{
		Data: data,
		Pagination: Pagination{
			Offset:  offset,
			Limit:   limit,
			Total:   total,
			HasMore: offset+limit < total,
		},
	})
}

// WriteError renders err as the standard error envelope. If err is a
// *errors.ServiceError its code/status/details/retry-after are used
// directly; anything else is rendered as an opaque 500 INTERNAL_ERROR so
// internal detail never leaks to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := svcerrors.As(err)
	if svcErr == nil {
		svcErr = svcerrors.Internal("unexpected error", err)
	}

	body := ErrorBody{
		Code:       string(svcErr.Code),
		Message:    svcErr.Message,
		Details:    svcErr.Details,
		RetryAfter: svcErr.RetryAfter,
	}
	if r != nil {
		body.RequestID = reqctx.RequestID(r.Context())
	}
	if svcErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(svcErr.RetryAfter))
	}
	WriteJSON(w, svcErr.HTTPStatus, ErrorResponse{Error: body})
}

// DecodeJSON decodes a JSON request body into v. On failure it writes a
// VALIDATION_ERROR response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, r, svcerrors.ValidationError("body", "request body too large"))
			return false
		}
		WriteError(w, r, svcerrors.ValidationError("body", "malformed JSON"))
		return false
	}
	return true
}

// DecodeJSONOptional behaves like DecodeJSON but treats an empty body as
// success, for PATCH-style partial update endpoints.
func DecodeJSONOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		WriteError(w, r, svcerrors.ValidationError("body", "malformed JSON"))
		return false
	}
	return true
}

// QueryInt extracts an integer query parameter with a default value.
func QueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(val); err == nil {
		return n
	}
	return defaultVal
}

// QueryString extracts a string query parameter with a default value.
func QueryString(r *http.Request, key, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// QueryBool extracts a boolean query parameter with a default value.
func QueryBool(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val == "true" || val == "1" || val == "yes"
}

// PaginationParams extracts offset/limit query parameters, clamped to
// [1, maxLimit].
func PaginationParams(r *http.Request, defaultLimit, maxLimit int) (offset, limit int) {
	offset = QueryInt(r, "offset", 0)
	limit = core.ClampLimit(QueryInt(r, "limit", 0), defaultLimit, maxLimit)
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

// UserID extracts the authenticated user id attached to the context by the
// auth middleware. Returns "" if unauthenticated.
func UserID(r *http.Request) string {
	return reqctx.UserID(r.Context())
}

// RequireUserID extracts the user id or writes a 401 response.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := UserID(r)
	if userID == "" {
		WriteError(w, r, svcerrors.Unauthorized(""))
		return "", false
	}
	return userID, true
}
