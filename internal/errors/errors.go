// Package errors provides the single error taxonomy used across domain
// services. The request pipeline's top-level error-writing middleware is the
// only place that translates a ServiceError into an HTTP response.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies a stable, client-facing error category.
type Code string

const (
	CodeValidationError       Code = "VALIDATION_ERROR"
	CodeUnauthorized          Code = "UNAUTHORIZED"
	CodeTokenExpired          Code = "TOKEN_EXPIRED"
	CodeForbidden             Code = "FORBIDDEN"
	CodeTierRequired          Code = "TIER_REQUIRED"
	CodeNotFound              Code = "NOT_FOUND"
	CodeConflict              Code = "CONFLICT"
	CodeVersionConflict       Code = "VERSION_CONFLICT"
	CodeLimitExceeded         Code = "LIMIT_EXCEEDED"
	CodeDueDateExceeded       Code = "DUE_DATE_EXCEEDED"
	CodeTaskArchived          Code = "TASK_ARCHIVED"
	CodeIDCollision           Code = "ID_COLLISION"
	CodeInsufficientCredits   Code = "INSUFFICIENT_CREDITS"
	CodeRateLimitExceeded     Code = "RATE_LIMIT_EXCEEDED"
	CodeAIServiceUnavailable  Code = "AI_SERVICE_UNAVAILABLE"
	CodeAILimitExceeded       Code = "AI_LIMIT_EXCEEDED"
	CodeMaxDurationExceeded   Code = "MAX_DURATION_EXCEEDED"
	CodeIdempotencyConflict   Code = "IDEMPOTENCY_CONFLICT"
	CodeInternalError         Code = "INTERNAL_ERROR"
)

// ServiceError is a structured error carrying everything the request
// pipeline needs to render a response, and nothing domain services need to
// know about HTTP.
type ServiceError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a structured detail and returns the same error for
// chaining at the call site.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRetryAfter sets the retry-after hint (seconds) surfaced to the client.
func (e *ServiceError) WithRetryAfter(seconds int) *ServiceError {
	e.RetryAfter = seconds
	return e
}

func New(code Code, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code Code, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Validation (400/422)

func ValidationError(field, reason string) *ServiceError {
	return New(CodeValidationError, "request failed validation", http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// Authn (401)

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "unauthorized"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func TokenExpired() *ServiceError {
	return New(CodeTokenExpired, "access token has expired", http.StatusUnauthorized)
}

// Payment required (402)

func InsufficientCredits(required, available int) *ServiceError {
	return New(CodeInsufficientCredits, "insufficient AI credits", http.StatusPaymentRequired).
		WithDetails("required", required).
		WithDetails("available", available)
}

// Authz / tier (403)

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "forbidden"
	}
	return New(CodeForbidden, message, http.StatusForbidden)
}

func TierRequired(feature string) *ServiceError {
	return New(CodeTierRequired, "this feature requires a pro subscription", http.StatusForbidden).
		WithDetails("feature", feature)
}

// Not found (404) -- cross-user access is intentionally indistinguishable
// from a genuinely missing row.

func NotFound(resource, id string) *ServiceError {
	return New(CodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

// Conflict (409)

func Conflict(message string) *ServiceError {
	return New(CodeConflict, message, http.StatusConflict)
}

func VersionConflict(resource, id string) *ServiceError {
	return New(CodeVersionConflict, "version mismatch, reload and retry", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func LimitExceeded(resource string, limit int) *ServiceError {
	return New(CodeLimitExceeded, fmt.Sprintf("%s limit reached", resource), http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("limit", limit)
}

func DueDateExceeded() *ServiceError {
	return New(CodeDueDateExceeded, "due date may not be more than one year out", http.StatusConflict)
}

func TaskArchived(taskID string) *ServiceError {
	return New(CodeTaskArchived, "task is archived and cannot be mutated or completed", http.StatusConflict).
		WithDetails("task_id", taskID)
}

func IDCollision(resource, id string) *ServiceError {
	return New(CodeIDCollision, "a row with this id already exists", http.StatusConflict).
		WithDetails("resource", resource).
		WithDetails("id", id)
}

func IdempotencyConflict() *ServiceError {
	return New(CodeIdempotencyConflict, "idempotency key reused with a different request body", http.StatusConflict)
}

// Rate limit (429)

func RateLimitExceeded(retryAfterSeconds int) *ServiceError {
	return New(CodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests).
		WithRetryAfter(retryAfterSeconds)
}

func AILimitExceeded(taskID string) *ServiceError {
	return New(CodeAILimitExceeded, "AI request limit reached for this task", http.StatusTooManyRequests).
		WithDetails("task_id", taskID)
}

// Service unavailable (503)

func AIServiceUnavailable(err error) *ServiceError {
	return Wrap(CodeAIServiceUnavailable, "AI vendor call failed or timed out", http.StatusServiceUnavailable, err)
}

func MaxDurationExceeded(limitSeconds int) *ServiceError {
	return New(CodeMaxDurationExceeded, "transcription exceeded the maximum duration", http.StatusServiceUnavailable).
		WithDetails("limit_seconds", limitSeconds)
}

// Internal (500)

func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "internal error"
	}
	return Wrap(CodeInternalError, message, http.StatusInternalServerError, err)
}

// IsServiceError reports whether err (or something it wraps) is a *ServiceError.
func IsServiceError(err error) bool {
	var svcErr *ServiceError
	return stderrors.As(err, &svcErr)
}

// As extracts a *ServiceError from an error chain, if present.
func As(err error) *ServiceError {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// HTTPStatus returns the HTTP status for err, defaulting to 500 for
// anything that isn't a *ServiceError.
func HTTPStatus(err error) int {
	if svcErr := As(err); svcErr != nil {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
