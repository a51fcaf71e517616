package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestInstrumentHandlerRecordsMetrics(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks/abc-123", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	if !metricCounterGreaterOrEqual(t, "taskwarden_http_requests_total", map[string]string{
		"method": "GET",
		"path":   "/tasks/:id",
		"status": "202",
	}, 1) {
		t.Fatalf("expected http request counter to increment")
	}

	if !metricHistogramCountGreaterOrEqual(t, "taskwarden_http_request_duration_seconds", map[string]string{
		"method": "GET",
		"path":   "/tasks/:id",
	}, 1) {
		t.Fatalf("expected http duration histogram to record samples")
	}
}

func TestRecordJobExecution(t *testing.T) {
	RecordJobExecution("reminder_fire", "success", 250*time.Millisecond)
	if !metricCounterGreaterOrEqual(t, "taskwarden_jobs_executions_total", map[string]string{
		"type":    "reminder_fire",
		"outcome": "success",
	}, 1) {
		t.Fatalf("expected job execution counter to increase")
	}
	if !metricHistogramCountGreaterOrEqual(t, "taskwarden_jobs_execution_duration_seconds", map[string]string{
		"type": "reminder_fire",
	}, 1) {
		t.Fatalf("expected job duration histogram to record")
	}
}

func TestRecordJobExecution_EdgeCases(t *testing.T) {
	RecordJobExecution("", "", 0)
	if !metricCounterGreaterOrEqual(t, "taskwarden_jobs_executions_total", map[string]string{
		"type":    "unknown",
		"outcome": "unknown",
	}, 1) {
		t.Fatal("expected job execution counter with unknown labels")
	}

	RecordJobExecution("credit_expire", "error", -5*time.Second)
	if !metricCounterGreaterOrEqual(t, "taskwarden_jobs_executions_total", map[string]string{
		"type":    "credit_expire",
		"outcome": "error",
	}, 1) {
		t.Fatal("expected job execution counter with negative duration")
	}
}

func TestRecordJobDeadLettered(t *testing.T) {
	RecordJobDeadLettered("subscription_check")
	if !metricCounterGreaterOrEqual(t, "taskwarden_jobs_dead_lettered_total", map[string]string{
		"type": "subscription_check",
	}, 1) {
		t.Fatal("expected dead letter counter to increase")
	}

	RecordJobDeadLettered("")
	if !metricCounterGreaterOrEqual(t, "taskwarden_jobs_dead_lettered_total", map[string]string{
		"type": "unknown",
	}, 1) {
		t.Fatal("expected dead letter counter with unknown label")
	}
}

func TestRecordCreditsConsumedAndRefunded(t *testing.T) {
	RecordCreditsConsumed("daily", 5)
	if !metricCounterGreaterOrEqual(t, "taskwarden_credits_consumed_total", map[string]string{
		"class": "daily",
	}, 5) {
		t.Fatal("expected credits consumed counter to increase")
	}

	RecordCreditsConsumed("purchased", 0)
	RecordCreditsConsumed("purchased", -3)

	RecordCreditsRefunded("subscription", 2)
	if !metricCounterGreaterOrEqual(t, "taskwarden_credits_refunded_total", map[string]string{
		"class": "subscription",
	}, 2) {
		t.Fatal("expected credits refunded counter to increase")
	}
}

func TestRecordAIVendorCall(t *testing.T) {
	RecordAIVendorCall("chat", "success")
	if !metricCounterGreaterOrEqual(t, "taskwarden_ai_vendor_calls_total", map[string]string{
		"capability": "chat",
		"outcome":    "success",
	}, 1) {
		t.Fatal("expected AI vendor call counter to increase")
	}

	RecordAIVendorCall("", "")
	if !metricCounterGreaterOrEqual(t, "taskwarden_ai_vendor_calls_total", map[string]string{
		"capability": "unknown",
		"outcome":    "unknown",
	}, 1) {
		t.Fatal("expected AI vendor call counter with unknown labels")
	}
}

func metricCounterGreaterOrEqual(t *testing.T, name string, labels map[string]string, min float64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue() >= min
			}
		}
	}
	return false
}

func metricHistogramCountGreaterOrEqual(t *testing.T, name string, labels map[string]string, min uint64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetHistogram() != nil {
				return metric.GetHistogram().GetSampleCount() >= min
			}
		}
	}
	return false
}

func labelsMatch(metric *io_prometheus_client.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) < len(labels) {
		return false
	}
	matched := 0
	for _, lbl := range metric.GetLabel() {
		if val, ok := labels[lbl.GetName()]; ok && val == lbl.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"/health", "/health"},
		{"/health/live", "/health"},
		{"/metrics", "/metrics"},
		{"/tasks", "/tasks"},
		{"/tasks/", "/tasks"},
		{"/tasks/123", "/tasks/:id"},
		{"/tasks/123/", "/tasks/:id"},
		{"/tasks/123/complete", "/tasks/:id/complete"},
		{"/tasks/123/subtasks/456", "/tasks/:id/subtasks/456"},
		{"/notes/abc/convert", "/notes/:id/convert"},
		{"/tombstones/abc/recover", "/tombstones/:id/recover"},
		{"users", "/users"},
		{"users/", "/users"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := canonicalPath(tt.input)
			if result != tt.expected {
				t.Errorf("canonicalPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	sr.WriteHeader(http.StatusNotFound)
	if sr.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", sr.status)
	}

	rec2 := httptest.NewRecorder()
	sr2 := &statusRecorder{ResponseWriter: rec2, status: 0}
	n, err := sr2.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}
	if sr2.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", sr2.status)
	}

	rec3 := httptest.NewRecorder()
	sr3 := &statusRecorder{ResponseWriter: rec3, status: http.StatusCreated}
	sr3.Write([]byte("test"))
	if sr3.status != http.StatusCreated {
		t.Errorf("expected status 201 preserved, got %d", sr3.status)
	}
}

func TestMetaLabel(t *testing.T) {
	tests := []struct {
		name     string
		meta     map[string]string
		expected string
	}{
		{"nil map", nil, "unknown"},
		{"empty map", map[string]string{}, "unknown"},
		{"task_id key", map[string]string{"task_id": "task-1"}, "task-1"},
		{"user_id key", map[string]string{"user_id": "user-1"}, "user-1"},
		{"job_id key", map[string]string{"job_id": "job-1"}, "job-1"},
		{"note_id key", map[string]string{"note_id": "note-1"}, "note-1"},
		{"resource key", map[string]string{"resource": "res-1"}, "res-1"},
		{"task_id takes precedence", map[string]string{"task_id": "task-1", "user_id": "user-1"}, "task-1"},
		{"empty task_id falls through", map[string]string{"task_id": "", "user_id": "user-1"}, "user-1"},
		{"all empty returns unknown", map[string]string{"task_id": "", "user_id": ""}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := metaLabel(tt.meta)
			if result != tt.expected {
				t.Errorf("metaLabel(%v) = %q, want %q", tt.meta, result, tt.expected)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	h := Handler()
	if h == nil {
		t.Fatal("Handler() should return non-nil handler")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty metrics response")
	}
}

func TestInstrumentHandler_MetricsPathPassthrough(t *testing.T) {
	called := false
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected /metrics path to pass through to handler")
	}
}

func TestObservationHooks(t *testing.T) {
	hooks := ObservationHooks("test_ns", "test_sub", "test_op")

	if hooks.OnStart == nil {
		t.Fatal("OnStart should not be nil")
	}
	if hooks.OnComplete == nil {
		t.Fatal("OnComplete should not be nil")
	}

	hooks.OnStart(nil, map[string]string{"resource": "test-res"})
	hooks.OnComplete(nil, map[string]string{"resource": "test-res"}, nil, 100*time.Millisecond)
	hooks.OnComplete(nil, map[string]string{"resource": "test-res"}, fmt.Errorf("test error"), 50*time.Millisecond)

	hooks2 := ObservationHooks("test_ns", "test_sub", "test_op")
	if hooks2.OnStart == nil || hooks2.OnComplete == nil {
		t.Fatal("cached hooks should be valid")
	}
}

func TestDispatcherHooks(t *testing.T) {
	hooks := DispatcherHooks("dispatch_ns", "dispatch_sub", "dispatch_op")
	if hooks.OnStart == nil || hooks.OnComplete == nil {
		t.Fatal("DispatcherHooks should return valid hooks")
	}
}

func TestDomainHookFactories(t *testing.T) {
	tests := []struct {
		name  string
		hooks func() interface{}
	}{
		{"JobDispatchHooks", func() interface{} { return JobDispatchHooks("reminder_fire") }},
		{"ReminderDispatchHooks", func() interface{} { return ReminderDispatchHooks() }},
		{"WebhookProcessHooks", func() interface{} { return WebhookProcessHooks() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.hooks()
			if result == nil {
				t.Errorf("%s() returned nil", tt.name)
			}
		})
	}
}
