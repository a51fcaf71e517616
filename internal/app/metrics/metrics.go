package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	core "github.com/taskwarden/taskwarden/internal/app/core/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskwarden",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskwarden",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskwarden",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	jobExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskwarden",
			Subsystem: "jobs",
			Name:      "executions_total",
			Help:      "Total number of job engine dispatches by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskwarden",
			Subsystem: "jobs",
			Name:      "execution_duration_seconds",
			Help:      "Duration of job handler executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"type"},
	)

	jobDeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskwarden",
			Subsystem: "jobs",
			Name:      "dead_lettered_total",
			Help:      "Total number of jobs moved to the dead letter state.",
		},
		[]string{"type"},
	)

	creditsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskwarden",
			Subsystem: "credits",
			Name:      "consumed_total",
			Help:      "Total credit units consumed, by class.",
		},
		[]string{"class"},
	)

	creditsRefunded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskwarden",
			Subsystem: "credits",
			Name:      "refunded_total",
			Help:      "Total credit units refunded after a failed vendor call, by class.",
		},
		[]string{"class"},
	)

	aiVendorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskwarden",
			Subsystem: "ai",
			Name:      "vendor_calls_total",
			Help:      "Total AI vendor calls, by capability and outcome.",
		},
		[]string{"capability", "outcome"},
	)

	observationCollectors sync.Map
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		jobExecutions,
		jobDuration,
		jobDeadLettered,
		creditsConsumed,
		creditsRefunded,
		aiVendorCalls,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordJobExecution records a job handler dispatch outcome (success,
// skipped, retry, error, or dead_letter) for the named job type.
func RecordJobExecution(jobType, outcome string, duration time.Duration) {
	if jobType == "" {
		jobType = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	jobExecutions.WithLabelValues(jobType, outcome).Inc()
	jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// RecordJobDeadLettered records a job exhausting its retry budget.
func RecordJobDeadLettered(jobType string) {
	if jobType == "" {
		jobType = "unknown"
	}
	jobDeadLettered.WithLabelValues(jobType).Inc()
}

// RecordCreditsConsumed records credit units debited from a class during
// FIFO consumption.
func RecordCreditsConsumed(class string, amount int) {
	if amount <= 0 {
		return
	}
	creditsConsumed.WithLabelValues(class).Add(float64(amount))
}

// RecordCreditsRefunded records credit units restored to a class after a
// vendor call failed post-debit.
func RecordCreditsRefunded(class string, amount int) {
	if amount <= 0 {
		return
	}
	creditsRefunded.WithLabelValues(class).Add(float64(amount))
}

// RecordAIVendorCall records one AI vendor round trip for a capability
// (chat, subtasks, note_convert, transcribe) and its outcome (success,
// error).
func RecordAIVendorCall(capability, outcome string) {
	if capability == "" {
		capability = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	aiVendorCalls.WithLabelValues(capability, outcome).Inc()
}

type observationCollector struct {
	gauge *prometheus.GaugeVec
	hist  *prometheus.HistogramVec
}

// ObservationHooks creates core observation hooks backed by Prometheus metrics.
func ObservationHooks(namespace, subsystem, name string) core.ObservationHooks {
	key := namespace + ":" + subsystem + ":" + name
	var collector observationCollector
	if entry, ok := observationCollectors.Load(key); ok {
		collector = entry.(observationCollector)
	} else {
		collector = createObservationCollector(namespace, subsystem, name)
		observationCollectors.Store(key, collector)
	}
	return core.ObservationHooks{
		OnStart: func(ctx context.Context, meta map[string]string) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Inc()
		},
		OnComplete: func(ctx context.Context, meta map[string]string, err error, duration time.Duration) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Dec()
			status := "success"
			if err != nil {
				status = "error"
			}
			collector.hist.WithLabelValues(label, status).Observe(duration.Seconds())
		},
	}
}

func createObservationCollector(namespace, subsystem, name string) observationCollector {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_in_flight",
			Help:      "Current operations in flight for " + subsystem,
		},
		[]string{"resource"},
	)
	hist := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_duration_seconds",
			Help:      "Duration of operations for " + subsystem,
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"resource", "status"},
	)
	Registry.MustRegister(gauge, hist)
	return observationCollector{gauge: gauge, hist: hist}
}

func metaLabel(meta map[string]string) string {
	if meta == nil {
		return "unknown"
	}
	if id, ok := meta["task_id"]; ok && id != "" {
		return id
	}
	if id, ok := meta["user_id"]; ok && id != "" {
		return id
	}
	if id, ok := meta["job_id"]; ok && id != "" {
		return id
	}
	if id, ok := meta["note_id"]; ok && id != "" {
		return id
	}
	if id, ok := meta["resource"]; ok && id != "" {
		return id
	}
	return "unknown"
}

// DispatcherHooks wraps ObservationHooks for job-dispatcher instrumentation.
func DispatcherHooks(namespace, subsystem, name string) core.DispatchHooks {
	return ObservationHooks(namespace, subsystem, name)
}

// JobDispatchHooks captures job engine claim-to-completion attempts, keyed
// by job type, for handlers that want per-operation in-flight/duration
// tracking beyond the summary counters above.
func JobDispatchHooks(jobType string) core.DispatchHooks {
	return DispatcherHooks("taskwarden", "jobs", jobType)
}

// ReminderDispatchHooks captures reminder drain attempts.
func ReminderDispatchHooks() core.ObservationHooks {
	return ObservationHooks("taskwarden", "reminders", "dispatch")
}

// WebhookProcessHooks captures subscription webhook processing attempts.
func WebhookProcessHooks() core.ObservationHooks {
	return ObservationHooks("taskwarden", "webhooks", "process")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters into a fixed placeholder so the
// requests_total/request_duration_seconds label cardinality stays bounded
// regardless of how many distinct ids are seen.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 {
		return "/"
	}
	// API routes are served under /api/v1; drop that prefix so the
	// resource root is the segment that follows it.
	if len(parts) > 2 && parts[0] == "api" && parts[1] == "v1" {
		parts = parts[2:]
	}

	resourceRoots := map[string]bool{
		"tasks": true, "subtasks": true, "notes": true, "templates": true,
		"reminders": true, "notifications": true, "tombstones": true,
		"subscriptions": true, "push-subscriptions": true,
	}

	if !resourceRoots[parts[0]] {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/" + parts[0]
	}
	// /<resource>/<id>[/<action>...] -> /<resource>/:id[/<action>...]
	out := "/" + parts[0] + "/:id"
	for _, seg := range parts[2:] {
		out += "/" + seg
	}
	return out
}
