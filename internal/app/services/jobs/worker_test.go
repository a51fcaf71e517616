package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

func TestWorkerRunsSuccessHandler(t *testing.T) {
	st := memory.New()
	registry := NewRegistry()
	ran := false
	registry.Register(job.TypeReminderFire, func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		ran = true
		return job.OutcomeSuccess, []byte(`{"ok":true}`), nil
	})

	w := NewWorker(st.Jobs, registry, logger.NewDefault("jobs_test"), Config{
		PollInterval:   time.Millisecond,
		BatchSize:      10,
		StaleLockAfter: time.Minute,
		RetryBackoff:   []time.Duration{time.Millisecond},
	})

	enqueued, err := st.Jobs.Enqueue(context.Background(), job.Job{
		Type:        job.TypeReminderFire,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.tick(context.Background())

	if !ran {
		t.Fatal("expected handler to run")
	}
	got, err := st.Jobs.Get(context.Background(), enqueued.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	st := memory.New()
	registry := NewRegistry()
	registry.Register(job.TypeCreditExpire, func(ctx context.Context, j job.Job) (job.Outcome, []byte, error) {
		return job.OutcomeError, nil, errAlwaysFails
	})

	w := NewWorker(st.Jobs, registry, logger.NewDefault("jobs_test"), Config{
		PollInterval:   time.Millisecond,
		BatchSize:      10,
		StaleLockAfter: time.Minute,
		RetryBackoff:   []time.Duration{time.Millisecond, time.Millisecond},
	})

	enqueued, err := st.Jobs.Enqueue(context.Background(), job.Job{
		Type:        job.TypeCreditExpire,
		MaxAttempts: 2,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.tick(context.Background())
	got, _ := st.Jobs.Get(context.Background(), enqueued.ID)
	if got.Status != job.StatusPending {
		t.Fatalf("expected pending after first failure (retry scheduled), got %s", got.Status)
	}

	time.Sleep(2 * time.Millisecond)
	w.tick(context.Background())
	got, _ = st.Jobs.Get(context.Background(), enqueued.ID)
	if got.Status != job.StatusDead {
		t.Fatalf("expected dead after exhausting attempts, got %s", got.Status)
	}
}

func TestWorkerUnregisteredTypeDeadLettersImmediatelyAfterAttempts(t *testing.T) {
	st := memory.New()
	registry := NewRegistry()

	w := NewWorker(st.Jobs, registry, logger.NewDefault("jobs_test"), Config{
		PollInterval:   time.Millisecond,
		BatchSize:      10,
		StaleLockAfter: time.Minute,
		RetryBackoff:   []time.Duration{time.Millisecond},
	})

	enqueued, err := st.Jobs.Enqueue(context.Background(), job.Job{
		Type:        job.Type("unknown_type"),
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	w.tick(context.Background())
	got, _ := st.Jobs.Get(context.Background(), enqueued.ID)
	if got.Status != job.StatusDead {
		t.Fatalf("expected dead for unregistered type, got %s", got.Status)
	}
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errAlwaysFails = staticErr("handler always fails")
