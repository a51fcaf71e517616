package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwarden/taskwarden/internal/app/domain/job"
	"github.com/taskwarden/taskwarden/internal/app/domain/template"
	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
	"github.com/taskwarden/taskwarden/pkg/logger"
)

func TestSchedulerEnqueueDailyStampsMaxAttempts(t *testing.T) {
	st := memory.New()
	s := NewScheduler(st.Jobs, st.Templates, logger.NewDefault("scheduler_test"), 5)

	s.enqueueDaily(context.Background(), job.TypeCreditExpire)

	jobs, err := st.Jobs.ListByStatus(context.Background(), job.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.TypeCreditExpire, jobs[0].Type)
	assert.Equal(t, 5, jobs[0].MaxAttempts)
}

func TestSchedulerEnqueueRecurringOnlyEnqueuesDueTemplates(t *testing.T) {
	st := memory.New()
	s := NewScheduler(st.Jobs, st.Templates, logger.NewDefault("scheduler_test"), 3)

	now := time.Now().UTC()
	due, err := st.Templates.CreateTemplate(context.Background(), template.Template{
		UserID:         "user-1",
		Title:          "weekly review",
		RecurrenceRule: "FREQ=WEEKLY",
		NextDue:        &now,
		Active:         true,
	})
	require.NoError(t, err)

	notYetDue := now.Add(48 * time.Hour)
	_, err = st.Templates.CreateTemplate(context.Background(), template.Template{
		UserID:         "user-1",
		Title:          "monthly report",
		RecurrenceRule: "FREQ=MONTHLY",
		NextDue:        &notYetDue,
		Active:         true,
	})
	require.NoError(t, err)

	s.enqueueRecurring(context.Background())

	jobs, err := st.Jobs.ListByStatus(context.Background(), job.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.TypeRecurringTaskGenerate, jobs[0].Type)
	assert.Contains(t, string(jobs[0].Payload), due.ID)
}
