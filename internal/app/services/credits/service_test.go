package credits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwarden/taskwarden/internal/app/domain/credit"
	"github.com/taskwarden/taskwarden/internal/app/storage"
	"github.com/taskwarden/taskwarden/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *storage.Storage) {
	t.Helper()
	st := memory.New()
	return New(st.Credits, 50, 10, 100, 500), st
}

func TestGrantKickstartIsOnceOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	granted, err := svc.GrantKickstart(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = svc.GrantKickstart(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, granted, "second kickstart grant should be a no-op")

	bal, err := svc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, bal.Total)
}

func TestGrantDailyOncePerUTCDay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(9 * time.Hour)

	granted, err := svc.GrantDaily(ctx, "user-1", day, 5)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = svc.GrantDaily(ctx, "user-1", day.Add(8*time.Hour), 5)
	require.NoError(t, err)
	assert.False(t, granted, "second grant on the same UTC day should be rejected")

	bal, err := svc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 15, bal.Total)
}

func TestGrantPurchasedEnforcesMonthlyCap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GrantPurchased(ctx, "user-1", 400, "order-1")
	require.NoError(t, err)

	_, err = svc.GrantPurchased(ctx, "user-1", 200, "order-2")
	assert.Error(t, err, "purchases exceeding the monthly cap should be rejected")
}

func TestConsumeFIFOAndRefund(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GrantKickstart(ctx, "user-1")
	require.NoError(t, err)

	result, err := svc.Consume(ctx, "user-1", 20, "op-1")
	require.NoError(t, err)
	consumed := 0
	for _, n := range result.ConsumedByClass {
		consumed += n
	}
	assert.Equal(t, 20, consumed)

	require.NoError(t, svc.Refund(ctx, "user-1", credit.ClassKickstart, 20, "op-1"))

	bal, err := svc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50, bal.Total, "refund should restore the consumed amount")
}

func TestExpireDueCarriesOverSubscriptionCredits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	now := time.Now().UTC()
	periodEnd := now.Add(30 * 24 * time.Hour)
	require.NoError(t, svc.GrantMonthly(ctx, "user-1", 80, periodEnd))

	expired, err := svc.ExpireDue(ctx, periodEnd.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	bal, err := svc.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 80, bal.Total, "carryover cap of 100 should preserve the full unused balance")
}
