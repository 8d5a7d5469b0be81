package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/credits"
	"github.com/dmitrymomot/meterkit/pkg/schedule"
)

type staticSubs struct {
	subs []schedule.Subscription
}

func (s staticSubs) ActiveSubscriptions(ctx context.Context) ([]schedule.Subscription, error) {
	return s.subs, nil
}

type recordingNotifier struct {
	lowBalance   []string
	expiringSoon []string
}

func (n *recordingNotifier) NotifyLowBalance(ctx context.Context, b *credits.Balance) error {
	n.lowBalance = append(n.lowBalance, b.AccountID)
	return nil
}

func (n *recordingNotifier) NotifyExpiringSoon(ctx context.Context, b *credits.Balance) error {
	n.expiringSoon = append(n.expiringSoon, b.AccountID)
	return nil
}

func TestMonthlyGrantJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := credits.NewMemoryStore()
	wallet := credits.NewManager(store, credits.WithLogger(quietLogger()))

	jobs := schedule.NewJobs(wallet, store,
		schedule.WithJobsLogger(quietLogger()),
		schedule.WithSubscriptionSource(staticSubs{subs: []schedule.Subscription{
			{AccountID: "acc-basic", Plan: "basic"},
			{AccountID: "acc-pro", Plan: "pro"},
			{AccountID: "acc-unknown", Plan: "legacy"},
		}}),
	)

	require.NoError(t, jobs.MonthlyGrant(ctx))

	basic, err := wallet.Balance(ctx, "acc-basic", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), basic.Total)

	pro, err := wallet.Balance(ctx, "acc-pro", false)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), pro.Total)

	// Unknown plans get nothing, and the job does not create a wallet.
	_, err = store.GetWallet(ctx, "acc-unknown")
	assert.ErrorIs(t, err, credits.ErrWalletNotFound)

	// A second pass on the same day grants nothing new.
	require.NoError(t, jobs.MonthlyGrant(ctx))
	basic, err = wallet.Balance(ctx, "acc-basic", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), basic.Total)
}

func TestLowBalanceAlertJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := credits.NewMemoryStore()
	wallet := credits.NewManager(store, credits.WithLogger(quietLogger()))
	notifier := &recordingNotifier{}

	jobs := schedule.NewJobs(wallet, store,
		schedule.WithJobsLogger(quietLogger()),
		schedule.WithNotifier(notifier),
	)

	_, err := wallet.GrantBonus(ctx, "acc-low", 50, credits.TypeBonus, 0, "seed", "")
	require.NoError(t, err)
	_, err = wallet.GrantBonus(ctx, "acc-rich", 5000, credits.TypeBonus, 0, "seed", "")
	require.NoError(t, err)

	require.NoError(t, jobs.LowBalanceAlert(ctx))
	assert.Equal(t, []string{"acc-low"}, notifier.lowBalance)

	// The alert is one-shot until the balance recovers.
	require.NoError(t, jobs.LowBalanceAlert(ctx))
	assert.Len(t, notifier.lowBalance, 1)
}

func TestExpiringSoonJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := credits.NewMemoryStore()
	now := time.Now()
	wallet := credits.NewManager(store, credits.WithLogger(quietLogger()))
	notifier := &recordingNotifier{}

	jobs := schedule.NewJobs(wallet, store,
		schedule.WithJobsLogger(quietLogger()),
		schedule.WithNotifier(notifier),
		schedule.WithJobsClock(func() time.Time { return now }),
	)

	_, err := wallet.Purchase(ctx, "acc-soon", 100, decimal.NewFromInt(10), "usd", 3, "pay-1")
	require.NoError(t, err)
	_, err = wallet.Purchase(ctx, "acc-later", 100, decimal.NewFromInt(10), "usd", 90, "pay-2")
	require.NoError(t, err)

	require.NoError(t, jobs.ExpiringSoon(ctx))
	assert.Equal(t, []string{"acc-soon"}, notifier.expiringSoon)
}

func TestJobsRegister(t *testing.T) {
	t.Parallel()

	store := credits.NewMemoryStore()
	wallet := credits.NewManager(store, credits.WithLogger(quietLogger()))
	jobs := schedule.NewJobs(wallet, store, schedule.WithJobsLogger(quietLogger()))

	r := schedule.NewRunner(schedule.WithLogger(quietLogger()))
	require.NoError(t, jobs.Register(r))

	// All five jobs are runnable by name.
	for _, name := range []string{
		schedule.JobMonthlyGrant,
		schedule.JobExpirationSweep,
		schedule.JobPriorityRefresh,
		schedule.JobLowBalanceAlert,
		schedule.JobExpiringSoon,
	} {
		require.NoError(t, r.Run(context.Background(), name))
	}
}
