package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/credits"
)

// Job names used when registering the standard maintenance set.
const (
	JobMonthlyGrant    = "credits.monthly_grant"
	JobExpirationSweep = "credits.expiration_sweep"
	JobPriorityRefresh = "credits.priority_refresh"
	JobLowBalanceAlert = "credits.low_balance_alert"
	JobExpiringSoon    = "credits.expiring_soon"
)

// PlanGrant is a plan's monthly credit allowance and rollover policy.
type PlanGrant struct {
	Amount        int64
	AllowRollover bool
	MaxRollover   int64
}

// DefaultPlanGrants mirrors the built-in subscription tiers.
var DefaultPlanGrants = map[string]PlanGrant{
	"free":       {Amount: 100},
	"basic":      {Amount: 1_000, AllowRollover: true, MaxRollover: 500},
	"pro":        {Amount: 10_000, AllowRollover: true, MaxRollover: 5_000},
	"enterprise": {Amount: 100_000, AllowRollover: true},
}

// Subscription pairs an account with its current plan.
type Subscription struct {
	AccountID string
	Plan      string
}

// SubscriptionSource lists the accounts eligible for monthly grants.
// The subscription service implements it.
type SubscriptionSource interface {
	ActiveSubscriptions(ctx context.Context) ([]Subscription, error)
}

// Notifier delivers balance notifications. The email/webhook layer
// implements it; a nil Notifier disables the notification jobs.
type Notifier interface {
	NotifyLowBalance(ctx context.Context, balance *credits.Balance) error
	NotifyExpiringSoon(ctx context.Context, balance *credits.Balance) error
}

// Jobs bundles the wallet maintenance jobs with their collaborators.
type Jobs struct {
	wallet   *credits.Manager
	store    credits.Store
	subs     SubscriptionSource
	grants   map[string]PlanGrant
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
}

// JobsOption configures a Jobs set.
type JobsOption func(*Jobs)

// WithSubscriptionSource attaches the subscription collaborator that
// drives monthly grants.
func WithSubscriptionSource(src SubscriptionSource) JobsOption {
	return func(j *Jobs) { j.subs = src }
}

// WithPlanGrants replaces the built-in plan allowances.
func WithPlanGrants(grants map[string]PlanGrant) JobsOption {
	return func(j *Jobs) { j.grants = grants }
}

// WithNotifier attaches the notification collaborator.
func WithNotifier(n Notifier) JobsOption {
	return func(j *Jobs) { j.notifier = n }
}

// WithJobsLogger sets the logger.
func WithJobsLogger(log *slog.Logger) JobsOption {
	return func(j *Jobs) {
		if log != nil {
			j.log = log
		}
	}
}

// withJobsClock overrides the time source in tests.
func withJobsClock(now func() time.Time) JobsOption {
	return func(j *Jobs) { j.now = now }
}

// NewJobs creates the maintenance job set.
func NewJobs(wallet *credits.Manager, store credits.Store, opts ...JobsOption) *Jobs {
	j := &Jobs{
		wallet: wallet,
		store:  store,
		grants: DefaultPlanGrants,
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Register wires the standard job set into a runner. The monthly grant
// runs daily because wallets come due on their own reset dates, and
// GrantMonthly is a no-op for wallets not yet due.
func (j *Jobs) Register(r *Runner) error {
	jobs := []struct {
		name     string
		schedule Schedule
		fn       JobFunc
	}{
		{JobMonthlyGrant, DailyAt(0, 5), j.MonthlyGrant},
		{JobExpirationSweep, DailyAt(1, 0), j.ExpirationSweep},
		{JobPriorityRefresh, DailyAt(2, 0), j.PriorityRefresh},
		{JobLowBalanceAlert, HourlyAt(0), j.LowBalanceAlert},
		{JobExpiringSoon, DailyAt(9, 0), j.ExpiringSoon},
	}
	for _, job := range jobs {
		if err := r.AddJob(job.name, job.schedule, job.fn); err != nil {
			return err
		}
	}
	return nil
}

// MonthlyGrant issues plan allowances to every active subscription.
// Wallets not yet at their reset date report not_due and are skipped.
func (j *Jobs) MonthlyGrant(ctx context.Context) error {
	if j.subs == nil {
		return nil
	}
	subs, err := j.subs.ActiveSubscriptions(ctx)
	if err != nil {
		return err
	}

	var granted int
	var errs []error
	for _, sub := range subs {
		grant, ok := j.grants[sub.Plan]
		if !ok || grant.Amount <= 0 {
			continue
		}

		result, err := j.wallet.GrantMonthly(ctx, sub.AccountID, grant.Amount, grant.AllowRollover, grant.MaxRollover)
		if err != nil {
			j.log.ErrorContext(ctx, "monthly grant failed",
				slog.String("account_id", sub.AccountID),
				slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		if result.Status == credits.GrantStatusGranted {
			granted++
		}
	}

	j.log.InfoContext(ctx, "monthly grant pass complete",
		slog.Int("subscriptions", len(subs)),
		slog.Int("granted", granted))
	return errors.Join(errs...)
}

// ExpirationSweep expires packages past their expiry date.
func (j *Jobs) ExpirationSweep(ctx context.Context) error {
	expired, err := j.wallet.ExpireDue(ctx)
	if err != nil {
		return err
	}
	j.log.InfoContext(ctx, "expiration sweep complete", slog.Int("packages_expired", expired))
	return nil
}

// PriorityRefresh bumps packages expiring soon so they are consumed
// before longer-lived lots.
func (j *Jobs) PriorityRefresh(ctx context.Context) error {
	bumped, err := j.wallet.RefreshPriorities(ctx)
	if err != nil {
		return err
	}
	j.log.InfoContext(ctx, "priority refresh complete", slog.Int("packages_bumped", bumped))
	return nil
}

// LowBalanceAlert notifies accounts at or under their threshold, once
// per dip: the alert is marked sent and re-arms when the balance
// recovers.
func (j *Jobs) LowBalanceAlert(ctx context.Context) error {
	if j.notifier == nil {
		return nil
	}
	accounts, err := j.store.LowBalanceAccounts(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, accountID := range accounts {
		balance, err := j.wallet.Balance(ctx, accountID, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := j.notifier.NotifyLowBalance(ctx, balance); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := j.wallet.MarkAlertSent(ctx, accountID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExpiringSoon warns accounts holding credits that expire within the
// next week.
func (j *Jobs) ExpiringSoon(ctx context.Context) error {
	if j.notifier == nil {
		return nil
	}
	now := j.now()
	accounts, err := j.store.AccountsWithPackagesExpiringBefore(ctx, now, now.Add(credits.ExpiringSoonWindow))
	if err != nil {
		return err
	}

	var errs []error
	for _, accountID := range accounts {
		balance, err := j.wallet.Balance(ctx, accountID, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if balance.ExpiringSoon == 0 {
			continue
		}
		if err := j.notifier.NotifyExpiringSoon(ctx, balance); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
