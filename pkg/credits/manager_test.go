package credits_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/credits"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newManager(clock *testClock) *credits.Manager {
	return credits.NewManager(
		credits.NewMemoryStore(),
		credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		credits.WithClock(clock.Now),
	)
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	wallet, err := mgr.Initialize(ctx, "acc-1", 25)
	require.NoError(t, err)
	assert.Equal(t, int64(25), wallet.TotalBalance)
	assert.Equal(t, int64(25), wallet.BonusBalance)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), wallet.NextMonthlyReset)

	// Second call returns the existing wallet untouched.
	again, err := mgr.Initialize(ctx, "acc-1", 999)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)
	assert.Equal(t, int64(25), again.TotalBalance)

	require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
}

func TestDebitPriorityOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	_, err := mgr.Initialize(ctx, "acc-1", 0)
	require.NoError(t, err)

	clock.Set(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	grant, err := mgr.GrantMonthly(ctx, "acc-1", 5, false, 0)
	require.NoError(t, err)
	require.Equal(t, credits.GrantStatusGranted, grant.Status)

	_, err = mgr.Purchase(ctx, "acc-1", 10, decimal.NewFromInt(9), "usd", 300, "pay-1")
	require.NoError(t, err)

	// Priority 1 drains first, priority 3 covers the rest.
	result, err := mgr.Debit(ctx, "acc-1", 7, credits.FeatureRef{Key: "api.call"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Charged)
	assert.Equal(t, int64(8), result.Remaining)

	balance, err := mgr.Balance(ctx, "acc-1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(8), balance.Total)
	assert.Equal(t, int64(0), balance.Monthly)
	assert.Equal(t, int64(8), balance.Purchased)

	// The monthly lot is fully consumed but not expired.
	require.Len(t, balance.Packages, 1)
	assert.Equal(t, credits.TypePurchased, balance.Packages[0].CreditType)
	assert.Equal(t, int64(8), balance.Packages[0].RemainingAmount)

	require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
}

func TestDebitInsufficientCredits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	_, err := mgr.GrantBonus(ctx, "acc-1", 3, credits.TypeBonus, 0, "welcome", "")
	require.NoError(t, err)

	_, err = mgr.Debit(ctx, "acc-1", 5, credits.FeatureRef{Key: "export"}, nil)
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)

	// The failed debit left no trace.
	balance, err := mgr.Balance(ctx, "acc-1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance.Total)

	history, err := mgr.History(ctx, "acc-1", credits.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, credits.TxCredit, history[0].TransactionType)
}

func TestGrantMonthly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("not due before the reset", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
		mgr := newManager(clock)

		_, err := mgr.Initialize(ctx, "acc-1", 0)
		require.NoError(t, err)

		result, err := mgr.GrantMonthly(ctx, "acc-1", 1000, true, 0)
		require.NoError(t, err)
		assert.Equal(t, credits.GrantStatusNotDue, result.Status)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), result.NextReset)
	})

	t.Run("rollover carries unused credits into the new package", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
		mgr := newManager(clock)

		_, err := mgr.Initialize(ctx, "acc-1", 0)
		require.NoError(t, err)

		clock.Set(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
		_, err = mgr.GrantMonthly(ctx, "acc-1", 1000, true, 1000)
		require.NoError(t, err)

		_, err = mgr.Debit(ctx, "acc-1", 800, credits.FeatureRef{Key: "api.call"}, nil)
		require.NoError(t, err)

		clock.Set(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
		result, err := mgr.GrantMonthly(ctx, "acc-1", 5000, true, 1000)
		require.NoError(t, err)
		assert.Equal(t, credits.GrantStatusGranted, result.Status)
		assert.Equal(t, int64(5000), result.Granted)
		assert.Equal(t, int64(200), result.RolledOver)
		assert.Equal(t, int64(0), result.Forfeited)
		assert.Equal(t, int64(5200), result.Package.OriginalAmount)

		wallet, err := mgr.Initialize(ctx, "acc-1", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5200), wallet.TotalBalance)
		assert.Equal(t, int64(5200), wallet.MonthlyBalance)
		assert.Equal(t, int64(0), wallet.MonthlyConsumed)
		assert.Equal(t, int64(800), wallet.LifetimeConsumed)
		assert.False(t, wallet.AlertSent)

		require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
	})

	t.Run("rollover is capped, the rest is forfeited", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
		mgr := newManager(clock)

		_, err := mgr.GrantMonthly(ctx, "acc-1", 300, true, 0)
		require.NoError(t, err)

		clock.Set(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
		result, err := mgr.GrantMonthly(ctx, "acc-1", 1000, true, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), result.RolledOver)
		assert.Equal(t, int64(200), result.Forfeited)
		assert.Equal(t, int64(1100), result.Package.OriginalAmount)

		require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
	})

	t.Run("no rollover forfeits everything left", func(t *testing.T) {
		t.Parallel()

		clock := newTestClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
		mgr := newManager(clock)

		_, err := mgr.GrantMonthly(ctx, "acc-1", 300, false, 0)
		require.NoError(t, err)

		clock.Set(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
		result, err := mgr.GrantMonthly(ctx, "acc-1", 1000, false, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.RolledOver)
		assert.Equal(t, int64(300), result.Forfeited)

		balance, err := mgr.Balance(ctx, "acc-1", false)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance.Total)

		require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
	})
}

func TestExpireDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	_, err := mgr.GrantBonus(ctx, "acc-1", 50, credits.TypeBonus, 10, "promo", "")
	require.NoError(t, err)
	_, err = mgr.GrantBonus(ctx, "acc-2", 30, credits.TypeBonus, 60, "promo", "")
	require.NoError(t, err)

	clock.Advance(11 * 24 * time.Hour)

	expired, err := mgr.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	balance, err := mgr.Balance(ctx, "acc-1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Total)

	untouched, err := mgr.Balance(ctx, "acc-2", false)
	require.NoError(t, err)
	assert.Equal(t, int64(30), untouched.Total)

	// Second sweep finds nothing to do.
	expired, err = mgr.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
	require.NoError(t, mgr.VerifyLedger(ctx, "acc-2"))
}

func TestAdjustCredits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	wallet, err := mgr.AdjustCredits(ctx, "acc-1", 50, "support goodwill", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), wallet.TotalBalance)

	wallet, err = mgr.AdjustCredits(ctx, "acc-1", -20, "correction", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), wallet.TotalBalance)
	// Admin removals are not consumption.
	assert.Equal(t, int64(0), wallet.TotalConsumed)

	_, err = mgr.AdjustCredits(ctx, "acc-1", -100, "too much", "admin-1")
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)

	_, err = mgr.AdjustCredits(ctx, "acc-1", 0, "noop", "admin-1")
	assert.ErrorIs(t, err, credits.ErrInvalidAmount)

	require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
}

func TestBalanceSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	t.Run("missing wallet reads as zero", func(t *testing.T) {
		t.Parallel()

		balance, err := mgr.Balance(ctx, "nobody", false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance.Total)
		assert.True(t, balance.LowBalance)
	})

	t.Run("expiring soon and low balance", func(t *testing.T) {
		t.Parallel()

		_, err := mgr.Purchase(ctx, "acc-1", 40, decimal.NewFromInt(5), "usd", 5, "pay-2")
		require.NoError(t, err)
		_, err = mgr.Purchase(ctx, "acc-1", 25, decimal.NewFromInt(3), "usd", 90, "pay-3")
		require.NoError(t, err)

		balance, err := mgr.Balance(ctx, "acc-1", true)
		require.NoError(t, err)
		assert.Equal(t, int64(65), balance.Total)
		assert.Equal(t, int64(40), balance.ExpiringSoon)
		require.NotNil(t, balance.ExpiringSoonAt)
		assert.True(t, balance.LowBalance)
		assert.Len(t, balance.Packages, 2)
	})
}

func TestRefreshPriorities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	_, err := mgr.Purchase(ctx, "acc-1", 100, decimal.NewFromInt(10), "usd", 5, "pay-4")
	require.NoError(t, err)
	_, err = mgr.Purchase(ctx, "acc-1", 100, decimal.NewFromInt(10), "usd", 90, "pay-5")
	require.NoError(t, err)

	bumped, err := mgr.RefreshPriorities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, bumped)

	balance, err := mgr.Balance(ctx, "acc-1", true)
	require.NoError(t, err)
	require.Len(t, balance.Packages, 2)
	assert.Equal(t, credits.PriorityExpiring, balance.Packages[0].Priority)
	assert.Equal(t, credits.PriorityPurchased, balance.Packages[1].Priority)

	// Already bumped packages are not counted again.
	bumped, err = mgr.RefreshPriorities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, bumped)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	_, err := mgr.GrantBonus(ctx, "acc-1", 100, credits.TypeBonus, 0, "promo", "")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = mgr.Debit(ctx, "acc-1", 10, credits.FeatureRef{Key: "api.call"}, nil)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = mgr.Debit(ctx, "acc-1", 5, credits.FeatureRef{Key: "export"}, nil)
	require.NoError(t, err)

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		entries, err := mgr.History(ctx, "acc-1", credits.EntryFilter{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "export", entries[0].FeatureKey)
		assert.Equal(t, "api.call", entries[1].FeatureKey)
		assert.Equal(t, credits.TxCredit, entries[2].TransactionType)
	})

	t.Run("type filter", func(t *testing.T) {
		t.Parallel()

		entries, err := mgr.History(ctx, "acc-1", credits.EntryFilter{
			Types: []credits.TransactionType{credits.TxDebit},
		})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		t.Parallel()

		entries, err := mgr.History(ctx, "acc-1", credits.EntryFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "api.call", entries[0].FeatureKey)
	})
}

func TestLowBalanceAlert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	store := credits.NewMemoryStore()
	mgr := credits.NewManager(store,
		credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		credits.WithClock(clock.Now),
	)

	_, err := mgr.GrantBonus(ctx, "acc-1", 50, credits.TypeBonus, 0, "promo", "")
	require.NoError(t, err)

	accounts, err := store.LowBalanceAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acc-1"}, accounts)

	require.NoError(t, mgr.MarkAlertSent(ctx, "acc-1"))

	accounts, err = store.LowBalanceAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	// Topping the wallet back up re-arms the alert.
	_, err = mgr.GrantBonus(ctx, "acc-1", 500, credits.TypeBonus, 0, "promo", "")
	require.NoError(t, err)

	wallet, err := store.GetWallet(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, wallet.AlertSent)
}

// Concurrent debits against the same wallet must never overdraw it:
// with exactly 100 credits and 20 debits of 10 each, precisely 10
// succeed and the balance lands on 0.
func TestConcurrentDebits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	mgr := newManager(clock)

	_, err := mgr.GrantBonus(ctx, "acc-1", 100, credits.TypeBonus, 0, "promo", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Debit(ctx, "acc-1", 10, credits.FeatureRef{Key: "api.call"}, nil)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	balance, err := mgr.Balance(ctx, "acc-1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Total)

	require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
}

func TestAccountsDueMonthlyReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	store := credits.NewMemoryStore()
	mgr := credits.NewManager(store,
		credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		credits.WithClock(clock.Now),
	)

	_, err := mgr.Initialize(ctx, "acc-due", 0)
	require.NoError(t, err)
	_, err = mgr.Initialize(ctx, "acc-fresh", 0)
	require.NoError(t, err)

	// Both wallets reset on April 1st; nothing is due yet.
	due, err := store.AccountsDueMonthlyReset(ctx, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	clock.Set(time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC))
	due, err = store.AccountsDueMonthlyReset(ctx, clock.Now())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acc-due", "acc-fresh"}, due)

	// Granting advances the reset date and takes the wallet off the list.
	result, err := mgr.GrantMonthly(ctx, "acc-due", 100, false, 0)
	require.NoError(t, err)
	require.Equal(t, credits.GrantStatusGranted, result.Status)

	due, err = store.AccountsDueMonthlyReset(ctx, clock.Now())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acc-fresh"}, due)
}

func TestGrantMonthlySupersededLot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	store := credits.NewMemoryStore()
	mgr := credits.NewManager(store,
		credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		credits.WithClock(clock.Now),
	)

	first, err := mgr.GrantMonthly(ctx, "acc-1", 300, true, 0)
	require.NoError(t, err)
	oldLotID := first.Package.ID

	// The grant job fires at the reset instant, which is also the old
	// lot's expiry. The leftover must still roll over.
	resetAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(resetAt)
	result, err := mgr.GrantMonthly(ctx, "acc-1", 1000, true, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(300), result.RolledOver)
	assert.Equal(t, int64(1300), result.Package.OriginalAmount)

	pkgs, err := store.ListPackages(ctx, "acc-1", false, clock.Now())
	require.NoError(t, err)

	var oldLot *credits.Package
	for i := range pkgs {
		if pkgs[i].ID == oldLotID {
			oldLot = &pkgs[i]
		}
	}
	require.NotNil(t, oldLot)
	assert.True(t, oldLot.IsExpired)
	require.NotNil(t, oldLot.ExpiredAt)
	assert.Equal(t, resetAt, *oldLot.ExpiredAt)
	// Expired lots keep their unused remainder, same as the sweep.
	assert.Equal(t, int64(300), oldLot.RemainingAmount)

	require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
}

func TestPackageActivityFollowsInjectedClock(t *testing.T) {
	t.Parallel()

	// Fixture dates sit far in the wall-clock past; package activity
	// must be judged by the manager's clock, not time.Now.
	ctx := context.Background()
	clock := newTestClock(time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))
	store := credits.NewMemoryStore()
	mgr := credits.NewManager(store,
		credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		credits.WithClock(clock.Now),
	)

	_, err := mgr.Purchase(ctx, "acc-1", 100, decimal.NewFromInt(9), "USD", 30, "pay-1")
	require.NoError(t, err)

	result, err := mgr.Debit(ctx, "acc-1", 40, credits.FeatureRef{Key: "api.call"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(60), result.Remaining)

	pkgs, err := store.ListPackages(ctx, "acc-1", true, clock.Now())
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, int64(60), pkgs[0].RemainingAmount)

	clock.Set(time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC))
	expired, err := mgr.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	require.NoError(t, mgr.VerifyLedger(ctx, "acc-1"))
}

func TestCreateWalletDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := credits.NewMemoryStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := store.WithWalletTx(ctx, "acc-1", func(tx credits.Tx) error {
		return tx.CreateWallet(ctx, &credits.Wallet{ID: uuid.New(), AccountID: "acc-1", CreatedAt: now})
	})
	require.NoError(t, err)

	// A second create for the same account reports the retryable
	// conflict instead of clobbering the existing wallet.
	err = store.WithWalletTx(ctx, "acc-1", func(tx credits.Tx) error {
		return tx.CreateWallet(ctx, &credits.Wallet{ID: uuid.New(), AccountID: "acc-1", CreatedAt: now})
	})
	require.ErrorIs(t, err, credits.ErrConcurrencyConflict)

	w, err := store.GetWallet(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", w.AccountID)
}
