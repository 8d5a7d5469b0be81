package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultPurchaseValidDays is the lifetime of a purchased package when
// the caller does not specify one.
const DefaultPurchaseValidDays = 365

// Manager is the only writer of wallet, package and ledger state. All
// mutations run inside Store.WithWalletTx so concurrent work against
// the same wallet is serialized.
type Manager struct {
	store               Store
	log                 *slog.Logger
	lowBalanceThreshold int64
	now                 func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used by maintenance sweeps.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithLowBalanceThreshold overrides the alert threshold applied to
// newly created wallets.
func WithLowBalanceThreshold(threshold int64) ManagerOption {
	return func(m *Manager) { m.lowBalanceThreshold = threshold }
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager on the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:               store,
		log:                 slog.Default(),
		lowBalanceThreshold: DefaultLowBalanceThreshold,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize returns the account's wallet, creating it with an
// optional starting bonus when it does not exist yet. Idempotent: a
// second call returns the existing wallet untouched.
func (m *Manager) Initialize(ctx context.Context, accountID string, initialCredits int64) (*Wallet, error) {
	var wallet *Wallet
	err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
		w, err := tx.Wallet(ctx)
		if err == nil {
			wallet = w
			return nil
		}
		if !errors.Is(err, ErrWalletNotFound) {
			return err
		}

		now := m.now()
		w = m.newWallet(accountID, now)
		if err := tx.CreateWallet(ctx, w); err != nil {
			return err
		}

		if initialCredits > 0 {
			pkg := m.newPackage(w, TypeBonus, initialCredits, PriorityBonus, nil, now)
			pkg.GrantReason = "initial credits"
			if err := tx.CreatePackage(ctx, pkg); err != nil {
				return err
			}

			e := m.newEntry(w, TxCredit, initialCredits, w.TotalBalance, now)
			e.CreditType = TypeBonus
			e.SourceType = "package"
			e.SourceID = pkg.ID.String()
			e.Description = "initial credits"
			w.credit(TypeBonus, initialCredits)
			if err := tx.AppendEntry(ctx, e); err != nil {
				return err
			}
			if err := tx.UpdateWallet(ctx, w); err != nil {
				return err
			}
		}

		wallet = w
		return w.CheckInvariant()
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// GrantMonthly performs the account's monthly credit reset. Before the
// scheduled reset time it is a no-op with status not_due. Otherwise any
// remaining monthly credits either roll into the new package (capped at
// maxRollover when allowRollover is set, maxRollover <= 0 means
// uncapped) or are forfeited, a fresh MonthlyGrant package is issued
// expiring at the next reset, and the monthly consumption counter and
// low-balance alert are cleared.
func (m *Manager) GrantMonthly(ctx context.Context, accountID string, amount int64, allowRollover bool, maxRollover int64) (*GrantResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	var result *GrantResult
	err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
		now := m.now()
		w, created, err := m.ensureWallet(ctx, tx, accountID, now)
		if err != nil {
			return err
		}

		// A wallet created by this very call gets its first grant
		// immediately; only existing wallets wait for their reset.
		if !created && now.Before(w.NextMonthlyReset) {
			result = &GrantResult{Status: GrantStatusNotDue, NextReset: w.NextMonthlyReset}
			return nil
		}

		// The superseded lot expires exactly at the reset instant, so an
		// active-only listing would miss it. List everything and match
		// monthly lots not yet flagged, whatever their expiry says.
		pkgs, err := tx.Packages(ctx, false, now)
		if err != nil {
			return err
		}

		var leftover int64
		for i := range pkgs {
			p := &pkgs[i]
			if p.CreditType != TypeMonthlyGrant || p.IsExpired {
				continue
			}
			leftover += p.RemainingAmount
			p.IsExpired = true
			p.ExpiredAt = &now
			p.UpdatedAt = now
			if err := tx.UpdatePackage(ctx, p); err != nil {
				return err
			}
		}

		var rolled int64
		if allowRollover {
			rolled = leftover
			if maxRollover > 0 {
				rolled = min(rolled, maxRollover)
			}
		}
		forfeited := leftover - rolled

		if leftover > 0 {
			e := m.newEntry(w, TxExpire, -leftover, w.TotalBalance, now)
			e.CreditType = TypeMonthlyGrant
			e.SourceType = "monthly_reset"
			e.Description = "monthly credits reset"
			w.debit(TypeMonthlyGrant, leftover)
			if err := tx.AppendEntry(ctx, e); err != nil {
				return err
			}
		}

		nextReset := nextMonthStart(now)
		pkg := m.newPackage(w, TypeMonthlyGrant, amount+rolled, PriorityMonthly, &nextReset, now)
		pkg.GrantReason = "monthly grant"
		if err := tx.CreatePackage(ctx, pkg); err != nil {
			return err
		}

		e := m.newEntry(w, TxCredit, amount, w.TotalBalance, now)
		e.CreditType = TypeMonthlyGrant
		e.SourceType = "package"
		e.SourceID = pkg.ID.String()
		e.Description = "monthly grant"
		w.credit(TypeMonthlyGrant, amount)
		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}

		if rolled > 0 {
			e := m.newEntry(w, TxRollover, rolled, w.TotalBalance, now)
			e.CreditType = TypeMonthlyGrant
			e.SourceType = "package"
			e.SourceID = pkg.ID.String()
			e.Description = "rollover of unused monthly credits"
			w.credit(TypeMonthlyGrant, rolled)
			if err := tx.AppendEntry(ctx, e); err != nil {
				return err
			}
		}

		w.MonthlyConsumed = 0
		w.AlertSent = false
		w.LastMonthlyReset = now
		w.NextMonthlyReset = nextReset
		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}

		result = &GrantResult{
			Status:     GrantStatusGranted,
			Granted:    amount,
			RolledOver: rolled,
			Forfeited:  forfeited,
			NextReset:  nextReset,
			Package:    pkg,
		}
		return w.CheckInvariant()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Purchase deposits paid credits as a priority-3 package. Called by
// the payment webhook layer after a confirmed charge; paymentRef ties
// the package and ledger entry back to the payment.
func (m *Manager) Purchase(ctx context.Context, accountID string, amount int64, price decimal.Decimal, currency string, validDays int, paymentRef string) (*Package, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	if validDays <= 0 {
		validDays = DefaultPurchaseValidDays
	}

	var pkg *Package
	err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
		now := m.now()
		w, _, err := m.ensureWallet(ctx, tx, accountID, now)
		if err != nil {
			return err
		}

		expiresAt := now.AddDate(0, 0, validDays)
		pkg = m.newPackage(w, TypePurchased, amount, PriorityPurchased, &expiresAt, now)
		pkg.PaymentRef = paymentRef
		pkg.PurchasePrice = price
		pkg.Currency = currency
		if err := tx.CreatePackage(ctx, pkg); err != nil {
			return err
		}

		e := m.newEntry(w, TxCredit, amount, w.TotalBalance, now)
		e.CreditType = TypePurchased
		e.SourceType = "payment"
		e.SourceID = paymentRef
		e.Description = "credit purchase"
		w.credit(TypePurchased, amount)
		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}

		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		return w.CheckInvariant()
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// GrantBonus issues free credits: bonus, promotional or refund lots.
// Refunds restore the purchased sub-balance and are consumed at
// purchased priority; everything else sits last in the consumption
// order. validDays <= 0 means the lot never expires.
func (m *Manager) GrantBonus(ctx context.Context, accountID string, amount int64, creditType CreditType, validDays int, reason, grantedBy string) (*Package, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	switch creditType {
	case TypeBonus, TypePromotional, TypeRefund:
	case "":
		creditType = TypeBonus
	default:
		return nil, fmt.Errorf("%w: credit type %q cannot be granted", ErrInvalidAmount, creditType)
	}

	priority := PriorityBonus
	if creditType == TypeRefund {
		priority = PriorityPurchased
	}

	var pkg *Package
	err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
		now := m.now()
		w, _, err := m.ensureWallet(ctx, tx, accountID, now)
		if err != nil {
			return err
		}

		var expiresAt *time.Time
		if validDays > 0 {
			t := now.AddDate(0, 0, validDays)
			expiresAt = &t
		}
		pkg = m.newPackage(w, creditType, amount, priority, expiresAt, now)
		pkg.GrantReason = reason
		pkg.GrantedBy = grantedBy
		if err := tx.CreatePackage(ctx, pkg); err != nil {
			return err
		}

		e := m.newEntry(w, TxCredit, amount, w.TotalBalance, now)
		e.CreditType = creditType
		e.SourceType = "package"
		e.SourceID = pkg.ID.String()
		e.Description = reason
		e.AdminID = grantedBy
		w.credit(creditType, amount)
		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}

		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		return w.CheckInvariant()
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// AdjustCredits applies a manual admin correction. A positive delta is
// added as a non-expiring bonus lot; a negative delta is debited
// through the normal consumption walk without touching the consumption
// counters. Both sides write an AdminAdjustment ledger entry.
func (m *Manager) AdjustCredits(ctx context.Context, accountID string, delta int64, reason, adminID string) (*Wallet, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: zero adjustment", ErrInvalidAmount)
	}

	var wallet *Wallet
	err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
		now := m.now()
		w, _, err := m.ensureWallet(ctx, tx, accountID, now)
		if err != nil {
			return err
		}

		e := m.newEntry(w, TxAdminAdjustment, delta, w.TotalBalance, now)
		e.AdminID = adminID
		e.AdminNotes = reason
		e.Description = "admin adjustment"

		if delta > 0 {
			pkg := m.newPackage(w, TypeBonus, delta, PriorityBonus, nil, now)
			pkg.GrantReason = reason
			pkg.GrantedBy = adminID
			if err := tx.CreatePackage(ctx, pkg); err != nil {
				return err
			}
			e.CreditType = TypeBonus
			e.SourceType = "package"
			e.SourceID = pkg.ID.String()
			w.credit(TypeBonus, delta)
		} else {
			need := -delta
			if w.TotalBalance < need {
				return fmt.Errorf("%w: balance %d, adjustment %d", ErrInsufficientCredits, w.TotalBalance, delta)
			}
			consumed, err := m.consumePackages(ctx, tx, need, now)
			if err != nil {
				return err
			}
			for creditType, taken := range consumed {
				w.debit(creditType, taken)
			}
		}

		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}

		w.UpdatedAt = now
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		wallet = w
		return w.CheckInvariant()
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Debit charges amount against the wallet for a metered feature call.
// Packages are consumed in priority order, wallet counters and the
// matching sub-balances are updated, and one Debit ledger entry is
// written. The whole movement commits or none of it does.
func (m *Manager) Debit(ctx context.Context, accountID string, amount int64, feature FeatureRef, metadata map[string]any) (*DebitResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	var result *DebitResult
	err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
		now := m.now()
		w, _, err := m.ensureWallet(ctx, tx, accountID, now)
		if err != nil {
			return err
		}

		if w.TotalBalance < amount {
			return fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientCredits, w.TotalBalance, amount)
		}

		consumed, err := m.consumePackages(ctx, tx, amount, now)
		if err != nil {
			return err
		}

		e := m.newEntry(w, TxDebit, -amount, w.TotalBalance, now)
		e.FeatureKey = feature.Key
		e.FeatureName = feature.Name
		e.Metadata = metadata
		e.Description = "feature consumption"
		if len(consumed) == 1 {
			for creditType := range consumed {
				e.CreditType = creditType
			}
		}

		for creditType, taken := range consumed {
			w.debit(creditType, taken)
		}
		w.MonthlyConsumed += amount
		w.TotalConsumed += amount
		w.LifetimeConsumed += amount
		w.LastConsumption = &now
		w.UpdatedAt = now

		if err := tx.AppendEntry(ctx, e); err != nil {
			return err
		}
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}

		result = &DebitResult{Charged: amount, Remaining: w.TotalBalance, Entry: e}
		return w.CheckInvariant()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Balance returns the read-only wallet snapshot. A missing wallet
// reads as a zero balance rather than an error.
func (m *Manager) Balance(ctx context.Context, accountID string, includePackages bool) (*Balance, error) {
	w, err := m.store.GetWallet(ctx, accountID)
	if errors.Is(err, ErrWalletNotFound) {
		return &Balance{AccountID: accountID, LowBalance: true}, nil
	}
	if err != nil {
		return nil, err
	}

	now := m.now()
	pkgs, err := m.store.ListPackages(ctx, accountID, true, now)
	if err != nil {
		return nil, err
	}

	b := &Balance{
		AccountID:        accountID,
		Total:            w.TotalBalance,
		Monthly:          w.MonthlyBalance,
		Purchased:        w.PurchasedBalance,
		Bonus:            w.BonusBalance,
		MonthlyConsumed:  w.MonthlyConsumed,
		TotalConsumed:    w.TotalConsumed,
		LifetimeConsumed: w.LifetimeConsumed,
		NextMonthlyReset: w.NextMonthlyReset,
		LowBalance:       w.TotalBalance <= w.LowBalanceThreshold,
		AlertSent:        w.AlertSent,
	}

	for i := range pkgs {
		p := &pkgs[i]
		if p.ExpiresWithin(now, ExpiringSoonWindow) {
			b.ExpiringSoon += p.RemainingAmount
			if b.ExpiringSoonAt == nil || p.ExpiresAt.Before(*b.ExpiringSoonAt) {
				b.ExpiringSoonAt = p.ExpiresAt
			}
		}
	}
	if includePackages {
		b.Packages = pkgs
	}
	return b, nil
}

// History returns the account's ledger, newest first.
func (m *Manager) History(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error) {
	return m.store.ListEntries(ctx, accountID, filter)
}

// MarkAlertSent records that a low-balance alert went out, so the
// account is not alerted again until the balance recovers.
func (m *Manager) MarkAlertSent(ctx context.Context, accountID string) error {
	return m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
		w, err := tx.Wallet(ctx)
		if err != nil {
			return err
		}
		w.AlertSent = true
		w.UpdatedAt = m.now()
		return tx.UpdateWallet(ctx, w)
	})
}

// ExpireDue sweeps packages whose expiry has passed: each one is
// flagged expired, its remaining credits leave the wallet, and an
// Expire ledger entry records the loss. Idempotent: an already flagged
// package is skipped on the next run. Returns the number of packages
// expired.
func (m *Manager) ExpireDue(ctx context.Context) (int, error) {
	now := m.now()
	accounts, err := m.store.AccountsWithExpiredPackages(ctx, now)
	if err != nil {
		return 0, err
	}

	var expired int
	var errs []error
	for _, accountID := range accounts {
		err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
			w, err := tx.Wallet(ctx)
			if err != nil {
				return err
			}
			pkgs, err := tx.Packages(ctx, false, now)
			if err != nil {
				return err
			}

			for i := range pkgs {
				p := &pkgs[i]
				if p.IsExpired || p.RemainingAmount <= 0 || p.ExpiresAt == nil || p.ExpiresAt.After(now) {
					continue
				}

				e := m.newEntry(w, TxExpire, -p.RemainingAmount, w.TotalBalance, now)
				e.CreditType = p.CreditType
				e.SourceType = "package"
				e.SourceID = p.ID.String()
				e.Description = "credits expired"
				w.debit(p.CreditType, p.RemainingAmount)

				p.IsExpired = true
				p.ExpiredAt = &now
				p.UpdatedAt = now

				if err := tx.UpdatePackage(ctx, p); err != nil {
					return err
				}
				if err := tx.AppendEntry(ctx, e); err != nil {
					return err
				}
				expired++
			}

			w.UpdatedAt = now
			if err := tx.UpdateWallet(ctx, w); err != nil {
				return err
			}
			return w.CheckInvariant()
		})
		if err != nil {
			m.log.ErrorContext(ctx, "expiration sweep failed for account",
				slog.String("account_id", accountID),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return expired, errors.Join(errs...)
}

// RefreshPriorities bumps active packages expiring within the
// expiring-soon window to priority 2 so they are consumed before
// longer-lived lots. Monthly grants already sit at priority 1 and are
// left alone. Returns the number of packages bumped.
func (m *Manager) RefreshPriorities(ctx context.Context) (int, error) {
	now := m.now()
	until := now.Add(ExpiringSoonWindow)
	accounts, err := m.store.AccountsWithPackagesExpiringBefore(ctx, now, until)
	if err != nil {
		return 0, err
	}

	var bumped int
	var errs []error
	for _, accountID := range accounts {
		err := m.store.WithWalletTx(ctx, accountID, func(tx Tx) error {
			pkgs, err := tx.Packages(ctx, true, now)
			if err != nil {
				return err
			}
			for i := range pkgs {
				p := &pkgs[i]
				if p.Priority <= PriorityExpiring || !p.ExpiresWithin(now, ExpiringSoonWindow) {
					continue
				}
				p.Priority = PriorityExpiring
				p.UpdatedAt = now
				if err := tx.UpdatePackage(ctx, p); err != nil {
					return err
				}
				bumped++
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return bumped, errors.Join(errs...)
}

// VerifyLedger replays the account's full ledger in chronological
// order and checks that every entry balances and that the final
// balance matches the wallet. Audit helper; reads only.
func (m *Manager) VerifyLedger(ctx context.Context, accountID string) error {
	w, err := m.store.GetWallet(ctx, accountID)
	if err != nil {
		return err
	}

	entries, err := m.store.ListEntries(ctx, accountID, EntryFilter{Limit: -1})
	if err != nil {
		return err
	}

	// Listing is newest-first; replay oldest-first.
	balance := int64(0)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.BalanceAfter != e.BalanceBefore+e.Amount {
			return fmt.Errorf("%w: entry %s: %d + %d != %d",
				ErrLedgerInconsistent, e.ID, e.BalanceBefore, e.Amount, e.BalanceAfter)
		}
		if e.BalanceBefore != balance {
			return fmt.Errorf("%w: entry %s: expected balance before %d, got %d",
				ErrLedgerInconsistent, e.ID, balance, e.BalanceBefore)
		}
		balance = e.BalanceAfter
	}
	if balance != w.TotalBalance {
		return fmt.Errorf("%w: replay ends at %d, wallet holds %d",
			ErrLedgerInconsistent, balance, w.TotalBalance)
	}
	return nil
}

// consumePackages walks the active packages in consumption order and
// deducts amount across them, returning how much each credit type
// contributed. The caller has already checked the wallet balance; a
// shortfall here means packages and wallet disagree.
func (m *Manager) consumePackages(ctx context.Context, tx Tx, amount int64, now time.Time) (map[CreditType]int64, error) {
	pkgs, err := tx.Packages(ctx, true, now)
	if err != nil {
		return nil, err
	}

	remaining := amount
	consumed := make(map[CreditType]int64)
	for i := range pkgs {
		if remaining == 0 {
			break
		}
		p := &pkgs[i]

		take := min(p.RemainingAmount, remaining)
		p.RemainingAmount -= take
		p.ConsumedAmount += take
		p.UpdatedAt = now
		if err := tx.UpdatePackage(ctx, p); err != nil {
			return nil, err
		}

		consumed[p.CreditType] += take
		remaining -= take
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: packages cover %d of %d", ErrInsufficientCredits, amount-remaining, amount)
	}
	return consumed, nil
}

// ensureWallet loads the wallet, lazily creating a zero-balance one so
// brand-new accounts never see a not-found error. The created flag
// tells callers the wallet did not exist before this unit of work.
func (m *Manager) ensureWallet(ctx context.Context, tx Tx, accountID string, now time.Time) (*Wallet, bool, error) {
	w, err := tx.Wallet(ctx)
	if err == nil {
		return w, false, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, false, err
	}

	w = m.newWallet(accountID, now)
	if err := tx.CreateWallet(ctx, w); err != nil {
		return nil, false, err
	}
	return w, true, nil
}

func (m *Manager) newWallet(accountID string, now time.Time) *Wallet {
	return &Wallet{
		ID:                  uuid.New(),
		AccountID:           accountID,
		LastMonthlyReset:    now,
		NextMonthlyReset:    nextMonthStart(now),
		LowBalanceThreshold: m.lowBalanceThreshold,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (m *Manager) newPackage(w *Wallet, creditType CreditType, amount int64, priority int, expiresAt *time.Time, now time.Time) *Package {
	return &Package{
		ID:              uuid.New(),
		WalletID:        w.ID,
		AccountID:       w.AccountID,
		CreditType:      creditType,
		OriginalAmount:  amount,
		RemainingAmount: amount,
		Priority:        priority,
		ExpiresAt:       expiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// newEntry builds a ledger entry with the balance snapshot taken
// before the movement is applied to the wallet.
func (m *Manager) newEntry(w *Wallet, txType TransactionType, amount, balanceBefore int64, now time.Time) *Entry {
	return &Entry{
		ID:              uuid.New(),
		WalletID:        w.ID,
		AccountID:       w.AccountID,
		TransactionType: txType,
		Amount:          amount,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    balanceBefore + amount,
		CreatedAt:       now,
	}
}

// nextMonthStart returns midnight on the first day of the month after t.
func nextMonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}
