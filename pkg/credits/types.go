package credits

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditType classifies where a credit lot came from.
type CreditType string

const (
	TypeMonthlyGrant CreditType = "monthly_grant"
	TypePurchased    CreditType = "purchased"
	TypeBonus        CreditType = "bonus"
	TypeRefund       CreditType = "refund"
	TypePromotional  CreditType = "promotional"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxCredit          TransactionType = "credit"
	TxDebit           TransactionType = "debit"
	TxExpire          TransactionType = "expire"
	TxRollover        TransactionType = "rollover"
	TxAdminAdjustment TransactionType = "admin_adjustment"
)

// Consumption priorities, lower is consumed first.
const (
	PriorityMonthly   = 1
	PriorityExpiring  = 2
	PriorityPurchased = 3
	PriorityBonus     = 4
)

// ExpiringSoonWindow is how far ahead a package counts as "expiring
// soon" for priority bumps and balance snapshots.
const ExpiringSoonWindow = 7 * 24 * time.Hour

// DefaultLowBalanceThreshold triggers low-balance alerts when the
// total balance drops to or below it.
const DefaultLowBalanceThreshold int64 = 100

// Wallet is the per-account balance aggregate. Sub-balances partition
// the total by credit origin; consumption counters only ever grow.
type Wallet struct {
	ID                  uuid.UUID
	AccountID           string
	TotalBalance        int64
	MonthlyBalance      int64
	PurchasedBalance    int64
	BonusBalance        int64
	MonthlyConsumed     int64
	TotalConsumed       int64
	LifetimeConsumed    int64
	LastMonthlyReset    time.Time
	NextMonthlyReset    time.Time
	LastConsumption     *time.Time
	LowBalanceThreshold int64
	AlertSent           bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CheckInvariant verifies the sub-balance partition of the total.
func (w *Wallet) CheckInvariant() error {
	if w.TotalBalance != w.MonthlyBalance+w.PurchasedBalance+w.BonusBalance {
		return fmt.Errorf("%w: total %d != monthly %d + purchased %d + bonus %d",
			ErrWalletInvariant, w.TotalBalance, w.MonthlyBalance, w.PurchasedBalance, w.BonusBalance)
	}
	return nil
}

// subBalance returns a pointer to the sub-balance a credit type
// belongs to. Refunds restore purchased credits.
func (w *Wallet) subBalance(t CreditType) *int64 {
	switch t {
	case TypeMonthlyGrant:
		return &w.MonthlyBalance
	case TypePurchased, TypeRefund:
		return &w.PurchasedBalance
	default:
		return &w.BonusBalance
	}
}

// credit adds amount to the wallet total and the type's sub-balance,
// clearing a pending low-balance alert once the balance recovers.
func (w *Wallet) credit(t CreditType, amount int64) {
	*w.subBalance(t) += amount
	w.TotalBalance += amount
	if w.AlertSent && w.TotalBalance > w.LowBalanceThreshold {
		w.AlertSent = false
	}
}

// debit removes amount from the wallet total and the type's sub-balance.
func (w *Wallet) debit(t CreditType, amount int64) {
	*w.subBalance(t) -= amount
	w.TotalBalance -= amount
}

// Package is one expiring credit lot inside a wallet.
type Package struct {
	ID              uuid.UUID
	WalletID        uuid.UUID
	AccountID       string
	CreditType      CreditType
	OriginalAmount  int64
	RemainingAmount int64
	ConsumedAmount  int64
	Priority        int
	ExpiresAt       *time.Time
	IsExpired       bool
	ExpiredAt       *time.Time
	PaymentRef      string
	PurchasePrice   decimal.Decimal
	Currency        string
	GrantedBy       string
	GrantReason     string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Active reports whether the package can still be consumed from. A
// fully consumed package is inactive but not expired.
func (p *Package) Active(now time.Time) bool {
	if p.IsExpired || p.RemainingAmount <= 0 {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// ExpiresWithin reports whether the package expires inside d from now.
func (p *Package) ExpiresWithin(now time.Time, d time.Duration) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return p.ExpiresAt.After(now) && !p.ExpiresAt.After(now.Add(d))
}

// Entry is one immutable ledger record. Amount is signed: positive for
// credit-like movements, negative for debits and expirations, and
// BalanceAfter must equal BalanceBefore + Amount.
type Entry struct {
	ID              uuid.UUID
	WalletID        uuid.UUID
	AccountID       string
	TransactionType TransactionType
	Amount          int64
	BalanceBefore   int64
	BalanceAfter    int64
	CreditType      CreditType
	FeatureKey      string
	FeatureName     string
	SourceType      string
	SourceID        string
	AdminID         string
	AdminNotes      string
	Description     string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// EntryFilter narrows a ledger listing. Zero values mean "no filter";
// a zero Limit falls back to DefaultHistoryLimit.
type EntryFilter struct {
	From   *time.Time
	To     *time.Time
	Types  []TransactionType
	Limit  int
	Offset int
}

// DefaultHistoryLimit caps an unbounded ledger listing.
const DefaultHistoryLimit = 50

// Balance is the read-only wallet snapshot exposed to dashboards.
type Balance struct {
	AccountID        string
	Total            int64
	Monthly          int64
	Purchased        int64
	Bonus            int64
	MonthlyConsumed  int64
	TotalConsumed    int64
	LifetimeConsumed int64
	NextMonthlyReset time.Time
	ExpiringSoon     int64
	ExpiringSoonAt   *time.Time
	LowBalance       bool
	AlertSent        bool
	Packages         []Package
}

// GrantStatus is the outcome class of a monthly grant attempt.
type GrantStatus string

const (
	GrantStatusGranted GrantStatus = "granted"
	GrantStatusNotDue  GrantStatus = "not_due"
)

// GrantResult describes what a monthly grant did.
type GrantResult struct {
	Status     GrantStatus
	Granted    int64
	RolledOver int64
	Forfeited  int64
	NextReset  time.Time
	Package    *Package
}

// DebitResult describes a committed debit.
type DebitResult struct {
	Charged   int64
	Remaining int64
	Entry     *Entry
}

// FeatureRef identifies the billable feature a debit pays for.
type FeatureRef struct {
	Key  string
	Name string
}
