package credits

import (
	"context"
	"time"
)

// Tx is the unit of work handed to WithWalletTx callbacks. All reads
// and writes inside it observe and mutate a single wallet's state;
// nothing is visible to other callers until the callback returns nil.
type Tx interface {
	// Wallet returns the wallet under mutation, ErrWalletNotFound when
	// the account has none yet.
	Wallet(ctx context.Context) (*Wallet, error)

	// CreateWallet inserts the wallet, ErrConcurrencyConflict when a
	// concurrent unit of work created it first; retry and re-read.
	CreateWallet(ctx context.Context, w *Wallet) error
	UpdateWallet(ctx context.Context, w *Wallet) error

	// Packages lists the wallet's packages, ordered for consumption:
	// priority ascending, then soonest expiry. With activeOnly only
	// unexpired packages with credits left as of now are returned.
	Packages(ctx context.Context, activeOnly bool, now time.Time) ([]Package, error)
	CreatePackage(ctx context.Context, p *Package) error
	UpdatePackage(ctx context.Context, p *Package) error

	// AppendEntry writes one immutable ledger record.
	AppendEntry(ctx context.Context, e *Entry) error
}

// Store persists wallets, packages and the ledger. Mutations happen
// only through WithWalletTx, which serializes concurrent work against
// the same wallet; the remaining methods are read-only.
type Store interface {
	// WithWalletTx runs fn as an atomic, per-wallet-serialized unit of
	// work. fn returning an error rolls everything back.
	WithWalletTx(ctx context.Context, accountID string, fn func(tx Tx) error) error

	GetWallet(ctx context.Context, accountID string) (*Wallet, error)
	ListPackages(ctx context.Context, accountID string, activeOnly bool, now time.Time) ([]Package, error)

	// ListEntries returns ledger entries in reverse-chronological order.
	ListEntries(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error)

	// AccountsWithExpiredPackages lists accounts holding unexpired
	// packages whose expiry has passed. Feeds the expiration sweep.
	AccountsWithExpiredPackages(ctx context.Context, now time.Time) ([]string, error)

	// AccountsWithPackagesExpiringBefore lists accounts with active
	// packages expiring in (now, until]. Feeds priority refresh and
	// expiring-soon warnings.
	AccountsWithPackagesExpiringBefore(ctx context.Context, now, until time.Time) ([]string, error)

	// AccountsDueMonthlyReset lists accounts whose monthly reset is due.
	AccountsDueMonthlyReset(ctx context.Context, now time.Time) ([]string, error)

	// LowBalanceAccounts lists accounts at or under their alert
	// threshold that have not been alerted yet.
	LowBalanceAccounts(ctx context.Context) ([]string, error)
}
