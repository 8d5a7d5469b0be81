package credits

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node use.
// Wallet serialization is a per-account mutex held for the duration of
// the unit of work; writes are staged on copies and published only
// when the callback succeeds.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*accountState
}

type accountState struct {
	mu       sync.Mutex
	wallet   *Wallet
	packages map[uuid.UUID]*Package
	entries  []*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*accountState)}
}

func (s *MemoryStore) state(accountID string) *accountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.accounts[accountID]
	if !ok {
		st = &accountState{packages: make(map[uuid.UUID]*Package)}
		s.accounts[accountID] = st
	}
	return st
}

func (s *MemoryStore) WithWalletTx(ctx context.Context, accountID string, fn func(tx Tx) error) error {
	st := s.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	tx := &memTx{state: st}
	if st.wallet != nil {
		w := *st.wallet
		tx.wallet = &w
	}
	tx.packages = make(map[uuid.UUID]*Package, len(st.packages))
	for id, p := range st.packages {
		cp := *p
		tx.packages[id] = &cp
	}

	if err := fn(tx); err != nil {
		return err
	}

	if tx.wallet != nil {
		w := *tx.wallet
		st.wallet = &w
	}
	st.packages = tx.packages
	st.entries = append(st.entries, tx.entries...)
	return nil
}

func (s *MemoryStore) GetWallet(ctx context.Context, accountID string) (*Wallet, error) {
	st := s.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.wallet == nil {
		return nil, ErrWalletNotFound
	}
	w := *st.wallet
	return &w, nil
}

func (s *MemoryStore) ListPackages(ctx context.Context, accountID string, activeOnly bool, now time.Time) ([]Package, error) {
	st := s.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return collectPackages(st.packages, activeOnly, now), nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error) {
	st := s.state(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Append order is chronological; walk backwards for newest-first so
	// entries written at the same instant keep their relative order.
	matched := make([]Entry, 0, len(st.entries))
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := st.entries[i]
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, e.TransactionType) {
			continue
		}
		matched = append(matched, *e)
	}

	// A negative limit disables pagination for full-ledger audits.
	limit := filter.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 {
		limit = len(matched)
	}
	if filter.Offset >= len(matched) {
		return []Entry{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) AccountsWithExpiredPackages(ctx context.Context, now time.Time) ([]string, error) {
	return s.scan(func(st *accountState) bool {
		for _, p := range st.packages {
			if !p.IsExpired && p.RemainingAmount > 0 && p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
				return true
			}
		}
		return false
	})
}

func (s *MemoryStore) AccountsWithPackagesExpiringBefore(ctx context.Context, now, until time.Time) ([]string, error) {
	return s.scan(func(st *accountState) bool {
		for _, p := range st.packages {
			if p.Active(now) && p.ExpiresAt != nil && !p.ExpiresAt.After(until) {
				return true
			}
		}
		return false
	})
}

func (s *MemoryStore) AccountsDueMonthlyReset(ctx context.Context, now time.Time) ([]string, error) {
	return s.scan(func(st *accountState) bool {
		return st.wallet != nil && !st.wallet.NextMonthlyReset.After(now)
	})
}

func (s *MemoryStore) LowBalanceAccounts(ctx context.Context) ([]string, error) {
	return s.scan(func(st *accountState) bool {
		w := st.wallet
		return w != nil && !w.AlertSent && w.TotalBalance <= w.LowBalanceThreshold
	})
}

func (s *MemoryStore) scan(match func(*accountState) bool) ([]string, error) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.accounts))
	states := make(map[string]*accountState, len(s.accounts))
	maps.Copy(states, s.accounts)
	s.mu.Unlock()

	for id, st := range states {
		st.mu.Lock()
		ok := match(st)
		st.mu.Unlock()
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// memTx stages all writes; MemoryStore.WithWalletTx publishes them on
// success.
type memTx struct {
	state    *accountState
	wallet   *Wallet
	packages map[uuid.UUID]*Package
	entries  []*Entry
}

func (t *memTx) Wallet(ctx context.Context) (*Wallet, error) {
	if t.wallet == nil {
		return nil, ErrWalletNotFound
	}
	return t.wallet, nil
}

func (t *memTx) CreateWallet(ctx context.Context, w *Wallet) error {
	if t.wallet != nil {
		return ErrConcurrencyConflict
	}
	t.wallet = w
	return nil
}

func (t *memTx) UpdateWallet(ctx context.Context, w *Wallet) error {
	if t.wallet == nil {
		return ErrWalletNotFound
	}
	t.wallet = w
	return nil
}

func (t *memTx) Packages(ctx context.Context, activeOnly bool, now time.Time) ([]Package, error) {
	return collectPackages(t.packages, activeOnly, now), nil
}

func (t *memTx) CreatePackage(ctx context.Context, p *Package) error {
	cp := *p
	t.packages[p.ID] = &cp
	return nil
}

func (t *memTx) UpdatePackage(ctx context.Context, p *Package) error {
	if _, ok := t.packages[p.ID]; !ok {
		return ErrPackageNotFound
	}
	cp := *p
	t.packages[p.ID] = &cp
	return nil
}

func (t *memTx) AppendEntry(ctx context.Context, e *Entry) error {
	cp := *e
	t.entries = append(t.entries, &cp)
	return nil
}

func collectPackages(src map[uuid.UUID]*Package, activeOnly bool, now time.Time) []Package {
	out := make([]Package, 0, len(src))
	for _, p := range src {
		if activeOnly && !p.Active(now) {
			continue
		}
		out = append(out, *p)
	}
	sortPackages(out)
	return out
}

// sortPackages orders lots for consumption: priority ascending, then
// soonest expiry, packages without expiry last.
func sortPackages(pkgs []Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		a, b := pkgs[i], pkgs[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		case a.ExpiresAt == nil:
			return false
		case b.ExpiresAt == nil:
			return true
		default:
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
	})
}

func containsType(types []TransactionType, t TransactionType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
