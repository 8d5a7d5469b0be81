package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists wallets, packages and the ledger in Postgres.
// WithWalletTx serializes concurrent work against the same wallet with
// a row lock (SELECT ... FOR UPDATE) held for the whole unit of work.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) WithWalletTx(ctx context.Context, accountID string, fn func(tx Tx) error) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Join(ErrTxFailure, err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&pgTx{q: dbTx, accountID: accountID}); err != nil {
		return err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return errors.Join(ErrTxFailure, err)
	}
	return nil
}

func (s *PostgresStore) GetWallet(ctx context.Context, accountID string) (*Wallet, error) {
	return selectWallet(ctx, s.pool, accountID, false)
}

func (s *PostgresStore) ListPackages(ctx context.Context, accountID string, activeOnly bool, now time.Time) ([]Package, error) {
	return selectPackages(ctx, s.pool, accountID, activeOnly, now)
}

func (s *PostgresStore) ListEntries(ctx context.Context, accountID string, filter EntryFilter) ([]Entry, error) {
	query := `
		SELECT id, wallet_id, account_id, transaction_type, amount,
		       balance_before, balance_after, credit_type,
		       feature_key, feature_name, source_type, source_id,
		       admin_id, admin_notes, description, metadata, created_at
		FROM credit_ledger
		WHERE account_id = $1`
	args := []any{accountID}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	if len(filter.Types) > 0 {
		args = append(args, filter.Types)
		query += fmt.Sprintf(" AND transaction_type = ANY($%d)", len(args))
	}

	query += " ORDER BY seq DESC"

	limit := filter.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			metadata []byte
		)
		if err := rows.Scan(
			&e.ID, &e.WalletID, &e.AccountID, &e.TransactionType, &e.Amount,
			&e.BalanceBefore, &e.BalanceAfter, &e.CreditType,
			&e.FeatureKey, &e.FeatureName, &e.SourceType, &e.SourceID,
			&e.AdminID, &e.AdminNotes, &e.Description, &metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode ledger metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) AccountsWithExpiredPackages(ctx context.Context, now time.Time) ([]string, error) {
	return s.accountIDs(ctx, `
		SELECT DISTINCT account_id FROM credit_packages
		WHERE NOT is_expired AND remaining_amount > 0
		  AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY account_id`, now)
}

func (s *PostgresStore) AccountsWithPackagesExpiringBefore(ctx context.Context, now, until time.Time) ([]string, error) {
	return s.accountIDs(ctx, `
		SELECT DISTINCT account_id FROM credit_packages
		WHERE NOT is_expired AND remaining_amount > 0
		  AND expires_at IS NOT NULL AND expires_at > $1 AND expires_at <= $2
		ORDER BY account_id`, now, until)
}

func (s *PostgresStore) AccountsDueMonthlyReset(ctx context.Context, now time.Time) ([]string, error) {
	return s.accountIDs(ctx, `
		SELECT account_id FROM wallets
		WHERE next_monthly_reset <= $1
		ORDER BY account_id`, now)
}

func (s *PostgresStore) LowBalanceAccounts(ctx context.Context) ([]string, error) {
	return s.accountIDs(ctx, `
		SELECT account_id FROM wallets
		WHERE NOT alert_sent AND total_balance <= low_balance_threshold
		ORDER BY account_id`)
}

func (s *PostgresStore) accountIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// pgTx implements Tx on an open database transaction.
type pgTx struct {
	q         querier
	accountID string
}

func (t *pgTx) Wallet(ctx context.Context) (*Wallet, error) {
	return selectWallet(ctx, t.q, t.accountID, true)
}

func (t *pgTx) CreateWallet(ctx context.Context, w *Wallet) error {
	// Two first-touch units of work can race here: neither found a row
	// to lock, both insert. The loser reports the retryable conflict
	// instead of a raw unique violation.
	tag, err := t.q.Exec(ctx, `
		INSERT INTO wallets (
			id, account_id, total_balance, monthly_balance, purchased_balance,
			bonus_balance, monthly_consumed, total_consumed, lifetime_consumed,
			last_monthly_reset, next_monthly_reset, last_consumption,
			low_balance_threshold, alert_sent, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (account_id) DO NOTHING`,
		w.ID, w.AccountID, w.TotalBalance, w.MonthlyBalance, w.PurchasedBalance,
		w.BonusBalance, w.MonthlyConsumed, w.TotalConsumed, w.LifetimeConsumed,
		w.LastMonthlyReset, w.NextMonthlyReset, w.LastConsumption,
		w.LowBalanceThreshold, w.AlertSent, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrencyConflict
	}
	return nil
}

func (t *pgTx) UpdateWallet(ctx context.Context, w *Wallet) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE wallets SET
			total_balance = $2, monthly_balance = $3, purchased_balance = $4,
			bonus_balance = $5, monthly_consumed = $6, total_consumed = $7,
			lifetime_consumed = $8, last_monthly_reset = $9,
			next_monthly_reset = $10, last_consumption = $11,
			low_balance_threshold = $12, alert_sent = $13, updated_at = $14
		WHERE id = $1`,
		w.ID, w.TotalBalance, w.MonthlyBalance, w.PurchasedBalance,
		w.BonusBalance, w.MonthlyConsumed, w.TotalConsumed,
		w.LifetimeConsumed, w.LastMonthlyReset,
		w.NextMonthlyReset, w.LastConsumption,
		w.LowBalanceThreshold, w.AlertSent, w.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (t *pgTx) Packages(ctx context.Context, activeOnly bool, now time.Time) ([]Package, error) {
	return selectPackages(ctx, t.q, t.accountID, activeOnly, now)
}

func (t *pgTx) CreatePackage(ctx context.Context, p *Package) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO credit_packages (
			id, wallet_id, account_id, credit_type, original_amount,
			remaining_amount, consumed_amount, priority, expires_at,
			is_expired, expired_at, payment_ref, purchase_price, currency,
			granted_by, grant_reason, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		p.ID, p.WalletID, p.AccountID, p.CreditType, p.OriginalAmount,
		p.RemainingAmount, p.ConsumedAmount, p.Priority, p.ExpiresAt,
		p.IsExpired, p.ExpiredAt, p.PaymentRef, p.PurchasePrice, p.Currency,
		p.GrantedBy, p.GrantReason, p.Notes, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *pgTx) UpdatePackage(ctx context.Context, p *Package) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE credit_packages SET
			remaining_amount = $2, consumed_amount = $3, priority = $4,
			is_expired = $5, expired_at = $6, notes = $7, updated_at = $8
		WHERE id = $1`,
		p.ID, p.RemainingAmount, p.ConsumedAmount, p.Priority,
		p.IsExpired, p.ExpiredAt, p.Notes, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPackageNotFound
	}
	return nil
}

func (t *pgTx) AppendEntry(ctx context.Context, e *Entry) error {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode ledger metadata: %w", err)
		}
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO credit_ledger (
			id, wallet_id, account_id, transaction_type, amount,
			balance_before, balance_after, credit_type, feature_key,
			feature_name, source_type, source_id, admin_id, admin_notes,
			description, metadata, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		e.ID, e.WalletID, e.AccountID, e.TransactionType, e.Amount,
		e.BalanceBefore, e.BalanceAfter, e.CreditType, e.FeatureKey,
		e.FeatureName, e.SourceType, e.SourceID, e.AdminID, e.AdminNotes,
		e.Description, metadata, e.CreatedAt)
	return err
}

func selectWallet(ctx context.Context, q querier, accountID string, forUpdate bool) (*Wallet, error) {
	query := `
		SELECT id, account_id, total_balance, monthly_balance,
		       purchased_balance, bonus_balance, monthly_consumed,
		       total_consumed, lifetime_consumed, last_monthly_reset,
		       next_monthly_reset, last_consumption, low_balance_threshold,
		       alert_sent, created_at, updated_at
		FROM wallets
		WHERE account_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var w Wallet
	err := q.QueryRow(ctx, query, accountID).Scan(
		&w.ID, &w.AccountID, &w.TotalBalance, &w.MonthlyBalance,
		&w.PurchasedBalance, &w.BonusBalance, &w.MonthlyConsumed,
		&w.TotalConsumed, &w.LifetimeConsumed, &w.LastMonthlyReset,
		&w.NextMonthlyReset, &w.LastConsumption, &w.LowBalanceThreshold,
		&w.AlertSent, &w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func selectPackages(ctx context.Context, q querier, accountID string, activeOnly bool, now time.Time) ([]Package, error) {
	query := `
		SELECT id, wallet_id, account_id, credit_type, original_amount,
		       remaining_amount, consumed_amount, priority, expires_at,
		       is_expired, expired_at, payment_ref, purchase_price, currency,
		       granted_by, grant_reason, notes, created_at, updated_at
		FROM credit_packages
		WHERE account_id = $1`
	args := []any{accountID}
	if activeOnly {
		args = append(args, now)
		query += `
		  AND NOT is_expired AND remaining_amount > 0
		  AND (expires_at IS NULL OR expires_at > $2)`
	}
	query += `
		ORDER BY priority, expires_at NULLS LAST, created_at`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pkgs []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(
			&p.ID, &p.WalletID, &p.AccountID, &p.CreditType, &p.OriginalAmount,
			&p.RemainingAmount, &p.ConsumedAmount, &p.Priority, &p.ExpiresAt,
			&p.IsExpired, &p.ExpiredAt, &p.PaymentRef, &p.PurchasePrice, &p.Currency,
			&p.GrantedBy, &p.GrantReason, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		pkgs = append(pkgs, p)
	}
	return pkgs, rows.Err()
}
