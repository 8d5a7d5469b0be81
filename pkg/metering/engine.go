package metering

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/meterkit/pkg/catalog"
	"github.com/dmitrymomot/meterkit/pkg/credits"
	"github.com/dmitrymomot/meterkit/pkg/ratelimit"
)

// Engine authorizes metered requests. It is the only component that
// combines the feature catalog, the rate limiter and the credit wallet;
// request workers share one Engine.
type Engine struct {
	catalog  *catalog.Catalog
	limiter  *ratelimit.Limiter
	wallet   *credits.Manager
	accounts AccountResolver
	log      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAccountResolver attaches the role/plan lookup collaborator.
// Without one, every caller is treated as a regular user on the
// default plan.
func WithAccountResolver(r AccountResolver) EngineOption {
	return func(e *Engine) { e.accounts = r }
}

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine wires the consumption engine.
func NewEngine(cat *catalog.Catalog, limiter *ratelimit.Limiter, wallet *credits.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: cat,
		limiter: limiter,
		wallet:  wallet,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize decides whether one metered call may proceed and, unless
// CheckOnly is set, charges for it.
//
// The order of operations protects both sides of the contract: the
// rate limiter is consulted before any charge so a throttled request
// costs nothing, and the limiter's counters are only advanced after
// the debit commits so an underfunded request consumes no quota.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) (*Decision, error) {
	if req.AccountID == "" {
		return nil, ErrMissingAccount
	}
	if req.FeatureKey == "" {
		return nil, ErrMissingFeature
	}

	account, err := e.resolveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	feature, cost, known := e.resolveCost(req, account)

	subject := ratelimit.Subject{
		AccountID:      req.AccountID,
		CredentialID:   req.CredentialID,
		OrganizationID: account.OrganizationID,
		FeatureKey:     req.FeatureKey,
		Plan:           account.Plan,
	}

	var caps ratelimit.Limits
	throughputExempt := false
	if known {
		caps = featureCaps(feature, account.Plan)
		throughputExempt = feature.ExemptFromThroughput(account.Role)
	}

	// Pre-charge rate limit gate: peek only, a rejection here must not
	// move any counter.
	var rl ratelimit.Result
	if !throughputExempt {
		rl, err = e.limiter.Check(ctx, subject, caps)
		if err != nil {
			return nil, err
		}
		if !rl.Allowed {
			return quotaExceeded(rl), nil
		}
	}

	if req.CheckOnly {
		return e.preview(ctx, req.AccountID, cost, rl)
	}

	decision := &Decision{
		Allowed:   true,
		Reason:    ReasonOK,
		Exempt:    known && feature.ExemptFromCost(account.Role) && cost == 0,
		RateLimit: rl.Windows,
	}

	if cost > 0 {
		result, err := e.wallet.Debit(ctx, req.AccountID, int64(cost),
			credits.FeatureRef{Key: req.FeatureKey, Name: feature.Name}, req.Metadata)
		if errors.Is(err, credits.ErrInsufficientCredits) {
			balance, berr := e.wallet.Balance(ctx, req.AccountID, false)
			if berr != nil {
				return nil, berr
			}
			return &Decision{
				Reason:           ReasonInsufficientCredits,
				RemainingBalance: balance.Total,
				RateLimit:        rl.Windows,
			}, nil
		}
		if err != nil {
			return nil, err
		}
		decision.CreditsCharged = result.Charged
		decision.RemainingBalance = result.Remaining
	} else {
		balance, err := e.wallet.Balance(ctx, req.AccountID, false)
		if err != nil {
			return nil, err
		}
		decision.RemainingBalance = balance.Total
	}

	// Quota is consumed only now that the charge is committed. When a
	// concurrent burst fills the window between the peek and this
	// increment, the charged request stays authorized: committed means
	// committed, the counters simply stay saturated.
	if !throughputExempt {
		consumed, err := e.limiter.Consume(ctx, subject, caps, 1)
		if err != nil {
			return nil, err
		}
		if !consumed.Allowed {
			e.log.WarnContext(ctx, "window filled between check and consume, request stays authorized",
				slog.String("account_id", req.AccountID),
				slog.String("feature", req.FeatureKey))
		}
		decision.RateLimit = consumed.Windows
	}

	return decision, nil
}

// preview reports the would-be outcome of a charge without mutating
// anything.
func (e *Engine) preview(ctx context.Context, accountID string, cost int, rl ratelimit.Result) (*Decision, error) {
	balance, err := e.wallet.Balance(ctx, accountID, false)
	if err != nil {
		return nil, err
	}
	if cost > 0 && balance.Total < int64(cost) {
		return &Decision{
			Reason:           ReasonInsufficientCredits,
			RemainingBalance: balance.Total,
			RateLimit:        rl.Windows,
		}, nil
	}
	return &Decision{
		Allowed:          true,
		Reason:           ReasonOK,
		CreditsCharged:   int64(cost),
		RemainingBalance: balance.Total,
		RateLimit:        rl.Windows,
	}, nil
}

// resolveCost resolves the feature definition and the effective credit
// cost. Unknown or inactive features fall back to the explicit amount
// or a single credit, with modifiers and exemptions skipped.
func (e *Engine) resolveCost(req AuthorizeRequest, account Account) (catalog.Feature, int, bool) {
	feature, err := e.catalog.Feature(req.FeatureKey)
	if err != nil {
		return catalog.Feature{}, catalog.FallbackCost(req.RequestedAmount), false
	}

	if feature.ExemptFromCost(account.Role) {
		return feature, 0, true
	}
	return feature, catalog.EffectiveCost(feature, account.Plan, req.RequestedAmount, req.Metadata), true
}

func (e *Engine) resolveAccount(ctx context.Context, accountID string) (Account, error) {
	if e.accounts == nil {
		return Account{ID: accountID, Role: catalog.RoleUser, Plan: ratelimit.DefaultPlan}, nil
	}
	account, err := e.accounts.Resolve(ctx, accountID)
	if err != nil {
		return Account{}, errors.Join(ErrAccountResolution, err)
	}
	if account.Role == "" {
		account.Role = catalog.RoleUser
	}
	if account.Plan == "" {
		account.Plan = ratelimit.DefaultPlan
	}
	return account, nil
}

// DepositPurchased adds paid credits. Entry point for the payment
// webhook layer after a confirmed charge.
func (e *Engine) DepositPurchased(ctx context.Context, accountID string, amount int64, price decimal.Decimal, currency string, validDays int, paymentRef string) (*credits.Package, error) {
	return e.wallet.Purchase(ctx, accountID, amount, price, currency, validDays, paymentRef)
}

// GrantBonus adds free credits. Entry point for the administrative layer.
func (e *Engine) GrantBonus(ctx context.Context, accountID string, amount int64, creditType credits.CreditType, validDays int, reason, grantedBy string) (*credits.Package, error) {
	return e.wallet.GrantBonus(ctx, accountID, amount, creditType, validDays, reason, grantedBy)
}

// AdjustCredits applies a manual admin correction.
func (e *Engine) AdjustCredits(ctx context.Context, accountID string, delta int64, reason, adminID string) (*credits.Wallet, error) {
	return e.wallet.AdjustCredits(ctx, accountID, delta, reason, adminID)
}

// Balance exposes the wallet snapshot for dashboards.
func (e *Engine) Balance(ctx context.Context, accountID string, includePackages bool) (*credits.Balance, error) {
	return e.wallet.Balance(ctx, accountID, includePackages)
}

// History exposes the paginated ledger for reports and audit views.
func (e *Engine) History(ctx context.Context, accountID string, filter credits.EntryFilter) ([]credits.Entry, error) {
	return e.wallet.History(ctx, accountID, filter)
}

func quotaExceeded(rl ratelimit.Result) *Decision {
	return &Decision{
		Reason:     ReasonQuotaExceeded,
		RateLimit:  rl.Windows,
		RetryAfter: rl.RetryAfter(),
	}
}

// featureCaps translates a feature's per-window caps, honoring plan
// overrides, into limiter input.
func featureCaps(f catalog.Feature, plan string) ratelimit.Limits {
	rpm, rph, rpd, rpMonthly := f.RPM, f.RPH, f.RPD, f.RPMonthly
	if o, ok := f.PlanOverrides[plan]; ok {
		if o.RPM != nil {
			rpm = *o.RPM
		}
		if o.RPH != nil {
			rph = *o.RPH
		}
		if o.RPD != nil {
			rpd = *o.RPD
		}
		if o.RPMonthly != nil {
			rpMonthly = *o.RPMonthly
		}
	}

	caps := make(ratelimit.Limits, 4)
	if rpm > 0 {
		caps[ratelimit.WindowMinute] = rpm
	}
	if rph > 0 {
		caps[ratelimit.WindowHour] = rph
	}
	if rpd > 0 {
		caps[ratelimit.WindowDay] = rpd
	}
	if rpMonthly > 0 {
		caps[ratelimit.WindowMonth] = rpMonthly
	}
	return caps
}
