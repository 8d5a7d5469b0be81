package metering

import (
	"context"
	"time"

	"github.com/dmitrymomot/meterkit/pkg/catalog"
	"github.com/dmitrymomot/meterkit/pkg/ratelimit"
)

// AuthorizeRequest describes one metered call to authorize.
type AuthorizeRequest struct {
	// AccountID is the already-authenticated caller. Required.
	AccountID string

	// CredentialID is the API key or token used, for credential-scoped
	// rate limit rules. Optional.
	CredentialID string

	// FeatureKey names the billable feature. Unknown keys are charged
	// RequestedAmount credits, or one credit.
	FeatureKey string

	// RequestedAmount, when positive, replaces the catalog cost.
	RequestedAmount int

	// Metadata feeds the feature's cost modifiers and is recorded on
	// the ledger entry.
	Metadata map[string]any

	// CheckOnly reports the would-be decision without consuming
	// credits or rate-limit quota.
	CheckOnly bool
}

// Reason classifies a decision.
type Reason string

const (
	ReasonOK                  Reason = "ok"
	ReasonInsufficientCredits Reason = "insufficient_credits"
	ReasonQuotaExceeded       Reason = "quota_exceeded"
)

// Decision is the outcome of an authorization. Not-allowed decisions
// leave wallet and counters untouched.
type Decision struct {
	Allowed          bool
	Reason           Reason
	CreditsCharged   int64
	RemainingBalance int64

	// Exempt is set when the caller's role waived the credit charge.
	Exempt bool

	// RateLimit holds per-window standing when the limiter ran.
	RateLimit map[ratelimit.Window]ratelimit.Status

	// RetryAfter is set on quota-exceeded decisions.
	RetryAfter time.Duration
}

// Account is what the engine needs to know about a caller.
type Account struct {
	ID             string
	Role           catalog.Role
	Plan           string
	OrganizationID string
}

// AccountResolver looks up the caller's role and subscription plan.
// The account/subscription service implements it; tests use a stub.
type AccountResolver interface {
	Resolve(ctx context.Context, accountID string) (Account, error)
}
