package ratelimit

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Scope determines what a rule's SubjectID is matched against.
type Scope string

const (
	ScopeUser         Scope = "user"
	ScopeCredential   Scope = "credential"
	ScopeOrganization Scope = "organization"
	ScopeGlobal       Scope = "global"
)

// Rule is a custom rate-limit override. Rules beat feature caps and plan
// defaults; among matching rules, lower Priority wins per window.
type Rule struct {
	ID        string `json:"id"`
	Scope     Scope  `json:"scope"`
	SubjectID string `json:"subject_id,omitempty"` // empty for global rules

	// FeatureKey narrows the rule to a single feature when set.
	FeatureKey string `json:"feature_key,omitempty"`

	Limits Limits `json:"limits"`

	// Burst extends the minute cap for short spikes when this rule
	// supplies the minute cap.
	Burst int `json:"burst,omitempty"`

	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	Priority int  `json:"priority"`
	IsActive bool `json:"is_active"`
}

// Subject identifies who is being limited.
type Subject struct {
	AccountID      string
	CredentialID   string
	OrganizationID string
	FeatureKey     string
	Plan           string
}

// Key returns the counter-key component for the subject. Counters are
// tracked per account; credential-scoped tracking happens through rules.
func (s Subject) Key() string {
	return s.AccountID
}

// ActiveAt reports whether the rule is enabled and inside its validity window.
func (r Rule) ActiveAt(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}

// Matches reports whether the rule applies to the subject.
func (r Rule) Matches(s Subject) bool {
	if r.FeatureKey != "" && r.FeatureKey != s.FeatureKey {
		return false
	}
	switch r.Scope {
	case ScopeUser:
		return r.SubjectID == s.AccountID
	case ScopeCredential:
		return s.CredentialID != "" && r.SubjectID == s.CredentialID
	case ScopeOrganization:
		return s.OrganizationID != "" && r.SubjectID == s.OrganizationID
	case ScopeGlobal:
		return true
	}
	return false
}

// RuleSource defines how custom rules are loaded.
type RuleSource interface {
	// Load returns the rules applicable to the subject. Implementations
	// may over-return; Resolve filters by Matches and ActiveAt again.
	Load(ctx context.Context, subject Subject) ([]Rule, error)
}

// inMemRuleSource serves a static rule list, pre-filtered per subject.
type inMemRuleSource struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewInMemRuleSource returns a RuleSource backed by a copied slice.
func NewInMemRuleSource(rules []Rule) RuleSource {
	return &inMemRuleSource{rules: slices.Clone(rules)}
}

func (s *inMemRuleSource) Load(ctx context.Context, subject Subject) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Matches(subject) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
