package ratelimit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgRuleSource loads custom rules from the rate_limit_rules table.
type pgRuleSource struct {
	pool *pgxpool.Pool
}

// NewPostgresRuleSource returns a RuleSource backed by Postgres. The
// query narrows by subject and feature; final matching and validity
// filtering happens in Resolve.
func NewPostgresRuleSource(pool *pgxpool.Pool) RuleSource {
	return &pgRuleSource{pool: pool}
}

func (s *pgRuleSource) Load(ctx context.Context, subject Subject) ([]Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, scope, subject_id, feature_key,
		       rpm_limit, rph_limit, rpd_limit, rp_monthly_limit,
		       burst, valid_from, valid_until, priority, is_active
		FROM rate_limit_rules
		WHERE is_active
		  AND (scope = 'global'
		       OR (scope = 'user' AND subject_id = $1)
		       OR (scope = 'credential' AND subject_id = $2)
		       OR (scope = 'organization' AND subject_id = $3))
		ORDER BY priority`,
		subject.AccountID, subject.CredentialID, subject.OrganizationID)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadRules, err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var (
			r                        Rule
			featureKey               *string
			rpm, rph, rpd, rpMonthly *int
			burst                    *int
		)
		if err := rows.Scan(
			&r.ID, &r.Scope, &r.SubjectID, &featureKey,
			&rpm, &rph, &rpd, &rpMonthly,
			&burst, &r.ValidFrom, &r.ValidUntil, &r.Priority, &r.IsActive,
		); err != nil {
			return nil, errors.Join(ErrFailedToLoadRules, err)
		}

		if featureKey != nil {
			r.FeatureKey = *featureKey
		}
		if burst != nil {
			r.Burst = *burst
		}

		r.Limits = make(Limits, 4)
		if rpm != nil {
			r.Limits[WindowMinute] = *rpm
		}
		if rph != nil {
			r.Limits[WindowHour] = *rph
		}
		if rpd != nil {
			r.Limits[WindowDay] = *rpd
		}
		if rpMonthly != nil {
			r.Limits[WindowMonth] = *rpMonthly
		}

		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToLoadRules, err)
	}

	return rules, nil
}
