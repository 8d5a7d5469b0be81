package catalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgSource loads feature definitions from the feature_definitions table.
type pgSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource returns a Source backed by Postgres. Each Load reads
// the full catalog; callers are expected to rebuild the Catalog snapshot
// only on administrative change, not per request.
func NewPostgresSource(pool *pgxpool.Pool) Source {
	return &pgSource{pool: pool}
}

func (s *pgSource) Load(ctx context.Context) (map[string]Feature, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT feature_key, name, category, credit_cost,
		       exemptions, rpm_limit, rph_limit, rpd_limit, rp_monthly_limit,
		       cost_modifiers, plan_overrides, is_active, is_billable, description
		FROM feature_definitions`)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadFeatures, err)
	}
	defer rows.Close()

	features := make(map[string]Feature)
	for rows.Next() {
		var (
			f                                Feature
			exemptions, modifiers, overrides []byte
			rpm, rph, rpd, rpMonthly         *int
		)
		if err := rows.Scan(
			&f.Key, &f.Name, &f.Category, &f.CreditCost,
			&exemptions, &rpm, &rph, &rpd, &rpMonthly,
			&modifiers, &overrides, &f.IsActive, &f.IsBillable, &f.Description,
		); err != nil {
			return nil, errors.Join(ErrFailedToLoadFeatures, err)
		}

		if rpm != nil {
			f.RPM = *rpm
		}
		if rph != nil {
			f.RPH = *rph
		}
		if rpd != nil {
			f.RPD = *rpd
		}
		if rpMonthly != nil {
			f.RPMonthly = *rpMonthly
		}

		if len(exemptions) > 0 {
			if err := json.Unmarshal(exemptions, &f.Exemptions); err != nil {
				return nil, errors.Join(ErrInvalidFeature, err)
			}
		}
		if len(modifiers) > 0 {
			if err := json.Unmarshal(modifiers, &f.CostModifiers); err != nil {
				return nil, errors.Join(ErrInvalidFeature, err)
			}
		}
		if len(overrides) > 0 {
			if err := json.Unmarshal(overrides, &f.PlanOverrides); err != nil {
				return nil, errors.Join(ErrInvalidFeature, err)
			}
		}

		features[f.Key] = f
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToLoadFeatures, err)
	}

	return features, nil
}
