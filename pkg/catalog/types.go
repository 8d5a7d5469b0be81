package catalog

// Role identifies the caller's role for exemption lookups.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Exemption describes what a role is excused from for a feature.
// Cost and Throughput are independent: waiving the credit charge does
// not waive rate limiting unless Throughput is set as well.
type Exemption struct {
	Cost       bool `json:"cost"`
	Throughput bool `json:"throughput"`
}

// CostModifier adjusts the base credit cost of a feature from request
// metadata. Multipliers apply to categorical values (the metadata value
// selects a multiplier), PerUnit applies to quantitative values (the
// metadata value is multiplied by PerUnit and added to the cost).
type CostModifier struct {
	Multipliers map[string]int `json:"multipliers,omitempty"`
	PerUnit     int            `json:"per_unit,omitempty"`
}

// PlanOverride replaces feature settings for a specific subscription plan.
// Nil fields inherit the feature's defaults.
type PlanOverride struct {
	CreditCost *int `json:"credit_cost,omitempty"`
	RPM        *int `json:"rpm,omitempty"`
	RPH        *int `json:"rph,omitempty"`
	RPD        *int `json:"rpd,omitempty"`
	RPMonthly  *int `json:"rp_monthly,omitempty"`
}

// Feature defines a billable capability.
type Feature struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Category string `json:"category"`

	// CreditCost is the default cost per call before modifiers.
	CreditCost int `json:"credit_cost"`

	// Exemptions maps roles to what they are excused from.
	Exemptions map[Role]Exemption `json:"exemptions,omitempty"`

	// Per-window rate caps. Zero means "no feature-level cap" and the
	// limiter falls through to plan defaults.
	RPM       int `json:"rpm,omitempty"`
	RPH       int `json:"rph,omitempty"`
	RPD       int `json:"rpd,omitempty"`
	RPMonthly int `json:"rp_monthly,omitempty"`

	// CostModifiers are keyed by metadata field name.
	CostModifiers map[string]CostModifier `json:"cost_modifiers,omitempty"`

	// PlanOverrides are keyed by plan ID.
	PlanOverrides map[string]PlanOverride `json:"plan_overrides,omitempty"`

	IsActive   bool `json:"is_active"`
	IsBillable bool `json:"is_billable"`

	Description string `json:"description,omitempty"`
}

// ExemptFromCost reports whether the given role skips credit accounting.
func (f Feature) ExemptFromCost(role Role) bool {
	return f.Exemptions[role].Cost
}

// ExemptFromThroughput reports whether the given role skips rate limiting.
func (f Feature) ExemptFromThroughput(role Role) bool {
	return f.Exemptions[role].Throughput
}

// CostFor returns the base credit cost for a plan, honoring plan overrides.
func (f Feature) CostFor(planID string) int {
	if o, ok := f.PlanOverrides[planID]; ok && o.CreditCost != nil {
		return *o.CreditCost
	}
	return f.CreditCost
}
