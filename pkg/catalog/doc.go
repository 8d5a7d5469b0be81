// Package catalog holds the billable feature definitions: per-feature
// credit costs, cost modifiers, rate-limit caps, role exemptions and
// per-plan overrides.
//
// The catalog is read-mostly configuration. Features are loaded through a
// Source (in-memory for tests and static setups, Postgres for
// administratively managed catalogs) and resolved per request by the
// metering engine.
//
// Cost resolution is a pure function: EffectiveCost takes the feature,
// the caller's plan, an optional explicit amount and request metadata,
// and returns the integer credit cost. Unknown features fall back to the
// explicit amount or a single credit, so an unconfigured feature never
// blocks a request.
package catalog
