// Package metering is the consumption engine: the single entry point a
// request-handling layer calls before executing a billable operation.
//
// Authorize resolves the effective credit cost from the feature
// catalog, enforces rate limits, debits the caller's wallet and writes
// the ledger entry, returning a typed decision. Rate-limited and
// underfunded requests are ordinary decisions, not errors; only
// infrastructure failures surface as errors.
package metering
