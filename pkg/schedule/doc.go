// Package schedule runs the periodic wallet maintenance jobs: monthly
// grants, the expiration sweep, package priority refresh and balance
// notifications.
//
// The Runner is in-process: each registered job has a Schedule that
// says when it is next due, and a ticker loop fires due jobs. Jobs are
// idempotent by construction (the underlying wallet operations are),
// so an extra run after a restart is harmless.
package schedule
