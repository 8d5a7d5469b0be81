package credits

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrPackageNotFound     = errors.New("credit package not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrWalletInvariant     = errors.New("wallet balance invariant violated")
	ErrLedgerInconsistent  = errors.New("ledger replay does not match wallet state")
	ErrConcurrencyConflict = errors.New("concurrent wallet modification, retry")
	ErrTxFailure           = errors.New("wallet transaction failed")
)
