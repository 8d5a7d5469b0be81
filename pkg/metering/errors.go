package metering

import "errors"

var (
	ErrMissingAccount    = errors.New("account id is required")
	ErrMissingFeature    = errors.New("feature key is required")
	ErrAccountResolution = errors.New("failed to resolve account")
)
