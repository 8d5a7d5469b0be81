package schedule

import "errors"

var (
	ErrNoJobs               = errors.New("no jobs registered")
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrUnknownJob           = errors.New("unknown job")
	ErrNilJob               = errors.New("job function is nil")
)
