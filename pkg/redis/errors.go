package redis

import "errors"

var (
	// ErrFailedToParseRedisConnString indicates an invalid connection URL.
	ErrFailedToParseRedisConnString = errors.New("redis: failed to parse connection string")

	// ErrRedisNotReady indicates that all connection attempts failed.
	ErrRedisNotReady = errors.New("redis: server not ready")
)
