package pg

import "errors"

var (
	// ErrFailedToParseDBConfig indicates that the connection string is invalid.
	ErrFailedToParseDBConfig = errors.New("pg: failed to parse database config")

	// ErrFailedToOpenDBConnection indicates that all connection attempts failed.
	ErrFailedToOpenDBConnection = errors.New("pg: failed to open database connection")

	// ErrFailedToApplyMigrations indicates a failure while applying schema migrations.
	ErrFailedToApplyMigrations = errors.New("pg: failed to apply migrations")

	// ErrHealthcheckFailed indicates the database did not respond to a ping.
	ErrHealthcheckFailed = errors.New("pg: healthcheck failed")
)
