// Package db pkg/db/errors.go provides errors for the db package.
package db

import "errors"

var (
	// Core database errors.

	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrInvalidSchemaName = errors.New("invalid schema name")

	// Operation errors.

	ErrFailedToBeginTx = errors.New("failed to begin transaction")
	ErrFailedToCommit  = errors.New("failed to commit transaction")
	ErrFailedToScan    = errors.New("failed to scan")
	ErrFailedToQuery   = errors.New("failed to query")
	ErrFailedToExec    = errors.New("failed to execute statement")
	ErrFailedOpenDB    = errors.New("failed to open database")
	ErrFailedToPing    = errors.New("failed to reach database")
	ErrInvalidDSN      = errors.New("invalid data source name")
	ErrNoNetworkDSN    = errors.New("driver has no network address to redirect")

	// Domain errors.

	ErrSchema             = errors.New("failed to ensure structures")
	ErrCapture            = errors.New("failed to capture baseline")
	ErrTelemetry          = errors.New("store stats unavailable")
	ErrInvalidPage        = errors.New("invalid page window")
	ErrInvalidRefreshMode = errors.New("invalid refresh mode")
	ErrInvalidWindow      = errors.New("recency window must be positive")
	ErrUnparsableTime     = errors.New("unparsable timestamp")
)
