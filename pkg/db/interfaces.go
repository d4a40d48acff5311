// Package db pkg/db/interfaces.go
package db

import (
	"context"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/mfreeman451/nodeverify/pkg/db Service

// Row represents a database row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result represents the result of a database operation.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Rows represents multiple database rows.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Transaction represents operations that can be performed within a database transaction.
type Transaction interface {
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Commit() error
	Rollback() error
}

// Service represents all store operations the verifier depends on.
type Service interface {
	// Core database operations.

	Ping(ctx context.Context) error
	Begin(ctx context.Context) (Transaction, error)
	Close() error
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	ExecScript(ctx context.Context, script string) error
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row

	// Schema and baseline operations.

	EnsureStructures(ctx context.Context) error
	CaptureBaseline(ctx context.Context, window time.Duration) (*models.CaptureResult, error)

	// Compare set reads.

	FetchPage(ctx context.Context, query string, offset, limit int) ([]models.CompareRow, error)
	CountMatching(ctx context.Context, query string) (int64, error)
	GetTotals(ctx context.Context, mode models.RefreshMode) (*models.Totals, error)

	// Operational telemetry.

	GetStoreStats(ctx context.Context) (*models.StoreStats, error)
}
