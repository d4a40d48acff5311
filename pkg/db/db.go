// Package db pkg/db/db.go provides the SQL store behind the node verifier: schema
// management, baseline capture and the compare/paginate/aggregate reads.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/mfreeman451/nodeverify/pkg/logger"
)

// Options selects and configures the backing store.
type Options struct {
	// Driver is a dialect name: sqlite, postgres or mysql.
	Driver string
	DSN    string
	// Schema optionally qualifies every table and view, e.g. "Proelan".
	Schema       string
	MaxOpenConns int
}

// DB represents the database connection and operations.
type DB struct {
	conn    *sql.DB
	dialect *Dialect
	names   objectNames
	log     *logger.Logger
}

// New opens the store, verifies it is reachable and returns a Service. It does
// not create any structures; call EnsureStructures for that.
func New(ctx context.Context, opts Options, log *logger.Logger) (Service, error) {
	return Open(ctx, opts, log)
}

// Open is New returning the concrete type.
func Open(ctx context.Context, opts Options, log *logger.Logger) (*DB, error) {
	dialect, err := LookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	names, err := newObjectNames(opts.Schema)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(dialect.driverName, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	db := &DB{
		conn:    sqlDB,
		dialect: dialect,
		names:   names,
		log:     log.With("component", "db", "dialect", dialect.Name),
	}

	if err := db.Ping(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, err
	}

	return db, nil
}

// Dialect returns the active dialect.
func (db *DB) Dialect() *Dialect {
	return db.dialect
}

func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToPing, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Begin(ctx context.Context) (Transaction, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToBeginTx, err)
	}

	return &SQLTx{Tx: tx, dialect: db.dialect}, nil
}

func (db *DB) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	result, err := db.conn.ExecContext(ctx, db.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	return &SQLResult{result}, nil
}

func (db *DB) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := db.conn.QueryContext(ctx, db.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	return &SQLRows{rows}, nil
}

func (db *DB) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return &SQLRow{db.conn.QueryRowContext(ctx, db.dialect.Rebind(query), args...)}
}

// ExecScript runs a semicolon-delimited sequence of statements one at a time.
// Statements must not contain semicolons inside literals.
func (db *DB) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range splitStatements(script) {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w %q: %w", ErrFailedToExec, firstLine(stmt), err)
		}
	}

	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	stmts := make([]string, 0, len(parts))

	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}

	return stmts
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return strings.TrimSpace(stmt[:i])
	}

	return stmt
}

func (db *DB) rollbackOnError(tx Transaction, err error) {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.log.Error("Error rolling back transaction", "error", rbErr)
		}
	}
}

// closeRows safely closes a Rows type and logs any error.
func (db *DB) closeRows(rows Rows) {
	if err := rows.Close(); err != nil {
		db.log.Warn("failed to close rows", "error", err)
	}
}
