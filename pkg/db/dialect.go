package db

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Dialect captures the handful of places where SQLite, PostgreSQL and MySQL
// disagree. Everything else in the package is written once in portable SQL
// with "?" placeholders.
type Dialect struct {
	Name string

	driverName     string
	numberedParams bool
	timestampType  string
	textType       string
	// lowerFunc folds case for the search predicate. It must agree with Go's
	// Unicode lowercasing on the data it sees.
	lowerFunc string

	// recencyExpr is compared against MAX(FechaServidorUltimaEmision) and takes
	// exactly one bind parameter produced by recencyArg.
	recencyExpr string
	recencyArg  func(window time.Duration) interface{}

	stats statsReader
}

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

var (
	sqliteDialect = &Dialect{
		Name:          DialectSQLite,
		driverName:    sqliteDriverName,
		timestampType: "TIMESTAMP",
		textType:      "TEXT",
		lowerFunc:     sqliteFoldFunc,
		recencyExpr:   "datetime('now', ?)",
		recencyArg: func(window time.Duration) interface{} {
			return fmt.Sprintf("-%d seconds", int64(window.Seconds()))
		},
		stats: poolStats,
	}

	postgresDialect = &Dialect{
		Name:           DialectPostgres,
		driverName:     "pgx",
		numberedParams: true,
		timestampType:  "TIMESTAMP",
		textType:       "TEXT",
		lowerFunc:      "LOWER",
		recencyExpr:    "NOW() - make_interval(secs => ?)",
		recencyArg: func(window time.Duration) interface{} {
			return window.Seconds()
		},
		stats: postgresStats,
	}

	mysqlDialect = &Dialect{
		Name:          DialectMySQL,
		driverName:    "mysql",
		timestampType: "DATETIME",
		textType:      "CHAR",
		lowerFunc:     "LOWER",
		recencyExpr:   "NOW() - INTERVAL ? SECOND",
		recencyArg: func(window time.Duration) interface{} {
			return int64(window.Seconds())
		},
		stats: mysqlStats,
	}
)

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LookupDialect resolves a dialect by name. Driver names are accepted as aliases.
func LookupDialect(name string) (*Dialect, error) {
	switch strings.ToLower(name) {
	case DialectSQLite, "sqlite3", "":
		return sqliteDialect, nil
	case DialectPostgres, "postgresql", "pgx":
		return postgresDialect, nil
	case DialectMySQL:
		return mysqlDialect, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, name)
	}
}

// Rebind rewrites "?" placeholders into "$n" for dialects that need it.
// Queries in this package never contain a literal question mark.
func (d *Dialect) Rebind(query string) string {
	if !d.numberedParams || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder

	b.Grow(len(query) + 8)

	n := 0

	for _, r := range query {
		if r == '?' {
			n++

			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// qualifier returns "schema." or "" after validating the schema name, which is
// interpolated into statements and therefore must be a bare identifier.
func qualifier(schema string) (string, error) {
	if schema == "" {
		return "", nil
	}

	if !schemaNameRe.MatchString(schema) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSchemaName, schema)
	}

	return schema + ".", nil
}
