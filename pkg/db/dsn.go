package db

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// RedirectDSN points dsn at addr (host:port), leaving credentials, database
// and options untouched. It is used to send the store connection through a
// local tunnel endpoint.
func RedirectDSN(driver, dsn, addr string) (string, error) {
	dialect, err := LookupDialect(driver)
	if err != nil {
		return "", err
	}

	switch dialect.Name {
	case DialectMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidDSN, err)
		}

		cfg.Net = "tcp"
		cfg.Addr = addr

		return cfg.FormatDSN(), nil
	case DialectPostgres:
		return redirectPostgresDSN(dsn, addr)
	default:
		return "", fmt.Errorf("%w: %s", ErrNoNetworkDSN, dialect.Name)
	}
}

func redirectPostgresDSN(dsn, addr string) (string, error) {
	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidDSN, err)
		}

		u.Host = addr

		return u.String(), nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}

	// Keyword/value form: drop host and port, then append the tunnel endpoint.
	fields := strings.Fields(dsn)
	kept := make([]string, 0, len(fields)+2)

	for _, f := range fields {
		if strings.HasPrefix(f, "host=") || strings.HasPrefix(f, "port=") {
			continue
		}

		kept = append(kept, f)
	}

	kept = append(kept, "host="+host, "port="+port)

	return strings.Join(kept, " "), nil
}
