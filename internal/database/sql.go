// Package database provides connection setup for the SQL credential store
// and Redis. Connections are created once at startup and shared across the
// application via dependency injection. This package owns the connection
// lifecycle (open, configure pool, ping, close).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	// MySQL driver -- imported for side effect of registering the driver.
	mysqldriver "github.com/go-sql-driver/mysql"
	// Postgres driver (pgx through database/sql) -- side-effect import.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect identifies the SQL flavor behind a connection, which decides
// placeholder style and conflict-insert syntax in the store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// OpenSQL opens a connection pool for the given database URL. The scheme
// selects the driver: postgres:// or postgresql:// for pgx, mysql:// for
// go-sql-driver. It pings with retries before returning, since the database
// may still be starting when the app container launches.
func OpenSQL(databaseURL string) (*sql.DB, Dialect, error) {
	driver, dsn, dialect, err := resolveDriver(databaseURL)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s connection: %w", dialect, err)
	}

	// Pool settings sized for a small auth service; stale connections are
	// recycled before load balancers drop them.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := pingWithRetry(db, dialect); err != nil {
		db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

// resolveDriver maps a database URL onto (driver name, DSN, dialect).
func resolveDriver(databaseURL string) (string, string, Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"),
		strings.HasPrefix(databaseURL, "postgresql://"):
		return "pgx", databaseURL, DialectPostgres, nil
	case strings.HasPrefix(databaseURL, "mysql://"):
		dsn, err := mysqlDSN(databaseURL)
		if err != nil {
			return "", "", "", err
		}
		return "mysql", dsn, DialectMySQL, nil
	default:
		return "", "", "", fmt.Errorf("unsupported DATABASE_URL scheme in %q", databaseURL)
	}
}

// mysqlDSN converts a mysql:// URL into the go-sql-driver DSN format using
// the driver's own Config to safely handle special characters in passwords.
func mysqlDSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing mysql URL: %w", err)
	}

	cfg := mysqldriver.NewConfig()
	cfg.User = u.User.Username()
	if pass, ok := u.User.Password(); ok {
		cfg.Passwd = pass
	}
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(u.Host, "3306")
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// pingWithRetry verifies connectivity with exponential backoff. This avoids
// crash-loop restarts during cold-starts where the database container is
// slower to come up than the app.
func pingWithRetry(db *sql.DB, dialect Dialect) error {
	const maxRetries = 10
	backoff := 1 * time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = db.PingContext(ctx)
		cancel()

		if pingErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}

		slog.Warn("database not ready, retrying...",
			slog.String("dialect", string(dialect)),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}

	return fmt.Errorf("pinging %s after %d attempts: %w", dialect, maxRetries, pingErr)
}
