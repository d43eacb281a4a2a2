package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL flavour behind a DB handle
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a database handle that remembers its dialect
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Rebind rewrites ? placeholders into the dialect's positional form
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RedactDSN returns a copy of the DSN with the password replaced by **** for logging.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "(invalid store DSN)"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}

// Open connects to the store named by dsn and runs migrations.
// sqlite://<path> opens a local file, postgres:// and postgresql:// use lib/pq.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("store DSN is empty")
	}

	var (
		handle  *sql.DB
		dialect Dialect
		err     error
	)

	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		dialect = DialectSQLite
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite DSN has no path")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		handle, err = sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		// single writer keeps multi-key transactions from hitting SQLITE_BUSY
		handle.SetMaxOpenConns(1)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialect = DialectPostgres
		handle, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		handle.SetMaxOpenConns(5)
		handle.SetMaxIdleConns(2)
		handle.SetConnMaxLifetime(5 * time.Minute)
		handle.SetConnMaxIdleTime(10 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported store DSN %q", RedactDSN(dsn))
	}

	logger.Debug().
		Str("dialect", string(dialect)).
		Str("dsn", RedactDSN(dsn)).
		Msg("opening store")

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := handle.PingContext(connectCtx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	d := &DB{DB: handle, Dialect: dialect}
	if err := Migrate(ctx, d, logger); err != nil {
		_ = handle.Close()
		return nil, err
	}

	return d, nil
}
