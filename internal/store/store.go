package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/orql/internal/querysql"
)

// Store runs rendered statements against one database.
type Store struct {
	db       *sql.DB
	dialect  querysql.Dialect
	renderer *querysql.Renderer
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for statement execution.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

var driverNames = map[querysql.Dialect]string{
	querysql.SQLite:   "sqlite3",
	querysql.Postgres: "postgres",
	querysql.MySQL:    "mysql",
}

// Open connects to dsn with the driver for dialect and verifies the
// connection.
func Open(dialect querysql.Dialect, dsn string, opts ...Option) (*Store, error) {
	driver, ok := driverNames[dialect]
	if !ok {
		return nil, fmt.Errorf("no driver for dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == querysql.SQLite {
		// SQLite only supports one writer at a time, and each connection to
		// ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return OpenDB(dialect, db, opts...), nil
}

// OpenDB wraps an existing connection pool.
func OpenDB(dialect querysql.Dialect, db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		dialect:  dialect,
		renderer: querysql.NewRenderer(dialect),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect statements are rendered in.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// ExecScript runs a multi-statement script such as DDL or seed data.
func (s *Store) ExecScript(ctx context.Context, script string) error {
	if _, err := s.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
