// Package sqlstore implements store.Store on database/sql for SQLite and
// PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/guildchat-server/internal/store"
)

// Dialect names a supported database/sql driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var _ store.Store = (*Store)(nil)

// Store implements store.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used for created/edited timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the database using the given driver.
// For SQLite the dsn is a file path (or ":memory:").
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	d, err := parseDialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(string(d), dataSource(d, dsn))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}

	if d == DialectSQLite {
		// SQLite works best with a single connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	return newStore(db, d, opts), nil
}

// New opens a SQLite store at dbPath.
func New(dbPath string, opts ...Option) (*Store, error) {
	return Open(string(DialectSQLite), dbPath, opts...)
}

// NewWithSetup opens a SQLite store and runs setup before use.
// Useful for tests to apply schema on an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error, opts ...Option) (*Store, error) {
	db, err := sql.Open(string(DialectSQLite), dataSource(DialectSQLite, dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup so :memory: stays one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return newStore(db, DialectSQLite, opts), nil
}

func newStore(db *sql.DB, d Dialect, opts []Option) *Store {
	s := &Store{db: db, dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SQLiteSchema applies the embedded SQLite schema. Suitable as a
// NewWithSetup callback.
func SQLiteSchema(db *sql.DB) error {
	return applySchema(context.Background(), db, DialectSQLite)
}

// Migrate applies the embedded schema for the store's dialect.
// Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	return applySchema(ctx, s.db, s.dialect)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func applySchema(ctx context.Context, db *sql.DB, d Dialect) error {
	name := "schema/sqlite.sql"
	if d == DialectPostgres {
		name = "schema/postgres.sql"
	}
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func parseDialect(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case DialectSQLite, "sqlite":
		return DialectSQLite, nil
	case DialectPostgres, "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func dataSource(d Dialect, dsn string) string {
	if d != DialectSQLite || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// q rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) q(query string) string {
	if s.dialect != DialectPostgres {
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

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

// notFound maps sql.ErrNoRows to store.ErrNotFound.
func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
