package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/maat/internal/querysql"
)

//go:embed schema.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Schema version tracking:
// 1 - Initial ranking schema
const currentSchemaVersion = 1

const rankingsTable = "maat_rankings"

var rankingColumns = []string{"entity_type", "entity_id", "typology", "buffer", "position"}

// Op identifies a write the Store is about to perform. See Observer.
type Op string

const (
	OpInsert  Op = "insert"
	OpClear   Op = "clear"
	OpPromote Op = "promote"
)

// Observer is called before every ranking write with the number of rows the
// statement carries (for OpPromote, the number of rows being flipped is not
// known yet and rows is 0). A non-nil error aborts the write; inside
// Promote it rolls the transaction back.
type Observer func(op Op, rows int) error

// Store provides durable storage for rankings.
type Store struct {
	db       *sql.DB
	dialect  querysql.Dialect
	compiler *querysql.Compiler
	observer Observer
	maxConns int
}

type options struct {
	observer     Observer
	maxOpenConns int
}

// Option configures Open and OpenDriver.
type Option func(*options)

// WithObserver installs a write observer.
func WithObserver(o Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

// WithMaxOpenConns overrides the connection pool size.
func WithMaxOpenConns(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.maxOpenConns = n
		}
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	return OpenDriver(querysql.SQLite.Name, sqliteDSN(path), opts...)
}

// OpenDriver opens a store through a database/sql driver ("sqlite3" or
// "pgx") and applies the schema.
func OpenDriver(driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := querysql.DialectFor(driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	o := options{maxOpenConns: defaultMaxOpenConns(dialect)}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A flushing typology can hold two connections at once: the handler's
	// read cursor and the staging insert. See ConnsForParallel.
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxOpenConns)

	if err := applySchema(db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:       db,
		dialect:  dialect,
		compiler: querysql.NewCompiler(dialect),
		observer: o.observer,
		maxConns: o.maxOpenConns,
	}, nil
}

func defaultMaxOpenConns(d querysql.Dialect) int {
	if d.Name == querysql.SQLite.Name {
		return 4
	}
	return 10
}

// ConnsForParallel is the pool size that lets parallel typologies flush at
// once: one read cursor and one writer each, plus one spare for
// promotions and counts.
func ConnsForParallel(parallel int) int {
	return 2*max(parallel, 1) + 1
}

// MaxOpenConns reports the size of the connection pool.
func (s *Store) MaxOpenConns() int {
	return s.maxConns
}

// MaxParallel is the number of typologies that can flush at once without
// waiting on each other for a connection.
func (s *Store) MaxParallel() int {
	return max(s.maxConns/2, 1)
}

// sqliteDSN appends the connection parameters every SQLite connection needs.
// They go in the DSN rather than through PRAGMA statements because the pool
// holds more than one connection.
func sqliteDSN(path string) string {
	params := []string{
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		"_busy_timeout=5000",
		"_foreign_keys=on",
		"_txlock=immediate",
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the backing store.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}

// Compiler returns a SQL compiler for the backing store's dialect.
func (s *Store) Compiler() *querysql.Compiler {
	return s.compiler
}

// MaxBatchRows is the largest number of ranking rows one insert may carry.
func (s *Store) MaxBatchRows() int {
	return s.dialect.MaxRows(len(rankingColumns))
}

func (s *Store) observe(op Op, rows int) error {
	if s.observer == nil {
		return nil
	}
	return s.observer(op, rows)
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB, d querysql.Dialect) error {
	schema := sqliteSchema
	if d.Name == querysql.Postgres.Name {
		schema = postgresSchema
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on the recorded
// schema version.
func runMigrations(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM maat_schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil
	}

	// Version 1 is the baseline created by the schema file. Later
	// migrations go here, in order, guarded by version checks.

	if _, err := db.Exec("DELETE FROM maat_schema_version"); err != nil {
		return fmt.Errorf("reset schema version: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("INSERT INTO maat_schema_version (version) VALUES (%d)", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
