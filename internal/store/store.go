package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/assetgraph/internal/ids"
)

// Schema version tracking (SQLite user_version):
// 0 - empty database
// 1 - assets + asset_edges with partial unique current indexes
const currentSchemaVersion = 1

// ErrNotFound is returned by reads that address a single row.
var ErrNotFound = errors.New("not found")

// Store is the asset graph store.
// All methods are safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect dialect

	log          *zap.Logger
	hooks        Hooks
	tracer       trace.Tracer
	ids          ids.Generator
	clock        ids.Clock
	maxRetries   int
	batchTimeout time.Duration
	retryBase    time.Duration
	retryMax     time.Duration

	// precommit runs at the end of every attempt, just before COMMIT.
	// An error aborts the attempt and is classified like a driver error.
	precommit func(attempt int) error
}

func newStore(db *sql.DB, d dialect, opts []Option) *Store {
	s := &Store{
		db:           db,
		dialect:      d,
		log:          zap.NewNop(),
		hooks:        noopHooks{},
		tracer:       otel.Tracer("github.com/roach88/assetgraph/internal/store"),
		ids:          ids.UUIDv7Generator{},
		clock:        ids.SystemClock{},
		maxRetries:   DefaultMaxRetries,
		batchTimeout: DefaultBatchTimeout,
		retryBase:    defaultRetryBaseDelay,
		retryMax:     defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates or opens a SQLite database at the given path and applies the
// schema.
//
// The connection is configured with:
//   - WAL mode for concurrent reads during writes
//   - BEGIN IMMEDIATE transactions so writers queue instead of deadlocking
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times on the same path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open(sqliteDialect.driver, sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// Every query of a batch runs on its transaction, never on db directly.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := newStore(db, sqliteDialect, opts)
	if err := s.applySchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// OpenPostgres connects to PostgreSQL through pgx and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := newStore(db, postgresDialect, opts)
	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - writes that bypass UpsertAssetsAndEdges can break the
// single-current guarantee only if they defeat the unique indexes.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect names the storage backend: "sqlite" or "postgres".
func (s *Store) Dialect() string {
	return s.dialect.name
}

// applySchema creates tables if they don't exist and records the version.
func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range s.dialect.statements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if s.dialect.name == sqliteDialect.name {
		if err := s.runMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return nil
}

// runMigrations applies incremental SQLite migrations based on user_version.
// Version 1 is the base schema, so there is nothing to apply yet beyond
// recording it.
func (s *Store) runMigrations(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
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
