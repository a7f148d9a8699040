// Package sqlite implements the storage interface on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/awagdata/objectstore/internal/cache"
	"github.com/awagdata/objectstore/internal/storage"
)

// timestampLayout is the stored timestamp format: UTC, microsecond precision,
// fixed width so that lexicographic order is chronological order.
const timestampLayout = "2006-01-02 15:04:05.000000"

// Config holds SQLite connection configuration.
type Config struct {
	// Path is the database file path, or ":memory:" for an in-memory store.
	Path          string `json:"path" yaml:"path"`
	BusyTimeoutMS int    `json:"busy_timeout_ms" yaml:"busy_timeout_ms"`
	MaxOpenConns  int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns  int    `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Path:          "objectstore.db",
		BusyTimeoutMS: 30000,
		MaxOpenConns:  runtime.NumCPU() + 1,
		MaxIdleConns:  2,
	}
}

// DSN returns the connection string. In-memory databases use a shared cache
// so every pooled connection sees the same data.
func (c Config) DSN() string {
	pragmas := fmt.Sprintf("_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)", c.BusyTimeoutMS)
	if c.Path == ":memory:" {
		// WAL does not work for shared in-memory databases, so keep the
		// default journal mode there.
		return "file:objectstore?mode=memory&cache=shared&" + pragmas
	}
	if strings.HasPrefix(c.Path, "file:") {
		return c.Path
	}
	return "file:" + c.Path + "?" + pragmas
}

// inMemory reports whether the configuration targets an in-memory database.
func (c Config) inMemory() bool {
	return c.Path == ":memory:" || (strings.HasPrefix(c.Path, "file:") && strings.Contains(c.Path, "mode=memory"))
}

// Store implements the storage.Store interface using SQLite.
type Store struct {
	db       *sql.DB
	config   Config
	mappings *cache.Mappings
	rec      storage.Recorder
}

func init() {
	// Cache compiled WASM so the embedded SQLite runtime does not pay JIT
	// compilation cost on every process start.
	setupWASMCache()
}

// setupWASMCache configures a filesystem compilation cache for the SQLite
// WASM runtime, falling back to an in-memory cache if the directory cannot
// be created.
func setupWASMCache() {
	var cc wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "objectstore", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cc = c
		}
	}
	if cc == nil {
		cc = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cc)
}

// NewStore opens the database, applies migrations, and returns a ready
// store. The mapping cache is owned by the caller so its lifetime spans the
// process, not any one store. A nil Recorder disables instrumentation.
func NewStore(config Config, mappings *cache.Mappings, rec storage.Recorder) (*Store, error) {
	if mappings == nil {
		mappings = cache.NewMappings()
	}

	if !config.inMemory() && !strings.HasPrefix(config.Path, "file:") {
		if dir := filepath.Dir(config.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite in-memory databases are per-connection; a single connection
	// keeps every statement on the same database. File databases get WAL
	// and a small pool: one writer plus readers.
	if config.inMemory() {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:       db,
		config:   config,
		mappings: mappings,
		rec:      rec,
	}

	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate applies the fixed-schema migrations. Namespace tables are created
// on demand by Resolve.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a single transaction: commit on success, roll back
// on any error. This is the per-request transaction scope; callers perform
// exactly one withTx per operation.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// record reports an operation's duration and outcome to the Recorder.
func (s *Store) record(operation string, start time.Time, err error) {
	if s.rec != nil {
		s.rec.RecordStorageOperation(operation, time.Since(start), err)
	}
}

// now returns the stored-timestamp representation of the current time.
func now() string {
	return time.Now().UTC().Format(timestampLayout)
}

// Close closes the database. For file databases the WAL is checkpointed
// first so no committed writes are stranded in the log.
func (s *Store) Close() error {
	if !s.config.inMemory() {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// IsHealthy checks if the database connection is healthy.
func (s *Store) IsHealthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}
