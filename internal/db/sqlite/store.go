// Package sqlite is the embedded relational store (C1): schema, migrations,
// transaction scoping, and BLOB/full-text I/O for every other component.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/thebtf/engram/internal/metrics"
	"github.com/thebtf/engram/pkg/models"
)

// Store provides connection pooling, a prepared-statement cache, and
// transaction helpers over a single SQLite database file.
type Store struct {
	db        *sql.DB
	stmtCache map[string]*sql.Stmt
	stmtMu    sync.RWMutex
}

// StoreConfig configures the underlying connection.
type StoreConfig struct {
	Path     string
	MaxConns int
}

// NewStore opens (creating if absent) the database at cfg.Path, applies
// pragmas appropriate for a single-writer embedded store, and runs every
// pending migration.
func NewStore(cfg StoreConfig) (*Store, error) {
	connStr := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, models.NewError(models.KindStoreUnavailable, fmt.Errorf("open database: %w", err))
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	// A single logical writer is required by the concurrency model (§5);
	// capping open connections keeps SQLITE_BUSY contention predictable
	// without serializing reads.
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, models.NewError(models.KindStoreUnavailable, fmt.Errorf("ping database: %w", err))
	}

	store := &Store{
		db:        db,
		stmtCache: make(map[string]*sql.Stmt),
	}

	mgr := NewMigrationManager(db)
	if err := mgr.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, models.NewError(models.KindStoreUnavailable, fmt.Errorf("run migrations: %w", err))
	}

	return store, nil
}

// Close closes every cached statement and the underlying connection.
func (s *Store) Close() error {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	for _, stmt := range s.stmtCache {
		_ = stmt.Close()
	}
	s.stmtCache = nil
	return s.db.Close()
}

// GetStmt returns a cached prepared statement, preparing it on first use.
func (s *Store) GetStmt(query string) (*sql.Stmt, error) {
	s.stmtMu.RLock()
	stmt, ok := s.stmtCache[query]
	s.stmtMu.RUnlock()
	if ok {
		return stmt, nil
	}

	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	if stmt, ok := s.stmtCache[query]; ok {
		return stmt, nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmtCache[query] = stmt
	return stmt, nil
}

// ExecContext executes a statement that does not return rows.
func (s *Store) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := s.GetStmt(query)
	if err != nil {
		return s.db.ExecContext(ctx, query, args...)
	}
	return stmt.ExecContext(ctx, args...)
}

// QueryContext executes a statement that returns rows.
func (s *Store) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	metrics.RecordQuery(ctx)
	stmt, err := s.GetStmt(query)
	if err != nil {
		return s.db.QueryContext(ctx, query, args...)
	}
	return stmt.QueryContext(ctx, args...)
}

// QueryRowContext executes a statement that returns a single row.
func (s *Store) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	stmt, err := s.GetStmt(query)
	if err != nil {
		return s.db.QueryRowContext(ctx, query, args...)
	}
	return stmt.QueryRowContext(ctx, args...)
}

// Ping checks the connection is alive.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// DB returns the underlying *sql.DB. Prefer the Store methods; this exists
// for components (migrations, WithTx) that need direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Every multi-table write in §4.1's transaction
// contract goes through this helper.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewError(models.KindTransactionAborted, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return models.NewError(models.KindTransactionAborted, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
