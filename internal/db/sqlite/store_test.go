package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engram.db")
	store, err := NewStore(StoreConfig{Path: path, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewStore_RunsMigrations(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Ping())

	var name string
	err := store.QueryRowContext(context.Background(),
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'observations'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "observations", name)
}

func TestStore_GetStmt_CachesAcrossCalls(t *testing.T) {
	store := newTestStore(t)

	stmt1, err := store.GetStmt(`SELECT 1`)
	require.NoError(t, err)
	stmt2, err := store.GetStmt(`SELECT 1`)
	require.NoError(t, err)
	assert.Same(t, stmt1, stmt2)
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ExecContext(ctx, `CREATE TABLE tx_rollback_probe (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, e := tx.ExecContext(ctx, `INSERT INTO tx_rollback_probe (id) VALUES (1)`); e != nil {
			return e
		}
		return boom
	})
	require.Error(t, err)

	var count int
	require.NoError(t, store.QueryRowContext(ctx, `SELECT COUNT(1) FROM tx_rollback_probe`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestStore_WithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ExecContext(ctx, `CREATE TABLE tx_commit_probe (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO tx_commit_probe (id) VALUES (1)`)
		return e
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, store.QueryRowContext(ctx, `SELECT COUNT(1) FROM tx_commit_probe`).Scan(&count))
	assert.Equal(t, 1, count)
}
