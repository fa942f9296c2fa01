package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertObservationWithFiles(t *testing.T, store *Store, text, filesModifiedJSON string, epoch int64) int64 {
	t.Helper()
	res, err := store.ExecContext(context.Background(), `
		INSERT INTO observations (project, memory_session_id, type, auto_category, title, text, files_modified, created_at, created_at_epoch, discovery_tokens, is_stale)
		VALUES ('p1', 's1', 'feature-dev', 'general', 'obs', ?, ?, ?, ?, 0, 0)
	`, text, filesModifiedJSON, time.Unix(epoch, 0).UTC().Format(time.RFC3339), epoch)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestConsolidate_MergesGroupsAtOrAboveMinSize(t *testing.T) {
	store := newTestStore(t)
	consolidation := NewConsolidationStore(store, nil)
	ctx := context.Background()

	base := time.Now().Unix()
	files := `["a.go","b.go"]`
	keeperID := insertObservationWithFiles(t, store, "newest", files, base)
	insertObservationWithFiles(t, store, "middle", files, base-10)
	insertObservationWithFiles(t, store, "oldest", files, base-20)

	result, err := consolidation.Consolidate(ctx, "p1", ConsolidationOptions{MinGroupSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 2, result.Removed)

	var remaining int
	require.NoError(t, store.QueryRowContext(ctx, `SELECT COUNT(1) FROM observations`).Scan(&remaining))
	assert.Equal(t, 1, remaining)

	var title, text string
	require.NoError(t, store.QueryRowContext(ctx, `SELECT title, text FROM observations WHERE id = ?`, keeperID).Scan(&title, &text))
	assert.Contains(t, title, "[consolidated x3]")
	assert.Contains(t, text, "newest")
	assert.Contains(t, text, "middle")
	assert.Contains(t, text, "oldest")
}

func TestConsolidate_DryRunLeavesRowsUntouched(t *testing.T) {
	store := newTestStore(t)
	consolidation := NewConsolidationStore(store, nil)
	ctx := context.Background()

	base := time.Now().Unix()
	files := `["a.go"]`
	insertObservationWithFiles(t, store, "a", files, base)
	insertObservationWithFiles(t, store, "b", files, base-1)
	insertObservationWithFiles(t, store, "c", files, base-2)

	result, err := consolidation.Consolidate(ctx, "p1", ConsolidationOptions{MinGroupSize: 3, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)

	var remaining int
	require.NoError(t, store.QueryRowContext(ctx, `SELECT COUNT(1) FROM observations`).Scan(&remaining))
	assert.Equal(t, 3, remaining)
}

func TestDetectStale_FlagsObservationWhenFileModifiedAfterCreation(t *testing.T) {
	store := newTestStore(t)
	consolidation := NewConsolidationStore(store, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "touched.go")
	require.NoError(t, os.WriteFile(path, []byte("package p"), 0o644))

	createdAt := time.Now().Add(-time.Hour).Unix()
	modTime := time.Unix(createdAt, 0).Add(30 * time.Minute)
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	filesJSON := `["` + path + `"]`
	id := insertObservationWithFiles(t, store, "body", filesJSON, createdAt)

	staleIDs, err := consolidation.DetectStale(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, staleIDs, id)
}

func TestDetectStale_SkipsObservationWhenFileModifiedBeforeCreation(t *testing.T) {
	store := newTestStore(t)
	consolidation := NewConsolidationStore(store, nil)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "untouched.go")
	require.NoError(t, os.WriteFile(path, []byte("package p"), 0o644))

	createdAt := time.Now().Unix()
	modTime := time.Unix(createdAt, 0).Add(-30 * time.Minute)
	require.NoError(t, os.Chtimes(path, modTime, modTime))

	filesJSON := `["` + path + `"]`
	id := insertObservationWithFiles(t, store, "body", filesJSON, createdAt)

	staleIDs, err := consolidation.DetectStale(ctx, "p1")
	require.NoError(t, err)
	assert.NotContains(t, staleIDs, id)
}

func TestConsolidate_BelowMinGroupSizeSkipped(t *testing.T) {
	store := newTestStore(t)
	consolidation := NewConsolidationStore(store, nil)
	ctx := context.Background()

	base := time.Now().Unix()
	insertObservationWithFiles(t, store, "a", `["a.go"]`, base)
	insertObservationWithFiles(t, store, "b", `["a.go"]`, base-1)

	result, err := consolidation.Consolidate(ctx, "p1", ConsolidationOptions{MinGroupSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Merged)
}
