package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertObservationAt(t *testing.T, store *Store, obsType, facts string, epoch int64) int64 {
	t.Helper()
	res, err := store.ExecContext(context.Background(), `
		INSERT INTO observations (project, memory_session_id, type, auto_category, title, facts, created_at, created_at_epoch, discovery_tokens, is_stale)
		VALUES ('p1', 's1', ?, 'general', 'old observation', ?, ?, ?, 0, 0)
	`, obsType, nullableString(facts), time.Unix(epoch, 0).UTC().Format(time.RFC3339), epoch)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestApplyRetention_DeletesOldNonKnowledgeObservations(t *testing.T) {
	store := newTestStore(t)
	retention := NewRetentionStore(store)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -100).Unix()
	insertObservationAt(t, store, "feature-dev", "", old)

	result, err := retention.ApplyRetention(ctx, RetentionConfig{ObsDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Observations)

	var remaining int
	require.NoError(t, store.QueryRowContext(ctx, `SELECT COUNT(1) FROM observations`).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestApplyRetention_ExemptsImportantKnowledgeObservations(t *testing.T) {
	store := newTestStore(t)
	retention := NewRetentionStore(store)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -100).Unix()
	insertObservationAt(t, store, "decision", `{"importance":5}`, old)

	result, err := retention.ApplyRetention(ctx, RetentionConfig{KnowledgeDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Knowledge)

	var remaining int
	require.NoError(t, store.QueryRowContext(ctx, `SELECT COUNT(1) FROM observations`).Scan(&remaining))
	assert.Equal(t, 1, remaining)
}

func TestApplyRetention_DisabledClassSkipsDeletion(t *testing.T) {
	store := newTestStore(t)
	retention := NewRetentionStore(store)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -100).Unix()
	insertObservationAt(t, store, "feature-dev", "", old)

	result, err := retention.ApplyRetention(ctx, RetentionConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)

	var remaining int
	require.NoError(t, store.QueryRowContext(ctx, `SELECT COUNT(1) FROM observations`).Scan(&remaining))
	assert.Equal(t, 1, remaining)
}
