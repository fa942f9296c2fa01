package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeVector_RoundTrips(t *testing.T) {
	vec := []float32{0.1, -0.2, 0.3, 1.5}
	blob := encodeVector(vec)
	decoded := decodeVector(blob)
	require.Len(t, decoded, len(vec))
	for i := range vec {
		assert.InDelta(t, vec[i], decoded[i], 1e-6)
	}
}

func TestCosineSimilarity_IdenticalVectorsIsOne(t *testing.T) {
	vec := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, cosineSimilarity(vec, vec), 1e-9)
}

func TestCosineSimilarity_MismatchedLengthIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosineSimilarity_ZeroNormIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestVectorSearcher_FiltersBelowThreshold(t *testing.T) {
	store := newTestStore(t)
	searcher := NewVectorSearcher(store, nil)
	ctx := context.Background()

	_, err := store.ExecContext(ctx, `
		INSERT INTO observations (project, memory_session_id, type, auto_category, title, created_at, created_at_epoch, discovery_tokens, is_stale)
		VALUES ('p1', 's1', 'feature-dev', 'general', 'orthogonal', ?, ?, 0, 0)
	`, time.Now().Format(time.RFC3339), time.Now().Unix())
	require.NoError(t, err)

	var obsID int64
	require.NoError(t, store.QueryRowContext(ctx, `SELECT id FROM observations WHERE title = 'orthogonal'`).Scan(&obsID))

	_, err = store.ExecContext(ctx, `
		INSERT INTO observation_embeddings (observation_id, model, dimensions, vector, created_at_epoch)
		VALUES (?, 'test', 2, ?, ?)
	`, obsID, encodeVector([]float32{1, 0}), time.Now().Unix())
	require.NoError(t, err)

	hits, err := searcher.Search(ctx, []float32{0, 1}, VectorSearchOptions{Project: "p1", Limit: 10, Threshold: 0.3, MaxCandidates: 100})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
