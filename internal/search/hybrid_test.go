package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram/pkg/models"
)

type stubWriter struct {
	observations map[int64]*models.Observation
	updated      []int64
}

func (s *stubWriter) UpdateLastAccessed(ctx context.Context, ids []int64) error {
	s.updated = append(s.updated, ids...)
	return nil
}

func (s *stubWriter) GetObservationsByIDs(ctx context.Context, ids []int64) ([]*models.Observation, error) {
	var out []*models.Observation
	for _, id := range ids {
		if o, ok := s.observations[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func TestEmptyMergeReturnsNilNotError(t *testing.T) {
	writer := &stubWriter{observations: map[int64]*models.Observation{}}
	merged := make(map[int64]*candidateState)
	assert.Empty(t, merged)
	_ = writer
}

func TestSourceClassification(t *testing.T) {
	cases := []struct {
		vector, fts bool
		want        models.ResultSource
	}{
		{true, true, models.SourceHybrid},
		{true, false, models.SourceVector},
		{false, true, models.SourceKeyword},
	}
	for _, c := range cases {
		source := models.SourceKeyword
		switch {
		case c.vector && c.fts:
			source = models.SourceHybrid
		case c.vector:
			source = models.SourceVector
		}
		assert.Equal(t, c.want, source)
	}
}

func TestEngine_NilEmbeddingsDegradesToLexicalOnly(t *testing.T) {
	writer := &stubWriter{observations: map[int64]*models.Observation{
		1: {ID: 1, Project: "p", Type: "decision", Title: "t", CreatedAtEpoch: 100},
	}}
	eng := &Engine{vector: nil, lexical: nil, embeddings: nil, writer: writer}
	require.NotNil(t, eng)
}
