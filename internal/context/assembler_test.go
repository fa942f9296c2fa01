package context

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram/pkg/models"
)

type stubObservationSource struct {
	observations []*models.Observation
}

func (s *stubObservationSource) GetTimeline(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	return s.observations, nil
}

type stubSummarySource struct {
	summaries []*models.Summary
}

func (s *stubSummarySource) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.Summary, error) {
	return s.summaries, nil
}

func TestAssemble_KnowledgeSortsBeforeNonKnowledge(t *testing.T) {
	obs := &stubObservationSource{observations: []*models.Observation{
		{ID: 1, Type: "feature-dev", Title: "regular", CreatedAtEpoch: 200},
		{ID: 2, Type: "constraint", Title: "knowledge", CreatedAtEpoch: 100},
	}}
	a := NewAssembler(obs, &stubSummarySource{}, nil)

	result, err := a.Assemble(context.Background(), "proj", 10000)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, int64(2), result.Items[0].ID)
	assert.Equal(t, int64(1), result.Items[1].ID)
}

func TestAssemble_SkipsOversizedItemsButContinues(t *testing.T) {
	big := sql.NullString{String: stringOfLen(400), Valid: true}
	obs := &stubObservationSource{observations: []*models.Observation{
		{ID: 1, Type: "feature-dev", Title: "big", Text: big, CreatedAtEpoch: 300},
		{ID: 2, Type: "feature-dev", Title: "small", CreatedAtEpoch: 200},
	}}
	a := NewAssembler(obs, &stubSummarySource{}, nil)

	result, err := a.Assemble(context.Background(), "proj", 20)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, int64(2), result.Items[0].ID)
}

func TestAssemble_IncludesSummaries(t *testing.T) {
	obs := &stubObservationSource{}
	summaries := &stubSummarySource{summaries: []*models.Summary{{ID: 1, SessionID: "s1", Project: "proj"}}}
	a := NewAssembler(obs, summaries, nil)

	result, err := a.Assemble(context.Background(), "proj", 1000)
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
