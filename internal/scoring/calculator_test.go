package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram/pkg/models"
)

func TestCalculator_SemanticClampsNegative(t *testing.T) {
	now := time.Now()
	calc := NewCalculator(models.DefaultSearchWeights, "", now, nil)
	scored := calc.Score([]Candidate{{ObservationID: 1, Similarity: -0.5, CreatedAtEpoch: now.Unix()}})
	require.Len(t, scored, 1)
	assert.Equal(t, 0.0, scored[0].Semantic)
}

func TestCalculator_FTSNormalization_SingletonIsOne(t *testing.T) {
	now := time.Now()
	calc := NewCalculator(models.DefaultSearchWeights, "", now, nil)
	scored := calc.Score([]Candidate{
		{ObservationID: 1, HasFTSHit: true, FTSRank: 3, CreatedAtEpoch: now.Unix()},
	})
	assert.Equal(t, 1.0, scored[0].FTS5)
}

func TestCalculator_FutureTimestampClampsRecencyToOne(t *testing.T) {
	now := time.Now()
	future := now.Add(48 * time.Hour).Unix()
	calc := NewCalculator(models.DefaultSearchWeights, "", now, nil)
	scored := calc.Score([]Candidate{{ObservationID: 1, CreatedAtEpoch: future}})
	assert.Equal(t, 1.0, scored[0].Recency)
}

func TestCalculator_ProjectMatchCaseInsensitive(t *testing.T) {
	now := time.Now()
	calc := NewCalculator(models.DefaultSearchWeights, "MyProject", now, nil)
	scored := calc.Score([]Candidate{{ObservationID: 1, Project: "myproject", CreatedAtEpoch: now.Unix()}})
	assert.Equal(t, 1.0, scored[0].ProjectMatch)
}

func TestCalculator_HybridBoostRequiresBothSignals(t *testing.T) {
	now := time.Now()
	calc := NewCalculator(models.DefaultSearchWeights, "", now, nil)
	scored := calc.Score([]Candidate{
		{ObservationID: 1, Similarity: 0.8, HasVectorHit: true, CreatedAtEpoch: now.Unix()},
		{ObservationID: 2, Similarity: 0.8, HasVectorHit: true, HasFTSHit: true, FTSRank: 1, CreatedAtEpoch: now.Unix()},
	})
	assert.False(t, scored[0].HybridBoosted)
	assert.True(t, scored[1].HybridBoosted)
}

func TestCalculator_KnowledgeTypeBoost(t *testing.T) {
	now := time.Now()
	calc := NewCalculator(models.DefaultSearchWeights, "", now, nil)
	scored := calc.Score([]Candidate{
		{ObservationID: 1, Type: "constraint", Similarity: 0.5, CreatedAtEpoch: now.Unix()},
		{ObservationID: 2, Type: "feature-dev", Similarity: 0.5, CreatedAtEpoch: now.Unix()},
	})
	assert.Greater(t, scored[0].Score, scored[1].Score)
}

func TestCalculator_ScoreNeverExceedsOne(t *testing.T) {
	now := time.Now()
	calc := NewCalculator(models.DefaultSearchWeights, "same", now, nil)
	scored := calc.Score([]Candidate{
		{ObservationID: 1, Type: "constraint", Project: "same", Similarity: 1.0,
			HasFTSHit: true, FTSRank: 1, CreatedAtEpoch: now.Unix()},
	})
	assert.LessOrEqual(t, scored[0].Score, 1.0)
}

func TestSortByScore_TieBreaksByRecencyThenID(t *testing.T) {
	now := time.Now()
	scored := []Scored{
		{Score: 0.5, Candidate: Candidate{ObservationID: 1, CreatedAtEpoch: 100}},
		{Score: 0.5, Candidate: Candidate{ObservationID: 2, CreatedAtEpoch: 200}},
		{Score: 0.5, Candidate: Candidate{ObservationID: 3, CreatedAtEpoch: 200}},
	}
	_ = now
	SortByScore(scored)
	require.Equal(t, []int64{3, 2, 1}, []int64{scored[0].Candidate.ObservationID, scored[1].Candidate.ObservationID, scored[2].Candidate.ObservationID})
}
