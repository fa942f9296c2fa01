// Package context implements C12, the smart context assembler: a
// token-budgeted greedy selection of observations and summaries to prime
// a new session.
package context

import (
	"context"
	"time"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/internal/scoring"
	"github.com/thebtf/engram/pkg/models"
)

// ObservationSource supplies candidate observations for a project.
type ObservationSource interface {
	GetTimeline(ctx context.Context, project string, limit int) ([]*models.Observation, error)
}

// SummarySource supplies recent summaries for a project.
type SummarySource interface {
	GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.Summary, error)
}

// Assembler implements getSmartContext (spec §4.12).
type Assembler struct {
	observations ObservationSource
	summaries    SummarySource
	cfg          *config.Config
}

// NewAssembler wires the observation and summary sources. cfg supplies the
// scoring tunables used by the equal-epoch tiebreak (spec §4.8).
func NewAssembler(observations ObservationSource, summaries SummarySource, cfg *config.Config) *Assembler {
	return &Assembler{observations: observations, summaries: summaries, cfg: cfg}
}

// Result is getSmartContext's return value.
type Result struct {
	Project     string
	Items       []*models.Observation
	Summaries   []*models.Summary
	TokenBudget int64
	TokensUsed  int64
}

const (
	candidatePoolSize = 200
	summaryPoolSize   = 10
)

// Assemble selects a prioritized list of observations, plus recent
// summaries, under tokenBudget. Knowledge-type observations sort before
// non-knowledge; within each class, more recent sorts first. Items are
// admitted in priority order, skipping (not stopping at) any item whose
// token cost would exceed the remaining budget (spec §4.12).
func (a *Assembler) Assemble(ctx context.Context, project string, tokenBudget int64) (*Result, error) {
	candidates, err := a.observations.GetTimeline(ctx, project, candidatePoolSize)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	prioritized := prioritize(candidates, now, a.cfg)

	result := &Result{Project: project, TokenBudget: tokenBudget}
	for _, obs := range prioritized {
		cost := observationCost(obs)
		if result.TokensUsed+cost > tokenBudget {
			continue
		}
		result.Items = append(result.Items, obs)
		result.TokensUsed += cost
	}

	summaries, err := a.summaries.GetRecentSummaries(ctx, project, summaryPoolSize)
	if err != nil {
		return nil, err
	}
	result.Summaries = summaries

	return result, nil
}

// prioritize orders candidates: knowledge-type first, then by recency
// descending within each class.
func prioritize(observations []*models.Observation, now time.Time, cfg *config.Config) []*models.Observation {
	out := make([]*models.Observation, len(observations))
	copy(out, observations)

	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && lessPriority(out[j], out[j-1], now, cfg) {
			out[j], out[j-1] = out[j-1], out[j]
			j--
		}
	}
	return out
}

// lessPriority orders knowledge-type observations first, then by recency
// descending; equal-epoch ties fall back to the context-assembly scoring
// preset (recency 0.7, projectMatch 0.3) so equally-timestamped items still
// resolve deterministically.
func lessPriority(a, b *models.Observation, now time.Time, cfg *config.Config) bool {
	aKnowledge, bKnowledge := a.IsKnowledge(), b.IsKnowledge()
	if aKnowledge != bKnowledge {
		return aKnowledge
	}
	if a.CreatedAtEpoch != b.CreatedAtEpoch {
		return a.CreatedAtEpoch > b.CreatedAtEpoch
	}
	return assemblyScore(a, a.Project, now, cfg) > assemblyScore(b, b.Project, now, cfg)
}

// observationCost estimates the token cost of admitting obs, using the
// glossary's ceil(len/4) estimate over its title+text+narrative.
func observationCost(obs *models.Observation) int64 {
	text := obs.Title
	if obs.Text.Valid {
		text += obs.Text.String
	}
	if obs.Narrative.Valid {
		text += obs.Narrative.String
	}
	return models.EstimatedTokenCost(text)
}

// assemblyScore exposes the context-assembly scoring preset (recency 0.7,
// projectMatch 0.3) for callers that want a numeric rank alongside the
// knowledge-first ordering rather than the plain prioritize() order.
func assemblyScore(obs *models.Observation, project string, now time.Time, cfg *config.Config) float64 {
	calc := scoring.NewCalculator(models.ContextAssemblyWeights, project, now, cfg)
	scored := calc.Score([]scoring.Candidate{{
		ObservationID: obs.ID, Project: obs.Project, Type: obs.Type, CreatedAtEpoch: obs.CreatedAtEpoch,
	}})
	return scored[0].Score
}
