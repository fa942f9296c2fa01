// Package search implements C9, the hybrid search orchestrator that fans
// out to vector and lexical search, ranks via the scoring engine, and
// updates access timestamps fire-and-forget.
package search

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/internal/db/sqlite"
	"github.com/thebtf/engram/internal/embedding"
	"github.com/thebtf/engram/internal/metrics"
	"github.com/thebtf/engram/internal/scoring"
	"github.com/thebtf/engram/pkg/models"
)

// accessUpdater is the subset of ObservationWriter hybrid search needs to
// stamp last_accessed_epoch after returning results.
type accessUpdater interface {
	UpdateLastAccessed(ctx context.Context, ids []int64) error
	GetObservationsByIDs(ctx context.Context, ids []int64) ([]*models.Observation, error)
}

// Engine wires C5/C6/C7/C8 into the fan-out/merge/rank algorithm of
// spec §4.9.
type Engine struct {
	vector     *sqlite.VectorSearcher
	lexical    *sqlite.LexicalSearcher
	embeddings *embedding.Service
	writer     accessUpdater
	cfg        *config.Config
}

// NewEngine builds a hybrid search engine. cfg supplies C6's vector
// threshold/candidate cap and C8's scoring tunables (spec §4.6, §4.8); a
// nil cfg falls back to the specification's defaults throughout.
func NewEngine(vector *sqlite.VectorSearcher, lexical *sqlite.LexicalSearcher, embeddings *embedding.Service, writer accessUpdater, cfg *config.Config) *Engine {
	return &Engine{vector: vector, lexical: lexical, embeddings: embeddings, writer: writer, cfg: cfg}
}

// Options configures one search call.
type Options struct {
	Project string
	Limit   int
	Weights *models.ScoringWeights
}

// candidateState accumulates C6/C7 contributions for one observation id
// before scoring.
type candidateState struct {
	obs          *models.Observation
	similarity   float64
	hasVectorHit bool
	ftsRank      int
	hasFTSHit    bool
}

// Search implements spec §4.9's algorithm: embed (if available) → vector
// search with limit*2 → always run ranked FTS with limit*2 → merge by id →
// score via C8 → sort → slice to limit → fire-and-forget access update.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]models.SearchResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordSearchLatency(ctx, float64(time.Since(start).Microseconds())/1000)
	}()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	fanoutLimit := limit * 2

	merged := make(map[int64]*candidateState)
	var mergedOrder []int64

	var vecHits []models.Hit
	var ranked []sqlite.RankedHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if e.embeddings == nil || !e.embeddings.Available() {
			metrics.RecordVectorDegraded(gctx)
			return nil
		}
		vec := e.embeddings.Embed(gctx, query)
		if vec == nil {
			metrics.RecordVectorDegraded(gctx)
			return nil
		}
		hits, err := e.vector.Search(gctx, vec, sqlite.VectorSearchOptions{
			Project: opts.Project, Limit: fanoutLimit,
		})
		if err != nil {
			log.Warn().Err(err).Msg("vector search failed, degrading to lexical-only")
			metrics.RecordVectorDegraded(gctx)
			return nil
		}
		vecHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.lexical.FTSSearchWithRank(gctx, query, models.SearchFilters{Project: opts.Project, Limit: fanoutLimit})
		if err != nil {
			log.Warn().Err(err).Msg("lexical search failed")
			return err
		}
		ranked = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, hit := range vecHits {
		merged[hit.ObservationID] = &candidateState{
			obs: &models.Observation{
				ID: hit.ObservationID, Project: hit.Project, Type: hit.Type,
				Title: hit.Title, CreatedAt: hit.CreatedAt, CreatedAtEpoch: hit.CreatedAtEpoch,
			},
			similarity: hit.Similarity, hasVectorHit: true,
		}
		mergedOrder = append(mergedOrder, hit.ObservationID)
	}
	for _, rh := range ranked {
		obs := rh.Observation
		if existing, ok := merged[obs.ID]; ok {
			existing.ftsRank = rh.Rank
			existing.hasFTSHit = true
		} else {
			merged[obs.ID] = &candidateState{obs: &obs, ftsRank: rh.Rank, hasFTSHit: true}
			mergedOrder = append(mergedOrder, obs.ID)
		}
	}

	if len(merged) == 0 {
		return nil, nil
	}
	metrics.RecordCandidateSetSize(ctx, int64(len(merged)))

	weights := models.DefaultSearchWeights
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	candidates := make([]scoring.Candidate, 0, len(mergedOrder))
	for _, id := range mergedOrder {
		c := merged[id]
		candidates = append(candidates, scoring.Candidate{
			ObservationID:  id,
			Project:        c.obs.Project,
			Type:           c.obs.Type,
			CreatedAtEpoch: c.obs.CreatedAtEpoch,
			Similarity:     c.similarity,
			HasVectorHit:   c.hasVectorHit,
			FTSRank:        c.ftsRank,
			HasFTSHit:      c.hasFTSHit,
		})
	}

	calc := scoring.NewCalculator(weights, opts.Project, time.Now(), e.cfg)
	scored := calc.Score(candidates)
	scoring.SortByScore(scored)

	if len(scored) > limit {
		scored = scored[:limit]
	}

	ids := make([]int64, len(scored))
	for i, s := range scored {
		ids[i] = s.Candidate.ObservationID
	}

	full, err := e.writer.GetObservationsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Observation, len(full))
	for _, o := range full {
		byID[o.ID] = o
	}

	results := make([]models.SearchResult, 0, len(scored))
	for _, s := range scored {
		obs := byID[s.Candidate.ObservationID]
		if obs == nil {
			obs = merged[s.Candidate.ObservationID].obs
		}
		source := models.SourceKeyword
		switch {
		case s.Candidate.HasVectorHit && s.Candidate.HasFTSHit:
			source = models.SourceHybrid
		case s.Candidate.HasVectorHit:
			source = models.SourceVector
		}
		results = append(results, models.SearchResult{
			Observation:   obs,
			Score:         s.Score,
			Source:        source,
			SemanticScore: s.Semantic,
			FTS5Score:     s.FTS5,
			RecencyScore:  s.Recency,
			ProjectScore:  s.ProjectMatch,
		})
	}

	go e.touchAccessTimes(ids)

	return results, nil
}

// touchAccessTimes updates last_accessed_epoch outside the caller's
// request path. Errors are swallowed: this is best-effort telemetry
// (spec §4.9).
func (e *Engine) touchAccessTimes(ids []int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.writer.UpdateLastAccessed(ctx, ids); err != nil {
		log.Debug().Err(err).Msg("failed to update last_accessed_epoch")
	}
}
