// Package scoring implements the deterministic scoring engine (C8): a
// four-signal linear blend plus hybrid and knowledge-type boosts.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/pkg/models"
)

// Candidate is one item the scoring engine ranks, carrying both raw
// identity fields and whatever signal the upstream search contributed.
type Candidate struct {
	ObservationID  int64
	Project        string
	Type           string
	CreatedAtEpoch int64
	LastAccessed   int64
	IsStale        bool

	// Similarity is C6's cosine similarity, or 0 if no vector hit.
	Similarity float64
	// HasVectorHit reports whether C6 produced a hit for this candidate.
	HasVectorHit bool
	// FTSRank is the candidate's raw (ascending, lower-is-better) BM25
	// rank position within the current result set, valid only if HasFTSHit.
	FTSRank   int
	HasFTSHit bool
}

// Calculator computes composite scores over a batch of candidates (spec §4.8).
type Calculator struct {
	weights                    models.ScoringWeights
	targetProj                 string
	now                        time.Time
	recencyHalfLifeHours       float64
	accessRecencyHalfLifeHours float64
	hybridBoost                float64
}

// NewCalculator builds a Calculator using weights and, if targetProject is
// non-empty, scoring projectMatch against it. cfg supplies the tunable
// recency half-lives and hybrid boost (spec §4.8); a nil cfg (or a zero
// field within it) falls back to the specification's defaults.
func NewCalculator(weights models.ScoringWeights, targetProject string, now time.Time, cfg *config.Config) *Calculator {
	c := &Calculator{
		weights: weights, targetProj: targetProject, now: now,
		recencyHalfLifeHours:       models.RecencyHalfLifeHours,
		accessRecencyHalfLifeHours: models.AccessRecencyHalfLifeHours,
		hybridBoost:                models.HybridBoost,
	}
	if cfg != nil {
		if cfg.RecencyHalfLifeHours > 0 {
			c.recencyHalfLifeHours = cfg.RecencyHalfLifeHours
		}
		if cfg.AccessRecencyHalfLifeHours > 0 {
			c.accessRecencyHalfLifeHours = cfg.AccessRecencyHalfLifeHours
		}
		if cfg.HybridBoost > 0 {
			c.hybridBoost = cfg.HybridBoost
		}
	}
	return c
}

// Scored is one candidate's computed signals and final score.
type Scored struct {
	Candidate     Candidate
	Semantic      float64
	FTS5          float64
	Recency       float64
	ProjectMatch  float64
	Score         float64
	HybridBoosted bool
}

// Score computes every signal, the composite blend, and both multiplicative
// boosts for the given candidates, returning them unsorted.
func (c *Calculator) Score(candidates []Candidate) []Scored {
	ftsRanks := collectFTSRanks(candidates)
	minRank, maxRank := rankBounds(ftsRanks)

	out := make([]Scored, len(candidates))
	for i, cand := range candidates {
		s := Scored{Candidate: cand}

		s.Semantic = clampNonNegative(cand.Similarity)

		if cand.HasFTSHit {
			s.FTS5 = normalizeFTSRank(cand.FTSRank, minRank, maxRank)
		}

		s.Recency = recencyDecay(cand.CreatedAtEpoch, c.now, c.recencyHalfLifeHours)

		if c.targetProj != "" && strings.EqualFold(cand.Project, c.targetProj) {
			s.ProjectMatch = 1
		}

		composite := c.weights.Semantic*s.Semantic + c.weights.FTS5*s.FTS5 +
			c.weights.Recency*s.Recency + c.weights.ProjectMatch*s.ProjectMatch

		if s.Semantic > 0 && cand.HasFTSHit {
			composite *= c.hybridBoost
			s.HybridBoosted = true
		}

		composite *= models.KnowledgeTypeBoost(cand.Type)

		if composite > 1.0 {
			composite = 1.0
		}
		s.Score = composite
		out[i] = s
	}
	return out
}

// SortByScore sorts scored candidates by descending score, tie-broken by
// (recency desc, id desc) per spec §4.8.
func SortByScore(scored []Scored) {
	sortScored(scored)
}

func sortScored(scored []Scored) {
	// Insertion sort is fine: result sets are bounded by limit*2 (≤ a few
	// hundred) per call, and this keeps the comparator inline and obvious.
	for i := 1; i < len(scored); i++ {
		j := i
		for j > 0 && less(scored[j], scored[j-1]) {
			scored[j], scored[j-1] = scored[j-1], scored[j]
			j--
		}
	}
}

func less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Candidate.CreatedAtEpoch != b.Candidate.CreatedAtEpoch {
		return a.Candidate.CreatedAtEpoch > b.Candidate.CreatedAtEpoch
	}
	return a.Candidate.ObservationID > b.Candidate.ObservationID
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// recencyDecay implements exp(-ln2 * ageHours / halfLifeHours), clamping
// future timestamps to 1.
func recencyDecay(epochSeconds int64, now time.Time, halfLifeHours float64) float64 {
	ageHours := now.Sub(time.Unix(epochSeconds, 0)).Hours()
	if ageHours < 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * ageHours / halfLifeHours)
}

// AccessRecency scores recency of last_accessed_epoch with its own
// half-life; available to callers (e.g. assembly) but not in the default
// composite (spec §4.8).
func (c *Calculator) AccessRecency(lastAccessedEpoch int64) float64 {
	if lastAccessedEpoch == 0 {
		return 0
	}
	return recencyDecay(lastAccessedEpoch, c.now, c.accessRecencyHalfLifeHours)
}

// StalenessPenalty returns 0.5 if stale else 1.0.
func StalenessPenalty(isStale bool) float64 {
	if isStale {
		return 0.5
	}
	return 1.0
}

func collectFTSRanks(candidates []Candidate) []int {
	var ranks []int
	for _, c := range candidates {
		if c.HasFTSHit {
			ranks = append(ranks, c.FTSRank)
		}
	}
	return ranks
}

func rankBounds(ranks []int) (min, max int) {
	if len(ranks) == 0 {
		return 0, 0
	}
	min, max = ranks[0], ranks[0]
	for _, r := range ranks[1:] {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	return min, max
}

// normalizeFTSRank computes (max-r)/(max-min), with singleton/all-equal
// ranks scoring 1 (spec §4.8).
func normalizeFTSRank(rank, min, max int) float64 {
	if max == min {
		return 1
	}
	return float64(max-rank) / float64(max-min)
}
