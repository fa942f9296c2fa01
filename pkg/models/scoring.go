package models

// ConceptWeight is a configurable importance weight for a concept tag,
// consulted by the retention knowledge-exemption check's supplemental
// schema (see SPEC_FULL.md's SUPPLEMENTED FEATURES).
type ConceptWeight struct {
	Concept   string  `db:"concept" json:"concept"`
	Weight    float64 `db:"weight" json:"weight"`
	UpdatedAt string  `db:"updated_at" json:"updated_at"`
}

// ScoringWeights is the public scoring contract (spec §4.8, §6): the linear
// blend coefficients applied to the four normalized signals.
type ScoringWeights struct {
	Semantic     float64
	FTS5         float64
	Recency      float64
	ProjectMatch float64
}

// DefaultSearchWeights is the blend used for ordinary hybrid search.
var DefaultSearchWeights = ScoringWeights{Semantic: 0.4, FTS5: 0.3, Recency: 0.2, ProjectMatch: 0.1}

// ContextAssemblyWeights is the blend used when ranking candidates for
// getSmartContext, which has no query text to match against.
var ContextAssemblyWeights = ScoringWeights{Semantic: 0, FTS5: 0, Recency: 0.7, ProjectMatch: 0.3}

const (
	// RecencyHalfLifeHours is the half-life for the `recency` signal.
	RecencyHalfLifeHours = 168.0
	// AccessRecencyHalfLifeHours is the half-life for accessRecency.
	AccessRecencyHalfLifeHours = 48.0
	// HybridBoost multiplies the composite score when both semantic and
	// FTS signals are nonzero.
	HybridBoost = 1.15
	// VectorSearchThreshold is C6's default similarity cutoff.
	VectorSearchThreshold = 0.3
)

// KnowledgeTypeBoost returns the multiplicative boost for a knowledge type,
// or 1.0 for anything else (spec §4.8).
func KnowledgeTypeBoost(t string) float64 {
	switch t {
	case "constraint":
		return 1.3
	case "decision":
		return 1.25
	case "heuristic":
		return 1.15
	case "rejected":
		return 1.10
	default:
		return 1.0
	}
}

// CategoryRule is one row of the categorizer's fixed rule table (spec §4.3).
type CategoryRule struct {
	Category string
	Weight   float64
	Keywords []string
	Types    map[string]bool
	FilePatterns []string
}
