package models

// Hit is a single vector-search result (spec §4.6).
type Hit struct {
	ObservationID  int64   `json:"observation_id"`
	Similarity     float64 `json:"similarity"`
	Title          string  `json:"title"`
	Text           string  `json:"text,omitempty"`
	Type           string  `json:"type"`
	Project        string  `json:"project"`
	CreatedAt      string  `json:"created_at"`
	CreatedAtEpoch int64   `json:"created_at_epoch"`
}

// SearchFilters narrows a lexical or vector search (spec §4.7).
type SearchFilters struct {
	Project   string
	Type      string
	DateStart int64
	DateEnd   int64
	Limit     int
}

// ResultSource names which signal(s) produced a hybrid search result
// (spec §4.9; the Open Question is resolved in favor of "hybrid").
type ResultSource string

const (
	SourceHybrid ResultSource = "hybrid"
	SourceVector ResultSource = "vector"
	SourceKeyword ResultSource = "keyword"
)

// SearchResult is one ranked item returned by hybrid search.
type SearchResult struct {
	Observation   *Observation `json:"observation"`
	Score         float64      `json:"score"`
	Source        ResultSource `json:"source"`
	SemanticScore float64      `json:"semantic_score"`
	FTS5Score     float64      `json:"fts5_score"`
	RecencyScore  float64      `json:"recency_score"`
	ProjectScore  float64      `json:"project_match_score"`
}
