package sqlite

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/pkg/models"
)

// VectorSearcher implements C6: exact cosine similarity over a bounded,
// recency-ordered candidate set. There is no ANN index; the recency window
// is the explicit tradeoff (spec §4.6).
type VectorSearcher struct {
	store         *Store
	threshold     float64
	maxCandidates int
}

// NewVectorSearcher wires a Store for candidate retrieval. threshold and
// maxCandidates (spec §4.6, cfg.VectorThreshold/VectorMaxCandidates) are the
// defaults applied whenever a caller's VectorSearchOptions leaves them unset.
func NewVectorSearcher(store *Store, cfg *config.Config) *VectorSearcher {
	threshold, maxCandidates := models.VectorSearchThreshold, 2000
	if cfg != nil {
		threshold, maxCandidates = cfg.VectorThreshold, cfg.VectorMaxCandidates
	}
	return &VectorSearcher{store: store, threshold: threshold, maxCandidates: maxCandidates}
}

// VectorSearchOptions configures one vectorSearch call. A zero Threshold or
// MaxCandidates falls back to the searcher's configured default.
type VectorSearchOptions struct {
	Project       string
	Limit         int
	Threshold     float64
	MaxCandidates int
}

// DefaultVectorSearchOptions mirrors the specification's defaults, for
// callers that construct options without a configured VectorSearcher at hand.
func DefaultVectorSearchOptions() VectorSearchOptions {
	return VectorSearchOptions{Limit: 10, Threshold: models.VectorSearchThreshold, MaxCandidates: 2000}
}

// Search embeds nothing itself: queryVec is the caller's already-embedded
// query vector. It selects up to MaxCandidates embedded observations
// (filtered by project, ordered by created_at_epoch DESC), scores each by
// cosine similarity, drops anything below Threshold, and returns the top
// Limit hits.
func (v *VectorSearcher) Search(ctx context.Context, queryVec []float32, opts VectorSearchOptions) ([]models.Hit, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = v.maxCandidates
	}
	if opts.Threshold == 0 {
		opts.Threshold = v.threshold
	}

	query := `
		SELECT o.id, e.vector, o.title, o.text, o.type, o.project, o.created_at, o.created_at_epoch
		FROM observation_embeddings e
		JOIN observations o ON o.id = e.observation_id
	`
	args := []interface{}{}
	if opts.Project != "" {
		query += ` WHERE o.project = ?`
		args = append(args, opts.Project)
	}
	query += ` ORDER BY o.created_at_epoch DESC LIMIT ?`
	args = append(args, opts.MaxCandidates)

	rows, err := v.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var hits []models.Hit
	for rows.Next() {
		var (
			id             int64
			vecBlob        []byte
			title          string
			text           *string
			obsType        string
			project        string
			createdAt      string
			createdAtEpoch int64
		)
		if err := rows.Scan(&id, &vecBlob, &title, &text, &obsType, &project, &createdAt, &createdAtEpoch); err != nil {
			return nil, classifyErr(err)
		}

		sim := cosineSimilarity(queryVec, decodeVector(vecBlob))
		if sim < opts.Threshold {
			continue
		}

		hit := models.Hit{
			ObservationID:  id,
			Similarity:     sim,
			Title:          title,
			Type:           obsType,
			Project:        project,
			CreatedAt:      createdAt,
			CreatedAtEpoch: createdAtEpoch,
		}
		if text != nil {
			hit.Text = *text
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

// encodeVector serializes a float32 vector as a contiguous little-endian
// byte sequence (spec §3).
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is encodeVector's inverse.
func decodeVector(blob []byte) []float32 {
	n := len(blob) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

// cosineSimilarity returns 0 if either vector has zero norm or the lengths
// differ (spec §4.6).
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
