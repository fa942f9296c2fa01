// Package sqlite provides the embedded relational store for engram.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/engram/internal/category"
	"github.com/thebtf/engram/internal/embedding"
	"github.com/thebtf/engram/internal/privacy"
	"github.com/thebtf/engram/pkg/models"
)

// tokenCodec is the real tokenizer used to stamp discovery_tokens at write
// time. The glossary's ceil(len/4) estimate in models.EstimatedTokenCost
// remains the budget arithmetic C12 scores against; this is recorded
// alongside it, the way the teacher records real SDK token usage.
var tokenCodec, tokenCodecErr = tokenizer.Get(tokenizer.Cl100kBase)

func countTokens(text string) int64 {
	if tokenCodecErr != nil || text == "" {
		return models.EstimatedTokenCost(text)
	}
	ids, _, err := tokenCodec.Encode(text)
	if err != nil {
		return models.EstimatedTokenCost(text)
	}
	return int64(len(ids))
}

// ObservationWriter implements C4: validation, redaction, categorization,
// deduplication, and durable insert of observations, plus the read-side
// boundary operations that do not belong to C6/C7/C9.
type ObservationWriter struct {
	store       *Store
	embeddings  *embedding.Service
	dedupWindow time.Duration
}

// NewObservationWriter wires a Store and an embedding Service used for the
// fire-and-forget vectorization step (spec §4.4, §4.5).
func NewObservationWriter(store *Store, embeddings *embedding.Service, dedupWindow time.Duration) *ObservationWriter {
	return &ObservationWriter{store: store, embeddings: embeddings, dedupWindow: dedupWindow}
}

// CreateObservation validates, redacts, categorizes, dedup-checks, and
// inserts one observation, then kicks off asynchronous embedding. It
// returns models.ErrDuplicateSuppressed if an identical content_hash was
// recorded within the dedup window.
func (w *ObservationWriter) CreateObservation(ctx context.Context, in models.CreateObservationInput) (*models.Observation, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}
	if in.MemorySessionID == "" {
		in.MemorySessionID = uuid.NewString()
	}

	in.Title = privacy.Redact(in.Title)
	in.Subtitle = privacy.Redact(in.Subtitle)
	in.Text = privacy.Redact(in.Text)
	in.Narrative = privacy.Redact(in.Narrative)
	in.Facts = privacy.Redact(in.Facts)

	contentHash := in.ContentHash
	if contentHash == "" {
		contentHash = hashContent(in)
	}

	dup, err := w.findRecentDuplicate(ctx, in.Project, contentHash)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, models.ErrDuplicateSuppressed
	}

	autoCategory := category.Categorize(category.Input{
		Type:          in.Type,
		Title:         in.Title,
		Text:          in.Text,
		Narrative:     in.Narrative,
		Concepts:      in.Concepts,
		FilesModified: in.FilesModified,
		FilesRead:     in.FilesRead,
	})

	now := time.Now().UTC()
	concepts, _ := json.Marshal(in.Concepts)
	filesRead, _ := json.Marshal(in.FilesRead)
	filesModified, _ := json.Marshal(in.FilesModified)

	fullText := strings.Join([]string{in.Title, in.Text, in.Narrative}, " ")
	tokenCost := countTokens(fullText)

	var obsID int64
	err = w.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO observations (
				project, memory_session_id, prompt_number, type, auto_category,
				title, subtitle, text, narrative, facts, concepts,
				files_read, files_modified, created_at, created_at_epoch,
				content_hash, discovery_tokens, last_accessed_epoch, is_stale
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		`,
			in.Project, in.MemorySessionID, nullableInt(in.PromptNumber), in.Type, autoCategory,
			in.Title, nullableString(in.Subtitle), nullableString(in.Text), nullableString(in.Narrative),
			nullableString(in.Facts), string(concepts),
			string(filesRead), string(filesModified), now.Format(time.RFC3339), now.Unix(),
			contentHash, tokenCost, now.Unix(),
		)
		if err != nil {
			return classifyErr(err)
		}
		obsID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}

	obs, err := w.GetObservation(ctx, obsID)
	if err != nil {
		return nil, err
	}

	if w.embeddings != nil {
		go w.embedAsync(obsID, fullText)
	}

	return obs, nil
}

// embedAsync computes and stores an embedding outside the caller's request
// path. Failures are logged, never surfaced: a missing embedding degrades
// C6 to fewer candidates, not an error (spec §4.4, §7).
func (w *ObservationWriter) embedAsync(observationID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vec := w.embeddings.Embed(ctx, text)
	if vec == nil {
		return
	}

	blob := encodeVector(vec)
	_, err := w.store.ExecContext(ctx, `
		INSERT INTO observation_embeddings (observation_id, model, dimensions, vector, created_at_epoch)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(observation_id) DO UPDATE SET model=excluded.model, dimensions=excluded.dimensions,
			vector=excluded.vector, created_at_epoch=excluded.created_at_epoch
	`, observationID, w.embeddings.ModelName(), w.embeddings.Dimensions(), blob, time.Now().Unix())
	if err != nil {
		log.Warn().Err(err).Int64("observation_id", observationID).Msg("failed to persist embedding")
	}
}

// findRecentDuplicate reports whether an observation with the same project
// and content_hash was created within the dedup window (spec §4.4).
func (w *ObservationWriter) findRecentDuplicate(ctx context.Context, project, contentHash string) (bool, error) {
	if contentHash == "" {
		return false, nil
	}
	cutoff := time.Now().Add(-w.dedupWindow).Unix()

	var count int
	err := w.store.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM observations
		WHERE project = ? AND content_hash = ? AND created_at_epoch >= ?
	`, project, contentHash, cutoff).Scan(&count)
	if err != nil {
		return false, classifyErr(err)
	}
	return count > 0, nil
}

// GetObservation fetches one observation by id.
func (w *ObservationWriter) GetObservation(ctx context.Context, id int64) (*models.Observation, error) {
	row := w.store.QueryRowContext(ctx, observationSelectColumns+` FROM observations WHERE id = ?`, id)
	obs, err := scanObservationFrom(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classifyErr(err)
	}
	return obs, nil
}

// GetObservationsByIDs fetches observations for a set of ids, order not
// guaranteed to match the input (callers re-sort by score).
func (w *ObservationWriter) GetObservationsByIDs(ctx context.Context, ids []int64) ([]*models.Observation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := observationSelectColumns + ` FROM observations WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := w.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		obs, err := scanObservationFrom(rows)
		if err != nil {
			return nil, classifyErr(err)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// GetTimeline returns observations for a project in reverse-chronological
// order, bounded by limit.
func (w *ObservationWriter) GetTimeline(ctx context.Context, project string, limit int) ([]*models.Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := w.store.QueryContext(ctx,
		observationSelectColumns+` FROM observations WHERE project = ? ORDER BY created_at_epoch DESC, id DESC LIMIT ?`,
		project, limit)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		obs, err := scanObservationFrom(rows)
		if err != nil {
			return nil, classifyErr(err)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// GetDistinctProjects returns every project label with at least one
// observation, used by maintenance to sweep every project.
func (w *ObservationWriter) GetDistinctProjects(ctx context.Context) ([]string, error) {
	rows, err := w.store.QueryContext(ctx, `SELECT DISTINCT project FROM observations`)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, classifyErr(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProjectStats summarizes a project's observation counts by type.
type ProjectStats struct {
	Project     string
	TotalCount  int
	ByType      map[string]int
	StaleCount  int
	OldestEpoch int64
	NewestEpoch int64
}

// GetProjectStats aggregates counts for a project.
func (w *ObservationWriter) GetProjectStats(ctx context.Context, project string) (*ProjectStats, error) {
	stats := &ProjectStats{Project: project, ByType: make(map[string]int)}

	rows, err := w.store.QueryContext(ctx, `
		SELECT type, COUNT(1), SUM(is_stale), MIN(created_at_epoch), MAX(created_at_epoch)
		FROM observations WHERE project = ? GROUP BY type
	`, project)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			obsType         string
			count, staleSum int
			minEpoch, maxE  sql.NullInt64
		)
		if err := rows.Scan(&obsType, &count, &staleSum, &minEpoch, &maxE); err != nil {
			return nil, classifyErr(err)
		}
		stats.ByType[obsType] = count
		stats.TotalCount += count
		stats.StaleCount += staleSum
		if minEpoch.Valid && (stats.OldestEpoch == 0 || minEpoch.Int64 < stats.OldestEpoch) {
			stats.OldestEpoch = minEpoch.Int64
		}
		if maxE.Valid && maxE.Int64 > stats.NewestEpoch {
			stats.NewestEpoch = maxE.Int64
		}
	}
	return stats, rows.Err()
}

// UpdateLastAccessed stamps last_accessed_epoch for the given ids. Called
// fire-and-forget (capped at 500 ids) after a search returns hits (spec §4.9).
func (w *ObservationWriter) UpdateLastAccessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > 500 {
		ids = ids[:500]
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	args[0] = time.Now().Unix()
	for i, id := range ids {
		placeholders[i] = "?"
		args[i+1] = id
	}
	_, err := w.store.ExecContext(ctx,
		`UPDATE observations SET last_accessed_epoch = ? WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	return classifyErr(err)
}

const observationSelectColumns = `
	SELECT id, project, memory_session_id, prompt_number, type, auto_category,
		title, subtitle, text, narrative, facts, concepts,
		files_read, files_modified, created_at, created_at_epoch,
		content_hash, discovery_tokens, last_accessed_epoch, is_stale
`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanObservationFrom(s scannable) (*models.Observation, error) {
	var o models.Observation
	var isStale int
	err := s.Scan(
		&o.ID, &o.Project, &o.MemorySessionID, &o.PromptNumber, &o.Type, &o.AutoCategory,
		&o.Title, &o.Subtitle, &o.Text, &o.Narrative, &o.Facts, &o.Concepts,
		&o.FilesRead, &o.FilesModified, &o.CreatedAt, &o.CreatedAtEpoch,
		&o.ContentHash, &o.DiscoveryTokens, &o.LastAccessedEpoch, &isStale,
	)
	if err != nil {
		return nil, err
	}
	o.IsStale = isStale != 0
	return &o, nil
}

func validateCreateInput(in models.CreateObservationInput) error {
	if strings.TrimSpace(in.Project) == "" {
		return models.ValidationError("project", fmt.Errorf("project is required"))
	}
	if strings.TrimSpace(in.Type) == "" {
		return models.ValidationError("type", fmt.Errorf("type is required"))
	}
	if strings.TrimSpace(in.Title) == "" {
		return models.ValidationError("title", fmt.Errorf("title is required"))
	}
	if len(in.Project) > 200 {
		return models.ValidationError("project", fmt.Errorf("project exceeds 200 bytes"))
	}
	if len(in.Title) > 500 {
		return models.ValidationError("title", fmt.Errorf("title exceeds 500 bytes"))
	}
	if len(in.Text) > 100000 {
		return models.ValidationError("text", fmt.Errorf("text exceeds 100000 bytes"))
	}
	if len(in.Narrative) > 100000 {
		return models.ValidationError("narrative", fmt.Errorf("narrative exceeds 100000 bytes"))
	}
	return nil
}

// hashContent derives a deterministic content_hash from the fields that
// define observation identity, used when the caller does not supply one.
func hashContent(in models.CreateObservationInput) string {
	h := sha256.New()
	h.Write([]byte(in.Project))
	h.Write([]byte{0})
	h.Write([]byte(in.Type))
	h.Write([]byte{0})
	h.Write([]byte(in.Title))
	h.Write([]byte{0})
	h.Write([]byte(in.Text))
	return hex.EncodeToString(h.Sum(nil))
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
