package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/pkg/models"
)

const (
	staleCheckBatchSizeDefault = 500
	consolidationJoin          = "\n---\n"
	consolidationMaxLen        = 100000
)

// ConsolidationStore implements C10: file-mtime staleness detection and
// group-merge consolidation of duplicate observations.
type ConsolidationStore struct {
	store               *Store
	staleCheckBatchSize int
}

// NewConsolidationStore wires a Store. staleCheckBatchSize (cfg.StaleCheckBatchSize,
// spec §4.10) bounds how many candidates DetectStale stats per call.
func NewConsolidationStore(store *Store, cfg *config.Config) *ConsolidationStore {
	batchSize := staleCheckBatchSizeDefault
	if cfg != nil && cfg.StaleCheckBatchSize > 0 {
		batchSize = cfg.StaleCheckBatchSize
	}
	return &ConsolidationStore{store: store, staleCheckBatchSize: batchSize}
}

// DetectStale selects up to 500 recent observations for project with
// non-empty files_modified, stats each path, and marks the observation
// stale if any modified file's mtime postdates the observation. Returns
// the stale ids (spec §4.10).
func (c *ConsolidationStore) DetectStale(ctx context.Context, project string) ([]int64, error) {
	rows, err := c.store.QueryContext(ctx, `
		SELECT id, files_modified, created_at_epoch FROM observations
		WHERE project = ? AND files_modified IS NOT NULL AND files_modified != '' AND files_modified != '[]'
		ORDER BY created_at_epoch DESC LIMIT ?
	`, project, c.staleCheckBatchSize)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	type candidate struct {
		id             int64
		filesModified  string
		createdAtEpoch int64
	}
	var candidates []candidate
	for rows.Next() {
		var cand candidate
		if err := rows.Scan(&cand.id, &cand.filesModified, &cand.createdAtEpoch); err != nil {
			return nil, classifyErr(err)
		}
		candidates = append(candidates, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}

	var staleIDs []int64
	for _, cand := range candidates {
		files := models.JSONStringArray{}
		_ = files.Scan(cand.filesModified)
		for _, path := range files {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().Unix() > cand.createdAtEpoch {
				staleIDs = append(staleIDs, cand.id)
				break
			}
		}
	}
	return staleIDs, nil
}

// MarkStale bulk-updates is_stale for the given ids (capped at 500,
// filtered to positive integers).
func (c *ConsolidationStore) MarkStale(ctx context.Context, ids []int64, value bool) error {
	ids = positiveIDs(ids)
	if len(ids) > 500 {
		ids = ids[:500]
	}
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids)+1)
	if value {
		args[0] = 1
	} else {
		args[0] = 0
	}
	for i, id := range ids {
		placeholders[i] = "?"
		args[i+1] = id
	}
	_, err := c.store.ExecContext(ctx,
		`UPDATE observations SET is_stale = ? WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	return classifyErr(err)
}

// ConsolidationResult reports group-merge outcomes.
type ConsolidationResult struct {
	Merged  int
	Removed int
}

// ConsolidationOptions configures one consolidate call.
type ConsolidationOptions struct {
	MinGroupSize int
	DryRun       bool
}

type consolidationGroup struct {
	key     string
	members []*models.Observation
}

// Consolidate groups observations by (type, files_modified) where
// files_modified is non-empty, considers only groups of size >=
// MinGroupSize, and either counts (DryRun) or merges them (apply mode)
// inside one transaction (spec §4.10).
func (c *ConsolidationStore) Consolidate(ctx context.Context, project string, opts ConsolidationOptions) (ConsolidationResult, error) {
	if opts.MinGroupSize <= 0 {
		opts.MinGroupSize = 3
	}

	groups, err := c.groupCandidates(ctx, project, opts.MinGroupSize)
	if err != nil {
		return ConsolidationResult{}, err
	}

	result := ConsolidationResult{}
	for _, g := range groups {
		result.Merged++
		result.Removed += len(g.members) - 1
	}
	if opts.DryRun || len(groups) == 0 {
		return result, nil
	}

	err = c.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, g := range groups {
			if err := mergeGroup(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ConsolidationResult{}, err
	}
	return result, nil
}

func (c *ConsolidationStore) groupCandidates(ctx context.Context, project string, minGroupSize int) ([]consolidationGroup, error) {
	rows, err := c.store.QueryContext(ctx,
		observationSelectColumns+` FROM observations
		WHERE project = ? AND files_modified IS NOT NULL AND files_modified != '' AND files_modified != '[]'
		ORDER BY created_at_epoch DESC, id DESC`, project)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	byKey := make(map[string]*consolidationGroup)
	var order []string
	for rows.Next() {
		obs, err := scanObservationFrom(rows)
		if err != nil {
			return nil, classifyErr(err)
		}
		filesModified := ""
		if obs.FilesModified.Valid {
			filesModified = obs.FilesModified.String
		}
		key := obs.Type + "\x00" + filesModified
		g, ok := byKey[key]
		if !ok {
			g = &consolidationGroup{key: key}
			byKey[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}

	var groups []consolidationGroup
	for _, key := range order {
		g := byKey[key]
		if len(g.members) >= minGroupSize {
			groups = append(groups, *g)
		}
	}
	return groups, nil
}

// mergeGroup rewrites the keeper (members[0], already ordered by
// created_at_epoch DESC, id DESC from groupCandidates) with the union of
// distinct texts and a consolidated title, then deletes the rest.
func mergeGroup(ctx context.Context, tx *sql.Tx, g consolidationGroup) error {
	keeper := g.members[0]

	seen := make(map[string]bool)
	var texts []string
	for _, m := range g.members {
		if !m.Text.Valid || m.Text.String == "" {
			continue
		}
		if seen[m.Text.String] {
			continue
		}
		seen[m.Text.String] = true
		texts = append(texts, m.Text.String)
	}
	mergedText := strings.Join(texts, consolidationJoin)
	if len(mergedText) > consolidationMaxLen {
		mergedText = mergedText[:consolidationMaxLen]
	}

	newTitle := fmt.Sprintf("[consolidated x%d] %s", len(g.members), keeper.Title)

	_, err := tx.ExecContext(ctx, `UPDATE observations SET title = ?, text = ? WHERE id = ?`,
		newTitle, mergedText, keeper.ID)
	if err != nil {
		return classifyErr(err)
	}

	removeIDs := make([]int64, 0, len(g.members)-1)
	for _, m := range g.members[1:] {
		removeIDs = append(removeIDs, m.ID)
	}
	if len(removeIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(removeIDs))
	args := make([]interface{}, len(removeIDs))
	for i, id := range removeIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, `DELETE FROM observation_embeddings WHERE observation_id IN (`+inClause+`)`, args...); err != nil {
		return classifyErr(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE id IN (`+inClause+`)`, args...); err != nil {
		return classifyErr(err)
	}
	return nil
}

func positiveIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}
