package sqlite

import (
	"context"
	"strings"

	"github.com/thebtf/engram/internal/config"
	"github.com/thebtf/engram/pkg/models"
)

const (
	ftsMaxQueryLenDefault  = 10000
	ftsMaxTermsDefault     = 100
	ftsDefaultLimitDefault = 50
)

// LexicalSearcher implements C7: full-text search with column-weighted
// BM25 ranking, and a LIKE fallback when the sanitized query is empty or
// the FTS index is unavailable.
type LexicalSearcher struct {
	store        *Store
	maxQueryLen  int
	maxTerms     int
	defaultLimit int
}

// NewLexicalSearcher wires a Store. maxQueryLen/maxTerms/defaultLimit come
// from cfg.FTSMaxQueryLen/FTSMaxTerms/FTSDefaultLimit (spec §4.7).
func NewLexicalSearcher(store *Store, cfg *config.Config) *LexicalSearcher {
	maxQueryLen, maxTerms, defaultLimit := ftsMaxQueryLenDefault, ftsMaxTermsDefault, ftsDefaultLimitDefault
	if cfg != nil {
		if cfg.FTSMaxQueryLen > 0 {
			maxQueryLen = cfg.FTSMaxQueryLen
		}
		if cfg.FTSMaxTerms > 0 {
			maxTerms = cfg.FTSMaxTerms
		}
		if cfg.FTSDefaultLimit > 0 {
			defaultLimit = cfg.FTSDefaultLimit
		}
	}
	return &LexicalSearcher{store: store, maxQueryLen: maxQueryLen, maxTerms: maxTerms, defaultLimit: defaultLimit}
}

// RankedHit is one lexical search result carrying its raw BM25 rank
// position, consumed by C8's fts5 normalization.
type RankedHit struct {
	Observation models.Observation
	Rank        int // 0-based position in the ascending-BM25 ordering
}

// sanitizeFTSQuery implements the mandatory sanitization order from spec
// §4.7: trim length, strip quotes, split on whitespace, drop empties, cap
// term count, re-quote each term, rejoin with spaces.
func (l *LexicalSearcher) sanitizeFTSQuery(query string) string {
	if len(query) > l.maxQueryLen {
		query = query[:l.maxQueryLen]
	}
	query = strings.ReplaceAll(query, `"`, "")

	fields := strings.Fields(query)
	if len(fields) > l.maxTerms {
		fields = fields[:l.maxTerms]
	}

	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, " ")
}

// FTSSearch returns observations matching query, falling back to LIKE when
// the sanitized query is empty.
func (l *LexicalSearcher) FTSSearch(ctx context.Context, query string, filters models.SearchFilters) ([]models.Observation, error) {
	sanitized := l.sanitizeFTSQuery(query)
	if sanitized == "" {
		return l.likeSearch(ctx, query, filters)
	}
	ranked, err := l.ftsQuery(ctx, sanitized, filters)
	if err != nil {
		if models.IsKind(err, models.KindFtsUnavailable) {
			return l.likeSearch(ctx, query, filters)
		}
		return nil, err
	}
	out := make([]models.Observation, len(ranked))
	for i, r := range ranked {
		out[i] = r.Observation
	}
	return out, nil
}

// FTSSearchWithRank is FTSSearch's rank-carrying variant; it returns empty
// (not a LIKE fallback) when the sanitized query is empty, per spec §4.7.
func (l *LexicalSearcher) FTSSearchWithRank(ctx context.Context, query string, filters models.SearchFilters) ([]RankedHit, error) {
	sanitized := l.sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}
	return l.ftsQuery(ctx, sanitized, filters)
}

func (l *LexicalSearcher) ftsQuery(ctx context.Context, sanitized string, filters models.SearchFilters) ([]RankedHit, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = l.defaultLimit
	}

	sql := observationSelectColumnsAliased + `
		FROM observations_fts f
		JOIN observations o ON o.id = f.rowid
		WHERE observations_fts MATCH ?
	`
	args := []interface{}{sanitized}
	sql, args = appendFilters(sql, args, filters, "o")
	sql += ` ORDER BY bm25(observations_fts, 10.0, 1.0, 5.0, 3.0) ASC LIMIT ?`
	args = append(args, limit)

	rows, err := l.store.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []RankedHit
	rank := 0
	for rows.Next() {
		obs, err := scanObservationFrom(rows)
		if err != nil {
			return nil, classifyErr(err)
		}
		out = append(out, RankedHit{Observation: *obs, Rank: rank})
		rank++
	}
	return out, rows.Err()
}

// likeSearch builds a `%escaped%` LIKE query across the textual columns,
// applying the same filter contract as FTS (spec §4.7).
func (l *LexicalSearcher) likeSearch(ctx context.Context, query string, filters models.SearchFilters) ([]models.Observation, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = l.defaultLimit
	}

	pattern := "%" + escapeLike(query) + "%"
	sql := observationSelectColumns + ` FROM observations o
		WHERE (title LIKE ? ESCAPE '\' OR text LIKE ? ESCAPE '\' OR narrative LIKE ? ESCAPE '\' OR concepts LIKE ? ESCAPE '\')
	`
	args := []interface{}{pattern, pattern, pattern, pattern}
	sql, args = appendFilters(sql, args, filters, "o")
	sql += ` ORDER BY o.created_at_epoch DESC, o.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.store.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		obs, err := scanObservationFrom(rows)
		if err != nil {
			return nil, classifyErr(err)
		}
		out = append(out, *obs)
	}
	return out, rows.Err()
}

func appendFilters(sql string, args []interface{}, filters models.SearchFilters, alias string) (string, []interface{}) {
	if filters.Project != "" {
		sql += ` AND ` + alias + `.project = ?`
		args = append(args, filters.Project)
	}
	if filters.Type != "" {
		sql += ` AND ` + alias + `.type = ?`
		args = append(args, filters.Type)
	}
	if filters.DateStart > 0 {
		sql += ` AND ` + alias + `.created_at_epoch >= ?`
		args = append(args, filters.DateStart)
	}
	if filters.DateEnd > 0 {
		sql += ` AND ` + alias + `.created_at_epoch <= ?`
		args = append(args, filters.DateEnd)
	}
	return sql, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const observationSelectColumnsAliased = `
	SELECT o.id, o.project, o.memory_session_id, o.prompt_number, o.type, o.auto_category,
		o.title, o.subtitle, o.text, o.narrative, o.facts, o.concepts,
		o.files_read, o.files_modified, o.created_at, o.created_at_epoch,
		o.content_hash, o.discovery_tokens, o.last_accessed_epoch, o.is_stale
`
