package sqlite

import (
	"context"
	"time"

	"github.com/thebtf/engram/pkg/models"
)

// SummaryStore provides summary-related database operations (spec §3, §6).
type SummaryStore struct {
	store *Store
}

// NewSummaryStore creates a new summary store.
func NewSummaryStore(store *Store) *SummaryStore {
	return &SummaryStore{store: store}
}

// StoreSummary persists a session summary.
func (s *SummaryStore) StoreSummary(ctx context.Context, summary *models.Summary) (int64, error) {
	now := time.Now().UTC()
	summary.CreatedAt = now.Format(time.RFC3339)
	summary.CreatedAtEpoch = now.Unix()

	res, err := s.store.ExecContext(ctx, `
		INSERT INTO summaries
		(session_id, project, request, investigated, learned, completed, next_steps, notes, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.SessionID, summary.Project, summary.Request, summary.Investigated,
		summary.Learned, summary.Completed, summary.NextSteps,
		summary.Notes, summary.CreatedAt, summary.CreatedAtEpoch,
	)
	if err != nil {
		return 0, classifyErr(err)
	}
	id, err := res.LastInsertId()
	return id, err
}

// GetRecentSummaries retrieves recent summaries for a project.
func (s *SummaryStore) GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.store.QueryContext(ctx, `
		SELECT id, session_id, project, request, investigated, learned, completed, next_steps, notes,
			created_at, created_at_epoch
		FROM summaries WHERE project = ? ORDER BY created_at_epoch DESC LIMIT ?
	`, project, limit)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()
	return scanSummaryRows(rows)
}

func scanSummaryRows(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]*models.Summary, error) {
	var out []*models.Summary
	for rows.Next() {
		var sm models.Summary
		if err := rows.Scan(&sm.ID, &sm.SessionID, &sm.Project, &sm.Request, &sm.Investigated,
			&sm.Learned, &sm.Completed, &sm.NextSteps, &sm.Notes, &sm.CreatedAt, &sm.CreatedAtEpoch); err != nil {
			return nil, err
		}
		out = append(out, &sm)
	}
	return out, rows.Err()
}
