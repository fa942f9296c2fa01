package sqlite

import (
	"context"
	"time"

	"github.com/thebtf/engram/pkg/models"
)

// CheckpointStore provides checkpoint snapshot operations (spec supplement:
// mid-session progress snapshots, grounded on the session summary shape).
type CheckpointStore struct {
	store *Store
}

// NewCheckpointStore creates a new checkpoint store.
func NewCheckpointStore(store *Store) *CheckpointStore {
	return &CheckpointStore{store: store}
}

// SaveCheckpoint persists a progress snapshot for a session.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) (int64, error) {
	cp.CreatedAtEpoch = time.Now().Unix()

	res, err := s.store.ExecContext(ctx, `
		INSERT INTO checkpoints
		(session_id, project, task, progress, next_steps, open_questions, relevant_files, context_snapshot, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cp.SessionID, cp.Project, cp.Task, cp.Progress, cp.NextSteps, cp.OpenQuestions,
		cp.RelevantFiles, cp.ContextSnapshot, cp.CreatedAtEpoch)
	if err != nil {
		return 0, classifyErr(err)
	}
	return res.LastInsertId()
}

// GetLatestCheckpoint returns the most recent checkpoint for a session, or
// nil if none exists.
func (s *CheckpointStore) GetLatestCheckpoint(ctx context.Context, sessionID string) (*models.Checkpoint, error) {
	row := s.store.QueryRowContext(ctx, `
		SELECT id, session_id, project, task, progress, next_steps, open_questions, relevant_files,
			context_snapshot, created_at_epoch
		FROM checkpoints WHERE session_id = ? ORDER BY created_at_epoch DESC LIMIT 1
	`, sessionID)

	var cp models.Checkpoint
	err := row.Scan(&cp.ID, &cp.SessionID, &cp.Project, &cp.Task, &cp.Progress, &cp.NextSteps,
		&cp.OpenQuestions, &cp.RelevantFiles, &cp.ContextSnapshot, &cp.CreatedAtEpoch)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, classifyErr(err)
	}
	return &cp, nil
}

// AliasStore maps opaque project identifiers to display names.
type AliasStore struct {
	store *Store
}

// NewAliasStore creates a new alias store.
func NewAliasStore(store *Store) *AliasStore {
	return &AliasStore{store: store}
}

// SetAlias upserts the display name for a project.
func (s *AliasStore) SetAlias(ctx context.Context, project, displayName string) error {
	_, err := s.store.ExecContext(ctx, `
		INSERT INTO project_aliases (project_name, display_name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(project_name) DO UPDATE SET display_name = excluded.display_name, updated_at = excluded.updated_at
	`, project, displayName, time.Now().UTC().Format(time.RFC3339))
	return classifyErr(err)
}

// GetAlias returns the display name for project, or "" if unaliased.
func (s *AliasStore) GetAlias(ctx context.Context, project string) (string, error) {
	row := s.store.QueryRowContext(ctx, `SELECT display_name FROM project_aliases WHERE project_name = ?`, project)
	var name string
	err := row.Scan(&name)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", classifyErr(err)
	}
	return name, nil
}
