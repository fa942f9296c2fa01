package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/thebtf/engram/pkg/models"
)

// MaxPromptsGlobal is the hard limit of stored prompts across all projects.
const MaxPromptsGlobal = 500

// PromptStore provides prompt-related database operations (spec §3).
type PromptStore struct {
	store *Store
}

// NewPromptStore creates a new prompt store.
func NewPromptStore(store *Store) *PromptStore {
	return &PromptStore{store: store}
}

// SavePrompt persists a prompt, idempotently on (content_session_id, prompt_number).
func (s *PromptStore) SavePrompt(ctx context.Context, p *models.Prompt) (int64, error) {
	p.CreatedAtEpoch = time.Now().Unix()

	res, err := s.store.ExecContext(ctx, `
		INSERT OR IGNORE INTO prompts (content_session_id, project, prompt_number, prompt_text, created_at_epoch)
		VALUES (?, ?, ?, ?, ?)
	`, p.ContentSessionID, p.Project, p.PromptNumber, p.PromptText, p.CreatedAtEpoch)
	if err != nil {
		return 0, classifyErr(err)
	}

	id, _ := res.LastInsertId()
	if id != 0 {
		go s.cleanupOldPrompts()
		return id, nil
	}

	row := s.store.QueryRowContext(ctx,
		`SELECT id FROM prompts WHERE content_session_id = ? AND prompt_number = ?`,
		p.ContentSessionID, p.PromptNumber)
	if err := row.Scan(&id); err != nil {
		return 0, classifyErr(err)
	}
	return id, nil
}

// cleanupOldPrompts trims prompts beyond MaxPromptsGlobal, oldest first.
// Runs detached from the caller's request path.
func (s *PromptStore) cleanupOldPrompts() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.store.ExecContext(ctx, `
		DELETE FROM prompts WHERE id NOT IN (
			SELECT id FROM prompts ORDER BY created_at_epoch DESC LIMIT ?
		)
	`, MaxPromptsGlobal)
	_ = err
}

// GetRecentPrompts retrieves recent prompts for a project.
func (s *PromptStore) GetRecentPrompts(ctx context.Context, project string, limit int) ([]*models.Prompt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.store.QueryContext(ctx, `
		SELECT id, content_session_id, project, prompt_number, prompt_text, created_at_epoch
		FROM prompts WHERE project = ? ORDER BY created_at_epoch DESC LIMIT ?
	`, project, limit)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []*models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.ContentSessionID, &p.Project, &p.PromptNumber, &p.PromptText, &p.CreatedAtEpoch); err != nil {
			return nil, classifyErr(err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// SessionStore provides session-related database operations.
type SessionStore struct {
	store *Store
}

// NewSessionStore creates a new session store.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{store: store}
}

// EnsureSession creates a session record if one doesn't exist yet, returning
// its row id either way. An empty contentSessionID mints a new one.
func (s *SessionStore) EnsureSession(ctx context.Context, contentSessionID, project string) (int64, error) {
	if contentSessionID == "" {
		contentSessionID = uuid.NewString()
	}
	row := s.store.QueryRowContext(ctx, `SELECT id FROM sessions WHERE content_session_id = ?`, contentSessionID)
	var id int64
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, classifyErr(err)
	}

	res, err := s.store.ExecContext(ctx, `
		INSERT INTO sessions (content_session_id, project, status, started_at_epoch)
		VALUES (?, ?, ?, ?)
	`, contentSessionID, project, models.SessionActive, time.Now().Unix())
	if err != nil {
		if isUniqueConstraintErr(err) {
			row := s.store.QueryRowContext(ctx, `SELECT id FROM sessions WHERE content_session_id = ?`, contentSessionID)
			if scanErr := row.Scan(&id); scanErr == nil {
				return id, nil
			}
		}
		return 0, classifyErr(err)
	}
	return res.LastInsertId()
}

// CompleteSession marks a session completed.
func (s *SessionStore) CompleteSession(ctx context.Context, contentSessionID string) error {
	_, err := s.store.ExecContext(ctx, `
		UPDATE sessions SET status = ?, completed_at_epoch = ? WHERE content_session_id = ?
	`, models.SessionCompleted, time.Now().Unix(), contentSessionID)
	return classifyErr(err)
}
