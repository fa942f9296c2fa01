package models

import "database/sql"

// Checkpoint is a per-session progress snapshot (spec §3).
type Checkpoint struct {
	ID              int64          `db:"id" json:"id"`
	SessionID       string         `db:"session_id" json:"session_id"`
	Project         string         `db:"project" json:"project"`
	Task            sql.NullString `db:"task" json:"task,omitempty"`
	Progress        sql.NullString `db:"progress" json:"progress,omitempty"`
	NextSteps       sql.NullString `db:"next_steps" json:"next_steps,omitempty"`
	OpenQuestions   sql.NullString `db:"open_questions" json:"open_questions,omitempty"`
	RelevantFiles   sql.NullString `db:"relevant_files" json:"relevant_files,omitempty"`
	ContextSnapshot sql.NullString `db:"context_snapshot" json:"context_snapshot,omitempty"`
	CreatedAtEpoch  int64          `db:"created_at_epoch" json:"created_at_epoch"`
}

// ProjectAlias maps an opaque project label to a human display name (spec §3).
type ProjectAlias struct {
	ProjectName string `db:"project_name" json:"project_name"`
	DisplayName string `db:"display_name" json:"display_name"`
	UpdatedAt   string `db:"updated_at" json:"updated_at"`
}
