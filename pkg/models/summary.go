package models

import "database/sql"

// Summary is a per-session human/agent-authored recap (spec §3).
type Summary struct {
	ID             int64          `db:"id" json:"id"`
	SessionID      string         `db:"session_id" json:"session_id"`
	Project        string         `db:"project" json:"project"`
	Request        sql.NullString `db:"request" json:"request,omitempty"`
	Investigated   sql.NullString `db:"investigated" json:"investigated,omitempty"`
	Learned        sql.NullString `db:"learned" json:"learned,omitempty"`
	Completed      sql.NullString `db:"completed" json:"completed,omitempty"`
	NextSteps      sql.NullString `db:"next_steps" json:"next_steps,omitempty"`
	Notes          sql.NullString `db:"notes" json:"notes,omitempty"`
	CreatedAt      string         `db:"created_at" json:"created_at"`
	CreatedAtEpoch int64          `db:"created_at_epoch" json:"created_at_epoch"`
}
