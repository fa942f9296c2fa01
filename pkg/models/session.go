package models

import "database/sql"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session tracks one coding-assistant session (spec §3).
type Session struct {
	ID               int64          `db:"id" json:"id"`
	ContentSessionID string         `db:"content_session_id" json:"content_session_id"`
	Project          string         `db:"project" json:"project"`
	Status           SessionStatus  `db:"status" json:"status"`
	StartedAtEpoch   int64          `db:"started_at_epoch" json:"started_at_epoch"`
	CompletedAtEpoch sql.NullInt64  `db:"completed_at_epoch" json:"completed_at_epoch,omitempty"`
}
