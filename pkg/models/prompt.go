package models

// Prompt is a per-session prompt record (spec §3).
type Prompt struct {
	ID               int64  `db:"id" json:"id"`
	ContentSessionID string `db:"content_session_id" json:"content_session_id"`
	Project          string `db:"project" json:"project"`
	PromptNumber     int64  `db:"prompt_number" json:"prompt_number"`
	PromptText       string `db:"prompt_text" json:"prompt_text"`
	CreatedAtEpoch   int64  `db:"created_at_epoch" json:"created_at_epoch"`
}
