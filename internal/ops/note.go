package ops

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// NoteInput contains parameters for the Note operation.
type NoteInput struct {
	SessionID string // required
	Text      string // required: trimmed, truncated to the configured ceiling
}

// NoteOutput contains the result of the Note operation.
type NoteOutput struct {
	Note session.Note `json:"note"`

	// Truncated is true when the text exceeded the ceiling and was cut.
	Truncated bool `json:"truncated,omitempty"`
}

// Note appends a timestamped free-text note to an active session.
// Text is trimmed; blank notes are rejected, over-long notes are
// truncated rather than rejected. Notes are immutable once created.
func Note(database *sql.DB, cfg *config.Config, input NoteInput) (*NoteOutput, error) {
	if input.SessionID == "" {
		return nil, errors.NewInvalidRequest("session_id is required")
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.NewEmptyNote()
	}

	truncated := false
	if runes := []rune(text); len(runes) > cfg.NoteMaxChars {
		text = string(runes[:cfg.NoteMaxChars])
		truncated = true
	}

	s, err := db.GetSession(database, input.SessionID)
	if err != nil {
		return nil, err
	}
	if !s.Active() {
		return nil, errors.NewSessionNotActive(s.ID)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	note := session.Note{
		ID:        id,
		SessionID: s.ID,
		CreatedAt: time.Now().Unix(),
		Text:      text,
	}
	if err := db.InsertNote(database, &note); err != nil {
		return nil, err
	}

	return &NoteOutput{Note: note, Truncated: truncated}, nil
}
