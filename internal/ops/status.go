package ops

import (
	"database/sql"
	"time"

	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// Project state reported by Status.
const (
	StateNoSession = "no_session"
	StateActive    = "active"
	StateEnded     = "ended"
)

// StatusInput contains parameters for the Status operation.
type StatusInput struct {
	ProjectID string // required
}

// StatusOutput contains the result of the Status operation.
type StatusOutput struct {
	Project session.Project `json:"project"`

	// State is one of no_session, active, ended.
	State string `json:"state"`

	// Session is the active session, or the most recent ended one.
	// Nil when the project has never had a session.
	Session *session.Session `json:"session,omitempty"`

	// Elapsed is set for an active session, LastEnded for an ended one.
	Elapsed   string `json:"elapsed,omitempty"`
	LastEnded string `json:"last_ended,omitempty"`

	NoteCount int `json:"note_count,omitempty"`
}

// Status reports the project's current state. Pure read, never mutates.
func Status(database *sql.DB, input StatusInput) (*StatusOutput, error) {
	if input.ProjectID == "" {
		return nil, errors.NewInvalidRequest("project_id is required")
	}

	project, err := db.GetProject(database, input.ProjectID)
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{Project: *project, State: StateNoSession}
	now := time.Now().Unix()

	active, err := db.GetActiveSession(database, project.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		out.State = StateActive
		out.Session = active
		out.Elapsed = session.Duration(active.StartedAt, now)
		out.NoteCount, err = db.CountNotes(database, active.ID)
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	last, err := db.LatestEndedSession(database, project.ID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		out.State = StateEnded
		out.Session = last
		if last.EndedAt != nil {
			out.LastEnded = session.TimeAgo(*last.EndedAt, now)
		}
		out.NoteCount, err = db.CountNotes(database, last.ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
