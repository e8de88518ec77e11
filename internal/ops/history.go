package ops

import (
	"database/sql"
	"time"

	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	ProjectID string // required
	Limit     int    // optional, defaults to DefaultHistoryLimit
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Project  session.Project `json:"project"`
	Sessions []SessionInfo   `json:"sessions"`
}

// SessionInfo is a session row enriched with its summary and note count.
type SessionInfo struct {
	Session   session.Session  `json:"session"`
	Summary   *session.Summary `json:"summary,omitempty"`
	NoteCount int              `json:"note_count"`
	Duration  string           `json:"duration,omitempty"`
	When      string           `json:"when"`
}

// History lists a project's sessions newest-first with their summaries.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	if input.ProjectID == "" {
		return nil, errors.NewInvalidRequest("project_id is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	project, err := db.GetProject(database, input.ProjectID)
	if err != nil {
		return nil, err
	}

	sessions, err := db.ListSessions(database, project.ID, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		info := SessionInfo{Session: s, When: session.TimeAgo(s.StartedAt, now)}
		if s.EndedAt != nil {
			info.Duration = session.Duration(s.StartedAt, *s.EndedAt)
		}
		info.Summary, err = db.GetSummary(database, s.ID)
		if err != nil {
			return nil, err
		}
		info.NoteCount, err = db.CountNotes(database, s.ID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return &HistoryOutput{Project: *project, Sessions: infos}, nil
}
