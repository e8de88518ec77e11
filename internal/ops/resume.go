package ops

import (
	"database/sql"
	"time"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// ResumeInput contains parameters for the Resume operation.
type ResumeInput struct {
	ProjectID string // required
}

// ResumeOutput contains the result of the Resume operation.
type ResumeOutput struct {
	Context session.ResumeContext `json:"context"`
}

// Resume assembles a context bundle from the project's most recently
// ended session: its summary, recent notes, most-changed files, and a
// suggested next step. The bundle is built on demand and never stored;
// two Resume calls may render different time-away text but identical
// underlying facts.
func Resume(database *sql.DB, cfg *config.Config, input ResumeInput) (*ResumeOutput, error) {
	if input.ProjectID == "" {
		return nil, errors.NewInvalidRequest("project_id is required")
	}

	project, err := db.GetProject(database, input.ProjectID)
	if err != nil {
		return nil, err
	}

	last, err := db.LatestEndedSession(database, project.ID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errors.NewNoHistory(project.ID)
	}

	summary, err := db.GetSummary(database, last.ID)
	if err != nil {
		return nil, err
	}

	notes, err := db.ListNotesRecent(database, last.ID, cfg.ResumeNoteLimit)
	if err != nil {
		return nil, err
	}

	topFiles, err := db.TopFiles(database, last.ID, cfg.ResumeFileLimit)
	if err != nil {
		return nil, err
	}

	var endedAt int64
	if last.EndedAt != nil {
		endedAt = *last.EndedAt
	}

	return &ResumeOutput{
		Context: session.ResumeContext{
			ProjectID:   project.ID,
			ProjectName: project.Name,
			SessionID:   last.ID,
			Summary:     summary,
			Notes:       notes,
			TopFiles:    topFiles,
			NextStep:    nextStep(notes, topFiles),
			EndedAt:     endedAt,
			TimeAway:    session.TimeAgo(endedAt, time.Now().Unix()),
		},
	}, nil
}

// nextStep derives a suggestion from the session's trail: the last note
// wins because notes are explicit intent, otherwise the most-changed file
// anchors a generic prompt.
func nextStep(recentNotes []session.Note, topFiles []session.FileChange) string {
	if len(recentNotes) > 0 {
		// recentNotes is most-recent-first
		return recentNotes[0].Text
	}
	if len(topFiles) > 0 {
		return "review recent changes in " + topFiles[0].Path
	}
	return "no recorded activity; review the project and start a session"
}
