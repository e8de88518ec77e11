package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
	"github.com/hpungsan/devctx/internal/summarize"
)

// SummaryInput contains parameters for the Summary operation.
type SummaryInput struct {
	SessionID string // required
}

// SummaryOutput contains the result of the Summary operation.
type SummaryOutput struct {
	Text        string              `json:"text"`
	GeneratedBy session.GeneratedBy `json:"generated_by"`

	CommitCount  int  `json:"commit_count"`
	FilesChanged int  `json:"files_changed"`
	NoteCount    int  `json:"note_count"`
	Degraded     bool `json:"degraded,omitempty"`
}

// Summary produces an on-demand summary of an active session's progress
// so far. It is a pure read: nothing is persisted, the session stays
// active, and accumulated file-change tallies are left untouched. The
// delta is computed against the current working tree each call.
func Summary(ctx context.Context, database *sql.DB, cfg *config.Config, vcs Vcs, syn Synthesizer, input SummaryInput) (*SummaryOutput, error) {
	if input.SessionID == "" {
		return nil, errors.NewInvalidRequest("session_id is required")
	}

	s, err := db.GetSession(database, input.SessionID)
	if err != nil {
		return nil, err
	}
	if !s.Active() {
		return nil, errors.NewSessionNotActive(s.ID)
	}

	project, err := db.GetProject(database, s.ProjectID)
	if err != nil {
		return nil, err
	}

	delta, _ := captureDelta(ctx, vcs, cfg, project.Path, s.StartRef)

	notes, err := db.ListNotes(database, s.ID)
	if err != nil {
		return nil, err
	}

	text, generatedBy := syn.Synthesize(ctx, summarize.SessionContext{
		ProjectName: project.Name,
		Commits:     delta.Commits,
		FileChanges: rankFileChanges(delta.FileChanges, cfg.ResumeFileLimit),
		Notes:       notes,
		Degraded:    delta.Degraded,
	})

	return &SummaryOutput{
		Text:         text,
		GeneratedBy:  generatedBy,
		CommitCount:  len(delta.Commits),
		FilesChanged: len(delta.FileChanges),
		NoteCount:    len(notes),
		Degraded:     delta.Degraded,
	}, nil
}
