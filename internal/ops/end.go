package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
	"github.com/hpungsan/devctx/internal/summarize"
)

// EndInput contains parameters for the End operation.
type EndInput struct {
	SessionID string // required
}

// EndOutput contains the result of the End operation.
type EndOutput struct {
	Session session.Session `json:"session"`
	Summary session.Summary `json:"summary"`

	// CommitCount and FilesChanged describe the captured delta.
	CommitCount  int `json:"commit_count"`
	FilesChanged int `json:"files_changed"`

	// Degraded is true when VCS capture failed and the delta is empty
	// best-effort. The session still ends with a summary.
	Degraded bool `json:"degraded,omitempty"`

	// VcsWarning carries the degradation cause for display.
	VcsWarning string `json:"vcs_warning,omitempty"`
}

// End closes an active session: computes the VCS delta since start,
// synthesizes a summary, and persists tallies, summary, and ended state
// in one status-guarded transaction. The model call runs before that
// transaction opens, never inside it.
//
// A session with no commits and no notes still gets a summary
// acknowledging the lack of activity; resume must never see a silently
// missing session.
func End(ctx context.Context, database *sql.DB, cfg *config.Config, vcs Vcs, syn Synthesizer, input EndInput) (*EndOutput, error) {
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

	delta, endRef := captureDelta(ctx, vcs, cfg, project.Path, s.StartRef)

	notes, err := db.ListNotes(database, s.ID)
	if err != nil {
		return nil, err
	}

	topFiles := rankFileChanges(delta.FileChanges, cfg.ResumeFileLimit)

	previous := ""
	if last, err := db.LatestEndedSession(database, project.ID); err == nil && last != nil {
		if prevSum, err := db.GetSummary(database, last.ID); err == nil && prevSum != nil {
			previous = prevSum.Text
		}
	}

	text, generatedBy := syn.Synthesize(ctx, summarize.SessionContext{
		ProjectName:     project.Name,
		Commits:         delta.Commits,
		FileChanges:     topFiles,
		Notes:           notes,
		PreviousSummary: previous,
		Degraded:        delta.Degraded,
	})

	sumID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	now := time.Now().Unix()
	summary := session.Summary{
		ID:          sumID,
		SessionID:   s.ID,
		Text:        text,
		GeneratedBy: generatedBy,
		CreatedAt:   now,
	}

	if err := db.CompleteSession(database, s.ID, now, endRef, delta.Degraded, delta.FileChanges, cfg.FileChangeCap, &summary); err != nil {
		return nil, err
	}

	ended, err := db.GetSession(database, s.ID)
	if err != nil {
		return nil, err
	}

	return &EndOutput{
		Session:      *ended,
		Summary:      summary,
		CommitCount:  len(delta.Commits),
		FilesChanged: len(delta.FileChanges),
		Degraded:     delta.Degraded,
		VcsWarning:   delta.Reason,
	}, nil
}

// captureDelta snapshots the repository and computes the delta since
// startRef. Capture failures are non-fatal: the result is an empty delta
// flagged degraded, and the session lifecycle proceeds. Losing a commit
// log is preferable to losing session continuity.
func captureDelta(ctx context.Context, vcs Vcs, cfg *config.Config, repoRoot, startRef string) (*session.Delta, string) {
	if startRef == "" {
		return degradedDelta("starting snapshot unavailable"), ""
	}

	endRef, err := vcs.Snapshot(ctx, repoRoot)
	if err != nil {
		return degradedDelta(err.Error()), ""
	}

	delta, err := vcs.Delta(ctx, repoRoot, startRef, endRef, cfg.FileChangeCap)
	if err != nil {
		return degradedDelta(err.Error()), endRef
	}

	return delta, endRef
}

func degradedDelta(reason string) *session.Delta {
	return &session.Delta{
		Commits:     []session.CommitInfo{},
		FileChanges: map[string]int{},
		Degraded:    true,
		Reason:      reason,
	}
}
