package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// StartInput contains parameters for the Start operation.
type StartInput struct {
	ProjectID string // required
}

// StartOutput contains the result of the Start operation.
type StartOutput struct {
	Session session.Session `json:"session"`

	// Created is false when an active session already existed; start is
	// idempotent so a restart after a crash re-joins that session
	// instead of orphaning it.
	Created bool `json:"created"`

	// VcsWarning is set when the starting snapshot could not be
	// captured. The session still starts, flagged degraded.
	VcsWarning string `json:"vcs_warning,omitempty"`
}

// Start begins a work session for the project, capturing a VCS snapshot
// as the session's starting state marker. If an active session already
// exists it is returned unchanged. VCS failures degrade the session but
// never abort it.
func Start(ctx context.Context, database *sql.DB, cfg *config.Config, vcs Vcs, input StartInput) (*StartOutput, error) {
	if input.ProjectID == "" {
		return nil, errors.NewInvalidRequest("project_id is required")
	}

	project, err := db.GetProject(database, input.ProjectID)
	if err != nil {
		return nil, err
	}

	startRef := ""
	warning := ""
	degraded := false
	if ref, err := vcs.Snapshot(ctx, project.Path); err != nil {
		warning = err.Error()
		degraded = true
	} else {
		startRef = ref
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	s, created, err := db.CreateSessionIfNone(database, &session.Session{
		ID:        id,
		ProjectID: project.ID,
		StartedAt: time.Now().Unix(),
		Status:    session.StatusActive,
		StartRef:  startRef,
		Degraded:  degraded,
	})
	if err != nil {
		return nil, err
	}

	out := &StartOutput{Session: *s, Created: created}
	if created {
		out.VcsWarning = warning
	}
	return out, nil
}
