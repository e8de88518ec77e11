package ops

import (
	"database/sql"
	"time"

	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/session"
)

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Projects []ProjectInfo `json:"projects"`
}

// ProjectInfo is a project row enriched with activity state for display.
type ProjectInfo struct {
	Project    session.Project `json:"project"`
	Active     bool            `json:"active"`
	LastActive string          `json:"last_active"`
}

// List returns every tracked project, most recently active first.
func List(database *sql.DB) (*ListOutput, error) {
	projects, err := db.ListProjects(database)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	infos := make([]ProjectInfo, 0, len(projects))
	for _, p := range projects {
		active, err := db.GetActiveSession(database, p.ID)
		if err != nil {
			return nil, err
		}
		infos = append(infos, ProjectInfo{
			Project:    p,
			Active:     active != nil,
			LastActive: session.TimeAgo(p.LastActive, now),
		})
	}

	return &ListOutput{Projects: infos}, nil
}
