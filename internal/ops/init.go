package ops

import (
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// InitInput contains parameters for the Init operation.
type InitInput struct {
	Path string // required: project root path
	Name string // optional: defaults to the directory name
}

// InitOutput contains the result of the Init operation.
type InitOutput struct {
	Project session.Project `json:"project"`

	// Created is false when the path was already tracked; init is
	// idempotent and returns the existing record unchanged.
	Created bool `json:"created"`
}

// Init registers a project root for tracking. Calling it again for the
// same path returns the existing project.
func Init(database *sql.DB, input InitInput) (*InitOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	abs, err := filepath.Abs(input.Path)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid path: " + input.Path)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = filepath.Base(abs)
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	project, created, err := db.UpsertProject(database, &session.Project{
		ID:         id,
		Name:       name,
		Path:       abs,
		CreatedAt:  now,
		LastActive: now,
	})
	if err != nil {
		return nil, err
	}

	return &InitOutput{Project: *project, Created: created}, nil
}
