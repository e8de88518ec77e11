package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
	"github.com/hpungsan/devctx/internal/summarize"
)

// History bounds
const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 50
)

// Vcs captures repository state. Satisfied by *gitx.Client; injectable
// so tests can script repository behavior.
type Vcs interface {
	Snapshot(ctx context.Context, repoRoot string) (string, error)
	Delta(ctx context.Context, repoRoot, fromRef, toRef string, ceiling int) (*session.Delta, error)
}

// Synthesizer produces summary text from a session context. Satisfied by
// *summarize.Synthesizer.
type Synthesizer interface {
	Synthesize(ctx context.Context, sc summarize.SessionContext) (string, session.GeneratedBy)
}

// Shared monotonic entropy so IDs minted within the same millisecond
// still sort in mint order. Note listing breaks created_at ties on id,
// which makes this ordering contractual, not cosmetic.
var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// generateULID generates a new ULID.
func generateULID() (string, error) {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulidEntropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// rankFileChanges orders a path->count map by count descending, path
// ascending for ties, bounded to limit.
func rankFileChanges(changes map[string]int, limit int) []session.FileChange {
	ranked := make([]session.FileChange, 0, len(changes))
	for path, count := range changes {
		ranked = append(ranked, session.FileChange{Path: path, ChangeCount: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ChangeCount != ranked[j].ChangeCount {
			return ranked[i].ChangeCount > ranked[j].ChangeCount
		}
		return ranked[i].Path < ranked[j].Path
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// ResolveProject finds the tracked project owning startPath: first by
// exact match, then by walking up the directory tree so invocations from
// a subdirectory find the parent project.
func ResolveProject(database *sql.DB, startPath string) (*session.Project, error) {
	current, err := filepath.Abs(startPath)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid path: " + startPath)
	}

	for {
		p, err := db.GetProjectByPath(database, current)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, errors.NewNotFound("project", startPath)
		}
		current = parent
	}
}
