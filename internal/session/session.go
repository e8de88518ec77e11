package session

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// GeneratedBy marks how a summary was produced.
type GeneratedBy string

const (
	GeneratedByModel    GeneratedBy = "model"
	GeneratedByFallback GeneratedBy = "fallback"
)

// Project identifies a tracked repository root.
// At most one project exists per root path.
type Project struct {
	// ID is a ULID that uniquely identifies this project
	ID string `json:"id"`

	// Name is a human-readable label, defaulting to the directory name
	Name string `json:"name"`

	// Path is the absolute repository root path (unique)
	Path string `json:"path"`

	// CreatedAt is the Unix timestamp when tracking began
	CreatedAt int64 `json:"created_at"`

	// LastActive is the Unix timestamp of the most recent session activity
	LastActive int64 `json:"last_active"`
}

// Session is a bounded interval of work on a project.
// History is append-only: sessions transition to ended, never delete.
type Session struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	StartedAt int64  `json:"started_at"`

	// EndedAt is nil while the session is active
	EndedAt *int64 `json:"ended_at,omitempty"`

	Status Status `json:"status"`

	// StartRef is the VCS state marker captured at start
	StartRef string `json:"start_ref"`

	// EndRef is the VCS state marker captured at end (nil while active)
	EndRef *string `json:"end_ref,omitempty"`

	// Degraded is set when VCS capture failed at either boundary; the
	// session still carries whatever notes and deltas were recorded.
	Degraded bool `json:"degraded,omitempty"`
}

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return s.Status == StatusActive
}

// Note is an immutable timestamped free-text note on a session.
type Note struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	CreatedAt int64  `json:"created_at"`
	Text      string `json:"text"`
}

// Summary is the synthesized brief for an ended session.
// At most one summary exists per session; regeneration overwrites.
type Summary struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	Text        string      `json:"text"`
	GeneratedBy GeneratedBy `json:"generated_by"`
	CreatedAt   int64       `json:"created_at"`
}

// CommitInfo describes a single commit inside a delta.
type CommitInfo struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"`
}

// Delta is the set of version-control changes between two repository states.
type Delta struct {
	// Commits are ordered oldest-first
	Commits []CommitInfo `json:"commits"`

	// FileChanges maps file path to added+removed line count,
	// saturated at the configured cap
	FileChanges map[string]int `json:"file_changes"`

	// Degraded is true when capture failed and the delta is empty
	// best-effort rather than full fidelity
	Degraded bool `json:"degraded,omitempty"`

	// Reason carries the degradation cause for status output
	Reason string `json:"reason,omitempty"`
}

// FileChange is a ranked file entry derived from accumulated tallies.
type FileChange struct {
	Path        string `json:"path"`
	ChangeCount int    `json:"change_count"`
}

// ResumeContext is the transient bundle returned to re-orient a
// returning developer. It is assembled on demand and never persisted.
type ResumeContext struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	SessionID   string `json:"session_id"`

	// Summary of the latest ended session, nil when synthesis never ran
	Summary *Summary `json:"summary,omitempty"`

	// Notes are most-recent-first, bounded
	Notes []Note `json:"notes"`

	// TopFiles are descending by change count, ties broken lexically, bounded
	TopFiles []FileChange `json:"top_files"`

	// NextStep is a derived suggestion: the last note chronologically,
	// else a template over the top-ranked file
	NextStep string `json:"next_step"`

	// EndedAt is when the resumed session ended
	EndedAt int64 `json:"ended_at"`

	// TimeAway is EndedAt relative to wall-clock now at assembly time
	TimeAway string `json:"time_away"`
}
