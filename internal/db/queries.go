package db

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// Project queries

// UpsertProject inserts a project for the given root path, or returns
// the existing record unchanged if the path is already tracked.
// The boolean result reports whether a new record was created.
func UpsertProject(db *sql.DB, p *session.Project) (*session.Project, bool, error) {
	res, err := db.Exec(
		`INSERT INTO projects (id, name, path, created_at, last_active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO NOTHING`,
		p.ID, p.Name, p.Path, p.CreatedAt, p.LastActive,
	)
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}

	existing, err := GetProjectByPath(db, p.Path)
	if err != nil {
		return nil, false, err
	}
	return existing, rows > 0, nil
}

// GetProject retrieves a project by ID.
func GetProject(db *sql.DB, id string) (*session.Project, error) {
	row := db.QueryRow(
		`SELECT id, name, path, created_at, last_active FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("project", id)
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return p, nil
}

// GetProjectByPath retrieves a project by its exact root path.
// Returns (nil, nil) when the path is not tracked.
func GetProjectByPath(db *sql.DB, path string) (*session.Project, error) {
	row := db.QueryRow(
		`SELECT id, name, path, created_at, last_active FROM projects WHERE path = ?`, path)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return p, nil
}

// ListProjects returns all tracked projects, most recently active first.
func ListProjects(db *sql.DB) ([]session.Project, error) {
	rows, err := db.Query(
		`SELECT id, name, path, created_at, last_active FROM projects ORDER BY last_active DESC, path ASC`)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	projects := make([]session.Project, 0)
	for rows.Next() {
		var p session.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.LastActive); err != nil {
			return nil, errors.NewInternal(err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return projects, nil
}

// TouchProject updates a project's last_active timestamp.
func TouchProject(db *sql.DB, projectID string, now int64) error {
	_, err := db.Exec(`UPDATE projects SET last_active = ? WHERE id = ?`, now, projectID)
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// Session queries

// CreateSessionIfNone atomically creates a session for the project unless
// an active one already exists, in which case the existing session is
// returned unchanged. The check-then-insert runs in a single transaction;
// the partial unique index on (project_id) WHERE status='active' is the
// backstop against racing writers from other processes.
// The boolean result reports whether a new session was created.
func CreateSessionIfNone(db *sql.DB, s *session.Session) (*session.Session, bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	defer tx.Rollback()

	existing, err := getActiveSession(tx, s.ProjectID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	_, err = tx.Exec(
		`INSERT INTO sessions (id, project_id, started_at, ended_at, status, start_ref, end_ref, degraded)
		 VALUES (?, ?, ?, NULL, ?, ?, NULL, ?)`,
		s.ID, s.ProjectID, s.StartedAt, session.StatusActive, s.StartRef, boolToInt(s.Degraded),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Another process won the race between our check and insert.
			tx.Rollback()
			winner, gerr := GetActiveSession(db, s.ProjectID)
			if gerr != nil {
				return nil, false, gerr
			}
			if winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, wrapStoreErr(err)
	}

	if _, err := tx.Exec(`UPDATE projects SET last_active = ? WHERE id = ?`, s.StartedAt, s.ProjectID); err != nil {
		return nil, false, wrapStoreErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, wrapStoreErr(err)
	}

	created := *s
	created.Status = session.StatusActive
	return &created, true, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

const sessionColumns = `id, project_id, started_at, ended_at, status, start_ref, end_ref, degraded`

// GetSession retrieves a session by ID.
func GetSession(db *sql.DB, id string) (*session.Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("session", id)
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return s, nil
}

// GetActiveSession retrieves the active session for a project.
// Returns (nil, nil) when no session is active: the common idle case.
func GetActiveSession(db *sql.DB, projectID string) (*session.Session, error) {
	return getActiveSession(db, projectID)
}

func getActiveSession(q querier, projectID string) (*session.Session, error) {
	row := q.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE project_id = ? AND status = ?`,
		projectID, session.StatusActive,
	)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return s, nil
}

// LatestEndedSession retrieves the most recently ended session for a project.
// Returns (nil, nil) when the project has never ended a session.
func LatestEndedSession(db *sql.DB, projectID string) (*session.Session, error) {
	row := db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE project_id = ? AND status = ?
		 ORDER BY ended_at DESC, id DESC LIMIT 1`,
		projectID, session.StatusEnded,
	)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return s, nil
}

// ListSessions returns a project's sessions, most recent first.
func ListSessions(db *sql.DB, projectID string, limit int) ([]session.Session, error) {
	rows, err := db.Query(
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE project_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	sessions := make([]session.Session, 0)
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return sessions, nil
}

// CompleteSession transitions an active session to ended and persists its
// file-change tallies and summary in one transaction. Fails with
// SESSION_NOT_ACTIVE when the session is missing or already ended; no
// mutation happens in that case. Tallies ride inside the guarded
// transaction so a losing concurrent end leaves no trace of them.
func CompleteSession(db *sql.DB, sessionID string, endedAt int64, endRef string, degraded bool, changes map[string]int, ceiling int, sum *session.Summary) error {
	tx, err := db.Begin()
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE sessions
		 SET status = ?, ended_at = ?, end_ref = ?, degraded = degraded | ?
		 WHERE id = ? AND status = ?`,
		session.StatusEnded, endedAt, endRef, boolToInt(degraded), sessionID, session.StatusActive,
	)
	if err != nil {
		return wrapStoreErr(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rows == 0 {
		return errors.NewSessionNotActive(sessionID)
	}

	if err := accumulateFileChanges(tx, sessionID, changes, ceiling); err != nil {
		return err
	}

	if err := upsertSummary(tx, sum); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE projects SET last_active = ? WHERE id = (SELECT project_id FROM sessions WHERE id = ?)`,
		endedAt, sessionID,
	); err != nil {
		return wrapStoreErr(err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// Note queries

// InsertNote appends a note to a session.
func InsertNote(db *sql.DB, n *session.Note) error {
	_, err := db.Exec(
		`INSERT INTO notes (id, session_id, created_at, text) VALUES (?, ?, ?, ?)`,
		n.ID, n.SessionID, n.CreatedAt, n.Text,
	)
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// ListNotes returns a session's notes oldest-first (insertion order).
func ListNotes(db *sql.DB, sessionID string) ([]session.Note, error) {
	return queryNotes(db,
		`SELECT id, session_id, created_at, text FROM notes
		 WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID)
}

// ListNotesRecent returns a session's notes most-recent-first, bounded.
func ListNotesRecent(db *sql.DB, sessionID string, limit int) ([]session.Note, error) {
	return queryNotes(db,
		`SELECT id, session_id, created_at, text FROM notes
		 WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit)
}

// CountNotes returns the number of notes on a session.
func CountNotes(db *sql.DB, sessionID string) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM notes WHERE session_id = ?`, sessionID).Scan(&n); err != nil {
		return 0, wrapStoreErr(err)
	}
	return n, nil
}

func queryNotes(db *sql.DB, query string, args ...any) ([]session.Note, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	notes := make([]session.Note, 0)
	for rows.Next() {
		var n session.Note
		if err := rows.Scan(&n.ID, &n.SessionID, &n.CreatedAt, &n.Text); err != nil {
			return nil, errors.NewInternal(err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return notes, nil
}

// File change queries

// AccumulateFileChanges adds per-file change deltas to a session's tallies
// in one transaction. Counts saturate at ceiling instead of growing unbounded.
// Accumulation is commutative: interleaved writers from separate processes
// converge on the same tallies regardless of commit order.
func AccumulateFileChanges(db *sql.DB, sessionID string, changes map[string]int, ceiling int) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback()

	if err := accumulateFileChanges(tx, sessionID, changes, ceiling); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func accumulateFileChanges(tx *sql.Tx, sessionID string, changes map[string]int, ceiling int) error {
	if len(changes) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(
		`INSERT INTO file_changes (session_id, path, change_count)
		 VALUES (?, ?, min(?, ?))
		 ON CONFLICT(session_id, path)
		 DO UPDATE SET change_count = min(change_count + excluded.change_count, ?)`)
	if err != nil {
		return wrapStoreErr(err)
	}
	defer stmt.Close()

	// Stable iteration order keeps failure behavior reproducible.
	paths := make([]string, 0, len(changes))
	for path := range changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		delta := changes[path]
		if delta <= 0 {
			continue
		}
		if _, err := stmt.Exec(sessionID, path, delta, ceiling, ceiling); err != nil {
			return wrapStoreErr(err)
		}
	}
	return nil
}

// TopFiles returns a session's file tallies ranked descending by change
// count, ties broken by path lexical order, bounded to limit.
func TopFiles(db *sql.DB, sessionID string, limit int) ([]session.FileChange, error) {
	rows, err := db.Query(
		`SELECT path, change_count FROM file_changes
		 WHERE session_id = ?
		 ORDER BY change_count DESC, path ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	files := make([]session.FileChange, 0)
	for rows.Next() {
		var fc session.FileChange
		if err := rows.Scan(&fc.Path, &fc.ChangeCount); err != nil {
			return nil, errors.NewInternal(err)
		}
		files = append(files, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return files, nil
}

// Summary queries

// SaveSummary persists a session summary with overwrite semantics:
// a regenerated summary replaces the previous one.
func SaveSummary(db *sql.DB, sum *session.Summary) error {
	tx, err := db.Begin()
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback()

	if err := upsertSummary(tx, sum); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func upsertSummary(tx *sql.Tx, sum *session.Summary) error {
	_, err := tx.Exec(
		`INSERT INTO summaries (id, session_id, text, generated_by, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id)
		 DO UPDATE SET text = excluded.text, generated_by = excluded.generated_by, created_at = excluded.created_at`,
		sum.ID, sum.SessionID, sum.Text, sum.GeneratedBy, sum.CreatedAt,
	)
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// GetSummary retrieves the summary for a session.
// Returns (nil, nil) when no summary has been persisted.
func GetSummary(db *sql.DB, sessionID string) (*session.Summary, error) {
	row := db.QueryRow(
		`SELECT id, session_id, text, generated_by, created_at FROM summaries WHERE session_id = ?`,
		sessionID,
	)
	var sum session.Summary
	err := row.Scan(&sum.ID, &sum.SessionID, &sum.Text, &sum.GeneratedBy, &sum.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return &sum, nil
}

// Scan helpers

func scanProject(row *sql.Row) (*session.Project, error) {
	var p session.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.LastActive); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSession(row *sql.Row) (*session.Session, error) {
	var s session.Session
	var endedAt sql.NullInt64
	var endRef sql.NullString
	var degraded int
	err := row.Scan(&s.ID, &s.ProjectID, &s.StartedAt, &endedAt, &s.Status, &s.StartRef, &endRef, &degraded)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Int64
	}
	if endRef.Valid {
		s.EndRef = &endRef.String
	}
	s.Degraded = degraded != 0
	return &s, nil
}

func scanSessionRows(rows *sql.Rows) (*session.Session, error) {
	var s session.Session
	var endedAt sql.NullInt64
	var endRef sql.NullString
	var degraded int
	err := rows.Scan(&s.ID, &s.ProjectID, &s.StartedAt, &endedAt, &s.Status, &s.StartRef, &endRef, &degraded)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Int64
	}
	if endRef.Valid {
		s.EndRef = &endRef.String
	}
	s.Degraded = degraded != 0
	return &s, nil
}

// Error helpers

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// wrapStoreErr classifies a database error: lock/busy contention surfaces
// as STORE_UNAVAILABLE, anything else as INTERNAL.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return errors.NewStoreUnavailable(err)
	}
	return errors.NewInternal(err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
