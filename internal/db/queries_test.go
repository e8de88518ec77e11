package db

import (
	"crypto/rand"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

var (
	testULIDMu      sync.Mutex
	testULIDEntropy = ulid.Monotonic(rand.Reader, 0)
)

func newULID(t *testing.T) string {
	t.Helper()
	testULIDMu.Lock()
	defer testULIDMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), testULIDEntropy)
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	return id.String()
}

func testProject(t *testing.T, database *sql.DB, path string) *session.Project {
	t.Helper()
	now := time.Now().Unix()
	p, _, err := UpsertProject(database, &session.Project{
		ID:         newULID(t),
		Name:       "proj",
		Path:       path,
		CreatedAt:  now,
		LastActive: now,
	})
	if err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}
	return p
}

func activeSession(t *testing.T, database *sql.DB, projectID string) *session.Session {
	t.Helper()
	s, created, err := CreateSessionIfNone(database, &session.Session{
		ID:        newULID(t),
		ProjectID: projectID,
		StartedAt: time.Now().Unix(),
		StartRef:  "abc1234",
	})
	if err != nil {
		t.Fatalf("CreateSessionIfNone failed: %v", err)
	}
	if !created {
		t.Fatal("expected a new session")
	}
	return s
}

func TestUpsertProject_Idempotent(t *testing.T) {
	database := testDB(t)

	first := testProject(t, database, "/repo/alpha")

	now := time.Now().Unix()
	second, created, err := UpsertProject(database, &session.Project{
		ID:         newULID(t),
		Name:       "renamed",
		Path:       "/repo/alpha",
		CreatedAt:  now,
		LastActive: now,
	})
	if err != nil {
		t.Fatalf("second UpsertProject failed: %v", err)
	}

	if created {
		t.Error("second upsert should not create a new project")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %q, want existing %q", second.ID, first.ID)
	}
	if second.Name != "proj" {
		t.Errorf("Name = %q, existing record must stay unchanged", second.Name)
	}
}

func TestCreateSessionIfNone_Idempotent(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")

	first := activeSession(t, database, p.ID)

	second, created, err := CreateSessionIfNone(database, &session.Session{
		ID:        newULID(t),
		ProjectID: p.ID,
		StartedAt: time.Now().Unix(),
		StartRef:  "def5678",
	})
	if err != nil {
		t.Fatalf("second CreateSessionIfNone failed: %v", err)
	}

	if created {
		t.Error("second call should return the existing session")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %q, want existing %q", second.ID, first.ID)
	}
	if second.StartRef != "abc1234" {
		t.Errorf("StartRef = %q, want original abc1234", second.StartRef)
	}
}

func TestCreateSessionIfNone_ConcurrentSingleWinner(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, _, err := CreateSessionIfNone(database, &session.Session{
				ID:        newULID(t),
				ProjectID: p.ID,
				StartedAt: time.Now().Unix(),
			})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = s.ID
		}(i)
	}
	wg.Wait()

	var winner string
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error: %v", i, errs[i])
		}
		if winner == "" {
			winner = ids[i]
		}
		if ids[i] != winner {
			t.Fatalf("workers observed different sessions: %q vs %q", ids[i], winner)
		}
	}

	var count int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE project_id = ? AND status = 'active'`, p.ID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("active sessions = %d, want 1", count)
	}
}

func TestCompleteSession_EndsAndSavesSummary(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")
	s := activeSession(t, database, p.ID)

	sum := &session.Summary{
		ID:          newULID(t),
		SessionID:   s.ID,
		Text:        "worked on auth",
		GeneratedBy: session.GeneratedByFallback,
		CreatedAt:   time.Now().Unix(),
	}

	if err := CompleteSession(database, s.ID, time.Now().Unix(), "def5678", false, map[string]int{"auth.go": 7}, 500, sum); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}

	got, err := GetSession(database, s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != session.StatusEnded {
		t.Errorf("Status = %q, want ended", got.Status)
	}
	if got.EndedAt == nil {
		t.Error("EndedAt should be set")
	}
	if got.EndRef == nil || *got.EndRef != "def5678" {
		t.Errorf("EndRef = %v, want def5678", got.EndRef)
	}

	saved, err := GetSummary(database, s.ID)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if saved == nil || saved.Text != "worked on auth" {
		t.Errorf("summary = %+v, want text %q", saved, "worked on auth")
	}

	top, err := TopFiles(database, s.ID, 10)
	if err != nil {
		t.Fatalf("TopFiles failed: %v", err)
	}
	if len(top) != 1 || top[0].Path != "auth.go" || top[0].ChangeCount != 7 {
		t.Errorf("tallies = %+v, want auth.go 7", top)
	}
}

func TestCompleteSession_NotActive(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")
	s := activeSession(t, database, p.ID)

	sum := &session.Summary{
		ID: newULID(t), SessionID: s.ID, Text: "x",
		GeneratedBy: session.GeneratedByFallback, CreatedAt: time.Now().Unix(),
	}
	if err := CompleteSession(database, s.ID, time.Now().Unix(), "", false, nil, 500, sum); err != nil {
		t.Fatalf("first CompleteSession failed: %v", err)
	}

	sum2 := &session.Summary{
		ID: newULID(t), SessionID: s.ID, Text: "y",
		GeneratedBy: session.GeneratedByFallback, CreatedAt: time.Now().Unix(),
	}
	err := CompleteSession(database, s.ID, time.Now().Unix(), "", false, map[string]int{"auth.go": 7}, 500, sum2)
	if !errors.Is(err, errors.ErrSessionNotActive) {
		t.Fatalf("err = %v, want SESSION_NOT_ACTIVE", err)
	}

	// No mutation: the first summary survives.
	saved, err := GetSummary(database, s.ID)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if saved.Text != "x" {
		t.Errorf("summary text = %q, want %q (no mutation on failed end)", saved.Text, "x")
	}

	// The losing call's tallies do not persist either.
	top, err := TopFiles(database, s.ID, 10)
	if err != nil {
		t.Fatalf("TopFiles failed: %v", err)
	}
	if len(top) != 0 {
		t.Errorf("tallies = %+v, want none after failed end", top)
	}
}

func TestAccumulateFileChanges_SaturatesAtCap(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")
	s := activeSession(t, database, p.ID)

	if err := AccumulateFileChanges(database, s.ID, map[string]int{"a.go": 300, "b.go": 10}, 500); err != nil {
		t.Fatalf("first accumulate failed: %v", err)
	}
	if err := AccumulateFileChanges(database, s.ID, map[string]int{"a.go": 400, "b.go": 5}, 500); err != nil {
		t.Fatalf("second accumulate failed: %v", err)
	}

	files, err := TopFiles(database, s.ID, 10)
	if err != nil {
		t.Fatalf("TopFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("len(files) = %d, want 2", len(files))
	}
	if files[0].Path != "a.go" || files[0].ChangeCount != 500 {
		t.Errorf("files[0] = %+v, want a.go saturated at 500", files[0])
	}
	if files[1].Path != "b.go" || files[1].ChangeCount != 15 {
		t.Errorf("files[1] = %+v, want b.go with 15", files[1])
	}
}

func TestTopFiles_TiesBreakLexically(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")
	s := activeSession(t, database, p.ID)

	changes := map[string]int{"zeta.go": 7, "alpha.go": 7, "mid.go": 9}
	if err := AccumulateFileChanges(database, s.ID, changes, 500); err != nil {
		t.Fatalf("accumulate failed: %v", err)
	}

	files, err := TopFiles(database, s.ID, 10)
	if err != nil {
		t.Fatalf("TopFiles failed: %v", err)
	}

	want := []string{"mid.go", "alpha.go", "zeta.go"}
	for i, path := range want {
		if files[i].Path != path {
			t.Errorf("files[%d].Path = %q, want %q", i, files[i].Path, path)
		}
	}
}

func TestSaveSummary_Overwrites(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")
	s := activeSession(t, database, p.ID)

	first := &session.Summary{
		ID: newULID(t), SessionID: s.ID, Text: "first",
		GeneratedBy: session.GeneratedByFallback, CreatedAt: time.Now().Unix(),
	}
	if err := SaveSummary(database, first); err != nil {
		t.Fatalf("first SaveSummary failed: %v", err)
	}

	second := &session.Summary{
		ID: newULID(t), SessionID: s.ID, Text: "second",
		GeneratedBy: session.GeneratedByModel, CreatedAt: time.Now().Unix(),
	}
	if err := SaveSummary(database, second); err != nil {
		t.Fatalf("second SaveSummary failed: %v", err)
	}

	got, err := GetSummary(database, s.ID)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.Text != "second" || got.GeneratedBy != session.GeneratedByModel {
		t.Errorf("summary = %+v, want overwritten by second", got)
	}

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM summaries WHERE session_id = ?`, s.ID).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("summaries = %d, want 1 per session", count)
	}
}

func TestNotes_InsertionOrderAndRecent(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")
	s := activeSession(t, database, p.ID)

	base := time.Now().Unix()
	for i, text := range []string{"first", "second", "third"} {
		err := InsertNote(database, &session.Note{
			ID:        newULID(t),
			SessionID: s.ID,
			CreatedAt: base + int64(i),
			Text:      text,
		})
		if err != nil {
			t.Fatalf("InsertNote failed: %v", err)
		}
	}

	asc, err := ListNotes(database, s.ID)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(asc) != 3 || asc[0].Text != "first" || asc[2].Text != "third" {
		t.Errorf("ListNotes order wrong: %+v", asc)
	}

	recent, err := ListNotesRecent(database, s.ID, 2)
	if err != nil {
		t.Fatalf("ListNotesRecent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != "third" || recent[1].Text != "second" {
		t.Errorf("ListNotesRecent order wrong: %+v", recent)
	}
}

func TestLatestEndedSession_NoneAndSome(t *testing.T) {
	database := testDB(t)
	p := testProject(t, database, "/repo/alpha")

	got, err := LatestEndedSession(database, p.ID)
	if err != nil {
		t.Fatalf("LatestEndedSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for project with no ended sessions, got %+v", got)
	}

	s := activeSession(t, database, p.ID)
	sum := &session.Summary{
		ID: newULID(t), SessionID: s.ID, Text: "x",
		GeneratedBy: session.GeneratedByFallback, CreatedAt: time.Now().Unix(),
	}
	if err := CompleteSession(database, s.ID, time.Now().Unix(), "", false, nil, 500, sum); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}

	got, err = LatestEndedSession(database, p.ID)
	if err != nil {
		t.Fatalf("LatestEndedSession failed: %v", err)
	}
	if got == nil || got.ID != s.ID {
		t.Errorf("LatestEndedSession = %+v, want session %q", got, s.ID)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	database := testDB(t)

	_, err := GetProject(database, "01JUNKJUNKJUNKJUNKJUNKJUNK")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}
