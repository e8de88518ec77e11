package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/devctx/internal/errors"
)

func TestResume_AssemblesContext(t *testing.T) {
	database, cfg := testEngine(t)
	p := initProject(t, database, t.TempDir())
	s := startSession(t, database, cfg, cleanVcs(), p.ID)

	if _, err := Note(database, cfg, NoteInput{SessionID: s.ID, Text: "fix auth"}); err != nil {
		t.Fatalf("Note failed: %v", err)
	}
	if _, err := End(context.Background(), database, cfg, deltaVcs(), fallbackSynthesizer(cfg), EndInput{SessionID: s.ID}); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	out, err := Resume(database, cfg, ResumeInput{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	rc := out.Context
	if rc.SessionID != s.ID {
		t.Errorf("SessionID = %q, want %q", rc.SessionID, s.ID)
	}
	if rc.Summary == nil || rc.Summary.Text == "" {
		t.Error("Summary missing")
	}
	if len(rc.Notes) != 1 || rc.Notes[0].Text != "fix auth" {
		t.Errorf("Notes = %+v, want [fix auth]", rc.Notes)
	}
	if len(rc.TopFiles) != 2 || rc.TopFiles[0].Path != "a.py" || rc.TopFiles[1].Path != "b.py" {
		t.Errorf("TopFiles = %+v, want a.py then b.py", rc.TopFiles)
	}
	if rc.NextStep != "fix auth" {
		t.Errorf("NextStep = %q, want last note", rc.NextStep)
	}
	if rc.TimeAway == "" {
		t.Error("TimeAway is empty")
	}
}

func TestResume_NextStepFromTopFile(t *testing.T) {
	database, cfg := testEngine(t)
	p := initProject(t, database, t.TempDir())
	s := startSession(t, database, cfg, cleanVcs(), p.ID)

	if _, err := End(context.Background(), database, cfg, deltaVcs(), fallbackSynthesizer(cfg), EndInput{SessionID: s.ID}); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	out, err := Resume(database, cfg, ResumeInput{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if out.Context.NextStep != "review recent changes in a.py" {
		t.Errorf("NextStep = %q, want top-file template", out.Context.NextStep)
	}
}

func TestResume_NoteBound(t *testing.T) {
	database, cfg := testEngine(t)
	cfg.ResumeNoteLimit = 2
	p := initProject(t, database, t.TempDir())
	s := startSession(t, database, cfg, cleanVcs(), p.ID)

	for _, text := range []string{"first", "second", "third"} {
		if _, err := Note(database, cfg, NoteInput{SessionID: s.ID, Text: text}); err != nil {
			t.Fatalf("Note failed: %v", err)
		}
	}
	if _, err := End(context.Background(), database, cfg, cleanVcs(), fallbackSynthesizer(cfg), EndInput{SessionID: s.ID}); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	out, err := Resume(database, cfg, ResumeInput{ProjectID: p.ID})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	// bounded, most-recent-first
	if len(out.Context.Notes) != 2 {
		t.Fatalf("len(Notes) = %d, want 2", len(out.Context.Notes))
	}
	if out.Context.Notes[0].Text != "third" || out.Context.Notes[1].Text != "second" {
		t.Errorf("Notes = %q, %q, want third, second", out.Context.Notes[0].Text, out.Context.Notes[1].Text)
	}
	if out.Context.NextStep != "third" {
		t.Errorf("NextStep = %q, want third", out.Context.NextStep)
	}
}

func TestResume_NoHistory(t *testing.T) {
	database, cfg := testEngine(t)
	p := initProject(t, database, t.TempDir())

	_, err := Resume(database, cfg, ResumeInput{ProjectID: p.ID})
	if !errors.Is(err, errors.ErrNoHistory) {
		t.Errorf("want NO_HISTORY, got: %v", err)
	}

	// an active session alone is not history
	startSession(t, database, cfg, cleanVcs(), p.ID)
	_, err = Resume(database, cfg, ResumeInput{ProjectID: p.ID})
	if !errors.Is(err, errors.ErrNoHistory) {
		t.Errorf("want NO_HISTORY with only an active session, got: %v", err)
	}
}
