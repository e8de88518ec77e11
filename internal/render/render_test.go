package render

import (
	"strings"
	"testing"

	"github.com/hpungsan/devctx/internal/ops"
	"github.com/hpungsan/devctx/internal/session"
)

func TestStatus_Active(t *testing.T) {
	r := New(true)
	out := r.Status(&ops.StatusOutput{
		Project:   session.Project{Name: "api", Path: "/work/api"},
		State:     ops.StateActive,
		Session:   &session.Session{Status: session.StatusActive},
		Elapsed:   "12m",
		NoteCount: 2,
	})

	if !strings.Contains(out, "active") || !strings.Contains(out, "12m") {
		t.Errorf("active state missing: %q", out)
	}
	if !strings.Contains(out, "2 notes") {
		t.Errorf("note count missing: %q", out)
	}
}

func TestStatus_NoSession(t *testing.T) {
	r := New(true)
	out := r.Status(&ops.StatusOutput{
		Project: session.Project{Name: "api", Path: "/work/api"},
		State:   ops.StateNoSession,
	})

	if !strings.Contains(out, "no sessions yet") {
		t.Errorf("empty state missing: %q", out)
	}
}

func TestResume_FullBundle(t *testing.T) {
	r := New(true)
	out := r.Resume(session.ResumeContext{
		ProjectName: "api",
		Summary:     &session.Summary{Text: "Fixed auth flow.", GeneratedBy: session.GeneratedByModel},
		Notes:       []session.Note{{Text: "fix auth"}},
		TopFiles:    []session.FileChange{{Path: "a.py", ChangeCount: 12}},
		NextStep:    "fix auth",
		TimeAway:    "2 hours ago",
	})

	for _, want := range []string{"Resuming api", "2 hours ago", "Fixed auth flow.", "fix auth", "a.py", "Next:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "deterministic summary") {
		t.Error("fallback notice shown for model summary")
	}
}

func TestResume_FallbackNotice(t *testing.T) {
	r := New(true)
	out := r.Resume(session.ResumeContext{
		ProjectName: "api",
		Summary:     &session.Summary{Text: "Session on api.", GeneratedBy: session.GeneratedByFallback},
		NextStep:    "carry on",
		TimeAway:    "just now",
	})

	if !strings.Contains(out, "deterministic summary") {
		t.Error("fallback notice missing")
	}
}

func TestList_Empty(t *testing.T) {
	r := New(true)
	out := r.List(&ops.ListOutput{})
	if !strings.Contains(out, "no projects tracked") {
		t.Errorf("empty message missing: %q", out)
	}
}

func TestHistory_RendersSummaries(t *testing.T) {
	r := New(true)
	out := r.History(&ops.HistoryOutput{
		Project: session.Project{Name: "api"},
		Sessions: []ops.SessionInfo{
			{
				Session:   session.Session{Status: session.StatusEnded},
				Summary:   &session.Summary{Text: "Shipped the login page."},
				NoteCount: 1,
				Duration:  "45m",
				When:      "2 days ago",
			},
		},
	})

	for _, want := range []string{"api", "2 days ago", "45m", "Shipped the login page."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
