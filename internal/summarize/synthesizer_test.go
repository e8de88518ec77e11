package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/session"
)

// stubGenerator scripts Generate responses.
type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

func (g *stubGenerator) Available(context.Context) bool { return g.err == nil }

func testContext() SessionContext {
	return SessionContext{
		ProjectName: "myapp",
		Commits: []session.CommitInfo{
			{ID: "c1", Message: "fix auth check", Author: "alice", Timestamp: 1000},
			{ID: "c2", Message: "add retry", Author: "alice", Timestamp: 2000},
		},
		FileChanges: []session.FileChange{
			{Path: "a.py", ChangeCount: 12},
			{Path: "b.py", ChangeCount: 3},
		},
		Notes: []session.Note{
			{Text: "fix auth", CreatedAt: 1500},
		},
	}
}

func TestSynthesize_ModelSuccess(t *testing.T) {
	gen := &stubGenerator{response: "  Worked on auth fixes.  "}
	syn := NewSynthesizer(gen, config.DefaultConfig())

	text, by := syn.Synthesize(context.Background(), testContext())

	if by != session.GeneratedByModel {
		t.Errorf("generated_by = %q, want model", by)
	}
	if text != "Worked on auth fixes." {
		t.Errorf("text = %q, want trimmed model output", text)
	}
}

func TestSynthesize_ModelError_FallsBack(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("connection refused")}
	syn := NewSynthesizer(gen, config.DefaultConfig())

	text, by := syn.Synthesize(context.Background(), testContext())

	if by != session.GeneratedByFallback {
		t.Errorf("generated_by = %q, want fallback", by)
	}
	if text == "" {
		t.Error("fallback text must be non-empty")
	}
	if !strings.Contains(text, "2 commits") {
		t.Errorf("fallback should reference commit count: %q", text)
	}
	if !strings.Contains(text, "a.py (12)") {
		t.Errorf("fallback should rank most changed file first: %q", text)
	}
	if !strings.Contains(text, "fix auth") {
		t.Errorf("fallback should carry recent notes: %q", text)
	}
}

func TestSynthesize_EmptyModelOutput_FallsBack(t *testing.T) {
	gen := &stubGenerator{response: "   \n  "}
	syn := NewSynthesizer(gen, config.DefaultConfig())

	_, by := syn.Synthesize(context.Background(), testContext())
	if by != session.GeneratedByFallback {
		t.Errorf("generated_by = %q, want fallback on blank output", by)
	}
}

func TestSynthesize_NilGenerator_FallsBack(t *testing.T) {
	syn := NewSynthesizer(nil, config.DefaultConfig())

	text, by := syn.Synthesize(context.Background(), testContext())
	if by != session.GeneratedByFallback {
		t.Errorf("generated_by = %q, want fallback", by)
	}
	if text == "" {
		t.Error("fallback text must be non-empty")
	}
}

func TestSynthesize_TruncatesModelOverrun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SummaryMaxChars = 50
	gen := &stubGenerator{response: strings.Repeat("x", 500)}
	syn := NewSynthesizer(gen, cfg)

	text, by := syn.Synthesize(context.Background(), testContext())
	if by != session.GeneratedByModel {
		t.Errorf("generated_by = %q, want model", by)
	}
	if len(text) != 50 {
		t.Errorf("len(text) = %d, want ceiling 50", len(text))
	}
}

func TestFallback_NoActivity(t *testing.T) {
	syn := NewSynthesizer(nil, config.DefaultConfig())

	text := syn.Fallback(SessionContext{ProjectName: "idle"})
	if text == "" {
		t.Fatal("no-activity summary must still be non-empty")
	}
	if !strings.Contains(text, "no recorded activity") {
		t.Errorf("text = %q, want no-activity acknowledgement", text)
	}
}

func TestFallback_Deterministic(t *testing.T) {
	syn := NewSynthesizer(nil, config.DefaultConfig())
	sc := testContext()

	if syn.Fallback(sc) != syn.Fallback(sc) {
		t.Error("fallback must be deterministic for equal inputs")
	}
}

func TestBuildPrompt_DropsOldestWhenOverBudget(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PromptMaxChars = 900
	syn := NewSynthesizer(&stubGenerator{}, cfg)

	sc := SessionContext{ProjectName: "big"}
	for i := 0; i < 40; i++ {
		sc.Commits = append(sc.Commits, session.CommitInfo{
			ID:        fmt.Sprintf("c%d", i),
			Message:   fmt.Sprintf("commit number %d with a reasonably long subject line", i),
			Timestamp: int64(i),
		})
	}
	sc.Notes = []session.Note{{Text: "most recent note", CreatedAt: 10_000}}

	prompt := syn.BuildPrompt(sc)

	if len(prompt) > cfg.PromptMaxChars {
		t.Errorf("len(prompt) = %d, want <= %d", len(prompt), cfg.PromptMaxChars)
	}
	if !strings.Contains(prompt, "commit number 39") {
		t.Error("most recent commit must survive truncation")
	}
	if strings.Contains(prompt, "commit number 0 ") {
		t.Error("oldest commit should be dropped first")
	}
	if !strings.Contains(prompt, "most recent note") {
		t.Error("most recent note must survive truncation")
	}
}

func TestOllamaClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.1" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "summary text"})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3.1", 5*time.Second)
	out, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "summary text" {
		t.Errorf("out = %q", out)
	}
}

func TestOllamaClient_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3.1", 5*time.Second)
	if _, err := client.Generate(context.Background(), "prompt"); err == nil {
		t.Error("Generate should fail on non-200")
	}
}

func TestOllamaClient_Unreachable(t *testing.T) {
	// Port 1 is essentially never listening.
	client := NewOllamaClient("http://127.0.0.1:1", "llama3.1", 500*time.Millisecond)

	if client.Available(context.Background()) {
		t.Error("Available should be false when nothing listens")
	}
	if _, err := client.Generate(context.Background(), "prompt"); err == nil {
		t.Error("Generate should fail when nothing listens")
	}
}

func TestOllamaClient_HasModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.1:latest"},{"name":"qwen2.5:7b"}]}`)
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3.1", 5*time.Second)
	ok, err := client.HasModel(context.Background())
	if err != nil {
		t.Fatalf("HasModel failed: %v", err)
	}
	if !ok {
		t.Error("llama3.1 should match llama3.1:latest")
	}

	other := NewOllamaClient(srv.URL, "mistral", 5*time.Second)
	ok, err = other.HasModel(context.Background())
	if err != nil {
		t.Fatalf("HasModel failed: %v", err)
	}
	if ok {
		t.Error("mistral should not match")
	}
}
