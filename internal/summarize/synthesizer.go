package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/session"
)

// Generator abstracts the local model service behind the synthesis
// interface. The engine never depends on the transport.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Available(ctx context.Context) bool
}

// SessionContext is the aggregated signal bundle a summary is built from.
type SessionContext struct {
	ProjectName string
	Commits     []session.CommitInfo
	FileChanges []session.FileChange
	Notes       []session.Note

	// PreviousSummary carries the prior session's summary for continuity.
	PreviousSummary string

	// Degraded marks that VCS capture failed and the commit/file signals
	// are incomplete.
	Degraded bool
}

// Synthesizer turns a session context into summary text, via the model
// when it cooperates and via a deterministic extractive template when it
// does not. Synthesize never fails: the stated guarantee is that the
// system works without the model, summaries just degrade.
type Synthesizer struct {
	gen          Generator
	timeout      time.Duration
	promptBudget int
	maxChars     int
}

// NewSynthesizer creates a Synthesizer. gen may be nil, which forces the
// fallback path (useful for tests and for a disabled model).
func NewSynthesizer(gen Generator, cfg *config.Config) *Synthesizer {
	return &Synthesizer{
		gen:          gen,
		timeout:      time.Duration(cfg.SummaryTimeoutSecs) * time.Second,
		promptBudget: cfg.PromptMaxChars,
		maxChars:     cfg.SummaryMaxChars,
	}
}

// Synthesize produces summary text for the session context and reports
// how it was generated. The model call runs under the configured timeout;
// callers must not hold a storage transaction open across this call.
func (s *Synthesizer) Synthesize(ctx context.Context, sc SessionContext) (string, session.GeneratedBy) {
	if s.gen == nil {
		return s.Fallback(sc), session.GeneratedByFallback
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.gen.Generate(callCtx, s.BuildPrompt(sc))
	if err != nil {
		return s.Fallback(sc), session.GeneratedByFallback
	}

	text := strings.TrimSpace(out)
	if text == "" {
		// A response with no content is a service failure, not a summary.
		return s.Fallback(sc), session.GeneratedByFallback
	}

	return truncate(text, s.maxChars), session.GeneratedByModel
}

// BuildPrompt renders the session context into a bounded prompt. When the
// rendered prompt exceeds the character budget, the oldest commits and
// notes are dropped first so the most recent signals survive.
func (s *Synthesizer) BuildPrompt(sc SessionContext) string {
	commits := sc.Commits
	notes := sc.Notes

	prompt := renderPrompt(sc, commits, notes)
	for len(prompt) > s.promptBudget && (len(commits) > 0 || len(notes) > 0) {
		// Commits and notes are ordered oldest-first; drop whichever
		// list has the older head.
		switch {
		case len(commits) == 0:
			notes = notes[1:]
		case len(notes) == 0:
			commits = commits[1:]
		case commits[0].Timestamp <= notes[0].CreatedAt:
			commits = commits[1:]
		default:
			notes = notes[1:]
		}
		prompt = renderPrompt(sc, commits, notes)
	}

	return prompt
}

func renderPrompt(sc SessionContext, commits []session.CommitInfo, notes []session.Note) string {
	var b strings.Builder

	b.WriteString("You are a helpful assistant that summarizes developer work sessions.\n\n")
	b.WriteString("Given the following context from a coding session, provide a brief summary ")
	b.WriteString("that will help the developer quickly resume their work later.\n\n")
	b.WriteString("Focus on:\n")
	b.WriteString("1. What was being worked on (specific features, bugs, files)\n")
	b.WriteString("2. What was accomplished\n")
	b.WriteString("3. What is still incomplete or blocked\n")
	b.WriteString("4. Suggested next steps\n\n")
	b.WriteString("Keep the summary concise (3-5 sentences) and actionable.\n\n")

	fmt.Fprintf(&b, "Project: %s\n\n", sc.ProjectName)

	if sc.PreviousSummary != "" {
		fmt.Fprintf(&b, "Previous session summary:\n%s\n\n", truncate(sc.PreviousSummary, 600))
	}

	if len(commits) > 0 {
		fmt.Fprintf(&b, "Commits (%d):\n", len(commits))
		for _, c := range commits {
			fmt.Fprintf(&b, "- %s\n", truncate(c.Message, 120))
		}
		b.WriteString("\n")
	}

	if len(sc.FileChanges) > 0 {
		b.WriteString("Most changed files:\n")
		for _, fc := range sc.FileChanges {
			fmt.Fprintf(&b, "- %s (%d lines)\n", fc.Path, fc.ChangeCount)
		}
		b.WriteString("\n")
	}

	if len(notes) > 0 {
		b.WriteString("Developer notes:\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n.Text)
		}
		b.WriteString("\n")
	}

	if sc.Degraded {
		b.WriteString("Note: version-control capture failed for this session; commit data may be incomplete.\n\n")
	}

	b.WriteString("Summary:")
	return b.String()
}

// Fallback builds a deterministic extractive summary from the most recent
// notes and most changed files. Always non-empty, even for a session with
// no recorded activity.
func (s *Synthesizer) Fallback(sc SessionContext) string {
	var b strings.Builder

	if len(sc.Commits) == 0 && len(sc.Notes) == 0 {
		fmt.Fprintf(&b, "Session on %s: no recorded activity (no commits or notes).", sc.ProjectName)
		if sc.Degraded {
			b.WriteString(" Version-control capture was unavailable.")
		}
		return truncate(b.String(), s.maxChars)
	}

	fmt.Fprintf(&b, "Session on %s: %d commit%s, %d file%s changed.",
		sc.ProjectName,
		len(sc.Commits), pluralSuffix(len(sc.Commits)),
		len(sc.FileChanges), pluralSuffix(len(sc.FileChanges)))

	if len(sc.Notes) > 0 {
		recent := sc.Notes
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		texts := make([]string, 0, len(recent))
		// Most recent first.
		for i := len(recent) - 1; i >= 0; i-- {
			texts = append(texts, recent[i].Text)
		}
		fmt.Fprintf(&b, " Notes: %s.", strings.Join(texts, "; "))
	}

	if len(sc.FileChanges) > 0 {
		parts := make([]string, 0, len(sc.FileChanges))
		for _, fc := range sc.FileChanges {
			parts = append(parts, fmt.Sprintf("%s (%d)", fc.Path, fc.ChangeCount))
		}
		fmt.Fprintf(&b, " Most changed: %s.", strings.Join(parts, ", "))
	}

	if sc.Degraded {
		b.WriteString(" Version-control capture was unavailable.")
	}

	return truncate(b.String(), s.maxChars)
}

func pluralSuffix(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// truncate bounds s to max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
