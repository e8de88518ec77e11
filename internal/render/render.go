// Package render formats engine output for the terminal.
package render

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/hpungsan/devctx/internal/ops"
	"github.com/hpungsan/devctx/internal/session"
)

// Renderer turns op outputs into styled terminal text.
type Renderer struct {
	title    lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	muted    lipgloss.Style
	active   lipgloss.Style
	warn     lipgloss.Style
	nextStep lipgloss.Style
}

// New creates a Renderer. With noColor set all styling is disabled and
// output is plain text.
func New(noColor bool) *Renderer {
	if noColor {
		plain := lipgloss.NewStyle()
		return &Renderer{
			title:    plain,
			label:    plain,
			value:    plain,
			muted:    plain,
			active:   plain,
			warn:     plain,
			nextStep: plain,
		}
	}
	return &Renderer{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("62")),
		value:    lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		warn:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		nextStep: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45")),
	}
}

// Status renders a project status report.
func (r *Renderer) Status(out *ops.StatusOutput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", r.title.Render(out.Project.Name), r.muted.Render(out.Project.Path))

	switch out.State {
	case ops.StateActive:
		fmt.Fprintf(&b, "%s session, running %s", r.active.Render("active"), out.Elapsed)
		if out.NoteCount > 0 {
			fmt.Fprintf(&b, " %s", r.muted.Render(fmt.Sprintf("(%d notes)", out.NoteCount)))
		}
		b.WriteString("\n")
		if out.Session != nil && out.Session.Degraded {
			fmt.Fprintf(&b, "%s\n", r.warn.Render("git capture degraded for this session"))
		}
	case ops.StateEnded:
		fmt.Fprintf(&b, "idle, last session ended %s\n", out.LastEnded)
		fmt.Fprintf(&b, "%s\n", r.muted.Render("run 'devctx resume' to pick up where you left off"))
	default:
		fmt.Fprintf(&b, "%s\n", r.muted.Render("no sessions yet, run 'devctx start'"))
	}

	return b.String()
}

// Resume renders the full resume context bundle.
func (r *Renderer) Resume(rc session.ResumeContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n\n",
		r.title.Render("Resuming "+rc.ProjectName),
		r.muted.Render("(away "+rc.TimeAway+")"))

	if rc.Summary != nil {
		fmt.Fprintf(&b, "%s\n%s\n\n", r.label.Render("Last session"), rc.Summary.Text)
		if rc.Summary.GeneratedBy == session.GeneratedByFallback {
			fmt.Fprintf(&b, "%s\n\n", r.muted.Render("(deterministic summary; model was unavailable)"))
		}
	}

	if len(rc.Notes) > 0 {
		fmt.Fprintf(&b, "%s\n", r.label.Render("Recent notes"))
		for _, n := range rc.Notes {
			fmt.Fprintf(&b, "  - %s\n", n.Text)
		}
		b.WriteString("\n")
	}

	if len(rc.TopFiles) > 0 {
		fmt.Fprintf(&b, "%s\n", r.label.Render("Most changed files"))
		for _, fc := range rc.TopFiles {
			fmt.Fprintf(&b, "  %s %s\n", fc.Path, r.muted.Render(fmt.Sprintf("(%d)", fc.ChangeCount)))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s %s\n", r.nextStep.Render("Next:"), rc.NextStep)

	return b.String()
}

// List renders the project table.
func (r *Renderer) List(out *ops.ListOutput) string {
	if len(out.Projects) == 0 {
		return r.muted.Render("no projects tracked, run 'devctx init' in a project directory") + "\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)
	for _, info := range out.Projects {
		state := r.muted.Render("idle")
		if info.Active {
			state = r.active.Render("active")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.title.Render(info.Project.Name),
			state,
			info.LastActive,
			r.muted.Render(info.Project.Path))
	}
	w.Flush()
	return b.String()
}

// History renders past sessions with their summaries.
func (r *Renderer) History(out *ops.HistoryOutput) string {
	if len(out.Sessions) == 0 {
		return r.muted.Render("no sessions recorded for "+out.Project.Name) + "\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", r.title.Render(out.Project.Name))
	for _, info := range out.Sessions {
		header := info.When
		if info.Duration != "" {
			header += ", " + info.Duration
		}
		if info.NoteCount > 0 {
			header += fmt.Sprintf(", %d notes", info.NoteCount)
		}
		if info.Session.Degraded {
			header += " " + r.warn.Render("[degraded]")
		}
		fmt.Fprintf(&b, "%s\n", r.label.Render(header))
		if info.Summary != nil {
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(info.Summary.Text, "\n", "\n  "))
		} else {
			fmt.Fprintf(&b, "  %s\n", r.muted.Render("still active, no summary yet"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Warning renders a degradation warning line.
func (r *Renderer) Warning(msg string) string {
	return r.warn.Render("warning: "+msg) + "\n"
}
