package web

import (
	"database/sql"
	"net/http"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleProjects handles GET /projects: list all tracked projects.
func (h *Handlers) HandleProjects(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "projects", ProjectsPageData{
		PageData: PageData{
			Title:   "Projects",
			Version: h.renderer.version,
			Nav:     "projects",
		},
		Projects: result.Projects,
	})
}

// HandleProjectDetail handles GET /projects/{id}: session history for
// one project, with rendered summaries.
func (h *Handlers) HandleProjectDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	status, err := ops.Status(h.db, ops.StatusInput{ProjectID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	history, err := ops.History(h.db, ops.HistoryInput{ProjectID: id, Limit: ops.MaxHistoryLimit})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	views := make([]SessionView, 0, len(history.Sessions))
	for _, info := range history.Sessions {
		view := SessionView{Info: info}
		if info.Summary != nil {
			view.SummaryHTML = renderMarkdown(info.Summary.Text)
		}
		views = append(views, view)
	}

	h.renderer.renderPage(w, r, "project", ProjectPageData{
		PageData: PageData{
			Title:   status.Project.Name,
			Version: h.renderer.version,
			Nav:     "projects",
		},
		Status:   status,
		Sessions: views,
	})
}

// HandleResume handles GET /projects/{id}/resume: the resume context
// for the project's last ended session.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result, err := ops.Resume(h.db, h.cfg, ops.ResumeInput{ProjectID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var summaryHTML = renderMarkdown("")
	if result.Context.Summary != nil {
		summaryHTML = renderMarkdown(result.Context.Summary.Text)
	}

	h.renderer.renderPage(w, r, "resume", ResumePageData{
		PageData: PageData{
			Title:   "Resume " + result.Context.ProjectName,
			Version: h.renderer.version,
			Nav:     "projects",
		},
		ProjectName: result.Context.ProjectName,
		Context:     result.Context,
		SummaryHTML: summaryHTML,
	})
}
