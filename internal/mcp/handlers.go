package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/ops"
	"github.com/hpungsan/devctx/internal/session"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
	vcs ops.Vcs
	syn ops.Synthesizer
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(database *sql.DB, cfg *config.Config, vcs ops.Vcs, syn ops.Synthesizer) *Handlers {
	return &Handlers{db: database, cfg: cfg, vcs: vcs, syn: syn}
}

// Request types for each tool

// InitRequest represents the arguments for init.
type InitRequest struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// ProjectRequest addresses a project by id or by a path inside it.
type ProjectRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Path      string `json:"path,omitempty"`
}

// NoteRequest represents the arguments for note.
type NoteRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Path      string `json:"path,omitempty"`
	Text      string `json:"text"`
}

// HistoryRequest represents the arguments for history.
type HistoryRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Path      string `json:"path,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// resolveProject maps a request to a tracked project: explicit id wins,
// then the given path, then the process working directory.
func (h *Handlers) resolveProject(projectID, path string) (*session.Project, error) {
	if projectID != "" {
		return db.GetProject(h.db, projectID)
	}
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		path = cwd
	}
	return ops.ResolveProject(h.db, path)
}

// activeSession returns the project's active session or SESSION_NOT_ACTIVE.
func (h *Handlers) activeSession(projectID string) (*session.Session, error) {
	s, err := db.GetActiveSession(h.db, projectID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.NewSessionNotActive(projectID)
	}
	return s, nil
}

// Handler implementations

// HandleInit handles the init tool call.
func (h *Handlers) HandleInit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Init(h.db, ops.InitInput{Path: input.Path, Name: input.Name})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStart handles the start tool call.
func (h *Handlers) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	project, err := h.resolveProject(input.ProjectID, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Start(ctx, h.db, h.cfg, h.vcs, ops.StartInput{ProjectID: project.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEnd handles the end tool call.
func (h *Handlers) HandleEnd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	project, err := h.resolveProject(input.ProjectID, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	active, err := h.activeSession(project.ID)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.End(ctx, h.db, h.cfg, h.vcs, h.syn, ops.EndInput{SessionID: active.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleNote handles the note tool call. When no session is active and
// auto-start is enabled, a session is started first so a quick thought
// never gets lost to ceremony.
func (h *Handlers) HandleNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NoteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	project, err := h.resolveProject(input.ProjectID, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	active, err := db.GetActiveSession(h.db, project.ID)
	if err != nil {
		return errorResult(err), nil
	}
	if active == nil {
		if h.cfg.DisableAutoStart {
			return errorResult(errors.NewSessionNotActive(project.ID)), nil
		}
		started, err := ops.Start(ctx, h.db, h.cfg, h.vcs, ops.StartInput{ProjectID: project.ID})
		if err != nil {
			return errorResult(err), nil
		}
		active = &started.Session
	}

	result, err := ops.Note(h.db, h.cfg, ops.NoteInput{SessionID: active.ID, Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummary handles the summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	project, err := h.resolveProject(input.ProjectID, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	active, err := h.activeSession(project.ID)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Summary(ctx, h.db, h.cfg, h.vcs, h.syn, ops.SummaryInput{SessionID: active.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleResume handles the resume tool call.
func (h *Handlers) HandleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	project, err := h.resolveProject(input.ProjectID, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Resume(h.db, h.cfg, ops.ResumeInput{ProjectID: project.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStatus handles the status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProjectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	project, err := h.resolveProject(input.ProjectID, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Status(h.db, ops.StatusInput{ProjectID: project.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.List(h.db)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	project, err := h.resolveProject(input.ProjectID, input.Path)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{ProjectID: project.ID, Limit: input.Limit})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if derr, ok := err.(*errors.DevctxError); ok {
		errorObj := map[string]any{
			"code":    derr.Code,
			"message": derr.Message,
			"status":  derr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if derr.Code != errors.ErrInternal && derr.Details != nil {
			errorObj["details"] = derr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
