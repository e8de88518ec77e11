package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. Project-addressed tools accept either an explicit
// project_id or a path resolved against tracked project roots.

var initToolDef = mcp.NewTool("devctx_init",
	mcp.WithDescription("Register a project root for session tracking. Idempotent: re-initializing an already tracked path returns the existing project."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Absolute or relative path to the project root"),
	),
	mcp.WithString("name",
		mcp.Description("Display name for the project (defaults to the directory name)"),
	),
)

var startToolDef = mcp.NewTool("devctx_start",
	mcp.WithDescription("Start a work session for a project, capturing the current git state. Idempotent: if a session is already active it is returned unchanged."),
	mcp.WithString("project_id",
		mcp.Description("Project identifier (from devctx_init or devctx_list)"),
	),
	mcp.WithString("path",
		mcp.Description("Path inside a tracked project, used to resolve the project when project_id is omitted"),
	),
)

var endToolDef = mcp.NewTool("devctx_end",
	mcp.WithDescription("End the project's active session: capture the git delta since start, synthesize a summary, and persist it."),
	mcp.WithString("project_id",
		mcp.Description("Project identifier"),
	),
	mcp.WithString("path",
		mcp.Description("Path inside a tracked project, used when project_id is omitted"),
	),
)

var noteToolDef = mcp.NewTool("devctx_note",
	mcp.WithDescription("Append a free-text note to the project's active session. Notes feed summaries and resume context."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Note text; blank notes are rejected, over-long notes are truncated"),
	),
	mcp.WithString("project_id",
		mcp.Description("Project identifier"),
	),
	mcp.WithString("path",
		mcp.Description("Path inside a tracked project, used when project_id is omitted"),
	),
)

var summaryToolDef = mcp.NewTool("devctx_summary",
	mcp.WithDescription("Preview a summary of the active session's progress so far. Read-only: nothing is persisted and the session stays active."),
	mcp.WithString("project_id",
		mcp.Description("Project identifier"),
	),
	mcp.WithString("path",
		mcp.Description("Path inside a tracked project, used when project_id is omitted"),
	),
)

var resumeToolDef = mcp.NewTool("devctx_resume",
	mcp.WithDescription("Assemble resume context from the project's last ended session: summary, recent notes, most-changed files, and a suggested next step."),
	mcp.WithString("project_id",
		mcp.Description("Project identifier"),
	),
	mcp.WithString("path",
		mcp.Description("Path inside a tracked project, used when project_id is omitted"),
	),
)

var statusToolDef = mcp.NewTool("devctx_status",
	mcp.WithDescription("Report the project's current session state: none, active (with elapsed time), or last ended."),
	mcp.WithString("project_id",
		mcp.Description("Project identifier"),
	),
	mcp.WithString("path",
		mcp.Description("Path inside a tracked project, used when project_id is omitted"),
	),
)

var listToolDef = mcp.NewTool("devctx_list",
	mcp.WithDescription("List all tracked projects with their activity state, most recently active first."),
)

var historyToolDef = mcp.NewTool("devctx_history",
	mcp.WithDescription("List a project's past sessions newest-first with their summaries."),
	mcp.WithString("project_id",
		mcp.Description("Project identifier"),
	),
	mcp.WithString("path",
		mcp.Description("Path inside a tracked project, used when project_id is omitted"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum sessions to return (default 5, max 50)"),
	),
)
