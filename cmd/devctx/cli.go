package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/ops"
	"github.com/hpungsan/devctx/internal/render"
	"github.com/hpungsan/devctx/internal/session"
	"github.com/hpungsan/devctx/internal/summarize"
	"github.com/hpungsan/devctx/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config, vcs ops.Vcs, syn ops.Synthesizer) *cli.App {
	app := &cli.App{
		Name:    "devctx",
		Usage:   "Session tracking and resume context for developers",
		Version: Version,
		Commands: []*cli.Command{
			initCmd(database),
			startCmd(database, cfg, vcs),
			endCmd(database, cfg, vcs, syn),
			noteCmd(database, cfg, vcs),
			summaryCmd(database, cfg, vcs, syn),
			resumeCmd(database, cfg),
			statusCmd(database, cfg),
			listCmd(database, cfg),
			historyCmd(database, cfg),
			doctorCmd(database, cfg),
			webCmd(database, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// projectFlag addresses a project explicitly instead of resolving from
// the working directory.
func projectFlag() cli.Flag {
	return &cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Project ID (defaults to the project owning the current directory)"}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output JSON instead of formatted text"}
}

// resolveProject finds the addressed project: the --project flag wins,
// otherwise the working directory is resolved against tracked roots.
func resolveProject(c *cli.Context, database *sql.DB) (*session.Project, error) {
	if id := c.String("project"); id != "" {
		return db.GetProject(database, id)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return ops.ResolveProject(database, cwd)
}

// activeSession returns the project's active session or SESSION_NOT_ACTIVE.
func activeSession(database *sql.DB, projectID string) (*session.Session, error) {
	s, err := db.GetActiveSession(database, projectID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.NewSessionNotActive(projectID)
	}
	return s, nil
}

func newRenderer(c *cli.Context, cfg *config.Config) *render.Renderer {
	return render.New(cfg.NoColor || os.Getenv("NO_COLOR") != "")
}

// initCmd creates the init command.
func initCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Register a project for session tracking",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Project display name (defaults to the directory name)"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				path = cwd
			}

			output, err := ops.Init(database, ops.InitInput{Path: path, Name: c.String("name")})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			if output.Created {
				fmt.Printf("Tracking %s at %s\n", output.Project.Name, output.Project.Path)
			} else {
				fmt.Printf("Already tracking %s at %s\n", output.Project.Name, output.Project.Path)
			}
			return nil
		},
	}
}

// startCmd creates the start command.
func startCmd(database *sql.DB, cfg *config.Config, vcs ops.Vcs) *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start a work session",
		Flags: []cli.Flag{projectFlag(), jsonFlag()},
		Action: func(c *cli.Context) error {
			project, err := resolveProject(c, database)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Start(c.Context, database, cfg, vcs, ops.StartInput{ProjectID: project.ID})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			r := newRenderer(c, cfg)
			if output.Created {
				fmt.Printf("Session started on %s\n", project.Name)
			} else {
				fmt.Printf("Session already running on %s\n", project.Name)
			}
			if output.VcsWarning != "" {
				fmt.Print(r.Warning(output.VcsWarning))
			}
			return nil
		},
	}
}

// endCmd creates the end command.
func endCmd(database *sql.DB, cfg *config.Config, vcs ops.Vcs, syn ops.Synthesizer) *cli.Command {
	return &cli.Command{
		Name:  "end",
		Usage: "End the active session and synthesize a summary",
		Flags: []cli.Flag{projectFlag(), jsonFlag()},
		Action: func(c *cli.Context) error {
			project, err := resolveProject(c, database)
			if err != nil {
				return outputError(err)
			}
			active, err := activeSession(database, project.ID)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.End(c.Context, database, cfg, vcs, syn, ops.EndInput{SessionID: active.ID})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			r := newRenderer(c, cfg)
			fmt.Printf("Session ended: %d commits, %d files changed\n\n", output.CommitCount, output.FilesChanged)
			fmt.Println(output.Summary.Text)
			if output.Degraded {
				fmt.Print(r.Warning(output.VcsWarning))
			}
			return nil
		},
	}
}

// noteCmd creates the note command.
func noteCmd(database *sql.DB, cfg *config.Config, vcs ops.Vcs) *cli.Command {
	return &cli.Command{
		Name:      "note",
		Usage:     "Append a note to the active session (starts one if needed)",
		ArgsUsage: "<text>",
		Flags:     []cli.Flag{projectFlag(), jsonFlag()},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				piped, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				text = piped
			}

			project, err := resolveProject(c, database)
			if err != nil {
				return outputError(err)
			}

			active, err := db.GetActiveSession(database, project.ID)
			if err != nil {
				return outputError(err)
			}
			if active == nil {
				if cfg.DisableAutoStart {
					return outputError(errors.NewSessionNotActive(project.ID))
				}
				started, err := ops.Start(c.Context, database, cfg, vcs, ops.StartInput{ProjectID: project.ID})
				if err != nil {
					return outputError(err)
				}
				active = &started.Session
				if !c.Bool("json") {
					fmt.Printf("Session started on %s\n", project.Name)
				}
			}

			output, err := ops.Note(database, cfg, ops.NoteInput{SessionID: active.ID, Text: text})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			if output.Truncated {
				fmt.Println("Noted (text truncated to the configured limit)")
			} else {
				fmt.Println("Noted")
			}
			return nil
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(database *sql.DB, cfg *config.Config, vcs ops.Vcs, syn ops.Synthesizer) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Preview a summary of the active session so far",
		Flags: []cli.Flag{projectFlag(), jsonFlag()},
		Action: func(c *cli.Context) error {
			project, err := resolveProject(c, database)
			if err != nil {
				return outputError(err)
			}
			active, err := activeSession(database, project.ID)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Summary(c.Context, database, cfg, vcs, syn, ops.SummaryInput{SessionID: active.ID})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			fmt.Println(output.Text)
			return nil
		},
	}
}

// resumeCmd creates the resume command.
func resumeCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Show context from the last ended session",
		Flags: []cli.Flag{projectFlag(), jsonFlag()},
		Action: func(c *cli.Context) error {
			project, err := resolveProject(c, database)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Resume(database, cfg, ops.ResumeInput{ProjectID: project.ID})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			fmt.Print(newRenderer(c, cfg).Resume(output.Context))
			return nil
		},
	}
}

// statusCmd creates the status command.
func statusCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the project's current session state",
		Flags: []cli.Flag{projectFlag(), jsonFlag()},
		Action: func(c *cli.Context) error {
			project, err := resolveProject(c, database)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Status(database, ops.StatusInput{ProjectID: project.ID})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			fmt.Print(newRenderer(c, cfg).Status(output))
			return nil
		},
	}
}

// listCmd creates the list command.
func listCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List tracked projects",
		Flags: []cli.Flag{jsonFlag()},
		Action: func(c *cli.Context) error {
			output, err := ops.List(database)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			fmt.Print(newRenderer(c, cfg).List(output))
			return nil
		},
	}
}

// historyCmd creates the history command.
func historyCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past sessions and their summaries",
		Flags: []cli.Flag{
			projectFlag(),
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum sessions to show"},
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			project, err := resolveProject(c, database)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.History(database, ops.HistoryInput{ProjectID: project.ID, Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(output)
			}
			fmt.Print(newRenderer(c, cfg).History(output))
			return nil
		},
	}
}

// doctorCmd creates the doctor command.
func doctorCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check that storage, git, and the model service are usable",
		Action: func(c *cli.Context) error {
			ok := true

			if err := database.Ping(); err != nil {
				fmt.Printf("db:     FAIL (%v)\n", err)
				ok = false
			} else {
				fmt.Println("db:     ok")
			}

			if _, err := exec.LookPath("git"); err != nil {
				fmt.Println("git:    FAIL (git not found in PATH; sessions will be degraded)")
				ok = false
			} else {
				fmt.Println("git:    ok")
			}

			gen := summarize.NewOllamaClient(cfg.OllamaURL, cfg.Model,
				time.Duration(cfg.SummaryTimeoutSecs)*time.Second)
			ctx, cancel := context.WithTimeout(c.Context, 3*time.Second)
			defer cancel()
			if !gen.Available(ctx) {
				fmt.Printf("ollama: FAIL (unreachable at %s; summaries will use the fallback)\n", cfg.OllamaURL)
			} else if has, err := gen.HasModel(ctx); err != nil || !has {
				fmt.Printf("ollama: WARN (model %q not pulled; summaries will use the fallback)\n", cfg.Model)
			} else {
				fmt.Printf("ollama: ok (%s)\n", cfg.Model)
			}

			if !ok {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// webCmd creates the web command.
func webCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the local dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: 7317, Usage: "Listen port"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(database, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if derr, ok := err.(*errors.DevctxError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", derr.Code, derr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
