package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/devctx/internal/config"
	"github.com/hpungsan/devctx/internal/db"
	"github.com/hpungsan/devctx/internal/gitx"
	"github.com/hpungsan/devctx/internal/mcp"
	"github.com/hpungsan/devctx/internal/ops"
	"github.com/hpungsan/devctx/internal/summarize"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands lists the subcommands the CLI surface handles.
var cliCommands = map[string]bool{
	"init": true, "start": true, "end": true, "note": true,
	"summary": true, "resume": true, "status": true,
	"list": true, "history": true, "doctor": true, "web": true,
	"help": true,
}

// isCLIMode reports whether the first argument selects the CLI
// surface rather than the MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		// no args, serve MCP
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion reports whether the invocation only asks for help
// or version output.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal reports whether stdin is a terminal rather than a pipe.
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner shows usage hints for a bare interactive invocation.
func printBanner() {
	fmt.Println(`
       _               _
    __| | _____   ____| |___  __
   / _' |/ _ \ \ / / _| __\ \/ /
  | (_| |  __/\ V / (_| |_ >  <
   \__,_|\___| \_/ \___\__/_/\_\

  Session tracking and resume context for developers

  Usage: devctx <command> [options]
         devctx --help

  MCP server mode requires piped input.`)
}

// newSynthesizer wires the Ollama-backed synthesizer from config.
func newSynthesizer(cfg *config.Config) *summarize.Synthesizer {
	gen := summarize.NewOllamaClient(cfg.OllamaURL, cfg.Model,
		time.Duration(cfg.SummaryTimeoutSecs)*time.Second)
	return summarize.NewSynthesizer(gen, cfg)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// help and version need no database
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".devctx")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	var vcs ops.Vcs = gitx.NewClient()
	var syn ops.Synthesizer = newSynthesizer(cfg)

	if isCLIMode() {
		app := newCLIApp(database, cfg, vcs, syn)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// an unknown argument on a terminal is a typo, not an MCP client
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'devctx --help' for usage.\n")
		os.Exit(1)
	}

	if err := mcp.Run(database, cfg, vcs, syn, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
