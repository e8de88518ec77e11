package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// Model is the Ollama model used for summary synthesis.
	Model string `json:"model"`

	// OllamaURL is the base URL of the local Ollama service.
	OllamaURL string `json:"ollama_url"`

	// SummaryTimeoutSecs bounds the model call during summary synthesis.
	// On timeout the deterministic fallback summary is used instead.
	SummaryTimeoutSecs int `json:"summary_timeout_secs,omitempty"`

	// NoteMaxChars is the length ceiling for note text. Longer notes are
	// truncated rather than rejected.
	NoteMaxChars int `json:"note_max_chars,omitempty"`

	// FileChangeCap saturates the per-file change count so pathological
	// diffs (vendored files, lockfiles) do not dominate ranking.
	FileChangeCap int `json:"file_change_cap,omitempty"`

	// ResumeNoteLimit bounds the note list in a resume context.
	ResumeNoteLimit int `json:"resume_note_limit,omitempty"`

	// ResumeFileLimit bounds the ranked file list in a resume context.
	ResumeFileLimit int `json:"resume_file_limit,omitempty"`

	// PromptMaxChars is the character budget for synthesis prompts.
	// Oldest commits and notes are dropped first when over budget.
	PromptMaxChars int `json:"prompt_max_chars,omitempty"`

	// SummaryMaxChars is the length ceiling for generated summaries.
	SummaryMaxChars int `json:"summary_max_chars,omitempty"`

	// DisableAutoStart turns off the implicit session start when a note
	// is added with no active session.
	DisableAutoStart bool `json:"disable_auto_start,omitempty"`

	// NoColor disables terminal styling in CLI output.
	NoColor bool `json:"no_color,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:              "llama3.1",
		OllamaURL:          "http://localhost:11434",
		SummaryTimeoutSecs: 8,
		NoteMaxChars:       4000,
		FileChangeCap:      500,
		ResumeNoteLimit:    5,
		ResumeFileLimit:    5,
		PromptMaxChars:     6000,
		SummaryMaxChars:    2000,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.devctx.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Model = overlay.Model
	if result.Model == "" {
		result.Model = base.Model
	}

	result.OllamaURL = overlay.OllamaURL
	if result.OllamaURL == "" {
		result.OllamaURL = base.OllamaURL
	}

	for _, pair := range []struct {
		dst           *int
		base, overlay int
	}{
		{&result.SummaryTimeoutSecs, base.SummaryTimeoutSecs, overlay.SummaryTimeoutSecs},
		{&result.NoteMaxChars, base.NoteMaxChars, overlay.NoteMaxChars},
		{&result.FileChangeCap, base.FileChangeCap, overlay.FileChangeCap},
		{&result.ResumeNoteLimit, base.ResumeNoteLimit, overlay.ResumeNoteLimit},
		{&result.ResumeFileLimit, base.ResumeFileLimit, overlay.ResumeFileLimit},
		{&result.PromptMaxChars, base.PromptMaxChars, overlay.PromptMaxChars},
		{&result.SummaryMaxChars, base.SummaryMaxChars, overlay.SummaryMaxChars},
		{&result.DBMaxOpenConns, base.DBMaxOpenConns, overlay.DBMaxOpenConns},
		{&result.DBMaxIdleConns, base.DBMaxIdleConns, overlay.DBMaxIdleConns},
	} {
		*pair.dst = pair.overlay
		if *pair.dst == 0 {
			*pair.dst = pair.base
		}
	}

	// Booleans: overlay wins if true, else base
	result.DisableAutoStart = base.DisableAutoStart || overlay.DisableAutoStart
	result.NoColor = base.NoColor || overlay.NoColor

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
