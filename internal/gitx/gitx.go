package gitx

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hpungsan/devctx/internal/errors"
	"github.com/hpungsan/devctx/internal/session"
)

// EmptyRef marks a repository with no commits yet.
const EmptyRef = "empty"

// dirtySuffix marks a ref captured with uncommitted working-tree changes.
const dirtySuffix = "+dirty"

// Runner executes a git command in dir and returns its stdout.
// Injectable so tests can script repository state without a real repo.
type Runner func(ctx context.Context, dir string, args ...string) (string, error)

// Client captures version-control activity from a repository via the
// git binary.
type Client struct {
	run Runner
}

// NewClient creates a Client backed by the git executable.
func NewClient() *Client {
	return &Client{run: execGit}
}

// NewClientWithRunner creates a Client with a custom runner.
func NewClientWithRunner(r Runner) *Client {
	return &Client{run: r}
}

func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

// IsRepo reports whether path is inside a git work tree.
func (c *Client) IsRepo(ctx context.Context, path string) bool {
	out, err := c.run(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Branch returns the current branch name, or a short detached-HEAD marker.
func (c *Client) Branch(ctx context.Context, repoRoot string) (string, error) {
	out, err := c.run(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewVcsCommandFailed(err)
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		sha, err := c.run(ctx, repoRoot, "rev-parse", "--short", "HEAD")
		if err == nil {
			return "detached@" + strings.TrimSpace(sha), nil
		}
	}
	return branch, nil
}

// Snapshot returns an opaque marker of current repository state: the HEAD
// commit identifier, suffixed with "+dirty" when uncommitted changes exist.
// A repository with no commits yields the "empty" sentinel.
func (c *Client) Snapshot(ctx context.Context, repoRoot string) (string, error) {
	if !c.IsRepo(ctx, repoRoot) {
		return "", errors.NewNotAGitRepository(repoRoot)
	}

	ref := EmptyRef
	if out, err := c.run(ctx, repoRoot, "rev-parse", "HEAD"); err == nil {
		ref = strings.TrimSpace(out)
	}
	// rev-parse HEAD fails on a repo with no commits; keep the sentinel.

	status, err := c.run(ctx, repoRoot, "status", "--porcelain")
	if err != nil {
		return "", errors.NewVcsCommandFailed(err)
	}
	if strings.TrimSpace(status) != "" {
		ref += dirtySuffix
	}

	return ref, nil
}

// Delta computes the version-control changes between two snapshot refs:
// the ordered commit list (oldest first) and per-file changed line counts,
// including uncommitted working-tree modifications when the ending ref is
// dirty. Counts saturate at ceiling.
func (c *Client) Delta(ctx context.Context, repoRoot, fromRef, toRef string, ceiling int) (*session.Delta, error) {
	if !c.IsRepo(ctx, repoRoot) {
		return nil, errors.NewNotAGitRepository(repoRoot)
	}

	fromSHA, _ := splitRef(fromRef)
	toSHA, toDirty := splitRef(toRef)

	delta := &session.Delta{
		Commits:     []session.CommitInfo{},
		FileChanges: make(map[string]int),
	}

	if toSHA != EmptyRef && fromSHA != toSHA {
		commits, err := c.commitRange(ctx, repoRoot, fromSHA, toSHA)
		if err != nil {
			return nil, err
		}
		delta.Commits = commits

		if err := c.committedChanges(ctx, repoRoot, fromSHA, toSHA, delta.FileChanges); err != nil {
			return nil, err
		}
	}

	if toDirty {
		// No HEAD to diff against on an unborn branch; the staged index
		// against the empty tree is all there is.
		args := []string{"diff", "--numstat", "HEAD"}
		if toSHA == EmptyRef {
			args = []string{"diff", "--numstat", "--cached"}
		}
		out, err := c.run(ctx, repoRoot, args...)
		if err != nil {
			return nil, errors.NewVcsCommandFailed(err)
		}
		parseNumstat(out, delta.FileChanges)
	}

	for path, count := range delta.FileChanges {
		if count > ceiling {
			delta.FileChanges[path] = ceiling
		}
	}

	return delta, nil
}

// commitRange lists commits in (from, to], oldest first.
func (c *Client) commitRange(ctx context.Context, repoRoot, fromSHA, toSHA string) ([]session.CommitInfo, error) {
	args := []string{"log", "--reverse", "--format=%H%x1f%s%x1f%an%x1f%at"}
	if fromSHA == EmptyRef {
		args = append(args, toSHA)
	} else {
		args = append(args, fromSHA+".."+toSHA)
	}

	out, err := c.run(ctx, repoRoot, args...)
	if err != nil {
		return nil, errors.NewVcsCommandFailed(err)
	}

	commits := []session.CommitInfo{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		ts, _ := strconv.ParseInt(fields[3], 10, 64)
		commits = append(commits, session.CommitInfo{
			ID:        fields[0],
			Message:   fields[1],
			Author:    fields[2],
			Timestamp: ts,
		})
	}
	return commits, nil
}

// committedChanges accumulates per-file added+removed line counts for the
// commit range into changes.
func (c *Client) committedChanges(ctx context.Context, repoRoot, fromSHA, toSHA string, changes map[string]int) error {
	var out string
	var err error
	if fromSHA == EmptyRef {
		// No base to diff against: sum numstat across every commit up to to.
		out, err = c.run(ctx, repoRoot, "log", "--numstat", "--format=", toSHA)
	} else {
		out, err = c.run(ctx, repoRoot, "diff", "--numstat", fromSHA, toSHA)
	}
	if err != nil {
		return errors.NewVcsCommandFailed(err)
	}
	parseNumstat(out, changes)
	return nil
}

// parseNumstat accumulates "added<TAB>removed<TAB>path" lines into changes.
// Binary files report "-" counts and are tallied as a single change.
func parseNumstat(out string, changes map[string]int) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		path := strings.TrimSpace(fields[2])
		if path == "" {
			continue
		}

		if fields[0] == "-" || fields[1] == "-" {
			changes[path]++
			continue
		}
		added, err1 := strconv.Atoi(fields[0])
		removed, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		changes[path] += added + removed
	}
}

// splitRef separates a snapshot ref into its commit identifier and dirty flag.
func splitRef(ref string) (sha string, dirty bool) {
	if strings.HasSuffix(ref, dirtySuffix) {
		return strings.TrimSuffix(ref, dirtySuffix), true
	}
	if ref == "" {
		return EmptyRef, false
	}
	return ref, false
}
