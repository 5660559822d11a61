// Package workspace stages local working copies of repositories.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/logging"
	"github.com/user/sentinel-adk/pkg/runner"
)

// CloneTimeout bounds a shallow clone.
const CloneTimeout = 5 * time.Minute

// Executor is the part of runner.Runner the stager needs.
type Executor interface {
	Run(ctx context.Context, t runner.Task) engine.ToolResult
}

// GitStager clones repositories into fresh directories under Root.
type GitStager struct {
	Root    string
	Timeout time.Duration
	exec    Executor
}

// NewGitStager uses root for clones, or the system temp dir when root is empty.
func NewGitStager(exec Executor, root string) (*GitStager, error) {
	if root == "" {
		root = os.TempDir()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve clone root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create clone root: %w", err)
	}
	return &GitStager{Root: abs, Timeout: CloneTimeout, exec: exec}, nil
}

// Acquire shallow-clones target and returns the checkout path.
func (g *GitStager) Acquire(ctx context.Context, target string) (string, error) {
	dir, err := os.MkdirTemp(g.Root, "sentinel-clone-")
	if err != nil {
		return "", fmt.Errorf("create clone dir: %w", err)
	}
	dest := filepath.Join(dir, "repo")

	res := g.exec.Run(ctx, runner.Task{
		ToolName: "git",
		Command:  "git",
		Args:     []string{"clone", "--depth", "1", "--quiet", CloneURL(target), dest},
		Env:      []string{"GIT_TERMINAL_PROMPT=0"},
		Timeout:  g.Timeout,
	})
	if !res.Success || res.ExitCode != 0 {
		os.RemoveAll(dir) //nolint:errcheck
		msg := strings.TrimSpace(res.ErrorText)
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return "", fmt.Errorf("git clone %s: %s", target, msg)
	}
	logging.L().Debugw("repository cloned", "target", target, "path", dest, "duration", res.Duration)
	return dest, nil
}

// Release deletes a working copy returned by Acquire. Paths outside Root
// are refused.
func (g *GitStager) Release(path string) error {
	if path == "" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(g.Root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to remove %s outside %s", path, g.Root)
	}
	// Remove the per-clone parent created by Acquire.
	top := filepath.Join(g.Root, strings.Split(filepath.ToSlash(rel), "/")[0])
	return os.RemoveAll(top)
}

// CloneURL turns a scheme-less locator into an https URL.
func CloneURL(target string) string {
	t := strings.TrimSpace(target)
	if strings.HasPrefix(t, "git@") || strings.Contains(t, "://") {
		return t
	}
	return "https://" + t
}
