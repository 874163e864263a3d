// Package checkout keeps shallow clones of stack repositories for local runs.
package checkout

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// GitRunner provides git commands. Interface for testing.
type GitRunner interface {
	Run(dir string, args ...string) (string, error)
}

// ExecGit implements GitRunner using exec.Command.
type ExecGit struct{}

func (g *ExecGit) Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Manager clones repositories under baseDir, one directory per repo.
type Manager struct {
	git     GitRunner
	baseDir string
	remote  string // prefix for clone URLs
	exists  func(path string) bool
}

// NewManager creates a checkout manager rooted at baseDir.
func NewManager(git GitRunner, baseDir string) *Manager {
	return &Manager{
		git:     git,
		baseDir: baseDir,
		remote:  "https://github.com/",
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Result describes a ready checkout.
type Result struct {
	Path   string
	Branch string
	Commit string
}

var repoRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Checkout makes Path(repo) hold the tip of branch. A fresh directory gets a
// depth-1 clone; an existing one is fetched and hard-reset.
func (m *Manager) Checkout(repo, branch string) (*Result, error) {
	if !repoRe.MatchString(repo) {
		return nil, fmt.Errorf("invalid repository %q: must be owner/name", repo)
	}
	if branch == "" {
		branch = "main"
	}
	path := m.Path(repo)

	if m.exists(filepath.Join(path, ".git")) {
		if _, err := m.git.Run(path, "fetch", "--depth", "1", "origin", branch); err != nil {
			return nil, fmt.Errorf("update %s: %w", repo, err)
		}
		if _, err := m.git.Run(path, "reset", "--hard", "FETCH_HEAD"); err != nil {
			return nil, fmt.Errorf("update %s: %w", repo, err)
		}
	} else {
		if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", m.baseDir, err)
		}
		url := m.remote + repo + ".git"
		if _, err := m.git.Run(m.baseDir, "clone", "--depth", "1", "--branch", branch, url, path); err != nil {
			return nil, fmt.Errorf("clone %s: %w", repo, err)
		}
	}

	sha, err := m.HeadCommit(path)
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, Branch: branch, Commit: sha}, nil
}

// HeadCommit returns the sha checked out in dir.
func (m *Manager) HeadCommit(dir string) (string, error) {
	out, err := m.git.Run(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	return out, nil
}

// Head is the metadata of the commit checked out in a directory.
type Head struct {
	SHA         string
	Timestamp   string
	Message     string
	AuthorName  string
	AuthorEmail string
}

// HeadInfo reads commit metadata from the local clone, for runs that don't
// go through the GitHub API.
func (m *Manager) HeadInfo(dir string) (*Head, error) {
	out, err := m.git.Run(dir, "log", "-1", "--format=%H%n%cI%n%an%n%ae%n%s")
	if err != nil {
		return nil, fmt.Errorf("read HEAD metadata: %w", err)
	}
	lines := strings.SplitN(out, "\n", 5)
	if len(lines) < 5 {
		return nil, fmt.Errorf("unexpected git log output %q", out)
	}
	return &Head{
		SHA:         lines[0],
		Timestamp:   lines[1],
		AuthorName:  lines[2],
		AuthorEmail: lines[3],
		Message:     lines[4],
	}, nil
}

// Remove deletes a repo's checkout.
func (m *Manager) Remove(repo string) error {
	if !repoRe.MatchString(repo) {
		return fmt.Errorf("invalid repository %q: must be owner/name", repo)
	}
	return os.RemoveAll(m.Path(repo))
}

// Path returns the checkout directory for a repo.
func (m *Manager) Path(repo string) string {
	return filepath.Join(m.baseDir, sanitizeDir(repo))
}

var nonAlphaNum = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeDir turns owner/name into a single path element.
func sanitizeDir(repo string) string {
	s := nonAlphaNum.ReplaceAllString(repo, "-")
	s = strings.Trim(s, "-.")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
