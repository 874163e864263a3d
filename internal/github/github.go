// Package github reads commit metadata and workflow job results through the
// gh CLI and resolves them into history records.
package github

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

// CmdRunner provides command execution. Interface for testing.
type CmdRunner interface {
	Run(args ...string) (string, error)
}

// ExecRunner runs gh commands via exec. A non-empty Token is passed to gh as
// GH_TOKEN so callers don't depend on the ambient environment.
type ExecRunner struct {
	Token string
}

func (r *ExecRunner) Run(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	if r.Token != "" {
		cmd.Env = append(os.Environ(), "GH_TOKEN="+r.Token)
	}
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			msg = strings.TrimSpace(string(ee.Stderr))
		}
		return "", fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), msg, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Client provides GitHub operations.
type Client struct {
	cmd CmdRunner
	now func() time.Time
}

// NewClient creates a GitHub client.
func NewClient(cmd CmdRunner) *Client {
	return &Client{cmd: cmd, now: time.Now}
}

var repoRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// ValidateRepo checks that repo has the owner/name form.
func ValidateRepo(repo string) error {
	if !repoRe.MatchString(repo) {
		return fmt.Errorf("invalid repository %q: must be owner/name", repo)
	}
	return nil
}

// RepoName returns the name half of owner/name.
func RepoName(fullName string) string {
	if _, name, ok := strings.Cut(fullName, "/"); ok && name != "" {
		return name
	}
	return fullName
}

// WorkflowRunURL returns the web URL of a workflow run.
func WorkflowRunURL(repo, runID string) string {
	return fmt.Sprintf("https://github.com/%s/actions/runs/%s", repo, runID)
}

// gitActor is the author or committer block of a git commit.
type gitActor struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Date  *string `json:"date"`
}

// userRef is the GitHub account linked to a commit, if any.
type userRef struct {
	Login     *string `json:"login"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatar_url"`
	Date      *string `json:"date"`
}

type rawCommit struct {
	SHA    string `json:"sha"`
	Commit *struct {
		Message   *string   `json:"message"`
		Author    *gitActor `json:"author"`
		Committer *gitActor `json:"committer"`
	} `json:"commit"`
	Author *userRef `json:"author"`
}

// CommitInfo is commit metadata with every fallback already applied.
type CommitInfo struct {
	SHA       string
	Timestamp string
	Message   string
	Author    history.Author
}

// isoMillis matches the timestamp layout GitHub and browsers emit.
const isoMillis = "2006-01-02T15:04:05.000Z"

// GetCommit fetches a commit from repo and resolves its metadata.
func (c *Client) GetCommit(repo, sha string) (*CommitInfo, error) {
	if err := ValidateRepo(repo); err != nil {
		return nil, err
	}
	if sha == "" {
		return nil, fmt.Errorf("commit sha is required")
	}
	out, err := c.cmd.Run("api", fmt.Sprintf("repos/%s/commits/%s", repo, sha))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("commit %s not found in %s", sha, repo)
		}
		return nil, fmt.Errorf("get commit %s: %w", sha, err)
	}
	var raw rawCommit
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parse commit JSON: %w", err)
	}
	info := resolveCommit(raw, c.now)
	if info.SHA == "" {
		info.SHA = sha
	}
	return &info, nil
}

func resolveCommit(raw rawCommit, now func() time.Time) CommitInfo {
	var msg *string
	var author, committer gitActor
	if raw.Commit != nil {
		msg = raw.Commit.Message
		if raw.Commit.Author != nil {
			author = *raw.Commit.Author
		}
		if raw.Commit.Committer != nil {
			committer = *raw.Commit.Committer
		}
	}
	var user userRef
	if raw.Author != nil {
		user = *raw.Author
	}

	info := CommitInfo{SHA: raw.SHA}
	info.Timestamp = first(committer.Date, author.Date, user.Date)
	if info.Timestamp == "" {
		info.Timestamp = now().UTC().Format(isoMillis)
	}
	info.Message = "(unknown message)"
	if msg != nil {
		info.Message = history.FirstLine(*msg)
	}
	info.Author = history.Author{
		Name:      first(author.Name, user.Login),
		Email:     first(author.Email, user.Email),
		Login:     first(user.Login),
		AvatarURL: first(user.AvatarURL),
	}
	if info.Author.Name == "" {
		info.Author.Name = "(unknown author)"
	}
	return info
}

// first returns the first non-nil value, or "".
func first(vals ...*string) string {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return ""
}

// Job is one job of a workflow run.
type Job struct {
	Name        string  `json:"name"`
	Conclusion  *string `json:"conclusion"`
	StartedAt   *string `json:"started_at"`
	CompletedAt *string `json:"completed_at"`
	HTMLURL     *string `json:"html_url"`
}

type jobsPage struct {
	TotalCount int   `json:"total_count"`
	Jobs       []Job `json:"jobs"`
}

const (
	jobsPerPage  = 100
	maxJobsPages = 10
)

// ListRunJobs returns every job of a workflow run. A missing run has no jobs.
func (c *Client) ListRunJobs(repo, runID string) ([]Job, error) {
	if err := ValidateRepo(repo); err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, fmt.Errorf("workflow run id is required")
	}
	var jobs []Job
	for page := 1; page <= maxJobsPages; page++ {
		out, err := c.cmd.Run("api", fmt.Sprintf("repos/%s/actions/runs/%s/jobs?per_page=%d&page=%d", repo, runID, jobsPerPage, page))
		if err != nil {
			if isNotFound(err) {
				return jobs, nil
			}
			return nil, fmt.Errorf("list jobs for run %s: %w", runID, err)
		}
		var p jobsPage
		if err := json.Unmarshal([]byte(out), &p); err != nil {
			return nil, fmt.Errorf("parse jobs JSON: %w", err)
		}
		jobs = append(jobs, p.Jobs...)
		if len(p.Jobs) < jobsPerPage || len(jobs) >= p.TotalCount {
			break
		}
	}
	return jobs, nil
}

// SuitesFromJobs keeps the jobs whose name starts with prefix and turns each
// into a suite outcome named after the parenthesized part of the job name,
// e.g. "execute-all (nx)" becomes suite "nx".
func SuitesFromJobs(jobs []Job, prefix string) []history.SuiteOutcome {
	suites := []history.SuiteOutcome{}
	for _, j := range jobs {
		if !strings.HasPrefix(j.Name, prefix) {
			continue
		}
		suites = append(suites, history.SuiteOutcome{
			Name:       suiteName(j.Name, prefix),
			Status:     conclusionStatus(j.Conclusion),
			DurationMs: jobDuration(j),
			LogURL:     first(j.HTMLURL),
		})
	}
	return suites
}

func suiteName(jobName, prefix string) string {
	name := strings.TrimPrefix(jobName, strings.TrimSpace(prefix))
	name = strings.TrimLeft(name, " \t")
	name = strings.TrimPrefix(name, "(")
	name = strings.TrimSuffix(name, ")")
	return strings.TrimSpace(name)
}

// conclusionStatus maps a job conclusion to a suite status. Anything other
// than success or a skip-like conclusion counts as a failure.
func conclusionStatus(conclusion *string) history.Status {
	if conclusion == nil {
		return history.StatusFailure
	}
	switch *conclusion {
	case "success":
		return history.StatusSuccess
	case "cancelled", "skipped", "neutral":
		return history.StatusCancelled
	default:
		return history.StatusFailure
	}
}

func jobDuration(j Job) *int64 {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return nil
	}
	start, err := time.Parse(time.RFC3339, *j.StartedAt)
	if err != nil || start.IsZero() {
		return nil
	}
	end, err := time.Parse(time.RFC3339, *j.CompletedAt)
	if err != nil || end.IsZero() || end.Before(start) {
		return nil
	}
	return history.Int64(end.Sub(start).Milliseconds())
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "HTTP 404") || strings.Contains(msg, "Not Found")
}
