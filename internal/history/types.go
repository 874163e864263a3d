package history

import (
	"fmt"
	"strings"
)

// Status is the outcome of a suite or of a whole commit run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the three recorded states.
func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusCancelled
}

// SuiteOutcome is the result of one named suite within a single CI run.
type SuiteOutcome struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	DurationMs *int64 `json:"durationMs,omitempty"`
	LogURL     string `json:"logUrl,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Validate checks the suite's own invariants.
func (s SuiteOutcome) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("suite name is required")
	}
	if !s.Status.Valid() {
		return fmt.Errorf("suite %q: invalid status %q", s.Name, s.Status)
	}
	if s.DurationMs != nil && *s.DurationMs < 0 {
		return fmt.Errorf("suite %q: negative duration %d", s.Name, *s.DurationMs)
	}
	return nil
}

// Author identifies who made a commit. Only Name is required.
type Author struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Login     string `json:"login,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Repository identifies the downstream repository a commit belongs to.
type Repository struct {
	FullName string `json:"fullName"`
	Name     string `json:"name"`
}

// CommitRecord is the outcome of running a stack's full suite set against one commit.
type CommitRecord struct {
	CommitSHA       string         `json:"commitSha"`
	CommitTimestamp string         `json:"commitTimestamp"`
	CommitMessage   string         `json:"commitMessage"`
	Author          Author         `json:"author"`
	Repository      Repository     `json:"repository"`
	WorkflowRunURL  string         `json:"workflowRunUrl"`
	OverallStatus   Status         `json:"overallStatus"`
	Suites          []SuiteOutcome `json:"suites"`
}

// Validate checks the record's invariants, including its timestamp.
func (r CommitRecord) Validate() error {
	if strings.TrimSpace(r.CommitSHA) == "" {
		return fmt.Errorf("commit sha is required")
	}
	if strings.ContainsAny(r.CommitMessage, "\r\n") {
		return fmt.Errorf("commit %s: message must be a single line", r.CommitSHA)
	}
	if _, err := ParseTimestamp(r.CommitTimestamp); err != nil {
		return &InvalidTimestampError{CommitSHA: r.CommitSHA, Value: r.CommitTimestamp, Err: err}
	}
	if len(r.Suites) == 0 {
		return fmt.Errorf("commit %s: %w", r.CommitSHA, ErrMissingSuiteData)
	}
	for _, s := range r.Suites {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("commit %s: %w", r.CommitSHA, err)
		}
	}
	return nil
}

// History is an ordered collection of commit records for one stack,
// most recent first.
type History []CommitRecord

// Find returns the record with the given sha.
func (h History) Find(sha string) (CommitRecord, bool) {
	for _, r := range h {
		if r.CommitSHA == sha {
			return r, true
		}
	}
	return CommitRecord{}, false
}

// FirstLine returns msg up to the first line break, trimmed.
func FirstLine(msg string) string {
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

// Int64 returns a pointer to v, for optional durations.
func Int64(v int64) *int64 {
	return &v
}
