// Package suites runs a stack's ecosystem suites in a local checkout and
// turns each run into a history.SuiteOutcome.
package suites

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lucasnoah/ecosystemci/internal/history"
)

// SuiteConfig mirrors config.Suite with the fields the runner needs.
type SuiteConfig struct {
	Name    string
	Command string
	Install string
	Parser  string
	Timeout time.Duration
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner by shelling out.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			exitCode = exitErr.ExitCode()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// defaultTimeout applies to suites configured without one.
const defaultTimeout = 30 * time.Minute

// Runner executes suites and parses their output.
type Runner struct {
	cmd     CommandRunner
	parsers map[string]Parser
	now     func() time.Time
}

// NewRunner creates a Runner with the given command runner.
func NewRunner(cmd CommandRunner) *Runner {
	return &Runner{
		cmd: cmd,
		parsers: map[string]Parser{
			"generic": &GenericParser{},
			"vitest":  &VitestParser{},
		},
		now: time.Now,
	}
}

// Run executes one suite in dir. Failures of any kind, including timeouts
// and commands that cannot start, are reported as a failed outcome.
func (r *Runner) Run(ctx context.Context, dir string, cfg SuiteConfig) (out history.SuiteOutcome) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out.Name = cfg.Name
	start := r.now()
	defer func() {
		out.DurationMs = history.Int64(r.now().Sub(start).Milliseconds())
	}()

	if cfg.Install != "" {
		stdout, stderr, code, err := r.cmd.Run(ctx, dir, cfg.Install)
		if err != nil || code != 0 {
			out.Status, out.Notes = r.failure(ctx, timeout, "install", stdout, stderr, code, err)
			return out
		}
	}

	stdout, stderr, code, err := r.cmd.Run(ctx, dir, cfg.Command)
	if err != nil {
		out.Status, out.Notes = r.failure(ctx, timeout, "command", stdout, stderr, code, err)
		return out
	}

	parser, ok := r.parsers[cfg.Parser]
	if !ok {
		parser = r.parsers["generic"]
	}
	parsed := parser.Parse(stdout, stderr, code)
	out.Status = history.StatusSuccess
	if code != 0 || !parsed.Passed {
		out.Status = history.StatusFailure
	}
	out.Notes = parsed.Notes
	return out
}

func (r *Runner) failure(ctx context.Context, timeout time.Duration, step, stdout, stderr string, code int, err error) (history.Status, string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return history.StatusFailure, fmt.Sprintf("timeout after %s", timeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return history.StatusCancelled, step + " cancelled"
	}
	if err != nil {
		return history.StatusFailure, fmt.Sprintf("%s failed to run: %v", step, err)
	}
	res := (&GenericParser{}).Parse(stdout, stderr, code)
	return history.StatusFailure, step + " failed: " + res.Notes
}

// RunAll runs suites in order. Unless continueOnFailure is set, the first
// failure stops the run and the remaining suites are reported as cancelled,
// as are any suites left when ctx is cancelled.
func (r *Runner) RunAll(ctx context.Context, dir string, cfgs []SuiteConfig, continueOnFailure bool) []history.SuiteOutcome {
	outcomes := make([]history.SuiteOutcome, 0, len(cfgs))
	stopped := ""
	for _, cfg := range cfgs {
		if stopped == "" && ctx.Err() != nil {
			stopped = "run cancelled"
		}
		if stopped != "" {
			outcomes = append(outcomes, history.SuiteOutcome{Name: cfg.Name, Status: history.StatusCancelled, Notes: stopped})
			continue
		}
		o := r.Run(ctx, dir, cfg)
		outcomes = append(outcomes, o)
		if o.Status == history.StatusFailure && !continueOnFailure {
			stopped = fmt.Sprintf("skipped after %s failed", cfg.Name)
		}
	}
	return outcomes
}
