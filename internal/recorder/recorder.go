// Package recorder turns one finished ecosystem CI run into a commit record
// and reconciles it into the stack's persisted history.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/lucasnoah/ecosystemci/internal/github"
	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/store"
)

// GitHub is the subset of *github.Client the recorder needs.
type GitHub interface {
	GetCommit(repo, sha string) (*github.CommitInfo, error)
	ListRunJobs(repo, runID string) ([]github.Job, error)
}

// Recorder reads existing history from src and writes the reconciled
// history to sink. src and sink may be the same store.
type Recorder struct {
	src    store.Source
	sink   store.Sink
	gh     GitHub
	logger *log.Logger
}

// New creates a Recorder. A nil logger uses log.Default().
func New(src store.Source, sink store.Sink, gh GitHub, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{src: src, sink: sink, gh: gh, logger: logger}
}

// Input identifies the run being recorded.
type Input struct {
	Stack        string
	SourceRepo   string // repository the tested commit belongs to
	SourceCommit string
	Repository   string // repository running the workflow
	RunID        string
	JobPrefix    string
}

// Result is what a successful Record or Apply wrote.
type Result struct {
	Record   history.CommitRecord
	History  history.History
	Rejected []history.RejectedRecord
}

// Record fetches the commit, the run's suite results and the existing history
// concurrently, then reconciles and saves. Nothing is written on error.
func (r *Recorder) Record(ctx context.Context, in Input) (*Result, error) {
	if err := store.ValidateStack(in.Stack); err != nil {
		return nil, err
	}
	var (
		commit   *github.CommitInfo
		existing history.History
		suites   []history.SuiteOutcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		commit, err = r.gh.GetCommit(in.SourceRepo, in.SourceCommit)
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = r.src.LoadHistory(gctx, in.Stack)
		return err
	})
	g.Go(func() error {
		jobs, err := r.gh.ListRunJobs(in.Repository, in.RunID)
		if err != nil {
			return err
		}
		suites = github.SuitesFromJobs(jobs, in.JobPrefix)
		return nil
	})
	if err := g.Wait(); err != nil {
		r.logFailure(ctx, in.Stack, in.SourceCommit, err)
		return nil, err
	}
	if len(suites) == 0 {
		err := fmt.Errorf("no suite results found for %q jobs: %w", in.JobPrefix, history.ErrMissingSuiteData)
		r.logFailure(ctx, in.Stack, commit.SHA, err)
		return nil, err
	}

	rec := history.CommitRecord{
		CommitSHA:       commit.SHA,
		CommitTimestamp: commit.Timestamp,
		CommitMessage:   commit.Message,
		Author:          commit.Author,
		Repository: history.Repository{
			FullName: in.SourceRepo,
			Name:     github.RepoName(in.SourceRepo),
		},
		WorkflowRunURL: github.WorkflowRunURL(in.Repository, in.RunID),
		Suites:         suites,
	}
	return r.apply(ctx, in.Stack, existing, rec)
}

// Apply reconciles an already-built record into the stack's history.
func (r *Recorder) Apply(ctx context.Context, stack string, rec history.CommitRecord) (*Result, error) {
	if err := store.ValidateStack(stack); err != nil {
		return nil, err
	}
	existing, err := r.src.LoadHistory(ctx, stack)
	if err != nil {
		r.logFailure(ctx, stack, rec.CommitSHA, err)
		return nil, err
	}
	return r.apply(ctx, stack, existing, rec)
}

func (r *Recorder) apply(ctx context.Context, stack string, existing history.History, rec history.CommitRecord) (*Result, error) {
	res, err := history.ReconcileDetailed(existing, rec)
	if err != nil {
		r.logFailure(ctx, stack, rec.CommitSHA, err)
		return nil, err
	}
	for _, rej := range res.Rejected {
		r.logger.Printf("%s: dropping record %s: %v", stack, rej.Record.CommitSHA, rej.Err)
		r.logEvent(ctx, store.Event{Stack: stack, CommitSHA: rej.Record.CommitSHA, Kind: "rejected", Detail: rej.Err.Error()})
	}
	if err := r.sink.SaveHistory(ctx, stack, res.History); err != nil {
		r.logFailure(ctx, stack, rec.CommitSHA, err)
		return nil, fmt.Errorf("save %s history: %w", stack, err)
	}

	recorded := res.History[0]
	for _, h := range res.History {
		if h.CommitSHA == rec.CommitSHA {
			recorded = h
			break
		}
	}
	r.logEvent(ctx, store.Event{
		Stack:     stack,
		CommitSHA: recorded.CommitSHA,
		Status:    recorded.OverallStatus,
		Kind:      "recorded",
		Detail:    fmt.Sprintf("%d suites, %d records", len(recorded.Suites), len(res.History)),
	})
	return &Result{Record: recorded, History: res.History, Rejected: res.Rejected}, nil
}

func (r *Recorder) logFailure(ctx context.Context, stack, sha string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	r.logEvent(ctx, store.Event{Stack: stack, CommitSHA: sha, Kind: "failed", Detail: err.Error()})
}

// logEvent records e when the sink keeps an audit trail. Failures are logged
// and otherwise ignored.
func (r *Recorder) logEvent(ctx context.Context, e store.Event) {
	el, ok := r.sink.(store.EventLogger)
	if !ok {
		return
	}
	if err := el.LogEvent(ctx, e); err != nil {
		r.logger.Printf("%s: log %s event: %v", e.Stack, e.Kind, err)
	}
}
