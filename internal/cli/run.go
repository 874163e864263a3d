package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasnoah/ecosystemci/internal/backend"
	"github.com/lucasnoah/ecosystemci/internal/checkout"
	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/github"
	"github.com/lucasnoah/ecosystemci/internal/history"
	"github.com/lucasnoah/ecosystemci/internal/recorder"
	"github.com/lucasnoah/ecosystemci/internal/suites"
	"github.com/lucasnoah/ecosystemci/internal/view"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <stack>",
	Short: "Run a stack's suites locally and record the outcome",
	Long: `Clones (or updates) the stack's repository, runs every configured suite in
order and reconciles the resulting record into the configured data source.

--commit and --message override the recorded commit when the suites exercised
a build other than the checkout's HEAD.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		commitFlag, _ := cmd.Flags().GetString("commit")
		messageFlag, _ := cmd.Flags().GetString("message")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		cont, _ := cmd.Flags().GetBool("continue")
		workDir, _ := cmd.Flags().GetString("workdir")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, ok := cfg.Stack(args[0])
		if !ok {
			return fmt.Errorf("unknown stack %q", args[0])
		}
		if len(st.Suites) == 0 {
			return fmt.Errorf("stack %q has no suites configured", st.ID)
		}
		suiteCfgs, err := suiteConfigs(st)
		if err != nil {
			return err
		}

		if workDir == "" {
			if workDir, err = defaultWorkDir(); err != nil {
				return err
			}
		}
		mgr := checkout.NewManager(&checkout.ExecGit{}, workDir)
		co, err := mgr.Checkout(st.Repo, st.Branch)
		if err != nil {
			return err
		}
		head, err := mgr.HeadInfo(co.Path)
		if err != nil {
			return err
		}

		dir := co.Path
		if st.Dir != "" {
			dir = filepath.Join(co.Path, st.Dir)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Running %d suites for %s at %s\n", len(suiteCfgs), st.ID, view.ShortSHA(head.SHA))

		runner := suites.NewRunner(&suites.ExecRunner{})
		outcomes := runner.RunAll(cmd.Context(), dir, suiteCfgs, cont)
		for _, o := range outcomes {
			fmt.Fprintf(w, "  %-20s %-10s %s\n", o.Name, o.Status, view.DurationLabel(o.DurationMs))
		}

		rec := localRecord(st, head, outcomes)
		if commitFlag != "" {
			rec.CommitSHA = commitFlag
		}
		if messageFlag != "" {
			rec.CommitMessage = history.FirstLine(messageFlag)
		}

		if dryRun {
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
			return nil
		}

		b, err := backend.Open(cmd.Context(), cfg.Data, "")
		if err != nil {
			return fmt.Errorf("open %s data source: %w", cfg.Data.Source, err)
		}
		defer b.Close()
		s, err := b.Store()
		if err != nil {
			return err
		}

		res, err := recorder.New(s, s, nil, nil).Apply(cmd.Context(), st.ID, rec)
		if err != nil {
			return fmt.Errorf("record %s: %w", st.ID, err)
		}
		fmt.Fprintf(w, "%s %s: %s (%d records)\n", st.ID, view.ShortSHA(rec.CommitSHA), view.StatusLabel(res.Record.OverallStatus), len(res.History))
		return nil
	},
}

// suiteConfigs converts a stack's configured suites for the runner.
func suiteConfigs(st config.Stack) ([]suites.SuiteConfig, error) {
	out := make([]suites.SuiteConfig, 0, len(st.Suites))
	for _, su := range st.Suites {
		var timeout time.Duration
		if su.Timeout != "" {
			d, err := time.ParseDuration(su.Timeout)
			if err != nil {
				return nil, fmt.Errorf("suite %s: invalid timeout %q: %w", su.Name, su.Timeout, err)
			}
			timeout = d
		}
		out = append(out, suites.SuiteConfig{
			Name:    su.Name,
			Command: su.Command,
			Install: su.Install,
			Parser:  su.Parser,
			Timeout: timeout,
		})
	}
	return out, nil
}

// localRecord builds a record from a local checkout's HEAD.
func localRecord(st config.Stack, head *checkout.Head, outcomes []history.SuiteOutcome) history.CommitRecord {
	return history.CommitRecord{
		CommitSHA:       head.SHA,
		CommitTimestamp: head.Timestamp,
		CommitMessage:   history.FirstLine(head.Message),
		Author: history.Author{
			Name:  head.AuthorName,
			Email: head.AuthorEmail,
		},
		Repository: history.Repository{
			FullName: st.Repo,
			Name:     github.RepoName(st.Repo),
		},
		OverallStatus: history.OverallStatus(outcomes),
		Suites:        outcomes,
	}
}

func defaultWorkDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, ".ecosystem-ci", "checkouts"), nil
}

func init() {
	runCmd.Flags().String("commit", "", "Record this commit SHA instead of the checkout's HEAD")
	runCmd.Flags().String("message", "", "Record this commit message instead of HEAD's subject")
	runCmd.Flags().Bool("dry-run", false, "Print the record without saving it")
	runCmd.Flags().Bool("continue", false, "Keep running suites after one fails")
	runCmd.Flags().String("workdir", "", "Directory for repository checkouts (default ~/.ecosystem-ci/checkouts)")
}
