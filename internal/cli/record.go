package cli

import (
	"fmt"

	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/github"
	"github.com/lucasnoah/ecosystemci/internal/recorder"
	"github.com/lucasnoah/ecosystemci/internal/store"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the current workflow run into its stack's history",
	Long: `Reads the run's context from the environment, fetches the tested commit and the
run's job results from GitHub, reconciles them into the stack's history published
on the data branch, and writes the result to $OUTPUT_DIR/<stack>.json.

Required: STACK, SOURCE_REPO, SOURCE_COMMIT, GITHUB_RUN_ID, GITHUB_REPOSITORY,
GITHUB_TOKEN. Optional: OUTPUT_DIR (data-artifacts), DATA_BRANCH (data),
JOB_PREFIX ("execute-all ").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.LoadRecordEnv()
		if err != nil {
			return err
		}

		src := store.NewRemoteSource(env.DataURL(), env.Token, nil)
		sink := store.NewFileStore(env.OutputDir)
		gh := github.NewClient(&github.ExecRunner{Token: env.Token})

		res, err := recorder.New(src, sink, gh, nil).Record(cmd.Context(), recorder.Input{
			Stack:        env.Stack,
			SourceRepo:   env.SourceRepo,
			SourceCommit: env.SourceCommit,
			Repository:   env.GitHubRepository,
			RunID:        env.RunID,
			JobPrefix:    env.JobPrefix,
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", env.Stack, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(res.History), sink.Path(env.Stack))
		return nil
	},
}
