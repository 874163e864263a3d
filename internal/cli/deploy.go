package cli

import (
	"fmt"

	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/deploy"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Rebuild the hosted dashboard",
}

var deployTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "POST to the build hook in NETLIFY_BUILD_HOOK_URL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.LoadServeEnv()
		if err != nil {
			return err
		}
		if err := deploy.TriggerBuildHook(cmd.Context(), nil, env.BuildHookURL); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Triggered deploy successfully.")
		return nil
	},
}

func init() {
	deployCmd.AddCommand(deployTriggerCmd)
}
