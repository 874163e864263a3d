package cli

import (
	"fmt"
	"log"

	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/store"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror every stack's published history into a local directory",
	Long: `Fetches <remote>/<stack>.json for every configured stack and writes the
documents to the local data directory. If any fetch fails nothing is written
and the existing local files are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetString("remote")
		dir, _ := cmd.Flags().GetString("dir")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if remote == "" {
			remote = cfg.Data.RemoteURL
		}
		if remote == "" {
			return fmt.Errorf("no remote URL: set data.remote_url or pass --remote")
		}
		if dir == "" {
			dir = cfg.Data.Dir
		}
		stacks := cfg.StackIDs()
		if len(stacks) == 0 {
			return fmt.Errorf("no stacks configured")
		}

		env, err := config.LoadServeEnv()
		if err != nil {
			return err
		}
		src := store.NewRemoteSource(remote, env.GitHubToken, nil)
		dst := store.NewFileStore(dir)
		if err := store.Mirror(cmd.Context(), src, dst, stacks, log.Default()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Synced %d stacks into %s\n", len(stacks), dst.BaseDir())
		return nil
	},
}

func init() {
	syncCmd.Flags().String("remote", "", "Base URL of the published histories (default data.remote_url)")
	syncCmd.Flags().String("dir", "", "Local directory to write to (default data.dir)")
}
