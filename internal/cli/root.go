package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "ecosystem-ci",
	Short: "ecosystem-ci — commit history for the Rstack ecosystem CI",
	Long: `ecosystem-ci records the outcome of each ecosystem CI run against an upstream
commit, keeps one reconciled history per stack (newest first, one record per
commit), and serves a dashboard over those histories.

Histories live in JSON files by default; SQLite and PostgreSQL backends are
selected with data.source in ecosystem.yaml.`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "file", "f", "", "path to ecosystem config file (default: $ECOSYSTEM_CI_CONFIG, ./ecosystem.yaml, ~/.ecosystem-ci/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
}
