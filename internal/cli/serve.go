package cli

import (
	"fmt"

	"github.com/lucasnoah/ecosystemci/internal/backend"
	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ecosystem CI dashboard",
	Long: `Start a read-only dashboard showing each stack's run history, pass rate and
per-suite timeline. Histories are read from data.source on every request.

ECOSYSTEM_CI_DATA_SOURCE overrides data.source (e.g. "mock" for fixture data) and
NETLIFY_BUILD_HOOK_URL enables POST /api/deploy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		env, err := config.LoadServeEnv()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.ApplyEnv(env)
		if errs := config.Validate(cfg); len(errs) > 0 {
			return fmt.Errorf("invalid config: %s", errs[0])
		}

		b, err := backend.Open(cmd.Context(), cfg.Data, env.GitHubToken)
		if err != nil {
			return fmt.Errorf("open %s data source: %w", cfg.Data.Source, err)
		}
		defer b.Close()

		return web.NewServer(b.Source, cfg, web.Options{
			Port:         port,
			BuildHookURL: env.BuildHookURL,
		}).Start()
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
}
