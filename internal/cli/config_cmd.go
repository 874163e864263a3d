package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/lucasnoah/ecosystemci/internal/backend"
	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and inspect the ecosystem configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the ecosystem configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		errs := config.Validate(cfg)
		if len(errs) == 0 {
			cmd.Println("Configuration is valid.")
			return nil
		}

		cmd.Println("Validation errors:")
		for _, e := range errs {
			cmd.Printf("  - %s\n", e)
		}
		return fmt.Errorf("config has %d validation error(s)", len(errs))
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with defaults merged",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config: %w", err)
		}

		cmd.Print(string(data))
		return nil
	},
}

// loadConfig reads the file named by -f, then $ECOSYSTEM_CI_CONFIG, then the
// default locations.
func loadConfig() (*config.EcosystemConfig, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("ECOSYSTEM_CI_CONFIG")
	}
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// openBackend loads the config and opens its data source. The caller closes
// the backend.
func openBackend(ctx context.Context, token string) (*config.EcosystemConfig, *backend.Backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	b, err := backend.Open(ctx, cfg.Data, token)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s data source: %w", cfg.Data.Source, err)
	}
	return cfg, b, nil
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
