package cli

import (
	"fmt"

	"github.com/lucasnoah/ecosystemci/internal/config"
	"github.com/lucasnoah/ecosystemci/internal/db"
	"github.com/lucasnoah/ecosystemci/internal/pgstore"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management for the sqlite and postgres data sources",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, b, err := openBackend(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer b.Close()

		// Opening a database backend applies the schema.
		switch s := b.Source.(type) {
		case *db.DB:
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s\n", s.Path())
		case *pgstore.Store:
			fmt.Fprintln(cmd.OutOrStdout(), "Migrated postgres schema")
		default:
			return fmt.Errorf("data source %q has no database (use %q or %q)", cfg.Data.Source, config.SourceSQLite, config.SourcePostgres)
		}
		return nil
	},
}

var dbResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to drop all histories without --yes")
		}

		cfg, b, err := openBackend(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer b.Close()

		switch s := b.Source.(type) {
		case *db.DB:
			if err := s.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %s\n", s.Path())
		case *pgstore.Store:
			if err := s.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reset postgres schema")
		default:
			return fmt.Errorf("data source %q has no database (use %q or %q)", cfg.Data.Source, config.SourceSQLite, config.SourcePostgres)
		}
		return nil
	},
}

func init() {
	dbResetCmd.Flags().Bool("yes", false, "Confirm dropping every stored history")
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbResetCmd)
}
