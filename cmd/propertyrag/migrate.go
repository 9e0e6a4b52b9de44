package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DanielJandric/embeddingsall-sub000/internal/config"
	"github.com/DanielJandric/embeddingsall-sub000/internal/tools/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Create or upgrade the portfolio tables read by the structured-data tools.

Examples:
  PROPERTYRAG_POSTGRES_DSN=postgres://rag@localhost/rag propertyrag migrate`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Postgres.DSN.IsSet() {
		return errors.New("postgres.dsn is required")
	}
	v, err := postgres.Migrate(cmd.Context(), cfg.Postgres.DSN.Value())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", v)
	return nil
}
