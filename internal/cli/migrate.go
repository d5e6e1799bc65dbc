package cli

import (
	"fmt"

	"github.com/chachabrian/mooveit-dispatch/internal/config"
	"github.com/chachabrian/mooveit-dispatch/internal/database"
	"github.com/chachabrian/mooveit-dispatch/internal/logger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(serviceName, cfg.LogLevel)

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("migrations applied", "action", "migrate", "database", cfg.Database.Name)
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
	return nil
}
