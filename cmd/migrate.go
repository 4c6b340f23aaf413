package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/face-attendance/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := repository.Open(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return err
	}
	defer repository.Close(db) //nolint:errcheck

	if err := repository.NewAttendanceRepository(db).AutoMigrate(cmd.Context()); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	fmt.Printf("Schema is up to date (%s)\n", cfg.Database.Driver)
	return nil
}
