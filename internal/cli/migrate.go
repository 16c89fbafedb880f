package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stacksight/internal/db"
	applog "stacksight/internal/log"
	"stacksight/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(false)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentMigrate)
			if err := storage.RunMigrations(cfg.Database()); err != nil {
				return err
			}
			return reportVersion(cmd, cfg.Database(), logger)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(false)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentMigrate)
			if err := storage.RollbackMigrations(cfg.Database(), steps); err != nil {
				return err
			}
			return reportVersion(cmd, cfg.Database(), logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(false)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg.LogLevel).WithComponent(applog.ComponentMigrate)
			return reportVersion(cmd, cfg.Database(), logger)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func reportVersion(cmd *cobra.Command, cfg db.Config, logger *applog.Logger) error {
	v, dirty, err := storage.MigrationVersion(cfg)
	if err != nil {
		return err
	}
	logger.Info("Schema version", "version", v, "dirty", dirty)
	fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
	return nil
}
