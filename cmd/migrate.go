/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulsecrm/apiserver/config"
	"github.com/pulsecrm/apiserver/internal/db"
	"github.com/pulsecrm/apiserver/internal/migrate"
	"github.com/pulsecrm/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cleanup, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		applied, err := manager.Up(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
		return nil
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the most recently applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cleanup, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := manager.Rollback(cmd.Context()); err != nil {
			return fmt.Errorf("migrate rollback failed: %w", err)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of every discovered migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cleanup, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		statuses, err := manager.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate status failed: %w", err)
		}
		for _, status := range statuses {
			if status.Applied {
				fmt.Printf("%s  %-40s applied %s\n",
					status.Version, status.Name, status.AppliedAt.Format("2006-01-02 15:04:05"))
			} else {
				fmt.Printf("%s  %-40s pending\n", status.Version, status.Name)
			}
		}
		return nil
	},
}

var migrateGenerateCmd = &cobra.Command{
	Use:   "generate [name]",
	Short: "Create a new, empty migration unit file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		path, err := migrate.Generate(cfg.MigrationsDir, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("migrate generate failed: %w", err)
		}
		fmt.Printf("created %s\n", path)
		return nil
	},
}

func newManager(ctx context.Context) (*migrate.Manager, func(), error) {
	cfg := config.LoadConfig()

	logger, err := server.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = dbConn.Close()
		_ = logger.Sync()
	}
	return migrate.NewManager(dbConn, cfg.MigrationsDir, logger.Named("migrate")), cleanup, nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateRollbackCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateGenerateCmd)
}
