package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/duckgeunpark/IWT/internal/config"
	"github.com/duckgeunpark/IWT/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending schema migrations to the PostgreSQL database.
The serve command applies migrations on startup too; this command exists
for deployments that migrate separately from serving.

Examples:
  # Apply all pending migrations
  iwt migrate

  # Show applied and pending migrations without changing anything
  iwt migrate --list`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("list", false, "List applied and pending migrations without applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	listOnly := mustGetBool(cmd, "list")

	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()

	// MigrationsPending also creates the tracking table on a fresh
	// database, so it has to run before MigrationsApplied.
	pending, err := pool.MigrationsPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending migrations: %w", err)
	}

	if listOnly {
		applied, err := pool.MigrationsApplied(ctx)
		if err != nil {
			return fmt.Errorf("failed to list applied migrations: %w", err)
		}

		fmt.Printf("Applied migrations (%d):\n", len(applied))
		for _, name := range applied {
			fmt.Printf("  %s\n", name)
		}
		fmt.Printf("Pending migrations (%d):\n", len(pending))
		for _, name := range pending {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	if len(pending) == 0 {
		fmt.Println("Database is up to date.")
		return nil
	}

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	fmt.Printf("Applied %d migrations.\n", len(pending))
	return nil
}
