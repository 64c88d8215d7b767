package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps/migration"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apps/scheduling"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/database"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/logging"
)

var (
	tenantPath string
	dryRun     bool
	service    *migration.MigrationService
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move legacy per-user meetings and availability into the shared collections",
		Long: `Runs the legacy-layout jobs against one university. Both commands default
to --dry-run, which reports what would change without writing.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initService()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&tenantPath, "university", "u", "", "University path, e.g. california_merced_uc_merced (required)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", true, "Report intended changes without writing")
	_ = rootCmd.MarkPersistentFlagRequired("university")

	rootCmd.AddCommand(meetingsCmd())
	rootCmd.AddCommand(cleanupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initService() error {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	if cfg.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD environment variable is required")
	}
	if err := database.Connect(cfg); err != nil {
		return err
	}
	// The jobs write meetings and availability days; make sure the tables exist.
	if err := database.MigrateModels(scheduling.New(nil).Models()); err != nil {
		return fmt.Errorf("failed to migrate scheduling tables: %w", err)
	}
	service = migration.NewMigrationService(database.DB)
	return nil
}

func meetingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meetings",
		Short: "Re-emit legacy meetings, meeting requests and availability as shared documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := service.MigrateMeetingsAndAvailability(context.Background(), tenantPath, dryRun)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return printJSON(stats)
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete legacy per-user meeting and availability documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dryRun {
				slog.Warn("deleting legacy documents", "tenant_path", tenantPath)
			}
			stats, err := service.CleanupLegacySubcollections(context.Background(), tenantPath, dryRun)
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}
			return printJSON(stats)
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
