package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nav1203/plan-parser/cmd/planparser/ui"
	"github.com/Nav1203/plan-parser/internal/startup"
)

var migrateCheck bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Migrate brings the database schema up to date by applying every pending
migration in version order. With --check it only reports what is pending.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateCheck, "check", false, "report pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	if err := startup.EnsureDir(cfg.Migrations.Dir); err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	manager := startup.NewMigrationManager(db, cfg.Migrations.Dir, cfg.Database.Driver)

	if migrateCheck {
		status, err := manager.Check(ctx)
		if err != nil {
			return fmt.Errorf("check migrations: %w", err)
		}
		ui.Section("Migration Status")
		ui.KeyValue("Applied", status.Applied)
		ui.KeyValue("Total", status.Total)
		if status.UpToDate {
			ui.Success("Schema is up to date")
			return nil
		}
		ui.Warning("%d migrations pending:", len(status.Pending))
		for _, name := range status.Pending {
			ui.Step("%s", name)
		}
		return nil
	}

	status, err := manager.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	ui.Success("Schema up to date (%d of %d migrations applied)", status.Applied, status.Total)
	return nil
}
