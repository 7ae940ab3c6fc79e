package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Nav1203/plan-parser/cmd/planparser/ui"
	"github.com/Nav1203/plan-parser/internal/storage"
)

var (
	recordsStyle  string
	recordsStatus string
	recordsOrder  string
	recordsSkip   int
	recordsLimit  int

	purgeStyle  string
	purgeStatus string
	purgeOrder  string
	purgeAll    bool
	purgeDryRun bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and manage extracted production records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List production records",
	RunE:  runRecordsList,
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a single production record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsGet,
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a production record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsDelete,
}

var recordsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all records matching a filter",
	Long: `Purge deletes every production record matching the given filter in one
operation. Use --dry-run first to preview how many records would go. Deleting
the entire table requires the explicit --all flag.`,
	RunE: runRecordsPurge,
}

func init() {
	recordsListCmd.Flags().StringVar(&recordsStyle, "style", "", "filter by style code")
	recordsListCmd.Flags().StringVar(&recordsStatus, "status", "", "filter by status (pending, in_production, completed, cancelled)")
	recordsListCmd.Flags().StringVar(&recordsOrder, "order", "", "filter by order number")
	recordsListCmd.Flags().IntVar(&recordsSkip, "skip", 0, "number of records to skip")
	recordsListCmd.Flags().IntVar(&recordsLimit, "limit", 50, "maximum records to return")

	recordsPurgeCmd.Flags().StringVar(&purgeStyle, "style", "", "delete records with this style code")
	recordsPurgeCmd.Flags().StringVar(&purgeStatus, "status", "", "delete records with this status")
	recordsPurgeCmd.Flags().StringVar(&purgeOrder, "order", "", "delete records with this order number")
	recordsPurgeCmd.Flags().BoolVar(&purgeAll, "all", false, "delete every record")
	recordsPurgeCmd.Flags().BoolVar(&purgeDryRun, "dry-run", false, "preview deletions without executing")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsGetCmd)
	recordsCmd.AddCommand(recordsDeleteCmd)
	recordsCmd.AddCommand(recordsPurgeCmd)
	rootCmd.AddCommand(recordsCmd)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	if recordsStatus != "" && !storage.ValidRecordStatus(storage.RecordStatus(recordsStatus)) {
		return fmt.Errorf("invalid status %q", recordsStatus)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewProductionRepository(db)
	filter := storage.RecordFilter{
		Style:       recordsStyle,
		Status:      storage.RecordStatus(recordsStatus),
		OrderNumber: recordsOrder,
		Skip:        recordsSkip,
		Limit:       recordsLimit,
	}

	records, total, err := repo.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	if len(records) == 0 {
		ui.Warning("No records found")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			shortID(rec.ID),
			truncate(rec.OrderNumber, 24),
			truncate(rec.Style, 24),
			fmt.Sprintf("%d", rec.Quantity),
			string(rec.Status),
			rec.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	ui.Table([]string{"ID", "ORDER", "STYLE", "QTY", "STATUS", "CREATED"}, rows)
	ui.Newline()
	ui.Info("Showing %d of %d records", len(records), total)
	return nil
}

func runRecordsGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid record ID %q", args[0])
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewProductionRepository(db)
	rec, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("record %s not found", id)
		}
		return fmt.Errorf("get record: %w", err)
	}

	printRecordDetail(rec)
	return nil
}

func runRecordsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid record ID %q", args[0])
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewProductionRepository(db)
	if err := repo.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("record %s not found", id)
		}
		return fmt.Errorf("delete record: %w", err)
	}

	ui.Success("Record %s deleted", id)
	return nil
}

func runRecordsPurge(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	if purgeStyle == "" && purgeStatus == "" && purgeOrder == "" && !purgeAll {
		return errors.New("refusing to purge without a filter; pass --style, --status, --order or --all")
	}
	if purgeStatus != "" && !storage.ValidRecordStatus(storage.RecordStatus(purgeStatus)) {
		return fmt.Errorf("invalid status %q", purgeStatus)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewProductionRepository(db)
	filter := storage.RecordFilter{
		Style:       purgeStyle,
		Status:      storage.RecordStatus(purgeStatus),
		OrderNumber: purgeOrder,
	}

	// Count first so a dry run and the summary report the same number.
	_, total, err := repo.List(ctx, storage.RecordFilter{
		Style:       filter.Style,
		Status:      filter.Status,
		OrderNumber: filter.OrderNumber,
		Limit:       1,
	})
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}

	if total == 0 {
		ui.Info("No records match the filter")
		return nil
	}

	if purgeDryRun {
		ui.Warning("DRY RUN: would delete %d records", total)
		return nil
	}

	deleted, err := repo.DeleteMany(ctx, filter)
	if err != nil {
		return fmt.Errorf("purge records: %w", err)
	}

	ui.Success("Deleted %d records", deleted)
	return nil
}

// printRecordDetail renders one record the way the API returns it, but
// formatted for a terminal.
func printRecordDetail(rec *storage.ProductionRecord) {
	ui.Section("Production Record")
	ui.KeyValue("ID", rec.ID.String())
	ui.KeyValue("Order number", rec.OrderNumber)
	ui.KeyValue("Style", rec.Style)
	if rec.Fabric != nil {
		ui.KeyValue("Fabric", deref(rec.Fabric))
	}
	if rec.Color != nil {
		ui.KeyValue("Color", deref(rec.Color))
	}
	ui.KeyValue("Quantity", rec.Quantity)
	ui.KeyValue("Status", string(rec.Status))
	ui.KeyValue("Created", rec.CreatedAt.Format(time.RFC3339))
	ui.KeyValue("Updated", rec.UpdatedAt.Format(time.RFC3339))
	if rec.Source != nil {
		ui.KeyValue("Source", fmt.Sprintf("%s (%s)", rec.Source.File, rec.Source.Sheet))
	}

	if rec.Dates != nil && !rec.Dates.IsZero() {
		ui.Newline()
		ui.Section("Milestone Dates")
		if rec.Dates.Fabric != nil {
			ui.KeyValue("Fabric", deref(rec.Dates.Fabric))
		}
		if rec.Dates.Cutting != nil {
			ui.KeyValue("Cutting", deref(rec.Dates.Cutting))
		}
		if rec.Dates.Sewing != nil {
			ui.KeyValue("Sewing", deref(rec.Dates.Sewing))
		}
		if rec.Dates.Shipping != nil {
			ui.KeyValue("Shipping", deref(rec.Dates.Shipping))
		}
	}

	if len(rec.Stages) > 0 {
		ui.Newline()
		ui.Section("Stages")
		rows := make([][]string, 0, len(rec.Stages))
		for _, name := range stageOrder(rec) {
			stage := rec.Stages[name]
			fields := make([]string, 0, len(stage.Fields))
			for field, value := range stage.Fields {
				fields = append(fields, fmt.Sprintf("%s=%s", field, value.String()))
			}
			sort.Strings(fields)
			rows = append(rows, []string{name, strings.Join(fields, " ")})
		}
		ui.Table([]string{"STAGE", "FIELDS"}, rows)
	}
}

// stageOrder returns the record's stage names, canonical order first, then
// any remaining stages sorted. Only stages the record actually carries are
// returned.
func stageOrder(rec *storage.ProductionRecord) []string {
	names := make([]string, 0, len(rec.Stages))
	seen := make(map[string]bool, len(rec.Stages))
	for _, name := range rec.StageOrder {
		if _, ok := rec.Stages[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range rec.Stages {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// shortID abbreviates a UUID for table display.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
