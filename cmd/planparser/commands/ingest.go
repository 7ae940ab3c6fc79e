package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nav1203/plan-parser/cmd/planparser/ui"
	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/config"
	"github.com/Nav1203/plan-parser/internal/ingest"
	"github.com/Nav1203/plan-parser/internal/normalize"
	"github.com/Nav1203/plan-parser/internal/pipeline"
	"github.com/Nav1203/plan-parser/internal/startup"
	"github.com/Nav1203/plan-parser/internal/storage"
)

var (
	ingestSheet        string
	ingestGroupColumns []string
	ingestDryRun       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <workbook.xlsx> [workbook.xlsx ...]",
	Short: "Extract production records from Excel order sheets",
	Long: `Ingest runs the full extraction pipeline on each workbook: header
detection and merging, group column expansion, column classification, date
normalization, and record transformation. Records and extraction metadata
are stored unless --dry-run is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSheet, "sheet", "", "sheet name (defaults to the first sheet)")
	ingestCmd.Flags().StringSliceVar(&ingestGroupColumns, "group-columns", nil, "columns to forward-fill, bypassing detection")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "extract and print records without storing them")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ui.InitUI(noColor, verbose)
	logger := newLogger(cfg)

	for _, path := range args {
		if !ingest.AllowedExtension(path) {
			return fmt.Errorf("%s: not an Excel workbook (.xlsx or .xls)", path)
		}
	}

	oracle, closeCache, err := buildOracle(cfg)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	if ingestDryRun {
		return runIngestDryRun(ctx, cfg, oracle, args)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	defer db.Close()

	if err := startup.EnsureDir(cfg.Migrations.Dir); err != nil {
		return err
	}
	migrator := startup.NewMigrationManager(db, cfg.Migrations.Dir, cfg.Database.Driver)
	if _, err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	p := pipeline.New(logger, pipeline.Config{
		HeaderThreshold: cfg.Pipeline.HeaderThreshold,
		NullThreshold:   cfg.Pipeline.NullThreshold,
		SampleSize:      cfg.Pipeline.SampleSize,
	}, oracle, storage.NewProductionRepository(db), storage.NewMetadataRepository(db))

	ui.Section("Workbook Ingestion")

	if len(args) > 1 {
		return ingestBatch(ctx, p, args)
	}
	return ingestSingle(ctx, p, args[0])
}

// ingestSingle processes one workbook with a spinner and a detail summary.
func ingestSingle(ctx context.Context, p *pipeline.Pipeline, path string) error {
	spin := ui.NewSpinner(fmt.Sprintf("Processing %s...", filepath.Base(path)))
	spin.Start()

	result, err := ingestFile(ctx, p, path)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	ui.Success("Processed %s in %s", filepath.Base(path), ui.FormatDuration(result.Duration))
	ui.Newline()
	ui.KeyValue("Sheet", result.SheetName)
	ui.KeyValue("Header rows", result.Header.HeaderRowCount)
	ui.KeyValue("Columns", strings.Join(result.Header.Columns, ", "))
	if len(result.Expansion.ColumnsFilled) > 0 {
		ui.KeyValue("Group columns filled", strings.Join(result.Expansion.ColumnsFilled, ", "))
	}
	ui.KeyValue("Rows parsed", result.RowsParsed)
	ui.KeyValue("Records created", result.RecordsCreated)
	ui.KeyValue("Metadata ID", result.MetadataID.String())
	ui.Newline()

	printRecordsTable(result.Records)
	return nil
}

// ingestBatch processes several workbooks with one progress bar per file.
func ingestBatch(ctx context.Context, p *pipeline.Pipeline, paths []string) error {
	batch := ui.NewBatchProgress()

	type outcome struct {
		path    string
		records int
		err     error
	}
	outcomes := make([]outcome, 0, len(paths))

	for _, path := range paths {
		bar := batch.AddFile(filepath.Base(path), 1)
		result, err := ingestFile(ctx, p, path)
		bar.Increment()
		if err != nil {
			outcomes = append(outcomes, outcome{path: path, err: err})
			continue
		}
		outcomes = append(outcomes, outcome{path: path, records: result.RecordsCreated})
	}
	batch.Wait()
	ui.Newline()

	var failed int
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			ui.Error("%s: %v", o.path, o.err)
			continue
		}
		ui.Success("%s: %d records", o.path, o.records)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d workbooks failed", failed, len(paths))
	}
	return nil
}

// ingestFile opens one workbook and runs the pipeline on it.
func ingestFile(ctx context.Context, p *pipeline.Pipeline, path string) (*pipeline.IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.Ingest(ctx, pipeline.IngestRequest{
		Content:      f,
		FileName:     filepath.Base(path),
		SheetName:    ingestSheet,
		GroupColumns: ingestGroupColumns,
	})
}

// runIngestDryRun extracts records without touching the database.
func runIngestDryRun(ctx context.Context, cfg *config.Config, oracle classify.Oracle, paths []string) error {
	ui.Section("Dry Run")

	for _, path := range paths {
		table, mapping, err := classifyWorkbook(ctx, cfg, oracle, path, ingestSheet, ingestGroupColumns)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		records := normalize.Records(table, mapping, nil)
		ui.Info("%s: %d rows -> %d records", filepath.Base(path), table.NumRows(), len(records))
		ui.Newline()
		printRecordsTable(records)
		ui.Newline()
	}

	ui.Warning("Dry run: nothing was stored")
	return nil
}

// printRecordsTable renders extracted records, capped for readability.
func printRecordsTable(records []*storage.ProductionRecord) {
	if len(records) == 0 {
		ui.Warning("No records extracted")
		return
	}

	const maxRows = 20
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		if i == maxRows {
			break
		}
		stages := make([]string, 0, len(rec.Stages))
		for name := range rec.Stages {
			stages = append(stages, name)
		}
		sort.Strings(stages)
		rows = append(rows, []string{
			truncate(rec.OrderNumber, 20),
			truncate(rec.Style, 20),
			fmt.Sprintf("%d", rec.Quantity),
			strings.Join(stages, ","),
		})
	}

	ui.Table([]string{"ORDER", "STYLE", "QTY", "STAGES"}, rows)
	if len(records) > maxRows {
		ui.Info("... and %d more", len(records)-maxRows)
	}
}
