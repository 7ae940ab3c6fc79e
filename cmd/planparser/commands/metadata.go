package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Nav1203/plan-parser/cmd/planparser/ui"
	"github.com/Nav1203/plan-parser/internal/storage"
)

var (
	metadataSkip   int
	metadataLimit  int
	metadataSource string
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Inspect extraction metadata for ingested workbooks",
}

var metadataListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction metadata entries",
	RunE:  runMetadataList,
}

var metadataGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one extraction metadata entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetadataGet,
}

func init() {
	metadataListCmd.Flags().IntVar(&metadataSkip, "skip", 0, "number of entries to skip")
	metadataListCmd.Flags().IntVar(&metadataLimit, "limit", 50, "maximum entries to return")
	metadataListCmd.Flags().StringVar(&metadataSource, "source", "", "only show runs for this source file")

	metadataCmd.AddCommand(metadataListCmd)
	metadataCmd.AddCommand(metadataGetCmd)
	rootCmd.AddCommand(metadataCmd)
}

func runMetadataList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewMetadataRepository(db)
	entries, total, err := repo.List(ctx, metadataSource, metadataSkip, metadataLimit)
	if err != nil {
		return fmt.Errorf("list metadata: %w", err)
	}

	if len(entries) == 0 {
		ui.Warning("No metadata entries found")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, meta := range entries {
		rows = append(rows, []string{
			shortID(meta.ID),
			truncate(meta.SourceFile, 32),
			truncate(meta.SourceSheet, 20),
			fmt.Sprintf("%d", meta.RecordsCreated),
			meta.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	ui.Table([]string{"ID", "FILE", "SHEET", "RECORDS", "CREATED"}, rows)
	ui.Newline()
	ui.Info("Showing %d of %d entries", len(entries), total)
	return nil
}

func runMetadataGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid metadata ID %q", args[0])
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := storage.NewMetadataRepository(db)
	meta, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("metadata %s not found", id)
		}
		return fmt.Errorf("get metadata: %w", err)
	}

	ui.Section("Extraction Metadata")
	ui.KeyValue("ID", meta.ID.String())
	ui.KeyValue("Source file", meta.SourceFile)
	ui.KeyValue("Source sheet", meta.SourceSheet)
	ui.KeyValue("Header rows", meta.HeaderRowCount)
	ui.KeyValue("Original shape", fmt.Sprintf("%d x %d", meta.OriginalRows, meta.OriginalCols))
	ui.KeyValue("Final shape", fmt.Sprintf("%d x %d", meta.FinalRows, meta.FinalCols))
	ui.KeyValue("Columns", strings.Join(meta.Columns, ", "))
	if len(meta.ColumnsFilled) > 0 {
		ui.KeyValue("Columns filled", strings.Join(meta.ColumnsFilled, ", "))
		ui.KeyValue("Cells filled", meta.CellsFilled)
	}
	ui.KeyValue("Records created", meta.RecordsCreated)
	ui.KeyValue("Created", meta.CreatedAt.Format(time.RFC3339))
	if len(meta.ColumnMapping) > 0 {
		ui.Newline()
		ui.Section("Column Mapping")
		fmt.Println(string(meta.ColumnMapping))
	}
	return nil
}
