package commands

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nav1203/plan-parser/cmd/planparser/ui"
	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/config"
	"github.com/Nav1203/plan-parser/internal/ingest"
)

var (
	classifySheetName    string
	classifyGroupColumns []string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <workbook.xlsx>",
	Short: "Preview column classification without extracting records",
	Long: `Classify runs the pipeline up to and including the oracle call and
prints the role assigned to each column. Nothing is stored; use it to
check how a new sheet layout will be interpreted.`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifySheetName, "sheet", "", "sheet name (defaults to the first sheet)")
	classifyCmd.Flags().StringSliceVar(&classifyGroupColumns, "group-columns", nil, "columns to forward-fill, bypassing detection")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ui.InitUI(noColor, verbose)

	path := args[0]
	if !ingest.AllowedExtension(path) {
		return fmt.Errorf("%s: not an Excel workbook (.xlsx or .xls)", path)
	}

	oracle, closeCache, err := buildOracle(cfg)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	spin := ui.NewSpinner("Classifying columns...")
	spin.Start()
	_, mapping, err := classifyWorkbook(ctx, cfg, oracle, path, classifySheetName, classifyGroupColumns)
	spin.Stop()
	if err != nil {
		return err
	}

	ui.Section("Column Classification")

	rows := make([][]string, 0, len(mapping.Columns))
	for _, col := range mapping.Columns {
		rows = append(rows, []string{
			truncate(col.ColumnName, 32),
			string(col.Role),
			col.Field,
			col.Stage,
			string(col.DateType),
			fmt.Sprintf("%.2f", col.Confidence),
		})
	}
	ui.Table([]string{"COLUMN", "ROLE", "FIELD", "STAGE", "DATE TYPE", "CONF"}, rows)

	return nil
}

// classifyWorkbook runs the pipeline through the oracle call: read, detect
// and merge headers, expand group columns, sample, classify. Returns the
// expanded table and the oracle's mapping.
func classifyWorkbook(ctx context.Context, cfg *config.Config, oracle classify.Oracle, path, sheet string, groupColumns []string) (*ingest.Table, *classify.Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	grid, _, err := ingest.ReadWorkbook(f, sheet)
	if err != nil {
		return nil, nil, err
	}

	headerCount := ingest.DetectHeaderRows(grid, cfg.Pipeline.HeaderThreshold)
	table, _ := ingest.MergeHeaders(grid, headerCount)
	expanded, _ := ingest.ExpandGroups(table, cfg.Pipeline.NullThreshold, groupColumns)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	samples := ingest.SampleColumns(expanded, cfg.Pipeline.SampleSize, rng)

	mapping, err := oracle.ClassifyColumns(ctx, samples)
	if err != nil {
		return nil, nil, err
	}
	return expanded, mapping, nil
}
