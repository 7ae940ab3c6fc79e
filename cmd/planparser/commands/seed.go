package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/Nav1203/plan-parser/cmd/planparser/ui"
	"github.com/Nav1203/plan-parser/internal/startup"
	"github.com/Nav1203/plan-parser/internal/storage"
)

var (
	seedCount int
	seedBatch int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert synthetic production records for development",
	Long: `Seed fills the database with synthetic production records so the API and
the records commands have data to work against without ingesting a workbook.
Records are marked with a synthetic source; remove them with "records purge"
or by recreating the database.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of records to insert")
	seedCmd.Flags().IntVar(&seedBatch, "batch", 50, "insert batch size")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "random seed (0 uses a random one)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)

	if seedCount <= 0 {
		return fmt.Errorf("count must be positive, got %d", seedCount)
	}
	if seedBatch <= 0 {
		seedBatch = 50
	}

	gofakeit.Seed(seedValue)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := startup.EnsureDir(cfg.Migrations.Dir); err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}
	manager := startup.NewMigrationManager(db, cfg.Migrations.Dir, cfg.Database.Driver)
	if _, err := manager.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	repo := storage.NewProductionRepository(db)
	bar := ui.NewProgressBar(int64(seedCount), "Seeding records")

	inserted := 0
	for inserted < seedCount {
		n := seedBatch
		if remaining := seedCount - inserted; remaining < n {
			n = remaining
		}
		batch := make([]*storage.ProductionRecord, 0, n)
		for i := 0; i < n; i++ {
			batch = append(batch, fakeRecord())
		}
		if err := repo.CreateMany(ctx, batch); err != nil {
			bar.Finish()
			return fmt.Errorf("insert batch: %w", err)
		}
		inserted += n
		bar.Set(int64(inserted))
	}
	bar.Finish()

	ui.Success("Inserted %d synthetic records", inserted)
	return nil
}

var (
	fakeStylePrefixes = []string{"MNS", "WMS", "KDS", "UNI"}
	fakeFabrics       = []string{"Cotton Jersey", "Denim 12oz", "Poly Twill", "Linen Blend", "French Terry"}
	fakeColors        = []string{"Black", "White", "Navy", "Olive", "Ecru", "Charcoal"}
	fakeStatuses      = []string{"pending", "in_production", "completed", "cancelled"}
	fakeStageNames    = []string{"fabric", "cutting", "sewing", "shipping"}
)

// fakeRecord builds one synthetic record in the same shape the ingestion
// pipeline produces: stage-keyed planned dates with the four milestones
// mirrored at the top level.
func fakeRecord() *storage.ProductionRecord {
	rec := &storage.ProductionRecord{
		OrderNumber: gofakeit.Numerify("PO-2###-####"),
		Style:       fmt.Sprintf("%s-%s", gofakeit.RandomString(fakeStylePrefixes), gofakeit.Numerify("####")),
		Quantity:    gofakeit.Number(50, 5000),
		Status:      storage.RecordStatus(gofakeit.RandomString(fakeStatuses)),
		Stages:      make(map[string]storage.StageData, len(fakeStageNames)),
		StageOrder:  append([]string(nil), fakeStageNames...),
		Source:      &storage.RecordSource{File: "synthetic", Sheet: "seed"},
	}

	if gofakeit.Bool() {
		fabric := gofakeit.RandomString(fakeFabrics)
		rec.Fabric = &fabric
	}
	if gofakeit.Bool() {
		color := gofakeit.RandomString(fakeColors)
		rec.Color = &color
	}

	start := gofakeit.DateRange(time.Now(), time.Now().AddDate(0, 3, 0))
	dates := &storage.ProductionDates{}
	for i, stage := range fakeStageNames {
		date := start.AddDate(0, 0, 7*i).Format("02/01/2006")
		rec.Stages[stage] = storage.StageData{
			StageName: stage,
			Fields: map[string]storage.StageValue{
				"planned_date": storage.StageString(date),
			},
		}
		dates.Set(stage, date)
	}
	rec.Dates = dates

	return rec
}
