// Package startup provides database initialization run before the API or
// CLI begins work.
package startup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// MigrationManager applies SQL migration files from a directory. Files
// named NNNN_description.sql apply to every driver; an NNNN_description_sqlite.sql
// variant overrides the plain file when the driver is sqlite.
type MigrationManager struct {
	db     *sql.DB
	dir    string
	driver string // "sqlite" or "postgres"
}

// NewMigrationManager creates a new migration manager.
func NewMigrationManager(db *sql.DB, dir, driver string) *MigrationManager {
	return &MigrationManager{db: db, dir: dir, driver: driver}
}

// MigrationStatus reports which migration versions are applied and pending.
type MigrationStatus struct {
	UpToDate bool
	Pending  []string
	Applied  int
	Total    int
}

// migrationFile pairs a version (the base name) with the file to execute
// for the active driver.
type migrationFile struct {
	version  string
	filename string
}

// Check ensures the version ledger exists and reports pending migrations.
func (m *MigrationManager) Check(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	files, err := m.listMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied versions: %w", err)
	}

	status := &MigrationStatus{
		Pending: []string{},
		Applied: len(applied),
		Total:   len(files),
	}
	for _, f := range files {
		if !applied[f.version] {
			status.Pending = append(status.Pending, f.filename)
		}
	}
	status.UpToDate = len(status.Pending) == 0
	return status, nil
}

// Run executes every pending migration in version order.
func (m *MigrationManager) Run(ctx context.Context, status *MigrationStatus) error {
	if status == nil || len(status.Pending) == 0 {
		return nil
	}

	pending := append([]string(nil), status.Pending...)
	sort.Strings(pending)

	for _, filename := range pending {
		if err := m.runMigration(ctx, filename); err != nil {
			return fmt.Errorf("run migration %s: %w", filename, err)
		}
	}
	return nil
}

// Migrate checks and applies pending migrations in one step.
func (m *MigrationManager) Migrate(ctx context.Context) (*MigrationStatus, error) {
	status, err := m.Check(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Run(ctx, status); err != nil {
		return status, err
	}
	return m.Check(ctx)
}

func (m *MigrationManager) ensureVersionTable(ctx context.Context) error {
	var query string
	switch m.driver {
	case "sqlite", "":
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`
	default:
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// listMigrationFiles resolves the migration file per version for the
// active driver, sorted by version.
func (m *MigrationManager) listMigrationFiles() ([]migrationFile, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	plain := make(map[string]string)
	sqlite := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.HasSuffix(name, "_sqlite.sql") {
			sqlite[strings.TrimSuffix(name, "_sqlite.sql")] = name
		} else {
			plain[strings.TrimSuffix(name, ".sql")] = name
		}
	}

	versions := make(map[string]bool)
	for v := range plain {
		versions[v] = true
	}
	for v := range sqlite {
		versions[v] = true
	}

	var files []migrationFile
	for version := range versions {
		filename := plain[version]
		if m.driver == "sqlite" {
			if override, ok := sqlite[version]; ok {
				filename = override
			}
		}
		if filename == "" {
			continue
		}
		files = append(files, migrationFile{version: version, filename: filename})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func (m *MigrationManager) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// runMigration executes one file as a single block and records its version.
func (m *MigrationManager) runMigration(ctx context.Context, filename string) error {
	data, err := os.ReadFile(filepath.Join(m.dir, filename))
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	if _, err := m.db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	version := versionOf(filename)
	var record string
	switch m.driver {
	case "sqlite", "":
		record = `INSERT OR IGNORE INTO schema_migrations (version) VALUES ($1)`
	default:
		record = `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`
	}
	if _, err := m.db.ExecContext(ctx, record, version); err != nil {
		return fmt.Errorf("record migration version: %w", err)
	}
	return nil
}

func versionOf(filename string) string {
	if strings.HasSuffix(filename, "_sqlite.sql") {
		return strings.TrimSuffix(filename, "_sqlite.sql")
	}
	return strings.TrimSuffix(filename, ".sql")
}

// Connect opens a database handle for the configured driver and verifies
// connectivity.
func Connect(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name := driver
	if name == "sqlite" {
		name = "sqlite3"
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// ErrNoMigrationsDir signals a missing migrations directory at startup.
var ErrNoMigrationsDir = errors.New("migrations directory not found")

// EnsureDir verifies the migrations directory exists before any check runs.
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoMigrationsDir, dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNoMigrationsDir, dir)
	}
	return nil
}
