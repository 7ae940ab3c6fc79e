package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Nav1203/plan-parser/internal/cache"
	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/config"
	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/startup"
)

// loadConfig loads the CLI configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a console logger for CLI runs. Without --verbose only
// warnings and errors surface, keeping command output readable.
func newLogger(cfg *config.Config) *observability.Logger {
	level := "warn"
	if verbose {
		level = cfg.Observability.LogLevel
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		ServiceName: "planparser",
	})
}

// openDatabase opens a connection using the configured driver.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := cfg.DatabaseDSN()
	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLite.JournalMode != "" {
		dsn += "?_journal_mode=" + cfg.Database.SQLite.JournalMode
	}

	db, err := startup.Connect(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLite.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.SQLite.MaxOpenConns)
	}
	return db, nil
}

// buildOracle constructs the classification oracle, wrapping it in the
// response cache when one is configured.
func buildOracle(cfg *config.Config) (classify.Oracle, func() error, error) {
	client, err := classify.NewClient(classify.Config{
		APIKey:    cfg.Oracle.APIKey,
		Model:     cfg.Oracle.Model,
		BaseURL:   cfg.Oracle.BaseURL,
		MaxTokens: cfg.Oracle.MaxTokens,
		Timeout:   cfg.Oracle.Timeout,
		Referer:   cfg.Oracle.Referer,
		Title:     cfg.Oracle.Title,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("classification client: %w", err)
	}

	if !cfg.Cache.Enabled {
		return client, nil, nil
	}

	var cacheClient cache.Client
	if cfg.Cache.Driver == "redis" {
		redisClient, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			// Fall back to an uncached oracle rather than failing the command
			return client, nil, nil
		}
		cacheClient = redisClient
	} else {
		cacheClient = cache.NewMemoryClient(0)
	}

	return classify.NewCachedOracle(client, cacheClient, cfg.Cache.TTL, client.Model()), cacheClient.Close, nil
}

// truncate shortens a string for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// deref renders an optional string for display.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
