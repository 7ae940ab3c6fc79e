// Package main provides the plan parser API server entrypoint.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Nav1203/plan-parser/internal/cache"
	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/config"
	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/startup"
)

func main() {
	// Load .env if present; deployed environments set variables directly
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "plan-parser-api",
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Driver).
		Str("oracle_model", cfg.Oracle.Model).
		Msg("Starting plan parser API")

	// Open the database and bring the schema up to date
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	db, err := startup.Connect(startupCtx, cfg.Database.Driver, databaseDSN(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	tunePool(db, cfg)

	if err := startup.EnsureDir(cfg.Migrations.Dir); err != nil {
		logger.Fatal().Err(err).Msg("Migrations directory missing")
	}

	migrator := startup.NewMigrationManager(db, cfg.Migrations.Dir, cfg.Database.Driver)
	status, err := migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Schema migration failed")
	}
	logger.Info().
		Int("applied", status.Applied).
		Int("total", status.Total).
		Msg("Schema up to date")

	// Build the classification oracle, with an optional response cache
	oracle, closeCache, err := buildOracle(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create classification client")
	}
	if closeCache != nil {
		defer closeCache()
	}

	// Initialize router with all handlers
	router := NewRouter(logger, db, oracle, cfg)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

// databaseDSN builds the driver DSN, appending the journal mode pragma for
// SQLite so concurrent readers do not block the writer.
func databaseDSN(cfg *config.Config) string {
	dsn := cfg.DatabaseDSN()
	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLite.JournalMode != "" {
		dsn += "?_journal_mode=" + cfg.Database.SQLite.JournalMode
	}
	return dsn
}

// tunePool applies the configured connection pool limits.
func tunePool(db *sql.DB, cfg *config.Config) {
	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Database.SQLite.MaxOpenConns)
		}
	case "postgres":
		if cfg.Database.Postgres.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Database.Postgres.MaxOpenConns)
		}
		if cfg.Database.Postgres.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Database.Postgres.MaxIdleConns)
		}
		if cfg.Database.Postgres.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.Database.Postgres.ConnMaxLifetime)
		}
	}
}

// buildOracle constructs the classification client and, when caching is
// enabled, wraps it so identical sheet layouts reuse prior verdicts. The
// returned closer releases the cache connection and may be nil.
func buildOracle(cfg *config.Config, logger *observability.Logger) (classify.Oracle, func() error, error) {
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
		return nil, nil, err
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
			// A dead cache should not keep the API down
			logger.Warn().Err(err).Msg("Redis unavailable, classification cache disabled")
			return client, nil, nil
		}
		cacheClient = redisClient
	} else {
		cacheClient = cache.NewMemoryClient(0)
	}

	logger.Info().Str("driver", cfg.Cache.Driver).Msg("Classification cache enabled")
	return classify.NewCachedOracle(client, cacheClient, cfg.Cache.TTL, client.Model()), cacheClient.Close, nil
}
