// Package main provides the API router setup.
package main

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Nav1203/plan-parser/cmd/planparser-api/handlers"
	"github.com/Nav1203/plan-parser/cmd/planparser-api/middleware"
	"github.com/Nav1203/plan-parser/internal/api/rpc"
	"github.com/Nav1203/plan-parser/internal/classify"
	"github.com/Nav1203/plan-parser/internal/config"
	"github.com/Nav1203/plan-parser/internal/observability"
	"github.com/Nav1203/plan-parser/internal/pipeline"
	"github.com/Nav1203/plan-parser/internal/storage"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, db *sql.DB, oracle classify.Oracle, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.Server.WriteTimeout))

	// Health check (unauthenticated)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"plan-parser"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	// Repositories and the extraction pipeline
	recordRepo := storage.NewProductionRepository(db)
	metadataRepo := storage.NewMetadataRepository(db)

	p := pipeline.New(logger, pipeline.Config{
		HeaderThreshold: cfg.Pipeline.HeaderThreshold,
		NullThreshold:   cfg.Pipeline.NullThreshold,
		SampleSize:      cfg.Pipeline.SampleSize,
	}, oracle, recordRepo, metadataRepo)

	// Initialize handlers
	ingestionHandler := handlers.NewIngestionHandler(logger, p, cfg.Server.MaxUploadBytes)
	recordsHandler := handlers.NewRecordsHandler(logger, recordRepo)
	metadataHandler := handlers.NewMetadataHandler(logger, metadataRepo)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Authentication middleware for all API routes
		r.Use(middleware.Auth(middleware.AuthConfig{
			Enabled: cfg.Auth.Enabled,
			APIKey:  cfg.Auth.APIKey,
		}))

		// Production record routes
		r.Route("/production", func(r chi.Router) {
			r.Post("/upload", ingestionHandler.Upload)
			r.Get("/", recordsHandler.List)
			r.Get("/{id}", recordsHandler.Get)
			r.Delete("/{id}", recordsHandler.Delete)

			r.Route("/order/{orderNumber}", func(r chi.Router) {
				r.Get("/", recordsHandler.GetByOrder)
				r.Put("/", recordsHandler.UpsertByOrder)
			})
		})

		// Extraction metadata routes
		r.Route("/metadata", func(r chi.Router) {
			r.Get("/", metadataHandler.List)
			r.Get("/{id}", metadataHandler.Get)
		})
	})

	// Connect RPC surface for ephemeral normalization
	normalizeSvc := rpc.NewNormalizeService(logger, oracle, rpc.Config{
		HeaderThreshold: cfg.Pipeline.HeaderThreshold,
		NullThreshold:   cfg.Pipeline.NullThreshold,
		SampleSize:      cfg.Pipeline.SampleSize,
	})
	procedure, normalizeHandler := rpc.NewNormalizeHandler(normalizeSvc)
	r.Handle("/rpc"+procedure, normalizeHandler)

	return r
}
