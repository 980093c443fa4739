package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/api"
	"github.com/andresuchdata/freshflow-go/internal/api/admin"
	"github.com/andresuchdata/freshflow-go/internal/cache"
	"github.com/andresuchdata/freshflow-go/internal/config"
	"github.com/andresuchdata/freshflow-go/internal/forecast"
	"github.com/andresuchdata/freshflow-go/internal/repository"
	"github.com/andresuchdata/freshflow-go/internal/repository/postgres"
	"github.com/andresuchdata/freshflow-go/internal/service"
	"github.com/andresuchdata/freshflow-go/internal/storage"
	"github.com/andresuchdata/freshflow-go/internal/tracing"
	"github.com/andresuchdata/freshflow-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetFormat(cfg.Server.LogFormat)
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	decimal.MarshalJSONWithoutQuotes = true

	tp, _, err := tracing.InitTracer(context.Background(), cfg.Tracing)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	source, closeSource := datasetSource(cfg)
	defer closeSource()

	provider := service.NewEngineProvider(source, modelLoader(cfg), service.Options{
		WindowDays:   cfg.Engine.WindowDays,
		LeadTimeDays: cfg.Engine.LeadTimeDays,
		SafetyFactor: cfg.Engine.SafetyFactor,
	})

	insightsCache, err := cache.NewInsightsCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Insights cache unavailable, serving uncached")
		insightsCache = cache.NewNoopInsightsCache()
	}
	insights := service.NewInsightsService(provider, insightsCache)

	// Warm up so the first request does not pay for the load. Missing data is
	// not fatal: the API answers 503 until an admin reload succeeds.
	if _, err := provider.Engine(context.Background()); err != nil {
		logger.Log.Warn().Err(err).Msg("Engine not loaded at startup")
	}

	router := api.NewRouter(&api.Services{Provider: provider, Insights: insights}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	var adminSrv *http.Server
	if cfg.Admin.Port != "" {
		adminSrv = &http.Server{
			Addr:    ":" + cfg.Admin.Port,
			Handler: admin.NewRouter(provider),
		}
	}

	// Start servers in goroutines
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	if adminSrv != nil {
		go func() {
			logger.Log.Info().Str("port", cfg.Admin.Port).Msg("Starting admin server")
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Fatal().Err(err).Msg("Failed to start admin server")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shut down the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the servers they have 5 seconds to finish
	// the requests they are currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if adminSrv != nil {
		if err := adminSrv.Shutdown(ctx); err != nil {
			logger.Log.Error().Err(err).Msg("Admin server forced to shutdown")
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Log.Warn().Err(err).Msg("Tracer shutdown failed")
	}

	logger.Log.Info().Msg("Server exiting")
}

func datasetSource(cfg *config.Config) (repository.DatasetSource, func()) {
	switch cfg.App.DataSource {
	case "postgres":
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		return postgres.NewDatasetRepository(db), func() { db.Close() }
	case "csv", "":
		return repository.NewCSVStore(cfg.App.CacheDir), func() {}
	default:
		logger.Log.Fatal().Str("data_source", cfg.App.DataSource).Msg("Unknown data source")
		return nil, nil
	}
}

// modelLoader reads the local artifact directory first and falls back to the
// object storage mirror when one is configured.
func modelLoader(cfg *config.Config) service.ModelLoader {
	stores := forecast.Chain{forecast.NewDirStore(cfg.App.ArtifactDir)}
	client, err := storage.NewFromConfig(cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
	case err != nil:
		logger.Log.Warn().Err(err).Msg("Object storage unavailable, using local artifacts only")
	default:
		stores = append(stores, forecast.NewObjectStore(client, cfg.Storage.Prefix))
	}
	return stores
}
