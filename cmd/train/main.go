package main

import (
	"fmt"
	"os"

	"github.com/andresuchdata/freshflow-go/internal/config"
	"github.com/andresuchdata/freshflow-go/internal/forecast"
	"github.com/andresuchdata/freshflow-go/internal/repository"
	"github.com/andresuchdata/freshflow-go/internal/repository/postgres"
	"github.com/andresuchdata/freshflow-go/internal/service"
	"github.com/andresuchdata/freshflow-go/internal/storage"
	"github.com/andresuchdata/freshflow-go/internal/tracing"
	"github.com/andresuchdata/freshflow-go/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	cfg := config.Load()
	logger.SetFormat(cfg.Server.LogFormat)

	app := &cli.App{
		Name:  "train",
		Usage: "Train the demand forecast ensemble offline",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Build the training matrix, fit the models and write the artifact bundle",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "artifact-dir",
						Usage:   "Directory the bundle is written to",
						Value:   cfg.App.ArtifactDir,
						EnvVars: []string{"APP_ARTIFACT_DIR"},
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Dataset source: csv or postgres",
						Value: cfg.App.DataSource,
					},
					&cli.StringFlag{
						Name:  "cache-dir",
						Usage: "Ingest cache directory read by the csv source",
						Value: cfg.App.CacheDir,
					},
					&cli.IntFlag{
						Name:  "select-k",
						Usage: "Keep the k best features by F-statistic (0 keeps all)",
						Value: cfg.Forecast.SelectK,
					},
					&cli.Float64Flag{
						Name:  "test-size",
						Usage: "Held-out fraction of rows",
						Value: cfg.Forecast.TestSize,
					},
					&cli.Int64Flag{
						Name:  "seed",
						Usage: "Seed for the split and the tree ensembles",
						Value: cfg.Forecast.Seed,
					},
					&cli.StringFlag{
						Name:  "booster",
						Usage: "Third regressor: gbt or forest",
						Value: cfg.Forecast.Booster,
					},
					&cli.IntFlag{
						Name:  "min-history-days",
						Usage: "Minimum observations an item needs to contribute rows",
						Value: cfg.Forecast.MinHistoryDays,
					},
					&cli.BoolFlag{
						Name:  "publish",
						Usage: "Also upload the bundle to the configured object storage",
					},
				},
				Action: func(c *cli.Context) error {
					return runTrain(c, cfg)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("train failed")
	}
}

func runTrain(c *cli.Context, cfg *config.Config) error {
	ctx := c.Context

	tp, _, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer tp.Shutdown(ctx)

	var source repository.DatasetSource
	switch c.String("source") {
	case "postgres":
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		source = postgres.NewDatasetRepository(db)
	case "csv", "":
		source = repository.NewCSVStore(c.String("cache-dir"))
	default:
		return fmt.Errorf("unknown source %q", c.String("source"))
	}

	stores := []forecast.ArtifactStore{forecast.NewDirStore(c.String("artifact-dir"))}
	if c.Bool("publish") {
		client, err := storage.NewFromConfig(cfg.Storage)
		if err != nil {
			return fmt.Errorf("publish requested: %w", err)
		}
		stores = append(stores, forecast.NewObjectStore(client, cfg.Storage.Prefix))
	}

	job := service.TrainJob{
		Options: forecast.TrainOptions{
			TestSize: c.Float64("test-size"),
			Seed:     c.Int64("seed"),
			SelectK:  c.Int("select-k"),
			Booster:  c.String("booster"),
		},
		MinHistoryDays: c.Int("min-history-days"),
	}
	res, err := service.TrainAndPublish(ctx, source, job, stores...)
	if err != nil {
		return err
	}

	logger.Log.Info().
		Str("artifacts", stores[0].Location()).
		Int("train_rows", res.Model.Manifest.TrainRows).
		Int("test_rows", res.Model.Manifest.TestRows).
		Msg("Model bundle written")
	return nil
}
