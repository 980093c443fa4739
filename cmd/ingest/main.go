package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/andresuchdata/freshflow-go/internal/config"
	"github.com/andresuchdata/freshflow-go/internal/drive"
	"github.com/andresuchdata/freshflow-go/internal/ingest"
	"github.com/andresuchdata/freshflow-go/internal/repository"
	"github.com/andresuchdata/freshflow-go/internal/repository/postgres"
	"github.com/andresuchdata/freshflow-go/internal/storage"
	"github.com/andresuchdata/freshflow-go/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

type ctxKey string

const dbKey ctxKey = "db"

func newDBURLFlag(cfg *config.Config) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string",
		Value:   postgres.URL(&cfg.Database),
		EnvVars: []string{"DATABASE_URL"},
	}
}

func newRawDirFlag(cfg *config.Config) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "raw-dir",
		Usage: "Directory holding the raw order exports",
		Value: filepath.Join(cfg.App.DataDir, "raw"),
	}
}

func initDB(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*sql.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func main() {
	cfg := config.Load()
	logger.SetFormat(cfg.Server.LogFormat)

	app := &cli.App{
		Name:  "ingest",
		Usage: "Fetch raw order exports and build the demand cache",
		Commands: []*cli.Command{
			{
				Name:  "build-cache",
				Usage: "Aggregate raw exports into the cache directory",
				Flags: []cli.Flag{
					newRawDirFlag(cfg),
					&cli.StringFlag{
						Name:  "cache-dir",
						Usage: "Output directory for the cache tables",
						Value: cfg.App.CacheDir,
					},
					&cli.StringFlag{
						Name:  "pattern",
						Usage: "Glob of export files inside raw-dir",
						Value: ingest.DefaultPattern,
					},
					&cli.IntFlag{
						Name:  "max-files",
						Usage: "Read at most this many files (0 reads all)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Files parsed in parallel",
						Value: runtime.NumCPU(),
					},
					&cli.BoolFlag{
						Name:  "by-location",
						Usage: "Keep one series per location",
					},
				},
				Action: buildCache,
			},
			{
				Name:  "load-db",
				Usage: "Copy the cache tables into Postgres",
				Flags: []cli.Flag{
					newDBURLFlag(cfg),
					&cli.StringFlag{
						Name:  "cache-dir",
						Usage: "Cache directory to load from",
						Value: cfg.App.CacheDir,
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: loadDB,
			},
			{
				Name:  "fetch-drive",
				Usage: "Download raw exports from a Google Drive folder",
				Flags: []cli.Flag{
					newRawDirFlag(cfg),
					&cli.StringFlag{
						Name:    "credentials",
						Usage:   "Service account JSON file",
						Value:   cfg.Drive.CredentialsFile,
						EnvVars: []string{"GOOGLE_APPLICATION_CREDENTIALS"},
					},
					&cli.StringFlag{
						Name:  "folder",
						Usage: "Drive folder path, e.g. exports/orders",
						Value: cfg.Drive.FolderPath,
					},
				},
				Action: fetchDrive,
			},
			{
				Name:  "fetch-storage",
				Usage: "Download raw exports from object storage",
				Flags: []cli.Flag{
					newRawDirFlag(cfg),
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Object prefix holding the exports",
						Value: "raw/",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Download a single object instead of the whole prefix",
					},
				},
				Action: func(c *cli.Context) error {
					return fetchStorage(c, cfg)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("ingest failed")
	}
}

func buildCache(c *cli.Context) error {
	opts := ingest.Options{
		Pattern:    c.String("pattern"),
		MaxFiles:   c.Int("max-files"),
		Workers:    c.Int("workers"),
		ByLocation: c.Bool("by-location"),
	}
	_, err := ingest.BuildCache(c.Context, c.String("raw-dir"), repository.NewCSVStore(c.String("cache-dir")), opts)
	return err
}

func loadDB(c *cli.Context) error {
	db, ok := c.Context.Value(dbKey).(*sql.DB)
	if !ok {
		return fmt.Errorf("database not initialized")
	}

	store := repository.NewCSVStore(c.String("cache-dir"))
	ds, err := store.LoadDataset(c.Context)
	if err != nil {
		return err
	}

	repo := repository.NewIngestRepository(db)
	if err := repo.EnsureSchema(c.Context); err != nil {
		return err
	}
	if err := repo.ReplaceDataset(c.Context, ds); err != nil {
		return err
	}
	logger.Log.Info().
		Str("cache", store.Describe()).
		Int("daily_records", len(ds.Daily)).
		Int("items", len(ds.Items)).
		Int("order_pairs", len(ds.Pairs)).
		Msg("Dataset loaded into Postgres")
	return nil
}

func fetchDrive(c *cli.Context) error {
	if c.String("folder") == "" {
		return fmt.Errorf("--folder is required")
	}
	creds, err := os.ReadFile(c.String("credentials"))
	if err != nil {
		return fmt.Errorf("failed to read drive credentials: %w", err)
	}
	svc, err := drive.NewService(c.Context, creds)
	if err != nil {
		return err
	}

	files, err := drive.NewDownloader(svc).DownloadExports(c.Context, drive.DownloadOptions{
		FolderPath:  c.String("folder"),
		DownloadDir: c.String("raw-dir"),
	})
	if err != nil {
		return err
	}
	logger.Log.Info().Int("files", len(files)).Str("dir", c.String("raw-dir")).Msg("Drive exports downloaded")
	return nil
}

func fetchStorage(c *cli.Context, cfg *config.Config) error {
	client, err := storage.NewFromConfig(cfg.Storage)
	if err != nil {
		return err
	}
	files, err := ingest.FetchFromStorage(c.Context, client, c.String("prefix"), c.String("key"), c.String("raw-dir"))
	if err != nil {
		return err
	}
	logger.Log.Info().Int("files", len(files)).Str("dir", c.String("raw-dir")).Msg("Storage exports downloaded")
	return nil
}
