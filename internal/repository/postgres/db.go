package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentReads bounds the dataset queries in flight against the pool.
const maxConcurrentReads = 4

// DB is the read pool the serving engine loads its tables from.
type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// URL renders cfg as a postgres:// connection URL, accepted by both lib/pq
// and pgx.
func URL(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   "/" + cfg.DBName,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// NewDB opens the process-wide pool once.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		var db *sqlx.DB
		db, err = sqlx.Connect("postgres", URL(cfg))
		if err != nil {
			err = fmt.Errorf("connect to %s/%s: %w", cfg.Host, cfg.DBName, err)
			return
		}

		db.SetMaxOpenConns(maxConcurrentReads * 2)
		db.SetMaxIdleConns(maxConcurrentReads)
		db.SetConnMaxLifetime(5 * time.Minute)

		dbInstance = &DB{
			DB:  db,
			sem: semaphore.NewWeighted(maxConcurrentReads),
		}
		log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("postgres: pool ready")
	})

	return dbInstance, err
}

// withLimit runs fn while holding one slot of the read semaphore.
func (db *DB) withLimit(ctx context.Context, fn func() error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)
	return fn()
}
