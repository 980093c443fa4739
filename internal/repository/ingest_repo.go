package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS demand_daily (
	date        DATE   NOT NULL,
	item_id     BIGINT NOT NULL,
	quantity    BIGINT NOT NULL CHECK (quantity >= 0),
	location_id BIGINT
);
CREATE UNIQUE INDEX IF NOT EXISTS demand_daily_key
	ON demand_daily (item_id, date, COALESCE(location_id, -1));

CREATE TABLE IF NOT EXISTS items (
	item_id     BIGINT PRIMARY KEY,
	item_name   TEXT   NOT NULL DEFAULT '',
	order_count BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_items (
	order_id BIGINT NOT NULL,
	item_id  BIGINT NOT NULL,
	PRIMARY KEY (order_id, item_id)
);
`

// IngestRepository loads a built dataset into Postgres.
type IngestRepository struct {
	db *sql.DB
}

func NewIngestRepository(db *sql.DB) *IngestRepository {
	return &IngestRepository{db: db}
}

func (r *IngestRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ReplaceDataset swaps the three tables' contents in one transaction.
func (r *IngestRepository) ReplaceDataset(ctx context.Context, ds *domain.Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE demand_daily, items, order_items`); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	if err := insertEach(ctx, tx,
		`INSERT INTO demand_daily (date, item_id, quantity, location_id) VALUES ($1, $2, $3, $4)`,
		len(ds.Daily), func(i int) []any {
			d := ds.Daily[i]
			var loc sql.NullInt64
			if d.LocationID != nil {
				loc = sql.NullInt64{Int64: *d.LocationID, Valid: true}
			}
			return []any{d.Date, d.ItemID, d.Quantity, loc}
		}); err != nil {
		return fmt.Errorf("failed to insert daily demand: %w", err)
	}

	if err := insertEach(ctx, tx,
		`INSERT INTO items (item_id, item_name, order_count) VALUES ($1, $2, $3)`,
		len(ds.Items), func(i int) []any {
			it := ds.Items[i]
			return []any{it.ItemID, it.ItemName, it.OrderCount}
		}); err != nil {
		return fmt.Errorf("failed to insert items: %w", err)
	}

	if err := insertEach(ctx, tx,
		`INSERT INTO order_items (order_id, item_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		len(ds.Pairs), func(i int) []any {
			p := ds.Pairs[i]
			return []any{p.OrderID, p.ItemID}
		}); err != nil {
		return fmt.Errorf("failed to insert order items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

func insertEach(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}
