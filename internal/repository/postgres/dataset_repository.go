package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

// DatasetRepository reads the engine tables written by the ingest loader.
type DatasetRepository struct {
	db *DB
}

func NewDatasetRepository(db *DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

func (r *DatasetRepository) Describe() string { return "postgres" }

func (r *DatasetRepository) LoadDataset(ctx context.Context) (*domain.Dataset, error) {
	ds := &domain.Dataset{}

	err := r.db.withLimit(ctx, func() error {
		return r.db.SelectContext(ctx, &ds.Daily, `
			SELECT date, item_id, quantity, location_id
			FROM demand_daily
			ORDER BY item_id, date, location_id NULLS FIRST
		`)
	})
	if err != nil {
		return nil, &domain.UnavailableError{Resource: "daily demand table", Err: err}
	}
	for i := range ds.Daily {
		ds.Daily[i].Date = domain.Day(ds.Daily[i].Date)
	}

	err = r.db.withLimit(ctx, func() error {
		return r.db.SelectContext(ctx, &ds.Items, `
			SELECT item_id, item_name, order_count
			FROM items
			ORDER BY order_count DESC, item_id
		`)
	})
	if err != nil {
		return nil, fmt.Errorf("error loading items: %w", err)
	}

	err = r.db.withLimit(ctx, func() error {
		return r.db.SelectContext(ctx, &ds.Pairs, `
			SELECT order_id, item_id
			FROM order_items
			ORDER BY order_id, item_id
		`)
	})
	if err != nil {
		return nil, fmt.Errorf("error loading order items: %w", err)
	}

	return ds, nil
}
