package repository

import (
	"context"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

// DatasetSource loads the tables the engine is built from.
type DatasetSource interface {
	LoadDataset(ctx context.Context) (*domain.Dataset, error)
	Describe() string
}

// Cache directory file names.
const (
	FileDemandDaily   = "demand_daily.csv"
	FileItems         = "items.csv"
	FileOrderItems    = "order_items.csv"
	FileSummary       = "summary.json"
	FileDemandHistory = "demand_history.json"
)
