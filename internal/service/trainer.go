package service

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/features"
	"github.com/andresuchdata/freshflow-go/internal/forecast"
	"github.com/andresuchdata/freshflow-go/internal/repository"
	"github.com/rs/zerolog/log"
)

// TrainJob configures one offline training run.
type TrainJob struct {
	Options        forecast.TrainOptions
	MinHistoryDays int
}

// TrainAndPublish builds the training matrix from source, trains the
// ensemble and saves the bundle to every store in order. The first store is
// the primary; a failure there aborts, later failures are returned after all
// stores were attempted.
func TrainAndPublish(ctx context.Context, source repository.DatasetSource, job TrainJob, stores ...forecast.ArtifactStore) (*forecast.TrainResult, error) {
	if source == nil {
		return nil, &domain.UnavailableError{Resource: "dataset source"}
	}
	if len(stores) == 0 {
		return nil, &domain.ParamError{Name: "stores", Value: 0, Reason: "at least one artifact store is required"}
	}

	start := time.Now()
	ds, err := source.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}

	matrix, err := features.BuildTrainingMatrix(ds.Daily, ds.Items, job.MinHistoryDays)
	if err != nil {
		return nil, fmt.Errorf("build training matrix: %w", err)
	}
	if matrix.Len() == 0 {
		return nil, fmt.Errorf("%w: no item has enough history to train", domain.ErrNoHistory)
	}
	log.Info().
		Str("source", source.Describe()).
		Int("rows", matrix.Len()).
		Int("columns", len(matrix.Columns)).
		Msg("train: matrix built")

	res, err := forecast.Train(ctx, matrix.X, matrix.Y, matrix.Columns, job.Options)
	if err != nil {
		return nil, err
	}
	for name, m := range res.Model.Metrics {
		log.Info().
			Str("model", name).
			Float64("mae", m.MAE).
			Float64("rmse", m.RMSE).
			Float64("r2", m.R2).
			Msg("train: evaluation")
	}

	if err := stores[0].Save(ctx, res.Model); err != nil {
		return nil, fmt.Errorf("save artifacts to %s: %w", stores[0].Location(), err)
	}
	var publishErr error
	for _, store := range stores[1:] {
		if err := store.Save(ctx, res.Model); err != nil {
			log.Warn().Err(err).Str("store", store.Location()).Msg("train: publish failed")
			publishErr = fmt.Errorf("publish artifacts to %s: %w", store.Location(), err)
		}
	}

	log.Info().
		Strs("features", res.Model.Features).
		Dur("took", time.Since(start)).
		Msg("train: done")
	return res, publishErr
}
