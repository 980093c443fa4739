package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/forecast"
	"github.com/andresuchdata/freshflow-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weeklyPatternDataset(days int) *domain.Dataset {
	ds := &domain.Dataset{Items: []domain.ItemPopularity{
		{ItemID: 1, ItemName: "Latte", OrderCount: 300},
		{ItemID: 2, ItemName: "Muffin", OrderCount: 120},
	}}
	for d := 0; d < days; d++ {
		weekend := int64(0)
		if wd := rec(d, 1, 0).Date.Weekday(); wd == 0 || wd == 6 {
			weekend = 1
		}
		ds.Daily = append(ds.Daily, rec(d, 1, 20+10*weekend+int64(d%3)), rec(d, 2, 5+3*weekend))
	}
	return ds
}

func TestTrainAndPublish(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{ds: weeklyPatternDataset(90)}
	primary := forecast.NewDirStore(filepath.Join(t.TempDir(), "models"))

	client, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)
	mirror := forecast.NewObjectStore(client, "models")

	job := TrainJob{Options: forecast.TrainOptions{TestSize: 0.2, Seed: 42, SelectK: 5, Booster: forecast.BoosterGBT}, MinHistoryDays: 5}
	res, err := TrainAndPublish(ctx, src, job, primary, mirror)
	require.NoError(t, err)
	assert.Len(t, res.Model.Features, 5)
	assert.Contains(t, res.Model.Metrics, forecast.ModelEnsemble)

	fromDir, err := primary.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Model.Features, fromDir.Features)

	fromObjects, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Model.Features, fromObjects.Features)

	e, err := NewEngineProvider(src, primary, DefaultOptions()).Engine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "trained", e.Strategy().Name())
}

func TestTrainAndPublishErrors(t *testing.T) {
	ctx := context.Background()
	store := forecast.NewDirStore(t.TempDir())

	_, err := TrainAndPublish(ctx, nil, TrainJob{}, store)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)

	_, err = TrainAndPublish(ctx, &countingSource{ds: flatDataset()}, TrainJob{})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = TrainAndPublish(ctx, &countingSource{ds: flatDataset()}, TrainJob{Options: forecast.DefaultTrainOptions()}, store)
	assert.ErrorIs(t, err, domain.ErrNoHistory)

	_, err = TrainAndPublish(ctx, &countingSource{err: errors.New("boom")}, TrainJob{}, store)
	assert.EqualError(t, err, "boom")
}
