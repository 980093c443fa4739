package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/forecast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(dayOffset int, item, qty int64) domain.DailyDemandRecord {
	return domain.DailyDemandRecord{Date: epoch.AddDate(0, 0, dayOffset), ItemID: item, Quantity: qty}
}

func recAt(dayOffset int, item, qty, loc int64) domain.DailyDemandRecord {
	r := rec(dayOffset, item, qty)
	r.LocationID = &loc
	return r
}

func newEngine(t *testing.T, ds *domain.Dataset, strategy PredictionStrategy) *Engine {
	t.Helper()
	e, err := NewEngine(ds, strategy, DefaultOptions())
	require.NoError(t, err)
	return e
}

// stubModel predicts lag_1 linearly, 5 from the forest and 2 from the booster.
func stubModel(linearCoef float64) *forecast.Model {
	return &forecast.Model{
		Features:    []string{"lag_1"},
		Scaler:      forecast.Scaler{Mean: []float64{0}, Scale: []float64{1}},
		Linear:      &forecast.LinearModel{Coef: []float64{linearCoef}},
		Forest:      &forecast.Forest{Trees: []forecast.Tree{{Nodes: []forecast.Node{{Feature: -1, Value: 5}}}}},
		Booster:     &forecast.GradientBoosting{Init: 2, Params: forecast.BoostParams{LearningRate: 0.1}},
		BoosterKind: forecast.BoosterGBT,
		Metrics:     map[string]forecast.Metrics{forecast.ModelEnsemble: {MAE: 1}},
	}
}

func flatDataset() *domain.Dataset {
	return &domain.Dataset{
		Daily: []domain.DailyDemandRecord{rec(0, 1, 10), rec(1, 1, 12), rec(2, 1, 11)},
		Items: []domain.ItemPopularity{{ItemID: 1, ItemName: "Latte", OrderCount: 30}},
	}
}

func TestPredictDemandEmptyItem(t *testing.T) {
	e := newEngine(t, flatDataset(), Baseline{})

	got, err := e.PredictDemand(context.Background(), 999, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Value)
	assert.Equal(t, domain.MethodNoData, got.MethodUsed)

	detailed, err := e.PredictDemandDetailed(context.Background(), 999, domain.PeriodWeekly, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodNoData, detailed.MethodUsed)
	assert.Equal(t, 0, detailed.DataPoints)
	assert.Equal(t, 0.0, detailed.Ensemble)
}

func TestPredictDemandFlatObservations(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, flatDataset(), Baseline{})

	daily, err := e.PredictDemand(ctx, 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.InDelta(t, 11.0, daily.Value, 1e-9)
	assert.Equal(t, domain.MethodMovingAverage, daily.MethodUsed)
	assert.Equal(t, "quantity", daily.Unit)

	weekly, err := e.PredictDemand(ctx, 1, "WEEKLY", nil)
	require.NoError(t, err)
	assert.InDelta(t, 77.0, weekly.Value, 1e-9)
	assert.Equal(t, domain.PeriodWeekly, weekly.Period)

	monthly, err := e.PredictDemand(ctx, 1, domain.PeriodMonthly, nil)
	require.NoError(t, err)
	assert.InDelta(t, 330.0, monthly.Value, 1e-9)

	_, err = e.PredictDemand(ctx, 1, "yearly", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestPeriodsAreExactMultiplesOfDaily(t *testing.T) {
	ctx := context.Background()
	ds := &domain.Dataset{Daily: []domain.DailyDemandRecord{rec(0, 1, 1), rec(1, 1, 1), rec(2, 1, 2)}}
	e := newEngine(t, ds, Baseline{})

	daily, err := e.PredictDemand(ctx, 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.33, daily.Value, 1e-9)

	weekly, err := e.PredictDemand(ctx, 1, domain.PeriodWeekly, nil)
	require.NoError(t, err)
	assert.InDelta(t, 7*daily.Value, weekly.Value, 1e-9)

	monthly, err := e.PredictDemand(ctx, 1, domain.PeriodMonthly, nil)
	require.NoError(t, err)
	assert.InDelta(t, 30*daily.Value, monthly.Value, 1e-9)

	detail, err := e.PredictDemandDetailed(ctx, 1, domain.PeriodMonthly, nil)
	require.NoError(t, err)
	assert.InDelta(t, 39.9, detail.MovingAverage, 1e-9)
}

func TestPredictDemandWindowUsesLastObservations(t *testing.T) {
	ds := &domain.Dataset{}
	for d := 0; d < 20; d++ {
		qty := int64(100)
		if d >= 6 {
			qty = 2
		}
		ds.Daily = append(ds.Daily, rec(d, 1, qty))
	}
	e := newEngine(t, ds, Baseline{})

	got, err := e.PredictDemand(context.Background(), 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got.Value, 1e-9)
}

func TestPredictDemandDetailedFallbackMirrorsMovingAverage(t *testing.T) {
	e := newEngine(t, flatDataset(), Baseline{})

	got, err := e.PredictDemandDetailed(context.Background(), 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodMovingAverage, got.MethodUsed)
	for _, v := range []float64{got.LinearRegression, got.RandomForest, got.LightGBM, got.Ensemble} {
		assert.Equal(t, got.MovingAverage, v)
	}
	assert.Equal(t, int64(33), got.TotalHistoricalQuantity)
	assert.Equal(t, 3, got.DataPoints)
}

func TestPredictDemandTrained(t *testing.T) {
	e := newEngine(t, flatDataset(), Trained{Model: stubModel(1)})

	got, err := e.PredictDemandDetailed(context.Background(), 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodMLModels, got.MethodUsed)
	assert.InDelta(t, 11.0, got.LinearRegression, 1e-9)
	assert.InDelta(t, 5.0, got.RandomForest, 1e-9)
	assert.InDelta(t, 2.0, got.LightGBM, 1e-9)
	assert.InDelta(t, 6.0, got.Ensemble, 1e-9)
	assert.InDelta(t, 11.0, got.MovingAverage, 1e-9)

	weekly, err := e.PredictDemand(context.Background(), 1, domain.PeriodWeekly, nil)
	require.NoError(t, err)
	assert.InDelta(t, 42.0, weekly.Value, 1e-9)
}

func TestPredictDemandNeverNegative(t *testing.T) {
	e := newEngine(t, flatDataset(), Trained{Model: stubModel(-50)})

	for _, p := range []domain.Period{domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly} {
		got, err := e.PredictDemandDetailed(context.Background(), 1, p, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Ensemble, 0.0)
		assert.GreaterOrEqual(t, got.LinearRegression, 0.0)
	}
}

func TestPredictDemandLocationFilter(t *testing.T) {
	ds := &domain.Dataset{Daily: []domain.DailyDemandRecord{
		recAt(0, 1, 4, 1), recAt(0, 1, 6, 2),
		recAt(1, 1, 2, 1), recAt(1, 1, 8, 2),
	}}
	e := newEngine(t, ds, Baseline{})
	ctx := context.Background()
	loc := int64(2)

	all, err := e.PredictDemand(ctx, 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, all.Value, 1e-9)

	one, err := e.PredictDemand(ctx, 1, domain.PeriodDaily, &loc)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, one.Value, 1e-9)

	missing := int64(9)
	none, err := e.PredictDemand(ctx, 1, domain.PeriodDaily, &missing)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodNoData, none.MethodUsed)
}

func TestCalculateReorderPoint(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, flatDataset(), Baseline{})

	got, err := e.CalculateReorderPoint(ctx, 1, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
	assert.GreaterOrEqual(t, got, int64(math.Ceil(11*3)))

	got, err = e.CalculateReorderPoint(ctx, 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	got, err = e.CalculateReorderPoint(ctx, 42, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = e.CalculateReorderPoint(ctx, 1, -1, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestReorderPointBound(t *testing.T) {
	for _, daily := range []float64{0.01, 0.5, 1, 2.33, 11, 250.75} {
		for lead := 1; lead <= 14; lead++ {
			assert.GreaterOrEqual(t, reorderPoint(daily, lead), int64(math.Ceil(daily*float64(lead))))
		}
	}
}

func TestGetPrepSuggestions(t *testing.T) {
	ds := &domain.Dataset{
		Daily: []domain.DailyDemandRecord{
			rec(0, 1, 10), rec(1, 1, 12), rec(2, 1, 11),
			rec(0, 2, 0), rec(1, 2, 0),
			rec(0, 3, 50),
		},
		Items: []domain.ItemPopularity{{ItemID: 1, ItemName: "Latte", OrderCount: 3}},
	}
	e := newEngine(t, ds, Baseline{})

	got, err := e.GetPrepSuggestions(context.Background(), nil, 2, 1.2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ItemID)
	assert.Equal(t, "3", got[0].ItemName)
	assert.Equal(t, int64(60), got[0].SuggestedPrepQuantity)
	assert.Equal(t, int64(1), got[1].ItemID)
	assert.Equal(t, "Latte", got[1].ItemName)
	assert.Equal(t, int64(14), got[1].SuggestedPrepQuantity)
	assert.Equal(t, 1.2, got[1].SafetyFactor)

	all, err := e.GetPrepSuggestions(context.Background(), nil, 10, 1.2)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[2].SuggestedPrepQuantity, "zero demand still preps one")

	_, err = e.GetPrepSuggestions(context.Background(), nil, 0, 1.2)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.GetPrepSuggestions(context.Background(), nil, 5, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestPerItemFailureIsIsolated(t *testing.T) {
	ds := &domain.Dataset{Daily: []domain.DailyDemandRecord{
		rec(0, 1, 10), rec(1, 1, 11),
		rec(0, 2, 4), rec(1, 2, 0),
	}}
	// The linear term overflows for any non-zero lag, so item 1 cannot be
	// predicted by the ensemble while item 2 can.
	e := newEngine(t, ds, Trained{Model: stubModel(math.MaxFloat64)})
	ctx := context.Background()

	one, err := e.PredictDemand(ctx, 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodMovingAverage, one.MethodUsed)
	assert.InDelta(t, 10.5, one.Value, 1e-9)

	two, err := e.PredictDemand(ctx, 2, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodMLModels, two.MethodUsed)

	prep, err := e.GetPrepSuggestions(ctx, nil, 5, 1.2)
	require.NoError(t, err)
	assert.Len(t, prep, 2)
}

func TestGenerateRecommendations(t *testing.T) {
	e := newEngine(t, flatDataset(), Baseline{})

	got := e.GenerateRecommendations(context.Background(), 1, nil)
	assert.Equal(t, "Latte", got.ItemName)
	assert.InDelta(t, 11.0, got.PredictedDailyDemand, 1e-9)
	assert.InDelta(t, 77.0, got.PredictedWeeklyDemand, 1e-9)
	assert.Equal(t, int64(50), got.ReorderPoint)
	assert.Equal(t, domain.StatusOptimal, got.Status)
	assert.Equal(t, domain.ActionPrepAndMonitor, got.Action)

	none := e.GenerateRecommendations(context.Background(), 5, nil)
	assert.Equal(t, domain.StatusNoHistory, none.Status)
	assert.Equal(t, domain.ActionCollectMoreData, none.Action)
}

func TestHealth(t *testing.T) {
	e := newEngine(t, flatDataset(), Trained{Model: stubModel(1)})

	h := e.Health()
	assert.Equal(t, "trained", h.Strategy)
	assert.Equal(t, 3, h.DailyRecords)
	assert.Equal(t, 1, h.Items)
	require.NotNil(t, h.DateRange.Min)
	assert.Equal(t, "2024-01-01", *h.DateRange.Min)
	assert.Equal(t, "2024-01-03", *h.DateRange.Max)
	assert.Equal(t, []string{"lag_1"}, h.FeatureColumns)
	assert.Contains(t, h.ModelMetrics, forecast.ModelEnsemble)
}

func TestNewEngineRejectsTrainedWithoutModel(t *testing.T) {
	_, err := NewEngine(flatDataset(), Trained{}, DefaultOptions())
	assert.Error(t, err)

	_, err = NewEngine(nil, Baseline{}, DefaultOptions())
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}
