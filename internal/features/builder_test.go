package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday

func dailySeries(item int64, quantities ...int64) []domain.DailyDemandRecord {
	out := make([]domain.DailyDemandRecord, len(quantities))
	for i, q := range quantities {
		out[i] = domain.DailyDemandRecord{Date: start.AddDate(0, 0, i), ItemID: item, Quantity: q}
	}
	return out
}

func rangeQty(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestColumnsContract(t *testing.T) {
	assert.Equal(t, []string{
		"day_of_week", "month", "is_weekend", "day_of_month", "order_count",
		"lag_1", "lag_2", "lag_3", "lag_7", "lag_14",
		"rolling_mean_7", "rolling_std_7",
	}, Columns())
}

func TestBuildTrainingMatrixLagsAndRolling(t *testing.T) {
	series := dailySeries(7, rangeQty(20)...)
	items := []domain.ItemPopularity{{ItemID: 7, ItemName: "Latte", OrderCount: 99}}

	m, err := BuildTrainingMatrix(series, items, 5)
	require.NoError(t, err)

	// The first 14 days cannot carry lag_14.
	require.Equal(t, 6, m.Len())
	assert.Len(t, m.X[0], 12)

	first := m.X[0]
	assert.Equal(t, start.AddDate(0, 0, 14), m.Meta[0].Date)
	assert.Equal(t, int64(7), m.Meta[0].ItemID)
	assert.Equal(t, 15.0, m.Y[0])
	assert.Equal(t, 0.0, first[0]) // 2024-01-15 is a Monday
	assert.Equal(t, 1.0, first[1])
	assert.Equal(t, 0.0, first[2])
	assert.Equal(t, 15.0, first[3])
	assert.Equal(t, 99.0, first[4])
	assert.Equal(t, []float64{14, 13, 12, 8, 1}, first[5:10])
	// rolling over days 8..14 (quantities 8..14)
	assert.InDelta(t, 11.0, first[10], 1e-9)
	assert.InDelta(t, math.Sqrt(28.0/6.0), first[11], 1e-9)
}

func TestBuildTrainingMatrixSumsDuplicateDays(t *testing.T) {
	series := dailySeries(7, rangeQty(20)...)
	series = append(series, domain.DailyDemandRecord{Date: start.AddDate(0, 0, 17), ItemID: 7, Quantity: 5})

	m, err := BuildTrainingMatrix(series, nil, 5)
	require.NoError(t, err)
	require.Equal(t, 6, m.Len())

	assert.Equal(t, start.AddDate(0, 0, 17), m.Meta[3].Date)
	assert.Equal(t, 23.0, m.Y[3])
	assert.Equal(t, 17.0, m.X[3][5])
	assert.Equal(t, start.AddDate(0, 0, 18), m.Meta[4].Date)
	assert.Equal(t, 23.0, m.X[4][5])
}

func TestBuildTrainingMatrixDefaultsAndFilters(t *testing.T) {
	series := append(dailySeries(1, rangeQty(16)...), dailySeries(2, 1, 2, 3)...)

	m, err := BuildTrainingMatrix(series, nil, 0)
	require.NoError(t, err)

	require.Equal(t, 2, m.Len())
	for i, row := range m.X {
		assert.Equal(t, 0.0, row[4], "unmatched items default to order_count 0")
		assert.Equal(t, int64(1), m.Meta[i].ItemID)
	}
}

func TestBuildTrainingMatrixWeekendFlag(t *testing.T) {
	series := dailySeries(3, rangeQty(21)...)
	m, err := BuildTrainingMatrix(series, nil, 1)
	require.NoError(t, err)

	for i, row := range m.X {
		dow := int(row[0])
		assert.Equal(t, (int(m.Meta[i].Date.Weekday())+6)%7, dow)
		if dow >= 5 {
			assert.Equal(t, 1.0, row[2])
		} else {
			assert.Equal(t, 0.0, row[2])
		}
	}
}

func TestTrainingFeaturesIgnoreFutureObservations(t *testing.T) {
	series := dailySeries(5, rangeQty(30)...)
	before, err := BuildTrainingMatrix(series, nil, 1)
	require.NoError(t, err)

	mutated := append([]domain.DailyDemandRecord(nil), series...)
	mutated[25].Quantity = 1000
	after, err := BuildTrainingMatrix(mutated, nil, 1)
	require.NoError(t, err)

	require.Equal(t, before.Len(), after.Len())
	for i := range before.X {
		if !before.Meta[i].Date.After(mutated[25].Date) {
			assert.Equal(t, before.X[i], after.X[i], "row %s changed", before.Meta[i].Date)
		}
	}
}

func TestBuildPredictionRowNoHistory(t *testing.T) {
	series := dailySeries(1, 4, 5)

	_, err := BuildPredictionRow(nil, 0, start, PredictionOptions{})
	assert.True(t, errors.Is(err, domain.ErrNoHistory))

	_, err = BuildPredictionRow(series, 0, start, PredictionOptions{})
	assert.True(t, errors.Is(err, domain.ErrNoHistory), "observation on the target date is not history")
}

func TestBuildPredictionRowThinHistory(t *testing.T) {
	series := dailySeries(9, 10, 12, 11)
	target := start.AddDate(0, 0, 3)

	row, err := BuildPredictionRow(series, 4, target, PredictionOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(9), row.ItemID)
	assert.Equal(t, 3, row.DayOfWeek)
	assert.Equal(t, 4.0, row.OrderCount)
	assert.Equal(t, 11.0, row.Lag1)
	assert.Equal(t, 12.0, row.Lag2)
	assert.Equal(t, 10.0, row.Lag3)
	assert.Equal(t, 0.0, row.Lag7)
	assert.Equal(t, 0.0, row.Lag14)
	assert.InDelta(t, 11.0, row.RollingMean7, 1e-9)
	assert.InDelta(t, 1.0, row.RollingStd7, 1e-9)
}

func TestBuildPredictionRowSingleObservation(t *testing.T) {
	row, err := BuildPredictionRow(dailySeries(1, 6), 0, start.AddDate(0, 0, 5), PredictionOptions{})
	require.NoError(t, err)

	assert.Equal(t, 6.0, row.Lag1)
	assert.Equal(t, 6.0, row.RollingMean7)
	assert.Equal(t, 0.0, row.RollingStd7)
}

func TestBuildPredictionRowOnlyUsesEarlierDays(t *testing.T) {
	series := dailySeries(1, rangeQty(30)...)
	target := start.AddDate(0, 0, 20)

	row, err := BuildPredictionRow(series, 0, target, PredictionOptions{})
	require.NoError(t, err)

	// Observations before the target are quantities 1..20.
	assert.Equal(t, 20.0, row.Lag1)
	assert.Equal(t, 7.0, row.Lag14)
	assert.InDelta(t, 17.0, row.RollingMean7, 1e-9)

	mutated := append([]domain.DailyDemandRecord(nil), series...)
	for i := 20; i < len(mutated); i++ {
		mutated[i].Quantity = 500
	}
	again, err := BuildPredictionRow(mutated, 0, target, PredictionOptions{})
	require.NoError(t, err)
	assert.Equal(t, row.Values(), again.Values())
}

func TestBuildPredictionRowCustomLags(t *testing.T) {
	series := dailySeries(1, rangeQty(10)...)

	row, err := BuildPredictionRow(series, 0, start.AddDate(0, 0, 10), PredictionOptions{LagDays: []int{1, 2}, RollingWindow: 3})
	require.NoError(t, err)
	assert.Equal(t, 10.0, row.Lag1)
	assert.Equal(t, 9.0, row.Lag2)
	assert.Equal(t, 0.0, row.Lag3)
	// window is max(lag)+1 = 3 observations: 8, 9, 10
	assert.InDelta(t, 9.0, row.RollingMean7, 1e-9)

	_, err = BuildPredictionRow(series, 0, start.AddDate(0, 0, 10), PredictionOptions{LagDays: []int{5}})
	assert.True(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestFeatureRowValidate(t *testing.T) {
	row := FeatureRow{DayOfWeek: 2, Month: 5, DayOfMonth: 14}
	require.NoError(t, row.Validate())

	bad := row
	bad.Month = 13
	assert.Error(t, bad.Validate())

	bad = row
	bad.Lag7 = math.NaN()
	assert.Error(t, bad.Validate())

	bad = row
	bad.IsWeekend = 2
	assert.Error(t, bad.Validate())
}
