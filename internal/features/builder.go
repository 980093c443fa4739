package features

import (
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/demand"
	"github.com/andresuchdata/freshflow-go/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// DefaultMinHistoryDays is the minimum number of observations an item needs
// to contribute training rows.
const DefaultMinHistoryDays = 5

// RowMeta identifies the (date, item) a training row was built from.
type RowMeta struct {
	Date   time.Time
	ItemID int64
}

// TrainingMatrix is the supervised-learning view of the daily series.
type TrainingMatrix struct {
	Columns []string
	X       [][]float64
	Y       []float64
	Meta    []RowMeta
}

// Len returns the number of rows.
func (m *TrainingMatrix) Len() int { return len(m.Y) }

type seriesKey struct {
	item     int64
	location int64
	hasLoc   bool
}

// BuildTrainingMatrix joins the series with item popularity and derives
// calendar, lag and rolling features per item. Lags and rolling statistics
// only look at earlier observations of the same item; rows without full lag
// coverage are dropped.
func BuildTrainingMatrix(series []domain.DailyDemandRecord, items []domain.ItemPopularity, minHistoryDays int) (*TrainingMatrix, error) {
	if minHistoryDays <= 0 {
		minHistoryDays = DefaultMinHistoryDays
	}

	orderCounts := orderCountIndex(items)
	groups := groupSeries(series)

	keys := make([]seriesKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].item != keys[j].item {
			return keys[i].item < keys[j].item
		}
		return keys[i].location < keys[j].location
	})

	m := &TrainingMatrix{Columns: Columns()}
	maxLag := LagDays[len(LagDays)-1]
	for _, key := range keys {
		recs := groups[key]
		if len(recs) < minHistoryDays {
			continue
		}
		qty := make([]float64, len(recs))
		for i, r := range recs {
			qty[i] = float64(r.Quantity)
		}

		for i := maxLag; i < len(recs); i++ {
			row := FeatureRow{ItemID: key.item, OrderCount: orderCounts[key.item]}
			calendar(&row, recs[i].Date)
			for _, lag := range LagDays {
				setLag(&row, lag, qty[i-lag])
			}
			start := i - RollingWindow
			if start < 0 {
				start = 0
			}
			row.RollingMean7, row.RollingStd7 = rollingStats(qty[start:i])

			if err := row.Validate(); err != nil {
				return nil, fmt.Errorf("item %d on %s: %w", key.item, row.Date.Format(domain.DateLayout), err)
			}
			m.X = append(m.X, row.Values())
			m.Y = append(m.Y, qty[i])
			m.Meta = append(m.Meta, RowMeta{Date: row.Date, ItemID: key.item})
		}
	}
	return m, nil
}

// PredictionOptions tunes BuildPredictionRow. Zero values use the contract.
type PredictionOptions struct {
	// LagDays must be a subset of LagDays; omitted lags are emitted as 0.
	LagDays       []int
	RollingWindow int
}

// BuildPredictionRow builds the feature row for target for one item's
// series. Only observations strictly before target are used. Lags beyond the
// available history are 0; rolling std is 0 with fewer than two points.
func BuildPredictionRow(series []domain.DailyDemandRecord, orderCount float64, target time.Time, opts PredictionOptions) (FeatureRow, error) {
	lags := opts.LagDays
	if len(lags) == 0 {
		lags = LagDays
	}
	maxLag := 0
	for _, lag := range lags {
		if !isContractLag(lag) {
			return FeatureRow{}, &domain.ParamError{Name: "lag_days", Value: lag, Reason: "not a contracted lag"}
		}
		if lag > maxLag {
			maxLag = lag
		}
	}
	window := opts.RollingWindow
	if window <= 0 {
		window = RollingWindow
	}

	target = domain.Day(target)
	before := make([]domain.DailyDemandRecord, 0, len(series))
	for _, r := range series {
		if domain.Day(r.Date).Before(target) {
			before = append(before, r)
		}
	}
	if len(before) == 0 {
		return FeatureRow{}, domain.ErrNoHistory
	}
	sort.SliceStable(before, func(i, j int) bool { return before[i].Date.Before(before[j].Date) })

	tail := before
	if len(tail) > maxLag+1 {
		tail = tail[len(tail)-(maxLag+1):]
	}
	qty := make([]float64, len(tail))
	for i, r := range tail {
		qty[i] = float64(r.Quantity)
	}

	row := FeatureRow{ItemID: before[0].ItemID, OrderCount: orderCount}
	calendar(&row, target)
	for _, lag := range lags {
		if len(qty) >= lag {
			setLag(&row, lag, qty[len(qty)-lag])
		}
	}
	rolling := qty
	if len(rolling) > window {
		rolling = rolling[len(rolling)-window:]
	}
	row.RollingMean7, row.RollingStd7 = rollingStats(rolling)

	if err := row.Validate(); err != nil {
		return FeatureRow{}, fmt.Errorf("prediction row: %w", err)
	}
	return row, nil
}

// rollingStats returns the mean and sample standard deviation of window.
// The deviation is 0 for fewer than two values.
func rollingStats(window []float64) (float64, float64) {
	if len(window) == 0 {
		return 0, 0
	}
	if len(window) == 1 {
		return window[0], 0
	}
	mean, std := stat.MeanStdDev(window, nil)
	return mean, std
}

func orderCountIndex(items []domain.ItemPopularity) map[int64]float64 {
	idx := make(map[int64]float64, len(items))
	for _, it := range items {
		if _, dup := idx[it.ItemID]; dup {
			continue
		}
		idx[it.ItemID] = float64(it.OrderCount)
	}
	return idx
}

// groupSeries splits series per item and location, summing duplicate days
// first so a day never contributes to its own lags.
func groupSeries(series []domain.DailyDemandRecord) map[seriesKey][]domain.DailyDemandRecord {
	groups := make(map[seriesKey][]domain.DailyDemandRecord)
	for _, r := range demand.Merge(series) {
		key := seriesKey{item: r.ItemID}
		if r.LocationID != nil {
			key.location = *r.LocationID
			key.hasLoc = true
		}
		groups[key] = append(groups[key], r)
	}
	for _, recs := range groups {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	}
	return groups
}
