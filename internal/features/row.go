package features

import (
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

// Column names in contract order.
const (
	ColDayOfWeek    = "day_of_week"
	ColMonth        = "month"
	ColIsWeekend    = "is_weekend"
	ColDayOfMonth   = "day_of_month"
	ColOrderCount   = "order_count"
	ColLag1         = "lag_1"
	ColLag2         = "lag_2"
	ColLag3         = "lag_3"
	ColLag7         = "lag_7"
	ColLag14        = "lag_14"
	ColRollingMean7 = "rolling_mean_7"
	ColRollingStd7  = "rolling_std_7"
)

var columns = []string{
	ColDayOfWeek, ColMonth, ColIsWeekend, ColDayOfMonth, ColOrderCount,
	ColLag1, ColLag2, ColLag3, ColLag7, ColLag14,
	ColRollingMean7, ColRollingStd7,
}

// LagDays are the contracted lag offsets.
var LagDays = []int{1, 2, 3, 7, 14}

// RollingWindow is the contracted rolling window length.
const RollingWindow = 7

// Columns returns the feature column names in contract order.
func Columns() []string {
	return append([]string(nil), columns...)
}

// FeatureRow is one (item, date) observation of the twelve model features.
type FeatureRow struct {
	ItemID int64
	Date   time.Time

	DayOfWeek    int
	Month        int
	IsWeekend    int
	DayOfMonth   int
	OrderCount   float64
	Lag1         float64
	Lag2         float64
	Lag3         float64
	Lag7         float64
	Lag14        float64
	RollingMean7 float64
	RollingStd7  float64
}

// Values returns the features in contract order.
func (r FeatureRow) Values() []float64 {
	return []float64{
		float64(r.DayOfWeek), float64(r.Month), float64(r.IsWeekend), float64(r.DayOfMonth),
		r.OrderCount,
		r.Lag1, r.Lag2, r.Lag3, r.Lag7, r.Lag14,
		r.RollingMean7, r.RollingStd7,
	}
}

// Map returns the features keyed by column name.
func (r FeatureRow) Map() map[string]float64 {
	vals := r.Values()
	out := make(map[string]float64, len(columns))
	for i, c := range columns {
		out[c] = vals[i]
	}
	return out
}

// Validate checks the calendar ranges and that every value is a finite,
// non-negative number.
func (r FeatureRow) Validate() error {
	switch {
	case r.DayOfWeek < 0 || r.DayOfWeek > 6:
		return fmt.Errorf("%s out of range: %d", ColDayOfWeek, r.DayOfWeek)
	case r.Month < 1 || r.Month > 12:
		return fmt.Errorf("%s out of range: %d", ColMonth, r.Month)
	case r.IsWeekend != 0 && r.IsWeekend != 1:
		return fmt.Errorf("%s out of range: %d", ColIsWeekend, r.IsWeekend)
	case r.DayOfMonth < 1 || r.DayOfMonth > 31:
		return fmt.Errorf("%s out of range: %d", ColDayOfMonth, r.DayOfMonth)
	}
	for i, v := range r.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not finite", columns[i])
		}
		if v < 0 {
			return fmt.Errorf("%s is negative: %g", columns[i], v)
		}
	}
	return nil
}

// dayOfWeek numbers Monday as 0 and Sunday as 6.
func dayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func calendar(row *FeatureRow, date time.Time) {
	date = domain.Day(date)
	row.Date = date
	row.DayOfWeek = dayOfWeek(date)
	row.Month = int(date.Month())
	row.DayOfMonth = date.Day()
	if row.DayOfWeek >= 5 {
		row.IsWeekend = 1
	}
}

func setLag(row *FeatureRow, lag int, v float64) {
	switch lag {
	case 1:
		row.Lag1 = v
	case 2:
		row.Lag2 = v
	case 3:
		row.Lag3 = v
	case 7:
		row.Lag7 = v
	case 14:
		row.Lag14 = v
	}
}

func isContractLag(lag int) bool {
	for _, l := range LagDays {
		if l == lag {
			return true
		}
	}
	return false
}
