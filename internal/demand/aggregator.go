package demand

import (
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/domain"
)

// DefaultClosedStatuses are the order states that count as a completed sale.
var DefaultClosedStatuses = []string{"closed"}

// OrderLine is one raw order-line row after column harmonization.
type OrderLine struct {
	OrderID    int64
	ItemID     int64
	ItemName   string
	Quantity   int64
	Created    string
	Status     string
	LocationID *int64
}

type Options struct {
	// ByLocation keys the series by (date, item, location). Lines without a
	// location are dropped in that mode.
	ByLocation bool
	// ClosedStatuses overrides DefaultClosedStatuses.
	ClosedStatuses []string
	// IgnoreStatus counts every line; set when the source has no status column.
	IgnoreStatus bool
}

// Stats reports what Aggregate discarded.
type Stats struct {
	Lines            int `json:"lines"`
	Counted          int `json:"counted"`
	BadTimestamp     int `json:"bad_timestamp"`
	NotClosed        int `json:"not_closed"`
	NegativeQuantity int `json:"negative_quantity"`
	MissingLocation  int `json:"missing_location"`
}

type seriesKey struct {
	date     time.Time
	item     int64
	location int64
	hasLoc   bool
}

// Aggregate collapses order lines into one record per (date, item[,
// location]), summing quantities. Output is sorted by item, date, location.
func Aggregate(lines []OrderLine, opts Options) ([]domain.DailyDemandRecord, Stats) {
	closed := closedSet(opts.ClosedStatuses)
	stats := Stats{Lines: len(lines)}

	sums := make(map[seriesKey]int64)
	for _, line := range lines {
		if !opts.IgnoreStatus {
			if _, ok := closed[normalizeStatus(line.Status)]; !ok {
				stats.NotClosed++
				continue
			}
		}
		if line.Quantity < 0 {
			stats.NegativeQuantity++
			continue
		}
		ts, err := ParseTimestamp(line.Created)
		if err != nil {
			stats.BadTimestamp++
			continue
		}

		key := seriesKey{date: domain.Day(ts), item: line.ItemID}
		if opts.ByLocation {
			if line.LocationID == nil {
				stats.MissingLocation++
				continue
			}
			key.location = *line.LocationID
			key.hasLoc = true
		}
		sums[key] += line.Quantity
		stats.Counted++
	}

	return fromSums(sums), stats
}

// Merge sums duplicate (date, item, location) records and sorts the result.
// A series that is already daily-granular comes back unchanged apart from
// ordering.
func Merge(records []domain.DailyDemandRecord) []domain.DailyDemandRecord {
	sums := make(map[seriesKey]int64, len(records))
	for _, r := range records {
		key := seriesKey{date: domain.Day(r.Date), item: r.ItemID}
		if r.LocationID != nil {
			key.location = *r.LocationID
			key.hasLoc = true
		}
		sums[key] += r.Quantity
	}
	return fromSums(sums)
}

// SortRecords orders records by item, date, then location in place.
func SortRecords(records []domain.DailyDemandRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return locationOrder(a.LocationID) < locationOrder(b.LocationID)
	})
}

func fromSums(sums map[seriesKey]int64) []domain.DailyDemandRecord {
	out := make([]domain.DailyDemandRecord, 0, len(sums))
	for key, qty := range sums {
		rec := domain.DailyDemandRecord{Date: key.date, ItemID: key.item, Quantity: qty}
		if key.hasLoc {
			loc := key.location
			rec.LocationID = &loc
		}
		out = append(out, rec)
	}
	SortRecords(out)
	return out
}

func locationOrder(loc *int64) int64 {
	if loc == nil {
		return -1 << 63
	}
	return *loc
}

func closedSet(statuses []string) map[string]struct{} {
	if len(statuses) == 0 {
		statuses = DefaultClosedStatuses
	}
	set := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		set[normalizeStatus(s)] = struct{}{}
	}
	return set
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
