package service

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/demand"
	"github.com/andresuchdata/freshflow-go/internal/domain"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/andresuchdata/freshflow-go/internal/service")

// Options are the engine's policy knobs.
type Options struct {
	WindowDays   int
	LeadTimeDays int
	SafetyFactor float64
}

func DefaultOptions() Options {
	return Options{WindowDays: 14, LeadTimeDays: 3, SafetyFactor: 1.2}
}

// reorderSafety is the share of lead-time demand held as safety stock.
const reorderSafety = 0.5

type pairKey struct{ a, b int64 }

type itemStats struct {
	total int64
	first time.Time
	last  time.Time
}

// Engine answers demand and inventory questions from an immutable dataset.
// It is safe for concurrent use.
type Engine struct {
	opts     Options
	strategy PredictionStrategy

	daily     []domain.DailyDemandRecord
	byItem    map[int64][]domain.DailyDemandRecord
	stats     map[int64]*itemStats
	byTotal   []int64
	items     []domain.ItemPopularity
	names     map[int64]string
	orders    map[int64]float64
	pairs     map[pairKey]int64
	pairOrder []pairKey
	pairRows  int
	minDate   time.Time
	maxDate   time.Time
	builtAt   time.Time

	// anomalies memoizes history scores by the number of trailing days
	// scored, so repeated requests see the same values.
	anomalyMu sync.Mutex
	anomalies map[int][]float64
}

// NewEngine indexes the dataset. The dataset must not be modified afterwards.
func NewEngine(ds *domain.Dataset, strategy PredictionStrategy, opts Options) (*Engine, error) {
	if ds == nil {
		return nil, &domain.UnavailableError{Resource: "dataset"}
	}
	if strategy == nil {
		strategy = Baseline{}
	}
	if t, ok := strategy.(Trained); ok && t.Model == nil {
		return nil, errors.New("trained strategy without a model")
	}
	def := DefaultOptions()
	if opts.WindowDays <= 0 {
		opts.WindowDays = def.WindowDays
	}
	if opts.LeadTimeDays < 0 {
		opts.LeadTimeDays = def.LeadTimeDays
	}
	if opts.SafetyFactor <= 0 {
		opts.SafetyFactor = def.SafetyFactor
	}

	e := &Engine{
		opts:     opts,
		strategy: strategy,
		builtAt:  time.Now().UTC(),
		daily:    demand.Merge(ds.Daily),
		byItem:   make(map[int64][]domain.DailyDemandRecord),
		stats:    make(map[int64]*itemStats),
		names:    make(map[int64]string, len(ds.Items)),
		orders:   make(map[int64]float64, len(ds.Items)),
	}

	for _, r := range e.daily {
		e.byItem[r.ItemID] = append(e.byItem[r.ItemID], r)

		s, ok := e.stats[r.ItemID]
		if !ok {
			s = &itemStats{first: r.Date, last: r.Date}
			e.stats[r.ItemID] = s
			e.byTotal = append(e.byTotal, r.ItemID)
		}
		s.total += r.Quantity
		if r.Date.Before(s.first) {
			s.first = r.Date
		}
		if r.Date.After(s.last) {
			s.last = r.Date
		}
		if e.minDate.IsZero() || r.Date.Before(e.minDate) {
			e.minDate = r.Date
		}
		if r.Date.After(e.maxDate) {
			e.maxDate = r.Date
		}
	}
	sort.SliceStable(e.byTotal, func(i, j int) bool {
		ti, tj := e.stats[e.byTotal[i]].total, e.stats[e.byTotal[j]].total
		if ti != tj {
			return ti > tj
		}
		return e.byTotal[i] < e.byTotal[j]
	})

	e.items = append([]domain.ItemPopularity(nil), ds.Items...)
	sort.SliceStable(e.items, func(i, j int) bool {
		if e.items[i].OrderCount != e.items[j].OrderCount {
			return e.items[i].OrderCount > e.items[j].OrderCount
		}
		return e.items[i].ItemID < e.items[j].ItemID
	})
	for _, it := range e.items {
		if _, seen := e.names[it.ItemID]; !seen {
			e.names[it.ItemID] = it.ItemName
			e.orders[it.ItemID] = float64(it.OrderCount)
		}
	}

	e.indexPairs(ds.Pairs)
	return e, nil
}

// indexPairs counts, for every unordered item pair, the distinct orders
// containing both.
func (e *Engine) indexPairs(rows []domain.OrderItemPair) {
	e.pairRows = len(rows)
	e.pairs = make(map[pairKey]int64)

	baskets := make(map[int64]map[int64]struct{})
	for _, r := range rows {
		if baskets[r.OrderID] == nil {
			baskets[r.OrderID] = make(map[int64]struct{})
		}
		baskets[r.OrderID][r.ItemID] = struct{}{}
	}
	for _, basket := range baskets {
		if len(basket) < 2 {
			continue
		}
		ids := make([]int64, 0, len(basket))
		for id := range basket {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				e.pairs[pairKey{ids[i], ids[j]}]++
			}
		}
	}

	e.pairOrder = make([]pairKey, 0, len(e.pairs))
	for k := range e.pairs {
		e.pairOrder = append(e.pairOrder, k)
	}
	sort.Slice(e.pairOrder, func(i, j int) bool {
		a, b := e.pairOrder[i], e.pairOrder[j]
		if e.pairs[a] != e.pairs[b] {
			return e.pairs[a] > e.pairs[b]
		}
		if a.a != b.a {
			return a.a < b.a
		}
		return a.b < b.b
	})
}

// Strategy reports how predictions are produced.
func (e *Engine) Strategy() PredictionStrategy { return e.strategy }

func (e *Engine) copurchase(a, b int64) int64 {
	if a > b {
		a, b = b, a
	}
	return e.pairs[pairKey{a, b}]
}

// itemName falls back to the id when the item is not in the lookup.
func (e *Engine) itemName(id int64) string {
	if name, ok := e.names[id]; ok && name != "" {
		return name
	}
	return strconv.FormatInt(id, 10)
}

// series returns one item's observations in date order. Without a location
// filter, quantities of the same day are summed across locations.
func (e *Engine) series(itemID int64, locationID *int64) []domain.DailyDemandRecord {
	recs := e.byItem[itemID]
	out := make([]domain.DailyDemandRecord, 0, len(recs))
	for _, r := range recs {
		if locationID != nil {
			if r.SameLocation(locationID) {
				out = append(out, r)
			}
			continue
		}
		if n := len(out); n > 0 && out[n-1].Date.Equal(r.Date) {
			out[n-1].Quantity += r.Quantity
			continue
		}
		r.LocationID = nil
		out = append(out, r)
	}
	return out
}

// totals ranks items by quantity, optionally within one location.
func (e *Engine) totals(locationID *int64) []int64 {
	if locationID == nil {
		return e.byTotal
	}
	sums := make(map[int64]int64)
	for _, r := range e.daily {
		if r.SameLocation(locationID) {
			sums[r.ItemID] += r.Quantity
		}
	}
	ids := make([]int64, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if sums[ids[i]] != sums[ids[j]] {
			return sums[ids[i]] > sums[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Health describes what the engine was built from.
func (e *Engine) Health() domain.EngineHealth {
	h := domain.EngineHealth{
		Strategy:     e.strategy.Name(),
		DailyRecords: len(e.daily),
		Items:        len(e.stats),
		OrderPairs:   e.pairRows,
		DateRange:    dateRange(e.minDate, e.maxDate, len(e.daily) > 0),
	}
	if t, ok := e.strategy.(Trained); ok {
		h.FeatureColumns = append([]string(nil), t.Model.Features...)
		h.ModelMetrics = make(map[string]any, len(t.Model.Metrics))
		for name, m := range t.Model.Metrics {
			h.ModelMetrics[name] = m
		}
	}
	return h
}

func dateRange(min, max time.Time, ok bool) domain.DateRange {
	if !ok {
		return domain.DateRange{}
	}
	lo, hi := min.Format(domain.DateLayout), max.Format(domain.DateLayout)
	return domain.DateRange{Min: &lo, Max: &hi}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func round2(v float64) float64 { return round(v, 2) }

// BuiltAt is when the engine was indexed. It identifies the build in cache
// keys.
func (e *Engine) BuiltAt() time.Time { return e.builtAt }
