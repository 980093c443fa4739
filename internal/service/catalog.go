package service

import (
	"context"
	"sort"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/anomaly"
	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/rs/zerolog/log"
)

// GetTopItems ranks items by distinct order count or by total quantity.
func (e *Engine) GetTopItems(n int, by domain.RankBy) ([]domain.TopItem, error) {
	if n < 1 {
		return nil, &domain.ParamError{Name: "n", Value: n, Reason: "must be at least 1"}
	}
	by, err := domain.ParseRankBy(string(by))
	if err != nil {
		return nil, err
	}

	out := make([]domain.TopItem, 0, n)
	if by == domain.RankByOrderCount {
		for _, it := range e.items {
			if len(out) == n {
				break
			}
			count := it.OrderCount
			out = append(out, domain.TopItem{ItemID: it.ItemID, ItemName: e.itemName(it.ItemID), OrderCount: &count})
		}
		return out, nil
	}

	for _, id := range e.byTotal {
		if len(out) == n {
			break
		}
		total := e.stats[id].total
		out = append(out, domain.TopItem{ItemID: id, ItemName: e.itemName(id), TotalQuantity: &total})
	}
	return out, nil
}

// GetBestSellers returns the n items with the highest total quantity.
func (e *Engine) GetBestSellers(n int) ([]domain.BestSeller, error) {
	if n < 1 {
		return nil, &domain.ParamError{Name: "n", Value: n, Reason: "must be at least 1"}
	}
	ids := e.byTotal
	if len(ids) > n {
		ids = ids[:n]
	}
	out := make([]domain.BestSeller, len(ids))
	for i, id := range ids {
		out[i] = domain.BestSeller{ItemID: id, ItemName: e.itemName(id), TotalQuantity: e.stats[id].total}
	}
	return out, nil
}

type slowMover struct {
	id   int64
	avg  float64
	days int
}

// GetSlowMovingItems returns up to n items whose average daily demand over
// their active span is at most maxDailyAvg, slowest first.
func (e *Engine) GetSlowMovingItems(n int, maxDailyAvg float64) ([]domain.SlowMover, error) {
	if n < 1 {
		return nil, &domain.ParamError{Name: "n", Value: n, Reason: "must be at least 1"}
	}
	if maxDailyAvg < 0 {
		return nil, &domain.ParamError{Name: "max_daily_avg", Value: maxDailyAvg, Reason: "must not be negative"}
	}

	movers := e.slowMovers(maxDailyAvg)
	if len(movers) > n {
		movers = movers[:n]
	}
	out := make([]domain.SlowMover, len(movers))
	for i, m := range movers {
		out[i] = domain.SlowMover{
			ItemID:             m.id,
			ItemName:           e.itemName(m.id),
			TotalQuantity:      e.stats[m.id].total,
			DaysActive:         m.days,
			AverageDailyDemand: round(m.avg, 4),
		}
	}
	return out, nil
}

func (e *Engine) slowMovers(maxDailyAvg float64) []slowMover {
	out := make([]slowMover, 0)
	for id, s := range e.stats {
		days := int(s.last.Sub(s.first)/(24*time.Hour)) + 1
		if days < 1 {
			days = 1
		}
		avg := float64(s.total) / float64(days)
		if avg <= maxDailyAvg {
			out = append(out, slowMover{id: id, avg: avg, days: days})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].avg != out[j].avg {
			return out[i].avg < out[j].avg
		}
		return out[i].id < out[j].id
	})
	return out
}

// GetDemandSummary totals the series, optionally for one item or location,
// over the last lastNDays days before the latest matching record. A zero
// lastNDays covers all history.
func (e *Engine) GetDemandSummary(itemID, locationID *int64, lastNDays int) (domain.DemandSummary, error) {
	if lastNDays < 0 {
		return domain.DemandSummary{}, &domain.ParamError{Name: "last_n_days", Value: lastNDays, Reason: "must not be negative"}
	}

	matched := make([]domain.DailyDemandRecord, 0)
	var latest time.Time
	for _, r := range e.daily {
		if itemID != nil && r.ItemID != *itemID {
			continue
		}
		if !r.SameLocation(locationID) {
			continue
		}
		matched = append(matched, r)
		if r.Date.After(latest) {
			latest = r.Date
		}
	}

	summary := domain.DemandSummary{ItemID: itemID, LocationID: locationID}
	cutoff := latest.AddDate(0, 0, -lastNDays)
	items := make(map[int64]struct{})
	var lo, hi time.Time
	for _, r := range matched {
		if lastNDays > 0 && r.Date.Before(cutoff) {
			continue
		}
		summary.TotalQuantity += r.Quantity
		items[r.ItemID] = struct{}{}
		if lo.IsZero() || r.Date.Before(lo) {
			lo = r.Date
		}
		if r.Date.After(hi) {
			hi = r.Date
		}
	}
	summary.UniqueItems = len(items)
	summary.DateRange = dateRange(lo, hi, len(items) > 0)
	return summary, nil
}

// GetDemandHistory returns daily totals over the last lastNDays days, oldest
// first. Long enough histories carry an anomaly score per day. A zero
// lastNDays covers all history.
func (e *Engine) GetDemandHistory(ctx context.Context, lastNDays int) ([]domain.HistoryPoint, error) {
	if lastNDays < 0 {
		return nil, &domain.ParamError{Name: "last_n_days", Value: lastNDays, Reason: "must not be negative"}
	}
	if len(e.daily) == 0 {
		return []domain.HistoryPoint{}, nil
	}

	_, span := tracer.Start(ctx, "engine.demand_history")
	defer span.End()

	cutoff := e.maxDate.AddDate(0, 0, -lastNDays)
	totals := make(map[time.Time]int64)
	for _, r := range e.daily {
		if lastNDays > 0 && r.Date.Before(cutoff) {
			continue
		}
		totals[r.Date] += r.Quantity
	}
	days := make([]time.Time, 0, len(totals))
	for d := range totals {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]domain.HistoryPoint, len(days))
	quantities := make([]float64, len(days))
	for i, d := range days {
		out[i] = domain.HistoryPoint{Date: d.Format(domain.DateLayout), Quantity: totals[d]}
		quantities[i] = float64(totals[d])
	}

	if len(quantities) >= anomaly.MinPoints {
		scores, err := e.anomalyScores(quantities)
		if err != nil {
			log.Warn().Err(err).Msg("engine: anomaly scoring failed")
			return out, nil
		}
		for i := range out {
			s := round(scores[i], 4)
			out[i].AnomalyScore = &s
		}
	}
	return out, nil
}

// anomalyScores scores a trailing window of the history once per engine.
// Windows are suffixes of the same series, so their length identifies them.
func (e *Engine) anomalyScores(quantities []float64) ([]float64, error) {
	e.anomalyMu.Lock()
	defer e.anomalyMu.Unlock()

	if scores, ok := e.anomalies[len(quantities)]; ok {
		return scores, nil
	}
	scores, err := anomaly.Score(quantities, anomaly.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if e.anomalies == nil {
		e.anomalies = make(map[int][]float64)
	}
	e.anomalies[len(quantities)] = scores
	return scores, nil
}
