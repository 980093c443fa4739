package service

import (
	"context"
	"fmt"
	"math"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/features"
	"github.com/andresuchdata/freshflow-go/internal/forecast"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// nextDay is one item's unscaled next-day view.
type nextDay struct {
	method        domain.Method
	pred          forecast.Prediction
	movingAverage float64
	total         int64
	points        int
}

func (e *Engine) nextDay(ctx context.Context, itemID int64, locationID *int64) nextDay {
	series := e.series(itemID, locationID)
	if len(series) == 0 {
		return nextDay{method: domain.MethodNoData}
	}

	out := nextDay{points: len(series)}
	for _, r := range series {
		out.total += r.Quantity
	}
	out.movingAverage = movingAverage(series, e.opts.WindowDays)

	if t, ok := e.strategy.(Trained); ok {
		pred, err := predictTrained(t.Model, series, e.orders[itemID])
		if err == nil {
			out.method = domain.MethodMLModels
			out.pred = pred
			return out
		}
		log.Warn().Err(err).Int64("item_id", itemID).Msg("engine: ensemble prediction failed, using moving average")
	}

	out.method = domain.MethodMovingAverage
	out.pred = forecast.Prediction{
		Linear:   out.movingAverage,
		Forest:   out.movingAverage,
		Boosted:  out.movingAverage,
		Ensemble: out.movingAverage,
	}
	return out
}

func predictTrained(model *forecast.Model, series []domain.DailyDemandRecord, orderCount float64) (forecast.Prediction, error) {
	target := series[len(series)-1].Date.AddDate(0, 0, 1)
	row, err := features.BuildPredictionRow(series, orderCount, target, features.PredictionOptions{})
	if err != nil {
		return forecast.Prediction{}, fmt.Errorf("feature row: %w", err)
	}
	return model.Predict(row.Map())
}

// movingAverage is the mean of the last window observations, 0 when empty.
func movingAverage(series []domain.DailyDemandRecord, window int) float64 {
	if len(series) > window {
		series = series[len(series)-window:]
	}
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, r := range series {
		sum += float64(r.Quantity)
	}
	return sum / float64(len(series))
}

// scale rounds the daily value before multiplying so every period is an
// exact multiple of the reported daily figure.
func scale(v float64, p domain.Period) float64 {
	daily := round2(math.Max(0, v))
	return round2(daily * p.Multiplier())
}

// PredictDemand returns the next-day prediction scaled to period. An item
// without history yields 0 with method no_data.
func (e *Engine) PredictDemand(ctx context.Context, itemID int64, period domain.Period, locationID *int64) (domain.DemandPrediction, error) {
	period, err := domain.ParsePeriod(string(period))
	if err != nil {
		return domain.DemandPrediction{}, err
	}

	nd := e.nextDay(ctx, itemID, locationID)
	return domain.DemandPrediction{
		ItemID:     itemID,
		Value:      scale(nd.pred.Ensemble, period),
		Unit:       "quantity",
		Period:     period,
		MethodUsed: nd.method,
	}, nil
}

// PredictDemandDetailed exposes every model's value. On the baseline path
// all model fields carry the moving average.
func (e *Engine) PredictDemandDetailed(ctx context.Context, itemID int64, period domain.Period, locationID *int64) (domain.DetailedPrediction, error) {
	period, err := domain.ParsePeriod(string(period))
	if err != nil {
		return domain.DetailedPrediction{}, err
	}

	nd := e.nextDay(ctx, itemID, locationID)
	return domain.DetailedPrediction{
		ItemID:                  itemID,
		Period:                  period,
		LinearRegression:        scale(nd.pred.Linear, period),
		RandomForest:            scale(nd.pred.Forest, period),
		LightGBM:                scale(nd.pred.Boosted, period),
		Ensemble:                scale(nd.pred.Ensemble, period),
		MovingAverage:           scale(nd.movingAverage, period),
		TotalHistoricalQuantity: nd.total,
		DataPoints:              nd.points,
		MethodUsed:              nd.method,
	}, nil
}

func (e *Engine) dailyDemand(ctx context.Context, itemID int64, locationID *int64) float64 {
	return scale(e.nextDay(ctx, itemID, locationID).pred.Ensemble, domain.PeriodDaily)
}

// CalculateReorderPoint is lead-time demand plus half of it as safety stock,
// rounded up.
func (e *Engine) CalculateReorderPoint(ctx context.Context, itemID int64, leadTimeDays int, locationID *int64) (int64, error) {
	if leadTimeDays < 0 {
		return 0, &domain.ParamError{Name: "lead_time_days", Value: leadTimeDays, Reason: "must not be negative"}
	}
	return reorderPoint(e.dailyDemand(ctx, itemID, locationID), leadTimeDays), nil
}

// DefaultLeadTime is the configured lead time in days.
func (e *Engine) DefaultLeadTime() int { return e.opts.LeadTimeDays }

// DefaultSafetyFactor is the configured prep safety factor.
func (e *Engine) DefaultSafetyFactor() float64 { return e.opts.SafetyFactor }

func reorderPoint(daily float64, leadTimeDays int) int64 {
	if daily <= 0 {
		return 0
	}
	leadDemand := daily * float64(leadTimeDays)
	return int64(math.Ceil(leadDemand + leadDemand*reorderSafety))
}

// GetPrepSuggestions predicts the top items by quantity and pads each
// prediction by safetyFactor. An item that cannot be predicted is skipped.
func (e *Engine) GetPrepSuggestions(ctx context.Context, locationID *int64, topN int, safetyFactor float64) ([]domain.PrepSuggestion, error) {
	if topN < 1 {
		return nil, &domain.ParamError{Name: "top_n", Value: topN, Reason: "must be at least 1"}
	}
	if safetyFactor <= 0 || math.IsNaN(safetyFactor) || math.IsInf(safetyFactor, 0) {
		return nil, &domain.ParamError{Name: "safety_factor", Value: safetyFactor, Reason: "must be positive"}
	}

	ctx, span := tracer.Start(ctx, "engine.prep_suggestions")
	defer span.End()

	ranked := e.totals(locationID)
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	span.SetAttributes(attribute.Int("items", len(ranked)))

	out := make([]domain.PrepSuggestion, 0, len(ranked))
	for _, id := range ranked {
		pred, err := e.safeDaily(ctx, id, locationID)
		if err != nil {
			log.Warn().Err(err).Int64("item_id", id).Msg("engine: prep suggestion skipped")
			continue
		}
		prep := int64(math.Ceil(pred * safetyFactor))
		if prep < 1 {
			prep = 1
		}
		out = append(out, domain.PrepSuggestion{
			ItemID:                id,
			ItemName:              e.itemName(id),
			PredictedDailyDemand:  pred,
			SuggestedPrepQuantity: prep,
			SafetyFactor:          safetyFactor,
		})
	}
	return out, nil
}

// safeDaily turns a panic inside one item's prediction into an error so a
// batch can carry on with the remaining items.
func (e *Engine) safeDaily(ctx context.Context, itemID int64, locationID *int64) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predict item %d: %v", itemID, r)
		}
	}()
	v = e.dailyDemand(ctx, itemID, locationID)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("predict item %d: non-finite value", itemID)
	}
	return v, nil
}

// GenerateRecommendations bundles the daily and weekly predictions with the
// default reorder point for one item.
func (e *Engine) GenerateRecommendations(ctx context.Context, itemID int64, locationID *int64) domain.ItemRecommendation {
	nd := e.nextDay(ctx, itemID, locationID)
	daily := scale(nd.pred.Ensemble, domain.PeriodDaily)

	rec := domain.ItemRecommendation{
		ItemID:                itemID,
		ItemName:              e.itemName(itemID),
		PredictedDailyDemand:  daily,
		PredictedWeeklyDemand: scale(nd.pred.Ensemble, domain.PeriodWeekly),
		ReorderPoint:          reorderPoint(daily, e.opts.LeadTimeDays),
		Status:                domain.StatusNoHistory,
		Action:                domain.ActionCollectMoreData,
	}
	if daily > 0 {
		rec.Status = domain.StatusOptimal
		rec.Action = domain.ActionPrepAndMonitor
	}
	return rec
}
