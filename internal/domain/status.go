package domain

import (
	"fmt"
	"strings"
)

// Period is the horizon a next-day prediction is scaled to.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

var periodMultipliers = map[Period]float64{
	PeriodDaily:   1,
	PeriodWeekly:  7,
	PeriodMonthly: 30,
}

// Multiplier returns the fixed day count the daily value is scaled by.
func (p Period) Multiplier() float64 {
	return periodMultipliers[p]
}

// ParsePeriod returns the period for a label (case-insensitive).
func ParsePeriod(label string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := periodMultipliers[p]; !ok {
		return "", &ParamError{Name: "period", Value: label, Reason: "must be one of daily, weekly, monthly"}
	}
	return p, nil
}

// Method records which path produced a prediction.
type Method string

const (
	MethodMLModels      Method = "ml_models"
	MethodMovingAverage Method = "moving_average"
	MethodNoData        Method = "no_data"
)

// ClearanceReason explains why an item is being bundled away.
type ClearanceReason string

const (
	ReasonNearExpiry ClearanceReason = "near_expiry"
	ReasonSlowMoving ClearanceReason = "slow_moving"
)

// RankBy selects the ordering of GetTopItems.
type RankBy string

const (
	RankByOrderCount RankBy = "order_count"
	RankByDemand     RankBy = "demand"
)

// ParseRankBy returns the ranking for a label; empty means order_count.
func ParseRankBy(label string) (RankBy, error) {
	switch RankBy(strings.ToLower(strings.TrimSpace(label))) {
	case "", RankByOrderCount:
		return RankByOrderCount, nil
	case RankByDemand:
		return RankByDemand, nil
	}
	return "", &ParamError{Name: "by", Value: label, Reason: fmt.Sprintf("must be %s or %s", RankByOrderCount, RankByDemand)}
}

const (
	StatusOptimal   = "optimal"
	StatusNoHistory = "no_history"

	ActionPrepAndMonitor  = "prep_and_monitor"
	ActionCollectMoreData = "collect_more_data"
)
