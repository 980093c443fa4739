package domain

import "github.com/shopspring/decimal"

// DemandPrediction is the headline prediction for one item and period.
type DemandPrediction struct {
	ItemID     int64   `json:"item_id"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Period     Period  `json:"period"`
	MethodUsed Method  `json:"method_used"`
}

// DetailedPrediction exposes every model's view of the next day, scaled to
// the requested period.
type DetailedPrediction struct {
	ItemID                  int64   `json:"item_id"`
	Period                  Period  `json:"period"`
	LinearRegression        float64 `json:"linear_regression"`
	RandomForest            float64 `json:"random_forest"`
	LightGBM                float64 `json:"lightgbm"`
	Ensemble                float64 `json:"ensemble"`
	MovingAverage           float64 `json:"moving_average"`
	TotalHistoricalQuantity int64   `json:"total_historical_quantity"`
	DataPoints              int     `json:"data_points"`
	MethodUsed              Method  `json:"method_used"`
}

type PrepSuggestion struct {
	ItemID                int64   `json:"item_id"`
	ItemName              string  `json:"item_name"`
	PredictedDailyDemand  float64 `json:"predicted_daily_demand"`
	SuggestedPrepQuantity int64   `json:"suggested_prep_quantity"`
	SafetyFactor          float64 `json:"safety_factor"`
}

type ItemRecommendation struct {
	ItemID                int64   `json:"item_id"`
	ItemName              string  `json:"item_name"`
	PredictedDailyDemand  float64 `json:"predicted_daily_demand"`
	PredictedWeeklyDemand float64 `json:"predicted_weekly_demand"`
	ReorderPoint          int64   `json:"reorder_point"`
	Status                string  `json:"status"`
	Action                string  `json:"action"`
}

// TopItem carries either OrderCount or TotalQuantity depending on the ranking.
type TopItem struct {
	ItemID        int64  `json:"item_id"`
	ItemName      string `json:"item_name"`
	OrderCount    *int64 `json:"order_count,omitempty"`
	TotalQuantity *int64 `json:"total_quantity,omitempty"`
}

type SlowMover struct {
	ItemID             int64   `json:"item_id"`
	ItemName           string  `json:"item_name"`
	TotalQuantity      int64   `json:"total_quantity"`
	DaysActive         int     `json:"days_active"`
	AverageDailyDemand float64 `json:"average_daily_demand"`
}

type BestSeller struct {
	ItemID        int64  `json:"item_id"`
	ItemName      string `json:"item_name"`
	TotalQuantity int64  `json:"total_quantity"`
}

type BundleSuggestion struct {
	ItemIDA        int64  `json:"item_id_a"`
	ItemIDB        int64  `json:"item_id_b"`
	ItemNameA      string `json:"item_name_a"`
	ItemNameB      string `json:"item_name_b"`
	OrdersTogether int64  `json:"orders_together"`
}

type BundleBestSeller struct {
	ItemID     int64  `json:"item_id"`
	ItemName   string `json:"item_name"`
	TotalSales int64  `json:"total_sales"`
}

type BundleClearItem struct {
	ItemID   int64           `json:"item_id"`
	ItemName string          `json:"item_name"`
	Reason   ClearanceReason `json:"reason"`
}

type SmartBundle struct {
	BundleID             string           `json:"bundle_id"`
	BestSeller           BundleBestSeller `json:"best_seller"`
	ItemToClear          BundleClearItem  `json:"item_to_clear"`
	CopurchaseHistory    int64            `json:"copurchase_history"`
	PairingScore         float64          `json:"pairing_score"`
	SuggestedDiscountPct float64          `json:"suggested_discount_pct"`
	Recommendation       string           `json:"recommendation"`
}

type BagItem struct {
	ItemID   int64  `json:"item_id"`
	ItemName string `json:"item_name"`
}

type ClearanceItem struct {
	ItemID             int64           `json:"item_id"`
	ItemName           string          `json:"item_name"`
	Reason             ClearanceReason `json:"reason"`
	AverageDailyDemand *float64        `json:"average_daily_demand,omitempty"`
}

type ItemsPerBag struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type SurpriseBag struct {
	Size                   string          `json:"size"`
	FixedPrice             decimal.Decimal `json:"fixed_price"`
	DiscountPercentage     float64         `json:"discount_percentage"`
	ItemsPerBag            ItemsPerBag     `json:"items_per_bag"`
	PotentialBagsAvailable int             `json:"potential_bags_available"`
	SampleContents         []BagItem       `json:"sample_contents"`
	MarketingCopy          string          `json:"marketing_copy"`
}

type SustainabilityImpact struct {
	EstimatedItemsSaved   int    `json:"estimated_items_saved"`
	WasteReductionMessage string `json:"waste_reduction_message"`
}

type SurpriseBagPlan struct {
	RecommendSurpriseBags bool                 `json:"recommend_surprise_bags"`
	TotalItemsToClear     int                  `json:"total_items_to_clear"`
	Message               string               `json:"message"`
	Bags                  []SurpriseBag        `json:"bags"`
	Tips                  []string             `json:"tips"`
	SustainabilityImpact  SustainabilityImpact `json:"sustainability_impact"`
	AllItemsToClear       []ClearanceItem      `json:"all_items_to_clear"`
}

type DemandSummary struct {
	TotalQuantity int64     `json:"total_quantity"`
	UniqueItems   int       `json:"unique_items"`
	DateRange     DateRange `json:"date_range"`
	ItemID        *int64    `json:"item_id"`
	LocationID    *int64    `json:"location_id"`
}

type HistoryPoint struct {
	Date         string   `json:"date"`
	Quantity     int64    `json:"quantity"`
	AnomalyScore *float64 `json:"anomaly_score,omitempty"`
}

// EngineHealth describes what the engine was built from.
type EngineHealth struct {
	Strategy       string         `json:"strategy"`
	DailyRecords   int            `json:"daily_records"`
	Items          int            `json:"items"`
	OrderPairs     int            `json:"order_pairs"`
	DateRange      DateRange      `json:"date_range"`
	ModelMetrics   map[string]any `json:"model_metrics,omitempty"`
	FeatureColumns []string       `json:"feature_columns,omitempty"`
}
