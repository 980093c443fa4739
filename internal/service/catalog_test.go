package service

import (
	"context"
	"testing"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bestA   int64 = 1
	bestB   int64 = 2
	slow    int64 = 7
	fast    int64 = 8
	sparseC int64 = 9
)

// catalogDataset has two equally popular best sellers, a slow mover bought
// with A in 12 orders and never with B, and a fast item.
func catalogDataset() *domain.Dataset {
	ds := &domain.Dataset{
		Items: []domain.ItemPopularity{
			{ItemID: bestA, ItemName: "Croissant", OrderCount: 40},
			{ItemID: bestB, ItemName: "Baguette", OrderCount: 40},
			{ItemID: slow, ItemName: "Quiche", OrderCount: 3},
			{ItemID: fast, ItemName: "Espresso", OrderCount: 50},
		},
	}
	for d := 0; d < 10; d++ {
		ds.Daily = append(ds.Daily, rec(d, bestA, 50), rec(d, bestB, 50), rec(d, fast, 5))
	}
	ds.Daily = append(ds.Daily, rec(0, slow, 1), rec(15, slow, 1), rec(29, slow, 1))
	ds.Daily = append(ds.Daily, rec(29, sparseC, 1))

	for order := int64(1); order <= 12; order++ {
		ds.Pairs = append(ds.Pairs,
			domain.OrderItemPair{OrderID: order, ItemID: slow},
			domain.OrderItemPair{OrderID: order, ItemID: bestA},
		)
	}
	for order := int64(13); order <= 15; order++ {
		ds.Pairs = append(ds.Pairs,
			domain.OrderItemPair{OrderID: order, ItemID: bestA},
			domain.OrderItemPair{OrderID: order, ItemID: bestB},
			domain.OrderItemPair{OrderID: order, ItemID: bestB},
		)
	}
	return ds
}

func TestGetTopItems(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	byOrders, err := e.GetTopItems(2, domain.RankByOrderCount)
	require.NoError(t, err)
	require.Len(t, byOrders, 2)
	assert.Equal(t, fast, byOrders[0].ItemID)
	require.NotNil(t, byOrders[0].OrderCount)
	assert.Equal(t, int64(50), *byOrders[0].OrderCount)
	assert.Nil(t, byOrders[0].TotalQuantity)
	assert.Equal(t, bestA, byOrders[1].ItemID)

	byDemand, err := e.GetTopItems(3, domain.RankByDemand)
	require.NoError(t, err)
	assert.Equal(t, []int64{bestA, bestB, fast}, []int64{byDemand[0].ItemID, byDemand[1].ItemID, byDemand[2].ItemID})
	require.NotNil(t, byDemand[0].TotalQuantity)
	assert.Equal(t, int64(500), *byDemand[0].TotalQuantity)

	_, err = e.GetTopItems(0, domain.RankByDemand)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = e.GetTopItems(3, "revenue")
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestGetBestSellers(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	got, err := e.GetBestSellers(2)
	require.NoError(t, err)
	assert.Equal(t, []domain.BestSeller{
		{ItemID: bestA, ItemName: "Croissant", TotalQuantity: 500},
		{ItemID: bestB, ItemName: "Baguette", TotalQuantity: 500},
	}, got)
}

func TestGetSlowMovingItems(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	got, err := e.GetSlowMovingItems(10, 1.0)
	require.NoError(t, err)
	ids := make([]int64, len(got))
	for i, m := range got {
		ids[i] = m.ItemID
	}
	assert.Contains(t, ids, slow)
	assert.NotContains(t, ids, fast)
	assert.NotContains(t, ids, bestA)

	assert.Equal(t, slow, got[0].ItemID)
	assert.Equal(t, int64(3), got[0].TotalQuantity)
	assert.Equal(t, 30, got[0].DaysActive)
	assert.InDelta(t, 0.1, got[0].AverageDailyDemand, 1e-9)

	// single-day span counts as one day
	assert.Equal(t, sparseC, got[1].ItemID)
	assert.Equal(t, 1, got[1].DaysActive)

	_, err = e.GetSlowMovingItems(10, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestGetBundleSuggestions(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	got, err := e.GetBundleSuggestions(1, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.BundleSuggestion{
		ItemIDA: bestA, ItemIDB: slow, ItemNameA: "Croissant", ItemNameB: "Quiche", OrdersTogether: 12,
	}, got[0])
	assert.Equal(t, int64(3), got[1].OrdersTogether, "duplicate lines in one order count once")

	filtered, err := e.GetBundleSuggestions(5, 10)
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	// top_n is applied before the min_pairs filter
	top, err := e.GetBundleSuggestions(5, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	_, err = e.GetBundleSuggestions(-1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestGenerateSmartBundlesPrefersCopurchase(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	got, err := e.GenerateSmartBundles(context.Background(), SmartBundleRequest{NearExpiryItemIDs: []int64{slow, slow}})
	require.NoError(t, err)
	require.Len(t, got, 3)

	first := got[0]
	assert.Equal(t, "BDL-1", first.BundleID)
	assert.Equal(t, bestA, first.BestSeller.ItemID)
	assert.Equal(t, int64(500), first.BestSeller.TotalSales)
	assert.Equal(t, slow, first.ItemToClear.ItemID)
	assert.Equal(t, domain.ReasonNearExpiry, first.ItemToClear.Reason)
	assert.Equal(t, int64(12), first.CopurchaseHistory)
	assert.InDelta(t, 125.0, first.PairingScore, 1e-9)
	assert.Equal(t, 15.0, first.SuggestedDiscountPct)
	assert.Contains(t, first.Recommendation, "High pairing")
	assert.Contains(t, first.Recommendation, "near-expiry")

	assert.Equal(t, bestB, got[1].BestSeller.ItemID)
	assert.Equal(t, int64(0), got[1].CopurchaseHistory)
	assert.Greater(t, first.PairingScore, got[1].PairingScore)
	assert.Contains(t, got[1].Recommendation, "No shared orders")
	assert.Equal(t, "BDL-2", got[1].BundleID)
}

func TestGenerateSmartBundlesFromSlowMovers(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	got, err := e.GenerateSmartBundles(context.Background(), SmartBundleRequest{BundlesPerItem: 1, NBestSellers: 3})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, b := range got {
		assert.Equal(t, domain.ReasonSlowMoving, b.ItemToClear.Reason)
		assert.NotEqual(t, b.ItemToClear.ItemID, b.BestSeller.ItemID)
	}
	assert.Contains(t, got[0].Recommendation, "slow-moving")

	_, err = e.GenerateSmartBundles(context.Background(), SmartBundleRequest{DiscountPct: float64Ptr(120)})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func float64Ptr(v float64) *float64 { return &v }

func TestExplicitZeroThresholdsAreKept(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})
	ctx := context.Background()

	none, err := e.GenerateSmartBundles(ctx, SmartBundleRequest{MaxDailyAvg: float64Ptr(0)})
	require.NoError(t, err)
	assert.Empty(t, none)

	free, err := e.GenerateSmartBundles(ctx, SmartBundleRequest{NearExpiryItemIDs: []int64{slow}, DiscountPct: float64Ptr(0)})
	require.NoError(t, err)
	require.NotEmpty(t, free)
	assert.Equal(t, 0.0, free[0].SuggestedDiscountPct)

	plan, err := e.GenerateSurpriseBags(ctx, SurpriseBagRequest{ItemIDs: []int64{1, 2, 7, 8, 9}, DiscountPct: float64Ptr(0)})
	require.NoError(t, err)
	require.NotEmpty(t, plan.Bags)
	assert.Equal(t, 0.0, plan.Bags[0].DiscountPercentage)

	defaults, err := e.GenerateSurpriseBags(ctx, SurpriseBagRequest{ItemIDs: []int64{1, 2, 7, 8, 9}})
	require.NoError(t, err)
	assert.Equal(t, 50.0, defaults.Bags[0].DiscountPercentage)
}

func TestBestSellerIsNotBundledWithItself(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	got, err := e.GenerateSmartBundles(context.Background(), SmartBundleRequest{NearExpiryItemIDs: []int64{bestA}, NBestSellers: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, bestB, got[0].BestSeller.ItemID)
	assert.Equal(t, int64(3), got[0].CopurchaseHistory)
	assert.Contains(t, got[0].Recommendation, "Some pairing")
}

func TestGenerateSurpriseBagsNeedsFiveItems(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	plan, err := e.GenerateSurpriseBags(context.Background(), SurpriseBagRequest{ItemIDs: []int64{1, 2, 7, 8}})
	require.NoError(t, err)
	assert.False(t, plan.RecommendSurpriseBags)
	assert.Equal(t, 4, plan.TotalItemsToClear)
	assert.Empty(t, plan.Bags)
	assert.Len(t, plan.AllItemsToClear, 4)
	assert.Contains(t, plan.Message, "at least 5")
}

func TestGenerateSurpriseBags(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	ids := []int64{1, 2, 7, 8, 9, 10, 11}
	plan, err := e.GenerateSurpriseBags(context.Background(), SurpriseBagRequest{
		ItemIDs:     ids,
		FixedPrices: BagPrices{Small: decimal.RequireFromString("24.5")},
	})
	require.NoError(t, err)
	require.True(t, plan.RecommendSurpriseBags)
	assert.Equal(t, 7, plan.TotalItemsToClear)
	assert.Equal(t, 7, plan.SustainabilityImpact.EstimatedItemsSaved)
	assert.NotEmpty(t, plan.Tips)
	require.Len(t, plan.Bags, 3)

	small, medium, large := plan.Bags[0], plan.Bags[1], plan.Bags[2]
	assert.Equal(t, "small", small.Size)
	assert.Equal(t, domain.ItemsPerBag{Min: 3, Max: 5}, small.ItemsPerBag)
	assert.Equal(t, 1, small.PotentialBagsAvailable)
	assert.Len(t, small.SampleContents, 5)
	assert.Equal(t, "24.5", small.FixedPrice.String())
	assert.Equal(t, 50.0, small.DiscountPercentage)

	assert.Equal(t, 1, medium.PotentialBagsAvailable)
	assert.Len(t, medium.SampleContents, 7)
	assert.True(t, medium.FixedPrice.Equal(decimal.NewFromInt(49)))

	assert.Equal(t, 0, large.PotentialBagsAvailable)
	assert.True(t, large.FixedPrice.Equal(decimal.NewFromInt(79)))
	assert.NotEmpty(t, large.MarketingCopy)

	assert.Equal(t, "10", plan.AllItemsToClear[5].ItemName)
	assert.Equal(t, domain.ReasonNearExpiry, plan.AllItemsToClear[0].Reason)
}

func TestGetDemandSummary(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})

	all, err := e.GetDemandSummary(nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(500+500+50+3+1), all.TotalQuantity)
	assert.Equal(t, 5, all.UniqueItems)
	assert.Equal(t, "2024-01-01", *all.DateRange.Min)
	assert.Equal(t, "2024-01-30", *all.DateRange.Max)

	recent, err := e.GetDemandSummary(nil, nil, 14)
	require.NoError(t, err)
	assert.Equal(t, int64(1+1+1), recent.TotalQuantity)
	assert.Equal(t, "2024-01-16", *recent.DateRange.Min)

	item := slow
	one, err := e.GetDemandSummary(&item, nil, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), one.TotalQuantity)
	assert.Equal(t, &item, one.ItemID)

	missing := int64(404)
	empty, err := e.GetDemandSummary(&missing, nil, 30)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalQuantity)
	assert.Nil(t, empty.DateRange.Min)

	_, err = e.GetDemandSummary(nil, nil, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestGetDemandHistory(t *testing.T) {
	e := newEngine(t, catalogDataset(), Baseline{})
	ctx := context.Background()

	short, err := e.GetDemandHistory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, "2024-01-30", short[0].Date)
	assert.Equal(t, int64(2), short[0].Quantity)
	assert.Nil(t, short[0].AnomalyScore)

	ds := &domain.Dataset{}
	for d := 0; d < 40; d++ {
		ds.Daily = append(ds.Daily, rec(d, 1, int64(10+d%3)), rec(d, 2, 1))
	}
	long := newEngine(t, ds, Baseline{})
	points, err := long.GetDemandHistory(ctx, 90)
	require.NoError(t, err)
	require.Len(t, points, 40)
	assert.Equal(t, "2024-01-01", points[0].Date)
	assert.Equal(t, int64(11), points[0].Quantity)
	for _, p := range points {
		require.NotNil(t, p.AnomalyScore)
		assert.GreaterOrEqual(t, *p.AnomalyScore, 0.0)
		assert.LessOrEqual(t, *p.AnomalyScore, 1.0)
	}
}

func TestGetDemandHistoryScoresAreStable(t *testing.T) {
	ds := &domain.Dataset{}
	for d := 0; d < 40; d++ {
		ds.Daily = append(ds.Daily, rec(d, 1, int64(10+d%5)))
	}
	e := newEngine(t, ds, Baseline{})
	ctx := context.Background()

	first, err := e.GetDemandHistory(ctx, 90)
	require.NoError(t, err)
	second, err := e.GetDemandHistory(ctx, 90)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		require.NotNil(t, first[i].AnomalyScore)
		assert.Equal(t, *first[i].AnomalyScore, *second[i].AnomalyScore, first[i].Date)
	}

	window, err := e.GetDemandHistory(ctx, 19)
	require.NoError(t, err)
	again, err := e.GetDemandHistory(ctx, 19)
	require.NoError(t, err)
	require.Len(t, window, 20)
	for i := range window {
		assert.Equal(t, *window[i].AnomalyScore, *again[i].AnomalyScore, window[i].Date)
	}
}

func TestDuplicateDailyRowsAreSummed(t *testing.T) {
	ds := &domain.Dataset{Daily: []domain.DailyDemandRecord{
		rec(0, 1, 4), rec(1, 1, 6), rec(1, 1, 5), rec(2, 1, 8),
	}}
	e := newEngine(t, ds, Baseline{})

	summary, err := e.GetDemandSummary(nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(23), summary.TotalQuantity)

	detail, err := e.PredictDemandDetailed(context.Background(), 1, domain.PeriodDaily, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.DataPoints)
	assert.InDelta(t, 23.0/3, detail.MovingAverage, 0.01)
}
