package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// GetBundleSuggestions returns the topN most co-purchased item pairs,
// dropping those seen together in fewer than minPairs orders.
func (e *Engine) GetBundleSuggestions(minPairs, topN int) ([]domain.BundleSuggestion, error) {
	if minPairs < 0 {
		return nil, &domain.ParamError{Name: "min_pairs", Value: minPairs, Reason: "must not be negative"}
	}
	if topN < 1 {
		return nil, &domain.ParamError{Name: "top_n", Value: topN, Reason: "must be at least 1"}
	}

	pairs := e.pairOrder
	if len(pairs) > topN {
		pairs = pairs[:topN]
	}
	out := make([]domain.BundleSuggestion, 0, len(pairs))
	for _, p := range pairs {
		count := e.pairs[p]
		if count < int64(minPairs) {
			continue
		}
		out = append(out, domain.BundleSuggestion{
			ItemIDA:        p.a,
			ItemIDB:        p.b,
			ItemNameA:      e.itemName(p.a),
			ItemNameB:      e.itemName(p.b),
			OrdersTogether: count,
		})
	}
	return out, nil
}

// SmartBundleRequest configures GenerateSmartBundles. Zero counts and nil
// thresholds take the defaults; an explicit zero threshold is kept.
type SmartBundleRequest struct {
	NearExpiryItemIDs []int64  `json:"near_expiry_item_ids"`
	NSlowMovers       int      `json:"n_slow_movers"`
	MaxDailyAvg       *float64 `json:"max_daily_avg"`
	NBestSellers      int      `json:"n_best_sellers"`
	BundlesPerItem    int      `json:"bundles_per_item"`
	DiscountPct       *float64 `json:"discount_pct"`
}

func (r SmartBundleRequest) withDefaults() (SmartBundleRequest, error) {
	if r.NSlowMovers == 0 {
		r.NSlowMovers = 10
	}
	r.MaxDailyAvg = orDefault(r.MaxDailyAvg, 1.0)
	if r.NBestSellers == 0 {
		r.NBestSellers = 20
	}
	if r.BundlesPerItem == 0 {
		r.BundlesPerItem = 3
	}
	r.DiscountPct = orDefault(r.DiscountPct, 15)
	switch {
	case r.NSlowMovers < 1:
		return r, &domain.ParamError{Name: "n_slow_movers", Value: r.NSlowMovers, Reason: "must be at least 1"}
	case *r.MaxDailyAvg < 0:
		return r, &domain.ParamError{Name: "max_daily_avg", Value: *r.MaxDailyAvg, Reason: "must not be negative"}
	case r.NBestSellers < 1:
		return r, &domain.ParamError{Name: "n_best_sellers", Value: r.NBestSellers, Reason: "must be at least 1"}
	case r.BundlesPerItem < 1:
		return r, &domain.ParamError{Name: "bundles_per_item", Value: r.BundlesPerItem, Reason: "must be at least 1"}
	case *r.DiscountPct < 0 || *r.DiscountPct > 100:
		return r, &domain.ParamError{Name: "discount_pct", Value: *r.DiscountPct, Reason: "must be between 0 and 100"}
	}
	return r, nil
}

// orDefault returns a copy of v, or def when v is nil, so callers never
// share the request's pointer.
func orDefault(v *float64, def float64) *float64 {
	if v != nil {
		def = *v
	}
	return &def
}

type clearItem struct {
	id     int64
	reason domain.ClearanceReason
	avg    *float64
}

// clearanceItems returns the explicit near-expiry ids, de-duplicated in
// order, or else the slow movers.
func (e *Engine) clearanceItems(explicit []int64, nSlow int, maxDailyAvg float64) []clearItem {
	if len(explicit) > 0 {
		seen := make(map[int64]struct{}, len(explicit))
		out := make([]clearItem, 0, len(explicit))
		for _, id := range explicit {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, clearItem{id: id, reason: domain.ReasonNearExpiry})
		}
		return out
	}

	movers := e.slowMovers(maxDailyAvg)
	if len(movers) > nSlow {
		movers = movers[:nSlow]
	}
	out := make([]clearItem, len(movers))
	for i, m := range movers {
		avg := round(m.avg, 4)
		out[i] = clearItem{id: m.id, reason: domain.ReasonSlowMoving, avg: &avg}
	}
	return out
}

type candidate struct {
	id    int64
	total int64
	co    int64
	score float64
}

// GenerateSmartBundles pairs every item to clear with the best sellers it is
// most often bought with. Score = copurchase×10 + best-seller quantity/100.
func (e *Engine) GenerateSmartBundles(ctx context.Context, req SmartBundleRequest) ([]domain.SmartBundle, error) {
	req, err := req.withDefaults()
	if err != nil {
		return nil, err
	}

	_, span := tracer.Start(ctx, "engine.smart_bundles")
	defer span.End()

	toClear := e.clearanceItems(req.NearExpiryItemIDs, req.NSlowMovers, *req.MaxDailyAvg)
	sellers := e.byTotal
	if len(sellers) > req.NBestSellers {
		sellers = sellers[:req.NBestSellers]
	}
	span.SetAttributes(attribute.Int("items_to_clear", len(toClear)), attribute.Int("best_sellers", len(sellers)))

	out := make([]domain.SmartBundle, 0, len(toClear)*req.BundlesPerItem)
	for _, item := range toClear {
		cands := make([]candidate, 0, len(sellers))
		for _, id := range sellers {
			if id == item.id {
				continue
			}
			c := candidate{id: id, total: e.stats[id].total, co: e.copurchase(item.id, id)}
			c.score = float64(c.co)*10 + float64(c.total)/100
			cands = append(cands, c)
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
		if len(cands) > req.BundlesPerItem {
			cands = cands[:req.BundlesPerItem]
		}

		for _, c := range cands {
			out = append(out, domain.SmartBundle{
				BundleID: fmt.Sprintf("BDL-%d", len(out)+1),
				BestSeller: domain.BundleBestSeller{
					ItemID:     c.id,
					ItemName:   e.itemName(c.id),
					TotalSales: c.total,
				},
				ItemToClear: domain.BundleClearItem{
					ItemID:   item.id,
					ItemName: e.itemName(item.id),
					Reason:   item.reason,
				},
				CopurchaseHistory:    c.co,
				PairingScore:         round(c.score, 1),
				SuggestedDiscountPct: *req.DiscountPct,
				Recommendation:       bundleRecommendation(c.co, item.reason, *req.DiscountPct),
			})
		}
	}
	return out, nil
}

func bundleRecommendation(copurchase int64, reason domain.ClearanceReason, discount float64) string {
	var pairing string
	switch {
	case copurchase > 10:
		pairing = fmt.Sprintf("High pairing potential: bought together in %d orders.", copurchase)
	case copurchase > 0:
		pairing = fmt.Sprintf("Some pairing history: bought together in %d orders.", copurchase)
	default:
		pairing = "No shared orders yet; test this bundle as a new combination."
	}

	var action string
	if reason == domain.ReasonNearExpiry {
		action = fmt.Sprintf("Offer %.0f%% off the bundle today to sell the near-expiry item before it is wasted.", discount)
	} else {
		action = fmt.Sprintf("Offer %.0f%% off the bundle to lift sales of the slow-moving item.", discount)
	}
	return pairing + " " + action
}

// BagPrices are the fixed surprise-bag prices per size.
type BagPrices struct {
	Small  decimal.Decimal `json:"small"`
	Medium decimal.Decimal `json:"medium"`
	Large  decimal.Decimal `json:"large"`
}

// SurpriseBagRequest configures GenerateSurpriseBags. Zero counts, zero
// prices and nil thresholds take the defaults.
type SurpriseBagRequest struct {
	ItemIDs     []int64   `json:"item_ids"`
	NSlowMovers int       `json:"n_slow_movers"`
	MaxDailyAvg *float64  `json:"max_daily_avg"`
	DiscountPct *float64  `json:"discount_pct"`
	FixedPrices BagPrices `json:"fixed_prices"`
}

func (r SurpriseBagRequest) withDefaults() (SurpriseBagRequest, error) {
	if r.NSlowMovers == 0 {
		r.NSlowMovers = 30
	}
	r.MaxDailyAvg = orDefault(r.MaxDailyAvg, 1.0)
	r.DiscountPct = orDefault(r.DiscountPct, 50)
	if r.FixedPrices.Small.IsZero() {
		r.FixedPrices.Small = decimal.NewFromInt(29)
	}
	if r.FixedPrices.Medium.IsZero() {
		r.FixedPrices.Medium = decimal.NewFromInt(49)
	}
	if r.FixedPrices.Large.IsZero() {
		r.FixedPrices.Large = decimal.NewFromInt(79)
	}
	switch {
	case r.NSlowMovers < 1:
		return r, &domain.ParamError{Name: "n_slow_movers", Value: r.NSlowMovers, Reason: "must be at least 1"}
	case *r.MaxDailyAvg < 0:
		return r, &domain.ParamError{Name: "max_daily_avg", Value: *r.MaxDailyAvg, Reason: "must not be negative"}
	case *r.DiscountPct < 0 || *r.DiscountPct > 100:
		return r, &domain.ParamError{Name: "discount_pct", Value: *r.DiscountPct, Reason: "must be between 0 and 100"}
	case r.FixedPrices.Small.IsNegative() || r.FixedPrices.Medium.IsNegative() || r.FixedPrices.Large.IsNegative():
		return r, &domain.ParamError{Name: "fixed_prices", Value: r.FixedPrices, Reason: "must not be negative"}
	}
	return r, nil
}

// MinSurpriseBagItems is the smallest clearance set worth bagging.
const MinSurpriseBagItems = 5

type bagSize struct {
	name     string
	min, max int
	copy     string
}

var bagSizes = []bagSize{
	{name: "small", min: 3, max: 5, copy: "A little mystery for one: %d-%d fresh favourites at a fixed price. Grab it before it's gone!"},
	{name: "medium", min: 6, max: 8, copy: "Share the surprise: %d-%d items picked today, perfect for a couple or a small family."},
	{name: "large", min: 9, max: 12, copy: "The big reveal: %d-%d items for the whole table, and the best value per item."},
}

var surpriseBagTips = []string{
	"Publish bags an hour or two before closing so customers can plan their pickup.",
	"Keep the contents secret but list allergens and dietary tags.",
	"Reserve bags through the app to avoid a rush at the counter.",
	"Track unsold bags daily and adjust the number of bags offered.",
}

// GenerateSurpriseBags plans fixed-price mystery bags for the items to
// clear. Fewer than MinSurpriseBagItems items are not worth bagging.
func (e *Engine) GenerateSurpriseBags(ctx context.Context, req SurpriseBagRequest) (domain.SurpriseBagPlan, error) {
	req, err := req.withDefaults()
	if err != nil {
		return domain.SurpriseBagPlan{}, err
	}

	_, span := tracer.Start(ctx, "engine.surprise_bags")
	defer span.End()

	toClear := e.clearanceItems(req.ItemIDs, req.NSlowMovers, *req.MaxDailyAvg)
	all := make([]domain.ClearanceItem, len(toClear))
	for i, it := range toClear {
		all[i] = domain.ClearanceItem{ItemID: it.id, ItemName: e.itemName(it.id), Reason: it.reason, AverageDailyDemand: it.avg}
	}
	total := len(all)
	span.SetAttributes(attribute.Int("items_to_clear", total))

	plan := domain.SurpriseBagPlan{
		TotalItemsToClear: total,
		Bags:              []domain.SurpriseBag{},
		Tips:              append([]string(nil), surpriseBagTips...),
		AllItemsToClear:   all,
	}
	if total < MinSurpriseBagItems {
		plan.Message = fmt.Sprintf("Not recommended: %d items to clear, surprise bags need at least %d. Try smart bundles instead.", total, MinSurpriseBagItems)
		plan.SustainabilityImpact.WasteReductionMessage = "Not enough items for surprise bags yet."
		return plan, nil
	}

	prices := map[string]decimal.Decimal{
		"small":  req.FixedPrices.Small,
		"medium": req.FixedPrices.Medium,
		"large":  req.FixedPrices.Large,
	}
	for _, size := range bagSizes {
		perBag := float64(size.min+size.max) / 2
		sample := all
		if len(sample) > size.max {
			sample = sample[:size.max]
		}
		contents := make([]domain.BagItem, len(sample))
		for i, it := range sample {
			contents[i] = domain.BagItem{ItemID: it.ItemID, ItemName: it.ItemName}
		}
		plan.Bags = append(plan.Bags, domain.SurpriseBag{
			Size:                   size.name,
			FixedPrice:             prices[size.name].Round(2),
			DiscountPercentage:     *req.DiscountPct,
			ItemsPerBag:            domain.ItemsPerBag{Min: size.min, Max: size.max},
			PotentialBagsAvailable: int(math.Floor(float64(total) / perBag)),
			SampleContents:         contents,
			MarketingCopy:          fmt.Sprintf(size.copy, size.min, size.max),
		})
	}

	plan.RecommendSurpriseBags = true
	plan.Message = fmt.Sprintf("%d items can go into surprise bags at about %.0f%% off their usual value.", total, *req.DiscountPct)
	plan.SustainabilityImpact = domain.SustainabilityImpact{
		EstimatedItemsSaved:   total,
		WasteReductionMessage: fmt.Sprintf("Selling these bags could keep up to %d items out of the bin.", total),
	}
	return plan, nil
}
