package handlers

import (
	"net/http"
	"strings"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// InventoryHandler serves predictions, prep and reorder planning and the
// clearance recommendations straight from the engine.
type InventoryHandler struct {
	provider *service.EngineProvider
}

func NewInventoryHandler(provider *service.EngineProvider) *InventoryHandler {
	return &InventoryHandler{provider: provider}
}

func (h *InventoryHandler) engine(c *gin.Context) (*service.Engine, bool) {
	e, err := h.provider.Engine(c.Request.Context())
	if err != nil {
		respondError(c, "data not available", err)
		return nil, false
	}
	return e, true
}

func (h *InventoryHandler) Health(c *gin.Context) {
	e, err := h.provider.Engine(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"message": "demand data is not loaded",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "FreshFlow API is running",
		"engine":  e.Health(),
	})
}

type predictRequest struct {
	ItemID     *int64 `json:"item_id"`
	Period     string `json:"period"`
	LocationID *int64 `json:"location_id"`
	PlaceID    *int64 `json:"place_id"`
	Detailed   bool   `json:"detailed"`
}

func (h *InventoryHandler) Predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.ItemID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required"})
		return
	}
	if req.Period == "" {
		req.Period = string(domain.PeriodDaily)
	}
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		respondError(c, "invalid period", err)
		return
	}
	loc := req.LocationID
	if loc == nil {
		loc = req.PlaceID
	}

	e, ok := h.engine(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if req.Detailed {
		detail, err := e.PredictDemandDetailed(ctx, *req.ItemID, period, loc)
		if err != nil {
			respondError(c, "failed to predict demand", err)
			return
		}
		c.JSON(http.StatusOK, detail)
		return
	}

	pred, err := e.PredictDemand(ctx, *req.ItemID, period, loc)
	if err != nil {
		respondError(c, "failed to predict demand", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item_id":          pred.ItemID,
		"predicted_demand": pred.Value,
		"period":           pred.Period,
		"location_id":      loc,
		"unit":             pred.Unit,
		"method_used":      pred.MethodUsed,
	})
}

func (h *InventoryHandler) Prep(c *gin.Context) {
	loc, err := queryOptionalID(c, "location_id", "place_id")
	if err != nil {
		respondError(c, "invalid location", err)
		return
	}
	topN, err := queryInt(c, "top_n", 20)
	if err != nil {
		respondError(c, "invalid top_n", err)
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}
	safety, err := queryFloat(c, "safety_factor", e.DefaultSafetyFactor())
	if err != nil {
		respondError(c, "invalid safety_factor", err)
		return
	}

	suggestions, err := e.GetPrepSuggestions(c.Request.Context(), loc, topN, safety)
	if err != nil {
		respondError(c, "failed to compute prep suggestions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prep_suggestions": suggestions, "location_id": loc})
}

func (h *InventoryHandler) Reorder(c *gin.Context) {
	itemID, err := pathItemID(c)
	if err != nil {
		respondError(c, "invalid item_id", err)
		return
	}
	loc, err := queryOptionalID(c, "location_id", "place_id")
	if err != nil {
		respondError(c, "invalid location", err)
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}
	lead, err := queryInt(c, "lead_time_days", e.DefaultLeadTime())
	if err != nil {
		respondError(c, "invalid lead_time_days", err)
		return
	}

	point, err := e.CalculateReorderPoint(c.Request.Context(), itemID, lead, loc)
	if err != nil {
		respondError(c, "failed to compute reorder point", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item_id":        itemID,
		"reorder_point":  point,
		"lead_time_days": lead,
		"location_id":    loc,
	})
}

func (h *InventoryHandler) Recommendations(c *gin.Context) {
	itemID, err := pathItemID(c)
	if err != nil {
		respondError(c, "invalid item_id", err)
		return
	}
	loc, err := queryOptionalID(c, "location_id", "place_id")
	if err != nil {
		respondError(c, "invalid location", err)
		return
	}
	e, ok := h.engine(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.GenerateRecommendations(c.Request.Context(), itemID, loc))
}

func (h *InventoryHandler) SmartBundles(c *gin.Context) {
	var req service.SmartBundleRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	} else {
		var err error
		if req.NearExpiryItemIDs, err = queryIDList(c, "near_expiry_item_ids"); err != nil {
			respondError(c, "invalid near_expiry_item_ids", err)
			return
		}
		if req.NSlowMovers, err = queryInt(c, "n_slow_movers", 0); err != nil {
			respondError(c, "invalid n_slow_movers", err)
			return
		}
		if req.MaxDailyAvg, err = queryOptionalFloat(c, "max_daily_avg"); err != nil {
			respondError(c, "invalid max_daily_avg", err)
			return
		}
		if req.NBestSellers, err = queryInt(c, "n_best_sellers", 0); err != nil {
			respondError(c, "invalid n_best_sellers", err)
			return
		}
		if req.BundlesPerItem, err = queryInt(c, "bundles_per_item", 0); err != nil {
			respondError(c, "invalid bundles_per_item", err)
			return
		}
		if req.DiscountPct, err = queryOptionalFloat(c, "discount_pct"); err != nil {
			respondError(c, "invalid discount_pct", err)
			return
		}
	}

	e, ok := h.engine(c)
	if !ok {
		return
	}
	bundles, err := e.GenerateSmartBundles(c.Request.Context(), req)
	if err != nil {
		respondError(c, "failed to generate smart bundles", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"smart_bundles": bundles})
}

func (h *InventoryHandler) SurpriseBags(c *gin.Context) {
	var req service.SurpriseBagRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	} else {
		var err error
		if req.ItemIDs, err = queryIDList(c, "item_ids"); err != nil {
			respondError(c, "invalid item_ids", err)
			return
		}
		if req.NSlowMovers, err = queryInt(c, "n_slow_movers", 0); err != nil {
			respondError(c, "invalid n_slow_movers", err)
			return
		}
		if req.MaxDailyAvg, err = queryOptionalFloat(c, "max_daily_avg"); err != nil {
			respondError(c, "invalid max_daily_avg", err)
			return
		}
		if req.DiscountPct, err = queryOptionalFloat(c, "discount_pct"); err != nil {
			respondError(c, "invalid discount_pct", err)
			return
		}
		for _, size := range []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"price_small", &req.FixedPrices.Small},
			{"price_medium", &req.FixedPrices.Medium},
			{"price_large", &req.FixedPrices.Large},
		} {
			raw := strings.TrimSpace(c.Query(size.name))
			if raw == "" {
				continue
			}
			price, err := decimal.NewFromString(raw)
			if err != nil {
				respondError(c, "invalid "+size.name, &domain.ParamError{Name: size.name, Value: raw, Reason: "must be a decimal"})
				return
			}
			*size.dst = price
		}
	}

	e, ok := h.engine(c)
	if !ok {
		return
	}
	plan, err := e.GenerateSurpriseBags(c.Request.Context(), req)
	if err != nil {
		respondError(c, "failed to plan surprise bags", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
