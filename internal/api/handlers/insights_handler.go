package handlers

import (
	"net/http"

	"github.com/andresuchdata/freshflow-go/internal/domain"
	"github.com/andresuchdata/freshflow-go/internal/service"
	"github.com/gin-gonic/gin"
)

// InsightsHandler serves the cached catalogue and demand insights.
type InsightsHandler struct {
	service *service.InsightsService
}

func NewInsightsHandler(s *service.InsightsService) *InsightsHandler {
	return &InsightsHandler{service: s}
}

func (h *InsightsHandler) Summary(c *gin.Context) {
	itemID, err := queryOptionalID(c, "item_id")
	if err != nil {
		respondError(c, "invalid item_id", err)
		return
	}
	loc, err := queryOptionalID(c, "location_id", "place_id")
	if err != nil {
		respondError(c, "invalid location", err)
		return
	}
	lastN, err := queryInt(c, "last_n_days", 30)
	if err != nil {
		respondError(c, "invalid last_n_days", err)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), itemID, loc, lastN)
	if err != nil {
		respondError(c, "failed to fetch demand summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *InsightsHandler) History(c *gin.Context) {
	lastN, err := queryInt(c, "last_n_days", 90)
	if err != nil {
		respondError(c, "invalid last_n_days", err)
		return
	}
	history, err := h.service.History(c.Request.Context(), lastN)
	if err != nil {
		respondError(c, "failed to fetch demand history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *InsightsHandler) TopItems(c *gin.Context) {
	n, err := queryInt(c, "n", 50)
	if err != nil {
		respondError(c, "invalid n", err)
		return
	}
	by := domain.RankBy(c.DefaultQuery("by", string(domain.RankByOrderCount)))

	items, err := h.service.TopItems(c.Request.Context(), n, by)
	if err != nil {
		respondError(c, "failed to fetch top items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"top_items": items, "by": by})
}

func (h *InsightsHandler) SlowMoving(c *gin.Context) {
	n, err := queryInt(c, "n", 20)
	if err != nil {
		respondError(c, "invalid n", err)
		return
	}
	maxAvg, err := queryFloat(c, "max_daily_avg", 1.0)
	if err != nil {
		respondError(c, "invalid max_daily_avg", err)
		return
	}

	items, err := h.service.SlowMovers(c.Request.Context(), n, maxAvg)
	if err != nil {
		respondError(c, "failed to fetch slow-moving items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slow_moving_items": items})
}

func (h *InsightsHandler) BestSellers(c *gin.Context) {
	n, err := queryInt(c, "n", 20)
	if err != nil {
		respondError(c, "invalid n", err)
		return
	}
	items, err := h.service.BestSellers(c.Request.Context(), n)
	if err != nil {
		respondError(c, "failed to fetch best sellers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"best_sellers": items})
}

func (h *InsightsHandler) BundleSuggestions(c *gin.Context) {
	minPairs, err := queryInt(c, "min_pairs", 50)
	if err != nil {
		respondError(c, "invalid min_pairs", err)
		return
	}
	topN, err := queryInt(c, "top_n", 10)
	if err != nil {
		respondError(c, "invalid top_n", err)
		return
	}

	bundles, err := h.service.BundleSuggestions(c.Request.Context(), minPairs, topN)
	if err != nil {
		respondError(c, "failed to fetch bundle suggestions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bundle_suggestions": bundles})
}
