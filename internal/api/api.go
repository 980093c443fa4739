package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/freshflow-go/internal/api/handlers"
	"github.com/andresuchdata/freshflow-go/internal/api/middleware"
	"github.com/andresuchdata/freshflow-go/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName tags the spans produced by the HTTP layer.
const ServiceName = "freshflow"

type Services struct {
	Provider *service.EngineProvider
	Insights *service.InsightsService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(otelgin.Middleware(ServiceName))
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	apiGroup := router.Group("/api")

	if services == nil {
		return router
	}

	if services.Provider != nil {
		inventory := handlers.NewInventoryHandler(services.Provider)
		apiGroup.GET("/health", inventory.Health)

		inventoryGroup := apiGroup.Group("/inventory")
		{
			inventoryGroup.POST("/predict", inventory.Predict)
			inventoryGroup.GET("/prep", inventory.Prep)
			inventoryGroup.GET("/reorder/:item_id", inventory.Reorder)
			inventoryGroup.GET("/recommendations/:item_id", inventory.Recommendations)
		}

		bundlesGroup := apiGroup.Group("/bundles")
		{
			bundlesGroup.GET("/smart", inventory.SmartBundles)
			bundlesGroup.POST("/smart", inventory.SmartBundles)
			bundlesGroup.GET("/surprise-bags", inventory.SurpriseBags)
			bundlesGroup.POST("/surprise-bags", inventory.SurpriseBags)
		}
	}

	if services.Insights != nil {
		insights := handlers.NewInsightsHandler(services.Insights)
		demandGroup := apiGroup.Group("/demand")
		{
			demandGroup.GET("/summary", insights.Summary)
			demandGroup.GET("/history", insights.History)
		}
		itemsGroup := apiGroup.Group("/items")
		{
			itemsGroup.GET("/top", insights.TopItems)
			itemsGroup.GET("/slow-moving", insights.SlowMoving)
			itemsGroup.GET("/best-sellers", insights.BestSellers)
		}
		apiGroup.GET("/bundles/suggestions", insights.BundleSuggestions)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
