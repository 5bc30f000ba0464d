package routes

import (
	"omnivault/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupStrategyRoutes sets up all routes related to strategy management
func SetupStrategyRoutes(r *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc) {
	strategy := r.Group("/strategies")
	{
		strategy.GET("", h.ListStrategies)
		strategy.GET("/:id", h.GetStrategy)
		strategy.GET("/:id/tracker", h.GetTracker)

		signed := strategy.Group("", auth)
		signed.POST("", h.CreateStrategy)
		signed.PATCH("/:id", h.UpdateStrategy)
		signed.POST("/:id/rebalance", h.ExecuteRebalance)
	}
}
