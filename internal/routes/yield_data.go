package routes

import (
	"omnivault/internal/handlers"

	"github.com/gin-gonic/gin"
)

func SetupYieldDataRoutes(r *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc) {
	yield := r.Group("/yield-data")
	{
		yield.GET("", h.ListYieldData)
		yield.GET("/recommend", h.Recommend)
		yield.POST("", auth, h.UpdateYieldData)
	}
}
