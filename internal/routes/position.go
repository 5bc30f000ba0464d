package routes

import (
	"omnivault/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupPositionRoutes sets up the user deposit and withdrawal routes
func SetupPositionRoutes(r *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc) {
	position := r.Group("/positions")
	{
		position.GET("/:owner", h.GetPosition)
		position.POST("/deposit", auth, h.Deposit)
		position.POST("/withdraw", auth, h.Withdraw)
	}
}
