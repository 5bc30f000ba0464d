package routes

import (
	"omnivault/internal/handlers"
	"omnivault/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupMessageRoutes sets up the cross-chain message ingest routes.
// Delivery must be signed by a configured relayer; the router's peer gate
// then checks the envelope's source.
func SetupMessageRoutes(r *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc, relayers []string) {
	lz := r.Group("/lz")
	{
		lz.POST("/receive", auth, middleware.RequireAuthority(relayers), h.Receive)
		lz.POST("/resolve", h.Resolve)
	}
}
