package routes

import (
	"omnivault/internal/handlers"

	"github.com/gin-gonic/gin"
)

func SetupPeerRoutes(r *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc) {
	peer := r.Group("/peers")
	{
		peer.GET("/:chain_id", h.GetPeer)
		peer.PUT("", auth, h.SetPeer)
	}
}
