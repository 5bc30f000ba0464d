package routes

import (
	"omnivault/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupVaultRoutes sets up the vault administration and custody routes
func SetupVaultRoutes(r *gin.Engine, h *handlers.Handler, auth gin.HandlerFunc) {
	vault := r.Group("/vault")
	{
		vault.GET("", h.GetVault)
		vault.GET("/balances/:account", h.GetBalance)
		vault.GET("/reconcile", h.Reconcile)
		vault.GET("/settlements/:id", h.GetSettlement)

		signed := vault.Group("", auth)
		signed.POST("", h.InitVault)
		signed.POST("/pause", h.PauseVault)
		signed.POST("/resume", h.ResumeVault)
		signed.POST("/credit", h.Credit)
	}
}
