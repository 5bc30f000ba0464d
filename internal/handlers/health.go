package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ovsolana "omnivault/pkg/solana"
)

// Health probes the configured Solana RPC endpoints. It reports 503 only
// when endpoints are configured and none of them is healthy.
func (h *Handler) Health(c *gin.Context) {
	if len(h.healthRPCs) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	results := ovsolana.CheckRPCListAsync(c.Request.Context(), h.healthRPCs, h.healthTimeout)
	status, code := "down", http.StatusServiceUnavailable
	for _, r := range results {
		if r.OK {
			status, code = "ok", http.StatusOK
			break
		}
	}
	c.JSON(code, gin.H{"status": status, "rpcs": results})
}
