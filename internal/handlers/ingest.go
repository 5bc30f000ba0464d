package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"omnivault/pkg/transport"
)

type ResolveRequest struct {
	SrcChain uint32 `json:"src_chain" binding:"required"`
	Payload  []byte `json:"payload" binding:"required"`
}

// Receive delivers one relayed envelope to the message router.
func (h *Handler) Receive(c *gin.Context) {
	var env transport.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := env.Inbound()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.router.Receive(c.Request.Context(), msg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": env.ID, "nonce": env.Nonce, "status": "accepted"})
}

// Resolve lists the accounts a payload from src_chain would touch.
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accounts, err := h.router.Resolve(req.SrcChain, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}
