package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"omnivault/internal/ledger"
	"omnivault/internal/models"
)

type DepositRequest struct {
	Amount       uint64             `json:"amount" binding:"required"`
	StrategyID   uint64             `json:"strategy_id"`
	RiskProfile  models.RiskProfile `json:"risk_profile"`
	AutoCompound bool               `json:"auto_compound"`
}

type WithdrawRequest struct {
	Amount        uint64 `json:"amount"`
	ClosePosition bool   `json:"close_position"`
}

// Deposit stakes the signer's custodial funds into a strategy.
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.ledger.Deposit(c.Request.Context(), authority(c), ledger.DepositParams{
		Amount:       req.Amount,
		StrategyID:   req.StrategyID,
		RiskProfile:  req.RiskProfile,
		AutoCompound: req.AutoCompound,
	})
	if !h.record(c, "deposit", err) {
		return
	}
	c.JSON(http.StatusOK, newPositionView(p))
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	receipt, err := h.ledger.Withdraw(c.Request.Context(), authority(c), ledger.WithdrawParams{
		Amount:        req.Amount,
		ClosePosition: req.ClosePosition,
	})
	if !h.record(c, "withdraw", err) {
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *Handler) GetPosition(c *gin.Context) {
	p, err := h.ledger.Position(c.Request.Context(), c.Param("owner"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPositionView(p))
}
