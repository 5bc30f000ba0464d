package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"omnivault/internal/ledger"
	"omnivault/internal/models"
)

type CreateStrategyRequest struct {
	Name                  string                   `json:"name" binding:"required"`
	RiskProfile           models.RiskProfile       `json:"risk_profile"`
	RebalanceThresholdBps uint16                   `json:"rebalance_threshold_bps"`
	MaxSlippageBps        uint16                   `json:"max_slippage_bps"`
	MinRebalanceInterval  int64                    `json:"min_rebalance_interval"`
	Allocations           []models.ChainAllocation `json:"allocations" binding:"required"`
}

// UpdateStrategyRequest leaves absent fields unchanged.
type UpdateStrategyRequest struct {
	Name                  *string                   `json:"name"`
	RiskProfile           *models.RiskProfile       `json:"risk_profile"`
	RebalanceThresholdBps *uint16                   `json:"rebalance_threshold_bps"`
	MaxSlippageBps        *uint16                   `json:"max_slippage_bps"`
	MinRebalanceInterval  *int64                    `json:"min_rebalance_interval"`
	Allocations           *[]models.ChainAllocation `json:"allocations"`
	IsActive              *bool                     `json:"is_active"`
}

type RebalanceRequest struct {
	Force bool `json:"force"`
}

type RebalanceResponse struct {
	*ledger.RebalancePlan
	Published []string `json:"published,omitempty"`
}

func (h *Handler) ListStrategies(c *gin.Context) {
	strategies, err := h.ledger.Strategies(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, strategies)
}

func (h *Handler) GetStrategy(c *gin.Context) {
	id, ok := parseUint(c, "id", 64)
	if !ok {
		return
	}
	s, err := h.ledger.Strategy(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetTracker returns the routing state of a strategy.
func (h *Handler) GetTracker(c *gin.Context) {
	id, ok := parseUint(c, "id", 64)
	if !ok {
		return
	}
	tr, err := h.ledger.Tracker(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (h *Handler) CreateStrategy(c *gin.Context) {
	var req CreateStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.ledger.CreateStrategy(c.Request.Context(), authority(c), ledger.CreateStrategyParams{
		Name:                  req.Name,
		RiskProfile:           req.RiskProfile,
		RebalanceThresholdBps: req.RebalanceThresholdBps,
		MaxSlippageBps:        req.MaxSlippageBps,
		MinRebalanceInterval:  req.MinRebalanceInterval,
		Allocations:           req.Allocations,
	})
	if !h.record(c, "create_strategy", err) {
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) UpdateStrategy(c *gin.Context) {
	id, ok := parseUint(c, "id", 64)
	if !ok {
		return
	}
	var req UpdateStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.ledger.UpdateStrategy(c.Request.Context(), authority(c), ledger.UpdateStrategyParams{
		StrategyID:            id,
		Name:                  req.Name,
		RiskProfile:           req.RiskProfile,
		RebalanceThresholdBps: req.RebalanceThresholdBps,
		MaxSlippageBps:        req.MaxSlippageBps,
		MinRebalanceInterval:  req.MinRebalanceInterval,
		Allocations:           req.Allocations,
		IsActive:              req.IsActive,
	})
	if !h.record(c, "update_strategy", err) {
		return
	}
	c.JSON(http.StatusOK, s)
}

// ExecuteRebalance applies the strategy's targets and, when a sender is
// configured, publishes the resulting moves.
func (h *Handler) ExecuteRebalance(c *gin.Context) {
	id, ok := parseUint(c, "id", 64)
	if !ok {
		return
	}
	var req RebalanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	ctx := c.Request.Context()
	plan, err := h.ledger.ExecuteRebalance(ctx, authority(c), id, req.Force)
	h.metrics.Rebalance("api", err)
	if !h.record(c, "rebalance", err) {
		return
	}

	resp := RebalanceResponse{RebalancePlan: plan}
	if h.sender != nil && len(plan.Moves) > 0 {
		tracker, err := h.ledger.Tracker(ctx, id)
		if err != nil {
			tracker = nil
		}
		envs, err := h.sender.PublishPlan(ctx, plan, tracker)
		for _, env := range envs {
			resp.Published = append(resp.Published, env.ID)
		}
		if err != nil {
			h.log.WithFields(log.Fields{"strategy_id": id, "error": err}).Error("Failed to publish rebalance moves")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "plan": resp})
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

