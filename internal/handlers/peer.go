package handlers

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"omnivault/internal/decision"
	"omnivault/internal/ledger"
	"omnivault/internal/models"
	"omnivault/internal/vaulterr"
)

type SetPeerRequest struct {
	ChainID          uint32 `json:"chain_id" binding:"required"`
	PeerAddress      string `json:"peer_address" binding:"required"`
	IsTrusted        bool   `json:"is_trusted"`
	MaxMessageSize   uint32 `json:"max_message_size"`
	RateLimitPerHour uint32 `json:"rate_limit_per_hour"`
}

type YieldDataRequest struct {
	ChainID            uint32 `json:"chain_id" binding:"required"`
	ProtocolID         string `json:"protocol_id" binding:"required"`
	APYBps             uint32 `json:"apy_bps"`
	TVL                uint64 `json:"tvl"`
	AvailableLiquidity uint64 `json:"available_liquidity"`
	RiskScore          uint8  `json:"risk_score"`
	VolatilityScore    uint8  `json:"volatility_score"`
	IsActive           bool   `json:"is_active"`
}

func parseHex32(field, s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(out) {
		return out, fmt.Errorf("%s must be 32 hex-encoded bytes: %w", field, vaulterr.ErrInvalidParameter)
	}
	copy(out[:], b)
	return out, nil
}

func (h *Handler) SetPeer(c *gin.Context) {
	var req SetPeerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addr, err := parseHex32("peer_address", req.PeerAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	peer, err := h.ledger.SetPeer(c.Request.Context(), authority(c), ledger.SetPeerParams{
		ChainID:          req.ChainID,
		PeerAddress:      addr,
		IsTrusted:        req.IsTrusted,
		MaxMessageSize:   req.MaxMessageSize,
		RateLimitPerHour: req.RateLimitPerHour,
	})
	if !h.record(c, "set_peer", err) {
		return
	}
	c.JSON(http.StatusOK, peer)
}

func (h *Handler) GetPeer(c *gin.Context) {
	chainID, ok := parseUint(c, "chain_id", 32)
	if !ok {
		return
	}
	peer, err := h.ledger.Peer(c.Request.Context(), uint32(chainID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, peer)
}

func (h *Handler) UpdateYieldData(c *gin.Context) {
	var req YieldDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	protocol, err := parseHex32("protocol_id", req.ProtocolID)
	if err != nil {
		respondError(c, err)
		return
	}
	y, err := h.ledger.UpdateYieldData(c.Request.Context(), authority(c), ledger.UpdateYieldDataParams{
		ChainID:            req.ChainID,
		ProtocolID:         protocol,
		APYBps:             req.APYBps,
		TVL:                req.TVL,
		AvailableLiquidity: req.AvailableLiquidity,
		RiskScore:          req.RiskScore,
		VolatilityScore:    req.VolatilityScore,
		IsActive:           req.IsActive,
	})
	if !h.record(c, "update_yield_data", err) {
		return
	}
	c.JSON(http.StatusOK, newYieldDataView(*y, h.ledger.Now()))
}

// ListYieldData returns every yield record, optionally filtered by ?chain_id=.
func (h *Handler) ListYieldData(c *gin.Context) {
	yields, err := h.ledger.ListYieldData(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	var chainFilter uint64
	if s := c.Query("chain_id"); s != "" {
		if chainFilter, err = strconv.ParseUint(s, 10, 32); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chain_id format"})
			return
		}
	}
	now := h.ledger.Now()
	views := make([]YieldDataView, 0, len(yields))
	for _, y := range yields {
		if chainFilter != 0 && uint64(y.ChainID) != chainFilter {
			continue
		}
		views = append(views, newYieldDataView(y, now))
	}
	c.JSON(http.StatusOK, views)
}

// Recommend picks the best usable yield for ?risk_profile= (default moderate)
// and, when ?amount= is set, reports whether it can take the deposit.
func (h *Handler) Recommend(c *gin.Context) {
	profile := models.Moderate
	if s := c.Query("risk_profile"); s != "" {
		p, err := models.ParseRiskProfile(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile = p
	}
	yields, err := h.ledger.ListYieldData(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	now := h.ledger.Now()
	best, ok := decision.Recommend(yields, profile, now)
	if !ok {
		respondError(c, vaulterr.ErrYieldDataNotFound)
		return
	}
	resp := gin.H{
		"risk_profile": profile,
		"yield":        newYieldDataView(best, now),
		"evaluated_at": time.Unix(now, 0).UTC(),
	}
	if s := c.Query("amount"); s != "" {
		amount, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount format"})
			return
		}
		resp["can_accommodate"] = decision.CanAccommodateDeposit(&best, amount)
	}
	c.JSON(http.StatusOK, resp)
}
