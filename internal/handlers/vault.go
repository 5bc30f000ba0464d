package handlers

import (
	"math/big"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"omnivault/internal/ledger"
)

type InitVaultRequest struct {
	Endpoint          string `json:"endpoint"`
	CustodyAccount    string `json:"custody_account"`
	MinDeposit        uint64 `json:"min_deposit"`
	MaxDeposit        uint64 `json:"max_deposit"`
	ManagementFeeBps  uint16 `json:"management_fee_bps"`
	PerformanceFeeBps uint16 `json:"performance_fee_bps"`
	WithdrawalFeeBps  uint16 `json:"withdrawal_fee_bps"`
}

type CreditRequest struct {
	Account string `json:"account" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

// InitVault creates the vault with the signer as admin. Absent deposit
// bounds take the ledger limits.
func (h *Handler) InitVault(c *gin.Context) {
	var req InitVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MinDeposit == 0 {
		req.MinDeposit = ledger.MinDepositAmount
	}
	if req.MaxDeposit == 0 {
		req.MaxDeposit = ledger.MaxDepositAmount
	}
	v, err := h.ledger.InitVault(c.Request.Context(), authority(c), ledger.InitVaultParams{
		Endpoint:          req.Endpoint,
		CustodyAccount:    req.CustodyAccount,
		MinDeposit:        req.MinDeposit,
		MaxDeposit:        req.MaxDeposit,
		ManagementFeeBps:  req.ManagementFeeBps,
		PerformanceFeeBps: req.PerformanceFeeBps,
		WithdrawalFeeBps:  req.WithdrawalFeeBps,
	})
	if !h.record(c, "init_vault", err) {
		return
	}
	c.JSON(http.StatusCreated, newVaultView(v))
}

func (h *Handler) GetVault(c *gin.Context) {
	v, err := h.ledger.Vault(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVaultView(v))
}

func (h *Handler) PauseVault(c *gin.Context) {
	if !h.record(c, "pause", h.ledger.Pause(c.Request.Context(), authority(c))) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *Handler) ResumeVault(c *gin.Context) {
	if !h.record(c, "resume", h.ledger.Resume(c.Request.Context(), authority(c))) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

// Credit books tokens that reached an account's custody outside the API.
func (h *Handler) Credit(c *gin.Context) {
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.ledger.Credit(c.Request.Context(), authority(c), req.Account, req.Amount)
	if !h.record(c, "credit", err) {
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) GetBalance(c *gin.Context) {
	b, err := h.ledger.Balance(c.Request.Context(), c.Param("account"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Reconcile compares the booked custody balance with the settled on-chain
// balance of the custody account.
func (h *Handler) Reconcile(c *gin.Context) {
	if h.balances == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "On-chain settlement is not enabled"})
		return
	}
	ctx := c.Request.Context()
	v, err := h.ledger.Vault(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	owner, err := solana.PublicKeyFromBase58(v.CustodyAccount)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Custody account is not a Solana address"})
		return
	}
	booked, err := h.ledger.Balance(ctx, v.CustodyAccount)
	if err != nil {
		respondError(c, err)
		return
	}
	onChain, err := h.balances.TokenBalance(ctx, owner)
	if err != nil {
		h.log.WithError(err).Warn("Failed to read custody balance")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	diff := decimal.NewFromBigInt(new(big.Int).SetUint64(onChain), 0).
		Sub(decimal.NewFromBigInt(new(big.Int).SetUint64(booked.Balance), 0))
	c.JSON(http.StatusOK, gin.H{
		"custody_account": v.CustodyAccount,
		"booked":          booked.Balance,
		"on_chain":        onChain,
		"difference":      diff.String(),
		"balanced":        diff.IsZero(),
	})
}

// GetSettlement reports the on-chain payout of a withdrawal.
func (h *Handler) GetSettlement(c *gin.Context) {
	st, err := h.ledger.Settlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
