package handlers

import (
	"math/big"

	"github.com/shopspring/decimal"

	"omnivault/internal/decision"
	"omnivault/internal/ledger"
	"omnivault/internal/models"
)

// Percent renders a basis point value as a percentage with two decimals.
func Percent(bps uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(bps), -2).StringFixed(2)
}

type VaultView struct {
	*models.VaultStore
	ManagementFeePercent  string `json:"management_fee_percent"`
	PerformanceFeePercent string `json:"performance_fee_percent"`
	WithdrawalFeePercent  string `json:"withdrawal_fee_percent"`
}

func newVaultView(v *models.VaultStore) VaultView {
	return VaultView{
		VaultStore:            v,
		ManagementFeePercent:  Percent(uint64(v.ManagementFeeBps)),
		PerformanceFeePercent: Percent(uint64(v.PerformanceFeeBps)),
		WithdrawalFeePercent:  Percent(uint64(v.WithdrawalFeeBps)),
	}
}

type PositionView struct {
	*models.Position
	PnL          int64  `json:"pnl"`
	YieldBps     uint64 `json:"yield_bps"`
	YieldPercent string `json:"yield_percent"`
}

func newPositionView(p *models.Position) PositionView {
	bps := ledger.YieldBps(p)
	return PositionView{
		Position:     p,
		PnL:          ledger.PnL(p),
		YieldBps:     bps,
		YieldPercent: Percent(bps),
	}
}

type YieldDataView struct {
	models.YieldData
	APYPercent          string `json:"apy_percent"`
	RiskAdjustedPercent string `json:"risk_adjusted_percent"`
	Usable              bool   `json:"usable"`
}

func newYieldDataView(y models.YieldData, now int64) YieldDataView {
	return YieldDataView{
		YieldData:           y,
		APYPercent:          Percent(uint64(y.APYBps)),
		RiskAdjustedPercent: Percent(uint64(decision.RiskAdjustedYield(&y))),
		Usable:              decision.IsUsable(&y, now),
	}
}
