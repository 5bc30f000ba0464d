package models

// Position is one user's stake under one strategy.
type Position struct {
	ID                   uint        `gorm:"primarykey" json:"id"`
	Address              string      `gorm:"column:address;size:64;uniqueIndex;not null" json:"address"`
	VaultAddress         string      `gorm:"column:vault_address;size:64;index;not null" json:"vault_address"`
	Owner                string      `gorm:"column:owner;size:64;index;not null" json:"owner"`
	StrategyID           uint64      `gorm:"column:strategy_id" json:"strategy_id"`
	RiskProfile          RiskProfile `gorm:"column:risk_profile" json:"risk_profile"`
	InitialDeposit       uint64      `gorm:"column:initial_deposit" json:"initial_deposit"`
	CurrentValue         uint64      `gorm:"column:current_value" json:"current_value"`
	TotalDeposits        uint64      `gorm:"column:total_deposits" json:"total_deposits"`
	TotalWithdrawals     uint64      `gorm:"column:total_withdrawals" json:"total_withdrawals"`
	AccruedFees          uint64      `gorm:"column:accrued_fees" json:"accrued_fees"`
	LastYieldCalculation int64       `gorm:"column:last_yield_calculation" json:"last_yield_calculation"`
	CreatedAt            int64       `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	LastActivity         int64       `gorm:"column:last_activity" json:"last_activity"`
	IsActive             bool        `gorm:"column:is_active" json:"is_active"`
	AutoCompound         bool        `gorm:"column:auto_compound" json:"auto_compound"`
}

func (Position) TableName() string {
	return "positions"
}
