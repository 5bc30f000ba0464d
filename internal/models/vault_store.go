package models

// VaultStore is the global configuration and accounting root of one deployment.
type VaultStore struct {
	ID                uint   `gorm:"primarykey" json:"id"`
	Address           string `gorm:"column:address;size:64;uniqueIndex;not null" json:"address"`
	Admin             string `gorm:"column:admin;size:64;not null" json:"admin"`
	EndpointProgram   string `gorm:"column:endpoint_program;size:64" json:"endpoint_program"`
	CustodyAccount    string `gorm:"column:custody_account;size:64;not null" json:"custody_account"`
	TotalValueLocked  uint64 `gorm:"column:total_value_locked;default:0" json:"total_value_locked"`
	StrategyCount     uint64 `gorm:"column:strategy_count;default:0" json:"strategy_count"`
	PositionCount     uint64 `gorm:"column:position_count;default:0" json:"position_count"`
	LastRebalance     int64  `gorm:"column:last_rebalance" json:"last_rebalance"`
	IsPaused          bool   `gorm:"column:is_paused;default:false" json:"is_paused"`
	MinDeposit        uint64 `gorm:"column:min_deposit" json:"min_deposit"`
	MaxDeposit        uint64 `gorm:"column:max_deposit" json:"max_deposit"`
	ManagementFeeBps  uint16 `gorm:"column:management_fee_bps" json:"management_fee_bps"`
	PerformanceFeeBps uint16 `gorm:"column:performance_fee_bps" json:"performance_fee_bps"`
	WithdrawalFeeBps  uint16 `gorm:"column:withdrawal_fee_bps" json:"withdrawal_fee_bps"`
	CollectedFees     uint64 `gorm:"column:collected_fees;default:0" json:"collected_fees"`
	CreatedAt         int64  `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt         int64  `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (VaultStore) TableName() string {
	return "vault_stores"
}

// IsAdmin reports whether authority is the vault admin.
func (v *VaultStore) IsAdmin(authority string) bool {
	return v.Admin == authority
}
