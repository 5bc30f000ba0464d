package models

import (
	"gorm.io/datatypes"
)

// ChainAllocation is the share of a strategy routed to one remote chain.
type ChainAllocation struct {
	ChainID     uint32 `json:"chain_id"`
	TargetBps   uint16 `json:"target_bps"`
	CurrentBps  uint16 `json:"current_bps"`
	MinYieldBps uint16 `json:"min_yield_bps"`
}

type Strategy struct {
	ID                    uint                                 `gorm:"primarykey" json:"id"`
	Address               string                               `gorm:"column:address;size:64;uniqueIndex;not null" json:"address"`
	VaultAddress          string                               `gorm:"column:vault_address;size:64;index;not null" json:"vault_address"`
	StrategyID            uint64                               `gorm:"column:strategy_id;not null" json:"strategy_id"`
	Name                  string                               `gorm:"column:name;size:32" json:"name"`
	Admin                 string                               `gorm:"column:admin;size:64" json:"admin"`
	RiskProfile           RiskProfile                          `gorm:"column:risk_profile" json:"risk_profile"`
	IsActive              bool                                 `gorm:"column:is_active" json:"is_active"`
	RebalanceThresholdBps uint16                               `gorm:"column:rebalance_threshold_bps" json:"rebalance_threshold_bps"`
	MaxSlippageBps        uint16                               `gorm:"column:max_slippage_bps" json:"max_slippage_bps"`
	MinRebalanceInterval  int64                                `gorm:"column:min_rebalance_interval" json:"min_rebalance_interval"`
	LastRebalance         int64                                `gorm:"column:last_rebalance" json:"last_rebalance"`
	TotalValue            uint64                               `gorm:"column:total_value;default:0" json:"total_value"`
	Allocations           datatypes.JSONSlice[ChainAllocation] `gorm:"column:allocations;type:jsonb" json:"allocations"`
	CreatedAt             int64                                `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt             int64                                `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Strategy) TableName() string {
	return "strategies"
}

// Clone returns a copy that shares no slice memory with s.
func (s Strategy) Clone() Strategy {
	if s.Allocations != nil {
		s.Allocations = append(datatypes.JSONSlice[ChainAllocation]{}, s.Allocations...)
	}
	return s
}

// AllocationIndex returns the index of chainID in the allocation list, or -1.
func (s *Strategy) AllocationIndex(chainID uint32) int {
	for i, a := range s.Allocations {
		if a.ChainID == chainID {
			return i
		}
	}
	return -1
}
