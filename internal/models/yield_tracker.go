package models

import (
	"gorm.io/datatypes"
)

// ChainYield is one chain's most recent yield response as seen by a tracker.
type ChainYield struct {
	ChainID     uint32 `json:"chain_id"`
	APY         uint64 `json:"apy"`
	TVL         uint64 `json:"tvl"`
	RiskScore   uint64 `json:"risk_score"`
	LastUpdated int64  `json:"last_updated"`
}

// YieldTracker holds the per-strategy routing decision: the known chain
// yields in arrival order and the chain capital currently targets.
type YieldTracker struct {
	ID                 uint                            `gorm:"primarykey" json:"id"`
	Address            string                          `gorm:"column:address;size:64;uniqueIndex;not null" json:"address"`
	VaultAddress       string                          `gorm:"column:vault_address;size:64;not null" json:"vault_address"`
	StrategyID         uint64                          `gorm:"column:strategy_id;not null" json:"strategy_id"`
	ChainYields        datatypes.JSONSlice[ChainYield] `gorm:"column:chain_yields;type:jsonb" json:"chain_yields"`
	CurrentBestChain   uint32                          `gorm:"column:current_best_chain" json:"current_best_chain"`
	CurrentAPY         uint64                          `gorm:"column:current_apy" json:"current_apy"`
	RebalanceThreshold uint64                          `gorm:"column:rebalance_threshold" json:"rebalance_threshold"`
	LastRebalance      int64                           `gorm:"column:last_rebalance" json:"last_rebalance"`
	LastUpdate         int64                           `gorm:"column:last_update" json:"last_update"`
}

func (YieldTracker) TableName() string {
	return "yield_trackers"
}

// Clone returns a copy that shares no slice memory with t.
func (t YieldTracker) Clone() YieldTracker {
	if t.ChainYields != nil {
		t.ChainYields = append(datatypes.JSONSlice[ChainYield]{}, t.ChainYields...)
	}
	return t
}
