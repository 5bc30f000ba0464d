package models

// YieldData is the latest reported state of one protocol on one chain.
type YieldData struct {
	ID                 uint   `gorm:"primarykey" json:"id"`
	Address            string `gorm:"column:address;size:64;uniqueIndex;not null" json:"address"`
	ChainID            uint32 `gorm:"column:chain_id;index;not null" json:"chain_id"`
	ProtocolID         string `gorm:"column:protocol_id;size:64;not null" json:"protocol_id"`
	APYBps             uint32 `gorm:"column:apy_bps" json:"apy_bps"`
	TVL                uint64 `gorm:"column:tvl" json:"tvl"`
	AvailableLiquidity uint64 `gorm:"column:available_liquidity" json:"available_liquidity"`
	LastUpdated        int64  `gorm:"column:last_updated" json:"last_updated"`
	ValidityPeriod     int64  `gorm:"column:validity_period" json:"validity_period"`
	MinDeposit         uint64 `gorm:"column:min_deposit" json:"min_deposit"`
	MaxDeposit         uint64 `gorm:"column:max_deposit" json:"max_deposit"`
	RiskScore          uint8  `gorm:"column:risk_score" json:"risk_score"`
	VolatilityScore    uint8  `gorm:"column:volatility_score" json:"volatility_score"`
	IsActive           bool   `gorm:"column:is_active" json:"is_active"`
	HistoricalAPY30d   uint32 `gorm:"column:historical_apy_30d" json:"historical_apy_30d"`
}

func (YieldData) TableName() string {
	return "yield_data"
}
