package models

// PeerConfig is the trust and rate-limit record for one source chain.
type PeerConfig struct {
	ID                    uint   `gorm:"primarykey" json:"id"`
	Address               string `gorm:"column:address;size:64;uniqueIndex;not null" json:"address"`
	VaultAddress          string `gorm:"column:vault_address;size:64;not null" json:"vault_address"`
	ChainID               uint32 `gorm:"column:chain_id;not null" json:"chain_id"`
	PeerAddress           string `gorm:"column:peer_address;size:64" json:"peer_address"`
	IsTrusted             bool   `gorm:"column:is_trusted" json:"is_trusted"`
	MaxMessageSize        uint32 `gorm:"column:max_message_size" json:"max_message_size"`
	RateLimitPerHour      uint32 `gorm:"column:rate_limit_per_hour" json:"rate_limit_per_hour"`
	CurrentHourCount      uint32 `gorm:"column:current_hour_count" json:"current_hour_count"`
	CurrentHour           int64  `gorm:"column:current_hour" json:"current_hour"`
	TotalMessagesReceived uint64 `gorm:"column:total_messages_received" json:"total_messages_received"`
	LastMessageTimestamp  int64  `gorm:"column:last_message_timestamp" json:"last_message_timestamp"`
	LastInboundNonce      uint64 `gorm:"column:last_inbound_nonce" json:"last_inbound_nonce"`
	CreatedAt             int64  `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
}

func (PeerConfig) TableName() string {
	return "peer_configs"
}
