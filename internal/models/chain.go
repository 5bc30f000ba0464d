package models

// LayerZero endpoint ids of the chains the vault routes to.
const (
	SolanaMainnetEID    uint32 = 30168
	EthereumMainnetEID  uint32 = 30101
	ArbitrumMainnetEID  uint32 = 30110
	OptimismMainnetEID  uint32 = 30111
	PolygonMainnetEID   uint32 = 30109
	AvalancheMainnetEID uint32 = 30106
)

var chainNames = map[uint32]string{
	SolanaMainnetEID:    "solana",
	EthereumMainnetEID:  "ethereum",
	ArbitrumMainnetEID:  "arbitrum",
	OptimismMainnetEID:  "optimism",
	PolygonMainnetEID:   "polygon",
	AvalancheMainnetEID: "avalanche",
}

// ChainName returns a readable name for a known endpoint id, or "" if unknown.
func ChainName(eid uint32) string {
	return chainNames[eid]
}
