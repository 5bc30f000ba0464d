package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// OmniVault program address
var OMNIVAULT_PROGRAM_ID = solana.MustPublicKeyFromBase58("HAGPttZ592S5xv5TPrkVLPQpkNGrNPAw42kGjdR9vUc4")

// PDA seeds
var (
	SEED_VAULT_STORE   = []byte("OmniVaultStore")
	SEED_STRATEGY      = []byte("Strategy")
	SEED_POSITION      = []byte("Position")
	SEED_YIELD_DATA    = []byte("YieldData")
	SEED_PEER          = []byte("Peer")
	SEED_YIELD_TRACKER = []byte("YieldTracker")
)

// PDAResult is a derived address together with its bump seed.
type PDAResult struct {
	Address solana.PublicKey
	Bump    uint8
}

func findPDA(name string, seeds [][]byte) (PDAResult, error) {
	address, bump, err := solana.FindProgramAddress(seeds, OMNIVAULT_PROGRAM_ID)
	if err != nil {
		return PDAResult{}, fmt.Errorf("failed to find %s PDA: %w", name, err)
	}
	return PDAResult{
		Address: address,
		Bump:    bump,
	}, nil
}

// GetVaultStorePDA derives the singleton vault store address.
func GetVaultStorePDA() (PDAResult, error) {
	return findPDA("vault store", [][]byte{SEED_VAULT_STORE})
}

// GetStrategyPDA derives a strategy address; the id is encoded little-endian.
func GetStrategyPDA(vault solana.PublicKey, strategyID uint64) (PDAResult, error) {
	id := make([]byte, 8)
	binary.LittleEndian.PutUint64(id, strategyID)
	return findPDA("strategy", [][]byte{SEED_STRATEGY, vault[:], id})
}

// GetPositionPDA derives the position address of one user.
func GetPositionPDA(vault, user solana.PublicKey) (PDAResult, error) {
	return findPDA("position", [][]byte{SEED_POSITION, vault[:], user[:]})
}

// GetYieldDataPDA derives the yield record of (chain, protocol); the chain id is big-endian.
func GetYieldDataPDA(chainID uint32, protocolID [32]byte) (PDAResult, error) {
	chain := make([]byte, 4)
	binary.BigEndian.PutUint32(chain, chainID)
	return findPDA("yield data", [][]byte{SEED_YIELD_DATA, chain, protocolID[:]})
}

// GetPeerPDA derives the peer record of a source chain; the chain id is big-endian.
func GetPeerPDA(vault solana.PublicKey, chainID uint32) (PDAResult, error) {
	chain := make([]byte, 4)
	binary.BigEndian.PutUint32(chain, chainID)
	return findPDA("peer", [][]byte{SEED_PEER, vault[:], chain})
}

// GetYieldTrackerPDA derives the tracker bound to a strategy account.
func GetYieldTrackerPDA(vault, strategy solana.PublicKey) (PDAResult, error) {
	return findPDA("yield tracker", [][]byte{SEED_YIELD_TRACKER, vault[:], strategy[:]})
}
