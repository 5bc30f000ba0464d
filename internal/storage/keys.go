package storage

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"omnivault/internal/vaulterr"
	ovsolana "omnivault/pkg/solana"
)

// ParseAddress decodes a base58 account address.
func ParseAddress(address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %v: %w", address, err, vaulterr.ErrInvalidParameter)
	}
	return pk, nil
}

func VaultKey() (string, error) {
	pda, err := ovsolana.GetVaultStorePDA()
	if err != nil {
		return "", err
	}
	return pda.Address.String(), nil
}

func StrategyKey(vault string, id uint64) (string, error) {
	v, err := ParseAddress(vault)
	if err != nil {
		return "", err
	}
	pda, err := ovsolana.GetStrategyPDA(v, id)
	if err != nil {
		return "", err
	}
	return pda.Address.String(), nil
}

func PositionKey(vault, owner string) (string, error) {
	v, err := ParseAddress(vault)
	if err != nil {
		return "", err
	}
	o, err := ParseAddress(owner)
	if err != nil {
		return "", err
	}
	pda, err := ovsolana.GetPositionPDA(v, o)
	if err != nil {
		return "", err
	}
	return pda.Address.String(), nil
}

func YieldDataKey(chainID uint32, protocolID [32]byte) (string, error) {
	pda, err := ovsolana.GetYieldDataPDA(chainID, protocolID)
	if err != nil {
		return "", err
	}
	return pda.Address.String(), nil
}

func PeerKey(vault string, chainID uint32) (string, error) {
	v, err := ParseAddress(vault)
	if err != nil {
		return "", err
	}
	pda, err := ovsolana.GetPeerPDA(v, chainID)
	if err != nil {
		return "", err
	}
	return pda.Address.String(), nil
}

func TrackerKey(vault, strategy string) (string, error) {
	v, err := ParseAddress(vault)
	if err != nil {
		return "", err
	}
	s, err := ParseAddress(strategy)
	if err != nil {
		return "", err
	}
	pda, err := ovsolana.GetYieldTrackerPDA(v, s)
	if err != nil {
		return "", err
	}
	return pda.Address.String(), nil
}

// AddressFromBytes renders a raw 32-byte account id as base58.
func AddressFromBytes(b [32]byte) string {
	return solana.PublicKeyFromBytes(b[:]).String()
}
