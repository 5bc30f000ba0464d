package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
)

// BalanceClient is the subset of *rpc.Client the balance reader needs.
type BalanceClient interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// BalanceReader reads on-chain balances of one mint.
type BalanceReader struct {
	client BalanceClient
	mint   solana.PublicKey
}

func NewBalanceReader(client BalanceClient, mint solana.PublicKey) *BalanceReader {
	return &BalanceReader{client: client, mint: mint}
}

func (r *BalanceReader) Mint() solana.PublicKey {
	return r.mint
}

// TokenBalance returns the mint balance of owner's associated token
// account. An owner without a token account holds zero.
func (r *BalanceReader) TokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ata, err := GetAssociatedTokenAddress(r.mint, owner)
	if err != nil {
		return 0, err
	}
	if _, err := r.client.GetAccountInfo(ctx, ata); err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get token account %s: %w", ata, err)
	}
	resp, err := r.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err != nil {
		log.Errorf("> Failed to query balance of %s: %v", ata, err)
		return 0, err
	}
	if resp == nil || resp.Value == nil {
		return 0, fmt.Errorf("empty balance response for %s", ata)
	}
	amount, err := strconv.ParseUint(resp.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse balance %q: %w", resp.Value.Amount, err)
	}
	return amount, nil
}
