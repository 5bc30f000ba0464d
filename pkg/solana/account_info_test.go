package solana

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type balanceRPC struct {
	fakeRPC
	amounts map[solana.PublicKey]string
}

func (b *balanceRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return &rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{Amount: b.amounts[account]}}, nil
}

func TestBalanceReader(t *testing.T) {
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	ata, err := GetAssociatedTokenAddress(mint, owner)
	require.NoError(t, err)

	t.Run("missing token account is zero", func(t *testing.T) {
		r := NewBalanceReader(&balanceRPC{}, mint)
		got, err := r.TokenBalance(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, got)
	})

	t.Run("reads associated account", func(t *testing.T) {
		client := &balanceRPC{
			fakeRPC: fakeRPC{existing: map[solana.PublicKey]bool{ata: true}},
			amounts: map[solana.PublicKey]string{ata: "1234567"},
		}
		got, err := NewBalanceReader(client, mint).TokenBalance(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, uint64(1234567), got)
	})

	t.Run("malformed amount", func(t *testing.T) {
		client := &balanceRPC{
			fakeRPC: fakeRPC{existing: map[solana.PublicKey]bool{ata: true}},
			amounts: map[solana.PublicKey]string{ata: "1.5"},
		}
		_, err := NewBalanceReader(client, mint).TokenBalance(ctx, owner)
		assert.Error(t, err)
	})
}
