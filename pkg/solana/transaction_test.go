package solana

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPC struct {
	existing  map[solana.PublicKey]bool
	sendFails int
	sent      []*solana.Transaction
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{9}}}, nil
}

func (f *fakeRPC) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if f.existing[account] {
		return &rpc.GetAccountInfoResult{Value: &rpc.Account{Owner: solana.TokenProgramID}}, nil
	}
	return nil, rpc.ErrNotFound
}

func (f *fakeRPC) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if f.sendFails > 0 {
		f.sendFails--
		return solana.Signature{}, errors.New("node is behind")
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func TestGetAssociatedTokenAddress(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	a, err := GetAssociatedTokenAddress(mint, owner)
	require.NoError(t, err)
	b, err := GetAssociatedTokenAddress(mint, owner)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := GetAssociatedTokenAddress(mint, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}

func TestTokenSender(t *testing.T) {
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()
	custody := solana.NewWallet().PrivateKey
	recipient := solana.NewWallet().PublicKey()

	t.Run("Creates Missing Recipient Account", func(t *testing.T) {
		client := &fakeRPC{}
		s := NewTokenSender(client, mint, 100, custody)
		sig, err := s.SendTokens(ctx, custody.PublicKey(), recipient, 1_000)
		require.NoError(t, err)
		require.Len(t, client.sent, 1)

		tx := client.sent[0]
		assert.Equal(t, sig, tx.Signatures[0])
		assert.Len(t, tx.Message.Instructions, 2)
		assert.Equal(t, custody.PublicKey(), tx.Message.AccountKeys[0])
		assert.NoError(t, tx.VerifySignatures())
	})

	t.Run("Existing Recipient Account", func(t *testing.T) {
		ata, err := GetAssociatedTokenAddress(mint, recipient)
		require.NoError(t, err)
		client := &fakeRPC{existing: map[solana.PublicKey]bool{ata: true}}
		s := NewTokenSender(client, mint, 100, custody)
		_, err = s.SendTokens(ctx, custody.PublicKey(), recipient, 1_000)
		require.NoError(t, err)
		assert.Len(t, client.sent[0].Message.Instructions, 1)
	})

	t.Run("Retries Failed Sends", func(t *testing.T) {
		client := &fakeRPC{sendFails: 2}
		s := NewTokenSender(client, mint, 100, custody)
		_, err := s.SendTokens(ctx, custody.PublicKey(), recipient, 1)
		require.NoError(t, err)
		assert.Len(t, client.sent, 1)

		client = &fakeRPC{sendFails: defaultTransferRetries + 1}
		s = NewTokenSender(client, mint, 100, custody)
		_, err = s.SendTokens(ctx, custody.PublicKey(), recipient, 1)
		assert.Error(t, err)
		assert.Empty(t, client.sent)
	})

	t.Run("Unknown Owner", func(t *testing.T) {
		s := NewTokenSender(&fakeRPC{}, mint, 100, custody)
		assert.False(t, s.CanSign(recipient))
		_, err := s.SendTokens(ctx, recipient, custody.PublicKey(), 1)
		assert.Error(t, err)
	})
}
