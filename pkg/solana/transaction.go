package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultTransferRetries = 3

// GetAssociatedTokenAddress derives the associated token account of owner for mint.
func GetAssociatedTokenAddress(mint, owner solana.PublicKey) (solana.PublicKey, error) {
	seeds := [][]byte{
		owner[:],
		solana.TokenProgramID[:],
		mint[:],
	}
	address, _, err := solana.FindProgramAddress(seeds, solana.SPLAssociatedTokenAccountProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find associated token address: %w", err)
	}
	return address, nil
}

// RPCClient is the subset of *rpc.Client the token sender needs.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	SendTransaction(ctx context.Context, transaction *solana.Transaction) (solana.Signature, error)
}

// TokenSender submits SPL transfers of one mint, signed by the owners it
// holds keys for. Requests are paced by a shared rate limiter.
type TokenSender struct {
	client     RPCClient
	mint       solana.PublicKey
	limiter    *rate.Limiter
	signers    map[solana.PublicKey]solana.PrivateKey
	maxRetries int
}

func NewTokenSender(client RPCClient, mint solana.PublicKey, rps int, signers ...solana.PrivateKey) *TokenSender {
	if rps <= 0 {
		rps = 1
	}
	s := &TokenSender{
		client:     client,
		mint:       mint,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		signers:    make(map[solana.PublicKey]solana.PrivateKey, len(signers)),
		maxRetries: defaultTransferRetries,
	}
	for _, k := range signers {
		s.signers[k.PublicKey()] = k
	}
	return s
}

// CanSign reports whether the sender holds the key of owner.
func (s *TokenSender) CanSign(owner solana.PublicKey) bool {
	_, ok := s.signers[owner]
	return ok
}

// SendTokens moves amount of the mint from owner's token account to
// recipient's, creating the recipient account when it does not exist.
func (s *TokenSender) SendTokens(ctx context.Context, owner, recipient solana.PublicKey, amount uint64) (solana.Signature, error) {
	key, ok := s.signers[owner]
	if !ok {
		return solana.Signature{}, fmt.Errorf("no signer for %s", owner)
	}
	sourceATA, err := GetAssociatedTokenAddress(s.mint, owner)
	if err != nil {
		return solana.Signature{}, err
	}
	targetATA, err := GetAssociatedTokenAddress(s.mint, recipient)
	if err != nil {
		return solana.Signature{}, err
	}

	var instructions []solana.Instruction
	if err := s.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	info, err := s.client.GetAccountInfo(ctx, targetATA)
	switch {
	case errors.Is(err, rpc.ErrNotFound), err == nil && (info == nil || info.Value == nil):
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(owner, recipient, s.mint).Build())
	case err != nil:
		return solana.Signature{}, fmt.Errorf("failed to look up %s: %w", targetATA, err)
	}
	instructions = append(instructions, token.NewTransferInstruction(amount, sourceATA, targetATA, owner, nil).Build())

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return solana.Signature{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
			log.WithFields(log.Fields{
				"owner":   owner.String(),
				"attempt": attempt,
			}).Warnf("Token transfer failed, retrying: %v", lastErr)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return solana.Signature{}, fmt.Errorf("rate limiter wait failed: %w", err)
		}
		sig, err := s.send(ctx, instructions, owner, key)
		if err == nil {
			log.WithFields(log.Fields{
				"owner":     owner.String(),
				"recipient": recipient.String(),
				"amount":    amount,
				"signature": sig.String(),
			}).Info("Token transfer submitted")
			return sig, nil
		}
		lastErr = err
	}
	return solana.Signature{}, fmt.Errorf("token transfer failed after %d attempts: %w", s.maxRetries+1, lastErr)
}

func (s *TokenSender) send(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey, key solana.PrivateKey) (solana.Signature, error) {
	bh, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, err
	}
	tx, err := solana.NewTransaction(instructions, bh.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, err
	}
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(payer) {
			return &key
		}
		return nil
	}); err != nil {
		return solana.Signature{}, err
	}
	return s.client.SendTransaction(ctx, tx)
}
