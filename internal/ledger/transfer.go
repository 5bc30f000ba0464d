package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

// TransferRequest moves Amount from From to To, signed by Authority.
type TransferRequest struct {
	From      string
	To        string
	Authority string
	Amount    uint64
}

// Transferer books the token movement of a deposit or withdrawal inside
// the storage transaction of the operation; returning an error aborts the
// whole operation. A returned settlement is sent on chain by the ledger
// after the transaction commits.
type Transferer interface {
	Transfer(ctx context.Context, tx storage.Tx, req TransferRequest) (*models.Settlement, error)
}

// Settler sends a committed settlement and returns its transaction signature.
type Settler interface {
	Settle(ctx context.Context, s *models.Settlement) (string, error)
}

// CustodyTransferer moves balances held in the vault's own storage.
type CustodyTransferer struct{}

func (CustodyTransferer) Transfer(ctx context.Context, tx storage.Tx, req TransferRequest) (*models.Settlement, error) {
	return nil, book(tx, req)
}

func book(tx storage.Tx, req TransferRequest) error {
	if req.Authority != req.From {
		return fmt.Errorf("%s cannot move funds of %s: %w", req.Authority, req.From, vaulterr.ErrUnauthorized)
	}
	if req.Amount == 0 || req.From == req.To {
		return nil
	}
	from, err := tx.GetBalance(req.From)
	if err != nil {
		return err
	}
	if from.Balance < req.Amount {
		return fmt.Errorf("%s holds %d, needs %d: %w", req.From, from.Balance, req.Amount, vaulterr.ErrInsufficientFunds)
	}
	to, err := tx.GetBalance(req.To)
	if err != nil {
		return err
	}
	credited, err := vaulterr.CheckedAdd(to.Balance, req.Amount)
	if err != nil {
		return err
	}
	from.Balance -= req.Amount
	to.Balance = credited
	if err := tx.UpsertBalance(from); err != nil {
		return err
	}
	return tx.UpsertBalance(to)
}

// TokenSender submits SPL token transfers on chain.
type TokenSender interface {
	CanSign(owner solana.PublicKey) bool
	SendTokens(ctx context.Context, owner, recipient solana.PublicKey, amount uint64) (solana.Signature, error)
}

// ChainTransferer books the transfer like CustodyTransferer and queues an
// on-chain settlement when the sender holds the source key. Incoming user
// funds are booked with Ledger.Credit once they have arrived.
type ChainTransferer struct {
	Sender TokenSender
	Log    *logrus.Entry
	// Now stamps queued settlements; defaults to the wall clock.
	Now func() time.Time
}

func (c ChainTransferer) Transfer(ctx context.Context, tx storage.Tx, req TransferRequest) (*models.Settlement, error) {
	if err := book(tx, req); err != nil {
		return nil, err
	}
	if req.Amount == 0 || req.From == req.To {
		return nil, nil
	}
	from, err := storage.ParseAddress(req.From)
	if err != nil {
		return nil, err
	}
	if !c.Sender.CanSign(from) {
		return nil, nil
	}
	if _, err := storage.ParseAddress(req.To); err != nil {
		return nil, err
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	st := &models.Settlement{
		Address:     uuid.NewString(),
		FromAccount: req.From,
		ToAccount:   req.To,
		Amount:      req.Amount,
		Status:      models.SettlementPending,
		CreatedAt:   now().Unix(),
		UpdatedAt:   now().Unix(),
	}
	if err := tx.CreateSettlement(st); err != nil {
		return nil, err
	}
	return st, nil
}

func (c ChainTransferer) Settle(ctx context.Context, s *models.Settlement) (string, error) {
	from, err := storage.ParseAddress(s.FromAccount)
	if err != nil {
		return "", err
	}
	to, err := storage.ParseAddress(s.ToAccount)
	if err != nil {
		return "", err
	}
	sig, err := c.Sender.SendTokens(ctx, from, to, s.Amount)
	if err != nil {
		return "", fmt.Errorf("failed to settle transfer of %d to %s: %w", s.Amount, s.ToAccount, err)
	}
	log := c.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log.WithFields(logrus.Fields{
		"settlement": s.Address,
		"from":       s.FromAccount,
		"to":         s.ToAccount,
		"amount":     s.Amount,
		"signature":  sig.String(),
	}).Info("Transfer settled on chain")
	return sig.String(), nil
}
