package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

type DepositParams struct {
	Amount       uint64
	StrategyID   uint64
	RiskProfile  models.RiskProfile
	AutoCompound bool
}

// Deposit moves amount from user into vault custody and credits the user's
// position under the strategy, opening the position on first use.
func (l *Ledger) Deposit(ctx context.Context, user string, p DepositParams) (*models.Position, error) {
	if !p.RiskProfile.Valid() {
		return nil, vaulterr.ErrInvalidRiskProfile
	}
	posKey, err := storage.PositionKey(l.vaultKey, user)
	if err != nil {
		return nil, err
	}

	var out *models.Position
	var settlement *models.Settlement
	err = l.store.Atomic(ctx, func(tx storage.Tx) error {
		settlement = nil
		v, err := LoadVault(tx, l.vaultKey)
		if err != nil {
			return err
		}
		if v.IsPaused {
			return vaulterr.ErrVaultPaused
		}
		if p.Amount < v.MinDeposit || p.Amount > v.MaxDeposit {
			return fmt.Errorf("amount %d outside [%d, %d]: %w", p.Amount, v.MinDeposit, v.MaxDeposit, vaulterr.ErrInvalidDepositAmount)
		}
		s, err := LoadStrategy(tx, v.Address, p.StrategyID)
		if err != nil {
			return err
		}
		if !s.IsActive {
			return vaulterr.ErrStrategyInactive
		}

		now := l.Now()
		pos, err := tx.GetPosition(posKey)
		switch {
		case errors.Is(err, vaulterr.ErrNotFound):
			pos = &models.Position{
				Address:              posKey,
				VaultAddress:         v.Address,
				Owner:                user,
				StrategyID:           p.StrategyID,
				RiskProfile:          p.RiskProfile,
				InitialDeposit:       p.Amount,
				CurrentValue:         p.Amount,
				TotalDeposits:        p.Amount,
				LastYieldCalculation: now,
				CreatedAt:            now,
				LastActivity:         now,
				IsActive:             true,
				AutoCompound:         p.AutoCompound,
			}
			if v.PositionCount, err = vaulterr.CheckedAdd(v.PositionCount, 1); err != nil {
				return err
			}
			if err := tx.CreatePosition(pos); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if !pos.IsActive {
				return vaulterr.ErrPositionInactive
			}
			if pos.StrategyID != p.StrategyID {
				return fmt.Errorf("position holds strategy %d, not %d: %w", pos.StrategyID, p.StrategyID, vaulterr.ErrInvalidStrategy)
			}
			if pos.TotalDeposits, err = vaulterr.CheckedAdd(pos.TotalDeposits, p.Amount); err != nil {
				return err
			}
			if pos.CurrentValue, err = vaulterr.CheckedAdd(pos.CurrentValue, p.Amount); err != nil {
				return err
			}
			pos.LastActivity = now
			if err := tx.SavePosition(pos); err != nil {
				return err
			}
		}

		if settlement, err = l.transferer.Transfer(ctx, tx, TransferRequest{
			From:      user,
			To:        v.CustodyAccount,
			Authority: user,
			Amount:    p.Amount,
		}); err != nil {
			return err
		}

		if v.TotalValueLocked, err = vaulterr.CheckedAdd(v.TotalValueLocked, p.Amount); err != nil {
			return err
		}
		if s.TotalValue, err = vaulterr.CheckedAdd(s.TotalValue, p.Amount); err != nil {
			return err
		}
		v.UpdatedAt = now
		s.UpdatedAt = now
		if err := tx.SaveStrategy(s); err != nil {
			return err
		}
		out = pos
		return tx.SaveVault(v)
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"user":        user,
		"amount":      p.Amount,
		"strategy_id": p.StrategyID,
		"value":       out.CurrentValue,
	}).Info("Deposit accepted")
	if settlement != nil {
		_ = l.Settle(ctx, settlement.Address)
	}
	return out, nil
}

type WithdrawParams struct {
	Amount        uint64
	ClosePosition bool
}

type WithdrawReceipt struct {
	Amount         uint64 `json:"amount"`
	Fee            uint64 `json:"fee"`
	NetAmount      uint64 `json:"net_amount"`
	RemainingValue uint64 `json:"remaining_value"`
	PositionClosed bool   `json:"position_closed"`
	// Set when the payout is sent on chain after the withdrawal commits.
	SettlementID     string `json:"settlement_id,omitempty"`
	SettlementStatus string `json:"settlement_status,omitempty"`
}

// Withdraw debits amount from the user's position and the vault TVL and
// pays out amount less the withdrawal fee. The fee stays in custody and is
// added to the vault's collected fees. Closing with a zero amount withdraws
// the whole position. An on-chain payout is sent only after the
// withdrawal committed; a failed send stays pending for SettlePending.
func (l *Ledger) Withdraw(ctx context.Context, user string, p WithdrawParams) (*WithdrawReceipt, error) {
	posKey, err := storage.PositionKey(l.vaultKey, user)
	if err != nil {
		return nil, err
	}

	var receipt *WithdrawReceipt
	err = l.store.Atomic(ctx, func(tx storage.Tx) error {
		v, err := LoadVault(tx, l.vaultKey)
		if err != nil {
			return err
		}
		if v.IsPaused {
			return vaulterr.ErrVaultPaused
		}
		pos, err := tx.GetPosition(posKey)
		if errors.Is(err, vaulterr.ErrNotFound) {
			return vaulterr.ErrPositionNotFound
		}
		if err != nil {
			return err
		}
		if !pos.IsActive {
			return vaulterr.ErrPositionInactive
		}
		if p.Amount == 0 {
			if !p.ClosePosition {
				return fmt.Errorf("zero amount: %w", vaulterr.ErrInvalidWithdrawalAmount)
			}
			p.Amount = pos.CurrentValue
		}
		if p.Amount > pos.CurrentValue {
			return fmt.Errorf("amount %d exceeds position value %d: %w", p.Amount, pos.CurrentValue, vaulterr.ErrInvalidWithdrawalAmount)
		}

		fee, err := MulBps(p.Amount, uint64(v.WithdrawalFeeBps))
		if err != nil {
			return err
		}
		net := p.Amount - fee

		now := l.Now()
		if pos.CurrentValue, err = vaulterr.CheckedSub(pos.CurrentValue, p.Amount); err != nil {
			return err
		}
		if pos.TotalWithdrawals, err = vaulterr.CheckedAdd(pos.TotalWithdrawals, p.Amount); err != nil {
			return err
		}
		pos.LastActivity = now
		if p.ClosePosition || pos.CurrentValue == 0 {
			pos.IsActive = false
		}

		if v.TotalValueLocked, err = vaulterr.CheckedSub(v.TotalValueLocked, p.Amount); err != nil {
			return err
		}
		if v.CollectedFees, err = vaulterr.CheckedAdd(v.CollectedFees, fee); err != nil {
			return err
		}
		v.UpdatedAt = now

		s, err := LoadStrategy(tx, v.Address, pos.StrategyID)
		if err != nil {
			return err
		}
		s.TotalValue = vaulterr.SaturatingSub(s.TotalValue, p.Amount)
		s.UpdatedAt = now

		if err := tx.SavePosition(pos); err != nil {
			return err
		}
		if err := tx.SaveStrategy(s); err != nil {
			return err
		}
		if err := tx.SaveVault(v); err != nil {
			return err
		}
		settlement, err := l.transferer.Transfer(ctx, tx, TransferRequest{
			From:      v.CustodyAccount,
			To:        user,
			Authority: v.CustodyAccount,
			Amount:    net,
		})
		if err != nil {
			return err
		}
		receipt = &WithdrawReceipt{
			Amount:         p.Amount,
			Fee:            fee,
			NetAmount:      net,
			RemainingValue: pos.CurrentValue,
			PositionClosed: !pos.IsActive,
		}
		if settlement != nil {
			receipt.SettlementID = settlement.Address
			receipt.SettlementStatus = settlement.Status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"user":      user,
		"amount":    receipt.Amount,
		"fee":       receipt.Fee,
		"remaining": receipt.RemainingValue,
		"closed":    receipt.PositionClosed,
	}).Info("Withdrawal completed")
	if receipt.SettlementID != "" {
		if err := l.Settle(ctx, receipt.SettlementID); err == nil {
			receipt.SettlementStatus = models.SettlementSettled
		}
	}
	return receipt, nil
}

// PnL is current value minus deposits plus withdrawals.
func PnL(p *models.Position) int64 {
	return int64(p.CurrentValue) - int64(p.TotalDeposits) + int64(p.TotalWithdrawals)
}

// YieldBps is the positive PnL in basis points of total deposits, else zero.
func YieldBps(p *models.Position) uint64 {
	if p.TotalDeposits == 0 {
		return 0
	}
	pnl := PnL(p)
	if pnl <= 0 {
		return 0
	}
	if uint64(pnl) > math.MaxUint64/MaxBps {
		return 0
	}
	return uint64(pnl) * MaxBps / p.TotalDeposits
}
