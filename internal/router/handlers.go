package router

import (
	"errors"
	"fmt"
	"math"

	"omnivault/internal/codec"
	"omnivault/internal/decision"
	"omnivault/internal/ledger"
	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

type decisionLog struct {
	decision.Decision
	strategyID uint64
}

// handleYieldUpdate stores the observation under (src, protocol) and folds
// it into the tracker of every active strategy.
func handleYieldUpdate(tx storage.Tx, v *models.VaultStore, src uint32, raw []byte, now int64) ([]decisionLog, error) {
	m, err := codec.DecodeYieldUpdate(raw)
	if err != nil {
		return nil, err
	}
	if _, err := ledger.PutYieldData(tx, ledger.UpdateYieldDataParams{
		ChainID:            src,
		ProtocolID:         m.ProtocolID,
		APYBps:             m.APYBps,
		TVL:                m.TVL,
		AvailableLiquidity: m.AvailableLiquidity,
		RiskScore:          m.RiskScore,
		VolatilityScore:    m.VolatilityScore,
		IsActive:           true,
	}, now); err != nil {
		return nil, err
	}

	strategies, err := tx.ListStrategies(v.Address)
	if err != nil {
		return nil, err
	}
	obs := models.ChainYield{
		ChainID:     src,
		APY:         uint64(m.APYBps),
		TVL:         m.TVL,
		RiskScore:   uint64(m.RiskScore),
		LastUpdated: now,
	}
	var switches []decisionLog
	for i := range strategies {
		s := &strategies[i]
		if !s.IsActive {
			continue
		}
		tr, err := ledger.LoadTracker(tx, v.Address, s)
		if err != nil {
			return nil, err
		}
		d := decision.ApplyYieldResponse(tr, obs, s.RiskProfile, now)
		if err := tx.SaveTracker(tr); err != nil {
			return nil, err
		}
		if d.Switched {
			switches = append(switches, decisionLog{Decision: d, strategyID: s.StrategyID})
		}
	}
	return switches, nil
}

func handleStrategyInstruction(tx storage.Tx, v *models.VaultStore, raw []byte, now int64) error {
	m, err := codec.DecodeStrategyInstruction(raw)
	if err != nil {
		return err
	}
	s, err := ledger.LoadStrategy(tx, v.Address, m.StrategyID)
	if err != nil {
		return err
	}
	switch m.InstructionType {
	case codec.InstructionAddAllocation, codec.InstructionUpdateAllocation:
		if m.MaxSlippageBps > ledger.MaxSlippageBps {
			return fmt.Errorf("max slippage %d: %w", m.MaxSlippageBps, vaulterr.ErrInvalidParameter)
		}
		if err := ledger.UpsertAllocation(s, m.TargetChainID, m.TargetAllocationBps, m.MinYieldBps); err != nil {
			return err
		}
		if m.MaxSlippageBps != 0 {
			s.MaxSlippageBps = m.MaxSlippageBps
		}
	case codec.InstructionPause:
		s.IsActive = false
	case codec.InstructionResume:
		s.IsActive = true
	default:
		return fmt.Errorf("strategy instruction %d: %w", m.InstructionType, vaulterr.ErrInvalidMessage)
	}
	s.UpdatedAt = now
	return tx.SaveStrategy(s)
}

func handleTokenMovement(tx storage.Tx, v *models.VaultStore, raw []byte, now int64) error {
	m, err := codec.DecodeTokenMovement(raw)
	if err != nil {
		return err
	}
	switch m.OperationType {
	case codec.OperationDeposit:
		if v.TotalValueLocked, err = vaulterr.CheckedAdd(v.TotalValueLocked, m.Amount); err != nil {
			return err
		}
	case codec.OperationWithdraw:
		if v.TotalValueLocked, err = vaulterr.CheckedSub(v.TotalValueLocked, m.Amount); err != nil {
			return err
		}
	case codec.OperationTransfer:
		return nil
	default:
		return fmt.Errorf("token operation %d: %w", m.OperationType, vaulterr.ErrInvalidMessage)
	}
	v.UpdatedAt = now
	return tx.SaveVault(v)
}

// handlePositionUpdate sets a position's value as reported by the remote
// chain and moves the vault and strategy totals by the same delta.
func handlePositionUpdate(tx storage.Tx, v *models.VaultStore, raw []byte, now int64) error {
	m, err := codec.DecodePositionUpdate(raw)
	if err != nil {
		return err
	}
	pos, err := tx.GetPosition(storage.AddressFromBytes(m.PositionID))
	if errors.Is(err, vaulterr.ErrNotFound) {
		return vaulterr.ErrPositionNotFound
	}
	if err != nil {
		return err
	}
	if pos.VaultAddress != v.Address {
		return vaulterr.ErrPositionNotFound
	}
	if !pos.IsActive {
		return vaulterr.ErrPositionInactive
	}
	s, err := ledger.LoadStrategy(tx, v.Address, pos.StrategyID)
	if err != nil {
		return err
	}

	if m.NewValue >= pos.CurrentValue {
		delta := m.NewValue - pos.CurrentValue
		if v.TotalValueLocked, err = vaulterr.CheckedAdd(v.TotalValueLocked, delta); err != nil {
			return err
		}
		if s.TotalValue, err = vaulterr.CheckedAdd(s.TotalValue, delta); err != nil {
			return err
		}
	} else {
		delta := pos.CurrentValue - m.NewValue
		if v.TotalValueLocked, err = vaulterr.CheckedSub(v.TotalValueLocked, delta); err != nil {
			return err
		}
		if s.TotalValue, err = vaulterr.CheckedSub(s.TotalValue, delta); err != nil {
			return err
		}
	}
	if pos.AccruedFees, err = vaulterr.CheckedAdd(pos.AccruedFees, m.FeesAccrued); err != nil {
		return err
	}
	pos.CurrentValue = m.NewValue
	pos.LastYieldCalculation = now
	v.UpdatedAt = now
	s.UpdatedAt = now

	if err := tx.SavePosition(pos); err != nil {
		return err
	}
	if err := tx.SaveStrategy(s); err != nil {
		return err
	}
	return tx.SaveVault(v)
}

// handleRebalanceInstruction records a completed remote move by shifting
// AmountToMove/TotalValue of the allocation from source to destination.
func handleRebalanceInstruction(tx storage.Tx, v *models.VaultStore, raw []byte, now int64) error {
	m, err := codec.DecodeRebalanceInstruction(raw)
	if err != nil {
		return err
	}
	s, err := ledger.LoadStrategy(tx, v.Address, m.StrategyID)
	if err != nil {
		return err
	}
	if !s.IsActive {
		return vaulterr.ErrStrategyInactive
	}
	if m.MaxSlippageBps > s.MaxSlippageBps {
		return fmt.Errorf("slippage %d above strategy limit %d: %w", m.MaxSlippageBps, s.MaxSlippageBps, vaulterr.ErrSlippageExceeded)
	}
	from := s.AllocationIndex(m.SourceChainID)
	to := s.AllocationIndex(m.DestinationChainID)
	if from < 0 || to < 0 {
		return fmt.Errorf("chains %d -> %d not allocated: %w", m.SourceChainID, m.DestinationChainID, vaulterr.ErrInvalidAllocation)
	}
	if from == to {
		return fmt.Errorf("source and destination are both chain %d: %w", m.SourceChainID, vaulterr.ErrInvalidParameter)
	}
	if m.AmountToMove > s.TotalValue {
		return fmt.Errorf("moving %d of %d: %w", m.AmountToMove, s.TotalValue, vaulterr.ErrInvalidParameter)
	}

	var shift uint64
	if m.AmountToMove > 0 {
		if m.AmountToMove > math.MaxUint64/ledger.MaxBps {
			return vaulterr.ErrArithmeticOverflow
		}
		shift = m.AmountToMove * ledger.MaxBps / s.TotalValue
	}
	src, err := vaulterr.CheckedSub(uint64(s.Allocations[from].CurrentBps), shift)
	if err != nil {
		return err
	}
	dst, err := vaulterr.CheckedAdd(uint64(s.Allocations[to].CurrentBps), shift)
	if err != nil {
		return err
	}
	if dst > ledger.MaxBps {
		return fmt.Errorf("destination share %d bps: %w", dst, vaulterr.ErrArithmeticOverflow)
	}
	s.Allocations[from].CurrentBps = uint16(src)
	s.Allocations[to].CurrentBps = uint16(dst)
	s.UpdatedAt = now
	v.LastRebalance = now
	v.UpdatedAt = now

	if err := tx.SaveStrategy(s); err != nil {
		return err
	}
	return tx.SaveVault(v)
}
