package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"omnivault/internal/decision"
	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

// ValidateAllocations checks the count, total target and chain uniqueness
// of an allocation set.
func ValidateAllocations(allocs []models.ChainAllocation) error {
	if len(allocs) > MaxChainsPerStrategy {
		return fmt.Errorf("%d chains: %w", len(allocs), vaulterr.ErrInvalidAllocation)
	}
	var total uint64
	seen := make(map[uint32]struct{}, len(allocs))
	for _, a := range allocs {
		if _, dup := seen[a.ChainID]; dup {
			return fmt.Errorf("chain %d listed twice: %w", a.ChainID, vaulterr.ErrInvalidAllocation)
		}
		seen[a.ChainID] = struct{}{}
		total += uint64(a.TargetBps)
	}
	if total > MaxBps {
		return fmt.Errorf("targets sum to %d bps: %w", total, vaulterr.ErrInvalidAllocation)
	}
	return nil
}

func validateThreshold(bps uint16) error {
	if uint64(bps) > MaxBps {
		return fmt.Errorf("rebalance threshold %d: %w", bps, vaulterr.ErrInvalidParameter)
	}
	return nil
}

func validateSlippage(bps uint16) error {
	if bps > MaxSlippageBps {
		return fmt.Errorf("max slippage %d: %w", bps, vaulterr.ErrInvalidParameter)
	}
	return nil
}

func validateInterval(seconds int64) error {
	if seconds < MinRebalanceInterval {
		return fmt.Errorf("rebalance interval %d: %w", seconds, vaulterr.ErrInvalidParameter)
	}
	return nil
}

// UpsertAllocation sets the target and minimum yield of one chain,
// appending it when new. The current share of an existing chain is kept.
// s is left untouched when the resulting set is invalid.
func UpsertAllocation(s *models.Strategy, chainID uint32, targetBps, minYieldBps uint16) error {
	next := append([]models.ChainAllocation{}, s.Allocations...)
	if i := s.AllocationIndex(chainID); i >= 0 {
		next[i].TargetBps = targetBps
		next[i].MinYieldBps = minYieldBps
	} else {
		next = append(next, models.ChainAllocation{ChainID: chainID, TargetBps: targetBps, MinYieldBps: minYieldBps})
	}
	if err := ValidateAllocations(next); err != nil {
		return err
	}
	s.Allocations = next
	return nil
}

type CreateStrategyParams struct {
	Name                  string
	RiskProfile           models.RiskProfile
	RebalanceThresholdBps uint16
	MaxSlippageBps        uint16
	MinRebalanceInterval  int64
	Allocations           []models.ChainAllocation
}

// CreateStrategy registers the next strategy of the vault and its yield
// tracker. Zero threshold, slippage or interval take the defaults.
func (l *Ledger) CreateStrategy(ctx context.Context, authority string, p CreateStrategyParams) (*models.Strategy, error) {
	if !p.RiskProfile.Valid() {
		return nil, vaulterr.ErrInvalidRiskProfile
	}
	if p.RebalanceThresholdBps == 0 {
		p.RebalanceThresholdBps = DefaultRebalanceThresholdBps
	}
	if p.MaxSlippageBps == 0 {
		p.MaxSlippageBps = DefaultMaxSlippageBps
	}
	if p.MinRebalanceInterval == 0 {
		p.MinRebalanceInterval = DefaultMinRebalanceInterval
	}
	if err := validateThreshold(p.RebalanceThresholdBps); err != nil {
		return nil, err
	}
	if err := validateSlippage(p.MaxSlippageBps); err != nil {
		return nil, err
	}
	if err := validateInterval(p.MinRebalanceInterval); err != nil {
		return nil, err
	}

	var out *models.Strategy
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		v, err := l.loadAdminVault(tx, authority)
		if err != nil {
			return err
		}
		if v.StrategyCount >= MaxStrategiesPerVault {
			return vaulterr.ErrMaxStrategiesReached
		}
		if err := ValidateAllocations(p.Allocations); err != nil {
			return err
		}
		key, err := storage.StrategyKey(v.Address, v.StrategyCount)
		if err != nil {
			return err
		}
		now := l.Now()
		s := &models.Strategy{
			Address:               key,
			VaultAddress:          v.Address,
			StrategyID:            v.StrategyCount,
			Name:                  p.Name,
			Admin:                 authority,
			RiskProfile:           p.RiskProfile,
			IsActive:              true,
			RebalanceThresholdBps: p.RebalanceThresholdBps,
			MaxSlippageBps:        p.MaxSlippageBps,
			MinRebalanceInterval:  p.MinRebalanceInterval,
			LastRebalance:         now,
			Allocations:           append([]models.ChainAllocation{}, p.Allocations...),
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := tx.CreateStrategy(s); err != nil {
			return err
		}
		trackerKey, err := storage.TrackerKey(v.Address, key)
		if err != nil {
			return err
		}
		if err := tx.CreateTracker(&models.YieldTracker{
			Address:            trackerKey,
			VaultAddress:       v.Address,
			StrategyID:         s.StrategyID,
			RebalanceThreshold: uint64(s.RebalanceThresholdBps),
			LastRebalance:      now,
			LastUpdate:         now,
		}); err != nil {
			return err
		}
		v.StrategyCount++
		v.UpdatedAt = now
		out = s
		return tx.SaveVault(v)
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"strategy_id":  out.StrategyID,
		"risk_profile": out.RiskProfile.String(),
		"chains":       len(out.Allocations),
	}).Info("Strategy created")
	return out, nil
}

// UpdateStrategyParams carries optional fields; nil means unchanged.
type UpdateStrategyParams struct {
	StrategyID            uint64
	Name                  *string
	RiskProfile           *models.RiskProfile
	RebalanceThresholdBps *uint16
	MaxSlippageBps        *uint16
	MinRebalanceInterval  *int64
	Allocations           *[]models.ChainAllocation
	IsActive              *bool
}

func (p UpdateStrategyParams) validate() error {
	if p.RiskProfile != nil && !p.RiskProfile.Valid() {
		return vaulterr.ErrInvalidRiskProfile
	}
	if p.RebalanceThresholdBps != nil {
		if err := validateThreshold(*p.RebalanceThresholdBps); err != nil {
			return err
		}
	}
	if p.MaxSlippageBps != nil {
		if err := validateSlippage(*p.MaxSlippageBps); err != nil {
			return err
		}
	}
	if p.MinRebalanceInterval != nil {
		if err := validateInterval(*p.MinRebalanceInterval); err != nil {
			return err
		}
	}
	if p.Allocations != nil {
		if err := ValidateAllocations(*p.Allocations); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStrategy applies the provided fields after validating all of them.
func (l *Ledger) UpdateStrategy(ctx context.Context, authority string, p UpdateStrategyParams) (*models.Strategy, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	var out *models.Strategy
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		v, err := l.loadAdminVault(tx, authority)
		if err != nil {
			return err
		}
		s, err := LoadStrategy(tx, v.Address, p.StrategyID)
		if err != nil {
			return err
		}
		if p.Name != nil {
			s.Name = *p.Name
		}
		if p.RiskProfile != nil {
			s.RiskProfile = *p.RiskProfile
		}
		if p.RebalanceThresholdBps != nil {
			s.RebalanceThresholdBps = *p.RebalanceThresholdBps
		}
		if p.MaxSlippageBps != nil {
			s.MaxSlippageBps = *p.MaxSlippageBps
		}
		if p.MinRebalanceInterval != nil {
			s.MinRebalanceInterval = *p.MinRebalanceInterval
		}
		if p.Allocations != nil {
			s.Allocations = append([]models.ChainAllocation{}, (*p.Allocations)...)
		}
		if p.IsActive != nil {
			s.IsActive = *p.IsActive
		}
		s.UpdatedAt = l.Now()
		if err := tx.SaveStrategy(s); err != nil {
			return err
		}
		if p.RebalanceThresholdBps != nil {
			tr, err := LoadTracker(tx, v.Address, s)
			if err != nil {
				return err
			}
			tr.RebalanceThreshold = uint64(s.RebalanceThresholdBps)
			if err := tx.SaveTracker(tr); err != nil {
				return err
			}
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"strategy_id": out.StrategyID,
		"active":      out.IsActive,
	}).Info("Strategy updated")
	return out, nil
}

// Move shifts Bps of a strategy's value from one chain to another.
type Move struct {
	SourceChainID      uint32 `json:"source_chain_id"`
	DestinationChainID uint32 `json:"destination_chain_id"`
	Bps                uint16 `json:"bps"`
	Amount             uint64 `json:"amount"`
}

type RebalancePlan struct {
	StrategyID     uint64 `json:"strategy_id"`
	MaxSlippageBps uint16 `json:"max_slippage_bps"`
	Moves          []Move `json:"moves"`
	ExecutedAt     int64  `json:"executed_at"`
}

// PlanMoves pairs over-allocated chains with under-allocated ones in
// allocation order.
func PlanMoves(s *models.Strategy) ([]Move, error) {
	type gap struct {
		chain uint32
		bps   uint16
	}
	var over, under []gap
	for _, a := range s.Allocations {
		switch {
		case a.CurrentBps > a.TargetBps:
			over = append(over, gap{a.ChainID, a.CurrentBps - a.TargetBps})
		case a.TargetBps > a.CurrentBps:
			under = append(under, gap{a.ChainID, a.TargetBps - a.CurrentBps})
		}
	}
	var moves []Move
	i, j := 0, 0
	for i < len(over) && j < len(under) {
		bps := over[i].bps
		if under[j].bps < bps {
			bps = under[j].bps
		}
		amount, err := MulBps(s.TotalValue, uint64(bps))
		if err != nil {
			return nil, err
		}
		moves = append(moves, Move{
			SourceChainID:      over[i].chain,
			DestinationChainID: under[j].chain,
			Bps:                bps,
			Amount:             amount,
		})
		over[i].bps -= bps
		under[j].bps -= bps
		if over[i].bps == 0 {
			i++
		}
		if under[j].bps == 0 {
			j++
		}
	}
	return moves, nil
}

// ExecuteRebalance aligns every allocation of a strategy with its target
// and returns the moves that realize it. Without force the strategy must be
// out of its cooldown and drifted past its threshold.
func (l *Ledger) ExecuteRebalance(ctx context.Context, authority string, strategyID uint64, force bool) (*RebalancePlan, error) {
	var plan *RebalancePlan
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		v, err := l.loadAdminVault(tx, authority)
		if err != nil {
			return err
		}
		s, err := LoadStrategy(tx, v.Address, strategyID)
		if err != nil {
			return err
		}
		if !s.IsActive {
			return vaulterr.ErrStrategyInactive
		}
		now := l.Now()
		if !force && (!decision.CanRebalance(s, now) || !decision.NeedsRebalancing(s)) {
			return vaulterr.ErrRebalanceNotNeeded
		}
		moves, err := PlanMoves(s)
		if err != nil {
			return err
		}
		for i := range s.Allocations {
			s.Allocations[i].CurrentBps = s.Allocations[i].TargetBps
		}
		s.LastRebalance = now
		s.UpdatedAt = now
		v.LastRebalance = now
		v.UpdatedAt = now
		if err := tx.SaveStrategy(s); err != nil {
			return err
		}
		if err := tx.SaveVault(v); err != nil {
			return err
		}
		plan = &RebalancePlan{
			StrategyID:     s.StrategyID,
			MaxSlippageBps: s.MaxSlippageBps,
			Moves:          moves,
			ExecutedAt:     now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"strategy_id": strategyID,
		"moves":       len(plan.Moves),
		"forced":      force,
	}).Info("Rebalance executed")
	return plan, nil
}
