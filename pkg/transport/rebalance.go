package transport

import (
	"context"
	"fmt"
	"math"

	"omnivault/internal/codec"
	"omnivault/internal/ledger"
	"omnivault/internal/models"
)

// ExpectedImprovement is the APY gain in bps of moving from src to dst as
// last reported to tracker, or 0 when either chain is unknown or dst is not better.
func ExpectedImprovement(tracker *models.YieldTracker, src, dst uint32) uint16 {
	if tracker == nil {
		return 0
	}
	var srcAPY, dstAPY uint64
	var haveSrc, haveDst bool
	for _, y := range tracker.ChainYields {
		switch y.ChainID {
		case src:
			srcAPY, haveSrc = y.APY, true
		case dst:
			dstAPY, haveDst = y.APY, true
		}
	}
	if !haveSrc || !haveDst || dstAPY <= srcAPY {
		return 0
	}
	if diff := dstAPY - srcAPY; diff < math.MaxUint16 {
		return uint16(diff)
	}
	return math.MaxUint16
}

// PublishPlan sends one rebalance instruction per move to the chain the
// funds leave from. It stops at the first failed publish.
func (s *Sender) PublishPlan(ctx context.Context, plan *ledger.RebalancePlan, tracker *models.YieldTracker) ([]Envelope, error) {
	out := make([]Envelope, 0, len(plan.Moves))
	for _, mv := range plan.Moves {
		env, err := s.Send(ctx, mv.SourceChainID, codec.RebalanceInstruction{
			StrategyID:                  plan.StrategyID,
			SourceChainID:               mv.SourceChainID,
			DestinationChainID:          mv.DestinationChainID,
			AmountToMove:                mv.Amount,
			ExpectedYieldImprovementBps: ExpectedImprovement(tracker, mv.SourceChainID, mv.DestinationChainID),
			MaxSlippageBps:              plan.MaxSlippageBps,
		})
		if err != nil {
			return out, fmt.Errorf("publish move %d->%d: %w", mv.SourceChainID, mv.DestinationChainID, err)
		}
		out = append(out, env)
	}
	return out, nil
}
