// Package decision holds the pure routing rules: when a strategy drifts far
// enough to rebalance, which chain a risk profile prefers, and whether a
// fresh yield observation justifies switching the tracked best chain.
package decision

import (
	"omnivault/internal/models"
	"omnivault/internal/vaulterr"
)

const (
	ConservativeMaxRisk = 30
	ModerateMaxRisk     = 60
	ModerateRiskWeight  = 2

	// DefaultYieldValidity is how long, in seconds, a yield observation stays usable.
	DefaultYieldValidity int64 = 300
)

// NeedsRebalancing reports whether any allocation drifted at least the
// strategy threshold away from its target.
func NeedsRebalancing(s *models.Strategy) bool {
	for _, a := range s.Allocations {
		diff := a.TargetBps - a.CurrentBps
		if a.CurrentBps > a.TargetBps {
			diff = a.CurrentBps - a.TargetBps
		}
		if diff >= s.RebalanceThresholdBps {
			return true
		}
	}
	return false
}

// CanRebalance reports whether s is active and its cooldown has elapsed.
func CanRebalance(s *models.Strategy, now int64) bool {
	return s.IsActive && now >= s.LastRebalance+s.MinRebalanceInterval
}

func score(y models.ChainYield, profile models.RiskProfile) (uint64, bool) {
	switch profile {
	case models.Conservative:
		if y.RiskScore > ConservativeMaxRisk {
			return 0, false
		}
		return y.APY, true
	case models.Moderate:
		return vaulterr.SaturatingSub(y.APY, ModerateRiskWeight*y.RiskScore), true
	default:
		return y.APY, true
	}
}

// SelectBest picks the preferred chain for profile. Candidates are scanned
// in slice order and the first maximal one wins.
func SelectBest(yields []models.ChainYield, profile models.RiskProfile) (models.ChainYield, bool) {
	var (
		best      models.ChainYield
		bestScore uint64
		found     bool
	)
	for _, y := range yields {
		s, ok := score(y, profile)
		if !ok {
			continue
		}
		if !found || s > bestScore {
			best, bestScore, found = y, s, true
		}
	}
	return best, found
}

// IsUsable reports whether y is active and within its validity window.
func IsUsable(y *models.YieldData, now int64) bool {
	return y.IsActive && now <= y.LastUpdated+y.ValidityPeriod
}

// IsSuitable applies the risk and volatility caps of profile.
func IsSuitable(y *models.YieldData, profile models.RiskProfile) bool {
	switch profile {
	case models.Conservative:
		return y.RiskScore <= ConservativeMaxRisk && y.VolatilityScore <= ConservativeMaxRisk
	case models.Moderate:
		return y.RiskScore <= ModerateMaxRisk && y.VolatilityScore <= ModerateMaxRisk
	default:
		return true
	}
}

// RiskAdjustedYield is the APY less one basis point per risk point, floored at zero.
func RiskAdjustedYield(y *models.YieldData) uint32 {
	risk := uint32(y.RiskScore)
	if y.APYBps > risk {
		return y.APYBps - risk
	}
	return 0
}

func CanAccommodateDeposit(y *models.YieldData, amount uint64) bool {
	return y.IsActive &&
		amount >= y.MinDeposit &&
		amount <= y.MaxDeposit &&
		amount <= y.AvailableLiquidity
}

// Recommend returns the usable, suitable record with the highest
// risk-adjusted yield. Ties keep the earlier record.
func Recommend(yields []models.YieldData, profile models.RiskProfile, now int64) (models.YieldData, bool) {
	var (
		best     models.YieldData
		bestRisk uint32
		found    bool
	)
	for i := range yields {
		y := &yields[i]
		if !IsUsable(y, now) || !IsSuitable(y, profile) {
			continue
		}
		adj := RiskAdjustedYield(y)
		if !found || adj > bestRisk {
			best, bestRisk, found = *y, adj, true
		}
	}
	return best, found
}
