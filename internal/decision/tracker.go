package decision

import (
	"omnivault/internal/models"
	"omnivault/internal/vaulterr"
)

// Decision describes the outcome of folding one yield response into a tracker.
type Decision struct {
	Switched    bool
	FromChain   uint32
	ToChain     uint32
	FromAPY     uint64
	ToAPY       uint64
	Improvement uint64
	Selected    bool
}

// Merge replaces the tracker's record for obs.ChainID or appends a new one,
// keeping insertion order stable.
func Merge(t *models.YieldTracker, obs models.ChainYield) {
	for i := range t.ChainYields {
		if t.ChainYields[i].ChainID == obs.ChainID {
			t.ChainYields[i] = obs
			return
		}
	}
	t.ChainYields = append(t.ChainYields, obs)
}

// Fresh returns the observations no older than DefaultYieldValidity at now,
// in tracker order.
func Fresh(yields []models.ChainYield, now int64) []models.ChainYield {
	fresh := make([]models.ChainYield, 0, len(yields))
	for _, y := range yields {
		if now <= y.LastUpdated+DefaultYieldValidity {
			fresh = append(fresh, y)
		}
	}
	return fresh
}

// ApplyYieldResponse merges obs into t and switches the tracked best chain
// when the profile's choice differs from it by more than the threshold.
// The current APY is only refreshed on a switch.
func ApplyYieldResponse(t *models.YieldTracker, obs models.ChainYield, profile models.RiskProfile, now int64) Decision {
	Merge(t, obs)
	t.LastUpdate = now

	d := Decision{FromChain: t.CurrentBestChain, FromAPY: t.CurrentAPY}
	best, ok := SelectBest(Fresh(t.ChainYields, now), profile)
	if !ok {
		return d
	}
	d.Selected = true
	d.ToChain = best.ChainID
	d.ToAPY = best.APY
	d.Improvement = vaulterr.SaturatingSub(best.APY, t.CurrentAPY)

	if best.ChainID != t.CurrentBestChain && d.Improvement > t.RebalanceThreshold {
		t.CurrentBestChain = best.ChainID
		t.CurrentAPY = best.APY
		t.LastRebalance = now
		d.Switched = true
	}
	return d
}
