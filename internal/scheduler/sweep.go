// Package scheduler runs the periodic rebalance sweep.
package scheduler

import (
	"context"

	log "github.com/sirupsen/logrus"

	"omnivault/internal/decision"
	"omnivault/internal/ledger"
	"omnivault/internal/metrics"
	"omnivault/internal/router"
	"omnivault/pkg/transport"
)

// Report summarizes one sweep.
type Report struct {
	Checked    int
	Rebalanced int
	Failed     int
	Stale      int
	// Settlement retries.
	Settled      int
	SettleFailed int
}

type Sweeper struct {
	ledger    *ledger.Ledger
	authority string
	sender    *transport.Sender
	metrics   *metrics.Recorder
	log       *log.Entry
}

// NewSweeper rebalances as authority, which must be the vault admin.
// sender and m may be nil.
func NewSweeper(l *ledger.Ledger, authority string, sender *transport.Sender, m *metrics.Recorder) *Sweeper {
	return &Sweeper{
		ledger:    l,
		authority: authority,
		sender:    sender,
		metrics:   m,
		log:       log.WithField("component", "scheduler"),
	}
}

// Sweep executes a non-forced rebalance for every active strategy that has
// drifted past its threshold and left its cooldown, retries pending
// settlements and reports active yield records that went stale.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var report Report
	strategies, err := s.ledger.Strategies(ctx)
	if err != nil {
		return report, err
	}
	now := s.ledger.Now()
	for i := range strategies {
		st := &strategies[i]
		report.Checked++
		if !decision.CanRebalance(st, now) || !decision.NeedsRebalancing(st) {
			continue
		}
		entry := s.log.WithField("strategy_id", st.StrategyID)
		plan, err := s.ledger.ExecuteRebalance(ctx, s.authority, st.StrategyID, false)
		s.metrics.Rebalance("scheduler", err)
		if err != nil {
			report.Failed++
			entry.WithError(err).Error("Scheduled rebalance failed")
			continue
		}
		report.Rebalanced++
		entry.WithField("moves", len(plan.Moves)).Info("Scheduled rebalance executed")

		if s.sender == nil || len(plan.Moves) == 0 {
			continue
		}
		tracker, err := s.ledger.Tracker(ctx, st.StrategyID)
		if err != nil {
			entry.WithError(err).Warn("Failed to load tracker, publishing moves without it")
			tracker = nil
		}
		if _, err := s.sender.PublishPlan(ctx, plan, tracker); err != nil {
			entry.WithError(err).Error("Failed to publish rebalance moves")
		}
	}

	settled, err := s.ledger.SettlePending(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to retry pending settlements")
	}
	report.Settled, report.SettleFailed = settled.Settled, settled.Failed

	yields, err := s.ledger.ListYieldData(ctx)
	if err != nil {
		return report, err
	}
	for i := range yields {
		y := &yields[i]
		if !y.IsActive || decision.IsUsable(y, now) {
			continue
		}
		report.Stale++
		s.log.WithFields(log.Fields{
			"chain":        router.ChainLabel(y.ChainID),
			"protocol":     y.ProtocolID,
			"last_updated": y.LastUpdated,
			"age":          now - y.LastUpdated,
		}).Warn("Yield data is stale")
	}

	s.log.WithFields(log.Fields{
		"checked":    report.Checked,
		"rebalanced": report.Rebalanced,
		"failed":     report.Failed,
		"stale":      report.Stale,
		"settled":    report.Settled,
	}).Info("Rebalance sweep finished")
	return report, nil
}
