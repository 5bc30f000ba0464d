// Package metrics exposes the vault's Prometheus collectors. A nil
// *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "omnivault"

// Message outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Recorder struct {
	messages     *prometheus.CounterVec
	gate         *prometheus.CounterVec
	handling     *prometheus.HistogramVec
	rebalances   *prometheus.CounterVec
	bestSwitches *prometheus.CounterVec
	ledgerOps    *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound cross-chain messages by source chain, type and outcome.",
		}, []string{"src_chain", "type", "outcome"}),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_gate_verdicts_total",
			Help:      "Peer gate verdicts by source chain.",
		}, []string{"src_chain", "verdict"}),
		handling: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_handling_seconds",
			Help:      "Time spent dispatching an accepted message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		rebalances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rebalances_total",
			Help:      "Rebalance executions by trigger and result.",
		}, []string{"trigger", "result"}),
		bestSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_chain_switches_total",
			Help:      "Tracked best chain changes by destination chain.",
		}, []string{"to_chain"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by name and result.",
		}, []string{"operation", "result"}),
	}
	for _, c := range []prometheus.Collector{r.messages, r.gate, r.handling, r.rebalances, r.bestSwitches, r.ledgerOps} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (r *Recorder) Message(srcChain, msgType, outcome string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(srcChain, msgType, outcome).Inc()
}

func (r *Recorder) GateVerdict(srcChain, verdict string) {
	if r == nil {
		return
	}
	r.gate.WithLabelValues(srcChain, verdict).Inc()
}

func (r *Recorder) ObserveHandling(msgType string, d time.Duration) {
	if r == nil {
		return
	}
	r.handling.WithLabelValues(msgType).Observe(d.Seconds())
}

// Rebalance counts one rebalance attempt; trigger is "api", "scheduler" or "message".
func (r *Recorder) Rebalance(trigger string, err error) {
	if r == nil {
		return
	}
	r.rebalances.WithLabelValues(trigger, result(err)).Inc()
}

func (r *Recorder) BestChainSwitch(toChain string) {
	if r == nil {
		return
	}
	r.bestSwitches.WithLabelValues(toChain).Inc()
}

func (r *Recorder) LedgerOp(operation string, err error) {
	if r == nil {
		return
	}
	r.ledgerOps.WithLabelValues(operation, result(err)).Inc()
}
