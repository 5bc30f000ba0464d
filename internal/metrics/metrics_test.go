package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.Message("30101", "yield_update", OutcomeAccepted)
	r.Message("30101", "yield_update", OutcomeAccepted)
	r.Message("30110", "token_movement", OutcomeRejected)
	r.GateVerdict("30101", "rate_limited")
	r.Rebalance("scheduled", nil)
	r.Rebalance("scheduled", errors.New("boom"))
	r.LedgerOp("deposit", nil)
	r.BestChainSwitch("30110")
	r.ObserveHandling("yield_update", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.messages.WithLabelValues("30101", "yield_update", OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messages.WithLabelValues("30110", "token_movement", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.gate.WithLabelValues("30101", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rebalances.WithLabelValues("scheduled", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rebalances.WithLabelValues("scheduled", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ledgerOps.WithLabelValues("deposit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.bestSwitches.WithLabelValues("30110")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.handling))

	t.Run("Duplicate Registration", func(t *testing.T) {
		_, err := New(reg)
		assert.Error(t, err)
	})
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Message("1", "yield_update", OutcomeFailed)
		r.GateVerdict("1", "untrusted")
		r.ObserveHandling("yield_update", time.Second)
		r.Rebalance("manual", nil)
		r.BestChainSwitch("1")
		r.LedgerOp("withdraw", nil)
	})
}
