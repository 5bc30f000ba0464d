package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnivault/internal/ledger"
	"omnivault/internal/metrics"
	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/storage/memstore"
	"omnivault/pkg/transport"
)

type recordingPublisher struct {
	sent []transport.Envelope
}

func (p *recordingPublisher) Publish(ctx context.Context, queue string, message interface{}) error {
	p.sent = append(p.sent, message.(transport.Envelope))
	return nil
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	admin := solana.NewWallet().PublicKey().String()

	l, err := ledger.New(memstore.New(), nil, ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = l.InitVault(ctx, admin, ledger.InitVaultParams{
		MinDeposit: ledger.MinDepositAmount,
		MaxDeposit: ledger.MaxDepositAmount,
	})
	require.NoError(t, err)

	drifted := []models.ChainAllocation{
		{ChainID: models.EthereumMainnetEID, TargetBps: 5000, CurrentBps: 8000},
		{ChainID: models.ArbitrumMainnetEID, TargetBps: 5000, CurrentBps: 2000},
	}
	balanced := []models.ChainAllocation{
		{ChainID: models.EthereumMainnetEID, TargetBps: 5000, CurrentBps: 5000},
		{ChainID: models.PolygonMainnetEID, TargetBps: 5000, CurrentBps: 4900},
	}
	for _, allocs := range [][]models.ChainAllocation{drifted, balanced, drifted} {
		_, err = l.CreateStrategy(ctx, admin, ledger.CreateStrategyParams{Name: "s", RiskProfile: models.Moderate, Allocations: allocs})
		require.NoError(t, err)
	}
	inactive := false
	_, err = l.UpdateStrategy(ctx, admin, ledger.UpdateStrategyParams{StrategyID: 2, IsActive: &inactive})
	require.NoError(t, err)

	_, err = l.UpdateYieldData(ctx, admin, ledger.UpdateYieldDataParams{ChainID: models.EthereumMainnetEID, APYBps: 500, IsActive: true})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rec, err := metrics.New(reg)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	sender := transport.NewSender(pub, "out", models.SolanaMainnetEID, [32]byte{1})
	sweeper := NewSweeper(l, admin, sender, rec)

	t.Run("Within Cooldown", func(t *testing.T) {
		report, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, Report{Checked: 3}, report)
	})

	now = now.Add(time.Duration(ledger.DefaultMinRebalanceInterval) * time.Second)

	t.Run("Rebalances Drifted Strategy", func(t *testing.T) {
		report, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, Report{Checked: 3, Rebalanced: 1, Stale: 1}, report)

		s, err := l.Strategy(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, now.Unix(), s.LastRebalance)
		for _, a := range s.Allocations {
			assert.Equal(t, a.TargetBps, a.CurrentBps)
		}

		// zero total value plans a zero amount move
		require.Len(t, pub.sent, 1)
		assert.Equal(t, models.EthereumMainnetEID, pub.sent[0].DstChain)
	})

	t.Run("Nothing Left To Do", func(t *testing.T) {
		now = now.Add(time.Duration(ledger.DefaultMinRebalanceInterval) * time.Second)
		report, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, Report{Checked: 3, Stale: 1}, report)
	})

	t.Run("Wrong Authority", func(t *testing.T) {
		_, err := l.UpdateStrategy(ctx, admin, ledger.UpdateStrategyParams{StrategyID: 0, Allocations: &drifted})
		require.NoError(t, err)
		now = now.Add(time.Duration(ledger.DefaultMinRebalanceInterval) * time.Second)

		report, err := NewSweeper(l, solana.NewWallet().PublicKey().String(), nil, rec).Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
	})

	expected := `
# HELP omnivault_rebalances_total Rebalance executions by trigger and result.
# TYPE omnivault_rebalances_total counter
omnivault_rebalances_total{result="error",trigger="scheduler"} 1
omnivault_rebalances_total{result="ok",trigger="scheduler"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "omnivault_rebalances_total"))
}

type flakySender struct {
	vault solana.PublicKey
	fail  bool
	sent  int
}

func (f *flakySender) CanSign(owner solana.PublicKey) bool {
	return owner == f.vault
}

func (f *flakySender) SendTokens(ctx context.Context, owner, recipient solana.PublicKey, amount uint64) (solana.Signature, error) {
	if f.fail {
		return solana.Signature{}, errors.New("node is behind")
	}
	f.sent++
	return solana.Signature{2}, nil
}

func TestSweepRetriesSettlements(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	admin := solana.NewWallet().PublicKey().String()
	user := solana.NewWallet().PublicKey().String()

	sender := &flakySender{fail: true}
	l, err := ledger.New(memstore.New(), ledger.ChainTransferer{Sender: sender}, ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	sender.vault = solana.MustPublicKeyFromBase58(l.VaultKey())

	_, err = l.InitVault(ctx, admin, ledger.InitVaultParams{MinDeposit: ledger.MinDepositAmount, MaxDeposit: ledger.MaxDepositAmount})
	require.NoError(t, err)
	_, err = l.CreateStrategy(ctx, admin, ledger.CreateStrategyParams{})
	require.NoError(t, err)
	_, err = l.Credit(ctx, admin, user, 2*ledger.MinDepositAmount)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, user, ledger.DepositParams{Amount: 2 * ledger.MinDepositAmount})
	require.NoError(t, err)

	receipt, err := l.Withdraw(ctx, user, ledger.WithdrawParams{Amount: ledger.MinDepositAmount})
	require.NoError(t, err)
	assert.Equal(t, models.SettlementPending, receipt.SettlementStatus)
	assert.Zero(t, sender.sent)

	sweeper := NewSweeper(l, admin, nil, nil)

	t.Run("Send Still Failing", func(t *testing.T) {
		report, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.SettleFailed)
		assert.Zero(t, report.Settled)
	})

	t.Run("Send Recovers", func(t *testing.T) {
		sender.fail = false
		report, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Settled)
		assert.Equal(t, 1, sender.sent)

		st, err := l.Settlement(ctx, receipt.SettlementID)
		require.NoError(t, err)
		assert.Equal(t, models.SettlementSettled, st.Status)
	})

	t.Run("Nothing Pending", func(t *testing.T) {
		report, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Settled+report.SettleFailed)
		assert.Equal(t, 1, sender.sent)
	})
}

func TestSweepLogsMissingTracker(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	admin := solana.NewWallet().PublicKey().String()
	store := memstore.New()

	l, err := ledger.New(store, nil, ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = l.InitVault(ctx, admin, ledger.InitVaultParams{MinDeposit: ledger.MinDepositAmount, MaxDeposit: ledger.MaxDepositAmount})
	require.NoError(t, err)

	key, err := storage.StrategyKey(l.VaultKey(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Atomic(ctx, func(tx storage.Tx) error {
		return tx.CreateStrategy(&models.Strategy{
			Address:               key,
			VaultAddress:          l.VaultKey(),
			IsActive:              true,
			RebalanceThresholdBps: ledger.DefaultRebalanceThresholdBps,
			MinRebalanceInterval:  ledger.DefaultMinRebalanceInterval,
			Allocations: []models.ChainAllocation{
				{ChainID: models.EthereumMainnetEID, TargetBps: 5000, CurrentBps: 8000},
				{ChainID: models.ArbitrumMainnetEID, TargetBps: 5000, CurrentBps: 2000},
			},
		})
	}))

	hook := logtest.NewGlobal()
	defer hook.Reset()

	pub := &recordingPublisher{}
	sender := transport.NewSender(pub, "out", models.SolanaMainnetEID, [32]byte{1})
	report, err := NewSweeper(l, admin, sender, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rebalanced)
	assert.Len(t, pub.sent, 1)

	var warned *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to load tracker, publishing moves without it" {
			warned = e
		}
	}
	require.NotNil(t, warned)
	assert.Equal(t, logrus.WarnLevel, warned.Level)
	assert.Error(t, warned.Data[logrus.ErrorKey].(error))
	assert.Equal(t, uint64(0), warned.Data["strategy_id"])
}
