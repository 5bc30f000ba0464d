package router

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnivault/internal/codec"
	"omnivault/internal/ledger"
	"omnivault/internal/metrics"
	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/storage/memstore"
	"omnivault/internal/vaulterr"
)

var remotePeer = [32]byte{0: 0xde, 1: 0xad, 31: 0x01}

type fixture struct {
	ctx    context.Context
	now    time.Time
	ledger *ledger.Ledger
	router *Router
	reg    *prometheus.Registry
	admin  string
	nonce  uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		now:   time.Unix(1_700_000_000, 0),
		reg:   prometheus.NewRegistry(),
		admin: solana.NewWallet().PublicKey().String(),
	}
	l, err := ledger.New(memstore.New(), nil, ledger.WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.ledger = l

	rec, err := metrics.New(f.reg)
	require.NoError(t, err)
	f.router = New(l, WithMetrics(rec))

	_, err = l.InitVault(f.ctx, f.admin, ledger.InitVaultParams{
		MinDeposit:       ledger.MinDepositAmount,
		MaxDeposit:       ledger.MaxDepositAmount,
		WithdrawalFeeBps: ledger.DefaultWithdrawalFeeBps,
	})
	require.NoError(t, err)
	_, err = l.CreateStrategy(f.ctx, f.admin, ledger.CreateStrategyParams{
		Name:        "core",
		RiskProfile: models.Moderate,
		Allocations: []models.ChainAllocation{
			{ChainID: models.EthereumMainnetEID, TargetBps: 6000},
			{ChainID: models.ArbitrumMainnetEID, TargetBps: 4000},
		},
	})
	require.NoError(t, err)
	for _, chain := range []uint32{models.EthereumMainnetEID, models.ArbitrumMainnetEID} {
		_, err = l.SetPeer(f.ctx, f.admin, ledger.SetPeerParams{ChainID: chain, PeerAddress: remotePeer, IsTrusted: true})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) send(t *testing.T, src uint32, m codec.Message) error {
	t.Helper()
	raw, err := codec.EncodeMessage(m)
	require.NoError(t, err)
	return f.sendRaw(src, raw)
}

func (f *fixture) sendRaw(src uint32, raw []byte) error {
	f.nonce++
	return f.router.Receive(f.ctx, InboundMessage{
		SrcChain: src,
		Sender:   remotePeer,
		Nonce:    f.nonce,
		Payload:  raw,
	})
}

func (f *fixture) fund(t *testing.T, amount uint64) string {
	t.Helper()
	user := solana.NewWallet().PublicKey().String()
	_, err := f.ledger.Credit(f.ctx, f.admin, user, amount)
	require.NoError(t, err)
	_, err = f.ledger.Deposit(f.ctx, user, ledger.DepositParams{Amount: amount, RiskProfile: models.Moderate})
	require.NoError(t, err)
	return user
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	vault := f.ledger.VaultKey()
	peer, err := storage.PeerKey(vault, models.EthereumMainnetEID)
	require.NoError(t, err)

	t.Run("Yield Update", func(t *testing.T) {
		protocol := [32]byte{7}
		raw, err := codec.EncodeMessage(codec.YieldUpdate{ProtocolID: protocol, APYBps: 500})
		require.NoError(t, err)
		acc, err := f.router.Resolve(models.EthereumMainnetEID, raw)
		require.NoError(t, err)
		want, err := storage.YieldDataKey(models.EthereumMainnetEID, protocol)
		require.NoError(t, err)
		assert.Equal(t, Accounts{Vault: vault, Peer: peer, YieldData: want}, acc)
	})

	t.Run("Strategy Keyed", func(t *testing.T) {
		want, err := storage.StrategyKey(vault, 3)
		require.NoError(t, err)
		for _, m := range []codec.Message{
			codec.StrategyInstruction{StrategyID: 3, InstructionType: codec.InstructionPause},
			codec.RebalanceInstruction{StrategyID: 3},
		} {
			raw, err := codec.EncodeMessage(m)
			require.NoError(t, err)
			acc, err := f.router.Resolve(models.EthereumMainnetEID, raw)
			require.NoError(t, err)
			assert.Equal(t, want, acc.Strategy, m.Type().String())
		}
	})

	t.Run("Position And Token Accounts", func(t *testing.T) {
		id := solana.NewWallet().PublicKey()
		raw, err := codec.EncodeMessage(codec.PositionUpdate{PositionID: id})
		require.NoError(t, err)
		acc, err := f.router.Resolve(models.EthereumMainnetEID, raw)
		require.NoError(t, err)
		assert.Equal(t, id.String(), acc.Position)

		token := solana.NewWallet().PublicKey()
		recipient := solana.NewWallet().PublicKey()
		raw, err = codec.EncodeMessage(codec.TokenMovement{TokenAddress: token, Recipient: recipient, OperationType: codec.OperationTransfer})
		require.NoError(t, err)
		acc, err = f.router.Resolve(models.EthereumMainnetEID, raw)
		require.NoError(t, err)
		assert.Equal(t, token.String(), acc.Token)
		assert.Equal(t, recipient.String(), acc.Recipient)
	})

	t.Run("Undecodable Payload Keeps Base Keys", func(t *testing.T) {
		for _, raw := range [][]byte{nil, {byte(codec.TypeYieldUpdate), 0, 0}, codec.Encode(codec.TypeStrategyInstruction, []byte{1, 2})} {
			acc, err := f.router.Resolve(models.EthereumMainnetEID, raw)
			require.NoError(t, err)
			assert.Equal(t, Accounts{Vault: vault, Peer: peer}, acc)
		}
	})
}

func TestReceiveGate(t *testing.T) {
	update := codec.YieldUpdate{APYBps: 100}

	t.Run("Unknown Peer", func(t *testing.T) {
		f := newFixture(t)
		err := f.send(t, models.PolygonMainnetEID, update)
		assert.ErrorIs(t, err, vaulterr.ErrPeerNotTrusted)
	})

	t.Run("Sender Mismatch", func(t *testing.T) {
		f := newFixture(t)
		raw, err := codec.EncodeMessage(update)
		require.NoError(t, err)
		err = f.router.Receive(f.ctx, InboundMessage{SrcChain: models.EthereumMainnetEID, Sender: [32]byte{1}, Payload: raw})
		assert.ErrorIs(t, err, vaulterr.ErrPeerNotTrusted)
	})

	t.Run("Untrusted Peer", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.SetPeer(f.ctx, f.admin, ledger.SetPeerParams{ChainID: models.EthereumMainnetEID, PeerAddress: remotePeer})
		require.NoError(t, err)
		assert.ErrorIs(t, f.send(t, models.EthereumMainnetEID, update), vaulterr.ErrPeerNotTrusted)
	})

	t.Run("Oversized Payload", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.SetPeer(f.ctx, f.admin, ledger.SetPeerParams{ChainID: models.EthereumMainnetEID, PeerAddress: remotePeer, IsTrusted: true, MaxMessageSize: 32})
		require.NoError(t, err)
		assert.ErrorIs(t, f.send(t, models.EthereumMainnetEID, update), vaulterr.ErrPeerNotTrusted)

		peer, err := f.ledger.Peer(f.ctx, models.EthereumMainnetEID)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), peer.TotalMessagesReceived)
	})

	t.Run("Hourly Rate Limit", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.SetPeer(f.ctx, f.admin, ledger.SetPeerParams{ChainID: models.EthereumMainnetEID, PeerAddress: remotePeer, IsTrusted: true, RateLimitPerHour: 2})
		require.NoError(t, err)

		require.NoError(t, f.send(t, models.EthereumMainnetEID, update))
		require.NoError(t, f.send(t, models.EthereumMainnetEID, update))
		assert.ErrorIs(t, f.send(t, models.EthereumMainnetEID, update), vaulterr.ErrPeerNotTrusted)

		f.now = f.now.Add(time.Hour)
		require.NoError(t, f.send(t, models.EthereumMainnetEID, update))

		peer, err := f.ledger.Peer(f.ctx, models.EthereumMainnetEID)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), peer.CurrentHourCount)
		assert.Equal(t, uint64(3), peer.TotalMessagesReceived)
		assert.Equal(t, f.now.Unix(), peer.LastMessageTimestamp)

		expected := `
# HELP omnivault_peer_gate_verdicts_total Peer gate verdicts by source chain.
# TYPE omnivault_peer_gate_verdicts_total counter
omnivault_peer_gate_verdicts_total{src_chain="ethereum",verdict="accepted"} 3
omnivault_peer_gate_verdicts_total{src_chain="ethereum",verdict="rate_limited"} 1
`
		assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "omnivault_peer_gate_verdicts_total"))
	})

	t.Run("Replayed Nonce", func(t *testing.T) {
		f := newFixture(t)
		raw, err := codec.EncodeMessage(update)
		require.NoError(t, err)
		msg := InboundMessage{SrcChain: models.EthereumMainnetEID, Sender: remotePeer, Nonce: 5, Payload: raw}
		require.NoError(t, f.router.Receive(f.ctx, msg))
		assert.ErrorIs(t, f.router.Receive(f.ctx, msg), vaulterr.ErrPeerNotTrusted)

		msg.Nonce = 4
		assert.ErrorIs(t, f.router.Receive(f.ctx, msg), vaulterr.ErrPeerNotTrusted)

		// other chains keep their own sequence
		msg.SrcChain = models.ArbitrumMainnetEID
		require.NoError(t, f.router.Receive(f.ctx, msg))

		// reconfiguring the peer keeps the sequence
		_, err = f.ledger.SetPeer(f.ctx, f.admin, ledger.SetPeerParams{ChainID: models.EthereumMainnetEID, PeerAddress: remotePeer, IsTrusted: true})
		require.NoError(t, err)
		msg.SrcChain, msg.Nonce = models.EthereumMainnetEID, 5
		assert.ErrorIs(t, f.router.Receive(f.ctx, msg), vaulterr.ErrPeerNotTrusted)

		peer, err := f.ledger.Peer(f.ctx, models.EthereumMainnetEID)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), peer.LastInboundNonce)
		assert.Equal(t, uint64(1), peer.TotalMessagesReceived)

		msg.Nonce = 6
		assert.NoError(t, f.router.Receive(f.ctx, msg))
	})

	t.Run("Charge Survives Handler Failure", func(t *testing.T) {
		f := newFixture(t)
		err := f.sendRaw(models.EthereumMainnetEID, codec.Encode(codec.MessageType(9), []byte{1}))
		assert.ErrorIs(t, err, vaulterr.ErrInvalidMessage)

		err = f.send(t, models.EthereumMainnetEID, codec.StrategyInstruction{StrategyID: 0, InstructionType: 9})
		assert.ErrorIs(t, err, vaulterr.ErrInvalidMessage)

		peer, err := f.ledger.Peer(f.ctx, models.EthereumMainnetEID)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), peer.TotalMessagesReceived)
	})
}

func TestYieldUpdate(t *testing.T) {
	f := newFixture(t)
	protocol := [32]byte{0xaa}

	require.NoError(t, f.send(t, models.EthereumMainnetEID, codec.YieldUpdate{
		ProtocolID: protocol,
		APYBps:     800,
		TVL:        5_000_000,
		RiskScore:  10,
		Timestamp:  1,
	}))

	y, err := f.ledger.YieldData(f.ctx, models.EthereumMainnetEID, protocol)
	require.NoError(t, err)
	assert.Equal(t, uint32(800), y.APYBps)
	assert.Equal(t, f.now.Unix(), y.LastUpdated)
	assert.True(t, y.IsActive)

	tr, err := f.ledger.Tracker(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, models.EthereumMainnetEID, tr.CurrentBestChain)
	assert.Equal(t, uint64(800), tr.CurrentAPY)

	t.Run("Small Improvement Keeps Chain", func(t *testing.T) {
		require.NoError(t, f.send(t, models.ArbitrumMainnetEID, codec.YieldUpdate{ProtocolID: protocol, APYBps: 900, RiskScore: 10}))
		tr, err := f.ledger.Tracker(f.ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, models.EthereumMainnetEID, tr.CurrentBestChain)
		assert.Len(t, tr.ChainYields, 2)
	})

	t.Run("Large Improvement Switches", func(t *testing.T) {
		require.NoError(t, f.send(t, models.ArbitrumMainnetEID, codec.YieldUpdate{ProtocolID: protocol, APYBps: 1_500, RiskScore: 10}))
		tr, err := f.ledger.Tracker(f.ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, models.ArbitrumMainnetEID, tr.CurrentBestChain)
		assert.Equal(t, uint64(1_500), tr.CurrentAPY)
	})

	t.Run("Out Of Range Scores", func(t *testing.T) {
		err := f.send(t, models.EthereumMainnetEID, codec.YieldUpdate{ProtocolID: protocol, RiskScore: 101})
		assert.ErrorIs(t, err, vaulterr.ErrInvalidParameter)
	})

	expected := `
# HELP omnivault_best_chain_switches_total Tracked best chain changes by destination chain.
# TYPE omnivault_best_chain_switches_total counter
omnivault_best_chain_switches_total{to_chain="arbitrum"} 1
omnivault_best_chain_switches_total{to_chain="ethereum"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "omnivault_best_chain_switches_total"))
}

func TestStrategyInstruction(t *testing.T) {
	f := newFixture(t)
	src := models.EthereumMainnetEID

	t.Run("Update Then Add Allocation", func(t *testing.T) {
		require.NoError(t, f.send(t, src, codec.StrategyInstruction{
			InstructionType:     codec.InstructionUpdateAllocation,
			TargetChainID:       models.EthereumMainnetEID,
			TargetAllocationBps: 5000,
			MinYieldBps:         300,
			MaxSlippageBps:      50,
		}))
		require.NoError(t, f.send(t, src, codec.StrategyInstruction{
			InstructionType:     codec.InstructionAddAllocation,
			TargetChainID:       models.OptimismMainnetEID,
			TargetAllocationBps: 1000,
		}))

		s, err := f.ledger.Strategy(f.ctx, 0)
		require.NoError(t, err)
		require.Len(t, s.Allocations, 3)
		assert.Equal(t, uint16(5000), s.Allocations[0].TargetBps)
		assert.Equal(t, uint16(300), s.Allocations[0].MinYieldBps)
		assert.Equal(t, models.OptimismMainnetEID, s.Allocations[2].ChainID)
		assert.Equal(t, uint16(50), s.MaxSlippageBps)
	})

	t.Run("Allocation Overflow Rejected", func(t *testing.T) {
		err := f.send(t, src, codec.StrategyInstruction{
			InstructionType:     codec.InstructionAddAllocation,
			TargetChainID:       models.PolygonMainnetEID,
			TargetAllocationBps: 1,
		})
		assert.ErrorIs(t, err, vaulterr.ErrInvalidAllocation)
	})

	t.Run("Pause And Resume", func(t *testing.T) {
		require.NoError(t, f.send(t, src, codec.StrategyInstruction{InstructionType: codec.InstructionPause}))
		s, err := f.ledger.Strategy(f.ctx, 0)
		require.NoError(t, err)
		assert.False(t, s.IsActive)

		require.NoError(t, f.send(t, src, codec.StrategyInstruction{InstructionType: codec.InstructionResume}))
		s, err = f.ledger.Strategy(f.ctx, 0)
		require.NoError(t, err)
		assert.True(t, s.IsActive)
	})

	t.Run("Unknown Strategy", func(t *testing.T) {
		err := f.send(t, src, codec.StrategyInstruction{StrategyID: 8, InstructionType: codec.InstructionPause})
		assert.ErrorIs(t, err, vaulterr.ErrStrategyNotFound)
	})
}

func TestTokenMovement(t *testing.T) {
	f := newFixture(t)
	src := models.ArbitrumMainnetEID
	tvl := func() uint64 {
		v, err := f.ledger.Vault(f.ctx)
		require.NoError(t, err)
		return v.TotalValueLocked
	}

	require.NoError(t, f.send(t, src, codec.TokenMovement{Amount: 5_000_000, OperationType: codec.OperationDeposit}))
	assert.Equal(t, uint64(5_000_000), tvl())

	require.NoError(t, f.send(t, src, codec.TokenMovement{Amount: 2_000_000, OperationType: codec.OperationWithdraw}))
	assert.Equal(t, uint64(3_000_000), tvl())

	require.NoError(t, f.send(t, src, codec.TokenMovement{Amount: 9_000_000, OperationType: codec.OperationTransfer}))
	assert.Equal(t, uint64(3_000_000), tvl())

	err := f.send(t, src, codec.TokenMovement{Amount: 4_000_000, OperationType: codec.OperationWithdraw})
	assert.ErrorIs(t, err, vaulterr.ErrArithmeticOverflow)
	assert.Equal(t, uint64(3_000_000), tvl())

	err = f.send(t, src, codec.TokenMovement{Amount: 1, OperationType: 4})
	assert.ErrorIs(t, err, vaulterr.ErrInvalidMessage)
}

func TestPositionUpdate(t *testing.T) {
	f := newFixture(t)
	user := f.fund(t, 10_000_000)
	pos, err := f.ledger.Position(f.ctx, user)
	require.NoError(t, err)
	id := solana.MustPublicKeyFromBase58(pos.Address)

	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.send(t, models.EthereumMainnetEID, codec.PositionUpdate{
		PositionID:  id,
		NewValue:    12_000_000,
		YieldEarned: 2_000_000,
		FeesAccrued: 1_000,
	}))

	pos, err = f.ledger.Position(f.ctx, user)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_000_000), pos.CurrentValue)
	assert.Equal(t, uint64(1_000), pos.AccruedFees)
	assert.Equal(t, f.now.Unix(), pos.LastYieldCalculation)
	assert.Equal(t, int64(2_000_000), ledger.PnL(pos))

	v, err := f.ledger.Vault(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_000_000), v.TotalValueLocked)
	s, err := f.ledger.Strategy(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_000_000), s.TotalValue)

	t.Run("Loss Moves Totals Down", func(t *testing.T) {
		require.NoError(t, f.send(t, models.EthereumMainnetEID, codec.PositionUpdate{PositionID: id, NewValue: 9_000_000}))
		v, err := f.ledger.Vault(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(9_000_000), v.TotalValueLocked)
	})

	t.Run("Unknown Position", func(t *testing.T) {
		err := f.send(t, models.EthereumMainnetEID, codec.PositionUpdate{PositionID: solana.NewWallet().PublicKey(), NewValue: 1})
		assert.ErrorIs(t, err, vaulterr.ErrPositionNotFound)
	})

	t.Run("Closed Position", func(t *testing.T) {
		_, err := f.ledger.Withdraw(f.ctx, user, ledger.WithdrawParams{ClosePosition: true})
		require.NoError(t, err)
		err = f.send(t, models.EthereumMainnetEID, codec.PositionUpdate{PositionID: id, NewValue: 1})
		assert.ErrorIs(t, err, vaulterr.ErrPositionInactive)
	})
}

func TestRebalanceInstruction(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 10_000_000)
	_, err := f.ledger.ExecuteRebalance(f.ctx, f.admin, 0, true)
	require.NoError(t, err)

	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.send(t, models.EthereumMainnetEID, codec.RebalanceInstruction{
		SourceChainID:      models.EthereumMainnetEID,
		DestinationChainID: models.ArbitrumMainnetEID,
		AmountToMove:       1_000_000,
		MaxSlippageBps:     50,
	}))

	s, err := f.ledger.Strategy(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(5000), s.Allocations[0].CurrentBps)
	assert.Equal(t, uint16(5000), s.Allocations[1].CurrentBps)
	v, err := f.ledger.Vault(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.now.Unix(), v.LastRebalance)

	cases := []struct {
		name string
		msg  codec.RebalanceInstruction
		want error
	}{
		{"Slippage Above Strategy Limit", codec.RebalanceInstruction{SourceChainID: models.EthereumMainnetEID, DestinationChainID: models.ArbitrumMainnetEID, MaxSlippageBps: 101}, vaulterr.ErrSlippageExceeded},
		{"Unallocated Chain", codec.RebalanceInstruction{SourceChainID: models.PolygonMainnetEID, DestinationChainID: models.ArbitrumMainnetEID}, vaulterr.ErrInvalidAllocation},
		{"Same Chain", codec.RebalanceInstruction{SourceChainID: models.ArbitrumMainnetEID, DestinationChainID: models.ArbitrumMainnetEID}, vaulterr.ErrInvalidParameter},
		{"More Than Strategy Holds", codec.RebalanceInstruction{SourceChainID: models.EthereumMainnetEID, DestinationChainID: models.ArbitrumMainnetEID, AmountToMove: 10_000_001}, vaulterr.ErrInvalidParameter},
		{"Source Share Exhausted", codec.RebalanceInstruction{SourceChainID: models.EthereumMainnetEID, DestinationChainID: models.ArbitrumMainnetEID, AmountToMove: 6_000_000}, vaulterr.ErrArithmeticOverflow},
		{"Unknown Strategy", codec.RebalanceInstruction{StrategyID: 5}, vaulterr.ErrStrategyNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, f.send(t, models.EthereumMainnetEID, tc.msg), tc.want)
		})
	}

	expected := `
# HELP omnivault_rebalances_total Rebalance executions by trigger and result.
# TYPE omnivault_rebalances_total counter
omnivault_rebalances_total{result="error",trigger="message"} 6
omnivault_rebalances_total{result="ok",trigger="message"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "omnivault_rebalances_total"))
}

func TestReceiveWithoutVault(t *testing.T) {
	l, err := ledger.New(memstore.New(), nil)
	require.NoError(t, err)
	raw, err := codec.EncodeMessage(codec.YieldUpdate{})
	require.NoError(t, err)
	err = New(l).Receive(context.Background(), InboundMessage{SrcChain: models.EthereumMainnetEID, Payload: raw})
	assert.ErrorIs(t, err, vaulterr.ErrVaultNotInitialized)
}
