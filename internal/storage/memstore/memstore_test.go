package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

func TestAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit On Success", func(t *testing.T) {
		s := New()
		err := s.Atomic(ctx, func(tx storage.Tx) error {
			return tx.CreateVault(&models.VaultStore{Address: "vault", TotalValueLocked: 5})
		})
		require.NoError(t, err)

		err = s.Atomic(ctx, func(tx storage.Tx) error {
			v, err := tx.GetVault("vault")
			require.NoError(t, err)
			assert.Equal(t, uint64(5), v.TotalValueLocked)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("Rollback On Error", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
			return tx.CreateVault(&models.VaultStore{Address: "vault", TotalValueLocked: 5})
		}))

		boom := errors.New("boom")
		err := s.Atomic(ctx, func(tx storage.Tx) error {
			v, err := tx.GetVault("vault")
			require.NoError(t, err)
			v.TotalValueLocked = 99
			require.NoError(t, tx.SaveVault(v))
			require.NoError(t, tx.UpsertBalance(&models.CustodyBalance{Account: "a", Balance: 10}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
			v, err := tx.GetVault("vault")
			require.NoError(t, err)
			assert.Equal(t, uint64(5), v.TotalValueLocked)
			b, err := tx.GetBalance("a")
			require.NoError(t, err)
			assert.Equal(t, uint64(0), b.Balance)
			return nil
		}))
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		s := New()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		called := false
		err := s.Atomic(cctx, func(tx storage.Tx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}

func TestKeyedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Atomic(ctx, func(tx storage.Tx) error {
		_, err := tx.GetPosition("missing")
		assert.ErrorIs(t, err, vaulterr.ErrNotFound)

		err = tx.SavePosition(&models.Position{Address: "missing"})
		assert.ErrorIs(t, err, vaulterr.ErrNotFound)

		require.NoError(t, tx.CreatePosition(&models.Position{Address: "p1", CurrentValue: 1}))
		err = tx.CreatePosition(&models.Position{Address: "p1"})
		assert.ErrorIs(t, err, vaulterr.ErrAlreadyExists)

		err = tx.SavePeer(&models.PeerConfig{Address: "peer"})
		assert.ErrorIs(t, err, vaulterr.ErrNotFound)
		require.NoError(t, tx.UpsertPeer(&models.PeerConfig{Address: "peer", ChainID: 1}))
		require.NoError(t, tx.SavePeer(&models.PeerConfig{Address: "peer", ChainID: 2}))
		p, err := tx.GetPeer("peer")
		require.NoError(t, err)
		assert.Equal(t, uint32(2), p.ChainID)
		return nil
	})
	require.NoError(t, err)
}

func TestCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		return tx.CreateStrategy(&models.Strategy{
			Address:     "s0",
			Allocations: []models.ChainAllocation{{ChainID: 1, TargetBps: 100}},
		})
	}))

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		st, err := tx.GetStrategy("s0")
		require.NoError(t, err)
		st.Allocations[0].TargetBps = 9999
		return nil
	}))

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		st, err := tx.GetStrategy("s0")
		require.NoError(t, err)
		assert.Equal(t, uint16(100), st.Allocations[0].TargetBps)
		return nil
	}))
}

func TestOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		for _, id := range []uint64{2, 0, 1} {
			require.NoError(t, tx.CreateStrategy(&models.Strategy{Address: string(rune('a' + id)), VaultAddress: "v", StrategyID: id}))
		}
		require.NoError(t, tx.CreateStrategy(&models.Strategy{Address: "other", VaultAddress: "w"}))

		for _, key := range []string{"z", "y", "x"} {
			require.NoError(t, tx.UpsertYieldData(&models.YieldData{Address: key}))
		}
		require.NoError(t, tx.UpsertYieldData(&models.YieldData{Address: "z", APYBps: 7}))
		return nil
	}))

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		list, err := tx.ListStrategies("v")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []uint64{0, 1, 2}, []uint64{list[0].StrategyID, list[1].StrategyID, list[2].StrategyID})

		yields, err := tx.ListYieldData()
		require.NoError(t, err)
		require.Len(t, yields, 3)
		assert.Equal(t, "z", yields[0].Address)
		assert.Equal(t, uint32(7), yields[0].APYBps)
		assert.Equal(t, "y", yields[1].Address)
		assert.Equal(t, "x", yields[2].Address)
		return nil
	}))
}

func TestSettlements(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		for _, key := range []string{"c", "a", "b"} {
			require.NoError(t, tx.CreateSettlement(&models.Settlement{Address: key, Status: models.SettlementPending}))
		}
		assert.ErrorIs(t, tx.CreateSettlement(&models.Settlement{Address: "a"}), vaulterr.ErrAlreadyExists)

		st, err := tx.GetSettlement("a")
		require.NoError(t, err)
		st.Status = models.SettlementSettled
		return tx.SaveSettlement(st)
	}))

	require.NoError(t, s.Atomic(ctx, func(tx storage.Tx) error {
		pending, err := tx.ListSettlements(models.SettlementPending)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "c", pending[0].Address)
		assert.Equal(t, "b", pending[1].Address)

		_, err = tx.GetSettlement("missing")
		assert.ErrorIs(t, err, vaulterr.ErrNotFound)
		return nil
	}))
}
