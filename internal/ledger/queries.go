package ledger

import (
	"context"
	"errors"

	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

func (l *Ledger) Vault(ctx context.Context) (*models.VaultStore, error) {
	var out *models.VaultStore
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		v, err := LoadVault(tx, l.vaultKey)
		out = v
		return err
	})
	return out, err
}

func (l *Ledger) Strategy(ctx context.Context, id uint64) (*models.Strategy, error) {
	var out *models.Strategy
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		s, err := LoadStrategy(tx, l.vaultKey, id)
		out = s
		return err
	})
	return out, err
}

func (l *Ledger) Strategies(ctx context.Context) ([]models.Strategy, error) {
	var out []models.Strategy
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		list, err := tx.ListStrategies(l.vaultKey)
		out = list
		return err
	})
	return out, err
}

func (l *Ledger) Position(ctx context.Context, owner string) (*models.Position, error) {
	key, err := storage.PositionKey(l.vaultKey, owner)
	if err != nil {
		return nil, err
	}
	var out *models.Position
	err = l.store.Atomic(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPosition(key)
		if errors.Is(err, vaulterr.ErrNotFound) {
			return vaulterr.ErrPositionNotFound
		}
		out = p
		return err
	})
	return out, err
}

func (l *Ledger) YieldData(ctx context.Context, chainID uint32, protocolID [32]byte) (*models.YieldData, error) {
	key, err := storage.YieldDataKey(chainID, protocolID)
	if err != nil {
		return nil, err
	}
	var out *models.YieldData
	err = l.store.Atomic(ctx, func(tx storage.Tx) error {
		y, err := tx.GetYieldData(key)
		if errors.Is(err, vaulterr.ErrNotFound) {
			return vaulterr.ErrYieldDataNotFound
		}
		out = y
		return err
	})
	return out, err
}

func (l *Ledger) ListYieldData(ctx context.Context) ([]models.YieldData, error) {
	var out []models.YieldData
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		list, err := tx.ListYieldData()
		out = list
		return err
	})
	return out, err
}

func (l *Ledger) Peer(ctx context.Context, chainID uint32) (*models.PeerConfig, error) {
	key, err := storage.PeerKey(l.vaultKey, chainID)
	if err != nil {
		return nil, err
	}
	var out *models.PeerConfig
	err = l.store.Atomic(ctx, func(tx storage.Tx) error {
		p, err := tx.GetPeer(key)
		if errors.Is(err, vaulterr.ErrNotFound) {
			return vaulterr.ErrPeerNotFound
		}
		out = p
		return err
	})
	return out, err
}

func (l *Ledger) Tracker(ctx context.Context, strategyID uint64) (*models.YieldTracker, error) {
	var out *models.YieldTracker
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		s, err := LoadStrategy(tx, l.vaultKey, strategyID)
		if err != nil {
			return err
		}
		tr, err := LoadTracker(tx, l.vaultKey, s)
		out = tr
		return err
	})
	return out, err
}

func (l *Ledger) Balance(ctx context.Context, account string) (*models.CustodyBalance, error) {
	var out *models.CustodyBalance
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		b, err := tx.GetBalance(account)
		out = b
		return err
	})
	return out, err
}
