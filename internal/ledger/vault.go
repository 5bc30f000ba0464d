package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"omnivault/internal/models"
	"omnivault/internal/peergate"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

type InitVaultParams struct {
	Endpoint          string
	CustodyAccount    string
	MinDeposit        uint64
	MaxDeposit        uint64
	ManagementFeeBps  uint16
	PerformanceFeeBps uint16
	WithdrawalFeeBps  uint16
}

func (p InitVaultParams) validate() error {
	if p.MinDeposit < MinDepositAmount || p.MinDeposit > p.MaxDeposit || p.MaxDeposit > MaxDepositAmount {
		return fmt.Errorf("deposit bounds [%d, %d]: %w", p.MinDeposit, p.MaxDeposit, vaulterr.ErrInvalidDepositAmount)
	}
	if p.ManagementFeeBps > MaxManagementFeeBps || p.PerformanceFeeBps > MaxPerformanceFeeBps || p.WithdrawalFeeBps > MaxWithdrawalFeeBps {
		return fmt.Errorf("fee above cap: %w", vaulterr.ErrInvalidParameter)
	}
	return nil
}

// InitVault creates the vault store with admin as its administrator.
func (l *Ledger) InitVault(ctx context.Context, admin string, p InitVaultParams) (*models.VaultStore, error) {
	if _, err := storage.ParseAddress(admin); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	custody := p.CustodyAccount
	if custody == "" {
		custody = l.vaultKey
	} else if _, err := storage.ParseAddress(custody); err != nil {
		return nil, err
	}

	now := l.Now()
	vault := &models.VaultStore{
		Address:           l.vaultKey,
		Admin:             admin,
		EndpointProgram:   p.Endpoint,
		CustodyAccount:    custody,
		MinDeposit:        p.MinDeposit,
		MaxDeposit:        p.MaxDeposit,
		ManagementFeeBps:  p.ManagementFeeBps,
		PerformanceFeeBps: p.PerformanceFeeBps,
		WithdrawalFeeBps:  p.WithdrawalFeeBps,
		LastRebalance:     now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		if err := tx.CreateVault(vault); err != nil {
			if errors.Is(err, vaulterr.ErrAlreadyExists) {
				return vaulterr.ErrVaultAlreadyInitialized
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"vault":   vault.Address,
		"admin":   admin,
		"custody": custody,
	}).Info("Vault initialized")
	return vault, nil
}

func (l *Ledger) setPaused(ctx context.Context, authority string, paused bool) error {
	return l.store.Atomic(ctx, func(tx storage.Tx) error {
		v, err := l.loadAdminVault(tx, authority)
		if err != nil {
			return err
		}
		v.IsPaused = paused
		v.UpdatedAt = l.Now()
		return tx.SaveVault(v)
	})
}

func (l *Ledger) Pause(ctx context.Context, authority string) error {
	if err := l.setPaused(ctx, authority, true); err != nil {
		return err
	}
	l.log.WithField("vault", l.vaultKey).Warn("Vault paused")
	return nil
}

func (l *Ledger) Resume(ctx context.Context, authority string) error {
	if err := l.setPaused(ctx, authority, false); err != nil {
		return err
	}
	l.log.WithField("vault", l.vaultKey).Info("Vault resumed")
	return nil
}

// Credit records funds that arrived in account outside the vault, such as
// a user's token deposit into custody.
func (l *Ledger) Credit(ctx context.Context, authority, account string, amount uint64) (*models.CustodyBalance, error) {
	if _, err := storage.ParseAddress(account); err != nil {
		return nil, err
	}
	var out *models.CustodyBalance
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		if _, err := l.loadAdminVault(tx, authority); err != nil {
			return err
		}
		b, err := tx.GetBalance(account)
		if err != nil {
			return err
		}
		if b.Balance, err = vaulterr.CheckedAdd(b.Balance, amount); err != nil {
			return err
		}
		b.UpdatedAt = l.Now()
		out = b
		return tx.UpsertBalance(b)
	})
	return out, err
}

type SetPeerParams struct {
	ChainID          uint32
	PeerAddress      [32]byte
	IsTrusted        bool
	MaxMessageSize   uint32
	RateLimitPerHour uint32
}

// SetPeer creates or replaces the peer record of a source chain. Counters
// start over and the hour marker is set to the current hour; the last
// accepted inbound nonce is kept.
func (l *Ledger) SetPeer(ctx context.Context, authority string, p SetPeerParams) (*models.PeerConfig, error) {
	if p.MaxMessageSize == 0 {
		p.MaxMessageSize = peergate.DefaultMaxMessageSize
	}
	if p.RateLimitPerHour == 0 {
		p.RateLimitPerHour = peergate.DefaultRateLimitPerHour
	}
	key, err := storage.PeerKey(l.vaultKey, p.ChainID)
	if err != nil {
		return nil, err
	}
	now := l.Now()
	peer := &models.PeerConfig{
		Address:          key,
		VaultAddress:     l.vaultKey,
		ChainID:          p.ChainID,
		PeerAddress:      hex.EncodeToString(p.PeerAddress[:]),
		IsTrusted:        p.IsTrusted,
		MaxMessageSize:   p.MaxMessageSize,
		RateLimitPerHour: p.RateLimitPerHour,
		CurrentHour:      peergate.HourOf(now),
		CreatedAt:        now,
	}
	err = l.store.Atomic(ctx, func(tx storage.Tx) error {
		if _, err := l.loadAdminVault(tx, authority); err != nil {
			return err
		}
		prev, err := tx.GetPeer(key)
		switch {
		case err == nil:
			peer.LastInboundNonce = prev.LastInboundNonce
		case !errors.Is(err, vaulterr.ErrNotFound):
			return err
		}
		return tx.UpsertPeer(peer)
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"chain_id": p.ChainID,
		"peer":     peer.PeerAddress,
		"trusted":  p.IsTrusted,
	}).Info("Peer configured")
	return peer, nil
}

type UpdateYieldDataParams struct {
	ChainID            uint32
	ProtocolID         [32]byte
	APYBps             uint32
	TVL                uint64
	AvailableLiquidity uint64
	RiskScore          uint8
	VolatilityScore    uint8
	IsActive           bool
}

// PutYieldData validates p and writes the yield record of (chain, protocol)
// inside tx. Validity window and deposit bounds take the vault constants.
func PutYieldData(tx storage.Tx, p UpdateYieldDataParams, now int64) (*models.YieldData, error) {
	if p.RiskScore > MaxScore || p.VolatilityScore > MaxScore {
		return nil, fmt.Errorf("risk %d volatility %d: %w", p.RiskScore, p.VolatilityScore, vaulterr.ErrInvalidParameter)
	}
	key, err := storage.YieldDataKey(p.ChainID, p.ProtocolID)
	if err != nil {
		return nil, err
	}
	y := &models.YieldData{
		Address:            key,
		ChainID:            p.ChainID,
		ProtocolID:         hex.EncodeToString(p.ProtocolID[:]),
		APYBps:             p.APYBps,
		TVL:                p.TVL,
		AvailableLiquidity: p.AvailableLiquidity,
		LastUpdated:        now,
		ValidityPeriod:     DefaultYieldValidity,
		MinDeposit:         MinDepositAmount,
		MaxDeposit:         MaxDepositAmount,
		RiskScore:          p.RiskScore,
		VolatilityScore:    p.VolatilityScore,
		IsActive:           p.IsActive,
		HistoricalAPY30d:   p.APYBps,
	}
	if err := tx.UpsertYieldData(y); err != nil {
		return nil, err
	}
	return y, nil
}

func (l *Ledger) UpdateYieldData(ctx context.Context, authority string, p UpdateYieldDataParams) (*models.YieldData, error) {
	var out *models.YieldData
	err := l.store.Atomic(ctx, func(tx storage.Tx) error {
		if _, err := l.loadAdminVault(tx, authority); err != nil {
			return err
		}
		y, err := PutYieldData(tx, p, l.Now())
		out = y
		return err
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{
		"chain_id": out.ChainID,
		"protocol": out.ProtocolID,
		"apy_bps":  out.APYBps,
	}).Info("Yield data updated")
	return out, nil
}
