// Package storage defines the keyed, transactional persistence the vault
// core runs against. Every entity is addressed by its program-derived
// address in base58.
package storage

import (
	"context"

	"omnivault/internal/models"
)

// Store runs fn as one atomic unit: every write made through tx commits
// together when fn returns nil and none of them do otherwise.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of keyed reads and writes available inside Atomic.
// Get* return copies and fail with vaulterr.ErrNotFound for a missing key.
// Create* fail with vaulterr.ErrAlreadyExists when the key is taken and
// Save* fail with vaulterr.ErrNotFound when it is not.
type Tx interface {
	GetVault(key string) (*models.VaultStore, error)
	CreateVault(v *models.VaultStore) error
	SaveVault(v *models.VaultStore) error

	GetStrategy(key string) (*models.Strategy, error)
	CreateStrategy(s *models.Strategy) error
	SaveStrategy(s *models.Strategy) error
	// ListStrategies returns the strategies of a vault ordered by strategy id.
	ListStrategies(vault string) ([]models.Strategy, error)

	GetPosition(key string) (*models.Position, error)
	CreatePosition(p *models.Position) error
	SavePosition(p *models.Position) error

	GetYieldData(key string) (*models.YieldData, error)
	UpsertYieldData(y *models.YieldData) error
	// ListYieldData returns every yield record in first-insertion order.
	ListYieldData() ([]models.YieldData, error)

	GetPeer(key string) (*models.PeerConfig, error)
	UpsertPeer(p *models.PeerConfig) error
	SavePeer(p *models.PeerConfig) error

	GetTracker(key string) (*models.YieldTracker, error)
	CreateTracker(t *models.YieldTracker) error
	SaveTracker(t *models.YieldTracker) error

	// GetBalance returns a zero balance for an account never credited.
	GetBalance(account string) (*models.CustodyBalance, error)
	UpsertBalance(b *models.CustodyBalance) error

	GetSettlement(key string) (*models.Settlement, error)
	CreateSettlement(s *models.Settlement) error
	SaveSettlement(s *models.Settlement) error
	// ListSettlements returns the settlements in status in creation order.
	ListSettlements(status string) ([]models.Settlement, error)
}
