// Package ledger owns the vault accounting: vault configuration, strategies,
// user positions, peers and yield records. Every exported operation runs as
// one storage.Store transaction together with its token transfer.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

const (
	MinDepositAmount      uint64 = 1_000_000
	MaxDepositAmount      uint64 = 1_000_000_000_000
	MaxStrategiesPerVault uint64 = 100
	MaxChainsPerStrategy         = 10
	MaxBps                uint64 = 10_000

	MaxManagementFeeBps  uint16 = 1_000
	MaxPerformanceFeeBps uint16 = 2_000
	MaxWithdrawalFeeBps  uint16 = 1_000
	MaxSlippageBps       uint16 = 1_000
	MaxScore             uint8  = 100

	MinRebalanceInterval         int64  = 300
	DefaultRebalanceThresholdBps uint16 = 500
	DefaultMaxSlippageBps        uint16 = 100
	DefaultMinRebalanceInterval  int64  = 3600
	DefaultYieldValidity         int64  = 300

	DefaultManagementFeeBps  uint16 = 200
	DefaultPerformanceFeeBps uint16 = 1_000
	DefaultWithdrawalFeeBps  uint16 = 100
)

type Option func(*Ledger)

// WithClock replaces the wall clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithLogger(entry *logrus.Entry) Option {
	return func(l *Ledger) {
		l.log = entry
	}
}

type Ledger struct {
	store      storage.Store
	transferer Transferer
	now        func() time.Time
	log        *logrus.Entry
	vaultKey   string
}

func New(store storage.Store, transferer Transferer, opts ...Option) (*Ledger, error) {
	key, err := storage.VaultKey()
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		store:      store,
		transferer: transferer,
		now:        time.Now,
		log:        logrus.NewEntry(logrus.StandardLogger()),
		vaultKey:   key,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.transferer == nil {
		l.transferer = CustodyTransferer{}
	}
	return l, nil
}

// VaultKey is the address of the vault store this ledger manages.
func (l *Ledger) VaultKey() string {
	return l.vaultKey
}

// Now returns the current unix time of the ledger clock.
func (l *Ledger) Now() int64 {
	return l.now().Unix()
}

func (l *Ledger) Store() storage.Store {
	return l.store
}

// LoadVault reads the vault store, mapping a missing record to ErrVaultNotInitialized.
func LoadVault(tx storage.Tx, key string) (*models.VaultStore, error) {
	v, err := tx.GetVault(key)
	if errors.Is(err, vaulterr.ErrNotFound) {
		return nil, vaulterr.ErrVaultNotInitialized
	}
	return v, err
}

func (l *Ledger) loadAdminVault(tx storage.Tx, authority string) (*models.VaultStore, error) {
	v, err := LoadVault(tx, l.vaultKey)
	if err != nil {
		return nil, err
	}
	if !v.IsAdmin(authority) {
		return nil, vaulterr.ErrUnauthorized
	}
	return v, nil
}

// LoadStrategy reads strategy id of vault, mapping a missing record to ErrStrategyNotFound.
func LoadStrategy(tx storage.Tx, vault string, id uint64) (*models.Strategy, error) {
	key, err := storage.StrategyKey(vault, id)
	if err != nil {
		return nil, err
	}
	s, err := tx.GetStrategy(key)
	if errors.Is(err, vaulterr.ErrNotFound) {
		return nil, fmt.Errorf("strategy %d: %w", id, vaulterr.ErrStrategyNotFound)
	}
	if err != nil {
		return nil, err
	}
	if s.VaultAddress != vault {
		return nil, fmt.Errorf("strategy %d belongs to another vault: %w", id, vaulterr.ErrStrategyNotFound)
	}
	return s, nil
}

// LoadTracker reads the yield tracker of strategy s.
func LoadTracker(tx storage.Tx, vault string, s *models.Strategy) (*models.YieldTracker, error) {
	key, err := storage.TrackerKey(vault, s.Address)
	if err != nil {
		return nil, err
	}
	return tx.GetTracker(key)
}

// MulBps returns amount*bps/10000 rounded down, or ErrArithmeticOverflow.
func MulBps(amount uint64, bps uint64) (uint64, error) {
	if bps != 0 && amount > ^uint64(0)/bps {
		return 0, vaulterr.ErrArithmeticOverflow
	}
	return amount * bps / MaxBps, nil
}
