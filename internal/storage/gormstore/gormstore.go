// Package gormstore persists the vault entities in PostgreSQL through GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

// Models lists every table the store reads and writes, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&models.VaultStore{},
		&models.Strategy{},
		&models.Position{},
		&models.YieldData{},
		&models.PeerConfig{},
		&models.YieldTracker{},
		&models.CustodyBalance{},
		&models.Settlement{},
	}
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Atomic runs fn inside one database transaction. Every keyed read locks
// its row until commit, so concurrent writers of an entity queue behind
// each other instead of overwriting each other's updates. Ledger
// operations read the vault row first, which orders their locks.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

type tx struct {
	db *gorm.DB
}

func first[T any](db *gorm.DB, kind, column, key string) (*T, error) {
	var out T
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where(column+" = ?", key).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s %s: %w", kind, key, vaulterr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", kind, key, err)
	}
	return &out, nil
}

// fits rejects values above the BIGINT range of the u64 columns.
func fits(kind, key string, values ...uint64) error {
	for _, v := range values {
		if v > math.MaxInt64 {
			return fmt.Errorf("%s %s: %d exceeds the storable range: %w", kind, key, v, vaulterr.ErrArithmeticOverflow)
		}
	}
	return nil
}

func ids[T any](db *gorm.DB, address string) ([]uint, error) {
	var found []uint
	if err := db.Model(new(T)).Where("address = ?", address).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	return found, nil
}

func create[T any](db *gorm.DB, kind, address string, v *T) error {
	found, err := ids[T](db, address)
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", kind, address, err)
	}
	if len(found) > 0 {
		return fmt.Errorf("%s %s: %w", kind, address, vaulterr.ErrAlreadyExists)
	}
	if err := db.Create(v).Error; err != nil {
		return fmt.Errorf("failed to create %s %s: %w", kind, address, err)
	}
	return nil
}

func save[T any](db *gorm.DB, kind, address string, id *uint, v *T) error {
	found, err := ids[T](db, address)
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", kind, address, err)
	}
	if len(found) == 0 {
		return fmt.Errorf("%s %s: %w", kind, address, vaulterr.ErrNotFound)
	}
	*id = found[0]
	if err := db.Save(v).Error; err != nil {
		return fmt.Errorf("failed to save %s %s: %w", kind, address, err)
	}
	return nil
}

func upsert[T any](db *gorm.DB, kind, column, key string, id *uint, v *T) error {
	*id = 0
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: column}},
		UpdateAll: true,
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", kind, key, err)
	}
	return nil
}

func (t *tx) GetVault(key string) (*models.VaultStore, error) {
	return first[models.VaultStore](t.db, "vault", "address", key)
}

func vaultFits(v *models.VaultStore) error {
	return fits("vault", v.Address, v.TotalValueLocked, v.StrategyCount, v.PositionCount, v.MinDeposit, v.MaxDeposit, v.CollectedFees)
}

func (t *tx) CreateVault(v *models.VaultStore) error {
	if err := vaultFits(v); err != nil {
		return err
	}
	return create(t.db, "vault", v.Address, v)
}

func (t *tx) SaveVault(v *models.VaultStore) error {
	if err := vaultFits(v); err != nil {
		return err
	}
	return save(t.db, "vault", v.Address, &v.ID, v)
}

func (t *tx) GetStrategy(key string) (*models.Strategy, error) {
	return first[models.Strategy](t.db, "strategy", "address", key)
}

func (t *tx) CreateStrategy(s *models.Strategy) error {
	if err := fits("strategy", s.Address, s.StrategyID, s.TotalValue); err != nil {
		return err
	}
	return create(t.db, "strategy", s.Address, s)
}

func (t *tx) SaveStrategy(s *models.Strategy) error {
	if err := fits("strategy", s.Address, s.StrategyID, s.TotalValue); err != nil {
		return err
	}
	return save(t.db, "strategy", s.Address, &s.ID, s)
}

func (t *tx) ListStrategies(vault string) ([]models.Strategy, error) {
	var out []models.Strategy
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vault_address = ?", vault).Order("strategy_id ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	return out, nil
}

func (t *tx) GetPosition(key string) (*models.Position, error) {
	return first[models.Position](t.db, "position", "address", key)
}

func positionFits(p *models.Position) error {
	return fits("position", p.Address, p.StrategyID, p.InitialDeposit, p.CurrentValue, p.TotalDeposits, p.TotalWithdrawals, p.AccruedFees)
}

func (t *tx) CreatePosition(p *models.Position) error {
	if err := positionFits(p); err != nil {
		return err
	}
	return create(t.db, "position", p.Address, p)
}

func (t *tx) SavePosition(p *models.Position) error {
	if err := positionFits(p); err != nil {
		return err
	}
	return save(t.db, "position", p.Address, &p.ID, p)
}

func (t *tx) GetYieldData(key string) (*models.YieldData, error) {
	return first[models.YieldData](t.db, "yield data", "address", key)
}

func (t *tx) UpsertYieldData(y *models.YieldData) error {
	if err := fits("yield data", y.Address, y.TVL, y.AvailableLiquidity, y.MinDeposit, y.MaxDeposit); err != nil {
		return err
	}
	return upsert(t.db, "yield data", "address", y.Address, &y.ID, y)
}

// ListYieldData orders by id; upserts keep the id of the first insert.
func (t *tx) ListYieldData() ([]models.YieldData, error) {
	var out []models.YieldData
	if err := t.db.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list yield data: %w", err)
	}
	return out, nil
}

func (t *tx) GetPeer(key string) (*models.PeerConfig, error) {
	return first[models.PeerConfig](t.db, "peer", "address", key)
}

func (t *tx) UpsertPeer(p *models.PeerConfig) error {
	if err := fits("peer", p.Address, p.TotalMessagesReceived, p.LastInboundNonce); err != nil {
		return err
	}
	return upsert(t.db, "peer", "address", p.Address, &p.ID, p)
}

func (t *tx) SavePeer(p *models.PeerConfig) error {
	if err := fits("peer", p.Address, p.TotalMessagesReceived, p.LastInboundNonce); err != nil {
		return err
	}
	return save(t.db, "peer", p.Address, &p.ID, p)
}

func (t *tx) GetTracker(key string) (*models.YieldTracker, error) {
	return first[models.YieldTracker](t.db, "yield tracker", "address", key)
}

func (t *tx) CreateTracker(tr *models.YieldTracker) error {
	if err := fits("yield tracker", tr.Address, tr.StrategyID, tr.CurrentAPY, tr.RebalanceThreshold); err != nil {
		return err
	}
	return create(t.db, "yield tracker", tr.Address, tr)
}

func (t *tx) SaveTracker(tr *models.YieldTracker) error {
	if err := fits("yield tracker", tr.Address, tr.StrategyID, tr.CurrentAPY, tr.RebalanceThreshold); err != nil {
		return err
	}
	return save(t.db, "yield tracker", tr.Address, &tr.ID, tr)
}

func (t *tx) GetBalance(account string) (*models.CustodyBalance, error) {
	b, err := first[models.CustodyBalance](t.db, "custody balance", "account", account)
	if errors.Is(err, vaulterr.ErrNotFound) {
		return &models.CustodyBalance{Account: account}, nil
	}
	return b, err
}

func (t *tx) UpsertBalance(b *models.CustodyBalance) error {
	if err := fits("custody balance", b.Account, b.Balance); err != nil {
		return err
	}
	return upsert(t.db, "custody balance", "account", b.Account, &b.ID, b)
}

func (t *tx) GetSettlement(key string) (*models.Settlement, error) {
	return first[models.Settlement](t.db, "settlement", "address", key)
}

func (t *tx) CreateSettlement(st *models.Settlement) error {
	if err := fits("settlement", st.Address, st.Amount); err != nil {
		return err
	}
	return create(t.db, "settlement", st.Address, st)
}

func (t *tx) SaveSettlement(st *models.Settlement) error {
	return save(t.db, "settlement", st.Address, &st.ID, st)
}

func (t *tx) ListSettlements(status string) ([]models.Settlement, error) {
	var out []models.Settlement
	if err := t.db.Where("status = ?", status).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return out, nil
}
