// Package memstore is an in-process storage.Store. Each Atomic call works
// on a private copy of the state that replaces the shared state only when
// the closure succeeds.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"omnivault/internal/models"
	"omnivault/internal/storage"
	"omnivault/internal/vaulterr"
)

type state struct {
	vaults     map[string]models.VaultStore
	strategies map[string]models.Strategy
	positions  map[string]models.Position
	yields     map[string]models.YieldData
	yieldSeq   map[string]uint64
	peers      map[string]models.PeerConfig
	trackers   map[string]models.YieldTracker
	balances   map[string]models.CustodyBalance
	settles    map[string]models.Settlement
	settleSeq  map[string]uint64
	nextSeq    uint64
}

func newState() *state {
	return &state{
		vaults:     map[string]models.VaultStore{},
		strategies: map[string]models.Strategy{},
		positions:  map[string]models.Position{},
		yields:     map[string]models.YieldData{},
		yieldSeq:   map[string]uint64{},
		peers:      map[string]models.PeerConfig{},
		trackers:   map[string]models.YieldTracker{},
		balances:   map[string]models.CustodyBalance{},
		settles:    map[string]models.Settlement{},
		settleSeq:  map[string]uint64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.nextSeq = s.nextSeq
	for k, v := range s.vaults {
		c.vaults[k] = v
	}
	for k, v := range s.strategies {
		c.strategies[k] = v.Clone()
	}
	for k, v := range s.positions {
		c.positions[k] = v
	}
	for k, v := range s.yields {
		c.yields[k] = v
	}
	for k, v := range s.yieldSeq {
		c.yieldSeq[k] = v
	}
	for k, v := range s.peers {
		c.peers[k] = v
	}
	for k, v := range s.trackers {
		c.trackers[k] = v.Clone()
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.settles {
		c.settles[k] = v
	}
	for k, v := range s.settleSeq {
		c.settleSeq[k] = v
	}
	return c
}

// Store serializes Atomic calls; the vault core assumes one writer at a time.
type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type tx struct {
	st *state
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, vaulterr.ErrNotFound)
}

func exists(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, vaulterr.ErrAlreadyExists)
}

func (t *tx) GetVault(key string) (*models.VaultStore, error) {
	v, ok := t.st.vaults[key]
	if !ok {
		return nil, notFound("vault", key)
	}
	return &v, nil
}

func (t *tx) CreateVault(v *models.VaultStore) error {
	if _, ok := t.st.vaults[v.Address]; ok {
		return exists("vault", v.Address)
	}
	t.st.vaults[v.Address] = *v
	return nil
}

func (t *tx) SaveVault(v *models.VaultStore) error {
	if _, ok := t.st.vaults[v.Address]; !ok {
		return notFound("vault", v.Address)
	}
	t.st.vaults[v.Address] = *v
	return nil
}

func (t *tx) GetStrategy(key string) (*models.Strategy, error) {
	s, ok := t.st.strategies[key]
	if !ok {
		return nil, notFound("strategy", key)
	}
	c := s.Clone()
	return &c, nil
}

func (t *tx) CreateStrategy(s *models.Strategy) error {
	if _, ok := t.st.strategies[s.Address]; ok {
		return exists("strategy", s.Address)
	}
	t.st.strategies[s.Address] = s.Clone()
	return nil
}

func (t *tx) SaveStrategy(s *models.Strategy) error {
	if _, ok := t.st.strategies[s.Address]; !ok {
		return notFound("strategy", s.Address)
	}
	t.st.strategies[s.Address] = s.Clone()
	return nil
}

func (t *tx) ListStrategies(vault string) ([]models.Strategy, error) {
	var out []models.Strategy
	for _, s := range t.st.strategies {
		if s.VaultAddress == vault {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out, nil
}

func (t *tx) GetPosition(key string) (*models.Position, error) {
	p, ok := t.st.positions[key]
	if !ok {
		return nil, notFound("position", key)
	}
	return &p, nil
}

func (t *tx) CreatePosition(p *models.Position) error {
	if _, ok := t.st.positions[p.Address]; ok {
		return exists("position", p.Address)
	}
	t.st.positions[p.Address] = *p
	return nil
}

func (t *tx) SavePosition(p *models.Position) error {
	if _, ok := t.st.positions[p.Address]; !ok {
		return notFound("position", p.Address)
	}
	t.st.positions[p.Address] = *p
	return nil
}

func (t *tx) GetYieldData(key string) (*models.YieldData, error) {
	y, ok := t.st.yields[key]
	if !ok {
		return nil, notFound("yield data", key)
	}
	return &y, nil
}

func (t *tx) UpsertYieldData(y *models.YieldData) error {
	if _, ok := t.st.yieldSeq[y.Address]; !ok {
		t.st.nextSeq++
		t.st.yieldSeq[y.Address] = t.st.nextSeq
	}
	t.st.yields[y.Address] = *y
	return nil
}

func (t *tx) ListYieldData() ([]models.YieldData, error) {
	out := make([]models.YieldData, 0, len(t.st.yields))
	for _, y := range t.st.yields {
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool {
		return t.st.yieldSeq[out[i].Address] < t.st.yieldSeq[out[j].Address]
	})
	return out, nil
}

func (t *tx) GetPeer(key string) (*models.PeerConfig, error) {
	p, ok := t.st.peers[key]
	if !ok {
		return nil, notFound("peer", key)
	}
	return &p, nil
}

func (t *tx) UpsertPeer(p *models.PeerConfig) error {
	t.st.peers[p.Address] = *p
	return nil
}

func (t *tx) SavePeer(p *models.PeerConfig) error {
	if _, ok := t.st.peers[p.Address]; !ok {
		return notFound("peer", p.Address)
	}
	t.st.peers[p.Address] = *p
	return nil
}

func (t *tx) GetTracker(key string) (*models.YieldTracker, error) {
	tr, ok := t.st.trackers[key]
	if !ok {
		return nil, notFound("yield tracker", key)
	}
	c := tr.Clone()
	return &c, nil
}

func (t *tx) CreateTracker(tr *models.YieldTracker) error {
	if _, ok := t.st.trackers[tr.Address]; ok {
		return exists("yield tracker", tr.Address)
	}
	t.st.trackers[tr.Address] = tr.Clone()
	return nil
}

func (t *tx) SaveTracker(tr *models.YieldTracker) error {
	if _, ok := t.st.trackers[tr.Address]; !ok {
		return notFound("yield tracker", tr.Address)
	}
	t.st.trackers[tr.Address] = tr.Clone()
	return nil
}

func (t *tx) GetBalance(account string) (*models.CustodyBalance, error) {
	b, ok := t.st.balances[account]
	if !ok {
		return &models.CustodyBalance{Account: account}, nil
	}
	return &b, nil
}

func (t *tx) UpsertBalance(b *models.CustodyBalance) error {
	t.st.balances[b.Account] = *b
	return nil
}

func (t *tx) GetSettlement(key string) (*models.Settlement, error) {
	st, ok := t.st.settles[key]
	if !ok {
		return nil, notFound("settlement", key)
	}
	return &st, nil
}

func (t *tx) CreateSettlement(st *models.Settlement) error {
	if _, ok := t.st.settles[st.Address]; ok {
		return exists("settlement", st.Address)
	}
	t.st.nextSeq++
	t.st.settleSeq[st.Address] = t.st.nextSeq
	t.st.settles[st.Address] = *st
	return nil
}

func (t *tx) SaveSettlement(st *models.Settlement) error {
	if _, ok := t.st.settles[st.Address]; !ok {
		return notFound("settlement", st.Address)
	}
	t.st.settles[st.Address] = *st
	return nil
}

func (t *tx) ListSettlements(status string) ([]models.Settlement, error) {
	var out []models.Settlement
	for _, st := range t.st.settles {
		if st.Status == status {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return t.st.settleSeq[out[i].Address] < t.st.settleSeq[out[j].Address]
	})
	return out, nil
}
