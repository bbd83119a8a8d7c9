package ledger

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/signtoken/config"
	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/internal/storage"
	"github.com/Klingon-tech/signtoken/internal/treasury"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// Genesis returns the genesis the ledger was opened with.
func (l *Ledger) Genesis() *config.Genesis {
	return l.genesis
}

// GenesisHash returns the BLAKE3 hash of the genesis.
func (l *Ledger) GenesisHash() types.Hash {
	return l.genesisHash
}

// Head returns the latest sealed block.
func (l *Ledger) Head() Head {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.head
}

// NextSignID returns the id the next sign will receive, which equals the
// number of registered names.
func (l *Ledger) NextSignID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.NextSignID()
}

// NameBySignID returns the name registered under id.
func (l *Ledger) NameBySignID(id uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return registry.NameBySignID(l.state, id)
}

// Record returns the full record registered under id.
func (l *Ledger) Record(id uint64) (registry.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return registry.Lookup(l.state, id)
}

// Records returns up to limit records starting at id from.
func (l *Ledger) Records(from uint64, limit int) []registry.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return registry.Page(l.state, from, limit)
}

// BalanceOf returns the token balance of addr.
func (l *Ledger) BalanceOf(addr types.Address) types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.account(addr).Balance
}

// Account returns the full account of addr. Unknown addresses return a
// zero account.
func (l *Ledger) Account(addr types.Address) Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.account(addr)
}

// AmountPerBlock returns the current per-claim grant; zero once issuance
// is exhausted.
func (l *Ledger) AmountPerBlock() types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.supply.AmountPerBlock()
}

// SupplyInfo summarizes token issuance.
type SupplyInfo struct {
	Name           string       `json:"name"`
	Symbol         string       `json:"symbol"`
	Decimals       int          `json:"decimals"`
	Total          types.Amount `json:"totalSupply"`
	Max            types.Amount `json:"maxSupply"`
	AmountPerBlock types.Amount `json:"amountPerBlock"`
	Phase          string       `json:"phase"`
	Burned         types.Amount `json:"burned"`
	Circulating    types.Amount `json:"circulating"` // total minus burned
}

// Supply returns the issuance summary. Burned tokens stay in Total; they
// sit in the burn address and are excluded from Circulating.
func (l *Ledger) Supply() SupplyInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.state.supply
	burned := l.state.account(types.BurnAddress).Balance
	circ, _ := s.Total.Sub(burned)
	return SupplyInfo{
		Name:           l.genesis.Token.Name,
		Symbol:         l.genesis.Token.Symbol,
		Decimals:       l.genesis.Token.Decimals,
		Total:          s.Total,
		Max:            s.Max,
		AmountPerBlock: s.AmountPerBlock(),
		Phase:          s.Phase.String(),
		Burned:         burned,
		Circulating:    circ,
	}
}

// TreasuryInfo summarizes the buyback engine.
type TreasuryInfo struct {
	treasury.State
	Threshold    types.Amount  `json:"threshold"`
	Route        []string      `json:"route"`
	Venue        types.Address `json:"venue"`
	VenueEnabled bool          `json:"venueEnabled"`
	SignFee      types.Amount  `json:"signFee"`
	FeePolicy    string        `json:"feePolicy"`
}

// Treasury returns the treasury summary.
func (l *Ledger) Treasury() TreasuryInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rules := l.engine.Rules()
	info := TreasuryInfo{
		State:     l.state.treasury,
		Threshold: rules.Threshold,
		Route:     rules.Route,
		Venue:     l.genesis.VenueAddress(),
		SignFee:   l.registry.Rules().Fee,
		FeePolicy: l.registry.Rules().Policy.String(),
	}
	if v := l.engine.Venue(); v != nil {
		info.Venue = v.Account()
		info.VenueEnabled = true
	}
	return info
}

// Receipt returns the receipt of the block at height.
func (l *Ledger) Receipt(height uint64) (*Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if height > l.state.head.Height {
		return nil, fmt.Errorf("%w: height %d above head %d", ErrReceiptNotFound, height, l.state.head.Height)
	}
	r, err := loadReceipt(l.db, height)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: height %d", ErrReceiptNotFound, height)
	}
	return r, err
}
