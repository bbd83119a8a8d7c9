package ledger

import (
	"sort"

	"github.com/Klingon-tech/signtoken/internal/issuance"
	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/internal/treasury"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// txn stages the writes of one call on top of the committed state. It
// implements the registry, issuance and treasury stores; nothing reaches
// the base state until Ledger applies it.
type txn struct {
	base   *state
	height uint64 // block the call is sealed into
	time   uint64

	supply   issuance.Supply
	treasury treasury.State
	accounts map[types.Address]*Account // copy-on-write
	records  []registry.Record          // appended this call
	events   []Event
}

func newTxn(base *state, height, time uint64) *txn {
	return &txn{
		base:     base,
		height:   height,
		time:     time,
		supply:   base.supply,
		treasury: base.treasury,
		accounts: make(map[types.Address]*Account),
	}
}

func (t *txn) emit(e Event) {
	t.events = append(t.events, e)
}

// account returns the staged copy of addr, copying it from base on first use.
func (t *txn) account(addr types.Address) *Account {
	if a, ok := t.accounts[addr]; ok {
		return a
	}
	a := t.base.account(addr)
	t.accounts[addr] = &a
	return &a
}

func (t *txn) peek(addr types.Address) Account {
	if a, ok := t.accounts[addr]; ok {
		return *a
	}
	return t.base.account(addr)
}

// changed returns the staged accounts in address order.
func (t *txn) changed() []*Account {
	out := make([]*Account, 0, len(t.accounts))
	for _, a := range t.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out
}

// registry.Store

func (t *txn) NextSignID() uint64 {
	return t.base.NextSignID() + uint64(len(t.records))
}

func (t *txn) Record(id uint64) (registry.Record, bool) {
	if id < t.base.NextSignID() {
		return t.base.Record(id)
	}
	i := id - t.base.NextSignID()
	if i >= uint64(len(t.records)) {
		return registry.Record{}, false
	}
	return t.records[i], true
}

func (t *txn) AppendRecord(r registry.Record) {
	t.records = append(t.records, r)
}

// issuance.Store

func (t *txn) Supply() issuance.Supply     { return t.supply }
func (t *txn) SetSupply(s issuance.Supply) { t.supply = s }

func (t *txn) Balance(addr types.Address) types.Amount {
	return t.peek(addr).Balance
}

func (t *txn) SetBalance(addr types.Address, amount types.Amount) {
	t.account(addr).Balance = amount
}

func (t *txn) LastClaimBlock(addr types.Address) uint64 {
	return t.peek(addr).LastClaimBlock
}

func (t *txn) SetLastClaimBlock(addr types.Address, height uint64) {
	t.account(addr).LastClaimBlock = height
}

// treasury.Store

func (t *txn) Treasury() treasury.State     { return t.treasury }
func (t *txn) SetTreasury(s treasury.State) { t.treasury = s }

// apply folds the staged writes into base. Called only after the txn has
// been persisted.
func (t *txn) apply(head Head) {
	t.base.head = head
	t.base.supply = t.supply
	t.base.treasury = t.treasury
	t.base.records = append(t.base.records, t.records...)
	for addr, a := range t.accounts {
		t.base.accounts[addr] = a
	}
}
