package ledger

import (
	"github.com/Klingon-tech/signtoken/internal/issuance"
	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/internal/treasury"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// Account is one ledger account.
type Account struct {
	Address        types.Address `json:"address"`
	Balance        types.Amount  `json:"balance"`
	LastClaimBlock uint64        `json:"lastClaimBlock"`
	Nonce          uint64        `json:"nonce"` // successful state-changing calls made
}

// Head is the most recently sealed block.
type Head struct {
	Height    uint64     `json:"height"`
	Time      uint64     `json:"time"`
	StateRoot types.Hash `json:"stateRoot"`
}

// state is the committed ledger state. Only Ledger mutates it, under its
// lock, by applying a finished txn.
type state struct {
	head     Head
	supply   issuance.Supply
	treasury treasury.State
	records  []registry.Record
	accounts map[types.Address]*Account
}

func newState() *state {
	return &state{accounts: make(map[types.Address]*Account)}
}

// NextSignID implements registry.Reader.
func (s *state) NextSignID() uint64 {
	return uint64(len(s.records))
}

// Record implements registry.Reader.
func (s *state) Record(id uint64) (registry.Record, bool) {
	if id >= uint64(len(s.records)) {
		return registry.Record{}, false
	}
	return s.records[id], true
}

func (s *state) account(addr types.Address) Account {
	if a, ok := s.accounts[addr]; ok {
		return *a
	}
	return Account{Address: addr}
}
