package ledger

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/signtoken/pkg/types"
)

// Call operations recorded in receipts.
const (
	OpGenesis = "genesis"
	OpSign    = "sign"
	OpClaim   = "claim"
	OpMine    = "mine"
)

// EventKind names a state change reported in a receipt.
type EventKind string

const (
	EventAllocated       EventKind = "Allocated"
	EventNameSigned      EventKind = "NameSigned"
	EventClaimed         EventKind = "Claimed"
	EventSupplyExhausted EventKind = "SupplyExhausted"
	EventBuyback         EventKind = "Buyback"
	EventBurned          EventKind = "Burned"
)

// Event is one state change. Field use depends on Kind:
//
//	Allocated        Account, Amount (genesis balance)
//	NameSigned       Account (payer), Amount (fee), SignID, Name
//	Claimed          Account, Amount (granted), Elapsed
//	SupplyExhausted  Amount (total supply)
//	Buyback          Account (venue), Amount (native spent)
//	Burned           Account (burn address), Amount (tokens burned)
type Event struct {
	Kind    EventKind     `json:"kind"`
	Account types.Address `json:"account"`
	Amount  types.Amount  `json:"amount"`
	SignID  uint64        `json:"signId,omitempty"`
	Name    string        `json:"name,omitempty"`
	Elapsed uint64        `json:"elapsedBlocks,omitempty"`
}

// Receipt describes one sealed block.
type Receipt struct {
	Height    uint64        `json:"height"`
	Time      uint64        `json:"time"`
	Op        string        `json:"op"`
	Caller    types.Address `json:"caller"`
	Value     types.Amount  `json:"value"`
	Events    []Event       `json:"events"`
	StateRoot types.Hash    `json:"stateRoot"`
}

// stateRoot chains the previous root with a canonical encoding of the
// block: header fields, the supply and treasury summary, every account the
// block touched (address order) and every record it appended.
func stateRoot(prev types.Hash, t *txn, op string) types.Hash {
	h := blake3.New()
	var buf [8]byte
	putU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	putAmount := func(a types.Amount) {
		b := a.Bytes32()
		h.Write(b[:])
	}

	h.Write(prev[:])
	putU64(t.height)
	putU64(t.time)
	h.Write([]byte(op))
	h.Write([]byte{0})

	putAmount(t.supply.Total)
	putAmount(t.supply.Max)
	putAmount(t.supply.AmountPerBlock())

	putAmount(t.treasury.NativeBalance)
	putAmount(t.treasury.TotalSwapped)
	putAmount(t.treasury.TotalBurned)
	putU64(t.treasury.Buybacks)

	putU64(t.NextSignID())
	for _, a := range t.changed() {
		h.Write(a.Address[:])
		putAmount(a.Balance)
		putU64(a.LastClaimBlock)
		putU64(a.Nonce)
	}
	for _, r := range t.records {
		putU64(r.ID)
		putU64(uint64(len(r.Name)))
		h.Write([]byte(r.Name))
		h.Write(r.Payer[:])
		putAmount(r.Fee)
	}

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
