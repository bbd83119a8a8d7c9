package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/signtoken/internal/issuance"
	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/internal/storage"
	"github.com/Klingon-tech/signtoken/internal/treasury"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// Keys inside the "ledger/" namespace.
var (
	keyHead       = []byte("h/head")
	keySupply     = []byte("s/supply")
	keyTreasury   = []byte("t/treasury")
	keyGenesis    = []byte("g/genesis")
	prefixRecord  = []byte("n/") // n/<id(8)> -> record JSON
	prefixAccount = []byte("a/") // a/<address(20)> -> account JSON
	prefixReceipt = []byte("r/") // r/<height(8)> -> receipt JSON
)

func recordKey(id uint64) []byte {
	return u64Key(prefixRecord, id)
}

func receiptKey(height uint64) []byte {
	return u64Key(prefixReceipt, height)
}

func accountKey(addr types.Address) []byte {
	key := make([]byte, len(prefixAccount)+types.AddressSize)
	copy(key, prefixAccount)
	copy(key[len(prefixAccount):], addr[:])
	return key
}

func u64Key(prefix []byte, v uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], v)
	return key
}

// supplyRecord is the stored form of issuance.Supply.
type supplyRecord struct {
	Total          types.Amount `json:"total"`
	Max            types.Amount `json:"max"`
	AmountPerBlock types.Amount `json:"amountPerBlock"`
	Exhausted      bool         `json:"exhausted"`
}

func encodeSupply(s issuance.Supply) supplyRecord {
	return supplyRecord{
		Total:          s.Total,
		Max:            s.Max,
		AmountPerBlock: s.AmountPerBlock(),
		Exhausted:      s.Exhausted(),
	}
}

func (r supplyRecord) decode() issuance.Supply {
	s := issuance.Supply{Total: r.Total, Max: r.Max}
	if r.Exhausted {
		s.Phase = issuance.Exhausted{}
	} else {
		s.Phase = issuance.Minting{AmountPerBlock: r.AmountPerBlock}
	}
	return s
}

func putJSON(b storage.Batch, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.Put(key, data)
}

func getJSON(db storage.DB, key []byte, v interface{}) error {
	data, err := db.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// writeTxn stages everything a sealed txn changed into b.
func writeTxn(b storage.Batch, t *txn, head Head, rcpt *Receipt) error {
	if err := putJSON(b, keyHead, head); err != nil {
		return err
	}
	if err := putJSON(b, keySupply, encodeSupply(t.supply)); err != nil {
		return err
	}
	if err := putJSON(b, keyTreasury, t.treasury); err != nil {
		return err
	}
	for _, a := range t.changed() {
		if err := putJSON(b, accountKey(a.Address), a); err != nil {
			return err
		}
	}
	for _, r := range t.records {
		if err := putJSON(b, recordKey(r.ID), r); err != nil {
			return err
		}
	}
	return putJSON(b, receiptKey(rcpt.Height), rcpt)
}

// loadState reads the committed state. It returns storage.ErrNotFound
// when the database has never been initialized.
func loadState(db storage.DB) (*state, error) {
	st := newState()
	if err := getJSON(db, keyHead, &st.head); err != nil {
		return nil, err
	}

	var sr supplyRecord
	if err := getJSON(db, keySupply, &sr); err != nil {
		return nil, fmt.Errorf("load supply: %w", err)
	}
	st.supply = sr.decode()

	var ts treasury.State
	if err := getJSON(db, keyTreasury, &ts); err != nil {
		return nil, fmt.Errorf("load treasury: %w", err)
	}
	st.treasury = ts

	err := db.ForEach(prefixRecord, func(key, value []byte) error {
		var r registry.Record
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("unmarshal record: %w", err)
		}
		if r.ID != uint64(len(st.records)) {
			return fmt.Errorf("record gap: found id %d, want %d", r.ID, len(st.records))
		}
		st.records = append(st.records, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	err = db.ForEach(prefixAccount, func(key, value []byte) error {
		var a Account
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("unmarshal account: %w", err)
		}
		st.accounts[a.Address] = &a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	return st, nil
}

func loadGenesisHash(db storage.DB) (types.Hash, bool, error) {
	data, err := db.Get(keyGenesis)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, false, nil
	}
	if err != nil {
		return types.Hash{}, false, err
	}
	if len(data) != types.HashSize {
		return types.Hash{}, false, fmt.Errorf("corrupt genesis hash: %d bytes", len(data))
	}
	var h types.Hash
	copy(h[:], data)
	return h, true, nil
}

func loadReceipt(db storage.DB, height uint64) (*Receipt, error) {
	var r Receipt
	if err := getJSON(db, receiptKey(height), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
