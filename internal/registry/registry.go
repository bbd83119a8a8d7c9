// Package registry implements the paid name registry: every successful sign
// appends an immutable record under the next sequential id.
package registry

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Klingon-tech/signtoken/pkg/types"
)

// Registry errors.
var (
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrNotFound            = errors.New("sign id not found")
	ErrNameTooLong         = errors.New("name too long")
	ErrInvalidName         = errors.New("name is not valid utf-8")
)

// FeePolicy decides which paid values a sign accepts.
type FeePolicy uint8

const (
	// Exact accepts only the configured fee.
	Exact FeePolicy = iota
	// Minimum accepts the fee or more. The excess is kept, not refunded.
	Minimum
)

// ParseFeePolicy maps a genesis fee_policy string to a FeePolicy.
func ParseFeePolicy(s string) (FeePolicy, error) {
	switch s {
	case "", "exact":
		return Exact, nil
	case "minimum":
		return Minimum, nil
	default:
		return Exact, fmt.Errorf("unknown fee policy %q", s)
	}
}

func (p FeePolicy) String() string {
	if p == Minimum {
		return "minimum"
	}
	return "exact"
}

// Record is one registered name. Records are never modified or deleted.
type Record struct {
	ID     uint64        `json:"id"`
	Name   string        `json:"name"`
	Payer  types.Address `json:"payer"`
	Fee    types.Amount  `json:"fee"`
	Height uint64        `json:"height"`
}

// Reader is read access to the registry's records.
type Reader interface {
	NextSignID() uint64
	Record(id uint64) (Record, bool)
}

// Store is the mutable view a sign writes into. AppendRecord must store
// the record at r.ID == NextSignID() and advance NextSignID by one.
type Store interface {
	Reader
	AppendRecord(r Record)
}

// Rules are the registry's genesis parameters.
type Rules struct {
	Fee           types.Amount
	Policy        FeePolicy
	MaxNameLength int // bytes; zero means unlimited
}

// Registry applies sign rules against a Store.
type Registry struct {
	rules Rules
}

// New creates a registry with the given rules.
func New(rules Rules) *Registry {
	return &Registry{rules: rules}
}

// Rules returns the registry's parameters.
func (r *Registry) Rules() Rules {
	return r.rules
}

// CheckPayment validates a paid value against the fee policy.
func (r *Registry) CheckPayment(paid types.Amount) error {
	switch r.rules.Policy {
	case Minimum:
		if paid.Lt(r.rules.Fee) {
			return fmt.Errorf("%w: paid %s, fee is at least %s", ErrInsufficientPayment, paid, r.rules.Fee)
		}
	default:
		if !paid.Eq(r.rules.Fee) {
			return fmt.Errorf("%w: paid %s, fee is exactly %s", ErrInsufficientPayment, paid, r.rules.Fee)
		}
	}
	return nil
}

// Sign validates the payment and name, then appends a record with the
// next sequential id. Funding the treasury is left to the caller so it
// happens in the same atomic unit.
func (r *Registry) Sign(st Store, name string, payer types.Address, paid types.Amount, height uint64) (Record, error) {
	if err := r.CheckPayment(paid); err != nil {
		return Record{}, err
	}
	if !utf8.ValidString(name) {
		return Record{}, ErrInvalidName
	}
	if r.rules.MaxNameLength > 0 && len(name) > r.rules.MaxNameLength {
		return Record{}, fmt.Errorf("%w: %d bytes, max %d", ErrNameTooLong, len(name), r.rules.MaxNameLength)
	}

	rec := Record{
		ID:     st.NextSignID(),
		Name:   name,
		Payer:  payer,
		Fee:    paid,
		Height: height,
	}
	st.AppendRecord(rec)
	return rec, nil
}

// NameBySignID returns the name registered under id.
func NameBySignID(st Reader, id uint64) (string, error) {
	rec, err := Lookup(st, id)
	if err != nil {
		return "", err
	}
	return rec.Name, nil
}

// Lookup returns the full record registered under id.
func Lookup(st Reader, id uint64) (Record, error) {
	if id >= st.NextSignID() {
		return Record{}, fmt.Errorf("%w: %d (next id %d)", ErrNotFound, id, st.NextSignID())
	}
	rec, ok := st.Record(id)
	if !ok {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return rec, nil
}

// Page returns up to limit records starting at id from, in id order.
func Page(st Reader, from uint64, limit int) []Record {
	next := st.NextSignID()
	if from >= next || limit <= 0 {
		return nil
	}
	n := next - from
	if uint64(limit) < n {
		n = uint64(limit)
	}
	out := make([]Record, 0, n)
	for id := from; id < from+n; id++ {
		if rec, ok := st.Record(id); ok {
			out = append(out, rec)
		}
	}
	return out
}
