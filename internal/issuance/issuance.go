// Package issuance implements the capped per-claim token schedule.
//
// Supply moves through two phases. While Minting, every successful claim
// grants AmountPerBlock, clamped to the headroom left under Max. The claim
// that brings Total to Max latches Exhausted, and from then on every claim
// fails with ErrNoProductivity.
package issuance

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/signtoken/pkg/types"
)

// CodeNoProductivity is the stable identifier surfaced with
// ErrNoProductivity.
const CodeNoProductivity = "NO_PRODUCTIVITY"

var (
	// ErrNoProductivity is returned by claims once issuance has ended.
	ErrNoProductivity = errors.New(CodeNoProductivity)
	// ErrExceedsMaxSupply is returned when a mint would pass Max.
	ErrExceedsMaxSupply = errors.New("mint exceeds max supply")
	// ErrOverflow is returned when a balance would overflow 256 bits.
	ErrOverflow = errors.New("balance overflow")
)

// Phase is the issuance state: Minting or Exhausted.
type Phase interface {
	isPhase()
	String() string
}

// Minting grants AmountPerBlock per successful claim.
type Minting struct {
	AmountPerBlock types.Amount
}

// Exhausted is terminal: no further issuance.
type Exhausted struct{}

func (Minting) isPhase()         {}
func (Exhausted) isPhase()       {}
func (Minting) String() string   { return "minting" }
func (Exhausted) String() string { return "exhausted" }

// Supply is the token's issuance state.
type Supply struct {
	Total types.Amount
	Max   types.Amount
	Phase Phase
}

// NewSupply starts issuance at zero total.
func NewSupply(max, amountPerBlock types.Amount) Supply {
	return Supply{Max: max, Phase: Minting{AmountPerBlock: amountPerBlock}}
}

// Exhausted reports whether the latch has fired.
func (s Supply) Exhausted() bool {
	_, ok := s.Phase.(Exhausted)
	return ok
}

// AmountPerBlock returns the per-claim grant, or zero once exhausted.
func (s Supply) AmountPerBlock() types.Amount {
	if m, ok := s.Phase.(Minting); ok {
		return m.AmountPerBlock
	}
	return types.Amount{}
}

// Headroom returns Max - Total.
func (s Supply) Headroom() types.Amount {
	h, underflow := s.Max.Sub(s.Total)
	if underflow {
		return types.Amount{}
	}
	return h
}

// Mint adds amount to Total, latching Exhausted when Max is reached.
// Used for genesis allocations and by claims.
func (s Supply) Mint(amount types.Amount) (Supply, error) {
	if s.Headroom().Lt(amount) {
		return s, fmt.Errorf("%w: mint %s, headroom %s", ErrExceedsMaxSupply, amount, s.Headroom())
	}
	total, _ := s.Total.Add(amount)
	s.Total = total
	if s.Total.Eq(s.Max) {
		s.Phase = Exhausted{}
	}
	return s, nil
}

// Grant is the outcome of a planned claim.
type Grant struct {
	Amount types.Amount
	// Elapsed is the number of blocks since the caller's last claim.
	// Reported only; the grant does not scale with it.
	Elapsed uint64
}

// Plan computes the grant for a claim at height by an account whose last
// claim was at lastClaim. It does not mutate s.
func (s Supply) Plan(lastClaim, height uint64) (Grant, error) {
	m, ok := s.Phase.(Minting)
	if !ok {
		return Grant{}, ErrNoProductivity
	}
	amount := types.Min(m.AmountPerBlock, s.Headroom())
	if amount.IsZero() {
		return Grant{}, ErrNoProductivity
	}
	var elapsed uint64
	if height > lastClaim {
		elapsed = height - lastClaim
	}
	return Grant{Amount: amount, Elapsed: elapsed}, nil
}

// Store is the mutable view a claim writes into.
type Store interface {
	Supply() Supply
	SetSupply(Supply)
	Balance(addr types.Address) types.Amount
	SetBalance(addr types.Address, amount types.Amount)
	LastClaimBlock(addr types.Address) uint64
	SetLastClaimBlock(addr types.Address, height uint64)
}

// Result describes a successful claim.
type Result struct {
	Grant
	Balance   types.Amount // caller balance after the claim
	Total     types.Amount // total supply after the claim
	Exhausted bool         // this claim latched Exhausted
}

// Claim mints one grant to caller at height. A failed claim leaves st
// untouched.
func Claim(st Store, caller types.Address, height uint64) (Result, error) {
	supply := st.Supply()
	grant, err := supply.Plan(st.LastClaimBlock(caller), height)
	if err != nil {
		return Result{}, err
	}

	balance, overflow := st.Balance(caller).Add(grant.Amount)
	if overflow {
		return Result{}, ErrOverflow
	}
	next, err := supply.Mint(grant.Amount)
	if err != nil {
		return Result{}, err
	}

	st.SetBalance(caller, balance)
	st.SetLastClaimBlock(caller, height)
	st.SetSupply(next)

	return Result{
		Grant:     grant,
		Balance:   balance,
		Total:     next.Total,
		Exhausted: next.Exhausted() && !supply.Exhausted(),
	}, nil
}
