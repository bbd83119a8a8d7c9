// Package treasury implements the buyback-and-burn engine. Sign fees
// accumulate in the treasury's native balance; once the balance reaches
// the threshold it is swapped for tokens through a Venue and the acquired
// tokens are moved to the burn address.
package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/signtoken/pkg/types"
)

var (
	// ErrSwapFailed aborts the sign that triggered the buyback.
	ErrSwapFailed = errors.New("swap failed")
	// ErrNoVenue is wrapped by ErrSwapFailed when no venue is configured.
	ErrNoVenue = errors.New("no exchange venue configured")
	// ErrEmptyReserve is wrapped by ErrSwapFailed when the venue account
	// holds no tokens on the ledger.
	ErrEmptyReserve = errors.New("venue account holds no tokens")
	// ErrOverflow is returned when the native balance would overflow.
	ErrOverflow = errors.New("treasury balance overflow")
)

// Venue is the exchange the treasury buys tokens on.
type Venue interface {
	// Account is the ledger account holding the venue's token reserve.
	Account() types.Address
	// SwapExactNativeForTokens spends amountIn native units along route
	// and returns the tokens acquired. deadline is a unix timestamp.
	SwapExactNativeForTokens(ctx context.Context, amountIn types.Amount, route []string, deadline uint64) (types.Amount, error)
}

// State is the treasury's ledger state.
type State struct {
	NativeBalance types.Amount `json:"nativeBalance"`
	TotalSwapped  types.Amount `json:"totalSwapped"`
	TotalBurned   types.Amount `json:"totalBurned"`
	Buybacks      uint64       `json:"buybacks"`
}

// Store is the mutable view a buyback writes into.
type Store interface {
	Treasury() State
	SetTreasury(State)
	Balance(addr types.Address) types.Amount
	SetBalance(addr types.Address, amount types.Amount)
}

// Rules are the treasury's genesis parameters.
type Rules struct {
	Threshold      types.Amount
	Route          []string
	DeadlineWindow uint64 // seconds
}

// Buyback describes one executed swap-and-burn.
type Buyback struct {
	AmountIn types.Amount  `json:"amountIn"`
	Burned   types.Amount  `json:"burned"`
	Venue    types.Address `json:"venue"`
	Deadline uint64        `json:"deadline"`
}

// Engine runs buybacks against a Store. It holds no state of its own.
type Engine struct {
	rules  Rules
	venue  Venue
	logger zerolog.Logger
}

// New creates an engine. venue may be nil, in which case every buyback
// fails with ErrSwapFailed.
func New(rules Rules, venue Venue, logger zerolog.Logger) *Engine {
	return &Engine{rules: rules, venue: venue, logger: logger}
}

// Rules returns the engine's parameters.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Venue returns the configured venue, or nil.
func (e *Engine) Venue() Venue {
	return e.venue
}

// Deposit adds a sign fee to the native balance.
func (e *Engine) Deposit(st Store, amount types.Amount) error {
	s := st.Treasury()
	bal, overflow := s.NativeBalance.Add(amount)
	if overflow {
		return ErrOverflow
	}
	s.NativeBalance = bal
	st.SetTreasury(s)
	return nil
}

// CheckAndBurn runs a buyback if the native balance has reached the
// threshold. It returns nil, nil when below threshold. On error st may
// hold partial writes; the caller must discard it.
func (e *Engine) CheckAndBurn(ctx context.Context, st Store, blockTime uint64) (*Buyback, error) {
	s := st.Treasury()
	if s.NativeBalance.Lt(e.rules.Threshold) {
		return nil, nil
	}
	if e.venue == nil {
		return nil, fmt.Errorf("%w: %w", ErrSwapFailed, ErrNoVenue)
	}

	// Acquired tokens leave the venue's reserve for the burn address. An
	// empty reserve can never cover a swap, so the venue is not called.
	from := e.venue.Account()
	if st.Balance(from).IsZero() {
		return nil, fmt.Errorf("%w: %w: %s", ErrSwapFailed, ErrEmptyReserve, from)
	}

	amountIn := s.NativeBalance
	s.NativeBalance = types.Amount{}
	st.SetTreasury(s)

	deadline := blockTime + e.rules.DeadlineWindow
	acquired, err := e.venue.SwapExactNativeForTokens(ctx, amountIn, e.rules.Route, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSwapFailed, err)
	}
	if acquired.IsZero() {
		return nil, fmt.Errorf("%w: venue returned no tokens", ErrSwapFailed)
	}

	remaining, underflow := st.Balance(from).Sub(acquired)
	if underflow {
		return nil, fmt.Errorf("%w: venue account %s holds %s, swap returned %s",
			ErrSwapFailed, from, st.Balance(from), acquired)
	}
	burned, overflow := st.Balance(types.BurnAddress).Add(acquired)
	if overflow {
		return nil, fmt.Errorf("%w: burn balance overflow", ErrSwapFailed)
	}
	st.SetBalance(from, remaining)
	st.SetBalance(types.BurnAddress, burned)

	s.TotalSwapped, _ = s.TotalSwapped.Add(amountIn)
	s.TotalBurned, _ = s.TotalBurned.Add(acquired)
	s.Buybacks++
	st.SetTreasury(s)

	e.logger.Info().
		Str("amount_in", amountIn.Format()).
		Str("burned", acquired.Format()).
		Str("venue", from.String()).
		Msg("Treasury buyback executed")

	return &Buyback{
		AmountIn: amountIn,
		Burned:   acquired,
		Venue:    from,
		Deadline: deadline,
	}, nil
}
