// Package exchange provides the venues the treasury swaps through: an
// in-process constant-product pool for local networks and tests, and a
// JSON-RPC client for a remote exchange.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/signtoken/internal/storage"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// Pool errors.
var (
	ErrExpired                  = errors.New("EXPIRED")
	ErrInvalidPath              = errors.New("INVALID_PATH")
	ErrInsufficientInputAmount  = errors.New("INSUFFICIENT_INPUT_AMOUNT")
	ErrInsufficientOutputAmount = errors.New("INSUFFICIENT_OUTPUT_AMOUNT")
	ErrInsufficientLiquidity    = errors.New("INSUFFICIENT_LIQUIDITY")
	ErrOverflow                 = errors.New("OVERFLOW")
)

const bpsDenominator = 10_000

var reservesKey = []byte("pool/reserves")

// Reserves are the pool's balances on both sides.
type Reserves struct {
	Token  types.Amount `json:"token"`
	Native types.Amount `json:"native"`
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Account holds the pool's token reserve on the ledger.
	Account      types.Address
	NativeSymbol string
	TokenSymbol  string
	FeeBps       uint64
}

// Pool is a constant-product (x*y=k) native/token pool with a swap fee
// taken from the input, in the manner of a Uniswap v2 pair.
type Pool struct {
	mu       sync.Mutex
	cfg      PoolConfig
	reserves Reserves
	db       *storage.PrefixDB
	now      func() uint64
	logger   zerolog.Logger
}

// NewPool opens the pool stored in db under the "venue/" namespace. db may
// be nil for a purely in-memory pool.
func NewPool(cfg PoolConfig, db storage.DB, logger zerolog.Logger) (*Pool, error) {
	if cfg.FeeBps >= bpsDenominator {
		return nil, fmt.Errorf("pool fee %d bps out of range", cfg.FeeBps)
	}
	p := &Pool{
		cfg:    cfg,
		now:    func() uint64 { return uint64(time.Now().Unix()) },
		logger: logger,
	}
	if db != nil {
		p.db = storage.NewPrefixDB(db, []byte("venue/"))
		data, err := p.db.Get(reservesKey)
		switch {
		case err == nil:
			r, err := decodeReserves(data)
			if err != nil {
				return nil, fmt.Errorf("load pool reserves: %w", err)
			}
			p.reserves = r
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, fmt.Errorf("load pool reserves: %w", err)
		}
	}
	return p, nil
}

// SetClock replaces the pool's time source. Used by tests.
func (p *Pool) SetClock(now func() uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// Account returns the ledger account holding the token reserve.
func (p *Pool) Account() types.Address {
	return p.cfg.Account
}

// Reserves returns the current reserves.
func (p *Pool) Reserves() Reserves {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserves
}

// AddLiquidity adds to both reserves and persists them immediately. It is
// environment setup: the matching token balance must already sit in the
// pool's ledger account.
func (p *Pool) AddLiquidity(token, native types.Amount) (Reserves, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token.IsZero() || native.IsZero() {
		return p.reserves, ErrInsufficientInputAmount
	}
	t, o1 := p.reserves.Token.Add(token)
	n, o2 := p.reserves.Native.Add(native)
	if o1 || o2 {
		return p.reserves, ErrOverflow
	}
	p.reserves = Reserves{Token: t, Native: n}
	if p.db != nil {
		if err := p.db.Put(reservesKey, encodeReserves(p.reserves)); err != nil {
			return p.reserves, fmt.Errorf("persist reserves: %w", err)
		}
	}
	p.logger.Info().
		Str("token", token.Format()).
		Str("native", native.Format()).
		Msg("Pool liquidity added")
	return p.reserves, nil
}

// GetAmountOut returns the output of swapping amountIn against the given
// reserves with a fee of feeBps taken from the input:
//
//	out = in*(10000-fee)*reserveOut / (reserveIn*10000 + in*(10000-fee))
func GetAmountOut(amountIn, reserveIn, reserveOut types.Amount, feeBps uint64) (types.Amount, error) {
	if amountIn.IsZero() {
		return types.Amount{}, ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return types.Amount{}, ErrInsufficientLiquidity
	}
	inWithFee, o1 := amountIn.MulUint64(bpsDenominator - feeBps)
	numerator, o2 := inWithFee.Mul(reserveOut)
	scaledIn, o3 := reserveIn.MulUint64(bpsDenominator)
	denominator, o4 := scaledIn.Add(inWithFee)
	if o1 || o2 || o3 || o4 {
		return types.Amount{}, ErrOverflow
	}
	return numerator.Div(denominator), nil
}

// Quote returns the tokens a swap of amountIn native would yield now.
func (p *Pool) Quote(amountIn types.Amount) (types.Amount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return GetAmountOut(amountIn, p.reserves.Native, p.reserves.Token, p.cfg.FeeBps)
}

// SwapExactNativeForTokens swaps amountIn native units for tokens along
// route, which must be [native, token].
func (p *Pool) SwapExactNativeForTokens(ctx context.Context, amountIn types.Amount, route []string, deadline uint64) (types.Amount, error) {
	if err := ctx.Err(); err != nil {
		return types.Amount{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if deadline < p.now() {
		return types.Amount{}, ErrExpired
	}
	if len(route) != 2 || route[0] != p.cfg.NativeSymbol || route[1] != p.cfg.TokenSymbol {
		return types.Amount{}, fmt.Errorf("%w: %v", ErrInvalidPath, route)
	}

	out, err := GetAmountOut(amountIn, p.reserves.Native, p.reserves.Token, p.cfg.FeeBps)
	if err != nil {
		return types.Amount{}, err
	}
	if out.IsZero() {
		return types.Amount{}, ErrInsufficientOutputAmount
	}

	native, overflow := p.reserves.Native.Add(amountIn)
	if overflow {
		return types.Amount{}, ErrOverflow
	}
	token, _ := p.reserves.Token.Sub(out) // out < reserve by construction
	p.reserves = Reserves{Token: token, Native: native}

	p.logger.Debug().
		Str("in", amountIn.Format()).
		Str("out", out.Format()).
		Str("reserve_token", token.Format()).
		Str("reserve_native", native.Format()).
		Msg("Pool swap")
	return out, nil
}

// Checkpoint captures the reserves. Calling restore rolls the pool back,
// which the ledger does when the call that swapped is discarded.
func (p *Pool) Checkpoint() (restore func()) {
	p.mu.Lock()
	saved := p.reserves
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.reserves = saved
		p.mu.Unlock()
	}
}

// Flush writes the reserves into b, a batch of the shared root DB, so
// they commit together with the ledger state.
func (p *Pool) Flush(b storage.Batch) error {
	if p.db == nil {
		return nil
	}
	p.mu.Lock()
	data := encodeReserves(p.reserves)
	p.mu.Unlock()
	return p.db.WrapBatch(b).Put(reservesKey, data)
}

func encodeReserves(r Reserves) []byte {
	t := r.Token.Bytes32()
	n := r.Native.Bytes32()
	out := make([]byte, 0, 64)
	out = append(out, t[:]...)
	return append(out, n[:]...)
}

func decodeReserves(data []byte) (Reserves, error) {
	if len(data) != 64 {
		return Reserves{}, fmt.Errorf("reserves record is %d bytes, want 64", len(data))
	}
	t, _ := types.AmountFromBytes(data[:32])
	n, _ := types.AmountFromBytes(data[32:])
	return Reserves{Token: t, Native: n}, nil
}
