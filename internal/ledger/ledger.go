// Package ledger is the execution environment for the sign token: it
// serializes calls, stages each one in a txn, and seals every successful
// call into a new block with a receipt. A failed call changes nothing.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/signtoken/config"
	"github.com/Klingon-tech/signtoken/internal/issuance"
	klog "github.com/Klingon-tech/signtoken/internal/log"
	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/internal/storage"
	"github.com/Klingon-tech/signtoken/internal/treasury"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// MaxMineBlocks bounds a single Mine call.
const MaxMineBlocks = 10_000

// Ledger errors.
var (
	ErrBadNonce         = errors.New("bad nonce")
	ErrBurnCaller       = errors.New("the burn address cannot make calls")
	ErrNotPayable       = errors.New("call does not accept value")
	ErrReceiptNotFound  = errors.New("receipt not found")
	ErrGenesisMismatch  = errors.New("database was created with a different genesis")
	ErrTooManyBlocks    = errors.New("too many blocks")
	ErrInvariantBroken  = errors.New("ledger invariant broken")
	errNilGenesisConfig = errors.New("genesis is nil")
)

// JournaledVenue is a venue whose state can join the ledger's commit: the
// ledger checkpoints it before each call, restores it if the call is
// discarded and flushes it into the same storage batch when it commits.
type JournaledVenue interface {
	treasury.Venue
	Checkpoint() (restore func())
	Flush(b storage.Batch) error
}

// Call carries who makes a state-changing call and what it pays.
type Call struct {
	From  types.Address
	Value types.Amount // native value attached
	// Nonce, when set, must equal the caller's account nonce.
	Nonce *uint64
}

// Options configures Open.
type Options struct {
	Genesis *config.Genesis
	// DB is the root database. The ledger keeps its state under the
	// "ledger/" namespace. Nil means a fresh in-memory database.
	DB    storage.DB
	Venue treasury.Venue // nil disables buybacks
	// Now is the block clock. Defaults to time.Now.
	Now func() time.Time
}

// Ledger owns all token, registry and treasury state.
type Ledger struct {
	mu sync.RWMutex // serializes calls; readers take the read lock

	genesis     *config.Genesis
	genesisHash types.Hash
	root        storage.DB
	db          *storage.PrefixDB
	state       *state

	registry *registry.Registry
	engine   *treasury.Engine
	now      func() time.Time
	logger   zerolog.Logger
}

// Open loads the ledger from opts.DB, initializing it from genesis on
// first use.
func Open(opts Options) (*Ledger, error) {
	gen := opts.Genesis
	if gen == nil {
		return nil, errNilGenesisConfig
	}
	if err := gen.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	genHash, err := gen.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash genesis: %w", err)
	}
	policy, err := registry.ParseFeePolicy(gen.Registry.FeePolicy)
	if err != nil {
		return nil, err
	}

	root := opts.DB
	if root == nil {
		root = storage.NewMemory()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	l := &Ledger{
		genesis:     gen,
		genesisHash: genHash,
		root:        root,
		db:          storage.NewPrefixDB(root, []byte("ledger/")),
		registry: registry.New(registry.Rules{
			Fee:           gen.Registry.SignFee,
			Policy:        policy,
			MaxNameLength: gen.Registry.MaxNameLength,
		}),
		engine: treasury.New(treasury.Rules{
			Threshold:      gen.Treasury.Threshold,
			Route:          gen.Treasury.Route,
			DeadlineWindow: gen.Treasury.DeadlineWindow,
		}, opts.Venue, klog.Treasury),
		now:    now,
		logger: klog.Ledger,
	}

	stored, ok, err := loadGenesisHash(l.db)
	if err != nil {
		return nil, fmt.Errorf("load genesis hash: %w", err)
	}
	if ok {
		if stored != genHash {
			return nil, fmt.Errorf("%w: stored %s, configured %s", ErrGenesisMismatch, stored, genHash)
		}
		st, err := loadState(l.db)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		l.state = st
	} else if err := l.initGenesis(); err != nil {
		return nil, fmt.Errorf("init genesis: %w", err)
	}

	if err := l.checkInvariants(); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("network", gen.NetworkID).
		Uint64("height", l.state.head.Height).
		Uint64("next_sign_id", l.state.NextSignID()).
		Str("total_supply", l.state.supply.Total.Format()).
		Msg("Ledger opened")
	return l, nil
}

// initGenesis seals block 0: allocations, the venue's seed reserve and
// the initial supply.
func (l *Ledger) initGenesis() error {
	gen := l.genesis
	l.state = newState()
	l.state.supply = issuance.NewSupply(gen.Token.MaxSupply, gen.Token.AmountPerBlock)

	tx := newTxn(l.state, 0, gen.Timestamp)
	allocs, err := gen.Allocations()
	if err != nil {
		return err
	}
	if !gen.Venue.PoolTokens.IsZero() {
		allocs = append(allocs, config.Allocation{Address: gen.VenueAddress(), Amount: gen.Venue.PoolTokens})
	}
	for _, a := range allocs {
		supply, err := tx.supply.Mint(a.Amount)
		if err != nil {
			return err
		}
		tx.supply = supply
		bal, overflow := tx.Balance(a.Address).Add(a.Amount)
		if overflow {
			return issuance.ErrOverflow
		}
		tx.SetBalance(a.Address, bal)
		tx.emit(Event{Kind: EventAllocated, Account: a.Address, Amount: a.Amount})
	}
	if tx.supply.Exhausted() {
		tx.emit(Event{Kind: EventSupplyExhausted, Amount: tx.supply.Total})
	}

	head, rcpt := l.seal(tx, OpGenesis, Call{})
	b := l.root.NewBatch()
	lb := l.db.WrapBatch(b)
	if err := writeTxn(lb, tx, head, rcpt); err != nil {
		return err
	}
	if err := lb.Put(keyGenesis, l.genesisHash[:]); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	tx.apply(head)
	return nil
}

// seal computes the head and receipt for a finished txn.
func (l *Ledger) seal(tx *txn, op string, call Call) (Head, *Receipt) {
	root := stateRoot(l.state.head.StateRoot, tx, op)
	head := Head{Height: tx.height, Time: tx.time, StateRoot: root}
	events := tx.events
	if events == nil {
		events = []Event{}
	}
	return head, &Receipt{
		Height:    tx.height,
		Time:      tx.time,
		Op:        op,
		Caller:    call.From,
		Value:     call.Value,
		Events:    events,
		StateRoot: root,
	}
}

// execute runs fn as one atomic call sealed into the next block. fn
// writes only to tx. If fn or the commit fails, tx is dropped and a
// journaled venue is rolled back.
func (l *Ledger) execute(ctx context.Context, op string, call Call, fn func(tx *txn) error) (*Receipt, error) {
	if call.From == types.BurnAddress {
		return nil, ErrBurnCaller
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx := newTxn(l.state, l.state.head.Height+1, l.blockTimeAfter(l.state.head.Time))
	acct := tx.account(call.From)
	if call.Nonce != nil && *call.Nonce != acct.Nonce {
		return nil, fmt.Errorf("%w: got %d, account nonce is %d", ErrBadNonce, *call.Nonce, acct.Nonce)
	}

	jv, journaled := l.engine.Venue().(JournaledVenue)
	restore := func() {}
	if journaled {
		restore = jv.Checkpoint()
	}

	if err := fn(tx); err != nil {
		restore()
		return nil, err
	}
	acct.Nonce++

	head, rcpt := l.seal(tx, op, call)
	b := l.root.NewBatch()
	if err := writeTxn(l.db.WrapBatch(b), tx, head, rcpt); err != nil {
		restore()
		return nil, err
	}
	if journaled {
		if err := jv.Flush(b); err != nil {
			restore()
			return nil, fmt.Errorf("flush venue: %w", err)
		}
	}
	if err := b.Commit(); err != nil {
		restore()
		return nil, fmt.Errorf("commit block %d: %w", head.Height, err)
	}
	tx.apply(head)
	return rcpt, nil
}

// SignResult is the outcome of Sign.
type SignResult struct {
	ID      uint64            `json:"id"`
	Buyback *treasury.Buyback `json:"buyback,omitempty"`
	Receipt *Receipt          `json:"receipt"`
}

// Sign registers name for call.From, paying call.Value into the treasury.
// If the treasury reaches its threshold the buyback runs inside the same
// call, and a failed buyback fails the sign.
func (l *Ledger) Sign(ctx context.Context, call Call, name string) (*SignResult, error) {
	var res SignResult
	rcpt, err := l.execute(ctx, OpSign, call, func(tx *txn) error {
		rec, err := l.registry.Sign(tx, name, call.From, call.Value, tx.height)
		if err != nil {
			return err
		}
		tx.emit(Event{Kind: EventNameSigned, Account: call.From, Amount: call.Value, SignID: rec.ID, Name: rec.Name})

		if err := l.engine.Deposit(tx, call.Value); err != nil {
			return err
		}
		bb, err := l.engine.CheckAndBurn(ctx, tx, tx.time)
		if err != nil {
			return err
		}
		if bb != nil {
			tx.emit(Event{Kind: EventBuyback, Account: bb.Venue, Amount: bb.AmountIn})
			tx.emit(Event{Kind: EventBurned, Account: types.BurnAddress, Amount: bb.Burned})
		}
		res.ID = rec.ID
		res.Buyback = bb
		return nil
	})
	if err != nil {
		l.logger.Debug().Err(err).Str("from", call.From.String()).Msg("Sign rejected")
		return nil, err
	}
	res.Receipt = rcpt
	klog.Registry.Debug().
		Uint64("id", res.ID).
		Uint64("height", rcpt.Height).
		Str("from", call.From.String()).
		Msg("Name signed")
	return &res, nil
}

// ClaimResult is the outcome of Claim.
type ClaimResult struct {
	Granted types.Amount `json:"granted"`
	Balance types.Amount `json:"balance"`
	Elapsed uint64       `json:"elapsedBlocks"`
	Receipt *Receipt     `json:"receipt"`
}

// Claim mints one grant to call.From.
func (l *Ledger) Claim(ctx context.Context, call Call) (*ClaimResult, error) {
	if !call.Value.IsZero() {
		return nil, ErrNotPayable
	}
	var res ClaimResult
	rcpt, err := l.execute(ctx, OpClaim, call, func(tx *txn) error {
		r, err := issuance.Claim(tx, call.From, tx.height)
		if err != nil {
			return err
		}
		tx.emit(Event{Kind: EventClaimed, Account: call.From, Amount: r.Amount, Elapsed: r.Elapsed})
		if r.Exhausted {
			tx.emit(Event{Kind: EventSupplyExhausted, Amount: r.Total})
			klog.Issuance.Info().Str("total", r.Total.Format()).Msg("Max supply reached, issuance stopped")
		}
		res.Granted = r.Amount
		res.Balance = r.Balance
		res.Elapsed = r.Elapsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Receipt = rcpt
	return &res, nil
}

// Mine seals n empty blocks, advancing the height.
func (l *Ledger) Mine(n uint64) (Head, error) {
	if n == 0 {
		return l.Head(), nil
	}
	if n > MaxMineBlocks {
		return Head{}, fmt.Errorf("%w: %d, max %d", ErrTooManyBlocks, n, MaxMineBlocks)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.root.NewBatch()
	lb := l.db.WrapBatch(b)
	base := *l.state
	sim := &base
	for i := uint64(0); i < n; i++ {
		tx := newTxn(sim, sim.head.Height+1, l.blockTimeAfter(sim.head.Time))
		root := stateRoot(sim.head.StateRoot, tx, OpMine)
		head := Head{Height: tx.height, Time: tx.time, StateRoot: root}
		rcpt := &Receipt{Height: tx.height, Time: tx.time, Op: OpMine, Events: []Event{}, StateRoot: root}
		if err := putJSON(lb, receiptKey(head.Height), rcpt); err != nil {
			return Head{}, err
		}
		sim.head = head
	}
	if err := putJSON(lb, keyHead, sim.head); err != nil {
		return Head{}, err
	}
	if err := b.Commit(); err != nil {
		return Head{}, fmt.Errorf("commit mined blocks: %w", err)
	}
	l.state.head = sim.head
	return sim.head, nil
}

// blockTimeAfter returns the time for a block following one at prev.
// Block time never goes backwards.
func (l *Ledger) blockTimeAfter(prev uint64) uint64 {
	t := uint64(l.now().Unix())
	if t < prev {
		return prev
	}
	return t
}

// checkInvariants verifies supply and conservation on the committed
// state: total <= max, the exhaustion latch matches the cap, and the sum
// of all balances (burn address included) equals total supply.
func (l *Ledger) checkInvariants() error {
	s := l.state.supply
	if s.Max.Lt(s.Total) {
		return fmt.Errorf("%w: total %s exceeds max %s", ErrInvariantBroken, s.Total, s.Max)
	}
	if s.Total.Eq(s.Max) != s.Exhausted() {
		return fmt.Errorf("%w: exhausted=%v with total %s of max %s", ErrInvariantBroken, s.Exhausted(), s.Total, s.Max)
	}
	var sum types.Amount
	for _, a := range l.state.accounts {
		var overflow bool
		sum, overflow = sum.Add(a.Balance)
		if overflow {
			return fmt.Errorf("%w: balance sum overflows", ErrInvariantBroken)
		}
	}
	if !sum.Eq(s.Total) {
		return fmt.Errorf("%w: balances sum to %s, total supply is %s", ErrInvariantBroken, sum, s.Total)
	}
	return nil
}

// CheckInvariants verifies the committed state.
func (l *Ledger) CheckInvariants() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checkInvariants()
}
