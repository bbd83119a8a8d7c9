package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/Klingon-tech/signtoken/pkg/crypto"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// =============================================================================
// Protocol Rules (immutable, defined in genesis)
// A ledger refuses to open its database under a different genesis.
// =============================================================================

// Fee policies for the name registry.
const (
	FeePolicyExact   = "exact"   // paid value must equal the sign fee
	FeePolicyMinimum = "minimum" // paid value must be at least the sign fee; no refund
)

// MaxNameLengthLimit bounds the configurable max_name_length.
const MaxNameLengthLimit = 4096

// DefaultPoolFeeBps is the swap fee of the local pool (0.25%).
const DefaultPoolFeeBps = 25

// Genesis holds the genesis configuration and protocol rules.
type Genesis struct {
	// Network identity
	NetworkID string `json:"network_id"`
	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	Token    TokenRules    `json:"token"`
	Registry RegistryRules `json:"registry"`
	Treasury TreasuryRules `json:"treasury"`
	Venue    VenueRules    `json:"venue"`

	// Initial token allocations (address -> balance in base units).
	// Allocations count toward total supply.
	Alloc map[string]types.Amount `json:"alloc,omitempty"`
}

// TokenRules defines the issued token and its issuance schedule.
type TokenRules struct {
	Name           string       `json:"name"`
	Symbol         string       `json:"symbol"`
	Decimals       int          `json:"decimals"`
	MaxSupply      types.Amount `json:"max_supply"`
	AmountPerBlock types.Amount `json:"amount_per_block"` // Granted per successful claim
}

// RegistryRules defines the paid name registry.
type RegistryRules struct {
	SignFee       types.Amount `json:"sign_fee"`   // Native units per sign
	FeePolicy     string       `json:"fee_policy"` // "exact" or "minimum"
	MaxNameLength int          `json:"max_name_length"`
}

// TreasuryRules defines when and how collected fees are bought back.
type TreasuryRules struct {
	Threshold      types.Amount `json:"threshold"`       // Native balance that triggers a buyback
	Route          []string     `json:"route"`           // Swap path passed to the venue
	DeadlineWindow uint64       `json:"deadline_window"` // Seconds added to block time for the swap deadline
}

// VenueRules describes the exchange venue as seen by the ledger.
type VenueRules struct {
	// Account holding the venue's token reserve on this ledger. Bought-back
	// tokens are moved from here to the burn address. Empty means the
	// network has no venue and buybacks are disabled.
	Account string `json:"account,omitempty"`

	// Initial reserves of the venue. PoolTokens is credited to Account at
	// genesis and counts toward total supply; the local pool also starts
	// from PoolTokens/PoolNative.
	PoolTokens types.Amount `json:"pool_tokens"`
	PoolNative types.Amount `json:"pool_native"`
	PoolFeeBps uint64       `json:"pool_fee_bps"`
}

// Allocation is one parsed genesis balance.
type Allocation struct {
	Address types.Address
	Amount  types.Amount
}

// Well-known venue accounts (PancakeSwap v2 router addresses).
const (
	MainnetVenueAccount = "0x10ed43c718714eb63d5aa57b78b54704e256024e"
	TestnetVenueAccount = "0xd99d1c33f9fc3444f8101754abc46c52416550d1"
)

// =============================================================================
// Pre-defined genesis configurations
// =============================================================================

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		NetworkID: "signtoken-mainnet-1",
		Timestamp: 1790000000,
		ExtraData: "SignToken Genesis",
		Token: TokenRules{
			Name:           "Sign Token",
			Symbol:         "SIGN",
			Decimals:       types.Decimals,
			MaxSupply:      types.Units(21_000_000),
			AmountPerBlock: types.Units(1),
		},
		Registry: RegistryRules{
			SignFee:       types.MustParseAmount("0.01"),
			FeePolicy:     FeePolicyExact,
			MaxNameLength: 256,
		},
		Treasury: TreasuryRules{
			Threshold:      types.Units(1),
			Route:          []string{"WBNB", "SIGN"},
			DeadlineWindow: 3600,
		},
		// The venue starts with 1000 SIGN against 10 native units.
		Venue: VenueRules{
			Account:    MainnetVenueAccount,
			PoolTokens: types.Units(1000),
			PoolNative: types.Units(10),
			PoolFeeBps: DefaultPoolFeeBps,
		},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.NetworkID = "signtoken-testnet-1"
	g.ExtraData = "SignToken Testnet Genesis"
	g.Venue.Account = TestnetVenueAccount
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// =============================================================================
// Genesis file I/O
// =============================================================================

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid. An empty
// fee_policy is normalized to "exact" and a zero pool fee to the default.
func (g *Genesis) Validate() error {
	if g.NetworkID == "" {
		return fmt.Errorf("network_id is required")
	}

	// Token
	if g.Token.Symbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if g.Token.Decimals != types.Decimals {
		return fmt.Errorf("token decimals must be %d", types.Decimals)
	}
	if g.Token.MaxSupply.IsZero() {
		return fmt.Errorf("max_supply must be positive")
	}
	if g.Token.AmountPerBlock.IsZero() {
		return fmt.Errorf("amount_per_block must be positive")
	}

	// Registry
	if g.Registry.SignFee.IsZero() {
		return fmt.Errorf("sign_fee must be positive")
	}
	switch g.Registry.FeePolicy {
	case "":
		g.Registry.FeePolicy = FeePolicyExact
	case FeePolicyExact, FeePolicyMinimum:
	default:
		return fmt.Errorf("fee_policy must be %q or %q", FeePolicyExact, FeePolicyMinimum)
	}
	if g.Registry.MaxNameLength < 1 || g.Registry.MaxNameLength > MaxNameLengthLimit {
		return fmt.Errorf("max_name_length must be between 1 and %d", MaxNameLengthLimit)
	}

	// Treasury
	if g.Treasury.Threshold.IsZero() {
		return fmt.Errorf("treasury threshold must be positive")
	}
	if len(g.Treasury.Route) < 2 {
		return fmt.Errorf("treasury route needs at least two hops")
	}

	// Venue
	if g.HasVenue() {
		venue, err := types.ParseAddress(g.Venue.Account)
		if err != nil {
			return fmt.Errorf("invalid venue account %q: %w", g.Venue.Account, err)
		}
		if venue == types.BurnAddress {
			return fmt.Errorf("venue account must not be the burn address")
		}
	} else if !g.Venue.PoolTokens.IsZero() {
		return fmt.Errorf("pool_tokens needs a venue account")
	}
	if g.Venue.PoolTokens.IsZero() != g.Venue.PoolNative.IsZero() {
		return fmt.Errorf("pool_tokens and pool_native must both be set or both be zero")
	}
	if g.Venue.PoolFeeBps == 0 {
		g.Venue.PoolFeeBps = DefaultPoolFeeBps
	}
	if g.Venue.PoolFeeBps >= 10_000 {
		return fmt.Errorf("pool_fee_bps must be below 10000")
	}

	// Allocations must parse and fit under max supply together with the
	// pool seed.
	allocs, err := g.Allocations()
	if err != nil {
		return err
	}
	total := g.Venue.PoolTokens
	for _, a := range allocs {
		var overflow bool
		total, overflow = total.Add(a.Amount)
		if overflow {
			return fmt.Errorf("genesis allocations overflow")
		}
	}
	if g.Token.MaxSupply.Lt(total) {
		return fmt.Errorf("genesis allocations (%s) exceed max_supply (%s)",
			total, g.Token.MaxSupply)
	}

	// Every buyback takes its tokens from the venue account, so a venue
	// that starts empty could never settle one.
	if g.HasVenue() && g.VenueReserve(allocs).IsZero() {
		return fmt.Errorf("venue account %s holds no tokens at genesis: set pool_tokens or an alloc",
			g.Venue.Account)
	}

	return nil
}

// HasVenue reports whether the network names a venue account.
func (g *Genesis) HasVenue() bool {
	return g.Venue.Account != ""
}

// VenueAddress returns the parsed venue account, or the zero address when
// there is none. Call Validate first.
func (g *Genesis) VenueAddress() types.Address {
	if !g.HasVenue() {
		return types.Address{}
	}
	addr, _ := types.ParseAddress(g.Venue.Account)
	return addr
}

// VenueReserve returns the tokens the venue account holds at genesis:
// the pool seed plus any allocation to it.
func (g *Genesis) VenueReserve(allocs []Allocation) types.Amount {
	reserve := g.Venue.PoolTokens
	venue := g.VenueAddress()
	for _, a := range allocs {
		if a.Address == venue {
			reserve, _ = reserve.Add(a.Amount)
		}
	}
	return reserve
}

// Allocations returns the parsed alloc entries sorted by address.
func (g *Genesis) Allocations() ([]Allocation, error) {
	out := make([]Allocation, 0, len(g.Alloc))
	for addrStr, v := range g.Alloc {
		addr, err := types.ParseAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		if addr == types.BurnAddress {
			return nil, fmt.Errorf("alloc to the burn address is not allowed")
		}
		if v.IsZero() {
			continue
		}
		out = append(out, Allocation{Address: addr, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out, nil
}

// Hash returns a BLAKE3 hash of the genesis configuration.
// Used to detect a database opened under a different genesis.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}
