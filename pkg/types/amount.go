package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional decimal digits carried by every
// Amount. 1 unit = 10^18 base units.
const Decimals = 18

// Amount is an unsigned 256-bit fixed-point value scaled by 10^18.
// The zero value is 0 and Amounts are safe to copy.
type Amount struct {
	v uint256.Int
}

// Unit is 1.0 expressed as an Amount.
var Unit = NewAmount(1_000_000_000_000_000_000)

// NewAmount returns an Amount holding n base units.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Units returns n whole units (n * 10^18 base units). The product always
// fits in 256 bits.
func Units(n uint64) Amount {
	out, _ := Unit.MulUint64(n)
	return out
}

// AmountFromBig converts a non-negative big.Int of base units.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount must not be negative")
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, fmt.Errorf("amount overflows 256 bits")
	}
	return Amount{v: *v}, nil
}

// ParseBaseUnits parses an integer string of base units, e.g.
// "1000000000000000000".
func ParseBaseUnits(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return AmountFromBig(b)
}

// ParseAmount parses a human-readable decimal such as "0.01" or "1000"
// into base units. More than 18 fractional digits is an error.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount must not be negative")
	}
	scaled := d.Shift(Decimals)
	if !scaled.Truncate(0).Equal(scaled) {
		return Amount{}, fmt.Errorf("amount %q has more than %d decimals", s, Decimals)
	}
	return AmountFromBig(scaled.BigInt())
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is 0.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Lt reports whether a < b.
func (a Amount) Lt(b Amount) bool {
	return a.v.Lt(&b.v)
}

// Eq reports whether a == b.
func (a Amount) Eq(b Amount) bool {
	return a.v.Eq(&b.v)
}

// Add returns a+b and whether the sum overflowed.
func (a Amount) Add(b Amount) (Amount, bool) {
	var out Amount
	_, overflow := out.v.AddOverflow(&a.v, &b.v)
	return out, overflow
}

// Sub returns a-b and whether it underflowed.
func (a Amount) Sub(b Amount) (Amount, bool) {
	var out Amount
	_, underflow := out.v.SubOverflow(&a.v, &b.v)
	return out, underflow
}

// Mul returns a*b (raw base-unit product) and whether it overflowed.
func (a Amount) Mul(b Amount) (Amount, bool) {
	var out Amount
	_, overflow := out.v.MulOverflow(&a.v, &b.v)
	return out, overflow
}

// MulUint64 returns a*n and whether it overflowed.
func (a Amount) MulUint64(n uint64) (Amount, bool) {
	return a.Mul(NewAmount(n))
}

// Div returns a/b rounded down. Division by zero returns 0.
func (a Amount) Div(b Amount) Amount {
	var out Amount
	out.v.Div(&a.v, &b.v)
	return out
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// Big returns the value as a new big.Int of base units.
func (a Amount) Big() *big.Int {
	return a.v.ToBig()
}

// String returns the base-unit integer, e.g. "1000000000000000000".
func (a Amount) String() string {
	return a.v.ToBig().String()
}

// Format returns the human-readable decimal, e.g. "1" or "0.01".
func (a Amount) Format() string {
	return decimal.NewFromBigInt(a.v.ToBig(), -Decimals).String()
}

// Bytes32 returns the big-endian 32-byte encoding used by storage.
func (a Amount) Bytes32() [32]byte {
	return a.v.Bytes32()
}

// AmountFromBytes decodes a big-endian encoding of up to 32 bytes.
func AmountFromBytes(b []byte) (Amount, error) {
	if len(b) > 32 {
		return Amount{}, fmt.Errorf("amount encoding too long: %d bytes", len(b))
	}
	var a Amount
	a.v.SetBytes(b)
	return a, nil
}

// MarshalJSON encodes the amount as a base-unit decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a base-unit decimal string or a bare integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseBaseUnits(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
