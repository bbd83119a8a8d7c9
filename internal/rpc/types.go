package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/pkg/crypto"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000

	CodeInsufficientPayment = -32010
	CodeNoProductivity      = -32011
	CodeSwapFailed          = -32012
	CodeUnauthorized        = -32013
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData is attached to errors that carry a machine-readable reason.
type ErrorData struct {
	Reason string `json:"reason"`
}

// ── Param types ─────────────────────────────────────────────────────────

// IDParam is used by endpoints that take a sign id.
type IDParam struct {
	ID uint64 `json:"id"`
}

// HeightParam is used by ledger_getReceipt.
type HeightParam struct {
	Height uint64 `json:"height"`
}

// AddressParam is used by token_balanceOf and account_get.
type AddressParam struct {
	Address string `json:"address"`
}

// ListParam pages through registry records.
type ListParam struct {
	From  uint64 `json:"from"`
	Limit int    `json:"limit,omitempty"`
}

// MineParam is used by ledger_mine.
type MineParam struct {
	Blocks uint64 `json:"blocks"`
}

// QuoteParam is used by venue_quote.
type QuoteParam struct {
	AmountIn types.Amount `json:"amountIn"`
}

// ── Authenticated calls ─────────────────────────────────────────────────

// SignCall is the signed body of registry_sign. Value is the native
// payment attached to the call, in base units.
type SignCall struct {
	Name  string       `json:"name"`
	Value types.Amount `json:"value"`
}

// ClaimCall is the signed body of token_claim.
type ClaimCall struct{}

// Auth proves who makes a call. Signature is a Schnorr signature over
// crypto.CallDigest(genesis hash, method, canonical call JSON, Nonce).
type Auth struct {
	PubKey    string `json:"pubkey"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// SignParams is the params object of registry_sign.
type SignParams struct {
	Call SignCall `json:"call"`
	Auth Auth     `json:"auth"`
}

// ClaimParams is the params object of token_claim.
type ClaimParams struct {
	Call ClaimCall `json:"call"`
	Auth Auth      `json:"auth"`
}

var errSignatureMismatch = errors.New("signature does not match call")

// canonicalCall is the byte string a caller signs for call.
func canonicalCall(call interface{}) ([]byte, error) {
	return json.Marshal(call)
}

// NewAuth signs call for method with key at the given account nonce, for
// the ledger whose genesis hashes to genesis.
func NewAuth(key *crypto.PrivateKey, genesis types.Hash, method string, call interface{}, nonce uint64) (Auth, error) {
	body, err := canonicalCall(call)
	if err != nil {
		return Auth{}, fmt.Errorf("encode call: %w", err)
	}
	sig, err := key.Sign(crypto.CallDigest(genesis, method, body, nonce))
	if err != nil {
		return Auth{}, err
	}
	return Auth{
		PubKey:    hex.EncodeToString(key.PublicKey()),
		Nonce:     nonce,
		Signature: hex.EncodeToString(sig),
	}, nil
}

// verify checks a against call on the ledger with the given genesis hash
// and returns the caller's address.
func (a Auth) verify(genesis types.Hash, method string, call interface{}) (types.Address, error) {
	pub, err := hex.DecodeString(strings.TrimPrefix(a.PubKey, "0x"))
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid pubkey: %w", err)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(a.Signature, "0x"))
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid signature: %w", err)
	}
	body, err := canonicalCall(call)
	if err != nil {
		return types.Address{}, err
	}
	if !crypto.VerifySignature(crypto.CallDigest(genesis, method, body, a.Nonce), sig, pub) {
		return types.Address{}, errSignatureMismatch
	}
	return crypto.AddressFromPubKey(pub), nil
}

// ── Result types ────────────────────────────────────────────────────────

// InfoResult is returned by ledger_getInfo.
type InfoResult struct {
	NetworkID   string     `json:"networkId"`
	Version     string     `json:"version"`
	GenesisHash types.Hash `json:"genesisHash"`
	Height      uint64     `json:"height"`
	Time        uint64     `json:"time"`
	StateRoot   types.Hash `json:"stateRoot"`
	NextSignID  uint64     `json:"nextSignId"`
	Symbol      string     `json:"symbol"`
	Dev         bool       `json:"dev"`
}

// NextSignIDResult is returned by registry_nextSignId.
type NextSignIDResult struct {
	NextSignID uint64 `json:"nextSignId"`
}

// NameResult is returned by registry_getName.
type NameResult struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// RecordListResult is returned by registry_list.
type RecordListResult struct {
	Records    []registry.Record `json:"records"`
	NextSignID uint64            `json:"nextSignId"`
}

// BalanceResult is returned by token_balanceOf.
type BalanceResult struct {
	Address types.Address `json:"address"`
	Balance types.Amount  `json:"balance"`
}

// AmountResult is returned by token_amountPerBlock.
type AmountResult struct {
	Amount types.Amount `json:"amount"`
}

// QuoteResult is returned by venue_quote.
type QuoteResult struct {
	AmountIn  types.Amount `json:"amountIn"`
	AmountOut types.Amount `json:"amountOut"`
}
