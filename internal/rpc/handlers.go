package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/signtoken/config"
	"github.com/Klingon-tech/signtoken/internal/issuance"
	"github.com/Klingon-tech/signtoken/internal/ledger"
	"github.com/Klingon-tech/signtoken/internal/registry"
	"github.com/Klingon-tech/signtoken/internal/treasury"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ledgerError maps a ledger error to its JSON-RPC error.
func ledgerError(err error) *Error {
	switch {
	case errors.Is(err, registry.ErrInsufficientPayment):
		return &Error{Code: CodeInsufficientPayment, Message: err.Error()}
	case errors.Is(err, issuance.ErrNoProductivity):
		return &Error{Code: CodeNoProductivity, Message: err.Error(), Data: ErrorData{Reason: issuance.CodeNoProductivity}}
	case errors.Is(err, treasury.ErrSwapFailed):
		return &Error{Code: CodeSwapFailed, Message: err.Error()}
	case errors.Is(err, ledger.ErrBadNonce), errors.Is(err, ledger.ErrBurnCaller):
		return &Error{Code: CodeUnauthorized, Message: err.Error()}
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, ledger.ErrReceiptNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, registry.ErrNameTooLong), errors.Is(err, registry.ErrInvalidName),
		errors.Is(err, ledger.ErrNotPayable), errors.Is(err, ledger.ErrTooManyBlocks):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

func parseAddress(s string) (types.Address, *Error) {
	if s == "" {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid address: %v", err)}
	}
	return addr, nil
}

// ── Ledger endpoints ────────────────────────────────────────────────────

func (s *Server) handleLedgerGetInfo(req *Request) (interface{}, *Error) {
	head := s.ledger.Head()
	gen := s.ledger.Genesis()
	return &InfoResult{
		NetworkID:   gen.NetworkID,
		Version:     config.Version,
		GenesisHash: s.ledger.GenesisHash(),
		Height:      head.Height,
		Time:        head.Time,
		StateRoot:   head.StateRoot,
		NextSignID:  s.ledger.NextSignID(),
		Symbol:      gen.Token.Symbol,
		Dev:         s.dev,
	}, nil
}

func (s *Server) handleLedgerGetReceipt(req *Request) (interface{}, *Error) {
	var params HeightParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	r, err := s.ledger.Receipt(params.Height)
	if err != nil {
		return nil, ledgerError(err)
	}
	return r, nil
}

func (s *Server) handleLedgerMine(req *Request) (interface{}, *Error) {
	params := MineParam{Blocks: 1}
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	head, err := s.ledger.Mine(params.Blocks)
	if err != nil {
		return nil, ledgerError(err)
	}
	return head, nil
}

// ── Registry endpoints ──────────────────────────────────────────────────

func (s *Server) handleRegistrySign(ctx context.Context, req *Request) (interface{}, *Error) {
	var params SignParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	from, err := params.Auth.verify(s.ledger.GenesisHash(), req.Method, params.Call)
	if err != nil {
		return nil, &Error{Code: CodeUnauthorized, Message: err.Error()}
	}

	nonce := params.Auth.Nonce
	res, err := s.ledger.Sign(ctx, ledger.Call{From: from, Value: params.Call.Value, Nonce: &nonce}, params.Call.Name)
	if err != nil {
		return nil, ledgerError(err)
	}
	return res, nil
}

func (s *Server) handleRegistryNextSignID(req *Request) (interface{}, *Error) {
	return &NextSignIDResult{NextSignID: s.ledger.NextSignID()}, nil
}

func (s *Server) handleRegistryGetName(req *Request) (interface{}, *Error) {
	var params IDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	name, err := s.ledger.NameBySignID(params.ID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return &NameResult{ID: params.ID, Name: name}, nil
}

func (s *Server) handleRegistryGetRecord(req *Request) (interface{}, *Error) {
	var params IDParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	rec, err := s.ledger.Record(params.ID)
	if err != nil {
		return nil, ledgerError(err)
	}
	return rec, nil
}

func (s *Server) handleRegistryList(req *Request) (interface{}, *Error) {
	var params ListParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	recs := s.ledger.Records(params.From, params.Limit)
	if recs == nil {
		recs = []registry.Record{}
	}
	return &RecordListResult{Records: recs, NextSignID: s.ledger.NextSignID()}, nil
}

// ── Token endpoints ─────────────────────────────────────────────────────

func (s *Server) handleTokenClaim(ctx context.Context, req *Request) (interface{}, *Error) {
	var params ClaimParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	from, err := params.Auth.verify(s.ledger.GenesisHash(), req.Method, params.Call)
	if err != nil {
		return nil, &Error{Code: CodeUnauthorized, Message: err.Error()}
	}

	nonce := params.Auth.Nonce
	res, err := s.ledger.Claim(ctx, ledger.Call{From: from, Nonce: &nonce})
	if err != nil {
		return nil, ledgerError(err)
	}
	return res, nil
}

func (s *Server) handleTokenBalanceOf(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &BalanceResult{Address: addr, Balance: s.ledger.BalanceOf(addr)}, nil
}

func (s *Server) handleTokenAmountPerBlock(req *Request) (interface{}, *Error) {
	return &AmountResult{Amount: s.ledger.AmountPerBlock()}, nil
}

func (s *Server) handleTokenGetSupply(req *Request) (interface{}, *Error) {
	info := s.ledger.Supply()
	return &info, nil
}

// ── Treasury / account endpoints ────────────────────────────────────────

func (s *Server) handleTreasuryGetInfo(req *Request) (interface{}, *Error) {
	info := s.ledger.Treasury()
	return &info, nil
}

func (s *Server) handleAccountGet(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acct := s.ledger.Account(addr)
	return &acct, nil
}

// ── Venue endpoints ─────────────────────────────────────────────────────

func (s *Server) handleVenueGetReserves(req *Request) (interface{}, *Error) {
	if s.pool == nil {
		return nil, &Error{Code: CodeNotFound, Message: "no local pool"}
	}
	r := s.pool.Reserves()
	return &r, nil
}

func (s *Server) handleVenueQuote(req *Request) (interface{}, *Error) {
	if s.pool == nil {
		return nil, &Error{Code: CodeNotFound, Message: "no local pool"}
	}
	var params QuoteParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	out, err := s.pool.Quote(params.AmountIn)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	}
	return &QuoteResult{AmountIn: params.AmountIn, AmountOut: out}, nil
}
