package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/signtoken/internal/rpcclient"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

func venueServer(t *testing.T, handle func(p SwapParams) (interface{}, *rpcclient.RPCError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string     `json:"method"`
			Params SwapParams `json:"params"`
			ID     uint64     `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Method != SwapMethod {
			t.Errorf("method = %q, want %q", req.Method, SwapMethod)
		}
		result, rpcErr := handle(req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteVenue_Swap(t *testing.T) {
	srv := venueServer(t, func(p SwapParams) (interface{}, *rpcclient.RPCError) {
		if !p.AmountIn.Eq(types.Units(1)) {
			t.Errorf("amountIn = %s", p.AmountIn)
		}
		if p.Deadline != 4600 || len(p.Route) != 2 || p.Recipient != poolAccount {
			t.Errorf("params = %+v", p)
		}
		return SwapResult{AmountOut: types.MustParseAmount("90.5")}, nil
	})

	v := NewRemoteVenue(srv.URL, time.Second, poolAccount, zerolog.Nop())
	if v.Account() != poolAccount {
		t.Errorf("Account = %s", v.Account())
	}
	out, err := v.SwapExactNativeForTokens(context.Background(), types.Units(1), route, 4600)
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if out.Format() != "90.5" {
		t.Errorf("out = %s, want 90.5", out.Format())
	}
}

func TestRemoteVenue_Error(t *testing.T) {
	srv := venueServer(t, func(SwapParams) (interface{}, *rpcclient.RPCError) {
		return nil, &rpcclient.RPCError{Code: -32000, Message: "EXPIRED"}
	})

	v := NewRemoteVenue(srv.URL, time.Second, poolAccount, zerolog.Nop())
	_, err := v.SwapExactNativeForTokens(context.Background(), types.Units(1), route, 1)
	var rpcErr *rpcclient.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Message != "EXPIRED" {
		t.Fatalf("err = %v, want wrapped RPCError EXPIRED", err)
	}
}
