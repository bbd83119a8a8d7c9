package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/signtoken/internal/rpcclient"
	"github.com/Klingon-tech/signtoken/pkg/types"
)

// SwapMethod is the JSON-RPC method a remote venue must serve.
const SwapMethod = "venue_swapExactNativeForTokens"

// SwapParams is the request body of SwapMethod.
type SwapParams struct {
	AmountIn  types.Amount  `json:"amountIn"`
	Route     []string      `json:"route"`
	Deadline  uint64        `json:"deadline"`
	Recipient types.Address `json:"recipient"`
}

// SwapResult is the response body of SwapMethod.
type SwapResult struct {
	AmountOut types.Amount `json:"amountOut"`
}

// RemoteVenue forwards swaps to an exchange over JSON-RPC. The exchange
// owns its own state: a swap that succeeds remotely is not undone if the
// ledger later discards the call.
type RemoteVenue struct {
	client  *rpcclient.Client
	account types.Address
	logger  zerolog.Logger
}

// NewRemoteVenue creates a venue talking to endpoint. account is the
// ledger account holding the exchange's token reserve.
func NewRemoteVenue(endpoint string, timeout time.Duration, account types.Address, logger zerolog.Logger) *RemoteVenue {
	return &RemoteVenue{
		client:  rpcclient.NewWithTimeout(endpoint, timeout),
		account: account,
		logger:  logger,
	}
}

// Account returns the ledger account holding the exchange's token reserve.
func (v *RemoteVenue) Account() types.Address {
	return v.account
}

// SwapExactNativeForTokens calls SwapMethod on the remote exchange.
func (v *RemoteVenue) SwapExactNativeForTokens(ctx context.Context, amountIn types.Amount, route []string, deadline uint64) (types.Amount, error) {
	params := SwapParams{
		AmountIn:  amountIn,
		Route:     route,
		Deadline:  deadline,
		Recipient: v.account,
	}
	var result SwapResult
	if err := v.client.CallContext(ctx, SwapMethod, params, &result); err != nil {
		v.logger.Warn().Err(err).Str("endpoint", v.client.Endpoint()).Msg("Remote swap failed")
		return types.Amount{}, fmt.Errorf("remote venue: %w", err)
	}
	return result.AmountOut, nil
}
