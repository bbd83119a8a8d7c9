// Command testnet boots a local in-process sign token network from scratch.
//
// Usage: go run ./cmd/testnet/ [-callers N] [-signs N]
//
// It opens an in-memory ledger on the testnet genesis with a seeded local
// pool, serves it over JSON-RPC, and drives signed registry_sign and
// token_claim calls from several generated keys until the treasury has
// bought back and burned at least once. It then checks supply and
// conservation invariants. Ctrl+C for early shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/signtoken/config"
	"github.com/Klingon-tech/signtoken/internal/exchange"
	"github.com/Klingon-tech/signtoken/internal/ledger"
	klog "github.com/Klingon-tech/signtoken/internal/log"
	"github.com/Klingon-tech/signtoken/internal/rpc"
	"github.com/Klingon-tech/signtoken/internal/rpcclient"
	"github.com/Klingon-tech/signtoken/internal/storage"
	"github.com/Klingon-tech/signtoken/pkg/crypto"
)

func main() {
	callers := flag.Int("callers", 3, "number of generated caller keys")
	signs := flag.Int("signs", 120, "number of registry_sign calls")
	flag.Parse()

	klog.Init("info", false, "")
	logger := klog.WithComponent("testnet")

	logger.Info().Msg("=== SignToken Local Testnet ===")

	// ── Phase 1: Genesis, pool, ledger ───────────────────────────────────

	gen := config.TestnetGenesis()
	gen.NetworkID = "signtoken-testnet-local"
	db := storage.NewMemory()

	pool, err := exchange.NewPool(exchange.PoolConfig{
		Account:      gen.VenueAddress(),
		NativeSymbol: gen.Treasury.Route[0],
		TokenSymbol:  gen.Token.Symbol,
		FeeBps:       gen.Venue.PoolFeeBps,
	}, db, klog.Exchange)
	if err != nil {
		logger.Fatal().Err(err).Msg("create pool")
	}
	if _, err := pool.AddLiquidity(gen.Venue.PoolTokens, gen.Venue.PoolNative); err != nil {
		logger.Fatal().Err(err).Msg("seed pool")
	}

	l, err := ledger.Open(ledger.Options{Genesis: gen, DB: db, Venue: pool})
	if err != nil {
		logger.Fatal().Err(err).Msg("open ledger")
	}

	// ── Phase 2: RPC ─────────────────────────────────────────────────────

	srv := rpc.New("127.0.0.1:0", l, config.RPCConfig{Dev: true})
	srv.SetPool(pool)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start rpc")
	}
	defer srv.Stop()
	client := rpcclient.New(fmt.Sprintf("http://%s/", srv.Addr()))

	keys := make([]*crypto.PrivateKey, *callers)
	for i := range keys {
		if keys[i], err = crypto.GenerateKey(); err != nil {
			logger.Fatal().Err(err).Msg("generate key")
		}
		defer keys[i].Zero()
		logger.Info().Int("caller", i).Str("address", keys[i].Address().String()).Msg("Caller key generated")
	}
	nonces := make([]uint64, len(keys))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("Shutdown signal received")
		cancel()
	}()

	// ── Phase 3: Calls ───────────────────────────────────────────────────

	for i := 0; i < *signs && ctx.Err() == nil; i++ {
		k := i % len(keys)

		call := rpc.SignCall{Name: fmt.Sprintf("name-%04d", i), Value: gen.Registry.SignFee}
		auth, err := rpc.NewAuth(keys[k], l.GenesisHash(), "registry_sign", call, nonces[k])
		if err != nil {
			logger.Fatal().Err(err).Msg("auth")
		}
		var res ledger.SignResult
		if err := client.CallContext(ctx, "registry_sign", rpc.SignParams{Call: call, Auth: auth}, &res); err != nil {
			logger.Fatal().Err(err).Int("call", i).Msg("registry_sign")
		}
		nonces[k]++
		if res.Buyback != nil {
			logger.Info().
				Uint64("id", res.ID).
				Str("native_in", res.Buyback.AmountIn.Format()).
				Str("burned", res.Buyback.Burned.Format()).
				Msg("Treasury buyback")
		}

		claimAuth, err := rpc.NewAuth(keys[k], l.GenesisHash(), "token_claim", rpc.ClaimCall{}, nonces[k])
		if err != nil {
			logger.Fatal().Err(err).Msg("auth")
		}
		var claim ledger.ClaimResult
		if err := client.CallContext(ctx, "token_claim", rpc.ClaimParams{Auth: claimAuth}, &claim); err != nil {
			logger.Fatal().Err(err).Int("call", i).Msg("token_claim")
		}
		nonces[k]++
	}

	// ── Phase 4: Verification ────────────────────────────────────────────

	var supply ledger.SupplyInfo
	if err := client.Call("token_getSupply", nil, &supply); err != nil {
		logger.Fatal().Err(err).Msg("token_getSupply")
	}
	var tr ledger.TreasuryInfo
	if err := client.Call("treasury_getInfo", nil, &tr); err != nil {
		logger.Fatal().Err(err).Msg("treasury_getInfo")
	}

	logger.Info().
		Uint64("height", l.Head().Height).
		Uint64("names", l.NextSignID()).
		Str("total_supply", supply.Total.Format()).
		Str("burned", supply.Burned.Format()).
		Str("circulating", supply.Circulating.Format()).
		Uint64("buybacks", tr.Buybacks).
		Str("treasury_native", tr.NativeBalance.Format()).
		Msg("Run complete")

	if err := l.CheckInvariants(); err != nil {
		logger.Error().Err(err).Msg("FAIL: invariants broken")
		os.Exit(1)
	}
	if reserve := pool.Reserves().Token; !reserve.Eq(l.BalanceOf(pool.Account())) {
		logger.Error().
			Str("pool", reserve.Format()).
			Str("ledger", l.BalanceOf(pool.Account()).Format()).
			Msg("FAIL: pool reserve and venue account diverged")
		os.Exit(1)
	}
	logger.Info().Msg("PASS: supply and conservation invariants hold")
}
