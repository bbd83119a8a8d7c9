// Package node wires configuration, storage, the exchange venue, the
// ledger and the RPC server into a runnable sign token node that can be
// embedded in any binary.
package node

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/signtoken/config"
	"github.com/Klingon-tech/signtoken/internal/exchange"
	"github.com/Klingon-tech/signtoken/internal/ledger"
	klog "github.com/Klingon-tech/signtoken/internal/log"
	"github.com/Klingon-tech/signtoken/internal/rpc"
	"github.com/Klingon-tech/signtoken/internal/storage"
	"github.com/Klingon-tech/signtoken/internal/treasury"
)

// Node is a fully-initialized sign token node.
type Node struct {
	cfg     *config.Config
	genesis *config.Genesis
	logger  zerolog.Logger

	db     storage.DB
	pool   *exchange.Pool // nil unless venue mode is local
	venue  treasury.Venue // nil when venue mode is none
	ledger *ledger.Ledger

	rpcServer *rpc.Server
}

// New creates and initializes a new Node: logger, genesis, storage, venue,
// ledger and RPC server. It does not start listening; call Start for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "signd.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithNetwork(string(cfg.Network)).With().Str("component", "node").Logger()

	// ── 2. Genesis ──────────────────────────────────────────────────
	genesis, err := loadGenesis(cfg)
	if err != nil {
		return nil, err
	}
	genHash, err := genesis.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash genesis: %w", err)
	}

	logger.Info().
		Str("network_id", genesis.NetworkID).
		Str("genesis", genHash.String()[:16]+"...").
		Str("venue", string(cfg.Venue.Mode)).
		Msg("Starting SignToken node")

	// ── 3. Open storage ─────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.LedgerDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.LedgerDir(), err)
	}
	logger.Info().Str("path", cfg.LedgerDir()).Msg("Database opened")

	n := &Node{
		cfg:     cfg,
		genesis: genesis,
		logger:  logger,
		db:      db,
	}

	// ── 4. Venue ────────────────────────────────────────────────────
	if err := n.setupVenue(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setup venue: %w", err)
	}

	// ── 5. Ledger ───────────────────────────────────────────────────
	n.ledger, err = ledger.Open(ledger.Options{
		Genesis: genesis,
		DB:      db,
		Venue:   n.venue,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	// ── 6. RPC ──────────────────────────────────────────────────────
	if cfg.RPC.Enabled {
		addr := net.JoinHostPort(cfg.RPC.Addr, strconv.Itoa(cfg.RPC.Port))
		n.rpcServer = rpc.New(addr, n.ledger, cfg.RPC)
		if n.pool != nil {
			n.rpcServer.SetPool(n.pool)
		}
	}

	return n, nil
}

// setupVenue builds the buyback venue selected by cfg.Venue.Mode. A local
// pool with no reserves is seeded from genesis.
func (n *Node) setupVenue() error {
	gen := n.genesis
	if !gen.HasVenue() && n.cfg.Venue.Mode != config.VenueNone && n.cfg.Venue.Mode != "" {
		return fmt.Errorf("venue mode %q needs a venue account in genesis", n.cfg.Venue.Mode)
	}
	switch n.cfg.Venue.Mode {
	case config.VenueLocal:
		pool, err := exchange.NewPool(exchange.PoolConfig{
			Account:      gen.VenueAddress(),
			NativeSymbol: gen.Treasury.Route[0],
			TokenSymbol:  gen.Token.Symbol,
			FeeBps:       gen.Venue.PoolFeeBps,
		}, n.db, klog.Exchange)
		if err != nil {
			return err
		}
		if pool.Reserves().Token.IsZero() && !gen.Venue.PoolTokens.IsZero() {
			if _, err := pool.AddLiquidity(gen.Venue.PoolTokens, gen.Venue.PoolNative); err != nil {
				return fmt.Errorf("seed pool: %w", err)
			}
		}
		r := pool.Reserves()
		n.logger.Info().
			Str("account", pool.Account().String()).
			Str("token_reserve", r.Token.Format()).
			Str("native_reserve", r.Native.Format()).
			Msg("Local pool ready")
		n.pool = pool
		n.venue = pool

	case config.VenueRemote:
		n.venue = exchange.NewRemoteVenue(n.cfg.Venue.Endpoint, n.cfg.Venue.Timeout, gen.VenueAddress(), klog.Exchange)
		n.logger.Info().Str("endpoint", n.cfg.Venue.Endpoint).Msg("Remote venue configured")

	case config.VenueNone, "":
		n.logger.Warn().Msg("No venue configured, buybacks will fail once the treasury reaches its threshold")

	default:
		return fmt.Errorf("unknown venue mode %q", n.cfg.Venue.Mode)
	}
	return nil
}

// Start begins serving RPC.
func (n *Node) Start() error {
	if n.rpcServer != nil {
		if err := n.rpcServer.Start(); err != nil {
			return fmt.Errorf("start rpc: %w", err)
		}
	}

	head := n.ledger.Head()
	n.logger.Info().
		Uint64("height", head.Height).
		Str("state_root", head.StateRoot.String()[:16]+"...").
		Uint64("next_sign_id", n.ledger.NextSignID()).
		Str("rpc", n.RPCAddr()).
		Msg("Node started successfully")
	return nil
}

// Stop shuts down the RPC server and closes the database.
func (n *Node) Stop() {
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC shutdown")
		}
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// RPCAddr returns the bound RPC address, or "" when RPC is disabled.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// Pool returns the local pool, or nil when the venue is not local.
func (n *Node) Pool() *exchange.Pool {
	return n.pool
}
