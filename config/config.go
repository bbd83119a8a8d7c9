// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: Defined in genesis, immutable for the life of a ledger
//   - Node settings: Runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Genesis file override. Empty means the built-in genesis for Network.
	GenesisFile string `conf:"genesis"`

	// RPC server
	RPC RPCConfig

	// Exchange venue used by the treasury buyback
	Venue VenueConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
	Dev         bool     `conf:"rpc.dev"`  // Expose ledger_mine.
}

// VenueMode selects where buyback swaps are executed.
type VenueMode string

const (
	VenueLocal  VenueMode = "local"  // In-process constant-product pool
	VenueRemote VenueMode = "remote" // JSON-RPC exchange endpoint
	VenueNone   VenueMode = "none"   // No venue; every buyback fails
)

// VenueConfig holds exchange venue settings.
type VenueConfig struct {
	Mode     VenueMode     `conf:"venue.mode"`
	Endpoint string        `conf:"venue.endpoint"` // Remote JSON-RPC URL (mode=remote)
	Timeout  time.Duration `conf:"venue.timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.signtoken
//	macOS:   ~/Library/Application Support/SignToken
//	Windows: %APPDATA%\SignToken
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".signtoken"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "SignToken")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "SignToken")
		}
		return filepath.Join(home, "AppData", "Roaming", "SignToken")
	default:
		return filepath.Join(home, ".signtoken")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// LedgerDir returns the ledger database directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.NetworkDataDir(), "ledger")
}

// KeystoreDir returns the directory holding encrypted CLI keys.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "signd.conf")
}
