package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signd.conf")
	content := `# comment
network = testnet
rpc.port = 9999
rpc.allowed = 127.0.0.1, 10.0.0.1
rpc.dev = yes
venue.mode = "remote"
venue.endpoint = 'http://127.0.0.1:9545'
venue.timeout = 3s
log.json = true
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Network != Testnet {
		t.Errorf("Network = %q, want testnet", cfg.Network)
	}
	if cfg.RPC.Port != 9999 {
		t.Errorf("RPC.Port = %d, want 9999", cfg.RPC.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.1" {
		t.Errorf("RPC.AllowedIPs = %v", cfg.RPC.AllowedIPs)
	}
	if !cfg.RPC.Dev {
		t.Error("RPC.Dev should be true")
	}
	if cfg.Venue.Mode != VenueRemote || cfg.Venue.Endpoint != "http://127.0.0.1:9545" {
		t.Errorf("Venue = %+v", cfg.Venue)
	}
	if cfg.Venue.Timeout != 3*time.Second {
		t.Errorf("Venue.Timeout = %v, want 3s", cfg.Venue.Timeout)
	}
	if !cfg.Log.JSON {
		t.Error("Log.JSON should be true")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "missing.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("got %d values, want 0", len(values))
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("network testnet\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for line without '='")
	}
}

func TestApplyFileConfig_BadPort(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{"rpc.port": "abc"})
	if err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestParseFlags_Overrides(t *testing.T) {
	f, err := parseFlagArgs([]string{
		"--testnet", "--rpc-port=1234", "--rpc=false", "--venue=none", "--log-level=debug",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlagArgs: %v", err)
	}
	if f.Network != "testnet" {
		t.Errorf("Network = %q, want testnet", f.Network)
	}

	cfg := DefaultTestnet()
	ApplyFlags(cfg, f)
	if cfg.RPC.Port != 1234 {
		t.Errorf("RPC.Port = %d, want 1234", cfg.RPC.Port)
	}
	if cfg.RPC.Enabled {
		t.Error("RPC.Enabled should be false after --rpc=false")
	}
	if cfg.Venue.Mode != VenueNone {
		t.Errorf("Venue.Mode = %q, want none", cfg.Venue.Mode)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	// Unset bool flags must not clobber defaults.
	if !cfg.RPC.Dev {
		t.Error("RPC.Dev default should survive when --rpc-dev is not given")
	}
}

func TestParseFlags_PositionalStopsParsing(t *testing.T) {
	_, err := parseFlagArgs([]string{"--rpc", "stray", "--log-json"}, io.Discard)
	if err == nil {
		t.Fatal("expected error when a positional argument hides a flag")
	}
}

func TestLoadWithFlags_CreatesDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadWithFlags(&Flags{Network: "testnet", DataDir: dir})
	if err != nil {
		t.Fatalf("loadWithFlags: %v", err)
	}
	if cfg.Network != Testnet {
		t.Errorf("Network = %q, want testnet", cfg.Network)
	}
	for _, p := range []string{cfg.LedgerDir(), cfg.KeystoreDir(), cfg.ConfigFile()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	// The written default config must load back cleanly.
	values, err := LoadFile(cfg.ConfigFile())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	again := DefaultTestnet()
	if err := ApplyFileConfig(again, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}
	if again.Venue.Mode != VenueLocal {
		t.Errorf("default testnet venue = %q, want local", again.Venue.Mode)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"testnet defaults", func(c *Config) {}, false},
		{"bad network", func(c *Config) { c.Network = "devnet" }, true},
		{"bad port", func(c *Config) { c.RPC.Port = 70000 }, true},
		{"remote without endpoint", func(c *Config) { c.Venue.Mode = VenueRemote }, true},
		{"remote bad scheme", func(c *Config) {
			c.Venue.Mode = VenueRemote
			c.Venue.Endpoint = "ftp://x"
		}, true},
		{"remote ok", func(c *Config) {
			c.Venue.Mode = VenueRemote
			c.Venue.Endpoint = "http://127.0.0.1:9545"
		}, false},
		{"unknown venue", func(c *Config) { c.Venue.Mode = "dex" }, true},
		{"empty venue defaults to none", func(c *Config) { c.Venue.Mode = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTestnet()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
