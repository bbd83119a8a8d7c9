package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	if cfg.Venue.Mode == "" {
		cfg.Venue.Mode = VenueNone
	}
	switch cfg.Venue.Mode {
	case VenueLocal, VenueNone:
	case VenueRemote:
		if cfg.Venue.Endpoint == "" {
			return fmt.Errorf("venue.mode=remote requires venue.endpoint")
		}
		u, err := url.Parse(cfg.Venue.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("venue.endpoint must be an http(s) URL")
		}
	default:
		return fmt.Errorf("venue.mode must be local, remote, or none")
	}
	if cfg.Venue.Timeout < 0 {
		return fmt.Errorf("venue.timeout must not be negative")
	}

	return nil
}
