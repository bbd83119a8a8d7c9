package node

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/signtoken/config"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// loadGenesis reads cfg.GenesisFile, or falls back to the built-in
// genesis of cfg.Network.
func loadGenesis(cfg *config.Config) (*config.Genesis, error) {
	if cfg.GenesisFile == "" {
		gen := config.GenesisFor(cfg.Network)
		if err := gen.Validate(); err != nil {
			return nil, fmt.Errorf("built-in %s genesis: %w", cfg.Network, err)
		}
		return gen, nil
	}
	gen, err := config.LoadGenesis(expandHome(cfg.GenesisFile))
	if err != nil {
		return nil, fmt.Errorf("load genesis %s: %w", cfg.GenesisFile, err)
	}
	return gen, nil
}
