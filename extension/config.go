package extension

import (
	"time"

	ledger "github.com/zkrune/tokenledger"
)

// Config holds the token ledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tokenledger" or "tokenledger" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for ledger routes (default: "/tokenledger").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// SweepInterval is how often ended proposals are finalized
	// (default: 1m). Negative disables the sweep.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// Economics overrides the default staking, governance, marketplace
	// and premium settings. Nil keeps the defaults.
	Economics *ledger.Config `json:"economics,omitempty" mapstructure:"economics" yaml:"economics,omitempty"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:      "/tokenledger",
		SweepInterval: ledger.DefaultSweepInterval,
	}
}
