package hooks

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/concord/internal/config"
)

// Config holds hook configuration.
type Config struct {
	// Enabled turns hook delivery on. Registered handlers are ignored when false.
	Enabled bool `koanf:"enabled"`

	// Timeout bounds each handler call through its context. Zero means no bound.
	Timeout config.Duration `koanf:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Timeout: config.Duration(2 * time.Second),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Timeout.Duration() < 0 {
		return fmt.Errorf("hooks.timeout must not be negative, got %s", c.Timeout.Duration())
	}
	return nil
}
