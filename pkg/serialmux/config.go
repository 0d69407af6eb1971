package serialmux

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bft-labs/serialmux/internal/domain"
)

// Config holds the configuration for a Service.
type Config struct {
	// DevDir is the directory scanned for device nodes. Default: "/dev"
	DevDir string

	// PortPattern selects device node names inside DevDir. Empty selects the
	// platform default (ttyS*, ttyUSB*, ttyACM*, ... on Linux; cu.* and tty.*
	// on macOS).
	PortPattern string

	// RescanInterval re-reads the port list periodically so unplugged devices
	// are evicted without a hotplug watcher. Zero disables rescanning.
	RescanInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DevDir: "/dev",
	}
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.DevDir == "" {
		c.DevDir = "/dev"
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.PortPattern != "" {
		if _, err := regexp.Compile(c.PortPattern); err != nil {
			return fmt.Errorf("%w: port pattern: %v", domain.ErrInvalidConfig, err)
		}
	}
	if c.RescanInterval < 0 {
		return fmt.Errorf("%w: rescan interval must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}
