// Package serialmux shares serial ports between independent frame consumers.
//
// Example usage:
//
//	svc, err := serialmux.New(serialmux.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Stop()
//
// The full API lives in pkg/serialmux; this package wires the defaults the
// serialmux command uses (hotplug eviction and a console logger).
package serialmux

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/serialmux/internal/cliconfig"
	"github.com/bft-labs/serialmux/pkg/log"
	"github.com/bft-labs/serialmux/pkg/serialmux"
	"github.com/bft-labs/serialmux/plugins/hotplug"
)

// Config holds the service configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = serialmux.Config

// Service shares serial ports between listeners.
type Service = serialmux.Service

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return serialmux.DefaultConfig()
}

// New creates a service that logs to stderr at info level and evicts
// unplugged ports through the hotplug watcher. opts are applied after the
// defaults and may override the logger.
func New(cfg Config, opts ...serialmux.Option) (*Service, error) {
	defaults := []serialmux.Option{
		serialmux.WithLogger(log.NewZerologAdapterWithLogger(Logger())),
		hotplug.WithDefaultHotplug(),
	}
	return serialmux.New(cfg, append(defaults, opts...)...)
}

// Logger returns the console logger used by the serialmux command.
func Logger() zerolog.Logger {
	return cliconfig.NewLogger(os.Stderr, "info")
}
