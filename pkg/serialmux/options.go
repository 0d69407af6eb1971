package serialmux

import (
	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// Option configures optional behavior of a Service.
type Option func(*options)

type options struct {
	logger       ports.Logger
	transport    ports.Transport
	eventHandler EventHandler
	plugins      []Plugin
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport replaces the termios transport, for example with an
// in-memory simulator.
func WithTransport(t Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithEventHandler sets a handler for service events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the service starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}
