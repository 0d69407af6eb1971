package serialmux

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/serialmux/internal/adapters/serial"
	"github.com/bft-labs/serialmux/internal/app"
	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// Service owns a port registry and the background behavior around it.
// Use New() to create an instance, then Start() before opening ports.
type Service struct {
	config    Config
	lifecycle *app.Lifecycle
	registry  *app.Registry
	logger    ports.Logger
	emitter   *eventEmitterWrapper
	plugins   []Plugin

	// Rescan runner (config-based, not a plugin)
	rescan *rescanRunner

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a new Service with the given configuration.
// The instance is created in StateStopped; call Start() to read the port list.
// Returns an error if configuration is invalid or no transport is available.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	transport := o.transport
	if transport == nil {
		t, err := serial.New(cfg.DevDir, cfg.PortPattern, logger)
		if err != nil {
			return nil, fmt.Errorf("serial transport: %w", err)
		}
		transport = t
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	s := &Service{
		config:    cfg,
		lifecycle: app.NewLifecycle(logger, emitter),
		registry:  app.NewRegistry(transport, logger),
		logger:    logger,
		emitter:   emitter,
		plugins:   o.plugins,
	}
	if cfg.RescanInterval > 0 {
		s.rescan = newRescanRunner(cfg.RescanInterval, s, logger)
	}
	return s, nil
}

// Start reads the port list, initializes plugins and starts rescanning.
// Returns ErrAlreadyRunning if the service is running. If the port list
// cannot be read the service ends in StateCrashed and the error is returned.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.lifecycle.SetCancel(cancel)

	if err := s.Refresh(); err != nil {
		s.crash(cancel, "initial refresh failed", err)
		return err
	}

	pluginCfg := PluginConfig{
		DevDir:      s.config.DevDir,
		PortPattern: s.config.PortPattern,
		Logger:      s.logger,
		Refresher:   s,
	}
	for i, p := range s.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			s.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			s.shutdownPlugins(s.plugins[:i])
			s.crash(cancel, "plugin init failed: "+p.Name(), err)
			return err
		}
		s.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	if s.rescan != nil {
		s.rescan.start(runCtx)
	}

	return s.lifecycle.TransitionTo(app.StateRunning, "ports listed")
}

// Stop stops rescanning, shuts plugins down in reverse order and closes
// every open port. Returns ErrNotRunning if the service is not running.
func (s *Service) Stop() error {
	s.mu.Lock()

	if !s.lifecycle.CanStop() {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := s.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if s.rescan != nil {
		s.rescan.stop()
	}
	s.shutdownPlugins(s.plugins)

	err := s.registry.Close()
	if err != nil {
		s.logger.Error("closing ports failed", log.Err(err))
	}

	_ = s.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (s *Service) Status() State {
	return State(s.lifecycle.State())
}

// Registry returns the port registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Open returns the port registered under name, opening it with params first
// if needed. See Registry.GetOrOpen.
func (s *Service) Open(name string, params LineParams) (*Port, error) {
	if s.Status() != StateRunning {
		return nil, domain.ErrNotRunning
	}
	return s.registry.GetOrOpen(name, params)
}

// WaitOpen is Open for devices that may not be plugged in yet. While name is
// missing from the port list it refreshes the list with exponential backoff
// until the port appears or ctx ends. Other errors are returned immediately.
func (s *Service) WaitOpen(ctx context.Context, name string, params LineParams) (*Port, error) {
	b := newBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	for {
		p, err := s.Open(name, params)
		if !errors.Is(err, domain.ErrPortNotFound) {
			return p, err
		}
		s.logger.Debug("port not present, waiting",
			log.String("port", name),
			log.Duration("backoff", b.Current()),
		)
		if err := b.Wait(ctx); err != nil {
			return nil, err
		}
		if err := s.Refresh(); err != nil {
			s.logger.Warn("port refresh failed", log.Err(err))
		}
	}
}

// Refresh re-reads the port list, evicting ports that disappeared, and
// reports the outcome to the event handler.
func (s *Service) Refresh() error {
	before := s.registry.OpenPorts()
	if err := s.registry.Refresh(); err != nil {
		s.emitter.onRefresh(nil, nil, err)
		return err
	}

	available := s.registry.AvailablePorts()
	present := make(map[string]bool, len(available))
	for _, name := range available {
		present[name] = true
	}
	var evicted []string
	for _, name := range before {
		if !present[name] {
			evicted = append(evicted, name)
		}
	}
	s.emitter.onRefresh(available, evicted, nil)
	return nil
}

// Diagnostics describes available and connected ports.
func (s *Service) Diagnostics() []string {
	return s.registry.Diagnostics()
}

func (s *Service) crash(cancel context.CancelFunc, reason string, err error) {
	cancel()
	for _, line := range s.registry.Diagnostics() {
		s.logger.Error(line)
	}
	if cerr := s.registry.Close(); cerr != nil {
		s.logger.Error("closing ports failed", log.Err(cerr))
	}
	_ = s.lifecycle.TransitionTo(app.StateCrashed, reason+": "+err.Error())
}

// shutdownPlugins shuts plugins down in reverse order.
func (s *Service) shutdownPlugins(plugins []Plugin) {
	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			s.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			s.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}
