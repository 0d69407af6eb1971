package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// Registry maps port names to at most one live Port each. It is the single
// authority that opens, configures and tears down serial lines.
type Registry struct {
	transport ports.Transport
	logger    ports.Logger

	mu        sync.RWMutex
	ports     map[string]*Port
	available []string // nil until the first Refresh
}

// NewRegistry creates an empty registry. Call Refresh before opening ports.
func NewRegistry(transport ports.Transport, logger ports.Logger) *Registry {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Registry{
		transport: transport,
		logger:    logger,
		ports:     make(map[string]*Port),
	}
}

// Refresh re-reads the attached port names. Ports whose name disappeared are
// removed from the registry; their handles are closed best-effort since the
// device is gone either way.
func (r *Registry) Refresh() error {
	names, err := r.transport.ListPortNames()
	if err != nil {
		return domain.NewTransportError("list", "", err)
	}

	snapshot := make([]string, len(names))
	copy(snapshot, names)
	present := make(map[string]struct{}, len(snapshot))
	for _, n := range snapshot {
		present[n] = struct{}{}
	}

	r.mu.Lock()
	r.available = snapshot
	var evicted []*Port
	for name, p := range r.ports {
		if _, ok := present[name]; !ok {
			delete(r.ports, name)
			evicted = append(evicted, p)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("port list refreshed", log.Strings("available", snapshot))
	for _, p := range evicted {
		r.logger.Warn("port vanished, evicting", log.String("port", p.Name()))
		if err := p.close(); err != nil {
			r.logger.Debug("close of vanished port failed",
				log.String("port", p.Name()),
				log.Err(err),
			)
		}
	}
	return nil
}

// AvailablePorts returns the snapshot taken by the last Refresh, or nil if
// Refresh has never succeeded.
func (r *Registry) AvailablePorts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.available == nil {
		return nil
	}
	out := make([]string, len(r.available))
	copy(out, r.available)
	return out
}

// GetOrOpen returns the port registered under name, opening and configuring it
// first if needed. It fails with ErrPortNotFound if name is not in the current
// snapshot and with ErrConfigMismatch if the port is already open with
// different parameters. A failed call leaves the registry unchanged.
func (r *Registry) GetOrOpen(name string, params domain.LineParams) (*Port, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isAvailable(name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPortNotFound, name)
	}
	if p, ok := r.ports[name]; ok {
		if !p.CheckParams(params) {
			return nil, fmt.Errorf("%w: %s is open at %s, requested %s",
				domain.ErrConfigMismatch, name, p.Params(), params)
		}
		return p, nil
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	h, err := r.transport.Open(name)
	if err != nil {
		return nil, domain.NewTransportError("open", name, err)
	}
	if err := h.SetParams(params); err != nil {
		_ = h.Close()
		return nil, domain.NewTransportError("params", name, err)
	}

	p := newPort(name, params, h, r.logger)
	if err := h.OnByteAvailable(p.dispatch); err != nil {
		_ = h.Close()
		return nil, domain.NewTransportError("notify", name, err)
	}
	r.ports[name] = p

	r.logger.Info("port opened",
		log.String("port", name),
		log.String("params", params.String()),
	)
	return p, nil
}

// Get returns the port registered under name without opening anything.
func (r *Registry) Get(name string) (*Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPortNotRegistered, name)
	}
	return p, nil
}

// Destroy closes the port registered under name and removes it. It is a no-op
// for unknown names. The entry is removed even when closing fails.
func (r *Registry) Destroy(name string) error {
	r.mu.Lock()
	p, ok := r.ports[name]
	if ok {
		delete(r.ports, name)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := p.close(); err != nil {
		return domain.NewTransportError("close", name, err)
	}
	r.logger.Info("port destroyed", log.String("port", name))
	return nil
}

// OpenPorts returns the sorted names of every registered port.
func (r *Registry) OpenPorts() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.ports))
	for name := range r.ports {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Close destroys every registered port. The registry stays usable afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	open := r.ports
	r.ports = make(map[string]*Port)
	r.mu.Unlock()

	var errs []error
	for name, p := range open {
		if err := p.close(); err != nil {
			errs = append(errs, domain.NewTransportError("close", name, err))
		}
	}
	return errors.Join(errs...)
}

// Diagnostics refreshes the snapshot and describes available and connected
// ports, one line per entry, for crash reports and the list command.
func (r *Registry) Diagnostics() []string {
	var lines []string
	if err := r.Refresh(); err != nil {
		lines = append(lines, "Port refresh failed: "+err.Error())
	}

	if available := r.AvailablePorts(); len(available) > 0 {
		lines = append(lines, "Available Serial Ports:", "\t"+strings.Join(available, ", "))
	} else {
		lines = append(lines, "No Available Serial Devices")
	}

	if open := r.OpenPorts(); len(open) > 0 {
		lines = append(lines, "Connected Serial Ports:", "\t"+strings.Join(open, ", "))
	} else {
		lines = append(lines, "No Connected Serial Devices")
	}
	return lines
}

// isAvailable must be called with mu held.
func (r *Registry) isAvailable(name string) bool {
	for _, n := range r.available {
		if n == name {
			return true
		}
	}
	return false
}
