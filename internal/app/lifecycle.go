package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// ShutdownTimeout bounds how long plugins such as the hotplug watcher may take
// to shut down before the registry closes its ports.
const ShutdownTimeout = 30 * time.Second

// State is the phase of a service wrapping a Registry.
type State int

const (
	// StateStopped: no ports are open and no rescans run.
	StateStopped State = iota
	// StateStarting: the first port list is being read.
	StateStarting
	// StateRunning: ports may be opened and the list is kept fresh.
	StateRunning
	// StateStopping: plugins are shutting down and ports are closing.
	StateStopping
	// StateCrashed: the first port list or a plugin failed. Start may be
	// retried.
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// Lifecycle guards the state transitions of a service. Transitions are
// validated so a second Start or a Stop before Start is reported instead of
// leaking ports.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	logger       ports.Logger
	eventEmitter EventEmitter
}

// EventEmitter receives every accepted transition, outside the lock.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle returns a Lifecycle in StateStopped.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateStopped,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to newState. An invalid transition leaves the state
// unchanged and returns ErrNotRunning when nothing is running, otherwise
// ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if !validTransition(oldState, newState) {
		l.mu.Unlock()
		if oldState == StateStopped || oldState == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}

	l.state = newState
	l.mu.Unlock()

	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func validTransition(from, to State) bool {
	switch from {
	case StateStopped, StateCrashed:
		return to == StateStarting
	case StateStarting:
		return to == StateRunning || to == StateStopping || to == StateCrashed
	case StateRunning:
		return to == StateStopping || to == StateCrashed
	case StateStopping:
		return to == StateStopped || to == StateCrashed
	}
	return false
}

// CanStart reports whether no ports are held and Start may proceed.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop reports whether there is a running or starting service to stop.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

// SetCancel stores the function that stops the rescan loop.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel triggers graceful shutdown.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
