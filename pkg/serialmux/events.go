package serialmux

import "github.com/bft-labs/serialmux/internal/app"

// State represents the lifecycle state of a Service.
type State int

const (
	// StateStopped means the service is not running.
	StateStopped State = iota
	// StateStarting means Start was called and the port list is being read.
	StateStarting
	// StateRunning means ports can be opened.
	StateRunning
	// StateStopping means Stop was called and ports are being closed.
	StateStopping
	// StateCrashed means startup failed.
	StateCrashed
)

func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// RefreshEvent is emitted after every port list refresh.
type RefreshEvent struct {
	// Available is the new snapshot, nil if the refresh failed.
	Available []string

	// Evicted lists ports that were open and disappeared.
	Evicted []string

	Err error
}

// EventHandler receives service events. Methods are called synchronously
// and should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnRefresh(event RefreshEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnRefresh(RefreshEvent)         {}

// eventEmitterWrapper adapts EventHandler to the lifecycle emitter.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: State(previous),
		Current:  State(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) onRefresh(available, evicted []string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnRefresh(RefreshEvent{
		Available: available,
		Evicted:   evicted,
		Err:       err,
	})
}
