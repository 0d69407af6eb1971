package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the serialmux domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrPortNotFound is returned when a port name is absent from the current
	// snapshot of OS-visible ports.
	ErrPortNotFound = errors.New("serialmux: port not found")

	// ErrPortNotRegistered is returned when a port name has no open multiplexer.
	ErrPortNotRegistered = errors.New("serialmux: port not registered")

	// ErrConfigMismatch is returned when an already-open port is requested with
	// different line parameters. Destroy the port first to reconfigure it.
	ErrConfigMismatch = errors.New("serialmux: port already open with different line parameters")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("serialmux: transport error")

	// ErrInvalidParams is returned when line parameters fail validation.
	ErrInvalidParams = errors.New("serialmux: invalid line parameters")

	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("serialmux: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("serialmux: not running")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("serialmux: invalid configuration")
)

// TransportError wraps a failure reported by the underlying serial driver.
type TransportError struct {
	// Op is the driver operation that failed (open, close, read, write, params, list).
	Op string

	// Port is the port name, empty for operations not bound to a port.
	Port string

	Err error
}

// NewTransportError wraps err as a TransportError. A nil err yields nil.
func NewTransportError(op, port string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Port: port, Err: err}
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("serialmux: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("serialmux: %s %s: %v", e.Op, e.Port, e.Err)
}

// Unwrap returns the driver error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
