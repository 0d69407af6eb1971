//go:build !linux && !darwin

// Package serial implements ports.Transport on POSIX termios devices.
package serial

import (
	"errors"
	"runtime"

	"github.com/bft-labs/serialmux/internal/ports"
)

// DefaultDevDir is where device nodes are listed.
const DefaultDevDir = ""

// DefaultPattern is empty where no device naming convention is known.
const DefaultPattern = ""

// ErrUnsupported is returned on platforms without termios support.
var ErrUnsupported = errors.New("serial: unsupported platform " + runtime.GOOS)

// Transport is unavailable on this platform.
type Transport struct{}

// New always fails with ErrUnsupported.
func New(devDir, pattern string, logger ports.Logger) (*Transport, error) {
	return nil, ErrUnsupported
}

// ListPortNames always fails with ErrUnsupported.
func (t *Transport) ListPortNames() ([]string, error) { return nil, ErrUnsupported }

// Open always fails with ErrUnsupported.
func (t *Transport) Open(name string) (ports.Handle, error) { return nil, ErrUnsupported }
