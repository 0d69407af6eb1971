package serialmux

import (
	"github.com/bft-labs/serialmux/internal/app"
	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/framing"
	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// Core types re-exported for embedding applications.
type (
	// Port is an open serial line shared by every registered listener.
	Port = app.Port

	// Registry owns every open Port.
	Registry = app.Registry

	// Framer accumulates bytes into frames of a declared length.
	Framer = framing.Framer

	// Handler receives completed frames.
	Handler = framing.Handler

	// HandlerFunc adapts a function to Handler.
	HandlerFunc = framing.HandlerFunc

	// LineParams are the line settings a port is opened with.
	LineParams = domain.LineParams

	// Parity is the parity mode of a line.
	Parity = domain.Parity

	// StopBits is the stop-bit setting of a line.
	StopBits = domain.StopBits

	// TransportError wraps a driver failure.
	TransportError = domain.TransportError

	// Transport lists and opens serial devices.
	Transport = ports.Transport

	// Handle is an open device.
	Handle = ports.Handle

	// Logger is the interface for structured logging.
	Logger = log.Logger

	// LogField represents a structured log field.
	LogField = log.Field
)

// Parity modes.
const (
	ParityNone  = domain.ParityNone
	ParityOdd   = domain.ParityOdd
	ParityEven  = domain.ParityEven
	ParityMark  = domain.ParityMark
	ParitySpace = domain.ParitySpace
)

// Stop-bit settings.
const (
	StopBits1   = domain.StopBits1
	StopBits1_5 = domain.StopBits1_5
	StopBits2   = domain.StopBits2
)

// Errors returned by the service and its registry. Check with errors.Is.
var (
	ErrPortNotFound      = domain.ErrPortNotFound
	ErrPortNotRegistered = domain.ErrPortNotRegistered
	ErrConfigMismatch    = domain.ErrConfigMismatch
	ErrTransport         = domain.ErrTransport
	ErrInvalidParams     = domain.ErrInvalidParams
	ErrAlreadyRunning    = domain.ErrAlreadyRunning
	ErrNotRunning        = domain.ErrNotRunning
	ErrInvalidConfig     = domain.ErrInvalidConfig
)

// DefaultLineParams returns 9600 baud 8N1.
func DefaultLineParams() LineParams {
	return domain.DefaultLineParams()
}

// NewFramer returns a framer that drops bytes until Expect is called.
func NewFramer(h Handler) *Framer {
	return framing.New(h)
}
