package ports

import (
	"github.com/bft-labs/serialmux/internal/domain"
)

// NotifyFunc is invoked by a Handle whenever at least one byte is readable.
// available is the number of bytes the driver reports as buffered; it may be
// zero when the driver cannot tell, in which case one byte is read.
type NotifyFunc func(available int)

// Transport opens serial lines by name. Implementations must be safe for
// concurrent use.
type Transport interface {
	// Open opens the named port. The returned handle is not yet configured.
	Open(name string) (Handle, error)

	// ListPortNames returns the names of the currently attached ports in a
	// stable order.
	ListPortNames() ([]string, error)
}

// Handle is one open serial line, exclusively owned by a multiplexer.
type Handle interface {
	// SetParams applies line parameters.
	SetParams(params domain.LineParams) error

	// Read blocks until at least one byte is read into p.
	Read(p []byte) (int, error)

	// Write writes p to the line.
	Write(p []byte) (int, error)

	// Close releases the line and stops notifications.
	Close() error

	// IsOpen reports whether Close has not been called yet.
	IsOpen() bool

	// OnByteAvailable installs the notification hook. Notifications for one
	// handle are delivered from a single goroutine, never concurrently.
	OnByteAvailable(fn NotifyFunc) error
}
