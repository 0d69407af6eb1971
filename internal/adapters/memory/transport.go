// Package memory implements an in-memory serial transport.
//
// Devices are attached and detached at runtime, bytes are injected on the
// device side and everything written by the host is captured. Each open
// handle delivers byte-available notifications from one goroutine that
// consumes coalesced events, so tests can inject input deterministically and
// wait for it to be dispatched with Settle.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/ports"
)

var (
	// ErrNoDevice is returned when opening or injecting into an unknown device.
	ErrNoDevice = errors.New("memory: no such device")

	// ErrBusy is returned when a device is opened twice.
	ErrBusy = errors.New("memory: device busy")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("memory: handle closed")
)

// Transport is an in-memory ports.Transport.
type Transport struct {
	mu      sync.Mutex
	devices map[string]*device
	listErr error
}

type device struct {
	loopback bool
	params   domain.LineParams
	opens    int
	written  []byte
	handle   *Handle

	openErr   error
	paramsErr error
	closeErr  error
}

// DeviceOption configures an attached device.
type DeviceOption func(*device)

// Loopback echoes every byte written to the device back as input.
func Loopback() DeviceOption {
	return func(d *device) { d.loopback = true }
}

// New returns a transport with no devices attached.
func New() *Transport {
	return &Transport{devices: make(map[string]*device)}
}

// Attach makes a device visible under name. Attaching an existing name is a no-op.
func (t *Transport) Attach(name string, opts ...DeviceOption) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.devices[name]; ok {
		return
	}
	d := &device{}
	for _, opt := range opts {
		opt(d)
	}
	t.devices[name] = d
}

// Detach removes a device from the listing. An open handle stays usable,
// as it would for a file descriptor whose device node was unlinked.
func (t *Transport) Detach(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.devices, name)
}

// ListPortNames returns the attached device names in sorted order.
func (t *Transport) ListPortNames() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listErr != nil {
		return nil, t.listErr
	}
	names := make([]string, 0, len(t.devices))
	for name := range t.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Open opens an attached device exclusively.
func (t *Transport) Open(name string) (ports.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, name)
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	if d.handle != nil && d.handle.IsOpen() {
		return nil, fmt.Errorf("%w: %s", ErrBusy, name)
	}
	d.opens++
	d.handle = newHandle(t, d)
	return d.handle, nil
}

// Inject queues data as input on the named device and signals its handle.
func (t *Transport) Inject(name string, data []byte) error {
	t.mu.Lock()
	d, ok := t.devices[name]
	var h *Handle
	if ok {
		h = d.handle
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDevice, name)
	}
	if h == nil || !h.IsOpen() {
		return fmt.Errorf("%w: %s", ErrClosed, name)
	}
	h.receive(data)
	return nil
}

// Settle blocks until every open handle has dispatched all signalled input.
func (t *Transport) Settle() {
	t.mu.Lock()
	handles := make([]*Handle, 0, len(t.devices))
	for _, d := range t.devices {
		if d.handle != nil {
			handles = append(handles, d.handle)
		}
	}
	t.mu.Unlock()

	for _, h := range handles {
		h.settle()
	}
}

// Written returns a copy of everything written to the named device.
func (t *Transport) Written(name string) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.devices[name]
	if !ok {
		return nil
	}
	return append([]byte(nil), d.written...)
}

// Params returns the line parameters last applied to the named device.
func (t *Transport) Params(name string) (domain.LineParams, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.devices[name]
	if !ok {
		return domain.LineParams{}, false
	}
	return d.params, true
}

// Opens returns how many times the named device was opened.
func (t *Transport) Opens(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.devices[name]; ok {
		return d.opens
	}
	return 0
}

// FailList makes ListPortNames return err (nil clears it).
func (t *Transport) FailList(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listErr = err
}

// FailOpen makes Open of the named device return err.
func (t *Transport) FailOpen(name string, err error) {
	t.withDevice(name, func(d *device) { d.openErr = err })
}

// FailParams makes SetParams on the named device return err.
func (t *Transport) FailParams(name string, err error) {
	t.withDevice(name, func(d *device) { d.paramsErr = err })
}

// FailClose makes Close on the named device return err. The handle is
// closed regardless.
func (t *Transport) FailClose(name string, err error) {
	t.withDevice(name, func(d *device) { d.closeErr = err })
}

// FailNextRead makes the next Read on the named device's open handle return
// err, and signals the handle so the failure is observed.
func (t *Transport) FailNextRead(name string, err error) error {
	t.mu.Lock()
	d, ok := t.devices[name]
	var h *Handle
	if ok {
		h = d.handle
	}
	t.mu.Unlock()
	if h == nil {
		return fmt.Errorf("%w: %s", ErrClosed, name)
	}
	h.failRead(err)
	return nil
}

func (t *Transport) withDevice(name string, fn func(*device)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.devices[name]; ok {
		fn(d)
	}
}
