package memory

import (
	"sync"

	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/ports"
)

// Handle is an open in-memory device.
type Handle struct {
	t   *Transport
	dev *device

	mu          sync.Mutex
	cond        *sync.Cond
	open        bool
	rx          []byte
	readErr     error
	notify      ports.NotifyFunc
	signalled   bool
	dispatching bool
}

func newHandle(t *Transport, d *device) *Handle {
	h := &Handle{t: t, dev: d, open: true}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// SetParams records params on the device.
func (h *Handle) SetParams(params domain.LineParams) error {
	if !h.IsOpen() {
		return ErrClosed
	}
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	if h.dev.paramsErr != nil {
		return h.dev.paramsErr
	}
	h.dev.params = params
	return nil
}

// Read blocks until input is queued, a read failure is armed, or the handle closes.
func (h *Handle) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.open && h.readErr == nil && len(h.rx) == 0 {
		h.cond.Wait()
	}
	if !h.open {
		return 0, ErrClosed
	}
	if err := h.readErr; err != nil {
		h.readErr = nil
		return 0, err
	}
	n := copy(p, h.rx)
	h.rx = h.rx[n:]
	return n, nil
}

// Write captures p on the device, echoing it as input in loopback mode.
func (h *Handle) Write(p []byte) (int, error) {
	if !h.IsOpen() {
		return 0, ErrClosed
	}
	h.t.mu.Lock()
	h.dev.written = append(h.dev.written, p...)
	loopback := h.dev.loopback
	h.t.mu.Unlock()

	if loopback {
		h.receive(p)
	}
	return len(p), nil
}

// Close stops notifications. It does not wait for an in-flight notification,
// so it is safe to call from inside one.
func (h *Handle) Close() error {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return ErrClosed
	}
	h.open = false
	h.cond.Broadcast()
	h.mu.Unlock()

	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	return h.dev.closeErr
}

// IsOpen reports whether Close has not been called.
func (h *Handle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// OnByteAvailable installs fn and starts the notification goroutine.
func (h *Handle) OnByteAvailable(fn ports.NotifyFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return ErrClosed
	}
	start := h.notify == nil
	h.notify = fn
	if start {
		go h.loop()
	}
	if len(h.rx) > 0 {
		h.signal()
	}
	return nil
}

func (h *Handle) receive(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return
	}
	h.rx = append(h.rx, data...)
	h.signal()
}

func (h *Handle) failRead(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readErr = err
	h.signal()
}

// signal must be called with mu held.
func (h *Handle) signal() {
	h.signalled = true
	h.cond.Broadcast()
}

func (h *Handle) settle() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.open && h.notify != nil && (h.signalled || h.dispatching) {
		h.cond.Wait()
	}
}

// loop turns signals into notifications. Signals raised while a notification
// runs coalesce into one follow-up notification.
func (h *Handle) loop() {
	for {
		h.mu.Lock()
		for h.open && !h.signalled {
			h.cond.Wait()
		}
		if !h.open {
			h.mu.Unlock()
			return
		}
		h.signalled = false
		available := len(h.rx)
		if available == 0 && h.readErr != nil {
			available = 1
		}
		fn := h.notify
		h.dispatching = available > 0
		h.mu.Unlock()

		if available > 0 {
			fn(available)
		}

		h.mu.Lock()
		h.dispatching = false
		h.cond.Broadcast()
		h.mu.Unlock()
	}
}
