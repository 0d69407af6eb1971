package app

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/serialmux/internal/domain"
	"github.com/bft-labs/serialmux/internal/framing"
	"github.com/bft-labs/serialmux/internal/ports"
	"github.com/bft-labs/serialmux/pkg/log"
)

// Port multiplexes one serial line across every registered framer.
//
// Every byte read from the line is pushed to all framers in registration
// order before the next byte is read. Frame handlers run on the dispatch
// goroutine, so a slow handler delays delivery to every framer on the port.
type Port struct {
	name   string
	params domain.LineParams
	handle ports.Handle
	logger ports.Logger

	// dispatchMu serializes notification deliveries.
	dispatchMu sync.Mutex

	// mu guards listeners. The slice is replaced, never mutated, so dispatch
	// can iterate a snapshot while Register runs (even from a frame handler).
	mu        sync.Mutex
	listeners []*framing.Framer

	received atomic.Uint64
}

func newPort(name string, params domain.LineParams, handle ports.Handle, logger ports.Logger) *Port {
	return &Port{
		name:   name,
		params: params,
		handle: handle,
		logger: logger,
	}
}

// Name returns the port name.
func (p *Port) Name() string { return p.name }

// Params returns the line parameters the port was opened with.
func (p *Port) Params() domain.LineParams { return p.params }

// CheckParams reports whether params equal the parameters the port was opened with.
func (p *Port) CheckParams(params domain.LineParams) bool {
	return p.params == params
}

// Register appends f to the dispatch list and returns it for chaining.
// Registering the same framer twice delivers every byte to it twice.
// A framer registered from inside a frame handler receives bytes starting
// with the next byte read.
func (p *Port) Register(f *framing.Framer) *framing.Framer {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make([]*framing.Framer, len(p.listeners), len(p.listeners)+1)
	copy(next, p.listeners)
	p.listeners = append(next, f)
	return f
}

// Listeners returns the number of registrations.
func (p *Port) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Write writes raw bytes to the line.
func (p *Port) Write(b []byte) (int, error) {
	n, err := p.handle.Write(b)
	if err != nil {
		return n, domain.NewTransportError("write", p.name, err)
	}
	p.logger.Debug("wrote bytes",
		log.String("port", p.name),
		log.Hex("data", b[:n]),
	)
	return n, nil
}

// IsOpen reports whether the underlying handle is still open.
func (p *Port) IsOpen() bool {
	return p.handle.IsOpen()
}

// BytesReceived returns the number of bytes dispatched since the port opened.
func (p *Port) BytesReceived() uint64 {
	return p.received.Load()
}

func (p *Port) close() error {
	if !p.handle.IsOpen() {
		return nil
	}
	return p.handle.Close()
}

func (p *Port) snapshot() []*framing.Framer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listeners
}

// dispatch is the byte-available hook. It reads available bytes one at a
// time and fans each one out before reading the next. A read error abandons
// the cycle; whatever the driver still buffers arrives with the next
// notification.
func (p *Port) dispatch(available int) {
	if available < 1 {
		available = 1
	}

	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	var b [1]byte
	for i := 0; i < available; i++ {
		n, err := p.handle.Read(b[:])
		if err != nil {
			p.logger.Error("serial read failed, dispatch cycle abandoned",
				log.String("port", p.name),
				log.Int("unread", available-i),
				log.Err(err),
			)
			return
		}
		if n == 0 {
			return
		}
		p.received.Add(1)
		for _, f := range p.snapshot() {
			p.push(f, b[0])
		}
	}
}

// push delivers one byte, containing a panicking frame handler so the other
// framers on the port keep receiving.
func (p *Port) push(f *framing.Framer, b byte) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("frame handler panicked",
				log.String("port", p.name),
				log.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	f.PushByte(b)
}
