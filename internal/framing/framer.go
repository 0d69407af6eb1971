// Package framing turns a raw byte stream into frames whose length each
// consumer declares, and may change, between frames.
package framing

import "sync"

// Handler receives completed frames.
type Handler interface {
	// OnFrame is called synchronously on the dispatch goroutine with a buffer
	// the handler owns. Calling Expect from inside OnFrame is allowed.
	OnFrame(frame []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(frame []byte)

// OnFrame calls f(frame).
func (f HandlerFunc) OnFrame(frame []byte) { f(frame) }

// Framer accumulates pushed bytes into a buffer of the expected length and
// hands the buffer to its Handler once it is full.
//
// The zero value drops every byte until Expect is called.
type Framer struct {
	mu       sync.Mutex
	handler  Handler
	expected int
	buf      []byte
	n        int
}

// New returns a framer with no expected length; bytes are dropped until
// Expect is called.
func New(h Handler) *Framer {
	return &Framer{handler: h}
}

// Expect replaces the frame buffer with an empty buffer of n bytes, discarding
// any partially accumulated data. n == 0 completes an empty frame on every
// pushed byte. A negative n disables the framer until the next Expect.
func (f *Framer) Expect(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expected = n
	f.reset()
}

// Expected returns the current expected frame length.
func (f *Framer) Expected() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expected
}

// PushByte appends b to the current frame. When the frame is full the handler
// runs with the filled buffer, then a new buffer of the expected length in
// effect after the handler returned is started.
func (f *Framer) PushByte(b byte) {
	f.mu.Lock()
	if f.buf == nil {
		f.mu.Unlock()
		return
	}
	if f.n < len(f.buf) {
		f.buf[f.n] = b
		f.n++
	}
	if f.n < len(f.buf) {
		f.mu.Unlock()
		return
	}
	frame := f.buf
	f.buf, f.n = nil, 0
	h := f.handler
	f.mu.Unlock()

	// Unlocked so the handler can call Expect.
	defer f.restart()
	if h != nil {
		h.OnFrame(frame)
	}
}

// restart starts the next frame unless the handler already did via Expect.
func (f *Framer) restart() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buf == nil {
		f.reset()
	}
}

// Peek returns a copy of the bytes accumulated so far. It is best-effort only:
// a concurrent PushByte may complete and reset the frame at any time.
func (f *Framer) Peek() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buf == nil {
		return nil
	}
	out := make([]byte, f.n)
	copy(out, f.buf[:f.n])
	return out
}

// reset must be called with mu held.
func (f *Framer) reset() {
	f.n = 0
	if f.expected < 0 {
		f.buf = nil
		return
	}
	f.buf = make([]byte, f.expected)
}
