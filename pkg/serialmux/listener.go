package serialmux

import "github.com/bft-labs/serialmux/internal/framing"

// NewListener returns a framer expecting frames of n bytes, ready to be
// registered on a port.
func NewListener(h Handler, n int) *Framer {
	f := framing.New(h)
	f.Expect(n)
	return f
}

// NewLengthPrefixedListener returns a framer for messages made of a one-byte
// length header followed by that many payload bytes. fn receives each
// payload; a zero header yields an empty payload immediately.
//
// The returned framer keeps parsing state and must be registered on one
// port only.
func NewLengthPrefixedListener(fn func(payload []byte)) *Framer {
	var f *framing.Framer
	inHeader := true
	f = framing.New(framing.HandlerFunc(func(frame []byte) {
		if !inHeader {
			inHeader = true
			f.Expect(1)
			fn(frame)
			return
		}
		n := int(frame[0])
		if n == 0 {
			fn([]byte{})
			return
		}
		inHeader = false
		f.Expect(n)
	}))
	f.Expect(1)
	return f
}
