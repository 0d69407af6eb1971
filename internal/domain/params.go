package domain

import (
	"fmt"
	"strings"
)

// Parity is the parity mode of a serial line.
// Values follow the common driver numbering (none=0, odd=1, even=2, mark=3, space=4).
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// String returns the lower-case name of the parity mode.
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	default:
		return fmt.Sprintf("parity(%d)", int(p))
	}
}

// ParseParity accepts a parity name ("none", "odd", ...) or its one-letter
// form ("N", "O", "E", "M", "S"), case-insensitively.
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	case "mark", "m":
		return ParityMark, nil
	case "space", "s":
		return ParitySpace, nil
	}
	return ParityNone, fmt.Errorf("%w: unknown parity %q", ErrInvalidParams, s)
}

// StopBits is the stop-bit setting of a serial line.
type StopBits int

const (
	StopBits1   StopBits = 1
	StopBits2   StopBits = 2
	StopBits1_5 StopBits = 3
)

// String returns the stop-bit count as written on a datasheet.
func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits2:
		return "2"
	case StopBits1_5:
		return "1.5"
	default:
		return fmt.Sprintf("stopbits(%d)", int(s))
	}
}

// ParseStopBits parses "1", "1.5" or "2". An empty string means one stop bit.
func ParseStopBits(s string) (StopBits, error) {
	switch strings.TrimSpace(s) {
	case "", "1":
		return StopBits1, nil
	case "1.5":
		return StopBits1_5, nil
	case "2":
		return StopBits2, nil
	}
	return StopBits1, fmt.Errorf("%w: unknown stop bits %q", ErrInvalidParams, s)
}

// LineParams is the configuration that must match for two requests to share
// one open port.
type LineParams struct {
	BaudRate int
	DataBits int
	StopBits StopBits
	Parity   Parity
}

// DefaultLineParams returns 9600 baud, 8 data bits, 1 stop bit, no parity.
func DefaultLineParams() LineParams {
	return LineParams{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: StopBits1,
		Parity:   ParityNone,
	}
}

// Validate checks the parameters for values no serial line accepts.
// Driver-specific limits (supported baud rates) are checked by the transport.
func (p LineParams) Validate() error {
	if p.BaudRate <= 0 {
		return fmt.Errorf("%w: baud rate must be positive, got %d", ErrInvalidParams, p.BaudRate)
	}
	if p.DataBits < 5 || p.DataBits > 8 {
		return fmt.Errorf("%w: data bits must be 5-8, got %d", ErrInvalidParams, p.DataBits)
	}
	switch p.StopBits {
	case StopBits1, StopBits2, StopBits1_5:
	default:
		return fmt.Errorf("%w: unknown stop bits %d", ErrInvalidParams, int(p.StopBits))
	}
	if p.Parity < ParityNone || p.Parity > ParitySpace {
		return fmt.Errorf("%w: unknown parity %d", ErrInvalidParams, int(p.Parity))
	}
	return nil
}

// String renders the parameters in the usual "9600 8N1" shorthand.
func (p LineParams) String() string {
	return fmt.Sprintf("%d %d%c%s", p.BaudRate, p.DataBits, strings.ToUpper(p.Parity.String())[0], p.StopBits)
}
