// Package domain contains the core domain values and errors for serialmux.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (termios, file system, logging) and
// contains only the rules shared by every layer.
//
// # Values
//
//   - [LineParams]: baud rate, data bits, stop bits and parity of a serial line
//   - [Parity], [StopBits]: line parameter enumerations
//
// # Errors
//
// Registry and transport failures are reported with the sentinel errors in
// errors.go and can be checked with errors.Is.
package domain
