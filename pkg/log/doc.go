// Package log provides the logging abstraction used by serialmux components.
//
// Components never log through a global; they receive a Logger when they are
// constructed. A zerolog-backed implementation is provided for applications
// and a no-op logger for tests and quiet embedding.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	registry := app.NewRegistry(transport, logger)
//
// Implement [Logger] to route serialmux diagnostics into an existing logging
// setup.
package log
