// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [Transport]: opens named serial lines and lists the attached ones
//   - [Handle]: one open serial line (params, read, write, close, notifications)
//   - [Logger]: structured logging abstraction
//
// Infrastructure adapters (internal/adapters) implement these interfaces with
// a termios driver and an in-memory simulator.
package ports
